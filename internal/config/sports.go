package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Collections shared by every sport
const (
	FetchLogsCollection = "fetchLogs"
	SetupLogsCollection = "setupLogs"
)

// DefaultSport is used when no sport argument is given
const DefaultSport = "basketball"

// Intervals is the polling tier table
type Intervals struct {
	Live      time.Duration
	Imminent  time.Duration
	Season    time.Duration
	OffSeason time.Duration
	Retry     time.Duration

	// ImminentWindow is how far ahead a scheduled game counts as imminent
	ImminentWindow time.Duration
}

// Sport describes one sport's endpoint, collections and tournament window.
type Sport struct {
	Key string

	// ScoreboardPath is appended to "/scoreboard/" for the live feed
	ScoreboardPath string
	// DatedScoreboardPath is appended to "/scoreboard/" and followed by YYYY/MM/DD
	DatedScoreboardPath string

	GamesCollection     string
	TeamsCollection     string
	FetchLogsCollection string
	SetupLogsCollection string

	TournamentStart time.Time
	SeasonMonths    []time.Month
	RoundAllowList  []string

	// LiveState is the game state value that marks a game as in progress
	LiveState string

	// ExtendedFields adds the sport, inning and elimination fields to documents
	ExtendedFields bool
}

// defaultRounds is the tournament round allow-list shared by every sport
func defaultRounds() []string {
	return []string{
		"regional", "regionals", "super regional", "super regionals",
		"college world series", "cws", "championship", "final",
	}
}

// Sports is the built-in sport table
var Sports = map[string]Sport{
	"basketball": {
		Key:                 "basketball",
		ScoreboardPath:      "basketball-men/d1/march-madness",
		DatedScoreboardPath: "basketball-men/d1",
		GamesCollection:     "games",
		TeamsCollection:     "teams",
		FetchLogsCollection: FetchLogsCollection,
		SetupLogsCollection: SetupLogsCollection,
		TournamentStart:     time.Date(2025, time.May, 30, 0, 0, 0, 0, time.UTC),
		SeasonMonths:        []time.Month{time.March, time.April},
		RoundAllowList: append(defaultRounds(),
			"first four", "first round", "second round", "sweet 16",
			"elite eight", "elite 8", "final four",
		),
		LiveState: "in-progress",
	},
	"baseball": {
		Key:                 "baseball",
		ScoreboardPath:      "baseball/d1",
		DatedScoreboardPath: "baseball/d1",
		GamesCollection:     "baseballGames",
		TeamsCollection:     "baseballTeams",
		FetchLogsCollection: FetchLogsCollection,
		SetupLogsCollection: SetupLogsCollection,
		TournamentStart:     time.Date(2025, time.May, 30, 0, 0, 0, 0, time.UTC),
		SeasonMonths:        []time.Month{time.May, time.June},
		RoundAllowList:      defaultRounds(),
		LiveState:           "in-progress",
		ExtendedFields:      true,
	},
}

// SportKeys returns the known sport keys in sorted order
func SportKeys() []string {
	keys := make([]string, 0, len(Sports))
	for k := range Sports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AllCollections lists every sport's game and team collections followed by
// the shared log collections
func AllCollections() []string {
	var names []string
	for _, key := range SportKeys() {
		sport := Sports[key]
		names = append(names, sport.GamesCollection, sport.TeamsCollection)
	}
	return append(names, FetchLogsCollection, SetupLogsCollection)
}

// LookupSport returns the built-in settings for a sport key
func LookupSport(key string) (Sport, error) {
	sport, ok := Sports[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Sport{}, fmt.Errorf("invalid sport %q: use one of %s", key, strings.Join(SportKeys(), ", "))
	}
	sport.SeasonMonths = append([]time.Month(nil), sport.SeasonMonths...)
	sport.RoundAllowList = append([]string(nil), sport.RoundAllowList...)
	return sport, nil
}

// ResolveSport looks up a sport and applies the environment overrides
func (c *Config) ResolveSport(key string) (Sport, error) {
	sport, err := LookupSport(key)
	if err != nil {
		return Sport{}, err
	}

	if c.TournamentStart != "" {
		start, err := time.Parse(time.DateOnly, c.TournamentStart)
		if err != nil {
			return Sport{}, fmt.Errorf("invalid TOURNAMENT_START: %w", err)
		}
		sport.TournamentStart = start
	}

	if c.RoundAllowList != "" {
		var rounds []string
		for _, r := range strings.Split(c.RoundAllowList, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rounds = append(rounds, strings.ToLower(r))
			}
		}
		if len(rounds) == 0 {
			return Sport{}, fmt.Errorf("ROUND_ALLOWLIST has no usable entries")
		}
		sport.RoundAllowList = rounds
	}

	return sport, nil
}

// InSeason reports whether t falls in one of the sport's season months
func (s Sport) InSeason(t time.Time) bool {
	for _, m := range s.SeasonMonths {
		if t.Month() == m {
			return true
		}
	}
	return false
}
