package ingest

import (
	"strings"
	"time"

	"sportschatplus/ingestion/internal/config"
)

// RejectReason names the filter that rejected a candidate
type RejectReason string

const (
	RejectIncomplete  RejectReason = "incomplete_identity"
	RejectPlaceholder RejectReason = "placeholder"
	RejectTemplate    RejectReason = "template"
	RejectBeforeStart RejectReason = "before_tournament_start"
	RejectRound       RejectReason = "round_not_allowed"
)

// IsDataError reports whether the rejection counts as an error rather than a skip
func (r RejectReason) IsDataError() bool {
	return r == RejectIncomplete
}

// FilterChain restricts ingestion to real, in-window tournament games
type FilterChain struct {
	start  time.Time
	rounds []string
}

// NewFilterChain builds the chain from a sport's tournament settings
func NewFilterChain(sport config.Sport) *FilterChain {
	rounds := make([]string, 0, len(sport.RoundAllowList))
	for _, r := range sport.RoundAllowList {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			rounds = append(rounds, r)
		}
	}
	return &FilterChain{start: sport.TournamentStart, rounds: rounds}
}

// Check runs the filters in order and stops at the first rejection
func (f *FilterChain) Check(c *Candidate) (RejectReason, bool) {
	team1 := strings.TrimSpace(c.Team1Name)
	team2 := strings.TrimSpace(c.Team2Name)

	switch {
	case team1 == "" || team2 == "":
		return RejectIncomplete, false
	case isPlaceholder(team1) || isPlaceholder(team2):
		return RejectPlaceholder, false
	case isTemplate(team1) || isTemplate(team2):
		return RejectTemplate, false
	case c.GameDay.Before(f.start):
		return RejectBeforeStart, false
	case !f.roundAllowed(c.Round):
		return RejectRound, false
	}
	return "", true
}

func (f *FilterChain) roundAllowed(round string) bool {
	round = strings.ToLower(strings.TrimSpace(round))
	if round == "" {
		return false
	}
	for _, r := range f.rounds {
		if strings.Contains(round, r) {
			return true
		}
	}
	return false
}

func isPlaceholder(name string) bool {
	return strings.Contains(strings.ToLower(name), "tba")
}

func isTemplate(name string) bool {
	return strings.Contains(name, "vs") || name == "Unknown"
}
