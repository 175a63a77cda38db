package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/models"
)

// Defaults for missing optional fields
const (
	DefaultGameState = "unknown"
	DefaultRound     = "Unknown Round"
	DefaultLocation  = "Unknown Location"
)

// ErrMissingGame is returned for a games[] item without a game object
var ErrMissingGame = errors.New("item has no game object")

// dateLayouts are tried in order against startDate
var dateLayouts = []string{"01-02-2006", "1-2-2006", "01/02/2006", "1/2/2006", time.DateOnly, "2006-1-2", time.RFC3339}

// Candidate is a normalized game that has not been persisted
type Candidate struct {
	Team1Name  string
	Team2Name  string
	Team1Score int
	Team2Score int
	Team1Seed  *int
	Team2Seed  *int
	GameState  string
	Round      string
	Location   string

	// GameDay is the calendar day of play and feeds the natural key
	GameDay time.Time
	// DatePlayed is the start instant when the feed has one, else GameDay
	DatePlayed time.Time
	// DateDefaulted is set when no date could be parsed and now was used
	DateDefaulted bool
}

// Identifier returns the candidate's natural key
func (c *Candidate) Identifier() string {
	return models.GameIdentifier(c.Team1Name, c.Team2Name, c.GameDay)
}

// ToGame builds the document written for this candidate
func (c *Candidate) ToGame(sport config.Sport) *models.Game {
	game := &models.Game{
		GameIdentifier: c.Identifier(),
		Team1Name:      c.Team1Name,
		Team2Name:      c.Team2Name,
		Team1Score:     c.Team1Score,
		Team2Score:     c.Team2Score,
		GameState:      c.GameState,
		Round:          c.Round,
		Location:       c.Location,
		DatePlayed:     c.DatePlayed,
	}
	if sport.ExtendedFields {
		game.Sport = sport.Key
	}
	return game
}

// Normalizer maps raw scoreboard items to candidates. Malformed optional
// fields degrade to defaults.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer; now supplies the fallback date
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize decodes one games[] item
func (n *Normalizer) Normalize(raw json.RawMessage) (*Candidate, error) {
	var item models.RawGameItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode game item: %w", err)
	}
	if item.Game == nil {
		return nil, ErrMissingGame
	}
	g := item.Game

	c := &Candidate{
		GameState: orDefault(g.GameState, DefaultGameState),
		Round:     orDefault(g.BracketRound, DefaultRound),
		Location:  DefaultLocation,
	}
	if g.Venue != nil {
		c.Location = orDefault(g.Venue.Name, DefaultLocation)
	}
	if g.Away != nil {
		c.Team1Name = teamName(g.Away.Names)
		c.Team1Score = parseScore(g.Away.Score.String())
		c.Team1Seed = parseSeed(g.Away.Seed.String())
	}
	if g.Home != nil {
		c.Team2Name = teamName(g.Home.Names)
		c.Team2Score = parseScore(g.Home.Score.String())
		c.Team2Seed = parseSeed(g.Home.Seed.String())
	}

	n.resolveDates(c, g)
	return c, nil
}

func (n *Normalizer) resolveDates(c *Candidate, g *models.RawGame) {
	start, hasStart := parseEpoch(g.StartTimeEpoch.String())

	day, err := parseGameDate(g.StartDate)
	switch {
	case err == nil:
		c.GameDay = day
	case hasStart:
		c.GameDay = truncateDay(start)
	default:
		c.GameDay = n.now().UTC()
		c.DateDefaulted = true
	}

	c.DatePlayed = c.GameDay
	if hasStart {
		c.DatePlayed = start
	}
}

// teamName prefers the full name and falls back to the short one
func teamName(names models.RawNames) string {
	if full := strings.TrimSpace(names.Full); full != "" {
		return full
	}
	return strings.TrimSpace(names.Short)
}

// parseScore reads a leading integer; anything else is zero
func parseScore(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

func parseSeed(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func parseEpoch(s string) (time.Time, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}, false
	}
	return time.Unix(v, 0).UTC(), true
}

// parseGameDate parses the feed's month-day-year start date as a UTC day
func parseGameDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t.UTC()), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
