package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Scoreboard is the NCAA API scoreboard response.
// Games stay raw so one malformed item cannot fail the whole payload.
type Scoreboard struct {
	Games   []json.RawMessage `json:"games"`
	Updated string            `json:"updated_at,omitempty"`
}

// RawGameItem wraps one entry of the games list
type RawGameItem struct {
	Game *RawGame `json:"game"`
}

// RawGame contains the game details
type RawGame struct {
	GameID         FlexString `json:"gameID"`
	Away           *RawTeam   `json:"away"`
	Home           *RawTeam   `json:"home"`
	GameState      string     `json:"gameState"`
	BracketRound   string     `json:"bracketRound"`
	StartDate      string     `json:"startDate"`
	StartTime      string     `json:"startTime"`
	StartTimeEpoch FlexString `json:"startTimeEpoch"`
	CurrentPeriod  string     `json:"currentPeriod"`
	Venue          *RawVenue  `json:"venue"`
}

// RawTeam represents one side of a game
type RawTeam struct {
	Names  RawNames   `json:"names"`
	Score  FlexString `json:"score"`
	Seed   FlexString `json:"seed"`
	Winner bool       `json:"winner"`
}

// RawNames contains the team name formats
type RawNames struct {
	Char6 string `json:"char6"`
	Short string `json:"short"`
	Seo   string `json:"seo"`
	Full  string `json:"full"`
}

// RawVenue is the game location
type RawVenue struct {
	Name string `json:"name"`
}

// FlexString accepts a JSON string, number, or null
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	*f = FlexString(data)
	return nil
}

// String returns the raw value
func (f FlexString) String() string {
	return string(f)
}
