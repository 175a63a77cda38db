package models

import (
	"fmt"
	"strings"
	"time"
)

// Game states reported by the NCAA scoreboard feed
const (
	GameStatePre   = "pre"
	GameStateLive  = "in-progress"
	GameStateFinal = "final"
)

// Game represents one tournament game document
type Game struct {
	ID             string    `firestore:"-" db:"id"`
	GameIdentifier string    `firestore:"gameIdentifier" db:"game_identifier"`
	Team1Name      string    `firestore:"Team1Name" db:"team1_name"`
	Team2Name      string    `firestore:"Team2Name" db:"team2_name"`
	Team1Score     int       `firestore:"ScoreTeam1" db:"team1_score"`
	Team2Score     int       `firestore:"ScoreTeam2" db:"team2_score"`
	GameState      string    `firestore:"GameState" db:"game_state"`
	Round          string    `firestore:"Round" db:"round"`
	Location       string    `firestore:"Location" db:"location"`
	DatePlayed     time.Time `firestore:"DatePlayed" db:"date_played"`
	LastUpdated    time.Time `firestore:"LastUpdated" db:"last_updated"`

	// Written only for sports with extended documents (baseball)
	Sport         string `firestore:"sport,omitempty" db:"sport"`
	Inning        int    `firestore:"inning,omitempty" db:"inning"`
	IsElimination bool   `firestore:"isElimination,omitempty" db:"is_elimination"`
}

// GameIdentifier derives the natural key of a game from its teams and the
// calendar day it is played. The key is order sensitive.
func GameIdentifier(team1, team2 string, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s", team1, team2, day.UTC().Format(time.DateOnly))
}

// SameScore returns true if the stored scores match the given pair
func (g *Game) SameScore(team1Score, team2Score int) bool {
	return g.Team1Score == team1Score && g.Team2Score == team2Score
}

// IsLive returns true if the game is in the given live state
func (g *Game) IsLive(liveState string) bool {
	return strings.EqualFold(g.GameState, liveState)
}

// IsFinal returns true if the game is completed
func (g *Game) IsFinal() bool {
	return strings.EqualFold(g.GameState, GameStateFinal)
}

// Age returns how long ago the game was last written
func (g *Game) Age(now time.Time) time.Duration {
	return now.Sub(g.LastUpdated)
}
