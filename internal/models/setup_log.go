package models

import "time"

// Setup log types and fetch log markers written by the setup command
const (
	SetupTypeTournamentReady = "tournament-ready-setup"
	FetchTypeInitialization  = "tournament-ready-initialization"
	FetchStatusReady         = "ready-for-tournament"
	FetchStatusNotReady      = "not-ready"
)

// CollectionCheck is the readability result of one collection
type CollectionCheck struct {
	Name  string `firestore:"name" json:"name"`
	Ready bool   `firestore:"ready" json:"ready"`
	Error string `firestore:"error,omitempty" json:"error,omitempty"`
}

// SetupLog records one readiness run
type SetupLog struct {
	ID              string            `firestore:"-" db:"id"`
	Type            string            `firestore:"type" db:"type"`
	Sport           string            `firestore:"sport" db:"sport"`
	TournamentStart time.Time         `firestore:"tournamentStart" db:"tournament_start"`
	Collections     []string          `firestore:"collections" db:"collections"`
	Checks          []CollectionCheck `firestore:"checks" db:"checks"`
	Seeded          *CycleResults     `firestore:"seeded,omitempty" db:"seeded"`
	Ready           bool              `firestore:"ready" db:"ready"`
	SetupTimeMS     int64             `firestore:"setupTime" db:"setup_time_ms"`
	NextSteps       []string          `firestore:"nextSteps" db:"next_steps"`
	Timestamp       time.Time         `firestore:"timestamp" db:"timestamp"`
}

// FailedChecks returns the collections that could not be read
func (l *SetupLog) FailedChecks() []CollectionCheck {
	var failed []CollectionCheck
	for _, c := range l.Checks {
		if !c.Ready {
			failed = append(failed, c)
		}
	}
	return failed
}
