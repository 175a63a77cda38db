package models

import "time"

// Team represents one participating team document.
// Wins and losses keep their creation defaults; the poller never derives them.
type Team struct {
	ID          string    `firestore:"-" db:"id"`
	TeamName    string    `firestore:"TeamName" db:"team_name"`
	CoachName   string    `firestore:"CoachName" db:"coach_name"`
	Conference  string    `firestore:"Conference" db:"conference"`
	Wins        int       `firestore:"Wins" db:"wins"`
	Losses      int       `firestore:"Losses" db:"losses"`
	Seed        *int      `firestore:"Seed" db:"seed"`
	LastUpdated time.Time `firestore:"LastUpdated" db:"last_updated"`

	// Written only for sports with extended documents (baseball)
	Sport  string `firestore:"sport,omitempty" db:"sport"`
	Region string `firestore:"region,omitempty" db:"region"`
}

// NewTeam returns a team with zeroed stats
func NewTeam(name string, seed *int) *Team {
	return &Team{
		TeamName: name,
		Seed:     seed,
	}
}
