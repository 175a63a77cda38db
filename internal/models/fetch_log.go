package models

import "time"

// CycleResults counts the outcome of one batch of games
type CycleResults struct {
	NewGames           int `firestore:"newGames" json:"newGames"`
	UpdatedGames       int `firestore:"updatedGames" json:"updatedGames"`
	SkippedGames       int `firestore:"skippedGames" json:"skippedGames"`
	PlaceholderSkipped int `firestore:"placeholderSkipped" json:"placeholderSkipped"`
	Errors             int `firestore:"errors" json:"errors"`

	// Rejections breaks PlaceholderSkipped and identity errors down by filter
	Rejections map[string]int `firestore:"rejections,omitempty" json:"rejections,omitempty"`
}

// Reject records one filter rejection under its reason
func (r *CycleResults) Reject(reason string) {
	if r.Rejections == nil {
		r.Rejections = make(map[string]int)
	}
	r.Rejections[reason]++
}

// Add accumulates another result set into r
func (r *CycleResults) Add(o CycleResults) {
	r.NewGames += o.NewGames
	r.UpdatedGames += o.UpdatedGames
	r.SkippedGames += o.SkippedGames
	r.PlaceholderSkipped += o.PlaceholderSkipped
	r.Errors += o.Errors
	for reason, n := range o.Rejections {
		if r.Rejections == nil {
			r.Rejections = make(map[string]int)
		}
		r.Rejections[reason] += n
	}
}

// Processed returns the number of games that reached the store
func (r *CycleResults) Processed() int {
	return r.NewGames + r.UpdatedGames + r.SkippedGames
}

// FetchLog is one append-only record per poll cycle
type FetchLog struct {
	ID            string        `firestore:"-" db:"id"`
	RunID         string        `firestore:"runId" db:"run_id"`
	Sport         string        `firestore:"sport" db:"sport"`
	Results       *CycleResults `firestore:"results,omitempty" db:"results"`
	Error         string        `firestore:"error,omitempty" db:"error"`
	DurationMS    int64         `firestore:"duration" db:"duration_ms"`
	FetchCount    int64         `firestore:"fetchCount" db:"fetch_count"`
	Timestamp     time.Time     `firestore:"timestamp" db:"timestamp"`
	LastFetchTime *time.Time    `firestore:"lastFetchTime" db:"last_fetch_time"`

	// Set only on entries written outside a poll cycle
	Type    string `firestore:"type,omitempty" db:"type"`
	Status  string `firestore:"status,omitempty" db:"status"`
	Message string `firestore:"message,omitempty" db:"message"`
}

// Failed returns true if the cycle ended with an error
func (l *FetchLog) Failed() bool {
	return l.Error != ""
}
