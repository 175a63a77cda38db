// Package setup prepares a store for a tournament: it checks the store is
// reachable, seeds the first scoreboard games, verifies every collection can
// be read and records the outcome in setupLogs and fetchLogs.
package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sportschatplus/ingestion/internal/client"
	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/models"
	"sportschatplus/ingestion/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSeedLimit caps the games processed while seeding
const DefaultSeedLimit = 10

// Fetcher retrieves a sport's scoreboard
type Fetcher interface {
	FetchScoreboard(ctx context.Context, sport config.Sport) (*models.Scoreboard, error)
}

// Processor persists a batch of raw games
type Processor interface {
	Process(ctx context.Context, items []json.RawMessage) models.CycleResults
}

// Runner performs one readiness pass for a sport
type Runner struct {
	sport       config.Sport
	store       repository.Store
	fetcher     Fetcher
	processor   Processor
	seedLimit   int
	collections []string
	now         func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithSeedLimit overrides DefaultSeedLimit. Zero disables seeding.
func WithSeedLimit(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.seedLimit = n
		}
	}
}

// WithCollections replaces the collections that are probed
func WithCollections(names ...string) Option {
	return func(r *Runner) { r.collections = names }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a readiness runner
func NewRunner(sport config.Sport, store repository.Store, fetcher Fetcher, processor Processor, opts ...Option) *Runner {
	r := &Runner{
		sport:       sport,
		store:       store,
		fetcher:     fetcher,
		processor:   processor,
		seedLimit:   DefaultSeedLimit,
		collections: config.AllCollections(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run checks store health, seeds, probes collections and writes the setup
// and initialization logs. Only a failed health check is returned as an
// error; every later failure is recorded in the report.
func (r *Runner) Run(ctx context.Context) (*models.SetupLog, error) {
	start := r.now()

	log.Info().Str("sport", r.sport.Key).Msg("Validating store health...")
	if err := r.store.Health(ctx); err != nil {
		return nil, fmt.Errorf("store health check: %w", err)
	}

	report := &models.SetupLog{
		Type:            models.SetupTypeTournamentReady,
		Sport:           r.sport.Key,
		TournamentStart: r.sport.TournamentStart,
		Collections:     r.collections,
	}

	seeded, note := r.seed(ctx)
	report.Seeded = seeded

	report.Ready = true
	for _, name := range r.collections {
		check := models.CollectionCheck{Name: name, Ready: true}
		if err := r.store.ProbeCollection(ctx, name); err != nil {
			check.Ready = false
			check.Error = err.Error()
			report.Ready = false
			log.Error().Err(err).Str("collection", name).Msg("Collection not readable")
		} else {
			log.Info().Str("collection", name).Msg("Collection ready")
		}
		report.Checks = append(report.Checks, check)
	}

	report.NextSteps = nextSteps(r.sport, report.Ready)
	report.SetupTimeMS = r.now().Sub(start).Milliseconds()

	if err := r.store.SetupLogs().Append(ctx, report); err != nil {
		log.Error().Err(err).Msg("Error writing setup log")
	}

	entry := &models.FetchLog{
		RunID:      uuid.NewString(),
		Sport:      r.sport.Key,
		Results:    seeded,
		DurationMS: report.SetupTimeMS,
		Type:       models.FetchTypeInitialization,
		Status:     models.FetchStatusReady,
		Message:    note,
	}
	if !report.Ready {
		entry.Status = models.FetchStatusNotReady
		entry.Message = fmt.Sprintf("%d collection(s) not readable", len(report.FailedChecks()))
	}
	if err := r.store.FetchLogs().Append(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Error writing initialization log")
	}

	log.Info().
		Str("sport", r.sport.Key).
		Bool("ready", report.Ready).
		Int64("setup_ms", report.SetupTimeMS).
		Msg("Tournament setup finished")

	return report, nil
}

// seed processes the first games of the live scoreboard. A missing
// scoreboard is normal before the first game day.
func (r *Runner) seed(ctx context.Context) (*models.CycleResults, string) {
	if r.seedLimit == 0 {
		return nil, "Store initialized without seeding"
	}

	board, err := r.fetcher.FetchScoreboard(ctx, r.sport)
	if err != nil {
		var fe *client.FetchError
		if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
			log.Info().Str("sport", r.sport.Key).Msg("Tournament data not available yet")
			return nil, "Store initialized, tournament data not available yet"
		}
		log.Error().Err(err).Str("sport", r.sport.Key).Msg("Error fetching seed scoreboard")
		return nil, "Store initialized, seed fetch failed: " + err.Error()
	}

	items := board.Games
	if len(items) > r.seedLimit {
		items = items[:r.seedLimit]
	}
	results := r.processor.Process(ctx, items)

	log.Info().
		Str("sport", r.sport.Key).
		Int("games", len(items)).
		Int("new", results.NewGames).
		Int("updated", results.UpdatedGames).
		Int("errors", results.Errors).
		Msg("Seeded initial games")

	return &results, fmt.Sprintf("Store initialized and seeded with %d game(s)", results.NewGames+results.UpdatedGames)
}

func nextSteps(sport config.Sport, ready bool) []string {
	if !ready {
		return []string{
			"Fix the unreadable collections listed in checks",
			"Run setup again before starting the poller",
		}
	}
	return []string{
		fmt.Sprintf("Tournament starts %s", sport.TournamentStart.Format(time.DateOnly)),
		"Start the fetcher for " + sport.Key,
		fmt.Sprintf("Watch %s for cycle results", sport.FetchLogsCollection),
	}
}
