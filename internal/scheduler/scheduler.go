package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/metrics"
	"sportschatplus/ingestion/internal/models"
	"sportschatplus/ingestion/internal/repository"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyRunning is returned by Run when the scheduler is active
var ErrAlreadyRunning = errors.New("scheduler already running")

// Fetcher retrieves a sport's scoreboard
type Fetcher interface {
	FetchScoreboard(ctx context.Context, sport config.Sport) (*models.Scoreboard, error)
}

// Processor persists a batch of raw games
type Processor interface {
	Process(ctx context.Context, items []json.RawMessage) models.CycleResults
}

// Scheduler runs fetch cycles for one sport. Each cycle arms a one-shot
// timer for the next, so at most one cycle is ever in flight and a tier
// change applies from the very next delay.
type Scheduler struct {
	sport     config.Sport
	intervals config.Intervals
	fetcher   Fetcher
	processor Processor
	store     repository.Store
	statsCron string
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once

	mu         sync.Mutex
	running    bool
	fetchCount int64
	lastFetch  *time.Time
	tier       Tier
	nextFetch  time.Time
	lastError  string
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithStatsRefresh schedules a cron job that refreshes store gauges
func WithStatsRefresh(schedule string) Option {
	return func(s *Scheduler) { s.statsCron = schedule }
}

// WithClock sets the scheduler clock
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a new scheduler instance
func NewScheduler(sport config.Sport, intervals config.Intervals, fetcher Fetcher, processor Processor, store repository.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		sport:     sport,
		intervals: intervals,
		fetcher:   fetcher,
		processor: processor,
		store:     store,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs the first cycle immediately and keeps polling until ctx is
// cancelled or Stop is called. An in-flight cycle always runs to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Info().
		Str("sport", s.sport.Key).
		Str("games", s.sport.GamesCollection).
		Str("teams", s.sport.TeamsCollection).
		Msg("Scheduler starting...")

	if s.statsCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.statsCron, func() {
			if err := s.RefreshStats(context.WithoutCancel(ctx)); err != nil {
				log.Error().Err(err).Str("sport", s.sport.Key).Msg("Stats refresh failed")
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule stats refresh: %w", err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Info().Str("schedule", s.statsCron).Msg("Stats refresh scheduled")
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("sport", s.sport.Key).Msg("Context cancelled, scheduler stopped")
			return nil
		case <-s.stopChan:
			log.Info().Str("sport", s.sport.Key).Msg("Stop signal received, scheduler stopped")
			return nil
		case <-timer.C:
			if ctx.Err() != nil || s.stopped() {
				log.Info().Str("sport", s.sport.Key).Msg("Shutdown requested, skipping cycle")
				return nil
			}

			delay := s.RunCycle(context.WithoutCancel(ctx))
			if ctx.Err() != nil || s.stopped() {
				log.Info().Str("sport", s.sport.Key).Msg("Shutdown requested during cycle, scheduler stopped")
				return nil
			}

			next := s.now().Add(delay)
			s.mu.Lock()
			s.nextFetch = next
			s.mu.Unlock()

			timer.Reset(delay)
			log.Info().
				Str("sport", s.sport.Key).
				Dur("interval", delay).
				Time("next_fetch", next).
				Msg("Next fetch scheduled")
		}
	}
}

// Stop stops the scheduler after any in-flight cycle
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Str("sport", s.sport.Key).Msg("Stopping scheduler...")
		close(s.stopChan)
	})
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// RunCycle performs one fetch cycle and returns the delay before the next.
// Failures never escape: they are logged and answered with the retry delay.
// Each cycle writes exactly one fetch log.
func (s *Scheduler) RunCycle(ctx context.Context) (next time.Duration) {
	start := s.now()
	runID := uuid.NewString()
	logged := false

	s.mu.Lock()
	s.fetchCount++
	seq := s.fetchCount
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in fetch cycle: %v", r)
			log.Error().Err(err).Str("sport", s.sport.Key).Int64("fetch", seq).Msg("Fetch cycle failed")
			if logged {
				metrics.RecordError("scheduler", "panic")
				s.mu.Lock()
				s.lastError = err.Error()
				s.mu.Unlock()
			} else {
				logged = true
				s.finish(ctx, runID, seq, nil, err, start)
			}
			next = s.intervals.Retry
		}
	}()

	log.Info().
		Str("sport", s.sport.Key).
		Int64("fetch", seq).
		Msg("Fetching scoreboard")

	board, err := s.fetcher.FetchScoreboard(ctx, s.sport)
	if err != nil {
		log.Error().
			Err(err).
			Str("sport", s.sport.Key).
			Int64("fetch", seq).
			Dur("duration", s.now().Sub(start)).
			Msg("Fetch failed")
		logged = true
		s.finish(ctx, runID, seq, nil, err, start)
		return s.intervals.Retry
	}

	log.Info().
		Str("sport", s.sport.Key).
		Int("games", len(board.Games)).
		Msg("Received games from API")

	results := s.processor.Process(ctx, board.Games)

	finished := s.now()
	s.mu.Lock()
	s.lastFetch = &finished
	s.mu.Unlock()

	log.Info().
		Str("sport", s.sport.Key).
		Int64("fetch", seq).
		Int("new", results.NewGames).
		Int("updated", results.UpdatedGames).
		Int("skipped", results.SkippedGames).
		Int("placeholder_skipped", results.PlaceholderSkipped).
		Int("errors", results.Errors).
		Dur("duration", finished.Sub(start)).
		Msg("Fetch completed")

	logged = true
	s.finish(ctx, runID, seq, &results, nil, start)

	tier, interval, err := s.SelectTier(ctx, finished)
	if err != nil {
		log.Error().Err(err).Str("sport", s.sport.Key).Msg("Failed to determine polling tier")
		metrics.RecordError("scheduler", "select_tier")
		return s.intervals.Retry
	}

	s.mu.Lock()
	changed := s.tier != tier
	s.tier = tier
	s.mu.Unlock()

	if changed {
		log.Info().
			Str("sport", s.sport.Key).
			Str("tier", string(tier)).
			Dur("interval", interval).
			Msg("Polling tier changed")
	}
	metrics.RecordTier(s.sport.Key, string(tier), tierNames(), interval.Seconds())

	return interval
}

// finish records cycle state, metrics and the fetch log
func (s *Scheduler) finish(ctx context.Context, runID string, seq int64, results *models.CycleResults, cycleErr error, start time.Time) {
	duration := s.now().Sub(start)

	status := "success"
	errMsg := ""
	if cycleErr != nil {
		status = "error"
		errMsg = cycleErr.Error()
		metrics.RecordError("scheduler", "cycle")
	}
	metrics.RecordCycle(s.sport.Key, status, duration.Seconds())

	s.mu.Lock()
	s.lastError = errMsg
	var lastFetch *time.Time
	if s.lastFetch != nil {
		t := *s.lastFetch
		lastFetch = &t
	}
	s.mu.Unlock()

	s.logRun(ctx, &models.FetchLog{
		RunID:         runID,
		Sport:         s.sport.Key,
		Results:       results,
		Error:         errMsg,
		DurationMS:    duration.Milliseconds(),
		FetchCount:    seq,
		LastFetchTime: lastFetch,
	})
}

// logRun appends the fetch log. Failures are logged and swallowed.
func (s *Scheduler) logRun(ctx context.Context, entry *models.FetchLog) {
	if err := s.store.FetchLogs().Append(ctx, entry); err != nil {
		metrics.RecordError("run_logger", "append")
		log.Error().
			Err(err).
			Str("sport", s.sport.Key).
			Int64("fetch", entry.FetchCount).
			Msg("Error logging fetch result")
	}
}

// RefreshStats updates the store gauges
func (s *Scheduler) RefreshStats(ctx context.Context) error {
	games, err := s.store.Games().Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count games: %w", err)
	}
	teams, err := s.store.Teams().Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count teams: %w", err)
	}
	live, err := s.store.Games().CountInState(ctx, s.sport.LiveState)
	if err != nil {
		return fmt.Errorf("failed to count live games: %w", err)
	}

	metrics.UpdateStoreStats(s.sport.Key, games, teams, live)
	log.Info().
		Str("sport", s.sport.Key).
		Int64("games", games).
		Int64("teams", teams).
		Int64("live", live).
		Msg("Store stats refreshed")
	return nil
}

// Status is a snapshot of the scheduler
type Status struct {
	Sport         string            `json:"sport"`
	Running       bool              `json:"isRunning"`
	FetchCount    int64             `json:"fetchCount"`
	LastFetchTime *time.Time        `json:"lastFetchTime"`
	Tier          string            `json:"tier,omitempty"`
	NextFetchTime *time.Time        `json:"nextFetchTime,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	Collections   map[string]string `json:"collections"`
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Sport:      s.sport.Key,
		Running:    s.running,
		FetchCount: s.fetchCount,
		Tier:       string(s.tier),
		LastError:  s.lastError,
		Collections: map[string]string{
			"games":     s.sport.GamesCollection,
			"teams":     s.sport.TeamsCollection,
			"fetchLogs": s.sport.FetchLogsCollection,
		},
	}
	if s.lastFetch != nil {
		t := *s.lastFetch
		st.LastFetchTime = &t
	}
	if !s.nextFetch.IsZero() {
		t := s.nextFetch
		st.NextFetchTime = &t
	}
	return st
}
