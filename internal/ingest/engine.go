package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/metrics"
	"sportschatplus/ingestion/internal/models"
	"sportschatplus/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// DefaultStaleness is how long an unchanged game stays fresh
const DefaultStaleness = 5 * time.Minute

// Outcome is what the upsert did with one candidate
type Outcome string

const (
	OutcomeNew     Outcome = "new"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// TeamCache short-circuits team existence checks
type TeamCache interface {
	TeamKnown(ctx context.Context, sport, name string) bool
	RememberTeam(ctx context.Context, sport, name string)
}

// Engine normalizes, filters and upserts one sport's games
type Engine struct {
	sport      config.Sport
	games      repository.GameStore
	teams      repository.TeamStore
	normalizer *Normalizer
	filter     *FilterChain
	cache      TeamCache
	staleAfter time.Duration
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithTeamCache sets the team existence cache
func WithTeamCache(c TeamCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithStaleness sets how long an unchanged game is left alone
func WithStaleness(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// WithClock sets the engine clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine writing to the given stores
func NewEngine(sport config.Sport, games repository.GameStore, teams repository.TeamStore, opts ...Option) *Engine {
	e := &Engine{
		sport:      sport,
		games:      games,
		teams:      teams,
		filter:     NewFilterChain(sport),
		staleAfter: DefaultStaleness,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.normalizer = NewNormalizer(e.now)
	return e
}

// Process handles a batch of raw games sequentially in payload order.
// A failing game is counted as an error and never stops the batch.
func (e *Engine) Process(ctx context.Context, items []json.RawMessage) models.CycleResults {
	var results models.CycleResults

	for i, raw := range items {
		if err := e.processItem(ctx, raw, &results); err != nil {
			results.Errors++
			metrics.RecordGameOutcome(e.sport.Key, "error")
			log.Error().
				Err(err).
				Str("sport", e.sport.Key).
				Int("index", i).
				Msg("Error processing game")
		}
	}

	if results.PlaceholderSkipped > 0 {
		log.Info().
			Str("sport", e.sport.Key).
			Int("skipped", results.PlaceholderSkipped).
			Msg("Skipped placeholder/TBA/old/non-tournament games")
	}

	return results
}

func (e *Engine) processItem(ctx context.Context, raw json.RawMessage, results *models.CycleResults) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing game: %v", r)
		}
	}()

	c, err := e.normalizer.Normalize(raw)
	if err != nil {
		return err
	}

	if reason, ok := e.filter.Check(c); !ok {
		e.reject(c, reason, results)
		return nil
	}

	log.Debug().
		Str("sport", e.sport.Key).
		Str("team1", c.Team1Name).
		Str("team2", c.Team2Name).
		Str("round", c.Round).
		Msg("Processing tournament game")

	outcome, err := e.Upsert(ctx, c)
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeNew:
		results.NewGames++
	case OutcomeUpdated:
		results.UpdatedGames++
	case OutcomeSkipped:
		results.SkippedGames++
	}
	metrics.RecordGameOutcome(e.sport.Key, string(outcome))

	if outcome != OutcomeSkipped {
		results.Errors += e.ensureTeams(ctx, c)
	}
	return nil
}

func (e *Engine) reject(c *Candidate, reason RejectReason, results *models.CycleResults) {
	results.Reject(string(reason))
	metrics.RecordRejection(e.sport.Key, string(reason))

	if reason.IsDataError() {
		results.Errors++
		metrics.RecordGameOutcome(e.sport.Key, "error")
		log.Warn().
			Str("sport", e.sport.Key).
			Str("team1", c.Team1Name).
			Str("team2", c.Team2Name).
			Msg("Skipping game with missing team names")
		return
	}

	results.PlaceholderSkipped++
	metrics.RecordGameOutcome(e.sport.Key, "rejected")
	log.Info().
		Str("sport", e.sport.Key).
		Str("reason", string(reason)).
		Str("team1", c.Team1Name).
		Str("team2", c.Team2Name).
		Str("round", c.Round).
		Time("date", c.GameDay).
		Msg("Skipping game")
}

// Upsert inserts the candidate or patches the stored game with the same key.
// An existing game with unchanged scores is left alone while it is fresh.
// Teams are not touched; Process ensures them after a write.
func (e *Engine) Upsert(ctx context.Context, c *Candidate) (Outcome, error) {
	identifier := c.Identifier()
	game := c.ToGame(e.sport)

	existing, err := e.games.FindByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := e.games.Create(ctx, game); err != nil {
			return "", fmt.Errorf("failed to create game %s: %w", identifier, err)
		}
		log.Info().
			Str("sport", e.sport.Key).
			Str("game", identifier).
			Str("round", c.Round).
			Msg("New game")
		return OutcomeNew, nil

	case err != nil:
		return "", fmt.Errorf("failed to look up game %s: %w", identifier, err)
	}

	if existing.SameScore(c.Team1Score, c.Team2Score) &&
		!existing.LastUpdated.IsZero() &&
		existing.Age(e.now()) < e.staleAfter {
		return OutcomeSkipped, nil
	}

	game.ID = existing.ID
	if err := e.games.Update(ctx, game); err != nil {
		return "", fmt.Errorf("failed to update game %s: %w", identifier, err)
	}
	log.Info().
		Str("sport", e.sport.Key).
		Str("game", identifier).
		Int("team1_score", c.Team1Score).
		Int("team2_score", c.Team2Score).
		Str("state", c.GameState).
		Msg("Updated game")

	return OutcomeUpdated, nil
}

// ensureTeams creates missing team documents and returns how many could not
// be ensured. It never corrects existing ones, and a failure does not fail
// the game.
func (e *Engine) ensureTeams(ctx context.Context, c *Candidate) int {
	failed := 0
	for _, t := range []struct {
		name string
		seed *int
	}{
		{c.Team1Name, c.Team1Seed},
		{c.Team2Name, c.Team2Seed},
	} {
		if err := e.ensureTeam(ctx, t.name, t.seed); err != nil {
			failed++
			metrics.RecordError("engine", "ensure_team")
			log.Error().
				Err(err).
				Str("sport", e.sport.Key).
				Str("team", t.name).
				Msg("Error ensuring team exists")
		}
	}
	return failed
}

func (e *Engine) ensureTeam(ctx context.Context, name string, seed *int) error {
	if e.cache != nil && e.cache.TeamKnown(ctx, e.sport.Key, name) {
		return nil
	}

	_, err := e.teams.FindByName(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		team := models.NewTeam(name, seed)
		if e.sport.ExtendedFields {
			team.Sport = e.sport.Key
		}
		if err := e.teams.Create(ctx, team); err != nil {
			return err
		}
		metrics.RecordTeamCreated(e.sport.Key)
		log.Info().Str("sport", e.sport.Key).Str("team", name).Msg("Created team")
	default:
		return err
	}

	if e.cache != nil {
		e.cache.RememberTeam(ctx, e.sport.Key, name)
	}
	return nil
}
