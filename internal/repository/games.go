package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// GameRepository handles game database operations
type GameRepository struct {
	db    *Database
	table string
}

const gameColumns = `id, game_identifier, team1_name, team2_name, team1_score, team2_score,
	game_state, round, location, date_played, sport, inning, is_elimination, last_updated`

func (r *GameRepository) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var game models.Game
	err := row.Scan(
		&game.ID, &game.GameIdentifier, &game.Team1Name, &game.Team2Name,
		&game.Team1Score, &game.Team2Score, &game.GameState, &game.Round,
		&game.Location, &game.DatePlayed, &game.Sport, &game.Inning,
		&game.IsElimination, &game.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// Create inserts a new game
func (r *GameRepository) Create(ctx context.Context, game *models.Game) (err error) {
	defer observe("create", r.table, time.Now(), &err)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, game_identifier, team1_name, team2_name, team1_score, team2_score,
			game_state, round, location, date_played, sport, inning, is_elimination, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING last_updated
	`, r.ident())

	id := uuid.NewString()
	err = r.db.Pool.QueryRow(
		ctx, query,
		id, game.GameIdentifier, game.Team1Name, game.Team2Name,
		game.Team1Score, game.Team2Score, game.GameState, game.Round,
		game.Location, game.DatePlayed, game.Sport, game.Inning, game.IsElimination,
	).Scan(&game.LastUpdated)

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	game.ID = id

	log.Debug().
		Str("id", game.ID).
		Str("game", game.GameIdentifier).
		Msg("Game created")

	return nil
}

// Update overwrites a game by ID
func (r *GameRepository) Update(ctx context.Context, game *models.Game) (err error) {
	defer observe("update", r.table, time.Now(), &err)

	query := fmt.Sprintf(`
		UPDATE %s SET
			game_identifier = $2,
			team1_name = $3,
			team2_name = $4,
			team1_score = $5,
			team2_score = $6,
			game_state = $7,
			round = $8,
			location = $9,
			date_played = $10,
			sport = $11,
			inning = $12,
			is_elimination = $13,
			last_updated = NOW()
		WHERE id = $1
		RETURNING last_updated
	`, r.ident())

	err = r.db.Pool.QueryRow(
		ctx, query,
		game.ID, game.GameIdentifier, game.Team1Name, game.Team2Name,
		game.Team1Score, game.Team2Score, game.GameState, game.Round,
		game.Location, game.DatePlayed, game.Sport, game.Inning, game.IsElimination,
	).Scan(&game.LastUpdated)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("game %s: %w", game.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	log.Debug().
		Str("id", game.ID).
		Str("game", game.GameIdentifier).
		Int("team1_score", game.Team1Score).
		Int("team2_score", game.Team2Score).
		Msg("Game updated")

	return nil
}

// FindByIdentifier retrieves a game by its natural key
func (r *GameRepository) FindByIdentifier(ctx context.Context, identifier string) (game *models.Game, err error) {
	defer observe("find", r.table, time.Now(), &err)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE game_identifier = $1`, gameColumns, r.ident())

	game, err = scanGame(r.db.Pool.QueryRow(ctx, query, identifier))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// AnyInState reports whether any game has the given state
func (r *GameRepository) AnyInState(ctx context.Context, state string) (found bool, err error) {
	defer observe("exists_state", r.table, time.Now(), &err)

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE game_state = $1)`, r.ident())
	if err = r.db.Pool.QueryRow(ctx, query, state).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to query games by state: %w", err)
	}
	return found, nil
}

// AnyStartingBetween reports whether any game starts strictly between from and to
func (r *GameRepository) AnyStartingBetween(ctx context.Context, from, to time.Time) (found bool, err error) {
	defer observe("exists_window", r.table, time.Now(), &err)

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE date_played > $1 AND date_played < $2)`, r.ident())
	if err = r.db.Pool.QueryRow(ctx, query, from, to).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to query upcoming games: %w", err)
	}
	return found, nil
}

// CountInState returns the number of games with the given state
func (r *GameRepository) CountInState(ctx context.Context, state string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE game_state = $1`, r.ident())

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, state).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games by state: %w", err)
	}
	return count, nil
}

// Count returns the total number of games
func (r *GameRepository) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.ident())

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}
