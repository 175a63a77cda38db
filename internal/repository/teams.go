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

// TeamRepository handles team database operations
type TeamRepository struct {
	db    *Database
	table string
}

func (r *TeamRepository) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

// Create inserts a new team. A concurrent insert of the same name is not an error.
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) (err error) {
	defer observe("create", r.table, time.Now(), &err)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, team_name, coach_name, conference, wins, losses, seed, sport, region, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (team_name) DO NOTHING
		RETURNING last_updated
	`, r.ident())

	id := uuid.NewString()
	err = r.db.Pool.QueryRow(
		ctx, query,
		id, team.TeamName, team.CoachName, team.Conference,
		team.Wins, team.Losses, team.Seed, team.Sport, team.Region,
	).Scan(&team.LastUpdated)

	if errors.Is(err, pgx.ErrNoRows) {
		log.Debug().Str("team", team.TeamName).Msg("Team already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	team.ID = id

	log.Debug().
		Str("id", team.ID).
		Str("team", team.TeamName).
		Msg("Team created")

	return nil
}

// FindByName retrieves a team by exact name
func (r *TeamRepository) FindByName(ctx context.Context, name string) (team *models.Team, err error) {
	defer observe("find", r.table, time.Now(), &err)

	query := fmt.Sprintf(`
		SELECT id, team_name, coach_name, conference, wins, losses, seed, sport, region, last_updated
		FROM %s
		WHERE team_name = $1
	`, r.ident())

	var t models.Team
	err = r.db.Pool.QueryRow(ctx, query, name).Scan(
		&t.ID, &t.TeamName, &t.CoachName, &t.Conference,
		&t.Wins, &t.Losses, &t.Seed, &t.Sport, &t.Region, &t.LastUpdated,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("team %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &t, nil
}

// Count returns the total number of teams
func (r *TeamRepository) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.ident())

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return count, nil
}
