package repository

import (
	"context"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FetchLogRepository appends fetch cycle logs
type FetchLogRepository struct {
	db    *Database
	table string
}

// Append inserts one fetch log
func (r *FetchLogRepository) Append(ctx context.Context, entry *models.FetchLog) (err error) {
	defer observe("append", r.table, time.Now(), &err)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, run_id, sport, results, error, duration_ms, fetch_count, timestamp, last_fetch_time,
			type, status, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8, $9, $10, $11)
		RETURNING timestamp
	`, pgx.Identifier{r.table}.Sanitize())

	id := uuid.NewString()
	err = r.db.Pool.QueryRow(
		ctx, query,
		id, entry.RunID, entry.Sport, entry.Results, entry.Error,
		entry.DurationMS, entry.FetchCount, entry.LastFetchTime,
		entry.Type, entry.Status, entry.Message,
	).Scan(&entry.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to append fetch log: %w", err)
	}
	entry.ID = id

	return nil
}

// SetupLogRepository appends readiness run logs
type SetupLogRepository struct {
	db    *Database
	table string
}

// Append inserts one setup log
func (r *SetupLogRepository) Append(ctx context.Context, entry *models.SetupLog) (err error) {
	defer observe("append", r.table, time.Now(), &err)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, type, sport, tournament_start, collections, checks, seeded,
			ready, setup_time_ms, next_steps, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING timestamp
	`, pgx.Identifier{r.table}.Sanitize())

	id := uuid.NewString()
	err = r.db.Pool.QueryRow(
		ctx, query,
		id, entry.Type, entry.Sport, entry.TournamentStart, entry.Collections,
		entry.Checks, entry.Seeded, entry.Ready, entry.SetupTimeMS, entry.NextSteps,
	).Scan(&entry.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to append setup log: %w", err)
	}
	entry.ID = id

	return nil
}
