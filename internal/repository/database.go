package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Database holds the PostgreSQL connection pool and provides access to repositories.
// Each collection of the sport maps to one table of the same name.
type Database struct {
	Pool  *pgxpool.Pool
	sport config.Sport

	// Repositories
	GameRepo     *GameRepository
	TeamRepo     *TeamRepository
	FetchLogRepo *FetchLogRepository
	SetupLogRepo *SetupLogRepository
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDatabase creates a new database connection pool and initializes repositories
func NewDatabase(ctx context.Context, cfg Config, sport config.Sport) (*Database, error) {
	// Build connection string
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	// Configure connection pool
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Single sequential writer per sport
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Str("sport", sport.Key).
		Msg("Successfully connected to database")

	db := &Database{
		Pool:  pool,
		sport: sport,
	}

	db.GameRepo = &GameRepository{db: db, table: sport.GamesCollection}
	db.TeamRepo = &TeamRepository{db: db, table: sport.TeamsCollection}
	db.FetchLogRepo = &FetchLogRepository{db: db, table: sport.FetchLogsCollection}
	db.SetupLogRepo = &SetupLogRepository{db: db, table: sport.SetupLogsCollection}

	return db, nil
}

// EnsureSchema creates the sport's tables if they do not exist
func (db *Database) EnsureSchema(ctx context.Context) error {
	games := pgx.Identifier{db.sport.GamesCollection}.Sanitize()
	teams := pgx.Identifier{db.sport.TeamsCollection}.Sanitize()
	logs := pgx.Identifier{db.sport.FetchLogsCollection}.Sanitize()
	setup := pgx.Identifier{db.sport.SetupLogsCollection}.Sanitize()

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id              TEXT PRIMARY KEY,
				game_identifier TEXT NOT NULL UNIQUE,
				team1_name      TEXT NOT NULL,
				team2_name      TEXT NOT NULL,
				team1_score     INTEGER NOT NULL DEFAULT 0,
				team2_score     INTEGER NOT NULL DEFAULT 0,
				game_state      TEXT NOT NULL,
				round           TEXT NOT NULL,
				location        TEXT NOT NULL,
				date_played     TIMESTAMPTZ NOT NULL,
				sport           TEXT NOT NULL DEFAULT '',
				inning          INTEGER NOT NULL DEFAULT 0,
				is_elimination  BOOLEAN NOT NULL DEFAULT FALSE,
				last_updated    TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, games),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (game_state)`,
			pgx.Identifier{db.sport.GamesCollection + "_game_state_idx"}.Sanitize(), games),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (date_played)`,
			pgx.Identifier{db.sport.GamesCollection + "_date_played_idx"}.Sanitize(), games),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id           TEXT PRIMARY KEY,
				team_name    TEXT NOT NULL UNIQUE,
				coach_name   TEXT NOT NULL DEFAULT '',
				conference   TEXT NOT NULL DEFAULT '',
				wins         INTEGER NOT NULL DEFAULT 0,
				losses       INTEGER NOT NULL DEFAULT 0,
				seed         INTEGER,
				sport        TEXT NOT NULL DEFAULT '',
				region       TEXT NOT NULL DEFAULT '',
				last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, teams),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id              TEXT PRIMARY KEY,
				run_id          TEXT NOT NULL,
				sport           TEXT NOT NULL,
				results         JSONB,
				error           TEXT NOT NULL DEFAULT '',
				duration_ms     BIGINT NOT NULL,
				fetch_count     BIGINT NOT NULL,
				timestamp       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_fetch_time TIMESTAMPTZ,
				type            TEXT NOT NULL DEFAULT '',
				status          TEXT NOT NULL DEFAULT '',
				message         TEXT NOT NULL DEFAULT ''
			)`, logs),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id               TEXT PRIMARY KEY,
				type             TEXT NOT NULL,
				sport            TEXT NOT NULL,
				tournament_start TIMESTAMPTZ NOT NULL,
				collections      TEXT[] NOT NULL,
				checks           JSONB NOT NULL,
				seeded           JSONB,
				ready            BOOLEAN NOT NULL,
				setup_time_ms    BIGINT NOT NULL,
				next_steps       TEXT[] NOT NULL,
				timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, setup),
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	log.Debug().Str("sport", db.sport.Key).Msg("Database schema ensured")
	return nil
}

// Games returns the game repository
func (db *Database) Games() GameStore { return db.GameRepo }

// Teams returns the team repository
func (db *Database) Teams() TeamStore { return db.TeamRepo }

// FetchLogs returns the fetch log repository
func (db *Database) FetchLogs() FetchLogStore { return db.FetchLogRepo }

// SetupLogs returns the setup log repository
func (db *Database) SetupLogs() SetupLogStore { return db.SetupLogRepo }

// ProbeCollection reads at most one row of the collection's table
func (db *Database) ProbeCollection(ctx context.Context, name string) (err error) {
	defer observe("probe", name, time.Now(), &err)

	var one int
	query := fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, pgx.Identifier{name}.Sanitize())
	err = db.Pool.QueryRow(ctx, query).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read table %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection pool
func (db *Database) Close() error {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
	return nil
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}
