package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/metrics"
	"sportschatplus/ingestion/internal/models"
)

// ErrNotFound is returned when a lookup matches no document
var ErrNotFound = errors.New("not found")

// GameStore persists game documents for one sport
type GameStore interface {
	// FindByIdentifier returns the game with the given natural key or ErrNotFound
	FindByIdentifier(ctx context.Context, identifier string) (*models.Game, error)
	// Create inserts a game, assigning ID and LastUpdated
	Create(ctx context.Context, game *models.Game) error
	// Update overwrites the game with game.ID, refreshing LastUpdated
	Update(ctx context.Context, game *models.Game) error
	// AnyInState reports whether at least one game has the given state
	AnyInState(ctx context.Context, state string) (bool, error)
	// AnyStartingBetween reports whether a game's DatePlayed lies strictly between from and to
	AnyStartingBetween(ctx context.Context, from, to time.Time) (bool, error)
	CountInState(ctx context.Context, state string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// TeamStore persists team documents for one sport
type TeamStore interface {
	// FindByName returns the team with an exact name match or ErrNotFound
	FindByName(ctx context.Context, name string) (*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	Count(ctx context.Context) (int64, error)
}

// FetchLogStore appends fetch cycle logs
type FetchLogStore interface {
	Append(ctx context.Context, entry *models.FetchLog) error
}

// SetupLogStore appends readiness run logs
type SetupLogStore interface {
	Append(ctx context.Context, entry *models.SetupLog) error
}

// Store is a document store scoped to one sport's collections
type Store interface {
	Games() GameStore
	Teams() TeamStore
	FetchLogs() FetchLogStore
	SetupLogs() SetupLogStore
	// ProbeCollection reads at most one document of the named collection.
	// An empty collection is readable.
	ProbeCollection(ctx context.Context, name string) error
	Health(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend for the given sport
func Open(ctx context.Context, cfg *config.Config, sport config.Sport) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		return NewFirestoreStore(ctx, FirestoreConfig{
			ProjectID:   cfg.FirebaseProjectID,
			ClientEmail: cfg.FirebaseClientEmail,
			PrivateKey:  cfg.FirebaseKey(),
		}, sport)
	case config.BackendPostgres:
		db, err := NewDatabase(ctx, Config{
			Host:     cfg.DatabaseHost,
			Port:     fmt.Sprintf("%d", cfg.DatabasePort),
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		}, sport)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case config.BackendMemory:
		return NewMemoryStore(sport), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// observe records the outcome of one store operation; call it deferred with
// a pointer to the named error result
func observe(operation, collection string, start time.Time, errp *error) {
	status := "success"
	if err := *errp; err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.RecordStoreOperation(operation, collection, status, time.Since(start).Seconds())
}
