package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps one sport's collections in process. It backs dry runs
// and tests; LastUpdated and log timestamps come from Now.
type MemoryStore struct {
	mu    sync.RWMutex
	sport config.Sport

	games map[string]*models.Game
	teams map[string]*models.Team
	logs  []*models.FetchLog
	setup []*models.SetupLog

	// Now is the store's clock
	Now func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore(sport config.Sport) *MemoryStore {
	return &MemoryStore{
		sport: sport,
		games: make(map[string]*models.Game),
		teams: make(map[string]*models.Team),
		Now:   time.Now,
	}
}

// Games returns the game collection
func (s *MemoryStore) Games() GameStore { return memoryGames{s} }

// Teams returns the team collection
func (s *MemoryStore) Teams() TeamStore { return memoryTeams{s} }

// FetchLogs returns the fetch log collection
func (s *MemoryStore) FetchLogs() FetchLogStore { return memoryLogs{s} }

// SetupLogs returns the setup log collection
func (s *MemoryStore) SetupLogs() SetupLogStore { return memorySetupLogs{s} }

// ProbeCollection accepts any named collection
func (s *MemoryStore) ProbeCollection(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty collection name")
	}
	return ctx.Err()
}

// Health always succeeds
func (s *MemoryStore) Health(ctx context.Context) error { return ctx.Err() }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// GameList returns copies of all games ordered by identifier
func (s *MemoryStore) GameList() []models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameIdentifier < out[j].GameIdentifier })
	return out
}

// TeamList returns copies of all teams ordered by name
func (s *MemoryStore) TeamList() []models.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamName < out[j].TeamName })
	return out
}

// LogList returns copies of all fetch logs in append order
func (s *MemoryStore) LogList() []models.FetchLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FetchLog, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, *l)
	}
	return out
}

// SetupLogList returns copies of all setup logs in append order
func (s *MemoryStore) SetupLogList() []models.SetupLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SetupLog, 0, len(s.setup))
	for _, l := range s.setup {
		out = append(out, *l)
	}
	return out
}

// PutGame stores a game as is, keeping its LastUpdated
func (s *MemoryStore) PutGame(game models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if game.ID == "" {
		game.ID = uuid.NewString()
	}
	s.games[game.ID] = &game
}

type memoryGames struct{ s *MemoryStore }

func (m memoryGames) FindByIdentifier(ctx context.Context, identifier string) (*models.Game, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, g := range m.s.games {
		if g.GameIdentifier == identifier {
			cp := *g
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("game %s: %w", identifier, ErrNotFound)
}

func (m memoryGames) Create(ctx context.Context, game *models.Game) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, g := range m.s.games {
		if g.GameIdentifier == game.GameIdentifier {
			return fmt.Errorf("failed to create game: duplicate identifier %s", game.GameIdentifier)
		}
	}

	game.ID = uuid.NewString()
	game.LastUpdated = m.s.Now()
	cp := *game
	m.s.games[game.ID] = &cp
	return nil
}

func (m memoryGames) Update(ctx context.Context, game *models.Game) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.games[game.ID]; !ok {
		return fmt.Errorf("game %s: %w", game.ID, ErrNotFound)
	}

	game.LastUpdated = m.s.Now()
	cp := *game
	m.s.games[game.ID] = &cp
	return nil
}

func (m memoryGames) AnyInState(ctx context.Context, state string) (bool, error) {
	n, err := m.CountInState(ctx, state)
	return n > 0, err
}

func (m memoryGames) AnyStartingBetween(ctx context.Context, from, to time.Time) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	for _, g := range m.s.games {
		if g.DatePlayed.After(from) && g.DatePlayed.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (m memoryGames) CountInState(ctx context.Context, state string) (int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var n int64
	for _, g := range m.s.games {
		if g.GameState == state {
			n++
		}
	}
	return n, nil
}

func (m memoryGames) Count(ctx context.Context) (int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return int64(len(m.s.games)), nil
}

type memoryTeams struct{ s *MemoryStore }

func (m memoryTeams) FindByName(ctx context.Context, name string) (*models.Team, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	if t, ok := m.s.teams[name]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("team %s: %w", name, ErrNotFound)
}

func (m memoryTeams) Create(ctx context.Context, team *models.Team) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if strings.TrimSpace(team.TeamName) == "" {
		return fmt.Errorf("failed to create team: empty name")
	}
	if _, ok := m.s.teams[team.TeamName]; ok {
		return nil
	}

	team.ID = uuid.NewString()
	team.LastUpdated = m.s.Now()
	cp := *team
	m.s.teams[team.TeamName] = &cp
	return nil
}

func (m memoryTeams) Count(ctx context.Context) (int64, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return int64(len(m.s.teams)), nil
}

type memoryLogs struct{ s *MemoryStore }

func (m memoryLogs) Append(ctx context.Context, entry *models.FetchLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if entry.Sport == "" {
		entry.Sport = m.s.sport.Key
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = m.s.Now()
	cp := *entry
	m.s.logs = append(m.s.logs, &cp)
	return nil
}

type memorySetupLogs struct{ s *MemoryStore }

func (m memorySetupLogs) Append(ctx context.Context, entry *models.SetupLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.Timestamp = m.s.Now()
	cp := *entry
	m.s.setup = append(m.s.setup, &cp)
	return nil
}
