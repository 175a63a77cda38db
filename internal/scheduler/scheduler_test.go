package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/ingest"
	"sportschatplus/ingestion/internal/models"
	"sportschatplus/ingestion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIntervals = config.Intervals{
	Live:           2 * time.Minute,
	Imminent:       10 * time.Minute,
	Season:         30 * time.Minute,
	OffSeason:      4 * time.Hour,
	Retry:          5 * time.Minute,
	ImminentWindow: time.Hour,
}

type fakeFetcher struct {
	mu     sync.Mutex
	board  *models.Scoreboard
	err    error
	calls  int
	called chan struct{}
	block  chan struct{}
}

func (f *fakeFetcher) FetchScoreboard(ctx context.Context, sport config.Sport) (*models.Scoreboard, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.called != nil {
		select {
		case f.called <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.board, f.err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type nopProcessor struct{}

func (nopProcessor) Process(ctx context.Context, items []json.RawMessage) models.CycleResults {
	return models.CycleResults{SkippedGames: len(items)}
}

type failingLogs struct{}

func (failingLogs) Append(ctx context.Context, entry *models.FetchLog) error {
	return errors.New("permission denied")
}

type failingLogStore struct{ *repository.MemoryStore }

func (f failingLogStore) FetchLogs() repository.FetchLogStore { return failingLogs{} }

type failingTierGames struct{ repository.GameStore }

func (failingTierGames) AnyInState(ctx context.Context, state string) (bool, error) {
	return false, errors.New("deadline exceeded")
}

type failingTierStore struct{ *repository.MemoryStore }

func (f failingTierStore) Games() repository.GameStore {
	return failingTierGames{f.MemoryStore.Games()}
}

func baseballSport(t *testing.T) config.Sport {
	sport, err := config.LookupSport("baseball")
	require.NoError(t, err)
	return sport
}

func liveBoard(t *testing.T) *models.Scoreboard {
	raw, err := json.Marshal(map[string]any{
		"game": map[string]any{
			"away":         map[string]any{"names": map[string]any{"full": "Duke"}, "score": "54"},
			"home":         map[string]any{"names": map[string]any{"full": "Houston"}, "score": "52"},
			"gameState":    "in-progress",
			"bracketRound": "Regional",
			"startDate":    "06-01-2025",
			"venue":        map[string]any{"name": "Arena X"},
		},
	})
	require.NoError(t, err)
	return &models.Scoreboard{Games: []json.RawMessage{raw}}
}

func TestSelectTier(t *testing.T) {
	sport := baseballSport(t)
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		games    []models.Game
		now      time.Time
		wantTier Tier
		want     time.Duration
	}{
		{
			name:     "live game wins over everything",
			games:    []models.Game{{GameIdentifier: "a", GameState: "in-progress"}, {GameIdentifier: "b", GameState: "pre", DatePlayed: now.Add(30 * time.Minute)}},
			now:      now,
			wantTier: TierLive,
			want:     2 * time.Minute,
		},
		{
			name:     "game starting within the hour",
			games:    []models.Game{{GameIdentifier: "b", GameState: "pre", DatePlayed: now.Add(30 * time.Minute)}},
			now:      now,
			wantTier: TierImminent,
			want:     10 * time.Minute,
		},
		{
			name:     "game starting later is not imminent",
			games:    []models.Game{{GameIdentifier: "c", GameState: "pre", DatePlayed: now.Add(2 * time.Hour)}},
			now:      now,
			wantTier: TierSeason,
			want:     30 * time.Minute,
		},
		{
			name:     "game already started is not imminent",
			games:    []models.Game{{GameIdentifier: "d", GameState: "final", DatePlayed: now.Add(-10 * time.Minute)}},
			now:      now,
			wantTier: TierSeason,
			want:     30 * time.Minute,
		},
		{
			name:     "off season",
			now:      time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC),
			wantTier: TierOffSeason,
			want:     4 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore(sport)
			for _, g := range tt.games {
				store.PutGame(g)
			}
			s := NewScheduler(sport, testIntervals, &fakeFetcher{}, nopProcessor{}, store)

			tier, interval, err := s.SelectTier(context.Background(), tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.want, interval)
		})
	}
}

func TestRunCycle_LiveGameSchedulesLiveInterval(t *testing.T) {
	sport := baseballSport(t)
	now := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	clk := func() time.Time { return now }

	store := repository.NewMemoryStore(sport)
	store.Now = clk
	engine := ingest.NewEngine(sport, store.Games(), store.Teams(), ingest.WithClock(clk))
	s := NewScheduler(sport, testIntervals, &fakeFetcher{board: liveBoard(t)}, engine, store, WithClock(clk))

	next := s.RunCycle(context.Background())
	assert.Equal(t, 2*time.Minute, next)

	require.Len(t, store.GameList(), 1)
	assert.Len(t, store.TeamList(), 2)

	logs := store.LogList()
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Error)
	require.NotNil(t, logs[0].Results)
	assert.Equal(t, 1, logs[0].Results.NewGames)
	assert.Equal(t, int64(1), logs[0].FetchCount)
	assert.NotEmpty(t, logs[0].RunID)
	require.NotNil(t, logs[0].LastFetchTime)
	assert.Equal(t, now, *logs[0].LastFetchTime)

	st := s.Status()
	assert.Equal(t, string(TierLive), st.Tier)
	assert.Equal(t, int64(1), st.FetchCount)
}

func TestRunCycle_FetchFailureUsesRetry(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)
	s := NewScheduler(sport, testIntervals, &fakeFetcher{err: errors.New("HTTP 503")}, nopProcessor{}, store)

	next := s.RunCycle(context.Background())
	assert.Equal(t, 5*time.Minute, next)

	logs := store.LogList()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Error, "HTTP 503")
	assert.Nil(t, logs[0].Results)
	assert.Nil(t, logs[0].LastFetchTime)
	assert.Equal(t, "HTTP 503", s.Status().LastError)
}

func TestRunCycle_TierFailureUsesRetry(t *testing.T) {
	sport := baseballSport(t)
	store := failingTierStore{repository.NewMemoryStore(sport)}
	s := NewScheduler(sport, testIntervals, &fakeFetcher{board: &models.Scoreboard{}}, nopProcessor{}, store)

	assert.Equal(t, 5*time.Minute, s.RunCycle(context.Background()))
	assert.Len(t, store.LogList(), 1)
}

func TestRunCycle_LogFailureIsSwallowed(t *testing.T) {
	sport := baseballSport(t)
	now := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	clk := func() time.Time { return now }

	mem := repository.NewMemoryStore(sport)
	store := failingLogStore{mem}
	engine := ingest.NewEngine(sport, store.Games(), store.Teams(), ingest.WithClock(clk))
	s := NewScheduler(sport, testIntervals, &fakeFetcher{board: liveBoard(t)}, engine, store, WithClock(clk))

	assert.Equal(t, 2*time.Minute, s.RunCycle(context.Background()))
	assert.Len(t, mem.GameList(), 1)
}

type panickingProcessor struct{}

func (panickingProcessor) Process(ctx context.Context, items []json.RawMessage) models.CycleResults {
	panic("boom")
}

func TestRunCycle_PanicUsesRetry(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)
	s := NewScheduler(sport, testIntervals, &fakeFetcher{board: &models.Scoreboard{}}, panickingProcessor{}, store)

	assert.Equal(t, 5*time.Minute, s.RunCycle(context.Background()))

	logs := store.LogList()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Error, "boom")
}

func TestRun_FirstCycleImmediate(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)
	fetcher := &fakeFetcher{board: &models.Scoreboard{}, called: make(chan struct{}, 1)}
	s := NewScheduler(sport, testIntervals, fetcher, nopProcessor{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-fetcher.called:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not start")
	}

	require.Eventually(t, func() bool { return s.Status().NextFetchTime != nil }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.Status().Running)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Equal(t, 1, fetcher.Calls())
	assert.False(t, s.Status().Running)
}

func TestRun_InFlightCycleCompletesOnShutdown(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)
	fetcher := &fakeFetcher{
		board:  &models.Scoreboard{},
		called: make(chan struct{}, 1),
		block:  make(chan struct{}),
	}
	s := NewScheduler(sport, testIntervals, fetcher, nopProcessor{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-fetcher.called
	cancel()
	close(fetcher.block)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	logs := store.LogList()
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].Error)
	assert.Nil(t, s.Status().NextFetchTime)
}

func TestRun_StopAndAlreadyRunning(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)
	fetcher := &fakeFetcher{board: &models.Scoreboard{}, called: make(chan struct{}, 1)}
	s := NewScheduler(sport, testIntervals, fetcher, nopProcessor{}, store)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	<-fetcher.called

	require.Eventually(t, func() bool { return s.Status().Running }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)

	s.Stop()
	s.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRefreshStats(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)
	store.PutGame(models.Game{GameIdentifier: "a", GameState: "in-progress"})
	store.PutGame(models.Game{GameIdentifier: "b", GameState: "final"})

	s := NewScheduler(sport, testIntervals, &fakeFetcher{}, nopProcessor{}, store)
	require.NoError(t, s.RefreshStats(context.Background()))
}

type panickingTierGames struct{ repository.GameStore }

func (panickingTierGames) AnyInState(ctx context.Context, state string) (bool, error) {
	panic("nil snapshot")
}

type panickingTierStore struct{ *repository.MemoryStore }

func (p panickingTierStore) Games() repository.GameStore {
	return panickingTierGames{p.MemoryStore.Games()}
}

func TestRunCycle_PanicAfterLogWritesOneEntry(t *testing.T) {
	sport := baseballSport(t)
	store := panickingTierStore{repository.NewMemoryStore(sport)}
	s := NewScheduler(sport, testIntervals, &fakeFetcher{board: &models.Scoreboard{}}, nopProcessor{}, store)

	assert.Equal(t, 5*time.Minute, s.RunCycle(context.Background()))

	logs := store.LogList()
	require.Len(t, logs, 1, "A cycle appends exactly one fetch log")
	assert.Equal(t, int64(1), logs[0].FetchCount)
	assert.Contains(t, s.Status().LastError, "nil snapshot")

	assert.Equal(t, 5*time.Minute, s.RunCycle(context.Background()))
	logs = store.LogList()
	require.Len(t, logs, 2)
	assert.Equal(t, int64(2), logs[1].FetchCount)
}

func TestRun_ShutdownBeforeFirstCycle(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)

	t.Run("cancelled context", func(t *testing.T) {
		fetcher := &fakeFetcher{board: &models.Scoreboard{}}
		s := NewScheduler(sport, testIntervals, fetcher, nopProcessor{}, store)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, s.Run(ctx))
		assert.Zero(t, fetcher.Calls())
	})

	t.Run("stopped", func(t *testing.T) {
		fetcher := &fakeFetcher{board: &models.Scoreboard{}}
		s := NewScheduler(sport, testIntervals, fetcher, nopProcessor{}, store)
		s.Stop()

		require.NoError(t, s.Run(context.Background()))
		assert.Zero(t, fetcher.Calls())
	})

	assert.Empty(t, store.LogList())
}

func TestRun_RearmsWithSelectedTier(t *testing.T) {
	sport := baseballSport(t)
	now := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	clk := func() time.Time { return now }

	store := repository.NewMemoryStore(sport)
	store.Now = clk
	engine := ingest.NewEngine(sport, store.Games(), store.Teams(), ingest.WithClock(clk))

	intervals := testIntervals
	intervals.Live = 5 * time.Millisecond
	fetcher := &fakeFetcher{board: liveBoard(t)}
	s := NewScheduler(sport, intervals, fetcher, engine, store, WithClock(clk))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return fetcher.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"A live game keeps the loop on the live interval")
	assert.Equal(t, string(TierLive), s.Status().Tier)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Len(t, store.GameList(), 1)
	assert.GreaterOrEqual(t, len(store.LogList()), 3)
}

func TestRun_FetchFailureRearmsWithRetry(t *testing.T) {
	sport := baseballSport(t)
	store := repository.NewMemoryStore(sport)

	intervals := testIntervals
	intervals.Retry = 5 * time.Millisecond
	fetcher := &fakeFetcher{err: errors.New("HTTP 503")}
	s := NewScheduler(sport, intervals, fetcher, nopProcessor{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return fetcher.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	for _, l := range store.LogList() {
		assert.Equal(t, "HTTP 503", l.Error)
	}
}
