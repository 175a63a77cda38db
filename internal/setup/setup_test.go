package setup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"sportschatplus/ingestion/internal/client"
	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/models"
	"sportschatplus/ingestion/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	games int
	err   error
	calls int
}

func (f *stubFetcher) FetchScoreboard(ctx context.Context, sport config.Sport) (*models.Scoreboard, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	board := &models.Scoreboard{}
	for i := 0; i < f.games; i++ {
		board.Games = append(board.Games, json.RawMessage(`{}`))
	}
	return board, nil
}

type countingProcessor struct{ seen int }

func (p *countingProcessor) Process(ctx context.Context, items []json.RawMessage) models.CycleResults {
	p.seen += len(items)
	return models.CycleResults{NewGames: len(items)}
}

// unreadableStore fails reads of one collection
type unreadableStore struct {
	*repository.MemoryStore
	collection string
}

func (s unreadableStore) ProbeCollection(ctx context.Context, name string) error {
	if name == s.collection {
		return errors.New("permission denied")
	}
	return s.MemoryStore.ProbeCollection(ctx, name)
}

type downStore struct{ *repository.MemoryStore }

func (downStore) Health(ctx context.Context) error { return errors.New("connection refused") }

func newTestRunner(t *testing.T, store repository.Store, fetcher Fetcher, processor Processor, opts ...Option) *Runner {
	t.Helper()
	sport, err := config.LookupSport("baseball")
	require.NoError(t, err)

	now := time.Date(2025, time.May, 29, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewRunner(sport, store, fetcher, processor, opts...)
}

func newMemoryStore(t *testing.T) *repository.MemoryStore {
	sport, err := config.LookupSport("baseball")
	require.NoError(t, err)
	return repository.NewMemoryStore(sport)
}

func TestRunner_SeedsAndWritesBothLogs(t *testing.T) {
	store := newMemoryStore(t)
	fetcher := &stubFetcher{games: 25}
	processor := &countingProcessor{}

	report, err := newTestRunner(t, store, fetcher, processor).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultSeedLimit, processor.seen, "Seeding stops at the limit")
	assert.True(t, report.Ready)
	assert.Equal(t, config.AllCollections(), report.Collections)
	assert.Len(t, report.Checks, len(config.AllCollections()))
	assert.Empty(t, report.FailedChecks())
	require.NotNil(t, report.Seeded)
	assert.Equal(t, DefaultSeedLimit, report.Seeded.NewGames)

	setupLogs := store.SetupLogList()
	require.Len(t, setupLogs, 1)
	assert.Equal(t, models.SetupTypeTournamentReady, setupLogs[0].Type)
	assert.Equal(t, "baseball", setupLogs[0].Sport)
	assert.NotEmpty(t, setupLogs[0].NextSteps)

	fetchLogs := store.LogList()
	require.Len(t, fetchLogs, 1)
	assert.Equal(t, models.FetchTypeInitialization, fetchLogs[0].Type)
	assert.Equal(t, models.FetchStatusReady, fetchLogs[0].Status)
	assert.Contains(t, fetchLogs[0].Message, "seeded with 10")
	assert.False(t, fetchLogs[0].Failed())
}

func TestRunner_ScoreboardNotPublishedYet(t *testing.T) {
	store := newMemoryStore(t)
	fetcher := &stubFetcher{err: &client.FetchError{Sport: "baseball", StatusCode: http.StatusNotFound, Err: errors.New("not found")}}
	processor := &countingProcessor{}

	report, err := newTestRunner(t, store, fetcher, processor).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Ready, "Missing scoreboard does not block readiness")
	assert.Nil(t, report.Seeded)
	assert.Zero(t, processor.seen)

	fetchLogs := store.LogList()
	require.Len(t, fetchLogs, 1)
	assert.Equal(t, models.FetchStatusReady, fetchLogs[0].Status)
	assert.Contains(t, fetchLogs[0].Message, "not available yet")
}

func TestRunner_SeedFetchFailureIsNotFatal(t *testing.T) {
	store := newMemoryStore(t)
	fetcher := &stubFetcher{err: &client.FetchError{Sport: "baseball", StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}}

	report, err := newTestRunner(t, store, fetcher, &countingProcessor{}).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Ready)
	require.Len(t, store.LogList(), 1)
	assert.Contains(t, store.LogList()[0].Message, "seed fetch failed")
}

func TestRunner_UnreadableCollection(t *testing.T) {
	mem := newMemoryStore(t)
	store := unreadableStore{MemoryStore: mem, collection: config.SetupLogsCollection}

	report, err := newTestRunner(t, store, &stubFetcher{}, &countingProcessor{}).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Ready)
	failed := report.FailedChecks()
	require.Len(t, failed, 1)
	assert.Equal(t, config.SetupLogsCollection, failed[0].Name)
	assert.Equal(t, "permission denied", failed[0].Error)

	require.Len(t, mem.SetupLogList(), 1)
	fetchLogs := mem.LogList()
	require.Len(t, fetchLogs, 1)
	assert.Equal(t, models.FetchStatusNotReady, fetchLogs[0].Status)
	assert.Equal(t, "1 collection(s) not readable", fetchLogs[0].Message)
}

func TestRunner_HealthFailureStops(t *testing.T) {
	mem := newMemoryStore(t)
	fetcher := &stubFetcher{games: 3}

	report, err := newTestRunner(t, downStore{mem}, fetcher, &countingProcessor{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)

	assert.Zero(t, fetcher.calls)
	assert.Empty(t, mem.SetupLogList())
	assert.Empty(t, mem.LogList())
}

func TestRunner_SeedingDisabled(t *testing.T) {
	store := newMemoryStore(t)
	fetcher := &stubFetcher{games: 3}

	report, err := newTestRunner(t, store, fetcher, &countingProcessor{},
		WithSeedLimit(0),
		WithCollections("games", "teams"),
	).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, fetcher.calls)
	assert.Nil(t, report.Seeded)
	assert.Len(t, report.Checks, 2)
}
