package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sportschatplus/ingestion/internal/config"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSport(t *testing.T) config.Sport {
	sport, err := config.LookupSport("baseball")
	require.NoError(t, err)
	return sport
}

func TestFetchScoreboard_Success(t *testing.T) {
	var gotPath, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"games":[{"game":{"gameState":"pre"}},{"game":{}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "SportsChat+ NCAA Fetcher 1.0", 5*time.Second)
	board, err := c.FetchScoreboard(context.Background(), testSport(t))
	require.NoError(t, err)

	assert.Len(t, board.Games, 2)
	assert.Equal(t, "/scoreboard/baseball/d1", gotPath)
	assert.Equal(t, "SportsChat+ NCAA Fetcher 1.0", gotAgent)
}

func TestFetchScoreboardForDate_Path(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"games":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, WithRateLimit(100))
	board, err := c.FetchScoreboardForDate(context.Background(), testSport(t), time.Date(2025, time.June, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Empty(t, board.Games, "An empty games list is a valid payload")
	assert.Equal(t, "/scoreboard/baseball/d1/2025/06/07", gotPath)
}

func TestFetchScoreboard_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    error
	}{
		{name: "non-2xx", status: http.StatusBadGateway, body: "upstream down", wantStatus: http.StatusBadGateway},
		{name: "malformed body", status: http.StatusOK, body: "<html>", wantStatus: http.StatusOK},
		{name: "missing games", status: http.StatusOK, body: `{"updated_at":"now"}`, wantStatus: http.StatusOK, wantErr: ErrMissingGames},
		{name: "null games", status: http.StatusOK, body: `{"games":null}`, wantStatus: http.StatusOK, wantErr: ErrMissingGames},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "test", 5*time.Second)
			_, err := c.FetchScoreboard(context.Background(), testSport(t))
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe), "Every failure should be a FetchError")
			assert.Equal(t, "baseball", fe.Sport)
			assert.Equal(t, tt.wantStatus, fe.StatusCode)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestFetchScoreboard_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "test", 50*time.Millisecond)
	_, err := c.FetchScoreboard(context.Background(), testSport(t))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode, "Timeouts carry no status code")
}

func TestFetchScoreboard_NoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second)
	_, err := c.FetchScoreboard(context.Background(), testSport(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "Client must issue exactly one request")
}

func TestFetchScoreboard_BreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test", 5*time.Second, WithBreaker("baseball", 2, time.Minute))
	sport := testSport(t)

	for i := 0; i < 2; i++ {
		_, err := c.FetchScoreboard(context.Background(), sport)
		require.Error(t, err)
	}

	_, err := c.FetchScoreboard(context.Background(), sport)
	var fe *FetchError
	require.True(t, errors.As(err, &fe), "Open breaker still reports a FetchError")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "Open breaker should not reach the server")
}
