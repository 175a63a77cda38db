package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/metrics"
	"sportschatplus/ingestion/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrMissingGames is returned when a response body has no games list
var ErrMissingGames = errors.New("response has no games list")

// FetchError is returned for every failed scoreboard request
type FetchError struct {
	Sport      string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s scoreboard: status %d: %v", e.Sport, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s scoreboard: %v", e.Sport, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client is the NCAA scoreboard API client.
// It never retries; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithBreaker trips the client open after maxFailures consecutive failures
func WithBreaker(name string, maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("NCAA API circuit breaker state changed")
				metrics.RecordBreakerState(name, int(to))
			},
		})
	}
}

// WithRateLimit paces requests to perSecond with a burst of one
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a new NCAA API client
func NewClient(baseURL, userAgent string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchScoreboard fetches the sport's live tournament scoreboard
func (c *Client) FetchScoreboard(ctx context.Context, sport config.Sport) (*models.Scoreboard, error) {
	url := fmt.Sprintf("%s/scoreboard/%s", c.baseURL, sport.ScoreboardPath)
	return c.fetch(ctx, sport.Key, url)
}

// FetchScoreboardForDate fetches the sport's scoreboard for one calendar day
func (c *Client) FetchScoreboardForDate(ctx context.Context, sport config.Sport, day time.Time) (*models.Scoreboard, error) {
	url := fmt.Sprintf("%s/scoreboard/%s/%s", c.baseURL, sport.DatedScoreboardPath, day.Format("2006/01/02"))
	return c.fetch(ctx, sport.Key, url)
}

func (c *Client) fetch(ctx context.Context, sport, url string) (*models.Scoreboard, error) {
	start := time.Now()

	board, err := c.execute(ctx, sport, url)

	status := "success"
	if err != nil {
		status = "error"
		metrics.RecordError("client", "fetch")
	}
	metrics.RecordAPICall(sport, status, time.Since(start).Seconds())

	return board, err
}

func (c *Client) execute(ctx context.Context, sport, url string) (*models.Scoreboard, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Sport: sport, URL: url, Err: err}
		}
	}

	if c.breaker == nil {
		return c.get(ctx, sport, url)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, sport, url)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		// Open or half-open rejection from the breaker itself
		return nil, &FetchError{Sport: sport, URL: url, Err: err}
	}
	return result.(*models.Scoreboard), nil
}

// get performs one GET request against the scoreboard API
func (c *Client) get(ctx context.Context, sport, url string) (*models.Scoreboard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Sport: sport, URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	log.Debug().
		Str("url", url).
		Str("method", req.Method).
		Msg("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Sport: sport, URL: url, Err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Sport: sport, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Sport:      sport,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}

	var board models.Scoreboard
	if err := json.Unmarshal(body, &board); err != nil {
		return nil, &FetchError{Sport: sport, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal scoreboard: %w", err)}
	}
	if board.Games == nil {
		return nil, &FetchError{Sport: sport, URL: url, StatusCode: resp.StatusCode, Err: ErrMissingGames}
	}

	log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("size", len(body)).
		Int("games", len(board.Games)).
		Msg("API request successful")

	return &board, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
