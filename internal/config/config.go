package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Config holds all application configuration
type Config struct {
	// Application
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"firestore"`

	// Firebase service account
	FirebaseProjectID   string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseClientEmail string `envconfig:"FIREBASE_CLIENT_EMAIL"`
	FirebasePrivateKey  string `envconfig:"FIREBASE_PRIVATE_KEY"`

	// Database (postgres backend)
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"sportschat"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"sportschat_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Caching TTL (in seconds)
	CacheTTLTeams int `envconfig:"CACHE_TTL_TEAMS" default:"86400"` // 24 hours

	// NCAA API
	NCAABaseURL   string        `envconfig:"NCAA_BASE_URL" default:"https://ncaa-api.henrygd.me"`
	NCAATimeout   time.Duration `envconfig:"NCAA_TIMEOUT" default:"30s"`
	NCAAUserAgent string        `envconfig:"NCAA_USER_AGENT" default:"SportsChat+ NCAA Fetcher 1.0"`
	NCAARateLimit float64       `envconfig:"NCAA_RATE_LIMIT" default:"5"`

	// Circuit breaker around the NCAA API
	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"60s"`

	// Polling tiers
	LiveInterval       time.Duration `envconfig:"LIVE_INTERVAL" default:"2m"`
	ImminentInterval   time.Duration `envconfig:"IMMINENT_INTERVAL" default:"10m"`
	SeasonInterval     time.Duration `envconfig:"SEASON_INTERVAL" default:"30m"`
	OffSeasonInterval  time.Duration `envconfig:"OFFSEASON_INTERVAL" default:"4h"`
	RetryInterval      time.Duration `envconfig:"RETRY_INTERVAL" default:"5m"`
	ImminentWindow     time.Duration `envconfig:"IMMINENT_WINDOW" default:"1h"`
	StalenessThreshold time.Duration `envconfig:"STALENESS_THRESHOLD" default:"5m"`

	// Per-sport overrides, applied to the sport this process runs
	TournamentStart string `envconfig:"TOURNAMENT_START"`
	RoundAllowList  string `envconfig:"ROUND_ALLOWLIST"`

	// Scheduler
	StatsRefreshCron string `envconfig:"STATS_REFRESH_CRON" default:"0 * * * *"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required")
		}
		if c.FirebaseClientEmail == "" {
			return fmt.Errorf("FIREBASE_CLIENT_EMAIL is required")
		}
		if c.FirebasePrivateKey == "" {
			return fmt.Errorf("FIREBASE_PRIVATE_KEY is required")
		}
	case BackendPostgres:
		if c.DatabasePassword == "" {
			return fmt.Errorf("DATABASE_PASSWORD is required")
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.TournamentStart != "" {
		if _, err := time.Parse(time.DateOnly, c.TournamentStart); err != nil {
			return fmt.Errorf("TOURNAMENT_START must be YYYY-MM-DD: %w", err)
		}
	}

	for name, d := range map[string]time.Duration{
		"LIVE_INTERVAL":      c.LiveInterval,
		"IMMINENT_INTERVAL":  c.ImminentInterval,
		"SEASON_INTERVAL":    c.SeasonInterval,
		"OFFSEASON_INTERVAL": c.OffSeasonInterval,
		"RETRY_INTERVAL":     c.RetryInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// FirebaseKey returns the service account private key with escaped newlines expanded
func (c *Config) FirebaseKey() string {
	return strings.ReplaceAll(c.FirebasePrivateKey, `\n`, "\n")
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Intervals returns the polling tier table
func (c *Config) Intervals() Intervals {
	return Intervals{
		Live:           c.LiveInterval,
		Imminent:       c.ImminentInterval,
		Season:         c.SeasonInterval,
		OffSeason:      c.OffSeasonInterval,
		Retry:          c.RetryInterval,
		ImminentWindow: c.ImminentWindow,
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
