package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the tournament poller

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_api_calls_total",
			Help: "Total number of NCAA API calls",
		},
		[]string{"sport", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sportschat_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sport"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_api_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"sport"},
	)

	// Store metrics
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "collection", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sportschat_store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportschat_cache_hits_total",
			Help: "Total number of team cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportschat_cache_misses_total",
			Help: "Total number of team cache misses",
		},
	)

	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_fetch_cycles_total",
			Help: "Total number of fetch cycles",
		},
		[]string{"sport", "status"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sportschat_fetch_cycle_duration_seconds",
			Help:    "Duration of fetch cycles in seconds",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"sport"},
	)

	GameOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_game_outcomes_total",
			Help: "Games processed by outcome (new, updated, skipped, rejected, error)",
		},
		[]string{"sport", "outcome"},
	)

	FilterRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_filter_rejections_total",
			Help: "Candidates rejected by the game filter chain",
		},
		[]string{"sport", "reason"},
	)

	TeamsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_teams_created_total",
			Help: "Team documents created on first sighting",
		},
		[]string{"sport"},
	)

	// Scheduler metrics
	PollTier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_poll_tier",
			Help: "Current polling tier (1 for the active tier)",
		},
		[]string{"sport", "tier"},
	)

	NextIntervalSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_next_interval_seconds",
			Help: "Delay before the next fetch cycle",
		},
		[]string{"sport"},
	)

	LastSuccessfulCycle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_last_successful_cycle_timestamp",
			Help: "Timestamp of last successful fetch cycle",
		},
		[]string{"sport"},
	)

	GamesStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_games_stored",
			Help: "Number of game documents in the store",
		},
		[]string{"sport"},
	)

	TeamsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_teams_stored",
			Help: "Number of team documents in the store",
		},
		[]string{"sport"},
	)

	LiveGames = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sportschat_live_games",
			Help: "Number of games currently in progress",
		},
		[]string{"sport"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportschat_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sportschat_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(sport, status string, duration float64) {
	APICallsTotal.WithLabelValues(sport, status).Inc()
	APICallDuration.WithLabelValues(sport).Observe(duration)
}

// RecordBreakerState records the circuit breaker state
func RecordBreakerState(sport string, state int) {
	BreakerState.WithLabelValues(sport).Set(float64(state))
}

// RecordStoreOperation records a document store operation metric
func RecordStoreOperation(operation, collection, status string, duration float64) {
	StoreOperationsTotal.WithLabelValues(operation, collection, status).Inc()
	StoreOperationDuration.WithLabelValues(operation, collection).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCycle records a fetch cycle
func RecordCycle(sport, status string, duration float64) {
	CyclesTotal.WithLabelValues(sport, status).Inc()
	CycleDuration.WithLabelValues(sport).Observe(duration)

	if status == "success" {
		LastSuccessfulCycle.WithLabelValues(sport).SetToCurrentTime()
	}
}

// RecordGameOutcome records the outcome of one game
func RecordGameOutcome(sport, outcome string) {
	GameOutcomesTotal.WithLabelValues(sport, outcome).Inc()
}

// RecordRejection records a filter chain rejection
func RecordRejection(sport, reason string) {
	FilterRejectionsTotal.WithLabelValues(sport, reason).Inc()
}

// RecordTeamCreated records a new team document
func RecordTeamCreated(sport string) {
	TeamsCreatedTotal.WithLabelValues(sport).Inc()
}

// RecordTier marks tier as the active polling tier and records the delay
func RecordTier(sport, tier string, tiers []string, interval float64) {
	for _, t := range tiers {
		v := 0.0
		if t == tier {
			v = 1
		}
		PollTier.WithLabelValues(sport, t).Set(v)
	}
	NextIntervalSeconds.WithLabelValues(sport).Set(interval)
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateStoreStats updates document counts
func UpdateStoreStats(sport string, games, teams, live int64) {
	GamesStored.WithLabelValues(sport).Set(float64(games))
	TeamsStored.WithLabelValues(sport).Set(float64(teams))
	LiveGames.WithLabelValues(sport).Set(float64(live))
}
