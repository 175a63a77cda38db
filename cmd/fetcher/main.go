// Command fetcher polls the NCAA scoreboard for one sport and keeps its
// game and team collections current.
//
// Usage: fetcher [sport]
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sportschatplus/ingestion/internal/cache"
	"sportschatplus/ingestion/internal/client"
	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/ingest"
	"sportschatplus/ingestion/internal/metrics"
	"sportschatplus/ingestion/internal/repository"
	"sportschatplus/ingestion/internal/scheduler"
	"sportschatplus/ingestion/internal/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	setupLogger()

	sportKey := config.DefaultSport
	if len(os.Args) > 1 {
		sportKey = os.Args[1]
	}

	cfg := config.MustLoad()
	sport, err := cfg.ResolveSport(sportKey)
	if err != nil {
		log.Error().Err(err).Strs("supported", config.SportKeys()).Msg("Unsupported sport")
		return 1
	}

	log.Info().
		Str("sport", sport.Key).
		Str("env", cfg.AppEnv).
		Str("store", cfg.StoreBackend).
		Str("games", sport.GamesCollection).
		Str("teams", sport.TeamsCollection).
		Msg("Starting SportsChat+ NCAA fetcher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	store, err := repository.Open(ctx, cfg, sport)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize store")
		return 1
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		log.Error().Err(err).Msg("Store health check failed")
		return 1
	}
	log.Info().Msg("Store connection verified")

	engineOpts := []ingest.Option{ingest.WithStaleness(cfg.StalenessThreshold)}
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(ctx, cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, time.Duration(cfg.CacheTTLTeams)*time.Second)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			defer redisCache.Close()
			engineOpts = append(engineOpts, ingest.WithTeamCache(redisCache))
			log.Info().Msg("Redis team cache connected")
		}
	}

	ncaa := client.NewClient(
		cfg.NCAABaseURL,
		cfg.NCAAUserAgent,
		cfg.NCAATimeout,
		client.WithBreaker("ncaa-"+sport.Key, cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout),
		client.WithRateLimit(cfg.NCAARateLimit),
	)

	engine := ingest.NewEngine(sport, store.Games(), store.Teams(), engineOpts...)

	var schedOpts []scheduler.Option
	if cfg.StatsRefreshCron != "" {
		schedOpts = append(schedOpts, scheduler.WithStatsRefresh(cfg.StatsRefreshCron))
	}
	sched := scheduler.NewScheduler(sport, cfg.Intervals(), ncaa, engine, store, schedOpts...)

	if cfg.EnableMetrics {
		srv := server.NewServer(cfg.MetricsPort, store, sched)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := sched.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler failed")
		return 1
	}

	log.Info().Msg("Fetcher shutdown complete")
	return 0
}

// setupLogger configures the zerolog logger
func setupLogger() {
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)
}
