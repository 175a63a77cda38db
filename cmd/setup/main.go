// Command setup readies a store ahead of a tournament: it verifies the store,
// seeds the first scoreboard games and writes a readiness entry to setupLogs
// and fetchLogs. It exits non-zero when the store is unreachable or any
// collection cannot be read.
//
// Usage: setup -sport baseball -seed-limit 10
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sportschatplus/ingestion/internal/client"
	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/ingest"
	"sportschatplus/ingestion/internal/repository"
	"sportschatplus/ingestion/internal/setup"

	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("setup", flag.ContinueOnError)
	sportKey := flags.String("sport", config.DefaultSport, "sport to prepare")
	seedLimit := flags.Int("seed-limit", setup.DefaultSeedLimit, "games to seed from the live scoreboard, 0 to skip")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.MustLoad()
	sport, err := cfg.ResolveSport(*sportKey)
	if err != nil {
		log.Error().Err(err).Strs("supported", config.SportKeys()).Msg("Unsupported sport")
		return 1
	}

	log.Info().
		Str("sport", sport.Key).
		Str("backend", cfg.StoreBackend).
		Time("tournament_start", sport.TournamentStart).
		Msg("Preparing store for tournament")

	store, err := repository.Open(ctx, cfg, sport)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize store")
		return 1
	}
	defer store.Close()

	ncaa := client.NewClient(
		cfg.NCAABaseURL,
		cfg.NCAAUserAgent,
		cfg.NCAATimeout,
		client.WithBreaker("ncaa-"+sport.Key, cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout),
		client.WithRateLimit(cfg.NCAARateLimit),
	)
	engine := ingest.NewEngine(sport, store.Games(), store.Teams(), ingest.WithStaleness(cfg.StalenessThreshold))

	runner := setup.NewRunner(sport, store, ncaa, engine, setup.WithSeedLimit(*seedLimit))
	report, err := runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Setup failed")
		return 1
	}

	seeded := 0
	if report.Seeded != nil {
		seeded = report.Seeded.NewGames + report.Seeded.UpdatedGames
	}
	fmt.Printf("Setup %s: ready=%t seeded=%d checks=%d failed=%d setup_ms=%d\n",
		sport.Key, report.Ready, seeded, len(report.Checks), len(report.FailedChecks()), report.SetupTimeMS)
	for _, step := range report.NextSteps {
		fmt.Println("  -", step)
	}

	if !report.Ready {
		return 1
	}
	return 0
}
