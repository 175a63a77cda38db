// Command backfill replays dated scoreboards for a range of days through the
// same normalize, filter and upsert path the fetcher uses.
//
// Usage: backfill -sport baseball -from 2025-05-30 -to 2025-06-23
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportschatplus/ingestion/internal/client"
	"sportschatplus/ingestion/internal/config"
	"sportschatplus/ingestion/internal/ingest"
	"sportschatplus/ingestion/internal/models"
	"sportschatplus/ingestion/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DayFetcher retrieves the scoreboard for one calendar day
type DayFetcher interface {
	FetchScoreboardForDate(ctx context.Context, sport config.Sport, day time.Time) (*models.Scoreboard, error)
}

// Processor persists a batch of raw games
type Processor interface {
	Process(ctx context.Context, items []json.RawMessage) models.CycleResults
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("backfill", flag.ContinueOnError)
	sportKey := flags.String("sport", config.DefaultSport, "sport to backfill")
	from := flags.String("from", "", "first day, YYYY-MM-DD (defaults to the tournament start)")
	to := flags.String("to", "", "last day, YYYY-MM-DD (defaults to today)")
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

	start, end, err := parseRange(*from, *to, sport.TournamentStart, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Invalid date range")
		return 1
	}

	store, err := repository.Open(ctx, cfg, sport)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize store")
		return 1
	}
	defer store.Close()

	log.Info().Msg("Validating store health...")
	if err := store.Health(ctx); err != nil {
		log.Error().Err(err).Msg("Store health check failed")
		return 1
	}

	ncaa := client.NewClient(
		cfg.NCAABaseURL,
		cfg.NCAAUserAgent,
		cfg.NCAATimeout,
		client.WithRateLimit(cfg.NCAARateLimit),
	)
	engine := ingest.NewEngine(sport, store.Games(), store.Teams(), ingest.WithStaleness(cfg.StalenessThreshold))

	totals, failedDays := backfill(ctx, ncaa, engine, store.FetchLogs(), sport, start, end)

	fmt.Printf("Backfill %s %s..%s: new=%d updated=%d skipped=%d placeholder=%d errors=%d failed_days=%d\n",
		sport.Key, start.Format(time.DateOnly), end.Format(time.DateOnly),
		totals.NewGames, totals.UpdatedGames, totals.SkippedGames, totals.PlaceholderSkipped, totals.Errors, failedDays)

	if failedDays > 0 {
		return 1
	}
	return 0
}

func parseRange(from, to string, tournamentStart, today time.Time) (time.Time, time.Time, error) {
	start := tournamentStart
	if from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
		}
		start = t
	}

	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
		end = t
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to %s is before -from %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}

// backfill processes every day in [start, end] and returns the summed
// results and the number of days whose fetch failed
func backfill(ctx context.Context, fetcher DayFetcher, processor Processor, logs repository.FetchLogStore, sport config.Sport, start, end time.Time) (models.CycleResults, int) {
	var totals models.CycleResults
	failedDays := 0
	runID := uuid.NewString()
	var seq int64

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			log.Warn().Msg("Backfill interrupted")
			break
		}
		seq++
		began := time.Now()

		entry := &models.FetchLog{RunID: runID, Sport: sport.Key, FetchCount: seq}

		board, err := fetcher.FetchScoreboardForDate(ctx, sport, day)
		if err != nil {
			failedDays++
			entry.Error = err.Error()
			log.Error().Err(err).Str("day", day.Format(time.DateOnly)).Msg("Fetch failed")
		} else {
			results := processor.Process(ctx, board.Games)
			totals.Add(results)
			entry.Results = &results
			finished := time.Now()
			entry.LastFetchTime = &finished

			log.Info().
				Str("day", day.Format(time.DateOnly)).
				Int("games", len(board.Games)).
				Int("new", results.NewGames).
				Int("updated", results.UpdatedGames).
				Int("skipped", results.SkippedGames).
				Int("errors", results.Errors).
				Msg("Day processed")
		}

		entry.DurationMS = time.Since(began).Milliseconds()
		if err := logs.Append(ctx, entry); err != nil {
			log.Error().Err(err).Str("day", day.Format(time.DateOnly)).Msg("Error logging fetch result")
		}
	}

	return totals, failedDays
}
