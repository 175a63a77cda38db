package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Tier is a polling interval regime
type Tier string

const (
	TierLive      Tier = "live"
	TierImminent  Tier = "imminent"
	TierSeason    Tier = "season"
	TierOffSeason Tier = "off_season"
)

func tierNames() []string {
	return []string{string(TierLive), string(TierImminent), string(TierSeason), string(TierOffSeason)}
}

// SelectTier picks the polling tier from persisted state, in priority order:
// any live game, any game starting within the imminent window, the sport's
// season months, otherwise off-season.
func (s *Scheduler) SelectTier(ctx context.Context, now time.Time) (Tier, time.Duration, error) {
	live, err := s.store.Games().AnyInState(ctx, s.sport.LiveState)
	if err != nil {
		return "", 0, fmt.Errorf("failed to check live games: %w", err)
	}
	if live {
		return TierLive, s.intervals.Live, nil
	}

	upcoming, err := s.store.Games().AnyStartingBetween(ctx, now, now.Add(s.intervals.ImminentWindow))
	if err != nil {
		return "", 0, fmt.Errorf("failed to check upcoming games: %w", err)
	}
	if upcoming {
		return TierImminent, s.intervals.Imminent, nil
	}

	if s.sport.InSeason(now) {
		return TierSeason, s.intervals.Season, nil
	}

	return TierOffSeason, s.intervals.OffSeason, nil
}
