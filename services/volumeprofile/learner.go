package volumeprofile

import (
	"context"
	"fmt"
	"log"

	"stock_radar/services/marketdata"
)

// TickCache caches one day of minute-bucketed volumes per symbol so a
// re-run of profile learning does not refetch the upstream tick feed.
type TickCache interface {
	LoadDay(symbol, date string) ([]float64, bool)
	SaveDay(symbol, date string, minuteVolumes []float64) error
}

// Learner folds daily minute observations into per-symbol volume profiles.
type Learner struct {
	ticks           marketdata.TickFeed
	store           Store
	cache           TickCache // optional
	freezeThreshold int
}

// NewLearner creates a profile learner. A freezeThreshold <= 0 falls back
// to the default.
func NewLearner(ticks marketdata.TickFeed, store Store, cache TickCache, freezeThreshold int) *Learner {
	if freezeThreshold <= 0 {
		freezeThreshold = DefaultFreezeThreshold
	}
	return &Learner{
		ticks:           ticks,
		store:           store,
		cache:           cache,
		freezeThreshold: freezeThreshold,
	}
}

// SyncProfile folds one symbol's trading day into its profile and returns
// the number of minute rows updated. Zero-volume days, frozen profiles and
// already-folded dates all return (0, nil); they carry no information and
// are not errors.
func (l *Learner) SyncProfile(ctx context.Context, symbol, date string) (int, error) {
	obs, err := l.loadObservation(ctx, symbol, date)
	if err != nil {
		return 0, err
	}
	if obs.Total <= 0 {
		log.Printf("Profile sync %s %s: no trades, skipped", symbol, date)
		return 0, nil
	}

	profile, err := l.store.Load(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		profile = NewProfile(symbol)
	}
	if profile.Frozen() {
		return 0, nil
	}

	updated := profile.Fold(date, obs)
	if updated == 0 {
		log.Printf("Profile sync %s %s: already folded, skipped", symbol, date)
		return 0, nil
	}

	if profile.SampleCount >= l.freezeThreshold {
		profile.Freeze()
		log.Printf("Profile for %s frozen after %d samples", symbol, profile.SampleCount)
	}

	if err := l.store.Save(ctx, profile); err != nil {
		return 0, err
	}
	return updated, nil
}

// loadObservation builds the day's observation from the tick cache or the
// upstream feed
func (l *Learner) loadObservation(ctx context.Context, symbol, date string) (*Observation, error) {
	if l.cache != nil {
		if volumes, ok := l.cache.LoadDay(symbol, date); ok {
			return ObservationFromMinutes(volumes), nil
		}
	}

	ticks, err := l.ticks.FetchTicks(ctx, symbol, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticks for %s %s: %w", symbol, date, err)
	}
	obs := BuildObservation(ticks)

	if l.cache != nil && obs.Total > 0 {
		if err := l.cache.SaveDay(symbol, date, obs.Minutes[:]); err != nil {
			log.Printf("Warning: failed to cache tick day %s %s: %v", symbol, date, err)
		}
	}
	return obs, nil
}

// SyncResult holds per-run counts of a batch learning pass.
type SyncResult struct {
	Success       int      `json:"success"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	FailedSymbols []string `json:"failed_symbols,omitempty"`
}

// SyncUniverse folds one trading day for every symbol. Per-symbol failures
// are counted and skipped; the run only errors when no symbol yields data
// at all.
func (l *Learner) SyncUniverse(ctx context.Context, symbols []string, date string) (SyncResult, error) {
	var result SyncResult
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		updated, err := l.SyncProfile(ctx, symbol, date)
		switch {
		case err != nil:
			log.Printf("Profile sync failed for %s: %v", symbol, err)
			result.Failed++
			result.FailedSymbols = append(result.FailedSymbols, symbol)
		case updated == 0:
			result.Skipped++
		default:
			result.Success++
		}
	}

	log.Printf("Profile sync %s completed: success=%d, skipped=%d, failed=%d",
		date, result.Success, result.Skipped, result.Failed)

	if len(symbols) > 0 && result.Failed == len(symbols) {
		return result, fmt.Errorf("profile sync failed for all %d symbols", len(symbols))
	}
	return result, nil
}

// FreezeThreshold returns the configured sample count at which profiles
// freeze
func (l *Learner) FreezeThreshold() int {
	return l.freezeThreshold
}
