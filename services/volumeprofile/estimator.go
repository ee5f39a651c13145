package volumeprofile

import (
	"context"
	"log"
	"time"

	"stock_radar/services/tradingcal"
)

// ratioEpsilon bounds the cumulative ratio away from zero so an estimate
// near the session open cannot divide by a vanishing denominator.
const ratioEpsilon = 1e-4

// Estimate is a full-day volume projection plus the ratio that produced it,
// kept for auditability.
type Estimate struct {
	Symbol          string  `json:"symbol"`
	MinuteIndex     int     `json:"minute_index"`
	RatioUsed       float64 `json:"ratio_used"`
	EstimatedVolume float64 `json:"estimated_volume"`
	LinearFallback  bool    `json:"linear_fallback"`
}

// Estimator projects full-day volume from a partial-day observation using
// the learned cumulative volume distribution.
type Estimator struct {
	store Store
}

// NewEstimator creates a volume estimator over a profile store
func NewEstimator(store Store) *Estimator {
	return &Estimator{store: store}
}

// Estimate projects the full-day volume for a symbol given the wall-clock
// time and the cumulative volume observed so far.
//
// It never fails: with no learned profile, or a non-positive looked-up
// ratio, it falls back to the linear model ratio = (minute+1)/240. The
// ratio actually used is clamped into (epsilon, 1].
func (e *Estimator) Estimate(ctx context.Context, symbol string, at time.Time, observedVolume float64) *Estimate {
	idx := tradingcal.MinuteIndex(at)

	ratio := 0.0
	if e.store != nil {
		profile, err := e.store.Load(ctx, symbol)
		if err != nil {
			log.Printf("Volume estimate for %s: profile load failed, using linear model: %v", symbol, err)
		} else if profile != nil && profile.SampleCount > 0 {
			ratio = profile.Minutes[idx].AvgCumRatio
		}
	}

	fallback := false
	if ratio <= 0 {
		ratio = float64(idx+1) / float64(tradingcal.TotalMinutes)
		fallback = true
	}
	if ratio < ratioEpsilon {
		ratio = ratioEpsilon
	}
	if ratio > 1 {
		ratio = 1
	}

	return &Estimate{
		Symbol:          symbol,
		MinuteIndex:     idx,
		RatioUsed:       ratio,
		EstimatedVolume: observedVolume / ratio,
		LinearFallback:  fallback,
	}
}
