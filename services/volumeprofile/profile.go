package volumeprofile

import (
	"stock_radar/services/marketdata"
	"stock_radar/services/tradingcal"
)

// DefaultFreezeThreshold is the number of learned daily samples after which
// a profile stops updating.
const DefaultFreezeThreshold = 20

// State is the learning lifecycle of a profile. The only transition is
// Learning -> Frozen, via Freeze; a frozen profile never mutates again.
type State int

const (
	StateLearning State = iota
	StateFrozen
)

// MinuteStats holds the running sums and derived averages for one minute
// slot of a profile.
type MinuteStats struct {
	RatioSum    float64 `json:"ratio_sum"`
	CumRatioSum float64 `json:"cum_ratio_sum"`
	AvgRatio    float64 `json:"avg_ratio"`
	AvgCumRatio float64 `json:"avg_cum_ratio"`
}

// Profile is an instrument's learned intraday volume distribution over the
// 240 session minutes.
type Profile struct {
	Symbol        string
	State         State
	SampleCount   int
	LastTradeDate string // yyyy-MM-dd of the last folded day
	Minutes       [tradingcal.TotalMinutes]MinuteStats
}

// NewProfile creates an empty learning profile for a symbol
func NewProfile(symbol string) *Profile {
	return &Profile{Symbol: symbol, State: StateLearning}
}

// Frozen reports whether the profile has stopped learning
func (p *Profile) Frozen() bool {
	return p.State == StateFrozen
}

// Freeze permanently stops further updates. One-way; there is no thaw.
func (p *Profile) Freeze() {
	p.State = StateFrozen
}

// Fold folds one trading day's observation into the running averages and
// returns the number of minute slots updated.
//
// The fold is a no-op (returns 0) when the profile is frozen, the
// observation carries no volume, or tradeDate does not advance past the
// last folded date, so re-applying the same day never double-counts.
func (p *Profile) Fold(tradeDate string, obs *Observation) int {
	if p.Frozen() {
		return 0
	}
	if obs == nil || obs.Total <= 0 {
		return 0
	}
	if p.LastTradeDate != "" && tradeDate <= p.LastTradeDate {
		return 0
	}

	cum := 0.0
	for i := range p.Minutes {
		ratio := obs.Minutes[i] / obs.Total
		cum += ratio
		if cum > 1.0 {
			// guard against floating overshoot
			cum = 1.0
		}
		p.Minutes[i].RatioSum += ratio
		p.Minutes[i].CumRatioSum += cum
	}
	p.SampleCount++

	// Averages are recomputed from the sums, never drift-accumulated.
	n := float64(p.SampleCount)
	for i := range p.Minutes {
		p.Minutes[i].AvgRatio = p.Minutes[i].RatioSum / n
		p.Minutes[i].AvgCumRatio = p.Minutes[i].CumRatioSum / n
	}

	p.LastTradeDate = tradeDate
	return tradingcal.TotalMinutes
}

// Observation is one trading day's minute-bucketed trade volume for an
// instrument. Ephemeral: built from a tick feed, consumed once by a fold.
type Observation struct {
	Minutes [tradingcal.TotalMinutes]float64
	Total   float64
}

// BuildObservation buckets one day of trade prints into session minutes
func BuildObservation(ticks []marketdata.Tick) *Observation {
	obs := &Observation{}
	for _, tk := range ticks {
		idx := tradingcal.MinuteIndex(tk.Time)
		obs.Minutes[idx] += tk.Volume
		obs.Total += tk.Volume
	}
	return obs
}

// ObservationFromMinutes rebuilds an observation from cached per-minute
// volumes
func ObservationFromMinutes(volumes []float64) *Observation {
	obs := &Observation{}
	for i, v := range volumes {
		if i >= tradingcal.TotalMinutes {
			break
		}
		obs.Minutes[i] += v
		obs.Total += v
	}
	return obs
}
