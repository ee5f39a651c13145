package breakout

import (
	"context"
	"log"
	"sort"
	"time"

	"stock_radar/models"
	"stock_radar/services/marketdata"
)

// Config holds the tunable thresholds of the consolidation-breakout scan.
// The OR acceptance of breakout vs. daily change, and the 100/500/1 score
// weights, are deliberate heuristics carried from production tuning; change
// them only with product guidance.
type Config struct {
	WindowSize           int     // consolidation window plus today
	AvgVolumeDays        int     // trailing days for the volume baseline
	MaxRangeRatio        float64 // reject if the window range exceeds this
	MinVolumeRatio       float64 // reject if today's volume ratio is below this
	BreakoutThreshold    float64 // close above prior max close by this fraction
	DailyChangeThreshold float64 // or daily change percent at least this
	MinHistoryBars       int     // bars required before an instrument is scanned
	LookbackDays         int     // calendar days of history fetched per symbol
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		WindowSize:           31,
		AvgVolumeDays:        20,
		MaxRangeRatio:        0.25,
		MinVolumeRatio:       3.0,
		BreakoutThreshold:    0.03,
		DailyChangeThreshold: 7.0,
		MinHistoryBars:       35,
		LookbackDays:         90,
	}
}

// Candidate is one instrument that broke out of a consolidation range.
type Candidate struct {
	Symbol             string  `json:"symbol"`
	Rank               int     `json:"rank"`
	Close              float64 `json:"close"`
	Volume             float64 `json:"volume"`
	VolumeRatio        float64 `json:"volume_ratio"`
	BreakoutPercent    float64 `json:"breakout_percent"`
	RangeAmplitude     float64 `json:"range_amplitude"`
	PriceChangePercent float64 `json:"price_change_percent"`
	Score              float64 `json:"score"`
}

// Scanner detects consolidation-then-breakout candidates from daily bars.
type Scanner struct {
	bars   *marketdata.BarStore
	config Config
}

// NewScanner creates a breakout scanner over a bar store
func NewScanner(bars *marketdata.BarStore, config Config) *Scanner {
	if config.WindowSize <= 0 {
		config = DefaultConfig()
	}
	return &Scanner{bars: bars, config: config}
}

// Evaluate applies the breakout rules to one instrument's bars (ascending by
// date, last bar is today) and returns the candidate if all rules pass.
// Insufficient history is a non-match, not an error.
func (s *Scanner) Evaluate(symbol string, bars []models.DailyBar) (*Candidate, bool) {
	cfg := s.config
	if len(bars) < cfg.MinHistoryBars {
		return nil, false
	}

	window := bars[len(bars)-cfg.WindowSize:]
	today := window[len(window)-1]
	consolidation := window[:len(window)-1]

	// Range compression over the consolidation window.
	maxHigh, _ := consolidation[0].High.Float64()
	minLow, _ := consolidation[0].Low.Float64()
	maxPriorClose, _ := consolidation[0].Close.Float64()
	for _, bar := range consolidation[1:] {
		high, _ := bar.High.Float64()
		low, _ := bar.Low.Float64()
		closePrice, _ := bar.Close.Float64()
		if high > maxHigh {
			maxHigh = high
		}
		if low < minLow {
			minLow = low
		}
		if closePrice > maxPriorClose {
			maxPriorClose = closePrice
		}
	}
	if minLow <= 0 {
		return nil, false
	}
	rangeAmplitude := (maxHigh - minLow) / minLow
	if rangeAmplitude > cfg.MaxRangeRatio {
		return nil, false
	}

	// Volume baseline over the trailing days excluding today.
	prior := bars[:len(bars)-1]
	if len(prior) < cfg.AvgVolumeDays {
		return nil, false
	}
	avgVolume := 0.0
	for _, bar := range prior[len(prior)-cfg.AvgVolumeDays:] {
		avgVolume += bar.Volume
	}
	avgVolume /= float64(cfg.AvgVolumeDays)
	if avgVolume <= 0 {
		return nil, false
	}
	volumeRatio := today.Volume / avgVolume
	if volumeRatio < cfg.MinVolumeRatio {
		return nil, false
	}

	todayClose, _ := today.Close.Float64()
	if maxPriorClose <= 0 {
		return nil, false
	}
	breakoutPercent := (todayClose - maxPriorClose) / maxPriorClose

	prevClose, _ := consolidation[len(consolidation)-1].Close.Float64()
	priceChangePercent := 0.0
	if prevClose > 0 {
		priceChangePercent = (todayClose - prevClose) / prevClose * 100
	}

	// Either signal alone accepts the candidate.
	if breakoutPercent < cfg.BreakoutThreshold && priceChangePercent < cfg.DailyChangeThreshold {
		return nil, false
	}

	score := volumeRatio*100 + positive(breakoutPercent)*500 + positive(priceChangePercent)

	return &Candidate{
		Symbol:             symbol,
		Close:              todayClose,
		Volume:             today.Volume,
		VolumeRatio:        volumeRatio,
		BreakoutPercent:    breakoutPercent,
		RangeAmplitude:     rangeAmplitude,
		PriceChangePercent: priceChangePercent,
		Score:              score,
	}, true
}

// Scan evaluates every symbol in the universe and returns accepted
// candidates ranked by score. Per-symbol read failures are counted and
// skipped.
func (s *Scanner) Scan(ctx context.Context, symbols []string) ([]Candidate, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -s.config.LookbackDays)

	var candidates []Candidate
	failed := 0
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bars, err := s.bars.ReadBars(ctx, symbol, from, to)
		if err != nil {
			log.Printf("Breakout scan: failed to read bars for %s: %v", symbol, err)
			failed++
			continue
		}
		if candidate, ok := s.Evaluate(symbol, bars); ok {
			candidates = append(candidates, *candidate)
		}
	}

	RankCandidates(candidates)
	log.Printf("Breakout scan completed: %d symbols, %d candidates, %d failed",
		len(symbols), len(candidates), failed)
	return candidates, nil
}

// RankCandidates sorts candidates by score descending and assigns dense
// ranks starting at 1. Equal scores share a rank.
func RankCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	rank := 0
	prevScore := 0.0
	for i := range candidates {
		if i == 0 || candidates[i].Score != prevScore {
			rank++
			prevScore = candidates[i].Score
		}
		candidates[i].Rank = rank
	}
}

func positive(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
