package dailymetrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_radar/models"
	"stock_radar/services/marketdata"
)

// Recomputer derives per-instrument daily trade metrics from stored bars.
// Triggered after end-of-day imports and after provisional intraday
// refreshes so screening always sees current numbers.
type Recomputer struct {
	db   *gorm.DB
	bars *marketdata.BarStore

	lookbackDays int
}

// NewRecomputer creates a metrics recomputer
func NewRecomputer(db *gorm.DB, bars *marketdata.BarStore) *Recomputer {
	return &Recomputer{db: db, bars: bars, lookbackDays: 120}
}

// Recompute rebuilds the latest metric row for each given symbol. Symbols
// with too little history are skipped, not errors; the count of rows
// actually written is returned.
func (r *Recomputer) Recompute(ctx context.Context, symbols []string) (int, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -r.lookbackDays)

	written := 0
	failed := 0
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		bars, err := r.bars.ReadBars(ctx, symbol, from, to)
		if err != nil {
			log.Printf("Metric recompute: failed to read bars for %s: %v", symbol, err)
			failed++
			continue
		}
		metric, ok := MetricFromBars(symbol, bars)
		if !ok {
			continue
		}

		err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"date", "ma10", "ma20", "ma50", "rsi14", "macd_hist",
				"avg_vol20", "volume_ratio", "change_percent", "provisional", "updated_at",
			}),
		}).Create(&metric).Error
		if err != nil {
			log.Printf("Metric recompute: failed to save metrics for %s: %v", symbol, err)
			failed++
			continue
		}
		written++
	}

	if len(symbols) > 0 && failed == len(symbols) {
		return 0, fmt.Errorf("metric recompute failed for all %d symbols", len(symbols))
	}
	return written, nil
}

// MetricFromBars derives one metric row from a symbol's bars in ascending
// date order. Returns false when fewer than 10 bars exist.
func MetricFromBars(symbol string, bars []models.DailyBar) (models.DailyTradeMetric, bool) {
	if len(bars) < 10 {
		return models.DailyTradeMetric{}, false
	}

	// Indicator math runs newest first.
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		j := len(bars) - 1 - i
		closes[j], _ = bar.Close.Float64()
		volumes[j] = bar.Volume
	}

	latest := bars[len(bars)-1]
	_, _, macdHist := MACD(closes)
	avgVol := AvgVolume(volumes[1:], 20)

	metric := models.DailyTradeMetric{
		Symbol:      symbol,
		Date:        latest.Date,
		MA10:        MA(closes, 10),
		MA20:        MA(closes, 20),
		MA50:        MA(closes, 50),
		RSI14:       RSI(closes, 14),
		MACDHist:    macdHist,
		AvgVol20:    avgVol,
		Provisional: latest.Provisional,
		UpdatedAt:   time.Now(),
	}
	if avgVol > 0 {
		metric.VolumeRatio = latest.Volume / avgVol
	}
	metric.ChangePercent, _ = latest.ChangePercent.Float64()
	return metric, true
}
