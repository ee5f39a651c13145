package indicators

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stock_radar/models"
	"stock_radar/services/breakout"
	"stock_radar/services/marketdata"
)

// BreakoutIndicator exposes the consolidation-breakout scan as a catalog
// indicator.
type BreakoutIndicator struct {
	scanner *breakout.Scanner
	bars    *marketdata.BarStore
	db      *gorm.DB
}

// NewBreakoutIndicator creates the breakout catalog entry
func NewBreakoutIndicator(scanner *breakout.Scanner, bars *marketdata.BarStore, db *gorm.DB) *BreakoutIndicator {
	return &BreakoutIndicator{scanner: scanner, bars: bars, db: db}
}

func (b *BreakoutIndicator) Code() string { return "breakout" }
func (b *BreakoutIndicator) Name() string { return "Consolidation Breakout" }

// Fetch runs the scan over the active universe
func (b *BreakoutIndicator) Fetch(ctx context.Context) (any, error) {
	symbols, err := b.bars.ActiveSymbols(ctx)
	if err != nil {
		return nil, err
	}
	return b.scanner.Scan(ctx, symbols)
}

// Normalize shapes scan candidates into snapshot rows
func (b *BreakoutIndicator) Normalize(raw any, capturedAt time.Time) ([]models.IndicatorRankSnapshot, error) {
	candidates, ok := raw.([]breakout.Candidate)
	if !ok {
		return nil, fmt.Errorf("unexpected breakout payload %T", raw)
	}

	names := instrumentNames(b.db, symbolsOf(candidates))
	rows := make([]models.IndicatorRankSnapshot, 0, len(candidates))
	for _, c := range candidates {
		row := models.IndicatorRankSnapshot{
			IndicatorCode:  b.Code(),
			Symbol:         c.Symbol,
			Name:           names[c.Symbol].Name,
			Rank:           c.Rank,
			Industry:       names[c.Symbol].Industry,
			PriceChangePct: c.PriceChangePercent,
			VolumeRatio:    c.VolumeRatio,
			Turnover:       c.Close * c.Volume,
			CapturedAt:     capturedAt,
		}
		row.SetDetail(map[string]float64{
			"breakout_percent": c.BreakoutPercent,
			"range_amplitude":  c.RangeAmplitude,
			"score":            c.Score,
		})
		rows = append(rows, row)
	}
	return rows, nil
}

// TopGainersIndicator ranks instruments by daily price change.
type TopGainersIndicator struct {
	db        *gorm.DB
	minChange float64
	maxRows   int
}

// NewTopGainersIndicator creates the top-gainers catalog entry
func NewTopGainersIndicator(db *gorm.DB) *TopGainersIndicator {
	return &TopGainersIndicator{db: db, minChange: 3.0, maxRows: 100}
}

func (t *TopGainersIndicator) Code() string { return "top_gainers" }
func (t *TopGainersIndicator) Name() string { return "Top Gainers" }

// Fetch reads the latest trade metrics above the change floor
func (t *TopGainersIndicator) Fetch(ctx context.Context) (any, error) {
	var metrics []models.DailyTradeMetric
	err := t.db.WithContext(ctx).
		Where("change_percent >= ?", t.minChange).
		Order("change_percent DESC").
		Limit(t.maxRows).
		Find(&metrics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top gainers: %w", err)
	}
	return metrics, nil
}

// Normalize shapes metric rows into snapshot rows with dense ranks
func (t *TopGainersIndicator) Normalize(raw any, capturedAt time.Time) ([]models.IndicatorRankSnapshot, error) {
	metrics, ok := raw.([]models.DailyTradeMetric)
	if !ok {
		return nil, fmt.Errorf("unexpected top gainers payload %T", raw)
	}
	return metricSnapshots(t.db, t.Code(), metrics, capturedAt, func(m models.DailyTradeMetric) map[string]float64 {
		return map[string]float64{
			"change_percent": m.ChangePercent,
			"rsi_14":         m.RSI14,
		}
	}), nil
}

// VolumeSurgeIndicator ranks instruments by volume relative to their
// 20-day baseline.
type VolumeSurgeIndicator struct {
	db       *gorm.DB
	minRatio float64
	maxRows  int
}

// NewVolumeSurgeIndicator creates the volume-surge catalog entry
func NewVolumeSurgeIndicator(db *gorm.DB) *VolumeSurgeIndicator {
	return &VolumeSurgeIndicator{db: db, minRatio: 2.0, maxRows: 100}
}

func (v *VolumeSurgeIndicator) Code() string { return "volume_surge" }
func (v *VolumeSurgeIndicator) Name() string { return "Volume Surge" }

// Fetch reads the latest trade metrics above the ratio floor
func (v *VolumeSurgeIndicator) Fetch(ctx context.Context) (any, error) {
	var metrics []models.DailyTradeMetric
	err := v.db.WithContext(ctx).
		Where("volume_ratio >= ?", v.minRatio).
		Order("volume_ratio DESC").
		Limit(v.maxRows).
		Find(&metrics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volume surges: %w", err)
	}
	return metrics, nil
}

// Normalize shapes metric rows into snapshot rows with dense ranks
func (v *VolumeSurgeIndicator) Normalize(raw any, capturedAt time.Time) ([]models.IndicatorRankSnapshot, error) {
	metrics, ok := raw.([]models.DailyTradeMetric)
	if !ok {
		return nil, fmt.Errorf("unexpected volume surge payload %T", raw)
	}
	return metricSnapshots(v.db, v.Code(), metrics, capturedAt, func(m models.DailyTradeMetric) map[string]float64 {
		return map[string]float64{
			"volume_ratio": m.VolumeRatio,
			"avg_vol_20":   m.AvgVol20,
		}
	}), nil
}

// metricSnapshots converts pre-sorted metric rows into snapshot rows,
// assigning sequential ranks and filling display fields from instruments.
func metricSnapshots(db *gorm.DB, code string, metrics []models.DailyTradeMetric, capturedAt time.Time, detail func(models.DailyTradeMetric) map[string]float64) []models.IndicatorRankSnapshot {
	symbols := make([]string, len(metrics))
	for i, m := range metrics {
		symbols[i] = m.Symbol
	}
	names := instrumentNames(db, symbols)

	rows := make([]models.IndicatorRankSnapshot, 0, len(metrics))
	for i, m := range metrics {
		row := models.IndicatorRankSnapshot{
			IndicatorCode:  code,
			Symbol:         m.Symbol,
			Name:           names[m.Symbol].Name,
			Rank:           i + 1,
			Industry:       names[m.Symbol].Industry,
			PriceChangePct: m.ChangePercent,
			VolumeRatio:    m.VolumeRatio,
			CapturedAt:     capturedAt,
		}
		row.SetDetail(detail(m))
		rows = append(rows, row)
	}
	return rows
}

type instrumentInfo struct {
	Name     string
	Industry string
}

// instrumentNames loads display names and industries for a symbol set.
// Lookup failures degrade to empty fields, not errors.
func instrumentNames(db *gorm.DB, symbols []string) map[string]instrumentInfo {
	info := make(map[string]instrumentInfo, len(symbols))
	if db == nil || len(symbols) == 0 {
		return info
	}

	var instruments []models.Instrument
	if err := db.Where("symbol IN ?", symbols).Find(&instruments).Error; err != nil {
		return info
	}
	for _, inst := range instruments {
		info[inst.Symbol] = instrumentInfo{Name: inst.Name, Industry: inst.Industry}
	}
	return info
}

func symbolsOf(candidates []breakout.Candidate) []string {
	symbols := make([]string, len(candidates))
	for i, c := range candidates {
		symbols[i] = c.Symbol
	}
	return symbols
}
