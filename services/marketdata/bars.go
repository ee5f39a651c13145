package marketdata

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_radar/models"
)

// BarStore reads and writes daily bars. Finalized bars are owned by the
// end-of-day import; provisional bars for the current date are owned by the
// realtime refresher and are fully overwritten on every write.
type BarStore struct {
	db *gorm.DB
}

// NewBarStore creates a bar store backed by the primary database
func NewBarStore(db *gorm.DB) *BarStore {
	return &BarStore{db: db}
}

// ReadBars returns bars for one symbol in ascending date order
func (s *BarStore) ReadBars(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyBar, error) {
	var bars []models.DailyBar
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date >= ? AND date <= ?", symbol, from, to).
		Order("date ASC").
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read bars for %s: %w", symbol, err)
	}
	return bars, nil
}

// WriteBar upserts one bar, fully replacing any existing row for the same
// symbol and date
func (s *BarStore) WriteBar(ctx context.Context, bar models.DailyBar) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume", "turnover",
			"change", "change_percent", "provisional", "updated_at",
		}),
	}).Create(&bar).Error
	if err != nil {
		return fmt.Errorf("failed to write bar for %s: %w", bar.Symbol, err)
	}
	return nil
}

// LatestBar returns the most recent bar for a symbol, or nil if none exists
func (s *BarStore) LatestBar(ctx context.Context, symbol string) (*models.DailyBar, error) {
	var bar models.DailyBar
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		First(&bar).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest bar for %s: %w", symbol, err)
	}
	return &bar, nil
}

// ActiveSymbols returns the symbols of all active instruments
func (s *BarStore) ActiveSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.Instrument{}).
		Where("status = ?", "active").
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active symbols: %w", err)
	}
	return symbols, nil
}
