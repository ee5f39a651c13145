package volumeprofile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_radar/models"
	"stock_radar/services/tradingcal"
)

// Store persists learned profiles. Load returns (nil, nil) when no profile
// exists for the symbol yet.
type Store interface {
	Load(ctx context.Context, symbol string) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
}

// GormStore persists profiles as 240 minute rows per symbol in the primary
// database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed profile store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Load reads a symbol's profile rows, or (nil, nil) if none exist
func (s *GormStore) Load(ctx context.Context, symbol string) (*Profile, error) {
	var rows []models.MinuteProfile
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("minute_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	profile := NewProfile(symbol)
	for _, row := range rows {
		if row.MinuteIndex < 0 || row.MinuteIndex >= tradingcal.TotalMinutes {
			continue
		}
		profile.Minutes[row.MinuteIndex] = MinuteStats{
			RatioSum:    row.RatioSum,
			CumRatioSum: row.CumRatioSum,
			AvgRatio:    row.AvgRatio,
			AvgCumRatio: row.AvgCumRatio,
		}
		// Count, date and frozen flag are denormalized onto every row;
		// any row carries the profile-level values.
		profile.SampleCount = row.SampleCount
		profile.LastTradeDate = row.LastTradeDate
		if row.Frozen {
			profile.State = StateFrozen
		}
	}
	return profile, nil
}

// Save upserts all 240 minute rows of a profile
func (s *GormStore) Save(ctx context.Context, profile *Profile) error {
	now := time.Now()
	rows := make([]models.MinuteProfile, tradingcal.TotalMinutes)
	for i := range profile.Minutes {
		m := profile.Minutes[i]
		rows[i] = models.MinuteProfile{
			Symbol:        profile.Symbol,
			MinuteIndex:   i,
			RatioSum:      m.RatioSum,
			CumRatioSum:   m.CumRatioSum,
			SampleCount:   profile.SampleCount,
			AvgRatio:      m.AvgRatio,
			AvgCumRatio:   m.AvgCumRatio,
			Frozen:        profile.Frozen(),
			LastTradeDate: profile.LastTradeDate,
			UpdatedAt:     now,
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "minute_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ratio_sum", "cum_ratio_sum", "sample_count",
			"avg_ratio", "avg_cum_ratio", "frozen", "last_trade_date", "updated_at",
		}),
	}).CreateInBatches(rows, 240).Error
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", profile.Symbol, err)
	}
	return nil
}

// MemoryStore keeps profiles in memory. Used by tests and as a read-through
// layer when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory profile store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Load returns the stored profile, or (nil, nil) if absent
func (s *MemoryStore) Load(_ context.Context, symbol string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[symbol]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Save stores a copy of the profile
func (s *MemoryStore) Save(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.Symbol] = &cp
	return nil
}
