package indicators

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_radar/models"
)

// SnapshotStore persists indicator rank snapshots. Only the latest capture
// per (indicator, symbol) survives a sync.
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore creates a snapshot store backed by the primary database
func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Replace upserts the new capture for one indicator and removes rows of
// instruments that dropped out of it. Returns the number of rows written.
func (s *SnapshotStore) Replace(ctx context.Context, code string, rows []models.IndicatorRankSnapshot) (int, error) {
	if len(rows) == 0 {
		err := s.db.WithContext(ctx).
			Where("indicator_code = ?", code).
			Delete(&models.IndicatorRankSnapshot{}).Error
		if err != nil {
			return 0, fmt.Errorf("failed to clear snapshot for %s: %w", code, err)
		}
		return 0, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "indicator_code"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "rank", "industry", "price_change_pct",
			"volume_ratio", "turnover", "detail", "captured_at",
		}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		return 0, fmt.Errorf("failed to write snapshot for %s: %w", code, err)
	}

	// Instruments absent from this capture keep their old captured_at and
	// are swept away here.
	err = s.db.WithContext(ctx).
		Where("indicator_code = ? AND captured_at < ?", code, rows[0].CapturedAt).
		Delete(&models.IndicatorRankSnapshot{}).Error
	if err != nil {
		log.Printf("Warning: failed to sweep stale snapshot rows for %s: %v", code, err)
	}
	return len(rows), nil
}

// Query pages the snapshot of one indicator in rank order
func (s *SnapshotStore) Query(ctx context.Context, code string, limit, offset int) (int64, []models.IndicatorRankSnapshot, error) {
	var total int64
	base := s.db.WithContext(ctx).
		Model(&models.IndicatorRankSnapshot{}).
		Where("indicator_code = ?", code)
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to count snapshot for %s: %w", code, err)
	}

	var rows []models.IndicatorRankSnapshot
	err := base.Order("rank ASC, symbol ASC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query snapshot for %s: %w", code, err)
	}
	return total, rows, nil
}

// FetchAll loads one indicator's full snapshot keyed by symbol, plus the
// symbols in rank order
func (s *SnapshotStore) FetchAll(ctx context.Context, code string) (map[string]models.IndicatorRankSnapshot, []string, error) {
	var rows []models.IndicatorRankSnapshot
	err := s.db.WithContext(ctx).
		Where("indicator_code = ?", code).
		Order("rank ASC, symbol ASC").
		Find(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot for %s: %w", code, err)
	}

	bySymbol := make(map[string]models.IndicatorRankSnapshot, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		bySymbol[row.Symbol] = row
		order = append(order, row.Symbol)
	}
	return bySymbol, order, nil
}
