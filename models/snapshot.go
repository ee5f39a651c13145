package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// IndicatorRankSnapshot is the latest ranked capture of one instrument for
// one screening indicator. Each sync cycle replaces the row per
// (indicator_code, symbol); no history is retained.
type IndicatorRankSnapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	IndicatorCode string    `gorm:"uniqueIndex:idx_snapshot_code_symbol;not null" json:"indicator_code"`
	Symbol        string    `gorm:"uniqueIndex:idx_snapshot_code_symbol;not null" json:"symbol"`
	Name          string    `json:"name"`
	Rank          int       `gorm:"index" json:"rank"`
	Industry      string    `json:"industry"`
	PriceChangePct float64  `json:"price_change_pct"`
	VolumeRatio   float64   `json:"volume_ratio"`
	Turnover      float64   `json:"turnover"`
	Detail        string    `gorm:"type:text" json:"-"` // indicator-specific metric columns, JSON
	CapturedAt    time.Time `gorm:"index" json:"captured_at"`
}

// DetailMap decodes the indicator-specific metric columns
func (s *IndicatorRankSnapshot) DetailMap() map[string]float64 {
	if s.Detail == "" {
		return nil
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(s.Detail), &m); err != nil {
		return nil
	}
	return m
}

// SetDetail encodes the indicator-specific metric columns
func (s *IndicatorRankSnapshot) SetDetail(m map[string]float64) {
	if len(m) == 0 {
		s.Detail = ""
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	s.Detail = string(data)
}

// MigrateSnapshotModels runs database migrations for indicator snapshots
func MigrateSnapshotModels(db *gorm.DB) error {
	return db.AutoMigrate(&IndicatorRankSnapshot{})
}
