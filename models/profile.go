package models

import (
	"time"

	"gorm.io/gorm"
)

// MinuteProfile is one minute slot of an instrument's learned intraday
// volume distribution. 240 rows per symbol cover the two continuous
// trading sessions (morning 0-119, afternoon 120-239).
//
// RatioSum and CumRatioSum are running sums across learned days; the
// averages are recomputed from the sums on every fold, never
// drift-accumulated. Once Frozen is set the row is read-only.
type MinuteProfile struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Symbol        string    `gorm:"uniqueIndex:idx_profile_symbol_minute;not null" json:"symbol"`
	MinuteIndex   int       `gorm:"uniqueIndex:idx_profile_symbol_minute" json:"minute_index"`
	RatioSum      float64   `json:"ratio_sum"`
	CumRatioSum   float64   `json:"cum_ratio_sum"`
	SampleCount   int       `json:"sample_count"`
	AvgRatio      float64   `json:"avg_ratio"`
	AvgCumRatio   float64   `json:"avg_cum_ratio"`
	Frozen        bool      `json:"frozen"`
	LastTradeDate string    `json:"last_trade_date"` // yyyy-MM-dd of the last folded day
	UpdatedAt     time.Time `json:"updated_at"`
}

// MigrateProfileModels runs database migrations for volume profile models
func MigrateProfileModels(db *gorm.DB) error {
	return db.AutoMigrate(&MinuteProfile{})
}
