package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Instrument represents a tradable stock symbol
type Instrument struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Symbol      string          `gorm:"uniqueIndex;not null" json:"symbol"`
	Name        string          `json:"name"`
	Exchange    string          `json:"exchange"` // HOSE, HNX, UPCOM
	Industry    string          `json:"industry"`
	MarketCap   decimal.Decimal `gorm:"type:decimal(20,2)" json:"market_cap"`
	ListingDate *time.Time      `json:"listing_date"`
	Status      string          `json:"status"` // active, delisted, suspended
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DailyBar represents one daily OHLCV bar for an instrument.
// A provisional bar is written intraday with a projected full-day volume and
// is fully overwritten on each refresh; the finalized end-of-day bar
// supersedes it.
type DailyBar struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Symbol        string          `gorm:"uniqueIndex:idx_bar_symbol_date;not null" json:"symbol"`
	Date          time.Time       `gorm:"uniqueIndex:idx_bar_symbol_date" json:"date"`
	Open          decimal.Decimal `gorm:"type:decimal(15,2)" json:"open"`
	High          decimal.Decimal `gorm:"type:decimal(15,2)" json:"high"`
	Low           decimal.Decimal `gorm:"type:decimal(15,2)" json:"low"`
	Close         decimal.Decimal `gorm:"type:decimal(15,2)" json:"close"`
	Volume        float64         `json:"volume"`
	Turnover      decimal.Decimal `gorm:"type:decimal(20,2)" json:"turnover"`
	Change        decimal.Decimal `gorm:"type:decimal(15,2)" json:"change"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"change_percent"`
	Provisional   bool            `gorm:"index" json:"provisional"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DailyTradeMetric holds the latest derived trade metrics per instrument.
// Recomputed after end-of-day bar writes and after provisional intraday
// refreshes; only the latest row per symbol is kept.
type DailyTradeMetric struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Symbol        string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Date          time.Time `json:"date"`
	MA10          float64   `json:"ma_10"`
	MA20          float64   `json:"ma_20"`
	MA50          float64   `json:"ma_50"`
	RSI14         float64   `json:"rsi_14"`
	MACDHist      float64   `json:"macd_hist"`
	AvgVol20      float64   `json:"avg_vol_20"`
	VolumeRatio   float64   `json:"volume_ratio"`
	ChangePercent float64   `json:"change_percent"`
	Provisional   bool      `json:"provisional"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Instrument{},
		&DailyBar{},
		&DailyTradeMetric{},
	)
}
