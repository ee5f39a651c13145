package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"stock_radar/models"
)

// EODImporter writes finalized daily bars from the closing quote snapshot.
// A finalized bar supersedes any provisional bar the realtime refresher
// wrote for the same date.
type EODImporter struct {
	feed QuoteFeed
	bars *BarStore
}

// NewEODImporter creates an end-of-day bar importer
func NewEODImporter(feed QuoteFeed, bars *BarStore) *EODImporter {
	return &EODImporter{feed: feed, bars: bars}
}

// ImportResult holds per-run counts of one end-of-day import.
type ImportResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ImportDaily writes today's finalized bar for each symbol from its closing
// quote. Batch failures are counted and skipped; the run only errors when
// every batch fails.
func (i *EODImporter) ImportDaily(ctx context.Context, symbols []string) (ImportResult, error) {
	var result ImportResult
	if len(symbols) == 0 {
		return result, nil
	}

	size := i.feed.MaxBatchSize()
	batches := 0
	failedBatches := 0
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		batches++

		quotes, err := i.feed.FetchQuotes(ctx, symbols[start:end])
		if err != nil {
			log.Printf("EOD import: batch of %d symbols failed: %v", end-start, err)
			failedBatches++
			result.Failed += end - start
			continue
		}

		for _, quote := range quotes {
			if quote.CumulativeVolume <= 0 || quote.Price <= 0 {
				result.Skipped++
				continue
			}
			if err := i.bars.WriteBar(ctx, finalBar(quote)); err != nil {
				log.Printf("EOD import: failed to write bar for %s: %v", quote.Symbol, err)
				result.Failed++
				continue
			}
			result.Written++
		}
	}

	log.Printf("EOD import completed: written=%d, skipped=%d, failed=%d",
		result.Written, result.Skipped, result.Failed)

	if failedBatches == batches {
		return result, fmt.Errorf("EOD import failed: all %d quote batches errored", batches)
	}
	return result, nil
}

func finalBar(quote Quote) models.DailyBar {
	change := quote.Price - quote.RefPrice
	changePercent := 0.0
	if quote.RefPrice > 0 {
		changePercent = change / quote.RefPrice * 100
	}

	y, m, d := quote.Time.Date()
	return models.DailyBar{
		Symbol:        quote.Symbol,
		Date:          time.Date(y, m, d, 0, 0, 0, 0, quote.Time.Location()),
		Open:          decimal.NewFromFloat(quote.Open),
		High:          decimal.NewFromFloat(quote.High),
		Low:           decimal.NewFromFloat(quote.Low),
		Close:         decimal.NewFromFloat(quote.Price),
		Volume:        quote.CumulativeVolume,
		Turnover:      decimal.NewFromFloat(quote.Turnover),
		Change:        decimal.NewFromFloat(change),
		ChangePercent: decimal.NewFromFloat(changePercent),
		Provisional:   false,
	}
}
