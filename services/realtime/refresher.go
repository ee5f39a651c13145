package realtime

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock_radar/models"
	"stock_radar/services/marketdata"
	"stock_radar/services/volumeprofile"
)

const defaultWorkers = 4

// volumeEstimator projects full-day volume from a partial observation.
type volumeEstimator interface {
	Estimate(ctx context.Context, symbol string, at time.Time, observedVolume float64) *volumeprofile.Estimate
}

// barWriter is the provisional-bar write surface of the bar store.
type barWriter interface {
	WriteBar(ctx context.Context, bar models.DailyBar) error
}

// metricsRecomputer rebuilds derived daily trade metrics after bar writes.
type metricsRecomputer interface {
	Recompute(ctx context.Context, symbols []string) (int, error)
}

// broadcaster pushes refresh results to live consumers.
type broadcaster interface {
	Broadcast(msgType string, data any)
}

// RefreshResult holds per-run counts of one realtime refresh pass.
type RefreshResult struct {
	Processed      int       `json:"processed"`
	MetricsUpdated int       `json:"metrics_updated"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	RefreshedAt    time.Time `json:"refreshed_at"`
}

// Refresher ingests live quotes in feed-sized chunks, projects each
// instrument's full-day volume, overwrites its provisional daily bar and
// triggers metric recomputation for the refreshed set.
type Refresher struct {
	feed      marketdata.QuoteFeed
	estimator volumeEstimator
	bars      barWriter
	metrics   metricsRecomputer
	hub       broadcaster // optional
	workers   int
}

// NewRefresher creates a realtime refresh coordinator. The hub may be nil
// when no live consumers exist.
func NewRefresher(feed marketdata.QuoteFeed, estimator volumeEstimator, bars barWriter, metrics metricsRecomputer, hub broadcaster) *Refresher {
	return &Refresher{
		feed:      feed,
		estimator: estimator,
		bars:      bars,
		metrics:   metrics,
		hub:       hub,
		workers:   defaultWorkers,
	}
}

// Refresh runs one refresh pass over the given symbols. Chunk failures are
// isolated: a failed quote batch is counted and skipped, and the pass only
// errors when no chunk yields any data.
func (r *Refresher) Refresh(ctx context.Context, symbols []string) (RefreshResult, error) {
	result := RefreshResult{RefreshedAt: time.Now()}
	if len(symbols) == 0 {
		return result, nil
	}

	chunks := chunkSymbols(symbols, r.feed.MaxBatchSize())

	var mu sync.Mutex
	var wg sync.WaitGroup
	var refreshed []string
	failedChunks := 0

	jobs := make(chan []string)
	workers := r.workers
	if workers <= 0 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				processed, skipped, err := r.processChunk(ctx, chunk)
				mu.Lock()
				if err != nil {
					log.Printf("Realtime refresh: chunk of %d symbols failed: %v", len(chunk), err)
					failedChunks++
					result.Failed += len(chunk)
				} else {
					result.Processed += len(processed)
					result.Skipped += skipped
					refreshed = append(refreshed, processed...)
				}
				mu.Unlock()
			}
		}()
	}

	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return result, ctx.Err()
		case jobs <- chunk:
		}
	}
	close(jobs)
	wg.Wait()

	if failedChunks == len(chunks) {
		return result, fmt.Errorf("realtime refresh failed: all %d quote chunks errored", len(chunks))
	}

	if len(refreshed) > 0 && r.metrics != nil {
		updated, err := r.metrics.Recompute(ctx, refreshed)
		if err != nil {
			log.Printf("Realtime refresh: metric recompute failed: %v", err)
		} else {
			result.MetricsUpdated = updated
		}
	}

	if r.hub != nil && len(refreshed) > 0 {
		r.hub.Broadcast("refresh", result)
	}

	log.Printf("Realtime refresh completed: processed=%d, skipped=%d, failed=%d, metrics=%d",
		result.Processed, result.Skipped, result.Failed, result.MetricsUpdated)
	return result, nil
}

// processChunk fetches one quote batch and writes provisional bars,
// returning the refreshed symbols and the count of skipped quotes
func (r *Refresher) processChunk(ctx context.Context, chunk []string) ([]string, int, error) {
	quotes, err := r.feed.FetchQuotes(ctx, chunk)
	if err != nil {
		return nil, 0, err
	}

	var processed []string
	skipped := 0
	for _, quote := range quotes {
		if quote.CumulativeVolume <= 0 || quote.Price <= 0 {
			skipped++
			continue
		}

		bar := r.provisionalBar(ctx, quote)
		if err := r.bars.WriteBar(ctx, bar); err != nil {
			log.Printf("Realtime refresh: failed to write bar for %s: %v", quote.Symbol, err)
			skipped++
			continue
		}
		processed = append(processed, quote.Symbol)
	}
	return processed, skipped, nil
}

// provisionalBar builds today's provisional bar from a live quote, using
// the projected full-day volume in place of the raw partial total
func (r *Refresher) provisionalBar(ctx context.Context, quote marketdata.Quote) models.DailyBar {
	estimate := r.estimator.Estimate(ctx, quote.Symbol, quote.Time, quote.CumulativeVolume)

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
		Volume:        estimate.EstimatedVolume,
		Turnover:      decimal.NewFromFloat(quote.Turnover),
		Change:        decimal.NewFromFloat(change),
		ChangePercent: decimal.NewFromFloat(changePercent),
		Provisional:   true,
	}
}

func chunkSymbols(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	var chunks [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks = append(chunks, symbols[start:end])
	}
	return chunks
}
