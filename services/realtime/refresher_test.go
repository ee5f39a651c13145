package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"stock_radar/models"
	"stock_radar/services/marketdata"
	"stock_radar/services/volumeprofile"
)

// fakeQuoteFeed serves quotes per symbol and can fail specific chunks.
type fakeQuoteFeed struct {
	mu        sync.Mutex
	batchSize int
	quotes    map[string]marketdata.Quote
	failFor   map[string]bool // chunk fails if it contains any of these
	calls     int
}

func (f *fakeQuoteFeed) MaxBatchSize() int { return f.batchSize }

func (f *fakeQuoteFeed) FetchQuotes(_ context.Context, symbols []string) ([]marketdata.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, s := range symbols {
		if f.failFor[s] {
			return nil, fmt.Errorf("feed error on %s", s)
		}
	}
	var quotes []marketdata.Quote
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			quotes = append(quotes, q)
		}
	}
	return quotes, nil
}

type fakeBarWriter struct {
	mu   sync.Mutex
	bars map[string]models.DailyBar
}

func (w *fakeBarWriter) WriteBar(_ context.Context, bar models.DailyBar) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bars == nil {
		w.bars = make(map[string]models.DailyBar)
	}
	w.bars[bar.Symbol] = bar
	return nil
}

type fakeRecomputer struct {
	mu      sync.Mutex
	symbols []string
}

func (r *fakeRecomputer) Recompute(_ context.Context, symbols []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols = append(r.symbols, symbols...)
	return len(symbols), nil
}

func liveQuote(symbol string, price, volume float64) marketdata.Quote {
	return marketdata.Quote{
		Symbol:           symbol,
		Time:             time.Date(2025, 3, 10, 11, 29, 0, 0, time.Local),
		Price:            price,
		Open:             price,
		High:             price,
		Low:              price,
		RefPrice:         price,
		CumulativeVolume: volume,
	}
}

func newTestRefresher(feed marketdata.QuoteFeed, bars barWriter, metrics metricsRecomputer) *Refresher {
	estimator := volumeprofile.NewEstimator(volumeprofile.NewMemoryStore())
	return NewRefresher(feed, estimator, bars, metrics, nil)
}

func TestRefresh_ProjectsVolumeIntoProvisionalBar(t *testing.T) {
	feed := &fakeQuoteFeed{
		batchSize: 10,
		quotes:    map[string]marketdata.Quote{"AAA": liveQuote("AAA", 25, 500_000)},
	}
	writer := &fakeBarWriter{}
	metrics := &fakeRecomputer{}
	refresher := newTestRefresher(feed, writer, metrics)

	result, err := refresher.Refresh(context.Background(), []string{"AAA"})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed, got %d", result.Processed)
	}
	if result.MetricsUpdated != 1 {
		t.Errorf("expected 1 metric update, got %d", result.MetricsUpdated)
	}

	bar, ok := writer.bars["AAA"]
	if !ok {
		t.Fatal("no provisional bar written")
	}
	if !bar.Provisional {
		t.Error("intraday bar must be provisional")
	}
	// Quote at the end of the morning session with no learned profile uses
	// the linear ratio 0.5, doubling the observed volume.
	if bar.Volume != 1_000_000 {
		t.Errorf("expected projected volume 1000000, got %f", bar.Volume)
	}
}

func TestRefresh_ChunkFailureIsIsolated(t *testing.T) {
	feed := &fakeQuoteFeed{
		batchSize: 2,
		quotes: map[string]marketdata.Quote{
			"AAA": liveQuote("AAA", 25, 100),
			"BBB": liveQuote("BBB", 30, 100),
			"CCC": liveQuote("CCC", 35, 100),
		},
		failFor: map[string]bool{"CCC": true},
	}
	writer := &fakeBarWriter{}
	refresher := newTestRefresher(feed, writer, &fakeRecomputer{})

	result, err := refresher.Refresh(context.Background(), []string{"AAA", "BBB", "CCC"})
	if err != nil {
		t.Fatalf("partial chunk failure must not fail the pass: %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("expected 2 processed from the surviving chunk, got %d", result.Processed)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed from the dead chunk, got %d", result.Failed)
	}
	if _, ok := writer.bars["CCC"]; ok {
		t.Error("failed chunk must not write bars")
	}
}

func TestRefresh_AllChunksFailedIsError(t *testing.T) {
	feed := &fakeQuoteFeed{
		batchSize: 2,
		failFor:   map[string]bool{"AAA": true, "CCC": true},
	}
	refresher := newTestRefresher(feed, &fakeBarWriter{}, &fakeRecomputer{})

	_, err := refresher.Refresh(context.Background(), []string{"AAA", "BBB", "CCC", "DDD"})
	if err == nil {
		t.Fatal("total feed unavailability must be an error")
	}
}

func TestRefresh_SkipsDegenerateQuotes(t *testing.T) {
	feed := &fakeQuoteFeed{
		batchSize: 10,
		quotes: map[string]marketdata.Quote{
			"AAA": liveQuote("AAA", 25, 100),
			"BBB": liveQuote("BBB", 0, 0), // no trades yet
		},
	}
	writer := &fakeBarWriter{}
	refresher := newTestRefresher(feed, writer, &fakeRecomputer{})

	result, err := refresher.Refresh(context.Background(), []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Processed != 1 || result.Skipped != 1 {
		t.Errorf("expected 1 processed and 1 skipped, got %+v", result)
	}
	if _, ok := writer.bars["BBB"]; ok {
		t.Error("degenerate quote must not write a bar")
	}
}

func TestRefresh_ChunksRespectBatchSize(t *testing.T) {
	quotes := make(map[string]marketdata.Quote)
	symbols := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		s := fmt.Sprintf("S%02d", i)
		quotes[s] = liveQuote(s, 10, 100)
		symbols = append(symbols, s)
	}
	feed := &fakeQuoteFeed{batchSize: 2, quotes: quotes}
	refresher := newTestRefresher(feed, &fakeBarWriter{}, &fakeRecomputer{})

	result, err := refresher.Refresh(context.Background(), symbols)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if result.Processed != 5 {
		t.Errorf("expected 5 processed, got %d", result.Processed)
	}
	if feed.calls != 3 {
		t.Errorf("5 symbols at batch size 2 should take 3 fetches, got %d", feed.calls)
	}
}
