package volumeprofile

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"stock_radar/services/marketdata"
	"stock_radar/services/tradingcal"
)

// fakeTickFeed serves canned ticks keyed by symbol and date.
type fakeTickFeed struct {
	days map[string][]marketdata.Tick
	err  error
}

func (f *fakeTickFeed) FetchTicks(_ context.Context, symbol, date string) ([]marketdata.Tick, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.days[symbol+"/"+date], nil
}

// flatDay builds ticks spreading `perMinute` volume across every session
// minute of the given trade date.
func flatDay(date string, perMinute float64) []marketdata.Tick {
	day, _ := time.Parse("2006-01-02", date)
	ticks := make([]marketdata.Tick, 0, tradingcal.TotalMinutes)
	for m := 0; m < 120; m++ {
		ticks = append(ticks, marketdata.Tick{
			Time:   day.Add(time.Duration(9*60+30+m) * time.Minute),
			Volume: perMinute,
		})
	}
	for m := 0; m < 120; m++ {
		ticks = append(ticks, marketdata.Tick{
			Time:   day.Add(time.Duration(13*60+m) * time.Minute),
			Volume: perMinute,
		})
	}
	return ticks
}

func TestSyncProfile_SingleDayRatios(t *testing.T) {
	feed := &fakeTickFeed{days: map[string][]marketdata.Tick{
		"AAA/2025-03-10": flatDay("2025-03-10", 100),
	}}
	store := NewMemoryStore()
	learner := NewLearner(feed, store, nil, 20)

	updated, err := learner.SyncProfile(context.Background(), "AAA", "2025-03-10")
	if err != nil {
		t.Fatalf("SyncProfile failed: %v", err)
	}
	if updated != tradingcal.TotalMinutes {
		t.Fatalf("expected %d rows updated, got %d", tradingcal.TotalMinutes, updated)
	}

	profile, _ := store.Load(context.Background(), "AAA")
	if profile == nil {
		t.Fatal("expected stored profile")
	}
	if profile.SampleCount != 1 {
		t.Fatalf("expected sample count 1, got %d", profile.SampleCount)
	}

	// Raw ratios of a fully observed day sum to 1.
	sum := 0.0
	for i := range profile.Minutes {
		sum += profile.Minutes[i].AvgRatio
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("avg ratios should sum to 1.0, got %.9f", sum)
	}

	// Cumulative averages are non-decreasing across minute index.
	prev := 0.0
	for i := range profile.Minutes {
		cur := profile.Minutes[i].AvgCumRatio
		if cur < prev-1e-12 {
			t.Fatalf("avg cumulative ratio decreased at minute %d: %.9f < %.9f", i, cur, prev)
		}
		prev = cur
	}
	if math.Abs(prev-1.0) > 1e-6 {
		t.Errorf("final cumulative ratio should be 1.0, got %.9f", prev)
	}
}

func TestSyncProfile_RepeatDateIsIdempotent(t *testing.T) {
	feed := &fakeTickFeed{days: map[string][]marketdata.Tick{
		"BBB/2025-03-10": flatDay("2025-03-10", 50),
	}}
	store := NewMemoryStore()
	learner := NewLearner(feed, store, nil, 20)

	if _, err := learner.SyncProfile(context.Background(), "BBB", "2025-03-10"); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	updated, err := learner.SyncProfile(context.Background(), "BBB", "2025-03-10")
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if updated != 0 {
		t.Errorf("repeat fold should update 0 rows, got %d", updated)
	}

	profile, _ := store.Load(context.Background(), "BBB")
	if profile.SampleCount != 1 {
		t.Errorf("repeat fold must not double-count: sample count %d", profile.SampleCount)
	}
}

func TestSyncProfile_ZeroVolumeDaySkipped(t *testing.T) {
	feed := &fakeTickFeed{days: map[string][]marketdata.Tick{}}
	store := NewMemoryStore()
	learner := NewLearner(feed, store, nil, 20)

	updated, err := learner.SyncProfile(context.Background(), "CCC", "2025-03-10")
	if err != nil {
		t.Fatalf("zero-volume day must not error: %v", err)
	}
	if updated != 0 {
		t.Errorf("zero-volume day should update 0 rows, got %d", updated)
	}
	profile, _ := store.Load(context.Background(), "CCC")
	if profile != nil {
		t.Error("zero-volume day must not create a profile")
	}
}

func TestSyncProfile_FreezeStopsLearning(t *testing.T) {
	days := map[string][]marketdata.Tick{}
	for d := 1; d <= 4; d++ {
		date := fmt.Sprintf("2025-03-%02d", d)
		days["DDD/"+date] = flatDay(date, float64(10*d))
	}
	feed := &fakeTickFeed{days: days}
	store := NewMemoryStore()
	learner := NewLearner(feed, store, nil, 3)

	for d := 1; d <= 3; d++ {
		date := fmt.Sprintf("2025-03-%02d", d)
		if _, err := learner.SyncProfile(context.Background(), "DDD", date); err != nil {
			t.Fatalf("sync %s failed: %v", date, err)
		}
	}

	frozen, _ := store.Load(context.Background(), "DDD")
	if !frozen.Frozen() {
		t.Fatal("profile should be frozen after reaching the threshold")
	}
	before := frozen.Minutes[0]

	updated, err := learner.SyncProfile(context.Background(), "DDD", "2025-03-04")
	if err != nil {
		t.Fatalf("post-freeze sync must not error: %v", err)
	}
	if updated != 0 {
		t.Errorf("post-freeze sync should update 0 rows, got %d", updated)
	}

	after, _ := store.Load(context.Background(), "DDD")
	if after.SampleCount != 3 {
		t.Errorf("frozen sample count changed: %d", after.SampleCount)
	}
	if after.Minutes[0] != before {
		t.Error("frozen minute stats changed after further sync")
	}
}

func TestFold_SkewedDayCumulativeShape(t *testing.T) {
	// All volume in the first morning minute: cumulative ratio hits 1
	// immediately and stays there.
	obs := &Observation{}
	obs.Minutes[0] = 5000
	obs.Total = 5000

	p := NewProfile("EEE")
	if updated := p.Fold("2025-03-10", obs); updated != tradingcal.TotalMinutes {
		t.Fatalf("expected full fold, got %d", updated)
	}
	if p.Minutes[0].AvgCumRatio != 1.0 {
		t.Errorf("minute 0 cumulative should be 1.0, got %f", p.Minutes[0].AvgCumRatio)
	}
	if p.Minutes[239].AvgCumRatio != 1.0 {
		t.Errorf("minute 239 cumulative should be 1.0, got %f", p.Minutes[239].AvgCumRatio)
	}
	if p.Minutes[1].AvgRatio != 0 {
		t.Errorf("minute 1 ratio should be 0, got %f", p.Minutes[1].AvgRatio)
	}
}

func TestSyncUniverse_Counts(t *testing.T) {
	feed := &fakeTickFeed{days: map[string][]marketdata.Tick{
		"AAA/2025-03-10": flatDay("2025-03-10", 100),
		// BBB has no ticks: skipped
	}}
	store := NewMemoryStore()
	learner := NewLearner(feed, store, nil, 20)

	result, err := learner.SyncUniverse(context.Background(), []string{"AAA", "BBB"}, "2025-03-10")
	if err != nil {
		t.Fatalf("SyncUniverse failed: %v", err)
	}
	if result.Success != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("unexpected counts: %+v", result)
	}
}

func TestSyncUniverse_TotalFeedFailure(t *testing.T) {
	feed := &fakeTickFeed{err: fmt.Errorf("upstream down")}
	store := NewMemoryStore()
	learner := NewLearner(feed, store, nil, 20)

	result, err := learner.SyncUniverse(context.Background(), []string{"AAA", "BBB"}, "2025-03-10")
	if err == nil {
		t.Fatal("expected error when every symbol fails")
	}
	if result.Failed != 2 {
		t.Errorf("expected 2 failures, got %+v", result)
	}
}
