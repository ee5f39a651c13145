package volumeprofile

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"
)

func sessionTime(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.Local)
}

func TestEstimate_LinearFallbackWithoutProfile(t *testing.T) {
	est := NewEstimator(NewMemoryStore())

	// End of the morning session is minute 119: linear ratio 120/240 = 0.5.
	res := est.Estimate(context.Background(), "AAA", sessionTime(11, 29), 1_000_000)
	if !res.LinearFallback {
		t.Error("expected linear fallback with no learned profile")
	}
	if res.MinuteIndex != 119 {
		t.Errorf("expected minute index 119, got %d", res.MinuteIndex)
	}
	if math.Abs(res.RatioUsed-0.5) > 1e-9 {
		t.Errorf("expected ratio 0.5, got %f", res.RatioUsed)
	}
	if math.Abs(res.EstimatedVolume-2_000_000) > 1e-6 {
		t.Errorf("expected estimate 2000000, got %f", res.EstimatedVolume)
	}
}

func TestEstimate_UsesLearnedRatio(t *testing.T) {
	store := NewMemoryStore()
	p := NewProfile("BBB")
	obs := &Observation{}
	// Front-loaded day: 80% of volume in the first minute.
	obs.Minutes[0] = 800
	obs.Minutes[239] = 200
	obs.Total = 1000
	p.Fold("2025-03-07", obs)
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	est := NewEstimator(store)
	res := est.Estimate(context.Background(), "BBB", sessionTime(9, 30), 400)
	if res.LinearFallback {
		t.Error("should use the learned ratio, not the linear model")
	}
	if math.Abs(res.RatioUsed-0.8) > 1e-9 {
		t.Errorf("expected ratio 0.8, got %f", res.RatioUsed)
	}
	if math.Abs(res.EstimatedVolume-500) > 1e-6 {
		t.Errorf("expected estimate 500, got %f", res.EstimatedVolume)
	}
}

func TestEstimate_EpsilonClamp(t *testing.T) {
	store := NewMemoryStore()
	p := NewProfile("CCC")
	// A learned but vanishing ratio at the open gets clamped, so a huge
	// observed volume cannot blow up the projection.
	p.SampleCount = 1
	p.Minutes[0].AvgCumRatio = 1e-9
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	est := NewEstimator(store)
	res := est.Estimate(context.Background(), "CCC", sessionTime(9, 30), 100)
	if res.RatioUsed != ratioEpsilon {
		t.Errorf("expected ratio clamped to %g, got %g", ratioEpsilon, res.RatioUsed)
	}
	if math.Abs(res.EstimatedVolume-100/ratioEpsilon) > 1e-3 {
		t.Errorf("unexpected clamped estimate %f", res.EstimatedVolume)
	}
}

func TestEstimate_AfterCloseReturnsObserved(t *testing.T) {
	est := NewEstimator(NewMemoryStore())

	// After the close the index clamps to 239, linear ratio 240/240 = 1.
	res := est.Estimate(context.Background(), "DDD", sessionTime(16, 45), 750)
	if math.Abs(res.RatioUsed-1.0) > 1e-9 {
		t.Errorf("expected ratio 1.0 after close, got %f", res.RatioUsed)
	}
	if math.Abs(res.EstimatedVolume-750) > 1e-6 {
		t.Errorf("expected estimate to equal observed volume, got %f", res.EstimatedVolume)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (*Profile, error) {
	return nil, fmt.Errorf("connection refused")
}
func (failingStore) Save(context.Context, *Profile) error { return nil }

func TestEstimate_StoreFailureFallsBack(t *testing.T) {
	est := NewEstimator(failingStore{})

	res := est.Estimate(context.Background(), "EEE", sessionTime(13, 0), 600)
	if res == nil {
		t.Fatal("estimate must not be nil on store failure")
	}
	if !res.LinearFallback {
		t.Error("store failure should fall back to the linear model")
	}
	// Minute 120 opens the afternoon session: ratio 121/240.
	want := 121.0 / 240.0
	if math.Abs(res.RatioUsed-want) > 1e-9 {
		t.Errorf("expected ratio %f, got %f", want, res.RatioUsed)
	}
}
