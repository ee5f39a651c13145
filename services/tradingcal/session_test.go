package tradingcal

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC) // a Monday
}

func TestMinuteIndex_Boundaries(t *testing.T) {
	tests := []struct {
		hour, min int
		want      int
	}{
		{8, 0, 0},     // pre-open clamps to first minute
		{9, 29, 0},    // still pre-open
		{9, 30, 0},    // open
		{9, 31, 1},
		{10, 30, 60},
		{11, 29, 119}, // last morning minute
		{11, 30, 119}, // midday break clamps to end of morning
		{12, 15, 119},
		{12, 59, 119},
		{13, 0, 120}, // afternoon open
		{14, 0, 180},
		{14, 59, 239}, // last afternoon minute
		{15, 0, 239},  // close clamps to last minute
		{18, 30, 239},
	}
	for _, tt := range tests {
		got := MinuteIndex(at(tt.hour, tt.min))
		if got != tt.want {
			t.Errorf("MinuteIndex(%02d:%02d) = %d, want %d", tt.hour, tt.min, got, tt.want)
		}
	}
}

func TestInSession(t *testing.T) {
	if !InSession(at(9, 30)) {
		t.Error("09:30 should be in session")
	}
	if InSession(at(12, 0)) {
		t.Error("12:00 is the midday break")
	}
	if !InSession(at(13, 0)) {
		t.Error("13:00 should be in session")
	}
	if InSession(at(15, 0)) {
		t.Error("15:00 is after close")
	}
}

func TestIsMarketOpen_Weekend(t *testing.T) {
	saturday := time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)
	if IsMarketOpen(saturday) {
		t.Error("market should be closed on Saturday")
	}
	monday := at(10, 0)
	if !IsMarketOpen(monday) {
		t.Error("market should be open Monday 10:00")
	}
}
