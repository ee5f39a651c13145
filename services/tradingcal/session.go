package tradingcal

import "time"

// The trading day is two continuous sessions separated by a midday break:
// morning 09:30-11:30 and afternoon 13:00-15:00. Concatenated they give
// 240 one-minute slots, morning 0-119 and afternoon 120-239.
const (
	SessionMinutes = 120
	TotalMinutes   = 2 * SessionMinutes

	morningOpen    = 9*60 + 30  // 09:30
	morningClose   = 11*60 + 30 // 11:30
	afternoonOpen  = 13 * 60    // 13:00
	afternoonClose = 15 * 60    // 15:00
)

// MinuteIndex maps a wall-clock time to its 0-239 session minute index.
// Times outside either session are clamped to the nearest boundary:
// pre-open maps to 0, the midday break maps to the last morning minute,
// after-close maps to the last minute of the day.
func MinuteIndex(t time.Time) int {
	hm := t.Hour()*60 + t.Minute()
	switch {
	case hm < morningOpen:
		return 0
	case hm < morningClose:
		return hm - morningOpen
	case hm < afternoonOpen:
		return SessionMinutes - 1
	case hm < afternoonClose:
		return SessionMinutes + (hm - afternoonOpen)
	default:
		return TotalMinutes - 1
	}
}

// InSession reports whether t falls inside either trading session.
func InSession(t time.Time) bool {
	hm := t.Hour()*60 + t.Minute()
	return (hm >= morningOpen && hm < morningClose) ||
		(hm >= afternoonOpen && hm < afternoonClose)
}

// IsTradingDay reports whether t falls on a weekday.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen reports whether the market is open at t.
func IsMarketOpen(t time.Time) bool {
	return IsTradingDay(t) && InSession(t)
}

// DateString formats t as the yyyy-MM-dd trade date key.
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}
