package scheduler

// Package scheduler runs the recurring jobs of the market data pipeline:
// - Realtime quote refresh during trading hours
// - End-of-day bar import after the close
// - Volume profile learning once final bars are in
// - Indicator snapshot syncs
// - Weekly local cache cleanup
//
// The job definitions live in jobs.go
