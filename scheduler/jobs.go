package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"stock_radar/models"
	"stock_radar/services/dailymetrics"
	"stock_radar/services/indicators"
	"stock_radar/services/localstore"
	"stock_radar/services/marketdata"
	"stock_radar/services/mirror"
	"stock_radar/services/realtime"
	"stock_radar/services/tradingcal"
	"stock_radar/services/volumeprofile"
)

// Scheduler manages the recurring pipeline jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	bars      *marketdata.BarStore
	importer  *marketdata.EODImporter
	learner   *volumeprofile.Learner
	profiles  volumeprofile.Store
	metrics   *dailymetrics.Recomputer
	catalog   *indicators.Catalog
	snapshots *indicators.SnapshotStore
	refresher *realtime.Refresher
	local     *localstore.Client // optional
	atlas     *mirror.MongoMirror
}

// New creates a scheduler over the wired services
func New(bars *marketdata.BarStore, importer *marketdata.EODImporter, learner *volumeprofile.Learner,
	profiles volumeprofile.Store, metrics *dailymetrics.Recomputer, catalog *indicators.Catalog,
	snapshots *indicators.SnapshotStore, refresher *realtime.Refresher,
	local *localstore.Client, atlas *mirror.MongoMirror) *Scheduler {
	return &Scheduler{
		cron:      gocron.NewScheduler(time.Local),
		bars:      bars,
		importer:  importer,
		learner:   learner,
		profiles:  profiles,
		metrics:   metrics,
		catalog:   catalog,
		snapshots: snapshots,
		refresher: refresher,
		local:     local,
		atlas:     atlas,
	}
}

// Start registers and starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Refresh live quotes every 5 minutes during trading hours.
	s.cron.Every(5).Minutes().Do(func() {
		if tradingcal.IsMarketOpen(time.Now()) {
			s.refreshRealtime()
		}
	})

	// Finalize daily bars shortly after the close.
	s.cron.Every(1).Day().At("15:15").Do(func() {
		if tradingcal.IsTradingDay(time.Now()) {
			s.importDailyBars()
		}
	})

	// Fold the finished day into volume profiles once final bars are in.
	s.cron.Every(1).Day().At("15:45").Do(func() {
		if tradingcal.IsTradingDay(time.Now()) {
			s.learnProfiles()
		}
	})

	// Refresh indicator snapshots after metrics settle.
	s.cron.Every(1).Day().At("16:15").Do(func() {
		if tradingcal.IsTradingDay(time.Now()) {
			s.syncIndicators()
		}
	})

	// Prune the local tick cache weekly.
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupLocalCache()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) refreshRealtime() {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	symbols, err := s.bars.ActiveSymbols(ctx)
	if err != nil {
		log.Printf("Realtime refresh job: failed to load universe: %v", err)
		return
	}
	if _, err := s.refresher.Refresh(ctx, symbols); err != nil {
		log.Printf("Realtime refresh job failed: %v", err)
	}
}

func (s *Scheduler) importDailyBars() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	symbols, err := s.bars.ActiveSymbols(ctx)
	if err != nil {
		log.Printf("EOD import job: failed to load universe: %v", err)
		return
	}

	started := time.Now()
	result, err := s.importer.ImportDaily(ctx, symbols)
	if err != nil {
		log.Printf("EOD import job failed: %v", err)
	}
	s.recordRun("eod_import", tradingcal.DateString(started), result.Written, result.Skipped, result.Failed, started)

	// Finalized bars change the derived metrics.
	if result.Written > 0 {
		if _, err := s.metrics.Recompute(ctx, symbols); err != nil {
			log.Printf("EOD import job: metric recompute failed: %v", err)
		}
	}
}

func (s *Scheduler) learnProfiles() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	symbols, err := s.bars.ActiveSymbols(ctx)
	if err != nil {
		log.Printf("Profile learning job: failed to load universe: %v", err)
		return
	}

	date := tradingcal.DateString(time.Now())
	started := time.Now()
	result, err := s.learner.SyncUniverse(ctx, symbols, date)
	if err != nil {
		log.Printf("Profile learning job failed: %v", err)
	}
	s.recordRun("profile_learning", date, result.Success, result.Skipped, result.Failed, started)

	if result.Success > 0 {
		s.mirrorProfiles(ctx, symbols)
	}
}

// mirrorProfiles replicates the current profiles to Atlas, best effort
func (s *Scheduler) mirrorProfiles(ctx context.Context, symbols []string) {
	if s.atlas == nil || !s.atlas.IsConfigured() {
		return
	}

	profiles := make([]*volumeprofile.Profile, 0, len(symbols))
	for _, symbol := range symbols {
		profile, err := s.profiles.Load(ctx, symbol)
		if err != nil || profile == nil {
			continue
		}
		profiles = append(profiles, profile)
	}
	if err := s.atlas.SaveProfiles(ctx, profiles); err != nil {
		log.Printf("Profile mirror failed: %v", err)
	}
}

func (s *Scheduler) syncIndicators() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	started := time.Now()
	result, err := s.catalog.SyncAll(ctx)
	if err != nil {
		log.Printf("Indicator sync job failed: %v", err)
	}
	s.recordRun("indicator_sync", tradingcal.DateString(started), result.Synced, 0, result.Failed, started)

	if result.Synced > 0 {
		s.mirrorSnapshots(ctx)
	}
}

// mirrorSnapshots replicates each indicator's snapshot to Atlas, best effort
func (s *Scheduler) mirrorSnapshots(ctx context.Context) {
	if s.atlas == nil || !s.atlas.IsConfigured() {
		return
	}

	for _, code := range s.catalog.Codes() {
		bySymbol, order, err := s.snapshots.FetchAll(ctx, code)
		if err != nil {
			log.Printf("Snapshot mirror: failed to load %s: %v", code, err)
			continue
		}
		rows := make([]models.IndicatorRankSnapshot, 0, len(order))
		for _, symbol := range order {
			rows = append(rows, bySymbol[symbol])
		}
		if err := s.atlas.SaveSnapshot(ctx, code, rows); err != nil {
			log.Printf("Snapshot mirror failed for %s: %v", code, err)
		}
	}
}

func (s *Scheduler) cleanupLocalCache() {
	if s.local == nil {
		return
	}
	cutoff := tradingcal.DateString(time.Now().AddDate(0, 0, -90))
	if _, err := s.local.PruneTickDays(cutoff); err != nil {
		log.Printf("Cache cleanup job failed: %v", err)
	}
}

func (s *Scheduler) recordRun(job, date string, success, skipped, failed int, started time.Time) {
	if s.local == nil {
		return
	}
	err := s.local.RecordSyncRun(localstore.SyncRun{
		JobName:   job,
		TradeDate: date,
		Success:   success,
		Skipped:   skipped,
		Failed:    failed,
		Duration:  time.Since(started).Milliseconds(),
	})
	if err != nil {
		log.Printf("Failed to record %s run: %v", job, err)
	}
}
