package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stock_radar/config"
	"stock_radar/models"
	"stock_radar/routes"
	"stock_radar/scheduler"
	"stock_radar/services/breakout"
	"stock_radar/services/dailymetrics"
	"stock_radar/services/indicators"
	"stock_radar/services/localstore"
	"stock_radar/services/marketdata"
	"stock_radar/services/mirror"
	"stock_radar/services/realtime"
	"stock_radar/services/volumeprofile"
)

// dbInitialized tracks whether the database finished initializing in the
// background, so the /ready probe can report it without blocking startup
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Stock Radar API - Starting...")
	log.Println("==============================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Health endpoints go up first so the platform sees the service alive
	// while the database connects in the background.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	var jobScheduler *scheduler.Scheduler
	var hub *realtime.Hub
	var local *localstore.Client
	var atlas *mirror.MongoMirror

	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Local sqlite cache is optional; learning just refetches ticks
		// when it is unavailable.
		local, err = localstore.Open(cfg.LocalDBPath)
		if err != nil {
			log.Printf("Warning: Local store unavailable: %v", err)
			local = nil
		}
		atlas = mirror.NewMongoMirror()

		svc := buildServices(db, cfg, local, atlas)
		hub = svc.Hub

		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		routes.SetupRoutes(router, svc)

		importer := marketdata.NewEODImporter(marketdata.NewHTTPQuoteFeed(cfg.QuoteAPIURL, cfg.QuoteBatchSize), svc.Bars)
		recomputer := dailymetrics.NewRecomputer(db, svc.Bars)
		jobScheduler = scheduler.New(svc.Bars, importer, svc.Learner, svc.Profiles, recomputer,
			svc.Catalog, svc.Snapshots, svc.Refresher, local, atlas)
		go jobScheduler.Start()

		log.Println("Application fully initialized with database")
	}()

	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if hub != nil {
			hub.Shutdown()
		}
		if atlas != nil {
			atlas.Close()
		}
		if local != nil {
			local.Close()
		}
	})
}

// buildServices wires the service layer over the connected database
func buildServices(db *gorm.DB, cfg *config.Config, local *localstore.Client, atlas *mirror.MongoMirror) *routes.Services {
	bars := marketdata.NewBarStore(db)
	profiles := volumeprofile.NewGormStore(db)

	tickFeed := marketdata.NewHTTPTickFeed(cfg.TickAPIURL)
	quoteFeed := marketdata.NewHTTPQuoteFeed(cfg.QuoteAPIURL, cfg.QuoteBatchSize)
	fundamentals := marketdata.NewHTTPFundamentalsFeed(cfg.FundamentalsAPIURL)

	var cache volumeprofile.TickCache
	if local != nil {
		cache = local
	}
	learner := volumeprofile.NewLearner(tickFeed, profiles, cache, cfg.FreezeThreshold)
	estimator := volumeprofile.NewEstimator(profiles)

	scanner := breakout.NewScanner(bars, breakout.DefaultConfig())

	snapshots := indicators.NewSnapshotStore(db)
	catalog := indicators.NewCatalog(snapshots)
	catalog.Register(indicators.NewBreakoutIndicator(scanner, bars, db))
	catalog.Register(indicators.NewTopGainersIndicator(db))
	catalog.Register(indicators.NewVolumeSurgeIndicator(db))
	engine := indicators.NewEngine(snapshots, fundamentals)

	hub := realtime.NewHub()
	recomputer := dailymetrics.NewRecomputer(db, bars)
	refresher := realtime.NewRefresher(quoteFeed, estimator, bars, recomputer, hub)

	return &routes.Services{
		DB:        db,
		Bars:      bars,
		Profiles:  profiles,
		Learner:   learner,
		Estimator: estimator,
		Scanner:   scanner,
		Catalog:   catalog,
		Snapshots: snapshots,
		Engine:    engine,
		Refresher: refresher,
		Hub:       hub,
		Local:     local,
		Mirror:    atlas,
	}
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateMarketModels(db); err != nil {
		return err
	}
	if err := models.MigrateProfileModels(db); err != nil {
		return err
	}
	if err := models.MigrateSnapshotModels(db); err != nil {
		return err
	}
	return nil
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Stock Radar API",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "started"})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise.
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown blocks until a termination signal, then stops background
// work and drains the HTTP server
func gracefulShutdown(server *http.Server, stopBackground func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
