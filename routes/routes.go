package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stock_radar/controllers"
	"stock_radar/middleware"
	"stock_radar/services/breakout"
	"stock_radar/services/indicators"
	"stock_radar/services/localstore"
	"stock_radar/services/marketdata"
	"stock_radar/services/mirror"
	"stock_radar/services/realtime"
	"stock_radar/services/volumeprofile"
)

// Services bundles the wired service layer shared by the HTTP surface and
// the scheduler.
type Services struct {
	DB        *gorm.DB
	Bars      *marketdata.BarStore
	Profiles  volumeprofile.Store
	Learner   *volumeprofile.Learner
	Estimator *volumeprofile.Estimator
	Scanner   *breakout.Scanner
	Catalog   *indicators.Catalog
	Snapshots *indicators.SnapshotStore
	Engine    *indicators.Engine
	Refresher *realtime.Refresher
	Hub       *realtime.Hub
	Local     *localstore.Client // optional
	Mirror    *mirror.MongoMirror
}

// SetupRoutes registers all API routes
func SetupRoutes(router *gin.Engine, svc *Services) {
	authController := controllers.NewAuthController()
	instrumentController := controllers.NewInstrumentController(svc.DB)
	profileController := controllers.NewProfileController(svc.Learner, svc.Profiles, svc.Estimator, svc.Mirror)
	indicatorController := controllers.NewIndicatorController(svc.Catalog, svc.Engine, svc.Scanner, svc.Bars)
	realtimeController := controllers.NewRealtimeController(svc.Refresher, svc.Hub, svc.Bars, svc.Local, svc.Mirror)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/token", authController.IssueToken)

		instruments := api.Group("/instruments")
		{
			instruments.GET("", instrumentController.ListInstruments)
			instruments.POST("", middleware.AuthRequired(), instrumentController.UpsertInstruments)
		}

		profiles := api.Group("/profiles")
		{
			profiles.GET("/:symbol", profileController.GetProfile)
			profiles.GET("/:symbol/estimate", profileController.Estimate)
			profiles.POST("/sync", middleware.AuthRequired(), profileController.SyncUniverse)
			profiles.POST("/:symbol/sync", middleware.AuthRequired(), profileController.SyncProfile)
		}

		indicatorRoutes := api.Group("/indicators")
		{
			indicatorRoutes.GET("", indicatorController.ListIndicators)
			indicatorRoutes.GET("/intersection", indicatorController.QueryIntersection)
			indicatorRoutes.GET("/:code", indicatorController.QueryIndicator)
			indicatorRoutes.POST("/sync", middleware.AuthRequired(), indicatorController.SyncAll)
			indicatorRoutes.POST("/:code/sync", middleware.AuthRequired(), indicatorController.SyncIndicator)
		}

		api.GET("/breakout/scan", indicatorController.ScanBreakouts)

		realtimeRoutes := api.Group("/realtime")
		{
			realtimeRoutes.GET("/status", realtimeController.Status)
			realtimeRoutes.POST("/refresh", middleware.AuthRequired(), realtimeController.Refresh)
		}
	}

	router.GET("/ws/quotes", realtimeController.HandleWebSocket)
}
