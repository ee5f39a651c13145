package controllers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stock_radar/services/mirror"
	"stock_radar/services/tradingcal"
	"stock_radar/services/volumeprofile"
)

// ProfileController handles volume profile learning and estimation requests
type ProfileController struct {
	learner   *volumeprofile.Learner
	store     volumeprofile.Store
	estimator *volumeprofile.Estimator
	atlas     *mirror.MongoMirror
}

// NewProfileController creates a profile controller
func NewProfileController(learner *volumeprofile.Learner, store volumeprofile.Store, estimator *volumeprofile.Estimator, atlas *mirror.MongoMirror) *ProfileController {
	return &ProfileController{
		learner:   learner,
		store:     store,
		estimator: estimator,
		atlas:     atlas,
	}
}

// SyncProfile folds one trading day into a symbol's profile
// POST /api/v1/profiles/:symbol/sync?date=2025-03-10
func (pc *ProfileController) SyncProfile(c *gin.Context) {
	symbol := c.Param("symbol")
	date := c.DefaultQuery("date", tradingcal.DateString(time.Now()))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected yyyy-MM-dd"})
		return
	}

	updated, err := pc.learner.SyncProfile(c.Request.Context(), symbol, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if updated > 0 && pc.atlas != nil && pc.atlas.IsConfigured() {
		if profile, loadErr := pc.store.Load(c.Request.Context(), symbol); loadErr == nil && profile != nil {
			if mirrorErr := pc.atlas.SaveProfile(c.Request.Context(), profile); mirrorErr != nil {
				log.Printf("Profile mirror failed for %s: %v", symbol, mirrorErr)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":       symbol,
		"date":         date,
		"rows_updated": updated,
	})
}

// SyncUniverse folds one trading day for a list of symbols
// POST /api/v1/profiles/sync
func (pc *ProfileController) SyncUniverse(c *gin.Context) {
	var req struct {
		Symbols []string `json:"symbols" binding:"required"`
		Date    string   `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Date == "" {
		req.Date = tradingcal.DateString(time.Now())
	}

	result, err := pc.learner.SyncUniverse(c.Request.Context(), req.Symbols, req.Date)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": req.Date, "result": result})
}

// GetProfile returns a symbol's learned profile summary
// GET /api/v1/profiles/:symbol
func (pc *ProfileController) GetProfile(c *gin.Context) {
	symbol := c.Param("symbol")

	profile, err := pc.store.Load(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No profile for " + symbol})
		return
	}

	avgCum := make([]float64, len(profile.Minutes))
	for i := range profile.Minutes {
		avgCum[i] = profile.Minutes[i].AvgCumRatio
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":          profile.Symbol,
		"sample_count":    profile.SampleCount,
		"frozen":          profile.Frozen(),
		"last_trade_date": profile.LastTradeDate,
		"avg_cum_ratios":  avgCum,
	})
}

// Estimate projects a symbol's full-day volume from a partial observation
// GET /api/v1/profiles/:symbol/estimate?volume=500000&at=2025-03-10T11:29:00+07:00
func (pc *ProfileController) Estimate(c *gin.Context) {
	symbol := c.Param("symbol")

	volume, err := strconv.ParseFloat(c.Query("volume"), 64)
	if err != nil || volume < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid volume parameter"})
		return
	}

	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid at parameter, expected RFC3339"})
			return
		}
		at = parsed
	}

	estimate := pc.estimator.Estimate(c.Request.Context(), symbol, at, volume)
	c.JSON(http.StatusOK, estimate)
}
