package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stock_radar/services/localstore"
	"stock_radar/services/marketdata"
	"stock_radar/services/mirror"
	"stock_radar/services/realtime"
)

// RealtimeController handles live refresh and websocket requests
type RealtimeController struct {
	refresher *realtime.Refresher
	hub       *realtime.Hub
	bars      *marketdata.BarStore
	local     *localstore.Client // optional
	mirror    *mirror.MongoMirror
}

// NewRealtimeController creates a realtime controller
func NewRealtimeController(refresher *realtime.Refresher, hub *realtime.Hub, bars *marketdata.BarStore, local *localstore.Client, mongo *mirror.MongoMirror) *RealtimeController {
	return &RealtimeController{
		refresher: refresher,
		hub:       hub,
		bars:      bars,
		local:     local,
		mirror:    mongo,
	}
}

// Refresh runs one live refresh pass over the requested instrument set
// POST /api/v1/realtime/refresh
func (rc *RealtimeController) Refresh(c *gin.Context) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	// An empty body means the full active universe.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbols := req.Symbols
	if len(symbols) == 0 || (len(symbols) == 1 && strings.EqualFold(symbols[0], "all")) {
		all, err := rc.bars.ActiveSymbols(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		symbols = all
	}

	result, err := rc.refresher.Refresh(c.Request.Context(), symbols)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status reports live-subsystem health
// GET /api/v1/realtime/status
func (rc *RealtimeController) Status(c *gin.Context) {
	status := gin.H{
		"ws_clients": rc.hub.ClientCount(),
	}
	if rc.mirror != nil {
		status["mirror"] = rc.mirror.Status()
	}
	if rc.local != nil {
		runs, err := rc.local.RecentSyncRuns(10)
		if err == nil {
			status["recent_sync_runs"] = runs
		}
	}
	c.JSON(http.StatusOK, status)
}

// HandleWebSocket upgrades the connection into the quote hub
// GET /ws/quotes
func (rc *RealtimeController) HandleWebSocket(c *gin.Context) {
	rc.hub.HandleWebSocket(c.Writer, c.Request)
}
