package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stock_radar/services/breakout"
	"stock_radar/services/indicators"
	"stock_radar/services/marketdata"
)

// IndicatorController handles indicator sync and query requests
type IndicatorController struct {
	catalog *indicators.Catalog
	engine  *indicators.Engine
	scanner *breakout.Scanner
	bars    *marketdata.BarStore
}

// NewIndicatorController creates an indicator controller
func NewIndicatorController(catalog *indicators.Catalog, engine *indicators.Engine, scanner *breakout.Scanner, bars *marketdata.BarStore) *IndicatorController {
	return &IndicatorController{
		catalog: catalog,
		engine:  engine,
		scanner: scanner,
		bars:    bars,
	}
}

// ListIndicators returns the registered indicator codes
// GET /api/v1/indicators
func (ic *IndicatorController) ListIndicators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"codes": ic.catalog.Codes()})
}

// SyncIndicator refreshes one indicator's rank snapshot
// POST /api/v1/indicators/:code/sync
func (ic *IndicatorController) SyncIndicator(c *gin.Context) {
	code := c.Param("code")

	written, err := ic.catalog.Sync(c.Request.Context(), code)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.HasPrefix(err.Error(), "unknown indicator") {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code, "rows_written": written})
}

// SyncAll refreshes every registered indicator
// POST /api/v1/indicators/sync
func (ic *IndicatorController) SyncAll(c *gin.Context) {
	result, err := ic.catalog.SyncAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}

// QueryIndicator pages one indicator's snapshot
// GET /api/v1/indicators/:code?limit=50&offset=0&min_profit_yoy=20
func (ic *IndicatorController) QueryIndicator(c *gin.Context) {
	code := c.Param("code")
	limit, offset := pageParams(c)

	result, err := ic.engine.QueryIndicator(c.Request.Context(), code, fundamentalFilter(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// QueryIntersection returns instruments present in every named snapshot
// GET /api/v1/indicators/intersection?codes=breakout,volume_surge
func (ic *IndicatorController) QueryIntersection(c *gin.Context) {
	raw := c.Query("codes")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "codes parameter is required"})
		return
	}
	codes := strings.Split(raw, ",")
	for i := range codes {
		codes[i] = strings.TrimSpace(codes[i])
	}
	limit, offset := pageParams(c)

	result, err := ic.engine.QueryIntersection(c.Request.Context(), codes, fundamentalFilter(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ScanBreakouts runs an ad hoc breakout scan over the active universe
// GET /api/v1/breakout/scan
func (ic *IndicatorController) ScanBreakouts(c *gin.Context) {
	symbols, err := ic.bars.ActiveSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	candidates, err := ic.scanner.Scan(c.Request.Context(), symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scanned":    len(symbols),
		"candidates": candidates,
	})
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// fundamentalFilter reads optional growth and valuation bounds from query
// parameters. Absent parameters stay nil and are not applied.
func fundamentalFilter(c *gin.Context) *indicators.FundamentalFilter {
	filter := &indicators.FundamentalFilter{}
	set := false

	bind := func(name string, target **float64) {
		raw := c.Query(name)
		if raw == "" {
			return
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			*target = &v
			set = true
		}
	}
	bind("min_revenue_yoy", &filter.MinRevenueYoY)
	bind("min_revenue_qoq", &filter.MinRevenueQoQ)
	bind("min_profit_yoy", &filter.MinProfitYoY)
	bind("min_profit_qoq", &filter.MinProfitQoQ)
	bind("max_pe", &filter.MaxPE)

	if !set {
		return nil
	}
	return filter
}
