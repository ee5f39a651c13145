package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock_radar/models"
)

// InstrumentController manages the instrument universe
type InstrumentController struct {
	db *gorm.DB
}

// NewInstrumentController creates an instrument controller
func NewInstrumentController(db *gorm.DB) *InstrumentController {
	return &InstrumentController{db: db}
}

// ListInstruments pages the universe with optional search and status filter
// GET /api/v1/instruments?search=VN&status=active&limit=50&offset=0
func (ic *InstrumentController) ListInstruments(c *gin.Context) {
	limit, offset := pageParams(c)

	query := ic.db.Model(&models.Instrument{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.ToUpper(strings.TrimSpace(c.Query("search"))); search != "" {
		query = query.Where("symbol LIKE ? OR UPPER(name) LIKE ?", search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var instruments []models.Instrument
	if err := query.Order("symbol ASC").Limit(limit).Offset(offset).Find(&instruments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": total, "items": instruments})
}

// UpsertInstruments replaces or inserts instruments by symbol
// POST /api/v1/instruments
func (ic *InstrumentController) UpsertInstruments(c *gin.Context) {
	var req struct {
		Instruments []models.Instrument `json:"instruments" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for i := range req.Instruments {
		req.Instruments[i].Symbol = strings.ToUpper(strings.TrimSpace(req.Instruments[i].Symbol))
		if req.Instruments[i].Symbol == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Instrument with empty symbol"})
			return
		}
		if req.Instruments[i].Status == "" {
			req.Instruments[i].Status = "active"
		}
	}

	err := ic.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "exchange", "industry", "market_cap", "status", "updated_at",
		}),
	}).CreateInBatches(req.Instruments, 200).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upserted": len(req.Instruments)})
}
