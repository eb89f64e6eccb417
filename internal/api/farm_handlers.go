// Package api - Farm profile and diary handlers
package api

import (
	"net/http"

	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FarmProfileRequest is the body of a farm profile upsert
type FarmProfileRequest struct {
	Latitude     *decimal.Decimal `json:"location_lat" binding:"required"`
	Longitude    *decimal.Decimal `json:"location_lon" binding:"required"`
	FarmSize     decimal.Decimal  `json:"farm_size" binding:"gt=0"`
	PrimaryCrops string           `json:"primary_crops" binding:"required,max=200"`
	SoilType     models.SoilType  `json:"soil_type" binding:"required,enum"`
}

// DiaryRequest is the body of a diary create or update
type DiaryRequest struct {
	Date             models.Date         `json:"date" binding:"required"`
	ActivityType     models.ActivityType `json:"activity_type" binding:"required,enum"`
	Notes            string              `json:"notes" binding:"required"`
	CropInvolved     *string             `json:"crop_involved" binding:"omitempty,max=100"`
	AreaCovered      *decimal.Decimal    `json:"area_covered"`
	WeatherCondition *string             `json:"weather_condition" binding:"omitempty,max=100"`
}

func (r DiaryRequest) input() engine.DiaryInput {
	return engine.DiaryInput{
		Date:             r.Date,
		ActivityType:     r.ActivityType,
		Notes:            r.Notes,
		CropInvolved:     r.CropInvolved,
		AreaCovered:      r.AreaCovered,
		WeatherCondition: r.WeatherCondition,
	}
}

// =============================================================================
// FARM PROFILE
// =============================================================================

// GetFarmProfile returns the caller's farm profile
// GET /api/farm/profile/
func (h *Handler) GetFarmProfile(c *gin.Context) {
	profile, err := h.farms.GetProfile(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// PutFarmProfile creates the caller's farm profile or replaces its fields
// PUT /api/farm/profile/
func (h *Handler) PutFarmProfile(c *gin.Context) {
	var req FarmProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, created, err := h.farms.UpsertProfile(c.Request.Context(), principal(c), engine.FarmProfileInput{
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		FarmSize:     req.FarmSize,
		PrimaryCrops: req.PrimaryCrops,
		SoilType:     req.SoilType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, profile)
}

// =============================================================================
// DIARY
// =============================================================================

// ListDiary returns the caller's diary entries, newest first
// GET /api/farm/diary/
func (h *Handler) ListDiary(c *gin.Context) {
	dates, ok := dateRange(c)
	if !ok {
		return
	}
	activity, ok := enumQuery[models.ActivityType](c, "activity_type")
	if !ok {
		return
	}

	page, err := h.farms.ListDiary(c.Request.Context(), principal(c), engine.DiaryFilter{
		PageParams:   pageParams(c),
		DateRange:    dates,
		ActivityType: activity,
		Crop:         c.Query("crop"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetDiary returns one diary entry
// GET /api/farm/diary/:id/
func (h *Handler) GetDiary(c *gin.Context) {
	id, ok := uuidParam(c, "id", "diary entry")
	if !ok {
		return
	}

	entry, err := h.farms.GetDiary(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CreateDiary records a farm activity
// POST /api/farm/diary/
func (h *Handler) CreateDiary(c *gin.Context) {
	var req DiaryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.farms.CreateDiary(c.Request.Context(), principal(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateDiary replaces a diary entry's fields
// PUT /api/farm/diary/:id/
func (h *Handler) UpdateDiary(c *gin.Context) {
	id, ok := uuidParam(c, "id", "diary entry")
	if !ok {
		return
	}
	var req DiaryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.farms.UpdateDiary(c.Request.Context(), principal(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteDiary removes a diary entry
// DELETE /api/farm/diary/:id/
func (h *Handler) DeleteDiary(c *gin.Context) {
	id, ok := uuidParam(c, "id", "diary entry")
	if !ok {
		return
	}

	if err := h.farms.DeleteDiary(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
