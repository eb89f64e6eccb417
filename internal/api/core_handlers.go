// Package api - Weather handlers
package api

import (
	"net/http"

	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/models"
	"github.com/gin-gonic/gin"
)

// GetWeather returns current conditions and the daily forecast at the
// caller's farm
// GET /api/core/weather/
func (h *Handler) GetWeather(c *gin.Context) {
	report, err := h.weather.Current(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListAlerts returns the caller's weather alerts
// GET /api/core/weather/alerts/
func (h *Handler) ListAlerts(c *gin.Context) {
	severity, ok := enumQuery[models.Severity](c, "severity")
	if !ok {
		return
	}

	alerts, err := h.weather.Alerts(c.Request.Context(), principal(c), engine.AlertFilter{
		All:         parseBoolParam(c.Query("all")),
		MinSeverity: severity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts, "count": len(alerts)})
}
