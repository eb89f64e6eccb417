// Package api contains the HTTP API handlers for krishi
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/database"
	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/logging"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Version is reported by the health endpoint
var Version = "dev"

const claimsKey = "claims"

// Handler contains the farmer-facing API handlers
type Handler struct {
	db      *gorm.DB
	farms   *engine.FarmEngine
	ledger  *engine.LedgerEngine
	weather *engine.WeatherEngine
	chat    *engine.ChatEngine
	jwt     *auth.JWTService
	log     *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(db *gorm.DB, farms *engine.FarmEngine, ledger *engine.LedgerEngine, weather *engine.WeatherEngine,
	chat *engine.ChatEngine, jwt *auth.JWTService, log *zap.Logger) *Handler {
	return &Handler{
		db:      db,
		farms:   farms,
		ledger:  ledger,
		weather: weather,
		chat:    chat,
		jwt:     jwt,
		log:     log.Named("api"),
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// AuthMiddleware requires a valid, unrevoked access token
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, errors.NewUnauthorizedError("authentication credentials were not provided"))
			return
		}

		claims, err := h.jwt.ValidateToken(c.Request.Context(), strings.TrimSpace(token), auth.KindAccess)
		if err != nil {
			abortWithError(c, errors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		c.Set(claimsKey, claims)
		c.Set(logging.AccountIDKey, claims.AccountID.String())
		c.Request = c.Request.WithContext(usage.WithAccount(c.Request.Context(), claims.AccountID))
		c.Next()
	}
}

// RequireStaff rejects authenticated callers without the staff flag
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := principal(c).RequireStaff("manage", c.FullPath()); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports service liveness and database reachability
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":   "ok",
		"service":  "krishi",
		"version":  Version,
		"database": "ok",
	}
	if err := database.Ping(h.db); err != nil {
		h.log.Warn("health check database ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unreachable"
	}
	c.JSON(status, body)
}

// =============================================================================
// HELPERS
// =============================================================================

func claimsOf(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// principal returns the authenticated caller; the zero Principal owns nothing
func principal(c *gin.Context) auth.Principal {
	if claims := claimsOf(c); claims != nil {
		return claims.Principal()
	}
	return auth.Principal{}
}

func respondError(c *gin.Context, err error) {
	status, body := errors.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}

func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBoolParam(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}

func pageParams(c *gin.Context) engine.PageParams {
	return engine.PageParams{
		Page:     parseIntParam(c.Query("page"), 1),
		PageSize: parseIntParam(c.Query("page_size"), engine.DefaultPageSize),
	}
}

func uuidParam(c *gin.Context, name, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		// Malformed ids cannot match any record
		respondError(c, errors.NewNotFoundError(resource))
		return uuid.Nil, false
	}
	return id, true
}

func dateParam(c *gin.Context, name string) (*models.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		respondError(c, errors.NewValidationError(name, name+" must be a date in YYYY-MM-DD format"))
		return nil, false
	}
	return &d, true
}

func dateRange(c *gin.Context) (engine.DateRange, bool) {
	from, ok := dateParam(c, "from")
	if !ok {
		return engine.DateRange{}, false
	}
	to, ok := dateParam(c, "to")
	if !ok {
		return engine.DateRange{}, false
	}
	return engine.DateRange{From: from, To: to}, true
}

func timeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		respondError(c, errors.NewValidationError(name, name+" must be an RFC 3339 timestamp or a YYYY-MM-DD date"))
		return nil, false
	}
	t := d.Time
	if name == "to" {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

func enumQuery[T interface {
	~string
	models.Enum
}](c *gin.Context, name string) (T, bool) {
	v := T(c.Query(name))
	if v != "" && !v.Valid() {
		respondError(c, errors.NewValidationError(name, name+" is not an accepted value"))
		return "", false
	}
	return v, true
}
