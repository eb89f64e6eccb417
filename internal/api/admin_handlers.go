// Package api - Admin handlers for krishi management
package api

import (
	"net/http"
	"strings"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/models"
	"github.com/gin-gonic/gin"
)

// AdminHandler contains admin API handlers
type AdminHandler struct {
	cfg       *config.ConfigService
	accounts  *engine.AccountEngine
	knowledge *engine.KnowledgeEngine
	usage     *engine.UsageEngine
	weather   *engine.WeatherEngine
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cfg *config.ConfigService, accounts *engine.AccountEngine, knowledge *engine.KnowledgeEngine,
	usage *engine.UsageEngine, weather *engine.WeatherEngine) *AdminHandler {
	return &AdminHandler{
		cfg:       cfg,
		accounts:  accounts,
		knowledge: knowledge,
		usage:     usage,
		weather:   weather,
	}
}

// =============================================================================
// SYSTEM CONFIGURATION
// =============================================================================

// ConfigRequest sets a runtime setting
type ConfigRequest struct {
	Value       string  `json:"value" binding:"required"`
	Description *string `json:"description"`
}

// ListConfig returns every stored setting
// GET /api/core/config/
func (h *AdminHandler) ListConfig(c *gin.Context) {
	configs, err := h.cfg.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": configs, "count": len(configs)})
}

// SetConfig creates or replaces a setting
// PUT /api/core/config/:key/
func (h *AdminHandler) SetConfig(c *gin.Context) {
	var req ConfigRequest
	if !bindJSON(c, &req) {
		return
	}

	cfg, err := h.cfg.Set(c.Param("key"), req.Value, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeactivateConfig hides a setting without deleting it
// DELETE /api/core/config/:key/
func (h *AdminHandler) DeactivateConfig(c *gin.Context) {
	if err := h.cfg.Deactivate(c.Param("key")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// API USAGE
// =============================================================================

// ListUsage returns external API calls, newest first, with per provider totals
// GET /api/core/usage/
func (h *AdminHandler) ListUsage(c *gin.Context) {
	apiType, ok := enumQuery[models.APIType](c, "api_type")
	if !ok {
		return
	}
	from, ok := timeParam(c, "from")
	if !ok {
		return
	}
	to, ok := timeParam(c, "to")
	if !ok {
		return
	}

	filter := engine.UsageFilter{PageParams: pageParams(c), APIType: apiType, From: from, To: to}
	page, err := h.usage.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	totals, err := h.usage.Totals(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        page.Data,
		"total":       page.Total,
		"page":        page.Page,
		"page_size":   page.PageSize,
		"total_pages": page.TotalPages,
		"totals":      totals,
	})
}

// =============================================================================
// WEATHER ALERTS
// =============================================================================

// EvaluateAlerts runs one alert evaluation over every farm
// POST /api/core/weather/alerts/evaluate/
func (h *AdminHandler) EvaluateAlerts(c *gin.Context) {
	result, err := h.weather.EvaluateAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DispatchAlerts sends every pending alert
// POST /api/core/weather/alerts/dispatch/
func (h *AdminHandler) DispatchAlerts(c *gin.Context) {
	result, err := h.weather.DispatchAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// =============================================================================
// KNOWLEDGE BASE
// =============================================================================

// ArticleRequest is the body of an article create or update
type ArticleRequest struct {
	Title    string                 `json:"title" binding:"required,max=200"`
	Content  string                 `json:"content" binding:"required"`
	Summary  *string                `json:"summary"`
	Category models.ArticleCategory `json:"category" binding:"required,enum"`
	Language models.Language        `json:"language" binding:"omitempty,enum"`
	Tags     *string                `json:"tags" binding:"omitempty,max=200"`
	Source   *string                `json:"source" binding:"omitempty,max=200"`
	IsActive *bool                  `json:"is_active"`
}

func (r ArticleRequest) input() engine.ArticleInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return engine.ArticleInput{
		Title:    r.Title,
		Content:  r.Content,
		Summary:  r.Summary,
		Category: r.Category,
		Language: r.Language,
		Tags:     r.Tags,
		Source:   r.Source,
		IsActive: active,
	}
}

// ListArticles returns knowledge articles
// GET /api/chatbot/articles/
func (h *AdminHandler) ListArticles(c *gin.Context) {
	category, ok := enumQuery[models.ArticleCategory](c, "category")
	if !ok {
		return
	}
	language, ok := enumQuery[models.Language](c, "language")
	if !ok {
		return
	}

	page, err := h.knowledge.List(c.Request.Context(), engine.ArticleFilter{
		PageParams:      pageParams(c),
		Category:        category,
		Language:        language,
		Search:          strings.TrimSpace(c.Query("search")),
		IncludeInactive: parseBoolParam(c.Query("include_inactive")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetArticle returns one article
// GET /api/chatbot/articles/:id/
func (h *AdminHandler) GetArticle(c *gin.Context) {
	id, ok := uuidParam(c, "id", "article")
	if !ok {
		return
	}

	article, err := h.knowledge.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// CreateArticle adds an article to the knowledge base
// POST /api/chatbot/articles/
func (h *AdminHandler) CreateArticle(c *gin.Context) {
	var req ArticleRequest
	if !bindJSON(c, &req) {
		return
	}

	article, err := h.knowledge.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

// UpdateArticle replaces an article's fields
// PUT /api/chatbot/articles/:id/
func (h *AdminHandler) UpdateArticle(c *gin.Context) {
	id, ok := uuidParam(c, "id", "article")
	if !ok {
		return
	}
	var req ArticleRequest
	if !bindJSON(c, &req) {
		return
	}

	article, err := h.knowledge.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// DeactivateArticle removes an article from retrieval
// DELETE /api/chatbot/articles/:id/
func (h *AdminHandler) DeactivateArticle(c *gin.Context) {
	id, ok := uuidParam(c, "id", "article")
	if !ok {
		return
	}

	if err := h.knowledge.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// USER MANAGEMENT
// =============================================================================

// CreateUserRequest is the body of an admin account creation
type CreateUserRequest struct {
	RegisterRequest
	IsStaff bool `json:"is_staff"`
}

// ListUsers returns every account with its profile
// GET /api/users/admin/
func (h *AdminHandler) ListUsers(c *gin.Context) {
	accounts, err := h.accounts.ListAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": accounts, "count": len(accounts)})
}

// CreateUser creates an account, optionally with the staff flag
// POST /api/users/admin/
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.CreateAccount(c.Request.Context(), engine.RegisterInput{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PhoneNumber:       req.PhoneNumber,
		PreferredLanguage: req.PreferredLanguage,
		IsStaff:           req.IsStaff,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAccountResponse(account, nil))
}
