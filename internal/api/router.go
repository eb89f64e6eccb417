// Package api - Router setup
package api

import (
	"time"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg config.CORSConfig, log *zap.Logger, handler *Handler, adminHandler *AdminHandler, authHandler *AuthHandler) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(logging.Recovery(log))
	r.Use(logging.RequestLogger(log))

	// When credentials are used, specific origins must be provided (not *)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	// Health check (no auth required)
	r.GET("/api/health", handler.Health)

	requireAuth := handler.AuthMiddleware()

	// ==========================================================================
	// USERS API - Registration, tokens and profile
	// ==========================================================================
	users := r.Group("/api/users")
	{
		users.POST("/register/", authHandler.Register)
		users.POST("/login/", authHandler.Login)
		users.POST("/refresh/", authHandler.Refresh)
	}

	usersProtected := r.Group("/api/users")
	usersProtected.Use(requireAuth)
	{
		usersProtected.POST("/logout/", authHandler.Logout)
		usersProtected.GET("/profile/", authHandler.GetProfile)
		usersProtected.PUT("/profile/", authHandler.UpdateProfile)
		usersProtected.POST("/change-password/", authHandler.ChangePassword)

		usersProtected.GET("/admin/", RequireStaff(), adminHandler.ListUsers)
		usersProtected.POST("/admin/", RequireStaff(), adminHandler.CreateUser)
	}

	// ==========================================================================
	// FARM API - Farm profile and activity diary
	// ==========================================================================
	farm := r.Group("/api/farm")
	farm.Use(requireAuth)
	{
		farm.GET("/profile/", handler.GetFarmProfile)
		farm.PUT("/profile/", handler.PutFarmProfile)

		farm.GET("/diary/", handler.ListDiary)
		farm.POST("/diary/", handler.CreateDiary)
		farm.GET("/diary/:id/", handler.GetDiary)
		farm.PUT("/diary/:id/", handler.UpdateDiary)
		farm.DELETE("/diary/:id/", handler.DeleteDiary)
	}

	// ==========================================================================
	// FINANCE API - Income and expense ledger
	// ==========================================================================
	finance := r.Group("/api/finance")
	finance.Use(requireAuth)
	{
		finance.GET("/ledger/", handler.ListLedger)
		finance.POST("/ledger/", handler.CreateLedger)
		finance.GET("/ledger/:id/", handler.GetLedger)
		finance.PUT("/ledger/:id/", handler.UpdateLedger)

		finance.GET("/summary/", handler.LedgerSummary)
	}

	// ==========================================================================
	// CORE API - Weather, alerts and system administration
	// ==========================================================================
	core := r.Group("/api/core")
	core.Use(requireAuth)
	{
		core.GET("/weather/", handler.GetWeather)
		core.GET("/weather/alerts/", handler.ListAlerts)
	}

	coreAdmin := r.Group("/api/core")
	coreAdmin.Use(requireAuth, RequireStaff())
	{
		coreAdmin.POST("/weather/alerts/evaluate/", adminHandler.EvaluateAlerts)
		coreAdmin.POST("/weather/alerts/dispatch/", adminHandler.DispatchAlerts)

		coreAdmin.GET("/config/", adminHandler.ListConfig)
		coreAdmin.PUT("/config/:key/", adminHandler.SetConfig)
		coreAdmin.DELETE("/config/:key/", adminHandler.DeactivateConfig)

		coreAdmin.GET("/usage/", adminHandler.ListUsage)
	}

	// ==========================================================================
	// CHATBOT API - Knowledge base assistant
	// ==========================================================================
	chatbot := r.Group("/api/chatbot")
	chatbot.Use(requireAuth)
	{
		chatbot.POST("/query/", handler.ChatQuery)
		chatbot.GET("/sessions/", handler.ListSessions)
		chatbot.GET("/sessions/:session_id/", handler.GetSession)
		chatbot.DELETE("/sessions/:session_id/", handler.DeleteSession)
	}

	articles := r.Group("/api/chatbot/articles")
	articles.Use(requireAuth, RequireStaff())
	{
		articles.GET("/", adminHandler.ListArticles)
		articles.POST("/", adminHandler.CreateArticle)
		articles.GET("/:id/", adminHandler.GetArticle)
		articles.PUT("/:id/", adminHandler.UpdateArticle)
		articles.DELETE("/:id/", adminHandler.DeactivateArticle)
	}

	return r
}
