package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/handler"
	"github.com/excellencehub/proctor-backend/internal/middleware"
	"github.com/excellencehub/proctor-backend/internal/response"
	"github.com/excellencehub/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session REST routes (60 requests per minute per IP).
	sessionLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Token Provisioning (identity service only) ─────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/tokens", handlers.Auth.IssueToken)
		authAPI.DELETE("/tokens/:learner_id", handlers.Auth.ResetSession)
	}

	// ─── 2. Learner Group (JWT) ────────────────────────────────────────
	learnerAPI := router.Group("/api/v1/learner")
	learnerAPI.Use(
		middleware.RequireLearnerJWT(authService),
		sessionLimiter.Middleware(),
		middleware.NoStore(),
	)
	{
		learnerAPI.GET("/sessions/:session_id", handlers.Session.GetState)
		learnerAPI.POST("/sessions/:session_id/submit", handlers.Session.Submit)
		learnerAPI.POST("/sessions/:session_id/draft", handlers.Session.SaveDraft)
		learnerAPI.GET("/sessions/:session_id/violations", handlers.Session.ViolationReport)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/learner/assessments/:assessment_id/stream", handlers.WS.SessionStream)
	}

	return router
}
