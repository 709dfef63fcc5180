package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quizora/exam-agent/internal/config"
	"github.com/quizora/exam-agent/internal/handler"
	"github.com/quizora/exam-agent/internal/middleware"
	"github.com/quizora/exam-agent/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures the Gin route groups for the local bridge.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Session bridge ────────────────────────────────────────────────
	// The bearer token is captured and forwarded to the exam service; the
	// agent itself never validates credentials beyond the expiry pre-check.
	api := router.Group("/api/v1")
	api.Use(middleware.CaptureBearerToken())
	{
		session := api.Group("/session")
		{
			session.POST("/start", handlers.Session.Start)
			session.GET("", handlers.Session.GetState)
			session.GET("/paper", handlers.Session.GetPaper)
			session.PUT("/answers/:index", handlers.Session.PutAnswer)
			session.POST("/submit", handlers.Session.Submit)
			session.POST("/resume", handlers.Session.Resume)
			session.DELETE("", handlers.Session.Abandon)
		}
	}

	// ─── WebSocket event stream ────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/session/events", handlers.WS.Stream)
	}

	return router
}
