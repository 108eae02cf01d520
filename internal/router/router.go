package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/handler"
	"github.com/stemsi/classroom-client/internal/middleware"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session  *handler.SessionHandler
	Recovery *handler.RecoveryHandler
	Class    *handler.ClassHandler
	Feed     *handler.FeedHandler
	System   *handler.SystemHandler
	WS       *handler.WSHandler
}

// Deps are the middleware collaborators of the router.
type Deps struct {
	Session     middleware.SessionSource
	Snapshot    middleware.SnapshotReader
	Verifier    middleware.TokenVerifier
	AuthLimiter *middleware.RateLimiter
	Metrics     http.Handler
	Log         zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(cfg *config.Config, handlers *Handlers, deps Deps) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", middleware.HeaderAuthStatus}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware(deps.Log))
	router.Use(middleware.Compress(middleware.DefaultCompressConfig))

	// Page routes only look at the persisted snapshot.
	router.Use(middleware.SessionGate(deps.Snapshot, deps.Verifier, time.Now))

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// ─── 1. Session Group (Public, Rate Limited) ───────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(middleware.NoStore())
	{
		sessionAPI.GET("", handlers.Session.Current)
		sessionAPI.POST("/logout", handlers.Session.Logout)
		sessionAPI.POST("/focus", handlers.Session.Focus)
		sessionAPI.POST("/refresh", handlers.Session.Refresh)

		limited := sessionAPI.Group("")
		if deps.AuthLimiter != nil {
			limited.Use(deps.AuthLimiter.Middleware())
		}
		limited.POST("/login", handlers.Session.Login)
		limited.POST("/register", handlers.Session.Register)
	}

	// ─── 2. Recovery Group (Public, Rate Limited) ──────────────────────
	recoveryAPI := router.Group("/api/v1/recovery")
	recoveryAPI.Use(middleware.NoStore())
	if deps.AuthLimiter != nil {
		recoveryAPI.Use(deps.AuthLimiter.Middleware())
	}
	{
		recoveryAPI.POST("/request", handlers.Recovery.Request)
		recoveryAPI.POST("/verify", handlers.Recovery.Verify)
		recoveryAPI.POST("/password", handlers.Recovery.SetPassword)
	}

	// ─── 3. Class Group (Session) ──────────────────────────────────────
	teacherOnly := middleware.RequireRole(model.RoleTeacher, model.RoleAdmin)

	classAPI := router.Group("/api/v1/classes")
	classAPI.Use(middleware.NoStore(), middleware.RequireSession(deps.Session))
	{
		classAPI.GET("", handlers.Class.List)
		classAPI.POST("", teacherOnly, handlers.Class.Create)
		classAPI.GET("/:class_id", handlers.Class.Get)
		classAPI.GET("/:class_id/students", handlers.Class.Students)
		classAPI.POST("/:class_id/students", teacherOnly, handlers.Class.Enroll)

		classAPI.GET("/:class_id/announcements", handlers.Feed.Announcements)
		classAPI.POST("/:class_id/announcements/more", handlers.Feed.MoreAnnouncements)
		classAPI.POST("/:class_id/announcements", teacherOnly, handlers.Feed.CreateAnnouncement)

		classAPI.GET("/:class_id/assignments", handlers.Feed.Assignments)
		classAPI.POST("/:class_id/assignments/more", handlers.Feed.MoreAssignments)
		classAPI.POST("/:class_id/assignments", teacherOnly, handlers.Feed.CreateAssignment)
	}

	// ─── 4. System Group ───────────────────────────────────────────────
	router.POST("/api/v1/system/retry", handlers.System.Retry)

	// ─── 5. WebSocket Group ────────────────────────────────────────────
	router.GET("/ws/v1/status", handlers.WS.StatusStream)

	// ─── 6. Web client ─────────────────────────────────────────────────
	if cfg.WebRoot != "" {
		files := http.FileServer(http.Dir(cfg.WebRoot))
		router.NoRoute(func(c *gin.Context) {
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return router
}
