package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/handler"
	"github.com/linguahub/quiz-backend/internal/middleware"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/response"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Quiz    *handler.QuizHandler
	Attempt *handler.AttemptHandler
	Monitor *handler.MonitorHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.Authenticator,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope share it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	requireAuth := middleware.RequireAuth(auth, cfg.AuthCookieName)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, time.Minute)
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		authAPI.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		authAPI.POST("/logout", requireAuth, handlers.Auth.Logout)
		authAPI.GET("/me", requireAuth, handlers.Auth.Me)
	}

	// ─── 2. Quiz Group (JWT + RBAC) ────────────────────────────────────
	quizAPI := router.Group("/api/v1/quizzes")
	quizAPI.Use(requireAuth)
	{
		canRead := middleware.RequirePermission(model.PermissionQuizzesRead)
		canAttempt := middleware.RequirePermission(model.PermissionQuizzesAttempt)
		canWrite := middleware.RequirePermission(model.PermissionQuizzesWrite)

		quizAPI.GET("", canRead, handlers.Quiz.ListQuizzes)
		quizAPI.GET("/:id", canRead, handlers.Quiz.GetQuiz)

		// Attempt lifecycle
		quizAPI.POST("/:id/attempt", canAttempt, middleware.NoStore(), handlers.Attempt.StartAttempt)
		quizAPI.POST("/:id/submit", canAttempt, middleware.NoStore(), handlers.Attempt.SubmitAttempt)
		quizAPI.GET("/:id/results", canAttempt, middleware.NoStore(), handlers.Attempt.GetResults)

		// Authoring
		quizAPI.POST("", canWrite, handlers.Quiz.CreateQuiz)
		quizAPI.PUT("/:id", canWrite, handlers.Quiz.UpdateQuiz)
		quizAPI.DELETE("/:id", canWrite, handlers.Quiz.DeleteQuiz)
		quizAPI.POST("/:id/publish", canWrite, handlers.Quiz.PublishQuiz)
		quizAPI.POST("/:id/unpublish", canWrite, handlers.Quiz.UnpublishQuiz)
		quizAPI.POST("/:id/questions", canWrite, handlers.Quiz.AddQuestion)
		quizAPI.PUT("/:id/questions/:question_id", canWrite, handlers.Quiz.UpdateQuestion)
		quizAPI.DELETE("/:id/questions/:question_id", canWrite, handlers.Quiz.DeleteQuestion)

		// Oversight
		quizAPI.GET("/:id/attempts", canWrite, middleware.NoStore(), handlers.Quiz.ListAttempts)
		quizAPI.GET("/:id/stats", canWrite, handlers.Quiz.GetStats)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireAuth)
	{
		ws.GET("/quizzes/:id/monitor",
			middleware.RequirePermission(model.PermissionQuizzesMonitor),
			handlers.Monitor.MonitorQuiz,
		)
	}

	return router
}
