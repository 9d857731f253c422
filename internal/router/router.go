package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// catalogMaxAge is how long browsers may reuse catalog listings.
const catalogMaxAge = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Quiz    *handler.QuizHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middlewares.
func SetupRouter(
	ctx context.Context,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	// ─── 1. Auth ───────────────────────────────────────────────────────
	guestLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	auth := api.Group("/auth")
	{
		auth.POST("/guest", guestLimiter.Middleware(), handlers.Auth.CreateGuest)
		auth.GET("/me", middleware.RequirePlayerJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Catalog (Public, Cacheable) ────────────────────────────────
	catalog := api.Group("/catalog")
	catalog.Use(middleware.CacheControl(catalogMaxAge))
	{
		catalog.GET("/courses", handlers.Catalog.ListCourses)
		catalog.GET("/courses/:id/semesters", handlers.Catalog.ListSemesters)
		catalog.GET("/semesters/:id/subjects", handlers.Catalog.ListSubjects)
		catalog.GET("/subjects/:id/modules", handlers.Catalog.ListModules)
		catalog.GET("/modules/names", handlers.Catalog.ListModuleNames)
	}

	// ─── 3. Quiz Sessions (Player JWT) ─────────────────────────────────
	quizLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	quizzes := api.Group("/quizzes")
	quizzes.Use(middleware.RequirePlayerJWT(authService), middleware.NoStore())
	{
		quizzes.POST("", quizLimiter.Middleware(), handlers.Quiz.CreateQuiz)
		quizzes.GET("/:id", handlers.Quiz.GetQuiz)
		quizzes.DELETE("/:id", handlers.Quiz.DeleteQuiz)
		quizzes.POST("/:id/answers", handlers.Quiz.SelectAnswer)
		quizzes.POST("/:id/prev", handlers.Quiz.Prev)
		quizzes.POST("/:id/next", handlers.Quiz.Next)
		quizzes.POST("/:id/goto", handlers.Quiz.GoTo)
		quizzes.POST("/:id/submit", handlers.Quiz.Submit)
		quizzes.POST("/:id/restart", handlers.Quiz.Restart)
		quizzes.PUT("/:id/auto-next", handlers.Quiz.SetAutoNext)
		quizzes.GET("/:id/review", handlers.Quiz.Review)
	}

	// ─── 4. Attempt History (Player JWT) ───────────────────────────────
	attempts := api.Group("/attempts")
	attempts.Use(middleware.RequirePlayerJWT(authService), middleware.NoStore())
	{
		attempts.GET("", handlers.Attempt.ListAttempts)
		attempts.GET("/export", handlers.Attempt.ExportAttempts)
		attempts.GET("/:id", handlers.Attempt.GetAttempt)
	}

	// ─── 5. WebSocket (Token In Query) ─────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequirePlayerWSAuth(authService))
	{
		ws.GET("/quizzes/:id/stream", handlers.WS.QuizStream)
	}

	return router
}
