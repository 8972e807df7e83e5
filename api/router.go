package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/api/handlers"
	"github.com/groupxyz/media-relay/api/middleware"
	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/infrastructure"
)

// RouterDeps are the collaborators the HTTP layer is wired to
type RouterDeps struct {
	Config    *domain.Config
	Media     handlers.MediaService
	Tools     handlers.ReadinessChecker
	History   domain.HistoryRepository
	AccessLog *zap.Logger
	ErrorLog  *zap.Logger
	AppLog    *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.History == nil {
		deps.History = infrastructure.NopHistoryRepository{}
	}
	for _, log := range []**zap.Logger{&deps.AccessLog, &deps.ErrorLog, &deps.AppLog} {
		if *log == nil {
			*log = zap.NewNop()
		}
	}

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(deps.AccessLog))
	router.Use(middleware.Recovery(deps.ErrorLog))
	router.Use(middleware.SecurityHeaders(deps.Config.Server.TLS.Enabled))
	router.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.Tools)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")

	// Media endpoints
	media := apiGroup.Group("")
	if deps.Config.RateLimit.Enabled {
		media.Use(middleware.NewRateLimiter(deps.Config.RateLimit).Middleware())
	}
	{
		mediaHandler := handlers.NewMediaHandler(deps.Media, deps.History, deps.Config.Download.FileDelivery, deps.AppLog)
		media.POST("/info", mediaHandler.Info)
		media.POST("/download", mediaHandler.Download)
	}

	// History endpoints
	historyHandler := handlers.NewHistoryHandler(deps.History)
	history := apiGroup.Group("/history")
	{
		history.GET("", historyHandler.ListHistory)
		history.GET("/stats", historyHandler.GetStats)
	}

	// Log endpoints
	logHandler := handlers.NewLogHandler(deps.Config.Logging.LogsDir)
	logs := apiGroup.Group("/logs")
	{
		logs.GET("/categories", logHandler.GetCategories)
		logs.GET("/:category", logHandler.GetLogs)
		logs.GET("/:category/search", logHandler.SearchLogs)
		logs.GET("/:category/export", logHandler.ExportLogs)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
