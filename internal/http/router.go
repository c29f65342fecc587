package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/anything-backend/internal/http/handlers"
	httpMW "github.com/yungbote/anything-backend/internal/http/middleware"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	GenerationHandler *httpH.GenerationHandler
	AppHandler        *httpH.AppHandler
	DataHandler       *httpH.DataHandler
	JobHandler        *httpH.JobHandler
	UserHandler       *httpH.UserHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/healthcheck", "/readyz"))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireUser())
	}

	// Generation
	if cfg.GenerationHandler != nil {
		api.POST("/apps/generate", cfg.GenerationHandler.Generate)
		api.GET("/generation-requests/:id", cfg.GenerationHandler.GetGenerationRequest)
		api.POST("/apps/:id/update", cfg.GenerationHandler.Update)
		api.GET("/update-requests/:id", cfg.GenerationHandler.GetUpdateRequest)
	}

	// Apps
	if cfg.AppHandler != nil {
		api.GET("/apps", cfg.AppHandler.ListApps)
		api.GET("/apps/:id", cfg.AppHandler.GetApp)
	}

	// Data store and context queries
	if cfg.DataHandler != nil {
		api.GET("/apps/:id/data", cfg.DataHandler.List)
		api.POST("/apps/:id/data", cfg.DataHandler.Create)
		api.GET("/apps/:id/data/:item_id", cfg.DataHandler.Get)
		api.PUT("/apps/:id/data/:item_id", cfg.DataHandler.Update)
		api.PATCH("/apps/:id/data/:item_id", cfg.DataHandler.Update)
		api.DELETE("/apps/:id/data/:item_id", cfg.DataHandler.Delete)
		api.POST("/apps/:id/pages/:slug/queries/:key/run", cfg.DataHandler.RunQuery)
		api.GET("/apps/:id/pages/:slug/context", cfg.DataHandler.PageContext)
	}

	// Job
	if cfg.JobHandler != nil {
		api.GET("/jobs/:id", cfg.JobHandler.GetJob)
	}

	// User (Me)
	if cfg.UserHandler != nil {
		api.GET("/users/me", cfg.UserHandler.GetMe)
		api.GET("/users/me/tokens", cfg.UserHandler.GetTokens)
	}

	return r
}
