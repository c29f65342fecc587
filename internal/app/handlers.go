package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/http"
	httpH "github.com/yungbote/anything-backend/internal/http/handlers"
	httpMW "github.com/yungbote/anything-backend/internal/http/middleware"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Generation *httpH.GenerationHandler
	App        *httpH.AppHandler
	Data       *httpH.DataHandler
	Job        *httpH.JobHandler
	User       *httpH.UserHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Generation: httpH.NewGenerationHandler(services.Generation, services.JobService),
		App:        httpH.NewAppHandler(services.Apps),
		Data:       httpH.NewDataHandler(services.DataStore),
		Job:        httpH.NewJobHandler(services.JobService),
		User:       httpH.NewUserHandler(services.User),
	}
}

func wireMiddleware(log *logger.Logger, r Repos) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, r.User),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       cfg.ServiceName,
		CORSOrigins:       cfg.CORSOrigins,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		GenerationHandler: handlers.Generation,
		AppHandler:        handlers.App,
		DataHandler:       handlers.Data,
		JobHandler:        handlers.Job,
		UserHandler:       handlers.User,
	})
}
