package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/idlesync/api/middleware"
	"github.com/customeros/idlesync/api/rest/handlers"
	"github.com/customeros/idlesync/interfaces"
	"github.com/customeros/idlesync/internal/tracing"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, watcher interfaces.WatcherService, apikey string) {
	if watcher == nil {
		panic("Watcher cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.DefaultAPIKeyHeader,
		ValidAPIKey: apikey,
	})

	r.GET("/health", handlers.HealthCheck)
	// status carries last errors, so it sits behind the key as well
	r.GET("/status", apiKeyMiddleware, handlers.Status(watcher))

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", handlers.Status(watcher))
			accounts.POST("/:name/interrupt", handlers.InterruptAccount(watcher))
		}
	}
}
