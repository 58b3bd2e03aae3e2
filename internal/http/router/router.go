package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"thirdwatch.dev/watch/internal/http/handler"
	"thirdwatch.dev/watch/internal/store"
)

type RouterConfig struct {
	AdminAPIKey string
}

func SetupRoutes(router *gin.Engine, stores store.Stores, checks handler.CheckRunner, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	adminOnly := handler.RequireAdminAPIKey(cfg.AdminAPIKey)

	v1 := router.Group("/api/v1")
	{
		manifestHandler := handler.NewManifestHandler(stores.Dependencies())
		ManifestRouter(v1.Group("/manifest"), manifestHandler, adminOnly)

		dependencyHandler := handler.NewDependencyHandler(stores.Dependencies(), checks)
		DependencyRouter(v1.Group("/dependencies"), dependencyHandler, adminOnly)

		eventHandler := handler.NewEventHandler(stores.ChangeEvents(), stores.Assessments())
		EventRouter(v1.Group("/events"), eventHandler)
	}
}
