package router

import (
	"github.com/gin-gonic/gin"
	"thirdwatch.dev/watch/internal/http/handler"
)

// DependencyRouter sets up dependency routes
// - listing and lookup are public (read-only)
// - /:key/check runs a live registry check and requires the admin API key
func DependencyRouter(rg *gin.RouterGroup, h *handler.DependencyHandler, adminOnly gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/:key", h.GetByKey)
	rg.POST("/:key/check", adminOnly, h.Check)
}
