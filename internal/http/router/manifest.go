package router

import (
	"github.com/gin-gonic/gin"
	"thirdwatch.dev/watch/internal/http/handler"
)

// ManifestRouter sets up manifest ingest routes. Ingest rewrites the watch
// list, so it requires the admin API key.
func ManifestRouter(rg *gin.RouterGroup, h *handler.ManifestHandler, adminOnly gin.HandlerFunc) {
	rg.POST("", adminOnly, h.Ingest)
}
