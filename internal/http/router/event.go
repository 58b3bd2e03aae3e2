package router

import (
	"github.com/gin-gonic/gin"
	"thirdwatch.dev/watch/internal/http/handler"
)

func EventRouter(rg *gin.RouterGroup, h *handler.EventHandler) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/assessment", h.GetAssessment)
}
