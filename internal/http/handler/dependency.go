package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"thirdwatch.dev/watch/internal/checker"
	"thirdwatch.dev/watch/internal/http/dto"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/store"
)

// CheckRunner abstracts the check pipeline for testability.
type CheckRunner interface {
	Run(ctx context.Context, dep model.WatchedDependency) checker.RunResult
}

type DependencyHandler struct {
	deps   store.DependencyStore
	checks CheckRunner
}

func NewDependencyHandler(deps store.DependencyStore, checks CheckRunner) *DependencyHandler {
	return &DependencyHandler{deps: deps, checks: checks}
}

func (h *DependencyHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	deps, err := h.deps.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list dependencies", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dependencies"})
		return
	}

	c.JSON(http.StatusOK, dto.ToDependencyListResponse(deps))
}

func (h *DependencyHandler) GetByKey(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	dep, err := h.deps.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dependency not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch dependency", "error", err, "dependency_key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch dependency"})
		return
	}

	c.JSON(http.StatusOK, dto.ToDependencyResponse(dep))
}

// Check runs the full pipeline for one dependency synchronously. Admin only;
// a check hits the upstream registry on every call.
func (h *DependencyHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")

	dep, err := h.deps.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dependency not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch dependency", "error", err, "dependency_key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch dependency"})
		return
	}

	result := h.checks.Run(ctx, *dep)
	if result.Check.Err != nil {
		slog.ErrorContext(ctx, "on-demand check failed", "error", result.Check.Err, "dependency_key", key)
		c.JSON(http.StatusBadGateway, gin.H{"error": "check failed"})
		return
	}

	c.JSON(http.StatusOK, dto.ToCheckRunResponse(result))
}
