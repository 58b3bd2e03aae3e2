package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"thirdwatch.dev/watch/internal/http/dto"
	"thirdwatch.dev/watch/internal/manifest"
	"thirdwatch.dev/watch/internal/store"
)

type ManifestHandler struct {
	deps store.DependencyStore
}

func NewManifestHandler(deps store.DependencyStore) *ManifestHandler {
	return &ManifestHandler{deps: deps}
}

// Ingest accepts a scanned dependency manifest and upserts the watched set.
// The body goes through the same parse/normalize path as the CLI file loader.
func (h *ManifestHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := manifest.Parse(body)
	if err != nil {
		slog.WarnContext(ctx, "invalid manifest", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deps := m.Normalize()

	counts, err := h.deps.UpsertBatch(ctx, deps)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert dependencies", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest manifest"})
		return
	}

	slog.InfoContext(ctx, "manifest ingested",
		"repository", m.Repository,
		"dependencies", len(deps),
		"created", counts.Created,
		"updated", counts.Updated)

	c.JSON(http.StatusOK, dto.ToIngestManifestResponse(m.Repository, len(deps), counts))
}
