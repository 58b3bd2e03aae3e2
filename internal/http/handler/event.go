package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"thirdwatch.dev/watch/internal/http/dto"
	"thirdwatch.dev/watch/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

type EventHandler struct {
	events      store.ChangeEventStore
	assessments store.AssessmentStore
}

func NewEventHandler(events store.ChangeEventStore, assessments store.AssessmentStore) *EventHandler {
	return &EventHandler{events: events, assessments: assessments}
}

func (h *EventHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultEventLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.events.ListRecent(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list change events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list change events"})
		return
	}

	c.JSON(http.StatusOK, dto.ToEventListResponse(events))
}

func (h *EventHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	event, err := h.events.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "change event not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch change event", "error", err, "change_event_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch change event"})
		return
	}

	c.JSON(http.StatusOK, dto.ToChangeEventResponse(event))
}

func (h *EventHandler) GetAssessment(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	assessment, err := h.assessments.GetByChangeEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch assessment", "error", err, "change_event_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch assessment"})
		return
	}

	c.JSON(http.StatusOK, dto.ToAssessmentResponse(assessment))
}
