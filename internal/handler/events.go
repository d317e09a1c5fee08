package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/enforcement"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
)

// Engine is the part of the enforcement engine driven by platform events.
type Engine interface {
	OnItemSubmitted(ctx context.Context, itemID string) error
	CheckCompliance(ctx context.Context, itemID string) error
}

type EventHandler interface {
	ItemSubmitted(c *gin.Context)
	CommentCreated(c *gin.Context)
}

type eventHandler struct {
	engine Engine
	logger *zap.Logger
}

func NewEventHandler(engine Engine, logger *zap.Logger) EventHandler {
	return &eventHandler{engine: engine, logger: logger}
}

type ItemSubmittedRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

type CommentCreatedRequest struct {
	ItemID    string `json:"item_id" binding:"required"`
	CommentID string `json:"comment_id"`
	Author    string `json:"author"`
}

// ItemSubmitted handles POST /api/v1/events/item-submitted
func (h *eventHandler) ItemSubmitted(c *gin.Context) {
	var req ItemSubmittedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.OnItemSubmitted(c.Request.Context(), req.ItemID); err != nil {
		h.respondError(c, "item-submitted", req.ItemID, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// CommentCreated handles POST /api/v1/events/comment-created. A new comment may be the
// explanation of an item that is already warned or removed.
func (h *eventHandler) CommentCreated(c *gin.Context) {
	var req CommentCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.CheckCompliance(c.Request.Context(), req.ItemID); err != nil && !errors.Is(err, enforcement.ErrNotTracked) {
		h.respondError(c, "comment-created", req.ItemID, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *eventHandler) respondError(c *gin.Context, event, itemID string, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidItemID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
	case errors.Is(err, enforcement.ErrStateUnavailable):
		h.logger.Warn("State store unavailable", zap.String("event", event), zap.String("item_id", itemID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "State store unavailable"})
	default:
		h.logger.Error("Failed to handle event", zap.String("event", event), zap.String("item_id", itemID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to handle event"})
	}
}
