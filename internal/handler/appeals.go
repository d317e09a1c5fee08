package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/appeal"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
)

// AppealProcessor decides an appeal and replies to its sender.
type AppealProcessor interface {
	Handle(ctx context.Context, msg models.AppealMessage) appeal.Outcome
}

type AppealHandler interface {
	Submit(c *gin.Context)
}

type appealHandler struct {
	appeals AppealProcessor
	logger  *zap.Logger
}

func NewAppealHandler(appeals AppealProcessor, logger *zap.Logger) AppealHandler {
	return &appealHandler{appeals: appeals, logger: logger}
}

// Submit handles POST /api/v1/appeals
func (h *appealHandler) Submit(c *gin.Context) {
	var msg models.AppealMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.appeals.Handle(c.Request.Context(), msg)
	h.logger.Debug("Appeal handled", zap.String("thread_id", msg.ThreadID), zap.String("outcome", string(outcome)))
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
