package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
)

// Sweeper runs a reinstatement sweep on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type RecordHandler interface {
	GetRecord(c *gin.Context)
	Sweep(c *gin.Context)
}

type recordHandler struct {
	records repository.RecordRepository
	sweeper Sweeper
	logger  *zap.Logger
}

func NewRecordHandler(records repository.RecordRepository, sweeper Sweeper, logger *zap.Logger) RecordHandler {
	return &recordHandler{records: records, sweeper: sweeper, logger: logger}
}

// GetRecord handles GET /api/v1/items/:id/records
func (h *recordHandler) GetRecord(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.records.Snapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidItemID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
			return
		}
		h.logger.Error("Failed to get record", zap.String("item_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": snap, "tracked": snap.Touched()})
}

// Sweep handles POST /api/v1/sweep
func (h *recordHandler) Sweep(c *gin.Context) {
	checked, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("Manual sweep failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sweep failed"})
		return
	}

	h.logger.Info("Manual sweep finished", zap.String("username", c.GetString("username")), zap.Int("checked", checked))
	c.JSON(http.StatusOK, gin.H{"checked": checked})
}
