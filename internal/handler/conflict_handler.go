package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-activity-api/internal/service"
	"github.com/noah-isme/campus-activity-api/pkg/response"
)

// ConflictHandler exposes the schedule overlap audit.
type ConflictHandler struct {
	conflicts *service.ConflictService
	metrics   *service.MetricsService
}

// NewConflictHandler constructs ConflictHandler.
func NewConflictHandler(conflicts *service.ConflictService, metrics *service.MetricsService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts, metrics: metrics}
}

type conflictItem struct {
	Student     string `json:"student"`
	Description string `json:"description"`
}

// Sweep godoc
// @Summary Audit every student schedule for overlapping enrollments
// @Tags Conflicts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conflicts [get]
// @Security BearerAuth
func (h *ConflictHandler) Sweep(c *gin.Context) {
	conflicts, err := h.conflicts.SweepAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordConflicts(len(conflicts))

	items := make([]conflictItem, 0, len(conflicts))
	for _, conflict := range conflicts {
		items = append(items, conflictItem{Student: conflict.Student, Description: conflict.Description()})
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}
