package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type slotScheduler interface {
	AddSlot(ctx context.Context, req dto.CreateSlotRequest) (*models.Slot, error)
	UpdateSlot(ctx context.Context, slotID string, req dto.UpdateSlotRequest) (*models.Slot, error)
	RemoveSlot(ctx context.Context, slotID string) error
}

// SlotHandler exposes slot mutations.
type SlotHandler struct {
	scheduler slotScheduler
}

// NewSlotHandler constructs a SlotHandler.
func NewSlotHandler(scheduler slotScheduler) *SlotHandler {
	return &SlotHandler{scheduler: scheduler}
}

// Create godoc
// @Summary Add slot
// @Description Assigns a subject, teacher and optional room to a day and period. Give either period_id or start_time/end_time.
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body dto.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope "details carry the conflicting slot"
// @Router /slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	var req dto.CreateSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.scheduler.AddSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Update godoc
// @Summary Update slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body dto.UpdateSlotRequest true "Slot patch"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots/{id} [patch]
func (h *SlotHandler) Update(c *gin.Context) {
	var req dto.UpdateSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.scheduler.UpdateSlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Remove slot
// @Tags Slots
// @Param id path string true "Slot ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [delete]
func (h *SlotHandler) Delete(c *gin.Context) {
	if err := h.scheduler.RemoveSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
