package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type resourceScheduleViewer interface {
	TeacherSchedule(ctx context.Context, teacherID, academicYearID string) (*dto.ResourceSchedule, error)
	RoomSchedule(ctx context.Context, roomID, academicYearID string) (*dto.ResourceSchedule, error)
}

// ScheduleViewHandler serves the teacher and room agendas.
type ScheduleViewHandler struct {
	views resourceScheduleViewer
}

// NewScheduleViewHandler constructs a ScheduleViewHandler.
func NewScheduleViewHandler(views resourceScheduleViewer) *ScheduleViewHandler {
	return &ScheduleViewHandler{views: views}
}

// Teacher godoc
// @Summary Teacher schedule
// @Description Active slots of a teacher grouped by weekday.
// @Tags Schedules
// @Produce json
// @Param id path string true "Teacher ID"
// @Param academicYearId query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedule [get]
func (h *ScheduleViewHandler) Teacher(c *gin.Context) {
	var query dto.ScheduleQuery
	_ = c.ShouldBindQuery(&query)
	schedule, err := h.views.TeacherSchedule(c.Request.Context(), c.Param("id"), query.AcademicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Room godoc
// @Summary Room schedule
// @Description Active bookings of a room grouped by weekday.
// @Tags Schedules
// @Produce json
// @Param id path string true "Room ID"
// @Param academicYearId query string false "Academic year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/schedule [get]
func (h *ScheduleViewHandler) Room(c *gin.Context) {
	var query dto.ScheduleQuery
	_ = c.ShouldBindQuery(&query)
	schedule, err := h.views.RoomSchedule(c.Request.Context(), c.Param("id"), query.AcademicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}
