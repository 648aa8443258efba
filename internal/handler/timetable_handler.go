package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableManager interface {
	Create(ctx context.Context, req dto.CreateTimetableRequest) (*dto.TimetableDetail, error)
	Get(ctx context.Context, id string) (*dto.TimetableDetail, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error)
	SetDay(ctx context.Context, timetableID string, req dto.SetDayRequest) (*models.TimetableDay, error)
	AddPeriod(ctx context.Context, timetableID string, req dto.CreatePeriodRequest) (*models.Period, error)
	DeletePeriod(ctx context.Context, timetableID, periodID string) error
	Publish(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) (*dto.DeleteTimetableResult, error)
}

type dayViewer interface {
	Days(ctx context.Context, timetableID string) (dto.DaySchedule, error)
}

type timetableExporter interface {
	Export(ctx context.Context, timetableID, format string) (*service.ExportResult, error)
}

// TimetableHandler exposes the timetable aggregate.
type TimetableHandler struct {
	timetables timetableManager
	views      dayViewer
	exporter   timetableExporter
}

// NewTimetableHandler constructs a TimetableHandler.
func NewTimetableHandler(timetables timetableManager, views dayViewer, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, views: views, exporter: exporter}
}

// Create godoc
// @Summary Create timetable
// @Description Opens an empty draft timetable for a class-section. Defaults to the current academic year and Monday to Friday.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimetableRequest true "Timetable payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.timetables.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param academicYearId query string false "Filter by academic year"
// @Param classSectionId query string false "Filter by class section"
// @Param status query string false "DRAFT, ACTIVE or ARCHIVED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	filter := models.TimetableFilter{
		AcademicYearID: c.Query("academicYearId"),
		ClassSectionID: c.Query("classSectionId"),
		Status:         models.TimetableStatus(c.Query("status")),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "limit", 20),
	}
	timetables, pagination, err := h.timetables.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetables, pagination)
}

// Get godoc
// @Summary Get timetable detail
// @Description Nested days, periods and the slot occupying each cell.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	detail, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete timetable
// @Description Drafts and archived timetables are purged; active timetables are archived.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	result, err := h.timetables.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Publish godoc
// @Summary Publish timetable
// @Description Moves a draft timetable with at least one slot to ACTIVE.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.timetables.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// SetDay godoc
// @Summary Define or toggle a weekday
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.SetDayRequest true "Day payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/{id}/days [put]
func (h *TimetableHandler) SetDay(c *gin.Context) {
	var req dto.SetDayRequest
	if !bindJSON(c, &req) {
		return
	}
	day, err := h.timetables.SetDay(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// Days godoc
// @Summary Slots grouped by weekday
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/days [get]
func (h *TimetableHandler) Days(c *gin.Context) {
	days, err := h.views.Days(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// AddPeriod godoc
// @Summary Add period
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.CreatePeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/periods [post]
func (h *TimetableHandler) AddPeriod(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.timetables.AddPeriod(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// DeletePeriod godoc
// @Summary Delete period
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Param periodId path string true "Period ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /timetables/{id}/periods/{periodId} [delete]
func (h *TimetableHandler) DeletePeriod(c *gin.Context) {
	if err := h.timetables.DeletePeriod(c.Request.Context(), c.Param("id"), c.Param("periodId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export timetable grid
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Timetable ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	result, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
