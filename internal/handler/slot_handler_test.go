package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type slotSchedulerMock struct {
	slot      *models.Slot
	err       error
	createReq dto.CreateSlotRequest
	updateReq dto.UpdateSlotRequest
	removed   string
}

func (m *slotSchedulerMock) AddSlot(ctx context.Context, req dto.CreateSlotRequest) (*models.Slot, error) {
	m.createReq = req
	return m.slot, m.err
}

func (m *slotSchedulerMock) UpdateSlot(ctx context.Context, slotID string, req dto.UpdateSlotRequest) (*models.Slot, error) {
	m.updateReq = req
	return m.slot, m.err
}

func (m *slotSchedulerMock) RemoveSlot(ctx context.Context, slotID string) error {
	m.removed = slotID
	return m.err
}

func TestSlotHandlerCreate(t *testing.T) {
	svc := &slotSchedulerMock{slot: &models.Slot{ID: "slot-1", Weekday: models.Monday}}
	handler := NewSlotHandler(svc)
	body := []byte(`{"timetable_id":"tt-1","day_id":"day-1","start_time":"07:00","end_time":"07:45","subject_id":"math","teacher_id":"teacher-1","room_id":"room-a"}`)
	c, w := newTimetableTestContext(http.MethodPost, "/slots", body)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "07:00", svc.createReq.StartTime)
	require.NotNil(t, svc.createReq.RoomID)
	assert.Equal(t, "room-a", *svc.createReq.RoomID)
}

func TestSlotHandlerCreateConflictCarriesDetails(t *testing.T) {
	conflict := models.SlotConflict{
		Dimension:   models.ConflictTeacher,
		SlotID:      "slot-9",
		TimetableID: "tt-2",
		TeacherID:   "teacher-1",
		Weekday:     models.Monday,
		Interval:    models.Interval{Start: models.MustClockTime("07:00"), End: models.MustClockTime("07:45")},
	}
	svc := &slotSchedulerMock{err: appErrors.WithDetails(appErrors.ErrSchedulingConflict, conflict.Message(), conflict)}
	handler := NewSlotHandler(svc)
	c, w := newTimetableTestContext(http.MethodPost, "/slots", []byte(`{"timetable_id":"tt-1"}`))

	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errPayload := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "SCHEDULING_CONFLICT", errPayload["code"])
	details := errPayload["details"].(map[string]interface{})
	assert.Equal(t, "TEACHER", details["dimension"])
	assert.Equal(t, "slot-9", details["slot_id"])
	assert.Equal(t, "MONDAY", details["weekday"])
}

func TestSlotHandlerUpdateClearsRoom(t *testing.T) {
	svc := &slotSchedulerMock{slot: &models.Slot{ID: "slot-1", Weekday: models.Monday}}
	handler := NewSlotHandler(svc)
	c, w := newTimetableTestContext(http.MethodPatch, "/slots/slot-1", []byte(`{"room_id":""}`))

	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.updateReq.RoomID)
	assert.Empty(t, *svc.updateReq.RoomID)
	assert.Nil(t, svc.updateReq.TeacherID)
}

func TestSlotHandlerDelete(t *testing.T) {
	svc := &slotSchedulerMock{}
	handler := NewSlotHandler(svc)
	c, w := newTimetableTestContext(http.MethodDelete, "/slots/slot-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "slot-1"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Zero(t, w.Body.Len())
	assert.Equal(t, "slot-1", svc.removed)
}

func TestSlotHandlerDeleteMissing(t *testing.T) {
	handler := NewSlotHandler(&slotSchedulerMock{err: appErrors.Clone(appErrors.ErrNotFound, "slot not found")})
	c, w := newTimetableTestContext(http.MethodDelete, "/slots/missing", nil)

	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
