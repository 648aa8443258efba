package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// CreateTimetableRequest opens an empty draft timetable for a class-section.
type CreateTimetableRequest struct {
	ClassSectionID string           `json:"class_section_id" validate:"required"`
	AcademicYearID string           `json:"academic_year_id"`
	Name           string           `json:"name" validate:"omitempty,max=120"`
	Weekdays       []models.Weekday `json:"weekdays" validate:"omitempty,max=7,unique,dive,min=1,max=7"`
}

// SetDayRequest defines or toggles a weekday on a timetable.
type SetDayRequest struct {
	Weekday models.Weekday `json:"weekday" validate:"required,min=1,max=7"`
	Enabled *bool          `json:"enabled" validate:"required"`
}

// CreatePeriodRequest appends a period to a timetable's daily structure.
type CreatePeriodRequest struct {
	Name      string `json:"name" validate:"omitempty,max=60"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock,clockafter=StartTime"`
	IsBreak   bool   `json:"is_break"`
}

// CreateSlotRequest assigns a subject/teacher/room to a (day, period).
// Either PeriodID or the StartTime/EndTime pair must be supplied; the latter
// resolves to an existing period with the same interval or an implicit one.
type CreateSlotRequest struct {
	TimetableID string  `json:"timetable_id" validate:"required"`
	DayID       string  `json:"day_id" validate:"required"`
	PeriodID    string  `json:"period_id"`
	StartTime   string  `json:"start_time" validate:"omitempty,clock"`
	EndTime     string  `json:"end_time" validate:"omitempty,clock,clockafter=StartTime"`
	SubjectID   string  `json:"subject_id" validate:"required"`
	TeacherID   string  `json:"teacher_id" validate:"required"`
	RoomID      *string `json:"room_id" validate:"omitempty,min=1"`
}

// UsesRawTime reports whether the slot is addressed by explicit times instead of a period.
func (r CreateSlotRequest) UsesRawTime() bool {
	return r.PeriodID == ""
}

// CrossFieldErrors enforces the period-or-times rule.
func (r CreateSlotRequest) CrossFieldErrors() []FieldError {
	hasTimes := r.StartTime != "" || r.EndTime != ""
	switch {
	case r.PeriodID == "" && !hasTimes:
		return []FieldError{{Field: "period_id", Rule: "required_without", Message: "period_id or start_time/end_time is required"}}
	case r.PeriodID != "" && hasTimes:
		return []FieldError{{Field: "period_id", Rule: "excluded_with", Message: "period_id cannot be combined with start_time/end_time"}}
	case r.PeriodID == "" && r.StartTime == "":
		return []FieldError{{Field: "start_time", Rule: "required", Message: "start_time is required"}}
	case r.PeriodID == "" && r.EndTime == "":
		return []FieldError{{Field: "end_time", Rule: "required", Message: "end_time is required"}}
	}
	return nil
}

// UpdateSlotRequest patches a slot. Nil fields are left untouched; an empty RoomID clears the room.
type UpdateSlotRequest struct {
	DayID     *string `json:"day_id" validate:"omitempty,min=1"`
	PeriodID  *string `json:"period_id" validate:"omitempty,min=1"`
	SubjectID *string `json:"subject_id" validate:"omitempty,min=1"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,min=1"`
	RoomID    *string `json:"room_id"`
}

// Empty reports whether the patch changes nothing.
func (r UpdateSlotRequest) Empty() bool {
	return r.DayID == nil && r.PeriodID == nil && r.SubjectID == nil && r.TeacherID == nil && r.RoomID == nil
}

// ScheduleQuery scopes teacher/room schedule lookups.
type ScheduleQuery struct {
	AcademicYearID string `form:"academicYearId"`
}
