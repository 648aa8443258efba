package models

import "time"

// TimetableStatus represents lifecycle phases of a class timetable.
type TimetableStatus string

const (
	TimetableStatusDraft    TimetableStatus = "DRAFT"
	TimetableStatusActive   TimetableStatus = "ACTIVE"
	TimetableStatusArchived TimetableStatus = "ARCHIVED"
)

// Live reports whether the timetable still takes part in conflict detection.
func (s TimetableStatus) Live() bool {
	return s == TimetableStatusDraft || s == TimetableStatusActive
}

// Timetable is the weekly schedule of one class-section for one academic year.
type Timetable struct {
	ID             string          `db:"id" json:"id"`
	ClassSectionID string          `db:"class_section_id" json:"class_section_id"`
	AcademicYearID string          `db:"academic_year_id" json:"academic_year_id"`
	Name           string          `db:"name" json:"name"`
	Status         TimetableStatus `db:"status" json:"status"`
	PublishedAt    *time.Time      `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter describes query params for listing timetables.
type TimetableFilter struct {
	AcademicYearID string
	ClassSectionID string
	Status         TimetableStatus
	Page           int
	PageSize       int
}

// Pagination is the paging metadata of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// TimetableDay is a weekday enabled (or not) on a timetable.
type TimetableDay struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	Weekday     Weekday   `db:"weekday" json:"weekday"`
	Enabled     bool      `db:"enabled" json:"enabled"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Period is an ordered time range in the daily structure of a timetable.
type Period struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	Name        string    `db:"name" json:"name"`
	StartTime   ClockTime `db:"start_time" json:"start_time"`
	EndTime     ClockTime `db:"end_time" json:"end_time"`
	IsBreak     bool      `db:"is_break" json:"is_break"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Interval returns the period's half-open range.
func (p Period) Interval() Interval {
	return Interval{Start: p.StartTime, End: p.EndTime}
}

// Slot binds a (day, period) of a timetable to a subject, teacher and optional room.
// The period interval, weekday and academic year are copied onto the slot so the
// conflict scope can be loaded without joins.
type Slot struct {
	ID             string    `db:"id" json:"id"`
	TimetableID    string    `db:"timetable_id" json:"timetable_id"`
	ClassSectionID string    `db:"class_section_id" json:"class_section_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	DayID          string    `db:"day_id" json:"day_id"`
	Weekday        Weekday   `db:"weekday" json:"weekday"`
	PeriodID       string    `db:"period_id" json:"period_id"`
	StartTime      ClockTime `db:"start_time" json:"start_time"`
	EndTime        ClockTime `db:"end_time" json:"end_time"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	RoomID         *string   `db:"room_id" json:"room_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the slot's half-open range.
func (s Slot) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

// HasRoom reports whether a room is assigned.
func (s Slot) HasRoom() bool {
	return s.RoomID != nil && *s.RoomID != ""
}

// Room returns the assigned room or an empty string.
func (s Slot) Room() string {
	if s.RoomID == nil {
		return ""
	}
	return *s.RoomID
}

// TimetablePublishedEvent is broadcast when a timetable becomes active.
type TimetablePublishedEvent struct {
	TimetableID    string    `json:"timetable_id"`
	ClassSectionID string    `json:"class_section_id"`
	AcademicYearID string    `json:"academic_year_id"`
	SlotCount      int       `json:"slot_count"`
	PublishedAt    time.Time `json:"published_at"`
}
