package models

import "fmt"

// ConflictDimension names the resource that would be double-booked.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictRoom    ConflictDimension = "ROOM"
	ConflictClass   ConflictDimension = "CLASS"
	// ConflictPeriod flags overlapping periods inside one timetable.
	ConflictPeriod ConflictDimension = "PERIOD"
)

// ConflictScope is the shared resource space a slot competes in.
type ConflictScope struct {
	AcademicYearID string  `json:"academic_year_id"`
	Weekday        Weekday `json:"weekday"`
}

// LockKey identifies the critical section guarding the scope.
func (s ConflictScope) LockKey() string {
	return fmt.Sprintf("timetable-scope:%s:%d", s.AcademicYearID, int(s.Weekday))
}

// SlotConflict describes the existing assignment a candidate collides with.
type SlotConflict struct {
	Dimension      ConflictDimension `json:"dimension"`
	SlotID         string            `json:"slot_id,omitempty"`
	PeriodID       string            `json:"period_id,omitempty"`
	TimetableID    string            `json:"timetable_id"`
	ClassSectionID string            `json:"class_section_id,omitempty"`
	SubjectID      string            `json:"subject_id,omitempty"`
	TeacherID      string            `json:"teacher_id,omitempty"`
	RoomID         string            `json:"room_id,omitempty"`
	Weekday        Weekday           `json:"weekday,omitempty"`
	Interval       Interval          `json:"interval"`
	Overlap        Interval          `json:"overlap"`
}

// Message renders a human readable description of the conflict.
func (c SlotConflict) Message() string {
	switch c.Dimension {
	case ConflictTeacher:
		return fmt.Sprintf("teacher %s already teaches class %s on %s %s", c.TeacherID, c.ClassSectionID, c.Weekday, c.Interval)
	case ConflictRoom:
		return fmt.Sprintf("room %s already booked by class %s on %s %s", c.RoomID, c.ClassSectionID, c.Weekday, c.Interval)
	case ConflictClass:
		return fmt.Sprintf("class %s already has subject %s on %s %s", c.ClassSectionID, c.SubjectID, c.Weekday, c.Interval)
	case ConflictPeriod:
		return fmt.Sprintf("period overlaps existing period %s", c.Interval)
	default:
		return "scheduling conflict"
	}
}

// SchedulingConflictError is returned when a mutation would violate a non-overlap invariant.
type SchedulingConflictError struct {
	Conflict SlotConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *SchedulingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Conflict.Message()
}
