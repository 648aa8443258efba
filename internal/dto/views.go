package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// DaySchedule maps each weekday to its slots ordered by start time.
type DaySchedule map[models.Weekday][]models.Slot

// PeriodCell is one period of a day with the slot occupying it, if any.
type PeriodCell struct {
	Period models.Period `json:"period"`
	Slot   *models.Slot  `json:"slot,omitempty"`
}

// DayDetail lists the periods of a day in order.
type DayDetail struct {
	Day     models.TimetableDay `json:"day"`
	Periods []PeriodCell        `json:"periods"`
}

// TimetableDetail is the nested Timetable → Days → Periods → Slots shape used by renderers.
type TimetableDetail struct {
	Timetable models.Timetable `json:"timetable"`
	Days      []DayDetail      `json:"days"`
	Periods   []models.Period  `json:"periods"`
	SlotCount int              `json:"slot_count"`
}

// ResourceSchedule is the weekly agenda of a teacher or room within an academic year.
type ResourceSchedule struct {
	ResourceID     string      `json:"resource_id"`
	AcademicYearID string      `json:"academic_year_id"`
	Days           DaySchedule `json:"days"`
}

// PublishFailure is attached to publish errors.
type PublishFailure struct {
	TimetableID string                 `json:"timetable_id"`
	Status      models.TimetableStatus `json:"status"`
	SlotCount   int                    `json:"slot_count"`
}

// DeleteOutcome tells whether a deleted timetable was removed or retired.
type DeleteOutcome string

const (
	DeleteOutcomePurged   DeleteOutcome = "PURGED"
	DeleteOutcomeArchived DeleteOutcome = "ARCHIVED"
)

// DeleteTimetableResult reports what Delete did.
type DeleteTimetableResult struct {
	TimetableID string        `json:"timetable_id"`
	Outcome     DeleteOutcome `json:"outcome"`
}
