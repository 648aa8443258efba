package repository

import (
	"errors"

	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation    = "23505"
	sqlStateExclusionViolation = "23P01"
	sqlStateForeignKey         = "23503"
)

var (
	// ErrDuplicateSlot is returned when a (timetable, day, period) cell is already occupied.
	ErrDuplicateSlot = errors.New("slot already exists for day and period")
	// ErrDuplicateLiveTimetable is returned when a class-section already has a live timetable in the year.
	ErrDuplicateLiveTimetable = errors.New("live timetable already exists for class section")
	// ErrDuplicateDay is returned when a weekday is defined twice on a timetable.
	ErrDuplicateDay = errors.New("weekday already defined on timetable")
	// ErrPeriodOverlap is returned when the storage exclusion constraint rejects overlapping periods.
	ErrPeriodOverlap = errors.New("period overlaps an existing period")
	// ErrReferenced is returned when a row is still referenced by another row.
	ErrReferenced = errors.New("row is still referenced")
)

var constraintErrors = map[string]error{
	"timetable_slots_cell_key":        ErrDuplicateSlot,
	"timetables_live_class_year_key":  ErrDuplicateLiveTimetable,
	"timetable_days_weekday_key":      ErrDuplicateDay,
	"timetable_periods_no_overlap":    ErrPeriodOverlap,
	"timetable_slots_period_id_fkey":  ErrReferenced,
	"timetable_slots_day_id_fkey":     ErrReferenced,
	"timetable_slots_timetable_fkey":  ErrReferenced,
	"timetable_periods_timetable_key": ErrReferenced,
}

// translateError maps known PostgreSQL constraint violations to sentinel errors.
// Unknown errors are returned unchanged.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case sqlStateUniqueViolation, sqlStateExclusionViolation, sqlStateForeignKey:
		if mapped, ok := constraintErrors[pqErr.Constraint]; ok {
			return mapped
		}
		if pqErr.Code == sqlStateExclusionViolation {
			return ErrPeriodOverlap
		}
	}
	return err
}
