package service

import (
	"context"
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type conflictScopeReader interface {
	FindByDayAndYear(ctx context.Context, academicYearID string, weekday models.Weekday) ([]models.Slot, error)
}

// ConflictChecker reports the first non-overlap invariant a candidate slot would break.
type ConflictChecker struct {
	slots conflictScopeReader
}

// NewConflictChecker constructs a checker reading the scope from storage.
func NewConflictChecker(slots conflictScopeReader) *ConflictChecker {
	return &ConflictChecker{slots: slots}
}

// FindConflict loads every live slot sharing the academic year and weekday and scans it.
// A nil result means the candidate fits.
func (c *ConflictChecker) FindConflict(ctx context.Context, candidate models.Slot, scope models.ConflictScope, excludeSlotID string) (*models.SlotConflict, error) {
	existing, err := c.slots.FindByDayAndYear(ctx, scope.AcademicYearID, scope.Weekday)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load conflict scope")
	}
	return DetectConflict(candidate, existing, excludeSlotID), nil
}

type conflictRule struct {
	dimension models.ConflictDimension
	applies   func(candidate, existing models.Slot) bool
}

// Checked in this order; the first rule with an overlapping slot wins.
var conflictRules = []conflictRule{
	{models.ConflictTeacher, func(candidate, existing models.Slot) bool {
		return candidate.TeacherID == existing.TeacherID
	}},
	{models.ConflictRoom, func(candidate, existing models.Slot) bool {
		return candidate.HasRoom() && existing.HasRoom() && candidate.Room() == existing.Room()
	}},
	{models.ConflictClass, func(candidate, existing models.Slot) bool {
		return candidate.TimetableID == existing.TimetableID
	}},
}

// DetectConflict scans an already loaded scope. Slots are visited in start order so the
// reported conflict is deterministic.
func DetectConflict(candidate models.Slot, scope []models.Slot, excludeSlotID string) *models.SlotConflict {
	ordered := make([]models.Slot, 0, len(scope))
	for _, slot := range scope {
		if excludeSlotID != "" && slot.ID == excludeSlotID {
			continue
		}
		ordered = append(ordered, slot)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartTime != ordered[j].StartTime {
			return ordered[i].StartTime < ordered[j].StartTime
		}
		return ordered[i].ID < ordered[j].ID
	})

	interval := candidate.Interval()
	for _, rule := range conflictRules {
		for _, existing := range ordered {
			if !rule.applies(candidate, existing) {
				continue
			}
			overlap, ok := interval.Intersect(existing.Interval())
			if !ok {
				continue
			}
			conflict := slotConflict(rule.dimension, existing, overlap)
			return &conflict
		}
	}
	return nil
}

// DetectPeriodOverlap reports the first period of a timetable overlapping the interval.
func DetectPeriodOverlap(interval models.Interval, periods []models.Period, excludePeriodID string) *models.SlotConflict {
	for _, period := range periods {
		if excludePeriodID != "" && period.ID == excludePeriodID {
			continue
		}
		overlap, ok := interval.Intersect(period.Interval())
		if !ok {
			continue
		}
		return &models.SlotConflict{
			Dimension:   models.ConflictPeriod,
			PeriodID:    period.ID,
			TimetableID: period.TimetableID,
			Interval:    period.Interval(),
			Overlap:     overlap,
		}
	}
	return nil
}

func slotConflict(dimension models.ConflictDimension, existing models.Slot, overlap models.Interval) models.SlotConflict {
	return models.SlotConflict{
		Dimension:      dimension,
		SlotID:         existing.ID,
		PeriodID:       existing.PeriodID,
		TimetableID:    existing.TimetableID,
		ClassSectionID: existing.ClassSectionID,
		SubjectID:      existing.SubjectID,
		TeacherID:      existing.TeacherID,
		RoomID:         existing.Room(),
		Weekday:        existing.Weekday,
		Interval:       existing.Interval(),
		Overlap:        overlap,
	}
}
