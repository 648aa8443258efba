package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type viewSlotReader interface {
	FindByTimetable(ctx context.Context, timetableID string) ([]models.Slot, error)
	FindByTeacher(ctx context.Context, teacherID, academicYearID string) ([]models.Slot, error)
	FindByRoom(ctx context.Context, roomID, academicYearID string) ([]models.Slot, error)
}

type viewReferenceChecker interface {
	TeacherExists(ctx context.Context, id string) (bool, error)
	RoomExists(ctx context.Context, id string) (bool, error)
	CurrentAcademicYearID(ctx context.Context) (string, error)
}

// TimetableViewService derives read-only groupings of slots. Results are cached per academic year.
type TimetableViewService struct {
	timetables timetableReader
	slots      viewSlotReader
	refs       viewReferenceChecker
	cache      *CacheService
	logger     *zap.Logger
}

// NewTimetableViewService constructs a TimetableViewService.
func NewTimetableViewService(timetables timetableReader, slots viewSlotReader, refs viewReferenceChecker, cache *CacheService, logger *zap.Logger) *TimetableViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableViewService{timetables: timetables, slots: slots, refs: refs, cache: cache, logger: logger}
}

// GroupByDay buckets slots per weekday, each bucket ordered by start time.
func GroupByDay(slots []models.Slot) dto.DaySchedule {
	grouped := make(dto.DaySchedule)
	for _, slot := range slots {
		grouped[slot.Weekday] = append(grouped[slot.Weekday], slot)
	}
	for weekday := range grouped {
		bucket := grouped[weekday]
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].StartTime != bucket[j].StartTime {
				return bucket[i].StartTime < bucket[j].StartTime
			}
			return bucket[i].EndTime < bucket[j].EndTime
		})
	}
	return grouped
}

// BuildDetail nests days, periods and slots into the grid renderers consume.
func BuildDetail(timetable models.Timetable, days []models.TimetableDay, periods []models.Period, slots []models.Slot) *dto.TimetableDetail {
	orderedPeriods := append([]models.Period(nil), periods...)
	sort.SliceStable(orderedPeriods, func(i, j int) bool {
		return orderedPeriods[i].StartTime < orderedPeriods[j].StartTime
	})
	orderedDays := append([]models.TimetableDay(nil), days...)
	sort.SliceStable(orderedDays, func(i, j int) bool {
		return orderedDays[i].Weekday < orderedDays[j].Weekday
	})

	type cellKey struct{ dayID, periodID string }
	cells := make(map[cellKey]models.Slot, len(slots))
	for _, slot := range slots {
		cells[cellKey{slot.DayID, slot.PeriodID}] = slot
	}

	detail := &dto.TimetableDetail{
		Timetable: timetable,
		Days:      make([]dto.DayDetail, 0, len(orderedDays)),
		Periods:   orderedPeriods,
		SlotCount: len(slots),
	}
	if detail.Periods == nil {
		detail.Periods = []models.Period{}
	}
	for _, day := range orderedDays {
		dayDetail := dto.DayDetail{Day: day, Periods: make([]dto.PeriodCell, 0, len(orderedPeriods))}
		for _, period := range orderedPeriods {
			cell := dto.PeriodCell{Period: period}
			if slot, ok := cells[cellKey{day.ID, period.ID}]; ok {
				slot := slot
				cell.Slot = &slot
			}
			dayDetail.Periods = append(dayDetail.Periods, cell)
		}
		detail.Days = append(detail.Days, dayDetail)
	}
	return detail
}

// Days returns the slots of a timetable grouped by weekday.
func (s *TimetableViewService) Days(ctx context.Context, timetableID string) (dto.DaySchedule, error) {
	timetable, err := s.timetables.Get(ctx, timetableID)
	if err != nil {
		return nil, lookupError(err, "timetable not found", "failed to load timetable")
	}

	key := ViewKey(timetable.AcademicYearID, "days", timetableID)
	var cached dto.DaySchedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	generation, cacheable := s.cache.Generation(ctx, timetable.AcademicYearID)

	slots, err := s.slots.FindByTimetable(ctx, timetableID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load slots")
	}
	grouped := GroupByDay(slots)
	if cacheable {
		_ = s.cache.SetIfCurrent(ctx, timetable.AcademicYearID, generation, key, grouped, 0)
	}
	return grouped, nil
}

// TeacherSchedule returns a teacher's active slots within an academic year grouped by weekday.
func (s *TimetableViewService) TeacherSchedule(ctx context.Context, teacherID, academicYearID string) (*dto.ResourceSchedule, error) {
	return s.resourceSchedule(ctx, "teacher", teacherID, academicYearID, s.refs.TeacherExists, s.slots.FindByTeacher)
}

// RoomSchedule returns a room's active bookings within an academic year grouped by weekday.
func (s *TimetableViewService) RoomSchedule(ctx context.Context, roomID, academicYearID string) (*dto.ResourceSchedule, error) {
	return s.resourceSchedule(ctx, "room", roomID, academicYearID, s.refs.RoomExists, s.slots.FindByRoom)
}

func (s *TimetableViewService) resourceSchedule(
	ctx context.Context,
	kind, resourceID, academicYearID string,
	exists func(context.Context, string) (bool, error),
	load func(context.Context, string, string) ([]models.Slot, error),
) (*dto.ResourceSchedule, error) {
	if academicYearID == "" {
		current, err := s.refs.CurrentAcademicYearID(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, preconditionError("no current academic year configured")
			}
			return nil, appErrors.Storage(err, "failed to resolve current academic year")
		}
		academicYearID = current
	}

	key := ViewKey(academicYearID, kind, resourceID)
	var cached dto.ResourceSchedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	generation, cacheable := s.cache.Generation(ctx, academicYearID)

	ok, err := exists(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to verify "+kind)
	}
	if !ok {
		return nil, notFoundError(kind + " not found")
	}

	slots, err := load(ctx, resourceID, academicYearID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load "+kind+" schedule")
	}
	schedule := &dto.ResourceSchedule{
		ResourceID:     resourceID,
		AcademicYearID: academicYearID,
		Days:           GroupByDay(slots),
	}
	if cacheable {
		_ = s.cache.SetIfCurrent(ctx, academicYearID, generation, key, schedule, 0)
	}
	return schedule, nil
}
