package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	opAddSlot    = "add"
	opUpdateSlot = "update"
	opRemoveSlot = "remove"
)

type slotStore interface {
	FindByID(ctx context.Context, id string) (*models.Slot, error)
	FindByDayAndYear(ctx context.Context, academicYearID string, weekday models.Weekday) ([]models.Slot, error)
	Save(ctx context.Context, slot *models.Slot) error
	SaveWithPeriod(ctx context.Context, period *models.Period, slot *models.Slot) error
	Delete(ctx context.Context, id string) error
}

type timetableReader interface {
	Get(ctx context.Context, id string) (*models.Timetable, error)
}

type dayReader interface {
	FindByID(ctx context.Context, id string) (*models.TimetableDay, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.Period, error)
}

type slotReferenceChecker interface {
	TeacherExists(ctx context.Context, id string) (bool, error)
	SubjectExists(ctx context.Context, id string) (bool, error)
	RoomExists(ctx context.Context, id string) (bool, error)
}

// SlotSchedulerParams groups constructor dependencies.
type SlotSchedulerParams struct {
	Slots       slotStore
	Timetables  timetableReader
	Days        dayReader
	Periods     periodReader
	References  slotReferenceChecker
	Locker      scopeLocker
	LockTimeout time.Duration
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// SlotScheduler adds, moves and removes slots while keeping teachers, rooms and classes single-booked.
type SlotScheduler struct {
	slots      slotStore
	timetables timetableReader
	days       dayReader
	periods    periodReader
	refs       slotReferenceChecker
	checker    *ConflictChecker
	guard      scopeGuard
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSlotScheduler constructs a SlotScheduler.
func NewSlotScheduler(params SlotSchedulerParams) *SlotScheduler {
	validate := params.Validator
	if validate == nil {
		validate = dto.NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotScheduler{
		slots:      params.Slots,
		timetables: params.Timetables,
		days:       params.Days,
		periods:    params.Periods,
		refs:       params.References,
		checker:    NewConflictChecker(params.Slots),
		guard:      scopeGuard{locker: params.Locker, timeout: params.LockTimeout, metrics: params.Metrics},
		cache:      params.Cache,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
	}
}

// AddSlot assigns a subject, teacher and optional room to a (day, period) of a timetable.
// When no period is given the start/end times select an existing period with the same
// interval or create one.
func (s *SlotScheduler) AddSlot(ctx context.Context, req dto.CreateSlotRequest) (*models.Slot, error) {
	slot, err := s.addSlot(ctx, req)
	s.record(opAddSlot, err)
	return slot, err
}

func (s *SlotScheduler) addSlot(ctx context.Context, req dto.CreateSlotRequest) (*models.Slot, error) {
	if fields := dto.Validate(s.validator, req); len(fields) > 0 {
		return nil, validationError("invalid slot payload", fields)
	}

	timetable, err := s.loadMutableTimetable(ctx, req.TimetableID)
	if err != nil {
		return nil, err
	}
	day, err := s.loadDay(ctx, timetable.ID, req.DayID)
	if err != nil {
		return nil, err
	}
	roomID := normalizeRoom(req.RoomID)
	if err := s.checkReferences(ctx, req.SubjectID, req.TeacherID, roomID); err != nil {
		return nil, err
	}

	scope := models.ConflictScope{AcademicYearID: timetable.AcademicYearID, Weekday: day.Weekday}
	keys := []string{scope.LockKey()}
	if req.UsesRawTime() {
		keys = yearScopeKeys(timetable.AcademicYearID)
	}
	unlock, err := s.guard.enter(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if day, err = s.loadDay(ctx, timetable.ID, req.DayID); err != nil {
		return nil, err
	}

	candidate := models.Slot{
		TimetableID:    timetable.ID,
		ClassSectionID: timetable.ClassSectionID,
		AcademicYearID: timetable.AcademicYearID,
		DayID:          day.ID,
		Weekday:        day.Weekday,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		RoomID:         roomID,
	}

	var period, implicit *models.Period
	if req.UsesRawTime() {
		interval, err := models.ParseInterval(req.StartTime, req.EndTime)
		if err != nil {
			return nil, singleFieldError("end_time", "interval", err.Error())
		}
		candidate.StartTime, candidate.EndTime = interval.Start, interval.End
		if err := s.ensureNoConflict(ctx, candidate, scope, ""); err != nil {
			return nil, err
		}
		if period, implicit, err = s.resolveImplicitPeriod(ctx, timetable.ID, interval); err != nil {
			return nil, err
		}
	} else {
		if period, err = s.loadPeriod(ctx, timetable.ID, req.PeriodID); err != nil {
			return nil, err
		}
		candidate.StartTime, candidate.EndTime = period.StartTime, period.EndTime
		if err := s.ensureNoConflict(ctx, candidate, scope, ""); err != nil {
			return nil, err
		}
	}

	if implicit != nil {
		if err := s.saveWithPeriod(ctx, implicit, &candidate); err != nil {
			return nil, err
		}
		s.logger.Debug("implicit period created", zap.String("period_id", implicit.ID), zap.Stringer("interval", implicit.Interval()))
	} else {
		candidate.PeriodID = period.ID
		if err := s.save(ctx, &candidate); err != nil {
			return nil, err
		}
	}
	s.cache.InvalidateYear(ctx, candidate.AcademicYearID)
	s.logger.Info("slot added",
		zap.String("slot_id", candidate.ID),
		zap.String("timetable_id", candidate.TimetableID),
		zap.Stringer("weekday", candidate.Weekday),
		zap.Stringer("interval", candidate.Interval()),
		zap.String("teacher_id", candidate.TeacherID),
	)
	return &candidate, nil
}

// UpdateSlot patches a slot. The slot itself is excluded from the conflict scan.
func (s *SlotScheduler) UpdateSlot(ctx context.Context, slotID string, req dto.UpdateSlotRequest) (*models.Slot, error) {
	slot, err := s.updateSlot(ctx, slotID, req)
	s.record(opUpdateSlot, err)
	return slot, err
}

func (s *SlotScheduler) updateSlot(ctx context.Context, slotID string, req dto.UpdateSlotRequest) (*models.Slot, error) {
	if fields := dto.Validate(s.validator, req); len(fields) > 0 {
		return nil, validationError("invalid slot payload", fields)
	}
	if req.Empty() {
		return nil, singleFieldError("", "required", "at least one field must be provided")
	}

	current, err := s.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	timetable, err := s.loadMutableTimetable(ctx, current.TimetableID)
	if err != nil {
		return nil, err
	}

	targetDay := &models.TimetableDay{ID: current.DayID, TimetableID: current.TimetableID, Weekday: current.Weekday, Enabled: true}
	if req.DayID != nil && *req.DayID != current.DayID {
		if targetDay, err = s.loadDay(ctx, timetable.ID, *req.DayID); err != nil {
			return nil, err
		}
	}

	subjectID := pick(req.SubjectID, current.SubjectID)
	teacherID := pick(req.TeacherID, current.TeacherID)
	roomID := current.RoomID
	if req.RoomID != nil {
		roomID = normalizeRoom(req.RoomID)
	}
	if err := s.checkReferences(ctx, changed(req.SubjectID, current.SubjectID), changed(req.TeacherID, current.TeacherID), changedRoom(req.RoomID, current.RoomID)); err != nil {
		return nil, err
	}

	unlock, err := s.guard.enter(ctx, scopeKeys(timetable.AcademicYearID, current.Weekday, targetDay.Weekday)...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	reloaded, err := s.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if reloaded.Weekday != current.Weekday {
		return nil, appErrors.Clone(appErrors.ErrConflict, "slot was moved concurrently, retry the request")
	}
	if targetDay.ID != reloaded.DayID {
		locked := targetDay.Weekday
		if targetDay, err = s.loadDay(ctx, timetable.ID, targetDay.ID); err != nil {
			return nil, err
		}
		if targetDay.Weekday != locked {
			return nil, appErrors.Clone(appErrors.ErrConflict, "day was changed concurrently, retry the request")
		}
	}

	candidate := *reloaded
	candidate.SubjectID = subjectID
	candidate.TeacherID = teacherID
	candidate.RoomID = roomID
	candidate.DayID = targetDay.ID
	candidate.Weekday = targetDay.Weekday

	if req.PeriodID != nil && *req.PeriodID != reloaded.PeriodID {
		period, err := s.loadPeriod(ctx, timetable.ID, *req.PeriodID)
		if err != nil {
			return nil, err
		}
		candidate.PeriodID = period.ID
		candidate.StartTime, candidate.EndTime = period.StartTime, period.EndTime
	}

	scope := models.ConflictScope{AcademicYearID: timetable.AcademicYearID, Weekday: candidate.Weekday}
	if err := s.ensureNoConflict(ctx, candidate, scope, slotID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, &candidate); err != nil {
		return nil, err
	}
	s.cache.InvalidateYear(ctx, candidate.AcademicYearID)
	s.logger.Info("slot updated",
		zap.String("slot_id", candidate.ID),
		zap.String("timetable_id", candidate.TimetableID),
		zap.Stringer("weekday", candidate.Weekday),
		zap.Stringer("interval", candidate.Interval()),
	)
	return &candidate, nil
}

// RemoveSlot deletes a slot. Removal cannot create a conflict so no lock is taken.
func (s *SlotScheduler) RemoveSlot(ctx context.Context, slotID string) error {
	err := s.removeSlot(ctx, slotID)
	s.record(opRemoveSlot, err)
	return err
}

func (s *SlotScheduler) removeSlot(ctx context.Context, slotID string) error {
	slot, err := s.loadSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if _, err := s.loadMutableTimetable(ctx, slot.TimetableID); err != nil {
		return err
	}
	if err := s.slots.Delete(ctx, slotID); err != nil {
		return lookupError(err, "slot not found", "failed to delete slot")
	}
	s.cache.InvalidateYear(ctx, slot.AcademicYearID)
	s.logger.Info("slot removed", zap.String("slot_id", slotID), zap.String("timetable_id", slot.TimetableID))
	return nil
}

func (s *SlotScheduler) ensureNoConflict(ctx context.Context, candidate models.Slot, scope models.ConflictScope, excludeSlotID string) error {
	conflict, err := s.checker.FindConflict(ctx, candidate, scope, excludeSlotID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return conflictError(*conflict)
	}
	return nil
}

// resolveImplicitPeriod returns the period with the exact interval when one exists.
// Otherwise it returns an unsaved period to be created together with the slot,
// provided it does not overlap the timetable's other periods.
func (s *SlotScheduler) resolveImplicitPeriod(ctx context.Context, timetableID string, interval models.Interval) (existing, implicit *models.Period, err error) {
	periods, err := s.periods.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to load periods")
	}
	for i := range periods {
		if periods[i].Interval() == interval {
			if periods[i].IsBreak {
				return nil, nil, preconditionError("break periods cannot hold slots")
			}
			return &periods[i], nil, nil
		}
	}
	if conflict := DetectPeriodOverlap(interval, periods, ""); conflict != nil {
		return nil, nil, conflictError(*conflict)
	}

	return nil, &models.Period{
		TimetableID: timetableID,
		Name:        interval.String(),
		StartTime:   interval.Start,
		EndTime:     interval.End,
	}, nil
}

func (s *SlotScheduler) save(ctx context.Context, slot *models.Slot) error {
	return s.translateSaveError(s.slots.Save(ctx, slot), slot)
}

func (s *SlotScheduler) saveWithPeriod(ctx context.Context, period *models.Period, slot *models.Slot) error {
	err := s.slots.SaveWithPeriod(ctx, period, slot)
	if errors.Is(err, repository.ErrPeriodOverlap) {
		interval := period.Interval()
		return conflictError(models.SlotConflict{Dimension: models.ConflictPeriod, TimetableID: period.TimetableID, Interval: interval, Overlap: interval})
	}
	return s.translateSaveError(err, slot)
}

func (s *SlotScheduler) translateSaveError(err error, slot *models.Slot) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicateSlot) {
		return conflictError(models.SlotConflict{
			Dimension:      models.ConflictClass,
			PeriodID:       slot.PeriodID,
			TimetableID:    slot.TimetableID,
			ClassSectionID: slot.ClassSectionID,
			Weekday:        slot.Weekday,
			Interval:       slot.Interval(),
			Overlap:        slot.Interval(),
		})
	}
	return appErrors.Storage(err, "failed to save slot")
}

func (s *SlotScheduler) loadMutableTimetable(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.Get(ctx, id)
	if err != nil {
		return nil, lookupError(err, "timetable not found", "failed to load timetable")
	}
	if timetable.Status == models.TimetableStatusArchived {
		return nil, preconditionError("archived timetables cannot be modified")
	}
	return timetable, nil
}

func (s *SlotScheduler) loadDay(ctx context.Context, timetableID, dayID string) (*models.TimetableDay, error) {
	day, err := s.days.FindByID(ctx, dayID)
	if err != nil {
		return nil, lookupError(err, "day not found", "failed to load day")
	}
	if day.TimetableID != timetableID {
		return nil, notFoundError("day not found")
	}
	if !day.Enabled {
		return nil, preconditionError("day is disabled on this timetable")
	}
	return day, nil
}

func (s *SlotScheduler) loadPeriod(ctx context.Context, timetableID, periodID string) (*models.Period, error) {
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, lookupError(err, "period not found", "failed to load period")
	}
	if period.TimetableID != timetableID {
		return nil, notFoundError("period not found")
	}
	if period.IsBreak {
		return nil, preconditionError("break periods cannot hold slots")
	}
	return period, nil
}

func (s *SlotScheduler) loadSlot(ctx context.Context, id string) (*models.Slot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "slot not found", "failed to load slot")
	}
	return slot, nil
}

type referenceCheck struct {
	id     string
	label  string
	exists func(context.Context, string) (bool, error)
}

// checkReferences verifies the non-empty ids exist.
func (s *SlotScheduler) checkReferences(ctx context.Context, subjectID, teacherID string, roomID *string) error {
	checks := []referenceCheck{
		{id: subjectID, label: "subject", exists: s.refs.SubjectExists},
		{id: teacherID, label: "teacher", exists: s.refs.TeacherExists},
	}
	if roomID != nil {
		checks = append(checks, referenceCheck{id: *roomID, label: "room", exists: s.refs.RoomExists})
	}
	for _, check := range checks {
		if check.id == "" {
			continue
		}
		ok, err := check.exists(ctx, check.id)
		if err != nil {
			return appErrors.Storage(err, "failed to verify "+check.label)
		}
		if !ok {
			return notFoundError(check.label + " not found")
		}
	}
	return nil
}

func (s *SlotScheduler) record(op string, err error) {
	switch {
	case err == nil:
		s.metrics.RecordSlotMutation(op, resultOK, "")
	case appErrors.HasCode(err, appErrors.ErrSchedulingConflict.Code):
		conflict, _ := ConflictFromError(err)
		s.metrics.RecordSlotMutation(op, resultConflict, conflict.Dimension)
	case appErrors.HasCode(err, appErrors.ErrValidation.Code):
		s.metrics.RecordSlotMutation(op, resultInvalid, "")
	default:
		s.metrics.RecordSlotMutation(op, resultError, "")
	}
}

func normalizeRoom(roomID *string) *string {
	if roomID == nil || *roomID == "" {
		return nil
	}
	value := *roomID
	return &value
}

func pick(patch *string, current string) string {
	if patch == nil {
		return current
	}
	return *patch
}

// changed returns the patched value only when it differs from the current one.
func changed(patch *string, current string) string {
	if patch == nil || *patch == current {
		return ""
	}
	return *patch
}

func changedRoom(patch *string, current *string) *string {
	room := normalizeRoom(patch)
	if room == nil {
		return nil
	}
	if current != nil && *current == *room {
		return nil
	}
	return room
}
