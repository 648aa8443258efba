package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const defaultTimetableName = "Weekly timetable"

type timetableStore interface {
	Get(ctx context.Context, id string) (*models.Timetable, error)
	FindLive(ctx context.Context, classSectionID, academicYearID string) (*models.Timetable, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	Create(ctx context.Context, timetable *models.Timetable, days []models.TimetableDay) error
	Activate(ctx context.Context, id string, at time.Time) (bool, error)
	Archive(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

type dayStore interface {
	FindByID(ctx context.Context, id string) (*models.TimetableDay, error)
	FindByWeekday(ctx context.Context, timetableID string, weekday models.Weekday) (*models.TimetableDay, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableDay, error)
	Create(ctx context.Context, day *models.TimetableDay) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type timetablePeriodStore interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.Period, error)
	Create(ctx context.Context, period *models.Period) error
	Delete(ctx context.Context, id string) error
}

type timetableSlotReader interface {
	FindByTimetable(ctx context.Context, timetableID string) ([]models.Slot, error)
	CountByPeriod(ctx context.Context, periodID string) (int, error)
	CountByDay(ctx context.Context, dayID string) (int, error)
	CountByTimetable(ctx context.Context, timetableID string) (int, error)
}

type timetableReferenceChecker interface {
	ClassSectionExists(ctx context.Context, id string) (bool, error)
	AcademicYearExists(ctx context.Context, id string) (bool, error)
	CurrentAcademicYearID(ctx context.Context) (string, error)
}

type publishNotifier interface {
	NotifyPublished(event models.TimetablePublishedEvent)
}

// TimetableServiceParams groups constructor dependencies.
type TimetableServiceParams struct {
	Timetables  timetableStore
	Days        dayStore
	Periods     timetablePeriodStore
	Slots       timetableSlotReader
	References  timetableReferenceChecker
	Notifier    publishNotifier
	Locker      scopeLocker
	LockTimeout time.Duration
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// TimetableService manages the timetable aggregate: days, periods and the publish lifecycle.
type TimetableService struct {
	timetables timetableStore
	days       dayStore
	periods    timetablePeriodStore
	slots      timetableSlotReader
	refs       timetableReferenceChecker
	notifier   publishNotifier
	guard      scopeGuard
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(params TimetableServiceParams) *TimetableService {
	validate := params.Validator
	if validate == nil {
		validate = dto.NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: params.Timetables,
		days:       params.Days,
		periods:    params.Periods,
		slots:      params.Slots,
		refs:       params.References,
		notifier:   params.Notifier,
		guard:      scopeGuard{locker: params.Locker, timeout: params.LockTimeout, metrics: params.Metrics},
		cache:      params.Cache,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Create opens an empty draft timetable for a class-section.
func (s *TimetableService) Create(ctx context.Context, req dto.CreateTimetableRequest) (*dto.TimetableDetail, error) {
	if fields := dto.Validate(s.validator, req); len(fields) > 0 {
		return nil, validationError("invalid timetable payload", fields)
	}

	academicYearID, err := s.resolveAcademicYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}
	ok, err := s.refs.ClassSectionExists(ctx, req.ClassSectionID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to verify class section")
	}
	if !ok {
		return nil, notFoundError("class section not found")
	}

	existing, err := s.timetables.FindLive(ctx, req.ClassSectionID, academicYearID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to check existing timetable")
	}
	if existing != nil {
		return nil, appErrors.WithDetails(appErrors.ErrConflict, "class section already has a timetable for this academic year",
			map[string]string{"timetable_id": existing.ID})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultTimetableName
	}
	weekdays := req.Weekdays
	if len(weekdays) == 0 {
		weekdays = models.SchoolWeek()
	}
	days := make([]models.TimetableDay, 0, len(weekdays))
	for _, weekday := range weekdays {
		days = append(days, models.TimetableDay{Weekday: weekday, Enabled: true})
	}

	timetable := &models.Timetable{
		ClassSectionID: req.ClassSectionID,
		AcademicYearID: academicYearID,
		Name:           name,
		Status:         models.TimetableStatusDraft,
	}
	if err := s.timetables.Create(ctx, timetable, days); err != nil {
		if errors.Is(err, repository.ErrDuplicateLiveTimetable) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class section already has a timetable for this academic year")
		}
		return nil, appErrors.Storage(err, "failed to create timetable")
	}

	s.cache.InvalidateYear(ctx, academicYearID)
	s.logger.Info("timetable created",
		zap.String("timetable_id", timetable.ID),
		zap.String("class_section_id", timetable.ClassSectionID),
		zap.String("academic_year_id", academicYearID),
	)
	return BuildDetail(*timetable, days, nil, nil), nil
}

// Get returns the nested Timetable → Days → Periods → Slot view.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableDetail, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	days, err := s.days.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load days")
	}
	periods, err := s.periods.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load periods")
	}
	slots, err := s.slots.FindByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load slots")
	}
	return BuildDetail(*timetable, days, periods, slots), nil
}

// List returns timetables with pagination metadata.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	if filter.Status != "" {
		filter.Status = models.TimetableStatus(strings.ToUpper(string(filter.Status)))
	}
	timetables, total, err := s.timetables.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list timetables")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return timetables, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SetDay defines a weekday on a timetable or toggles an existing one.
// A day that still carries slots cannot be disabled.
func (s *TimetableService) SetDay(ctx context.Context, timetableID string, req dto.SetDayRequest) (*models.TimetableDay, error) {
	if fields := dto.Validate(s.validator, req); len(fields) > 0 {
		return nil, validationError("invalid day payload", fields)
	}
	timetable, err := s.loadMutable(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	enabled := *req.Enabled

	unlock, err := s.guard.enter(ctx, scopeKeys(timetable.AcademicYearID, req.Weekday)...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	day, err := s.days.FindByWeekday(ctx, timetableID, req.Weekday)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		day = &models.TimetableDay{TimetableID: timetableID, Weekday: req.Weekday, Enabled: enabled}
		if err := s.days.Create(ctx, day); err != nil {
			if errors.Is(err, repository.ErrDuplicateDay) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "weekday already defined on timetable")
			}
			return nil, appErrors.Storage(err, "failed to create day")
		}
	case err != nil:
		return nil, appErrors.Storage(err, "failed to load day")
	case day.Enabled != enabled:
		if !enabled {
			count, err := s.slots.CountByDay(ctx, day.ID)
			if err != nil {
				return nil, appErrors.Storage(err, "failed to count slots")
			}
			if count > 0 {
				return nil, preconditionError("remove the slots of this day before disabling it")
			}
		}
		if err := s.days.SetEnabled(ctx, day.ID, enabled); err != nil {
			return nil, appErrors.Storage(err, "failed to update day")
		}
		day.Enabled = enabled
	}

	s.cache.InvalidateYear(ctx, timetable.AcademicYearID)
	return day, nil
}

// AddPeriod appends a period. Periods of one timetable never overlap.
func (s *TimetableService) AddPeriod(ctx context.Context, timetableID string, req dto.CreatePeriodRequest) (*models.Period, error) {
	if fields := dto.Validate(s.validator, req); len(fields) > 0 {
		return nil, validationError("invalid period payload", fields)
	}
	interval, err := models.ParseInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, singleFieldError("end_time", "interval", err.Error())
	}
	timetable, err := s.loadMutable(ctx, timetableID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.guard.enter(ctx, yearScopeKeys(timetable.AcademicYearID)...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	periods, err := s.periods.ListByTimetable(ctx, timetableID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load periods")
	}
	if conflict := DetectPeriodOverlap(interval, periods, ""); conflict != nil {
		s.metrics.RecordConflict(conflict.Dimension)
		return nil, conflictError(*conflict)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = interval.String()
	}
	period := &models.Period{
		TimetableID: timetableID,
		Name:        name,
		StartTime:   interval.Start,
		EndTime:     interval.End,
		IsBreak:     req.IsBreak,
	}
	if err := s.periods.Create(ctx, period); err != nil {
		if errors.Is(err, repository.ErrPeriodOverlap) {
			return nil, conflictError(models.SlotConflict{Dimension: models.ConflictPeriod, TimetableID: timetableID, Interval: interval, Overlap: interval})
		}
		return nil, appErrors.Storage(err, "failed to create period")
	}

	s.cache.InvalidateYear(ctx, timetable.AcademicYearID)
	s.logger.Info("period added", zap.String("timetable_id", timetableID), zap.String("period_id", period.ID), zap.Stringer("interval", interval))
	return period, nil
}

// DeletePeriod removes a period no slot references.
func (s *TimetableService) DeletePeriod(ctx context.Context, timetableID, periodID string) error {
	timetable, err := s.loadMutable(ctx, timetableID)
	if err != nil {
		return err
	}
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return lookupError(err, "period not found", "failed to load period")
	}
	if period.TimetableID != timetableID {
		return notFoundError("period not found")
	}

	unlock, err := s.guard.enter(ctx, yearScopeKeys(timetable.AcademicYearID)...)
	if err != nil {
		return err
	}
	defer unlock()

	count, err := s.slots.CountByPeriod(ctx, periodID)
	if err != nil {
		return appErrors.Storage(err, "failed to count slots")
	}
	if count > 0 {
		return preconditionError("period is still used by slots")
	}
	if err := s.periods.Delete(ctx, periodID); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return preconditionError("period is still used by slots")
		}
		return lookupError(err, "period not found", "failed to delete period")
	}

	s.cache.InvalidateYear(ctx, timetable.AcademicYearID)
	return nil
}

// Publish activates a draft timetable that has at least one slot. The guard runs
// as one conditional update so a concurrent removal of the last slot cannot slip through.
func (s *TimetableService) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status != models.TimetableStatusDraft {
		s.metrics.RecordPublish(resultInvalid)
		return nil, s.publishFailure(ctx, timetable, "only draft timetables can be published")
	}

	publishedAt := s.now().UTC()
	activated, err := s.timetables.Activate(ctx, id, publishedAt)
	if err != nil {
		s.metrics.RecordPublish(resultError)
		return nil, appErrors.Storage(err, "failed to publish timetable")
	}
	if !activated {
		s.metrics.RecordPublish(resultInvalid)
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status != models.TimetableStatusDraft {
			return nil, s.publishFailure(ctx, current, "only draft timetables can be published")
		}
		return nil, s.publishFailure(ctx, current, "timetable has no slots")
	}

	timetable.Status = models.TimetableStatusActive
	timetable.PublishedAt = &publishedAt
	timetable.UpdatedAt = publishedAt
	s.metrics.RecordPublish(resultOK)
	s.cache.InvalidateYear(ctx, timetable.AcademicYearID)

	slotCount, err := s.slots.CountByTimetable(ctx, id)
	if err != nil {
		s.logger.Warn("count slots for publish event failed", zap.String("timetable_id", id), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyPublished(models.TimetablePublishedEvent{
			TimetableID:    timetable.ID,
			ClassSectionID: timetable.ClassSectionID,
			AcademicYearID: timetable.AcademicYearID,
			SlotCount:      slotCount,
			PublishedAt:    publishedAt,
		})
	}
	s.logger.Info("timetable published", zap.String("timetable_id", id), zap.Int("slots", slotCount))
	return timetable, nil
}

// Delete purges a draft or archived timetable and archives an active one.
func (s *TimetableService) Delete(ctx context.Context, id string) (*dto.DeleteTimetableResult, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &dto.DeleteTimetableResult{TimetableID: id}
	if timetable.Status == models.TimetableStatusActive {
		if err := s.timetables.Archive(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "timetable status changed concurrently, retry the request")
			}
			return nil, appErrors.Storage(err, "failed to archive timetable")
		}
		result.Outcome = dto.DeleteOutcomeArchived
	} else {
		if err := s.timetables.Purge(ctx, id); err != nil {
			return nil, lookupError(err, "timetable not found", "failed to delete timetable")
		}
		result.Outcome = dto.DeleteOutcomePurged
	}

	s.cache.InvalidateYear(ctx, timetable.AcademicYearID)
	s.logger.Info("timetable deleted", zap.String("timetable_id", id), zap.String("outcome", string(result.Outcome)))
	return result, nil
}

func (s *TimetableService) publishFailure(ctx context.Context, timetable *models.Timetable, message string) error {
	count, err := s.slots.CountByTimetable(ctx, timetable.ID)
	if err != nil {
		s.logger.Warn("count slots for publish failure failed", zap.String("timetable_id", timetable.ID), zap.Error(err))
	}
	return appErrors.WithDetails(appErrors.ErrPublish, message, dto.PublishFailure{
		TimetableID: timetable.ID,
		Status:      timetable.Status,
		SlotCount:   count,
	})
}

func (s *TimetableService) resolveAcademicYear(ctx context.Context, academicYearID string) (string, error) {
	if academicYearID == "" {
		current, err := s.refs.CurrentAcademicYearID(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", preconditionError("no current academic year configured")
			}
			return "", appErrors.Storage(err, "failed to resolve current academic year")
		}
		return current, nil
	}
	ok, err := s.refs.AcademicYearExists(ctx, academicYearID)
	if err != nil {
		return "", appErrors.Storage(err, "failed to verify academic year")
	}
	if !ok {
		return "", notFoundError("academic year not found")
	}
	return academicYearID, nil
}

func (s *TimetableService) load(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.Get(ctx, id)
	if err != nil {
		return nil, lookupError(err, "timetable not found", "failed to load timetable")
	}
	return timetable, nil
}

func (s *TimetableService) loadMutable(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status == models.TimetableStatusArchived {
		return nil, preconditionError("archived timetables cannot be modified")
	}
	return timetable, nil
}
