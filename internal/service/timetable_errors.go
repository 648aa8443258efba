package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func validationError(message string, fields []dto.FieldError) error {
	return appErrors.WithDetails(appErrors.ErrValidation, message, fields)
}

func singleFieldError(field, rule, message string) error {
	return validationError(message, []dto.FieldError{{Field: field, Rule: rule, Message: message}})
}

func conflictError(conflict models.SlotConflict) error {
	return &appErrors.Error{
		Code:    appErrors.ErrSchedulingConflict.Code,
		Status:  appErrors.ErrSchedulingConflict.Status,
		Message: conflict.Message(),
		Details: conflict,
		Err:     &models.SchedulingConflictError{Conflict: conflict},
	}
}

func notFoundError(message string) error {
	return appErrors.Clone(appErrors.ErrNotFound, message)
}

func preconditionError(message string) error {
	return appErrors.Clone(appErrors.ErrPreconditionFailed, message)
}

// lookupError maps sql.ErrNoRows to NotFound and anything else to a storage failure.
func lookupError(err error, notFoundMessage, storageMessage string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundError(notFoundMessage)
	}
	return appErrors.Storage(err, storageMessage)
}

// ConflictFromError extracts the structured conflict carried by a scheduling error.
func ConflictFromError(err error) (models.SlotConflict, bool) {
	var conflictErr *models.SchedulingConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr.Conflict, true
	}
	return models.SlotConflict{}, false
}

type scopeLocker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// scopeGuard enters the critical sections of conflict scopes with a bounded wait.
type scopeGuard struct {
	locker  scopeLocker
	timeout time.Duration
	metrics *MetricsService
}

func (g scopeGuard) enter(ctx context.Context, keys ...string) (func(), error) {
	if g.locker == nil {
		return func() {}, nil
	}
	lockCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	unlock, err := g.locker.Lock(lockCtx, keys...)
	g.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request cancelled while waiting for timetable lock")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "timetable is busy, retry the request")
	}
	return unlock, nil
}

func scopeKeys(academicYearID string, weekdays ...models.Weekday) []string {
	keys := make([]string, 0, len(weekdays))
	for _, day := range weekdays {
		keys = append(keys, models.ConflictScope{AcademicYearID: academicYearID, Weekday: day}.LockKey())
	}
	return keys
}

// yearScopeKeys covers every weekday of the year; period changes affect all of them.
func yearScopeKeys(academicYearID string) []string {
	return scopeKeys(academicYearID, models.AllWeekdays()...)
}
