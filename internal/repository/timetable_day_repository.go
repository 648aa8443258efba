package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const dayColumns = "id, timetable_id, weekday, enabled, created_at"

// TimetableDayRepository persists the weekdays of a timetable.
type TimetableDayRepository struct {
	db *sqlx.DB
}

// NewTimetableDayRepository creates a new day repository.
func NewTimetableDayRepository(db *sqlx.DB) *TimetableDayRepository {
	return &TimetableDayRepository{db: db}
}

// FindByID loads a day by id.
func (r *TimetableDayRepository) FindByID(ctx context.Context, id string) (*models.TimetableDay, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_days WHERE id = $1", dayColumns)
	var day models.TimetableDay
	if err := r.db.GetContext(ctx, &day, query, id); err != nil {
		return nil, err
	}
	return &day, nil
}

// FindByWeekday loads the day of a timetable for a weekday.
func (r *TimetableDayRepository) FindByWeekday(ctx context.Context, timetableID string, weekday models.Weekday) (*models.TimetableDay, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_days WHERE timetable_id = $1 AND weekday = $2", dayColumns)
	var day models.TimetableDay
	if err := r.db.GetContext(ctx, &day, query, timetableID, int(weekday)); err != nil {
		return nil, err
	}
	return &day, nil
}

// ListByTimetable returns the days of a timetable ordered by weekday.
func (r *TimetableDayRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableDay, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_days WHERE timetable_id = $1 ORDER BY weekday ASC", dayColumns)
	var days []models.TimetableDay
	if err := r.db.SelectContext(ctx, &days, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable days: %w", err)
	}
	return days, nil
}

// Create inserts a new day.
func (r *TimetableDayRepository) Create(ctx context.Context, day *models.TimetableDay) error {
	return insertDay(ctx, r.db, day, time.Now().UTC())
}

// SetEnabled toggles a day.
func (r *TimetableDayRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE timetable_days SET enabled = $2 WHERE id = $1`, id, enabled); err != nil {
		return fmt.Errorf("update timetable day: %w", err)
	}
	return nil
}

func insertDay(ctx context.Context, exec sqlx.ExtContext, day *models.TimetableDay, now time.Time) error {
	if day.ID == "" {
		day.ID = uuid.NewString()
	}
	if day.CreatedAt.IsZero() {
		day.CreatedAt = now
	}
	const query = `INSERT INTO timetable_days (id, timetable_id, weekday, enabled, created_at) VALUES (:id, :timetable_id, :weekday, :enabled, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, day); err != nil {
		if mapped := translateError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert timetable day: %w", err)
	}
	return nil
}
