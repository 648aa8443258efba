package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const periodColumns = "id, timetable_id, name, start_time, end_time, is_break, created_at"

// TimetablePeriodRepository persists the daily period structure of timetables.
type TimetablePeriodRepository struct {
	db *sqlx.DB
}

// NewTimetablePeriodRepository creates a new period repository.
func NewTimetablePeriodRepository(db *sqlx.DB) *TimetablePeriodRepository {
	return &TimetablePeriodRepository{db: db}
}

// FindByID loads a period by id.
func (r *TimetablePeriodRepository) FindByID(ctx context.Context, id string) (*models.Period, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_periods WHERE id = $1", periodColumns)
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListByTimetable returns the periods of a timetable ordered by start time.
func (r *TimetablePeriodRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.Period, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_periods WHERE timetable_id = $1 ORDER BY start_time ASC", periodColumns)
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable periods: %w", err)
	}
	return periods, nil
}

// Create inserts a new period.
func (r *TimetablePeriodRepository) Create(ctx context.Context, period *models.Period) error {
	return insertPeriod(ctx, r.db, period)
}

func insertPeriod(ctx context.Context, exec sqlx.ExtContext, period *models.Period) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO timetable_periods (id, timetable_id, name, start_time, end_time, is_break, created_at) VALUES (:id, :timetable_id, :name, :start_time, :end_time, :is_break, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, period); err != nil {
		if mapped := translateError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create timetable period: %w", err)
	}
	return nil
}

// Delete removes a period. Periods still referenced by slots are rejected by the foreign key.
func (r *TimetablePeriodRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_periods WHERE id = $1`, id)
	if err != nil {
		if mapped := translateError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("delete timetable period: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable period rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
