package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

const slotColumns = "s.id, s.timetable_id, s.class_section_id, s.academic_year_id, s.day_id, s.weekday, s.period_id, s.start_time, s.end_time, s.subject_id, s.teacher_id, s.room_id, s.created_at, s.updated_at"

// TimetableSlotRepository persists slot assignments and serves the conflict scope queries.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository creates a new slot repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

// FindByID loads a slot by id.
func (r *TimetableSlotRepository) FindByID(ctx context.Context, id string) (*models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_slots s WHERE s.id = $1", slotColumns)
	var slot models.Slot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindByDayAndYear returns every slot of a live timetable sharing the academic year and weekday.
func (r *TimetableSlotRepository) FindByDayAndYear(ctx context.Context, academicYearID string, weekday models.Weekday) ([]models.Slot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots s
JOIN timetables t ON t.id = s.timetable_id
WHERE s.academic_year_id = $1 AND s.weekday = $2 AND t.status <> 'ARCHIVED'
ORDER BY s.start_time ASC, s.id ASC`, slotColumns)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, academicYearID, int(weekday)); err != nil {
		return nil, fmt.Errorf("list slots by day and year: %w", err)
	}
	return slots, nil
}

// FindByTimetable returns the slots of a timetable ordered by weekday and start time.
func (r *TimetableSlotRepository) FindByTimetable(ctx context.Context, timetableID string) ([]models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_slots s WHERE s.timetable_id = $1 ORDER BY s.weekday ASC, s.start_time ASC", slotColumns)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, timetableID); err != nil {
		return nil, fmt.Errorf("list slots by timetable: %w", err)
	}
	return slots, nil
}

// FindByTeacher returns the slots a teacher holds in active timetables of an academic year.
func (r *TimetableSlotRepository) FindByTeacher(ctx context.Context, teacherID, academicYearID string) ([]models.Slot, error) {
	return r.findActiveBy(ctx, "s.teacher_id", teacherID, academicYearID)
}

// FindByRoom returns the slots booked in a room across active timetables of an academic year.
func (r *TimetableSlotRepository) FindByRoom(ctx context.Context, roomID, academicYearID string) ([]models.Slot, error) {
	return r.findActiveBy(ctx, "s.room_id", roomID, academicYearID)
}

func (r *TimetableSlotRepository) findActiveBy(ctx context.Context, column, value, academicYearID string) ([]models.Slot, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_slots s
JOIN timetables t ON t.id = s.timetable_id
WHERE %s = $1 AND s.academic_year_id = $2 AND t.status = 'ACTIVE'
ORDER BY s.weekday ASC, s.start_time ASC`, slotColumns, column)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, value, academicYearID); err != nil {
		return nil, fmt.Errorf("list active slots by %s: %w", column, err)
	}
	return slots, nil
}

// CountByPeriod counts slots referencing a period.
func (r *TimetableSlotRepository) CountByPeriod(ctx context.Context, periodID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timetable_slots WHERE period_id = $1`, periodID); err != nil {
		return 0, fmt.Errorf("count slots by period: %w", err)
	}
	return total, nil
}

// CountByDay counts slots placed on a day.
func (r *TimetableSlotRepository) CountByDay(ctx context.Context, dayID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timetable_slots WHERE day_id = $1`, dayID); err != nil {
		return 0, fmt.Errorf("count slots by day: %w", err)
	}
	return total, nil
}

// CountByTimetable counts the slots of a timetable.
func (r *TimetableSlotRepository) CountByTimetable(ctx context.Context, timetableID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timetable_slots WHERE timetable_id = $1`, timetableID); err != nil {
		return 0, fmt.Errorf("count slots by timetable: %w", err)
	}
	return total, nil
}

// Save inserts or updates a slot in a single statement.
func (r *TimetableSlotRepository) Save(ctx context.Context, slot *models.Slot) error {
	return upsertSlot(ctx, r.db, slot)
}

// SaveWithPeriod creates a period and the slot placed in it in one transaction.
func (r *TimetableSlotRepository) SaveWithPeriod(ctx context.Context, period *models.Period, slot *models.Slot) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertPeriod(ctx, tx, period); err != nil {
			return err
		}
		slot.PeriodID = period.ID
		return upsertSlot(ctx, tx, slot)
	})
}

func upsertSlot(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error {
	now := time.Now().UTC()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO timetable_slots (id, timetable_id, class_section_id, academic_year_id, day_id, weekday, period_id, start_time, end_time, subject_id, teacher_id, room_id, created_at, updated_at)
VALUES (:id, :timetable_id, :class_section_id, :academic_year_id, :day_id, :weekday, :period_id, :start_time, :end_time, :subject_id, :teacher_id, :room_id, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET day_id = EXCLUDED.day_id, weekday = EXCLUDED.weekday, period_id = EXCLUDED.period_id,
start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, subject_id = EXCLUDED.subject_id,
teacher_id = EXCLUDED.teacher_id, room_id = EXCLUDED.room_id, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, slot); err != nil {
		if mapped := translateError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("save timetable slot: %w", err)
	}
	return nil
}

// Delete removes a slot, returning sql.ErrNoRows when it does not exist.
func (r *TimetableSlotRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
