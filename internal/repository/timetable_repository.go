package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

const timetableColumns = "id, class_section_id, academic_year_id, name, status, published_at, created_at, updated_at"

// TimetableRepository persists timetables and their lifecycle transitions.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// Get loads a timetable by id.
func (r *TimetableRepository) Get(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindLive returns the non-archived timetable of a class-section in an academic year.
func (r *TimetableRepository) FindLive(ctx context.Context, classSectionID, academicYearID string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE class_section_id = $1 AND academic_year_id = $2 AND status <> 'ARCHIVED' LIMIT 1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, classSectionID, academicYearID); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// List returns timetables with optional filtering and pagination.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	base := "FROM timetables WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.ClassSectionID != "" {
		conditions = append(conditions, fmt.Sprintf("class_section_id = $%d", len(args)+1))
		args = append(args, filter.ClassSectionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", timetableColumns, base, size, offset)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}
	return timetables, total, nil
}

// Create stores a new timetable together with its initial days.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable, days []models.TimetableDay) (err error) {
	now := time.Now().UTC()
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	timetable.CreatedAt = now
	timetable.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertTimetable = `INSERT INTO timetables (id, class_section_id, academic_year_id, name, status, published_at, created_at, updated_at) VALUES (:id, :class_section_id, :academic_year_id, :name, :status, :published_at, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertTimetable, timetable); err != nil {
		if mapped := translateError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create timetable: %w", err)
	}

	for i := range days {
		days[i].TimetableID = timetable.ID
		if err = insertDay(ctx, tx, &days[i], now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create timetable: %w", err)
	}
	return nil
}

// Activate moves a draft timetable that owns at least one slot to ACTIVE in a single statement.
// It reports false when the guard did not match.
func (r *TimetableRepository) Activate(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE timetables SET status = 'ACTIVE', published_at = $2, updated_at = $2
WHERE id = $1 AND status = 'DRAFT' AND EXISTS (SELECT 1 FROM timetable_slots s WHERE s.timetable_id = $1)`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("activate timetable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate timetable rows affected: %w", err)
	}
	return affected == 1, nil
}

// Archive retires an active timetable. Archived timetables leave the conflict scope.
func (r *TimetableRepository) Archive(ctx context.Context, id string) error {
	const query = `UPDATE timetables SET status = 'ARCHIVED', updated_at = $2 WHERE id = $1 AND status = 'ACTIVE'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive timetable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Purge removes a timetable and everything it owns in one transaction.
func (r *TimetableRepository) Purge(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		statements := []struct {
			query string
			label string
		}{
			{`DELETE FROM timetable_slots WHERE timetable_id = $1`, "slots"},
			{`DELETE FROM timetable_periods WHERE timetable_id = $1`, "periods"},
			{`DELETE FROM timetable_days WHERE timetable_id = $1`, "days"},
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt.query, id); err != nil {
				return fmt.Errorf("purge timetable %s: %w", stmt.label, err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("purge timetable: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("purge timetable rows affected: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
