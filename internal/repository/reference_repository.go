package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ReferenceKind names an entity owned by another module.
type ReferenceKind string

const (
	ReferenceTeacher      ReferenceKind = "teacher"
	ReferenceSubject      ReferenceKind = "subject"
	ReferenceRoom         ReferenceKind = "room"
	ReferenceClassSection ReferenceKind = "class_section"
	ReferenceAcademicYear ReferenceKind = "academic_year"
)

type referenceTable struct {
	table       string
	label       string
	activeCheck string
}

var referenceTables = map[ReferenceKind]referenceTable{
	ReferenceTeacher:      {table: "teachers", label: "full_name", activeCheck: "active = TRUE"},
	ReferenceSubject:      {table: "subjects", label: "name"},
	ReferenceRoom:         {table: "rooms", label: "name"},
	ReferenceClassSection: {table: "classes", label: "name"},
	ReferenceAcademicYear: {table: "academic_years", label: "name"},
}

// ReferenceRepository answers existence and label lookups against externally owned tables.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository creates a new reference repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// TeacherExists reports whether an active teacher exists.
func (r *ReferenceRepository) TeacherExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, ReferenceTeacher, id)
}

// SubjectExists reports whether a subject exists.
func (r *ReferenceRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, ReferenceSubject, id)
}

// RoomExists reports whether a room exists.
func (r *ReferenceRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, ReferenceRoom, id)
}

// ClassSectionExists reports whether a class-section exists.
func (r *ReferenceRepository) ClassSectionExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, ReferenceClassSection, id)
}

// AcademicYearExists reports whether an academic year exists.
func (r *ReferenceRepository) AcademicYearExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, ReferenceAcademicYear, id)
}

// CurrentAcademicYearID returns the id of the academic year flagged as current.
func (r *ReferenceRepository) CurrentAcademicYearID(ctx context.Context) (string, error) {
	var id string
	if err := r.db.GetContext(ctx, &id, `SELECT id FROM academic_years WHERE is_current = TRUE LIMIT 1`); err != nil {
		return "", err
	}
	return id, nil
}

// Labels resolves display names for a batch of ids. Unknown ids are absent from the result.
func (r *ReferenceRepository) Labels(ctx context.Context, kind ReferenceKind, ids []string) (map[string]string, error) {
	ref, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", kind)
	}
	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf("SELECT id, %s AS label FROM %s WHERE id = ANY($1)", ref.label, ref.table)
	var rows []struct {
		ID    string `db:"id"`
		Label string `db:"label"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load %s labels: %w", kind, err)
	}
	for _, row := range rows {
		result[row.ID] = row.Label
	}
	return result, nil
}

func (r *ReferenceRepository) exists(ctx context.Context, kind ReferenceKind, id string) (bool, error) {
	ref, ok := referenceTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown reference kind %q", kind)
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1", ref.table)
	if ref.activeCheck != "" {
		query += " AND " + ref.activeCheck
	}
	query += " LIMIT 1"

	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check %s exists: %w", kind, err)
	}
	return true, nil
}
