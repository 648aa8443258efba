package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var timetableRowColumns = []string{"id", "class_section_id", "academic_year_id", "name", "status", "published_at", "created_at", "updated_at"}

func TestTimetableRepositoryCreateInsertsDaysInTransaction(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "class-1", "year-1", "10A", "DRAFT", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_days")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_days")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 2, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	timetable := &models.Timetable{ClassSectionID: "class-1", AcademicYearID: "year-1", Name: "10A"}
	days := []models.TimetableDay{{Weekday: models.Monday, Enabled: true}, {Weekday: models.Tuesday, Enabled: true}}
	require.NoError(t, repo.Create(context.Background(), timetable, days))

	assert.NotEmpty(t, timetable.ID)
	assert.Equal(t, models.TimetableStatusDraft, timetable.Status)
	for _, day := range days {
		assert.Equal(t, timetable.ID, day.TimetableID)
		assert.NotEmpty(t, day.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateMapsLiveDuplicate(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "timetables_live_class_year_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Timetable{ClassSectionID: "class-1", AcademicYearID: "year-1"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateLiveTimetable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindLive(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("tt-1", "class-1", "year-1", "10A", "ACTIVE", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE class_section_id = $1 AND academic_year_id = $2 AND status <> 'ARCHIVED'")).
		WithArgs("class-1", "year-1").
		WillReturnRows(rows)

	timetable, err := repo.FindLive(context.Background(), "class-1", "year-1")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", timetable.ID)
	assert.Equal(t, models.TimetableStatusActive, timetable.Status)
	require.NotNil(t, timetable.PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTimetableRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE 1=1 AND academic_year_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 5 OFFSET 5")).
		WithArgs("year-1", models.TimetableStatusDraft).
		WillReturnRows(sqlmock.NewRows(timetableRowColumns).
			AddRow("tt-2", "class-2", "year-1", "10B", "DRAFT", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetables WHERE 1=1 AND academic_year_id = $1 AND status = $2")).
		WithArgs("year-1", models.TimetableStatusDraft).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	items, total, err := repo.List(context.Background(), models.TimetableFilter{
		AcademicYearID: "year-1",
		Status:         models.TimetableStatusDraft,
		Page:           2,
		PageSize:       5,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].PublishedAt)
	assert.Equal(t, 6, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryActivate(t *testing.T) {
	activateSQL := regexp.QuoteMeta("UPDATE timetables SET status = 'ACTIVE'")

	t.Run("guard matched", func(t *testing.T) {
		db, mock, cleanup := newTimetableRepoMock(t)
		defer cleanup()
		repo := NewTimetableRepository(db)

		at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
		mock.ExpectExec(activateSQL).WithArgs("tt-1", at).WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Activate(context.Background(), "tt-1", at)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard not matched", func(t *testing.T) {
		db, mock, cleanup := newTimetableRepoMock(t)
		defer cleanup()
		repo := NewTimetableRepository(db)

		mock.ExpectExec(activateSQL).WithArgs("tt-1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Activate(context.Background(), "tt-1", time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTimetableRepositoryArchiveMissing(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET status = 'ARCHIVED'")).
		WithArgs("tt-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Archive(context.Background(), "tt-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryPurge(t *testing.T) {
	t.Run("removes owned rows and commits", func(t *testing.T) {
		db, mock, cleanup := newTimetableRepoMock(t)
		defer cleanup()
		repo := NewTimetableRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE timetable_id = $1")).WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_periods WHERE timetable_id = $1")).WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_days WHERE timetable_id = $1")).WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE id = $1")).WithArgs("tt-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Purge(context.Background(), "tt-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock, cleanup := newTimetableRepoMock(t)
		defer cleanup()
		repo := NewTimetableRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE timetable_id = $1")).WithArgs("tt-1").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := repo.Purge(context.Background(), "tt-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "purge timetable slots")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing timetable rolls back", func(t *testing.T) {
		db, mock, cleanup := newTimetableRepoMock(t)
		defer cleanup()
		repo := NewTimetableRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_periods")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_days")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE id = $1")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Purge(context.Background(), "tt-1"), sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
