package repository

import (
	"context"
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

func newDayRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableDayRepositoryFindByWeekday(t *testing.T) {
	db, mock, cleanup := newDayRepoMock(t)
	defer cleanup()
	repo := NewTimetableDayRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_days WHERE timetable_id = $1 AND weekday = $2")).
		WithArgs("tt-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timetable_id", "weekday", "enabled", "created_at"}).
			AddRow("day-3", "tt-1", 3, false, time.Now()))

	day, err := repo.FindByWeekday(context.Background(), "tt-1", models.Wednesday)
	require.NoError(t, err)
	assert.Equal(t, models.Wednesday, day.Weekday)
	assert.False(t, day.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableDayRepositoryCreateAndToggle(t *testing.T) {
	db, mock, cleanup := newDayRepoMock(t)
	defer cleanup()
	repo := NewTimetableDayRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_days")).
		WithArgs(sqlmock.AnyArg(), "tt-1", 6, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_days SET enabled = $2 WHERE id = $1")).
		WithArgs(sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	day := &models.TimetableDay{TimetableID: "tt-1", Weekday: models.Saturday, Enabled: true}
	require.NoError(t, repo.Create(context.Background(), day))
	require.NotEmpty(t, day.ID)
	require.NoError(t, repo.SetEnabled(context.Background(), day.ID, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableDayRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newDayRepoMock(t)
	defer cleanup()
	repo := NewTimetableDayRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_days")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "timetable_days_weekday_key"})

	err := repo.Create(context.Background(), &models.TimetableDay{TimetableID: "tt-1", Weekday: models.Monday})
	assert.ErrorIs(t, err, ErrDuplicateDay)
}
