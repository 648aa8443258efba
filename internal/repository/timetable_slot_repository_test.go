package repository

import (
	"context"
	"database/sql"
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

func newSlotRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var slotRowColumns = []string{"id", "timetable_id", "class_section_id", "academic_year_id", "day_id", "weekday", "period_id", "start_time", "end_time", "subject_id", "teacher_id", "room_id", "created_at", "updated_at"}

func TestTimetableSlotRepositoryFindByDayAndYear(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(slotRowColumns).
		AddRow("slot-1", "tt-1", "class-1", "year-1", "day-1", 1, "p-1", "07:00:00", "07:45:00", "math", "teacher-1", "room-a", now, now).
		AddRow("slot-2", "tt-2", "class-2", "year-1", "day-2", 1, "p-2", []byte("07:45:00.000000"), "08:30:00", "physics", "teacher-2", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.academic_year_id = $1 AND s.weekday = $2 AND t.status <> 'ARCHIVED'")).
		WithArgs("year-1", 1).
		WillReturnRows(rows)

	slots, err := repo.FindByDayAndYear(context.Background(), "year-1", models.Monday)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, models.Monday, slots[0].Weekday)
	assert.Equal(t, models.MustClockTime("07:00"), slots[0].StartTime)
	assert.Equal(t, models.MustClockTime("07:45"), slots[0].EndTime)
	require.NotNil(t, slots[0].RoomID)
	assert.Equal(t, "room-a", *slots[0].RoomID)

	assert.Equal(t, models.MustClockTime("07:45"), slots[1].StartTime)
	assert.Nil(t, slots[1].RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryFindByTeacherIsActiveOnly(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.teacher_id = $1 AND s.academic_year_id = $2 AND t.status = 'ACTIVE'")).
		WithArgs("teacher-1", "year-1").
		WillReturnRows(sqlmock.NewRows(slotRowColumns))

	slots, err := repo.FindByTeacher(context.Background(), "teacher-1", "year-1")
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositorySaveUpserts(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	room := "room-a"
	slot := &models.Slot{
		TimetableID:    "tt-1",
		ClassSectionID: "class-1",
		AcademicYearID: "year-1",
		DayID:          "day-1",
		Weekday:        models.Monday,
		PeriodID:       "p-1",
		StartTime:      models.MustClockTime("07:00"),
		EndTime:        models.MustClockTime("07:45"),
		SubjectID:      "math",
		TeacherID:      "teacher-1",
		RoomID:         &room,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "tt-1", "class-1", "year-1", "day-1", 1, "p-1", "07:00:00", "07:45:00", "math", "teacher-1", "room-a", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), slot))
	assert.NotEmpty(t, slot.ID)
	assert.False(t, slot.CreatedAt.IsZero())
	assert.Equal(t, slot.CreatedAt, slot.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositorySaveMapsCellClash(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "timetable_slots_cell_key"})

	err := repo.Save(context.Background(), &models.Slot{TimetableID: "tt-1"})
	assert.ErrorIs(t, err, ErrDuplicateSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositorySaveWithPeriod(t *testing.T) {
	newPair := func() (*models.Period, *models.Slot) {
		period := &models.Period{
			TimetableID: "tt-1",
			Name:        "07:00-07:45",
			StartTime:   models.MustClockTime("07:00"),
			EndTime:     models.MustClockTime("07:45"),
		}
		slot := &models.Slot{
			TimetableID: "tt-1",
			DayID:       "day-1",
			Weekday:     models.Monday,
			StartTime:   period.StartTime,
			EndTime:     period.EndTime,
			SubjectID:   "math",
			TeacherID:   "teacher-1",
		}
		return period, slot
	}

	t.Run("commits period and slot together", func(t *testing.T) {
		db, mock, cleanup := newSlotRepoMock(t)
		defer cleanup()
		repo := NewTimetableSlotRepository(db)
		period, slot := newPair()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_periods")).
			WithArgs(sqlmock.AnyArg(), "tt-1", "07:00-07:45", "07:00:00", "07:45:00", false, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveWithPeriod(context.Background(), period, slot))
		assert.NotEmpty(t, period.ID)
		assert.Equal(t, period.ID, slot.PeriodID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("slot failure rolls back the period", func(t *testing.T) {
		db, mock, cleanup := newSlotRepoMock(t)
		defer cleanup()
		repo := NewTimetableSlotRepository(db)
		period, slot := newPair()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_periods")).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "timetable_slots_cell_key"})
		mock.ExpectRollback()

		err := repo.SaveWithPeriod(context.Background(), period, slot)
		assert.ErrorIs(t, err, ErrDuplicateSlot)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("period overlap stops before the slot", func(t *testing.T) {
		db, mock, cleanup := newSlotRepoMock(t)
		defer cleanup()
		repo := NewTimetableSlotRepository(db)
		period, slot := newPair()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_periods")).
			WillReturnError(&pq.Error{Code: "23P01", Constraint: "timetable_periods_no_overlap"})
		mock.ExpectRollback()

		err := repo.SaveWithPeriod(context.Background(), period, slot)
		assert.ErrorIs(t, err, ErrPeriodOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTimetableSlotRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	deleteSQL := regexp.QuoteMeta("DELETE FROM timetable_slots WHERE id = $1")
	mock.ExpectExec(deleteSQL).WithArgs("slot-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteSQL).WithArgs("slot-2").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "slot-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "slot-2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newSlotRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_slots WHERE period_id = $1")).
		WithArgs("p-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_slots WHERE day_id = $1")).
		WithArgs("day-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_slots WHERE timetable_id = $1")).
		WithArgs("tt-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	byPeriod, err := repo.CountByPeriod(context.Background(), "p-1")
	require.NoError(t, err)
	byDay, err := repo.CountByDay(context.Background(), "day-1")
	require.NoError(t, err)
	byTimetable, err := repo.CountByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)

	assert.Equal(t, 2, byPeriod)
	assert.Equal(t, 0, byDay)
	assert.Equal(t, 7, byTimetable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
