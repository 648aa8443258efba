package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
)

// memoryDB backs the in-memory stores used by the scheduling tests.
type memoryDB struct {
	mu         sync.Mutex
	seq        int
	timetables map[string]models.Timetable
	days       map[string]models.TimetableDay
	periods    map[string]models.Period
	slots      map[string]models.Slot

	teachers, subjects, rooms, classes, years map[string]bool
	currentYear                               string

	saveErr error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		timetables:  map[string]models.Timetable{},
		days:        map[string]models.TimetableDay{},
		periods:     map[string]models.Period{},
		slots:       map[string]models.Slot{},
		teachers:    map[string]bool{"teacher-1": true, "teacher-2": true, "teacher-3": true},
		subjects:    map[string]bool{"math": true, "physics": true, "history": true},
		rooms:       map[string]bool{"room-a": true, "room-b": true},
		classes:     map[string]bool{"class-10a": true, "class-10b": true},
		years:       map[string]bool{"year-2024": true, "year-2025": true},
		currentYear: "year-2024",
	}
}

func (db *memoryDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

type memTimetables struct{ db *memoryDB }

func (m memTimetables) Get(_ context.Context, id string) (*models.Timetable, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	tt, ok := m.db.timetables[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tt, nil
}

func (m memTimetables) FindLive(_ context.Context, classSectionID, academicYearID string) (*models.Timetable, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, tt := range m.db.timetables {
		if tt.ClassSectionID == classSectionID && tt.AcademicYearID == academicYearID && tt.Status.Live() {
			found := tt
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memTimetables) List(_ context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Timetable
	for _, tt := range m.db.timetables {
		if filter.Status != "" && tt.Status != filter.Status {
			continue
		}
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m memTimetables) Create(_ context.Context, timetable *models.Timetable, days []models.TimetableDay) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, tt := range m.db.timetables {
		if tt.ClassSectionID == timetable.ClassSectionID && tt.AcademicYearID == timetable.AcademicYearID && tt.Status.Live() {
			return repository.ErrDuplicateLiveTimetable
		}
	}
	if timetable.ID == "" {
		timetable.ID = m.db.nextID("tt")
	}
	now := time.Now().UTC()
	timetable.CreatedAt, timetable.UpdatedAt = now, now
	m.db.timetables[timetable.ID] = *timetable
	for i := range days {
		days[i].ID = m.db.nextID("day")
		days[i].TimetableID = timetable.ID
		days[i].CreatedAt = now
		m.db.days[days[i].ID] = days[i]
	}
	return nil
}

func (m memTimetables) Activate(_ context.Context, id string, at time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	tt, ok := m.db.timetables[id]
	if !ok || tt.Status != models.TimetableStatusDraft {
		return false, nil
	}
	hasSlot := false
	for _, slot := range m.db.slots {
		if slot.TimetableID == id {
			hasSlot = true
			break
		}
	}
	if !hasSlot {
		return false, nil
	}
	tt.Status = models.TimetableStatusActive
	tt.PublishedAt = &at
	m.db.timetables[id] = tt
	return true, nil
}

func (m memTimetables) Archive(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	tt, ok := m.db.timetables[id]
	if !ok || tt.Status != models.TimetableStatusActive {
		return sql.ErrNoRows
	}
	tt.Status = models.TimetableStatusArchived
	m.db.timetables[id] = tt
	return nil
}

func (m memTimetables) Purge(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.timetables[id]; !ok {
		return sql.ErrNoRows
	}
	for key, slot := range m.db.slots {
		if slot.TimetableID == id {
			delete(m.db.slots, key)
		}
	}
	for key, period := range m.db.periods {
		if period.TimetableID == id {
			delete(m.db.periods, key)
		}
	}
	for key, day := range m.db.days {
		if day.TimetableID == id {
			delete(m.db.days, key)
		}
	}
	delete(m.db.timetables, id)
	return nil
}

type memDays struct{ db *memoryDB }

func (m memDays) FindByID(_ context.Context, id string) (*models.TimetableDay, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	day, ok := m.db.days[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &day, nil
}

func (m memDays) FindByWeekday(_ context.Context, timetableID string, weekday models.Weekday) (*models.TimetableDay, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, day := range m.db.days {
		if day.TimetableID == timetableID && day.Weekday == weekday {
			found := day
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memDays) ListByTimetable(_ context.Context, timetableID string) ([]models.TimetableDay, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.TimetableDay
	for _, day := range m.db.days {
		if day.TimetableID == timetableID {
			out = append(out, day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (m memDays) Create(_ context.Context, day *models.TimetableDay) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.days {
		if existing.TimetableID == day.TimetableID && existing.Weekday == day.Weekday {
			return repository.ErrDuplicateDay
		}
	}
	day.ID = m.db.nextID("day")
	m.db.days[day.ID] = *day
	return nil
}

func (m memDays) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	day, ok := m.db.days[id]
	if !ok {
		return sql.ErrNoRows
	}
	day.Enabled = enabled
	m.db.days[id] = day
	return nil
}

type memPeriods struct{ db *memoryDB }

func (m memPeriods) FindByID(_ context.Context, id string) (*models.Period, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	period, ok := m.db.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &period, nil
}

func (m memPeriods) ListByTimetable(_ context.Context, timetableID string) ([]models.Period, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Period
	for _, period := range m.db.periods {
		if period.TimetableID == timetableID {
			out = append(out, period)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m memPeriods) Create(_ context.Context, period *models.Period) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.periods {
		if existing.TimetableID == period.TimetableID && existing.Interval().Overlaps(period.Interval()) {
			return repository.ErrPeriodOverlap
		}
	}
	period.ID = m.db.nextID("period")
	m.db.periods[period.ID] = *period
	return nil
}

func (m memPeriods) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.periods[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.periods, id)
	return nil
}

type memSlots struct{ db *memoryDB }

func (m memSlots) FindByID(_ context.Context, id string) (*models.Slot, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	slot, ok := m.db.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &slot, nil
}

func (m memSlots) FindByDayAndYear(_ context.Context, academicYearID string, weekday models.Weekday) ([]models.Slot, error) {
	return m.filter(func(slot models.Slot, tt models.Timetable) bool {
		return slot.AcademicYearID == academicYearID && slot.Weekday == weekday && tt.Status.Live()
	}), nil
}

func (m memSlots) FindByTimetable(_ context.Context, timetableID string) ([]models.Slot, error) {
	return m.filter(func(slot models.Slot, _ models.Timetable) bool {
		return slot.TimetableID == timetableID
	}), nil
}

func (m memSlots) FindByTeacher(_ context.Context, teacherID, academicYearID string) ([]models.Slot, error) {
	return m.filter(func(slot models.Slot, tt models.Timetable) bool {
		return slot.TeacherID == teacherID && slot.AcademicYearID == academicYearID && tt.Status == models.TimetableStatusActive
	}), nil
}

func (m memSlots) FindByRoom(_ context.Context, roomID, academicYearID string) ([]models.Slot, error) {
	return m.filter(func(slot models.Slot, tt models.Timetable) bool {
		return slot.Room() == roomID && slot.AcademicYearID == academicYearID && tt.Status == models.TimetableStatusActive
	}), nil
}

func (m memSlots) CountByPeriod(_ context.Context, periodID string) (int, error) {
	return len(m.filter(func(slot models.Slot, _ models.Timetable) bool { return slot.PeriodID == periodID })), nil
}

func (m memSlots) CountByDay(_ context.Context, dayID string) (int, error) {
	return len(m.filter(func(slot models.Slot, _ models.Timetable) bool { return slot.DayID == dayID })), nil
}

func (m memSlots) CountByTimetable(_ context.Context, timetableID string) (int, error) {
	return len(m.filter(func(slot models.Slot, _ models.Timetable) bool { return slot.TimetableID == timetableID })), nil
}

func (m memSlots) Save(_ context.Context, slot *models.Slot) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.saveErr != nil {
		return m.db.saveErr
	}
	for _, existing := range m.db.slots {
		if existing.ID != slot.ID && existing.TimetableID == slot.TimetableID && existing.DayID == slot.DayID && existing.PeriodID == slot.PeriodID {
			return repository.ErrDuplicateSlot
		}
	}
	if slot.ID == "" {
		slot.ID = m.db.nextID("slot")
	}
	m.db.slots[slot.ID] = *slot
	return nil
}

func (m memSlots) SaveWithPeriod(_ context.Context, period *models.Period, slot *models.Slot) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.periods {
		if existing.TimetableID == period.TimetableID && existing.Interval().Overlaps(period.Interval()) {
			return repository.ErrPeriodOverlap
		}
	}
	if m.db.saveErr != nil {
		return m.db.saveErr
	}
	period.ID = m.db.nextID("period")
	slot.PeriodID = period.ID
	if slot.ID == "" {
		slot.ID = m.db.nextID("slot")
	}
	m.db.periods[period.ID] = *period
	m.db.slots[slot.ID] = *slot
	return nil
}

func (m memSlots) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.slots[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.slots, id)
	return nil
}

func (m memSlots) filter(keep func(models.Slot, models.Timetable) bool) []models.Slot {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Slot
	for _, slot := range m.db.slots {
		if keep(slot, m.db.timetables[slot.TimetableID]) {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memRefs struct{ db *memoryDB }

func (m memRefs) has(set map[string]bool, id string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return set[id], nil
}

func (m memRefs) TeacherExists(_ context.Context, id string) (bool, error) {
	return m.has(m.db.teachers, id)
}

func (m memRefs) SubjectExists(_ context.Context, id string) (bool, error) {
	return m.has(m.db.subjects, id)
}

func (m memRefs) RoomExists(_ context.Context, id string) (bool, error) {
	return m.has(m.db.rooms, id)
}

func (m memRefs) ClassSectionExists(_ context.Context, id string) (bool, error) {
	return m.has(m.db.classes, id)
}

func (m memRefs) AcademicYearExists(_ context.Context, id string) (bool, error) {
	return m.has(m.db.years, id)
}

func (m memRefs) CurrentAcademicYearID(_ context.Context) (string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.currentYear == "" {
		return "", sql.ErrNoRows
	}
	return m.db.currentYear, nil
}

func (m memRefs) Labels(_ context.Context, kind repository.ReferenceKind, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = fmt.Sprintf("%s %s", kind, id)
	}
	return out, nil
}
