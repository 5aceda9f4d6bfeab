package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/pkg/storage"
)

type memoryRows struct {
	headers map[string][]string
	rows    map[string][][]string
}

func newMemoryRows() *memoryRows {
	return &memoryRows{headers: map[string][]string{}, rows: map[string][][]string{}}
}

func (m *memoryRows) ReadRows(_ context.Context, kind string) ([][]string, error) {
	return m.rows[kind], nil
}

func (m *memoryRows) WriteRows(_ context.Context, kind string, header []string, rows [][]string) error {
	m.headers[kind] = header
	m.rows[kind] = rows
	return nil
}

var t0 = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

func seedGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(nil, nil)
	require.NoError(t, g.AddUser(&models.User{Username: "amy", PasswordHash: "$2a$hash", Domain: models.DomainStudent, Email: "amy@uni.test"}))
	require.NoError(t, g.AddUser(&models.User{Username: "bob", PasswordHash: "$2a$hash", Domain: models.DomainStudent}))
	require.NoError(t, g.AddUser(&models.User{Username: "prof", PasswordHash: "$2a$hash", Domain: models.DomainStaff}))
	require.NoError(t, g.AddStudent(&models.Student{Username: "amy", MatricNo: "U1", Gender: "F", FullName: "Amy Tan, Jr.", Nationality: "SG", Year: 2, Programme: "CS"}))
	require.NoError(t, g.AddStudent(&models.Student{Username: "bob", MatricNo: "U2", FullName: "Bob Lee", Year: 1}))
	require.NoError(t, g.AddCourse(&models.Course{Code: "CS101", Name: "Intro", School: "SCSE", AU: 3}))
	require.NoError(t, g.AddCourse(&models.Course{Code: "MA101", Name: "Calculus", School: "SPMS", AU: 2.5}))

	lec, err := models.NewSchedule(models.ClassLecture, "LE1", time.Monday, "LT1", "odd weeks", 9*60, 11*60, []int{1, 3, 5})
	require.NoError(t, err)
	tut, err := models.NewSchedule(models.ClassTutorial, "T1", time.Thursday, "TR1", "", 14*60, 15*60, []int{2, 4})
	require.NoError(t, err)
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "10101", CourseCode: "CS101", MaxVacancy: 1, Schedules: []models.Schedule{lec, tut}}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "20101", CourseCode: "MA101", MaxVacancy: 3}))

	for _, r := range []struct {
		student, course, index string
		status                 models.RegistrationStatus
		offset                 time.Duration
	}{
		{"bob", "CS101", "10101", models.StatusWaitlist, 2 * time.Minute},
		{"amy", "CS101", "10101", models.StatusRegistered, time.Minute},
		{"amy", "MA101", "20101", models.StatusRegistered, 0},
	} {
		reg, err := models.NewRegistration(r.student, r.course, r.index, t0.Add(r.offset), r.status)
		require.NoError(t, err)
		require.NoError(t, g.AddRegistration(reg))
	}
	return g
}

func assertSameGraph(t *testing.T, want, got *graph.Graph) {
	t.Helper()
	assert.Equal(t, want.Stats(), got.Stats())
	for _, u := range want.Users.Items() {
		loaded, ok := got.Users.Get(u.Username)
		require.True(t, ok, u.Username)
		assert.Equal(t, *u, *loaded)
	}
	for _, s := range want.Students.Items() {
		loaded, ok := got.Students.Get(s.Username)
		require.True(t, ok, s.Username)
		assert.Equal(t, *s, *loaded)
	}
	for _, c := range want.Courses.Items() {
		loaded, ok := got.Courses.Get(c.Code)
		require.True(t, ok, c.Code)
		assert.Equal(t, *c, *loaded)
	}
	for _, i := range want.Indexes.Items() {
		loaded, ok := got.Indexes.Get(i.Number)
		require.True(t, ok, i.Number)
		assert.Equal(t, i.Clone(), loaded.Clone())
	}
	for _, r := range want.Registrations.Items() {
		loaded, ok := got.Registrations.Get(r.Key)
		require.True(t, ok, r.Key.String())
		assert.Equal(t, *r, *loaded)
	}
	assert.Equal(t, want.Waitlist("10101"), got.Waitlist("10101"))
	assert.Empty(t, got.Verify(21))
}

func TestSnapshotRoundTripThroughCSVFiles(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	snap := NewSnapshotter(NewCSVStore(files), nil)
	ctx := context.Background()

	original := seedGraph(t)
	require.NoError(t, snap.Save(ctx, original))

	loaded := graph.New(nil, nil)
	report, err := snap.Load(ctx, loaded)
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 3, report.Loaded[KindRegistrations])
	assert.Equal(t, 2, report.Loaded[KindSchedules])

	assertSameGraph(t, original, loaded)
}

func TestSnapshotWritesRegistrationsInAllocationOrder(t *testing.T) {
	rows := newMemoryRows()
	require.NoError(t, NewSnapshotter(rows, nil).Save(context.Background(), seedGraph(t)))

	regs := rows.rows[KindRegistrations]
	require.Len(t, regs, 3)
	assert.Equal(t, []string{"amy", "MA101"}, regs[0][:2])
	assert.Equal(t, []string{"amy", "CS101"}, regs[1][:2])
	assert.Equal(t, []string{"bob", "CS101"}, regs[2][:2])
	assert.Equal(t, RegistrationConverter{}.Header(), rows.headers[KindRegistrations])
}

func TestSnapshotSkipsDroppedAndOrphanedRows(t *testing.T) {
	g := seedGraph(t)
	rows := newMemoryRows()
	snap := NewSnapshotter(rows, nil)
	ctx := context.Background()

	// A registration dropped outside the store is never written.
	live, _ := g.Registrations.Get(models.RegistrationKey{Student: "bob", Course: "CS101"})
	live.Drop()
	require.NoError(t, snap.Save(ctx, g))
	assert.Len(t, rows.rows[KindRegistrations], 2)

	rows.rows[KindStudents] = append(rows.rows[KindStudents], []string{"ghost", "U9", "", "Ghost", "", "1", ""})
	rows.rows[KindSchedules] = append(rows.rows[KindSchedules], []string{"99999", "LEC", "LE1", "Monday", "LT1", "", "09:00", "10:00", "1"})
	rows.rows[KindRegistrations] = append(rows.rows[KindRegistrations],
		[]string{"amy", "PH101", "30101", t0.Format(time.RFC3339Nano), "REGISTERED"},
		[]string{"amy", "CS101", "10101", "yesterday", "REGISTERED"},
	)
	rows.rows[KindCourses] = append(rows.rows[KindCourses], []string{"BAD", "Broken", "", "lots"})

	loaded := graph.New(nil, nil)
	report, err := snap.Load(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped[KindStudents])
	assert.Equal(t, 1, report.Skipped[KindSchedules])
	assert.Equal(t, 2, report.Skipped[KindRegistrations])
	assert.Equal(t, 1, report.Skipped[KindCourses])
	assert.Equal(t, 2, loaded.Students.Len())
	assert.Equal(t, 2, loaded.Registrations.Len())
	assert.Empty(t, loaded.Verify(21))
}

func TestLoadFromEmptyStore(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	g := graph.New(nil, nil)

	report, err := NewSnapshotter(NewCSVStore(files), nil).Load(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	assert.Equal(t, graph.Stats{}, g.Stats())
}

func TestConvertersSkipBadRows(t *testing.T) {
	_, ok := UserConverter{}.FromRow([]string{"amy", "hash", "ALIEN"})
	assert.False(t, ok)
	_, ok = IndexConverter{}.FromRow([]string{"10101", "CS101", "-"})
	assert.False(t, ok)
	_, ok = ScheduleConverter{}.FromRow([]string{"10101", "LEC", "LE1", "Monday", "LT1", "", "11:00", "09:00", "1"})
	assert.False(t, ok, "begin after end")

	c, ok := CourseConverter{}.FromRow([]string{" cs102 ", "Data", "SCSE", "4"})
	require.True(t, ok)
	assert.Equal(t, "CS102", c.Code)

	u, ok := UserConverter{}.FromRow([]string{"amy", "hash", "student"})
	require.True(t, ok, "short rows leave trailing fields empty")
	assert.Equal(t, models.DomainStudent, u.Domain)
	assert.Empty(t, u.Phone)
}
