package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

var t0 = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(nil, nil)
	for _, name := range []string{"amy", "bob", "cat"} {
		require.NoError(t, g.AddUser(&models.User{Username: name, PasswordHash: "x", Domain: models.DomainStudent}))
		require.NoError(t, g.AddStudent(&models.Student{Username: name, MatricNo: "U-" + name, FullName: name, Year: 1}))
	}
	require.NoError(t, g.AddUser(&models.User{Username: "prof", PasswordHash: "x", Domain: models.DomainStaff}))
	require.NoError(t, g.AddCourse(&models.Course{Code: "cs101", Name: "Intro", AU: 3}))
	require.NoError(t, g.AddCourse(&models.Course{Code: "MA101", Name: "Calculus", AU: 4}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "I1", CourseCode: "CS101", MaxVacancy: 1}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "I2", CourseCode: "CS101", MaxVacancy: 2}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "M1", CourseCode: "MA101", MaxVacancy: 5}))
	return g
}

func register(t *testing.T, g *Graph, student, course, index string, status models.RegistrationStatus, offset time.Duration) {
	t.Helper()
	r, err := models.NewRegistration(student, course, index, t0.Add(offset), status)
	require.NoError(t, err)
	require.NoError(t, g.AddRegistration(r))
}

func TestRemoveCourseCascadesToIndexesAndRegistrations(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "bob", "CS101", "I1", models.StatusWaitlist, time.Minute)
	register(t, g, "amy", "MA101", "M1", models.StatusRegistered, 0)
	live, _ := g.Registrations.Get(models.RegistrationKey{Student: "bob", Course: "CS101"})

	require.NoError(t, g.RemoveCourse("cs101"))

	assert.Empty(t, g.IndexesOfCourse("CS101"))
	assert.False(t, g.Indexes.Contains("I1"))
	assert.False(t, g.Indexes.Contains("I2"))
	assert.Empty(t, g.RegOfCourseCode("CS101"))
	assert.Len(t, g.RegOfStudent("amy"), 1)
	assert.True(t, live.Dropped, "removed registration is dropped")
	assert.Empty(t, g.Verify(21))
}

func TestRenameCourseMovesIndexesAndRegistrationKeys(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "bob", "CS101", "I2", models.StatusRegistered, time.Minute)

	require.NoError(t, g.RenameCourse("CS101", "cs101a"))

	assert.False(t, g.Courses.Contains("CS101"))
	assert.True(t, g.Courses.Contains("CS101A"))
	for _, index := range g.IndexesOfCourse("CS101A") {
		assert.Equal(t, "CS101A", index.CourseCode)
	}
	assert.Len(t, g.IndexesOfCourse("CS101A"), 2)
	assert.False(t, g.Registrations.Contains(models.RegistrationKey{Student: "amy", Course: "CS101"}))
	r, ok := g.Registrations.Get(models.RegistrationKey{Student: "amy", Course: "CS101A"})
	require.True(t, ok)
	assert.Equal(t, "I1", r.IndexNumber)
	assert.Len(t, g.RegOfCourseCode("CS101A"), 2)
	assert.Empty(t, g.Verify(21))
}

func TestRenameUserPropagatesToStudentAndRegistrations(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "amy", "MA101", "M1", models.StatusWaitlist, 0)

	require.NoError(t, g.RenameUser("amy", "amelia"))

	assert.False(t, g.Students.Contains("amy"))
	s, ok := g.Students.Get("amelia")
	require.True(t, ok)
	assert.Equal(t, "amelia", s.Username)
	assert.Empty(t, g.RegOfStudent("amy"))
	regs := g.RegOfStudent("amelia")
	require.Len(t, regs, 2)
	assert.Equal(t, "CS101", regs[0].Key.Course)
	assert.Equal(t, 1, g.CountRegistered("I1"))
	assert.Empty(t, g.Verify(21))
}

func TestRenameIndexRepointsRegistrations(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)

	require.NoError(t, g.RenameIndex("I1", "I9"))

	r, ok := g.Registrations.Get(models.RegistrationKey{Student: "amy", Course: "CS101"})
	require.True(t, ok)
	assert.Equal(t, "I9", r.IndexNumber)
	assert.Empty(t, g.RegOfIndex("I1"))
	assert.Len(t, g.RegOfIndex("I9"), 1)
	assert.Empty(t, g.Verify(21))
}

func TestRenameRejections(t *testing.T) {
	g := newTestGraph(t)

	assert.True(t, errors.Is(g.RenameUser("amy", "bob"), appErrors.ErrConflict))
	assert.True(t, errors.Is(g.RenameUser("nobody", "x"), appErrors.ErrNotFound))
	assert.True(t, errors.Is(g.RenameCourse("CS101", "cs101"), appErrors.ErrValidation))
	assert.True(t, errors.Is(g.RenameIndex("I1", ""), appErrors.ErrValidation))
	assert.True(t, g.Students.Contains("amy"))
}

func TestRemoveUserCascadesToStudentAndRegistrations(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "bob", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "bob", "MA101", "M1", models.StatusRegistered, 0)

	require.NoError(t, g.RemoveUser("bob"))

	assert.False(t, g.Students.Contains("bob"))
	assert.Empty(t, g.RegOfStudent("bob"))
	assert.Zero(t, g.CountRegistered("I1"))
	assert.Equal(t, 0, g.Registrations.Len())
	assert.True(t, errors.Is(g.RemoveUser("bob"), appErrors.ErrNotFound))
}

func TestRemoveIndexLeavesOtherIndexesAlone(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "bob", "CS101", "I2", models.StatusRegistered, 0)

	require.NoError(t, g.RemoveIndex("I1"))

	assert.Len(t, g.IndexesOfCourse("CS101"), 1)
	assert.Empty(t, g.RegOfStudent("amy"))
	assert.Len(t, g.RegOfStudent("bob"), 1)
}

func TestAddRegistrationValidation(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)

	dup, _ := models.NewRegistration("amy", "CS101", "I2", t0, models.StatusRegistered)
	assert.True(t, errors.Is(g.AddRegistration(dup), appErrors.ErrConflict))

	mismatch, _ := models.NewRegistration("bob", "CS101", "M1", t0, models.StatusRegistered)
	assert.True(t, errors.Is(g.AddRegistration(mismatch), appErrors.ErrCourseMismatch))

	ghost, _ := models.NewRegistration("zed", "CS101", "I1", t0, models.StatusRegistered)
	assert.True(t, errors.Is(g.AddRegistration(ghost), appErrors.ErrNotFound))

	dropped, _ := models.NewRegistration("bob", "CS101", "I1", t0, models.StatusRegistered)
	dropped.Drop()
	assert.True(t, errors.Is(g.AddRegistration(dropped), appErrors.ErrInvalidTransition))
	_, _, err := g.Registrations.Add(dropped)
	assert.ErrorIs(t, err, ErrDroppedRegistration)
}

func TestStudentNeedsStudentDomainUser(t *testing.T) {
	g := newTestGraph(t)

	err := g.AddStudent(&models.Student{Username: "prof", MatricNo: "P1", FullName: "Prof", Year: 1})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = g.AddUser(&models.User{Username: "amy", PasswordHash: "x", Domain: models.DomainStaff})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "a student's user cannot become staff")
}

func TestIndexNumbersAreGlobal(t *testing.T) {
	g := newTestGraph(t)

	err := g.AddIndex(&models.CourseIndex{Number: "I1", CourseCode: "MA101", MaxVacancy: 3})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	err = g.ReplaceIndex(&models.CourseIndex{Number: "I1", CourseCode: "MA101", MaxVacancy: 3})
	assert.True(t, errors.Is(err, appErrors.ErrCourseMismatch))

	require.NoError(t, g.ReplaceIndex(&models.CourseIndex{Number: "I1", CourseCode: "CS101", MaxVacancy: 4}))
	v, ok := g.Vacancy("I1")
	require.True(t, ok)
	assert.Equal(t, 4, v.Available)
}

func TestQueriesReturnCopies(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)

	regs := g.RegOfIndex("I1")
	regs[0].Status = models.StatusWaitlist
	assert.Equal(t, 1, g.CountRegistered("I1"))

	indexes := g.IndexesOfCourse("CS101")
	indexes[0].MaxVacancy = 99
	v, _ := g.Vacancy("I1")
	assert.Equal(t, 1, v.MaxVacancy)
}

func TestWaitlistAndAUQueries(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "cat", "CS101", "I1", models.StatusWaitlist, 2*time.Minute)
	register(t, g, "bob", "CS101", "I1", models.StatusWaitlist, time.Minute)
	register(t, g, "amy", "MA101", "M1", models.StatusWaitlist, 0)

	waitlist := g.Waitlist("I1")
	require.Len(t, waitlist, 2)
	assert.Equal(t, "bob", waitlist[0].Key.Student)
	assert.Equal(t, "cat", waitlist[1].Key.Student)
	assert.Equal(t, 3.0, g.RegisteredAU("amy"), "waitlisted courses do not count")

	v, _ := g.Vacancy("I1")
	assert.Equal(t, models.IndexVacancy{Number: "I1", CourseCode: "CS101", MaxVacancy: 1, Registered: 1, Waitlisted: 2}, v)
}

func TestVerifyReportsAUCap(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "amy", "MA101", "M1", models.StatusRegistered, 0)

	assert.Empty(t, g.Verify(0))
	assert.Len(t, g.Verify(5), 1)
}

func TestTradingStudentsKeepsRelationsIntact(t *testing.T) {
	g := newTestGraph(t)
	register(t, g, "amy", "CS101", "I1", models.StatusRegistered, 0)
	register(t, g, "bob", "CS101", "I2", models.StatusRegistered, 0)
	amy := models.RegistrationKey{Student: "amy", Course: "CS101"}
	bob := models.RegistrationKey{Student: "bob", Course: "CS101"}

	ok := g.Registrations.RekeyAll([]models.RegistrationKey{bob, amy}, func(k models.RegistrationKey) models.RegistrationKey {
		if k == amy {
			return k.WithStudent("bob")
		}
		return k.WithStudent("amy")
	})
	require.True(t, ok)

	mine := g.RegOfStudent("amy")
	require.Len(t, mine, 1)
	assert.Equal(t, "I2", mine[0].IndexNumber)
	assert.Equal(t, "bob", g.RegOfIndex("I1")[0].Key.Student)
	assert.Equal(t, "amy", g.RegOfIndex("I2")[0].Key.Student)
	assert.Empty(t, g.Verify(21))
}
