package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

type sentNotification struct {
	Username string
	Subject  string
}

type notifierStub struct {
	sent []sentNotification
}

func (n *notifierStub) Notify(user models.User, subject, _ string) {
	n.sent = append(n.sent, sentNotification{Username: user.Username, Subject: subject})
}

func (n *notifierStub) subjectsFor(username string) []string {
	var out []string
	for _, s := range n.sent {
		if s.Username == username {
			out = append(out, s.Subject)
		}
	}
	return out
}

type recorderStub struct {
	counts map[string]int
}

func (r *recorderStub) RecordAllocation(outcome string) {
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[outcome]++
}

type engineFixture struct {
	graph    *graph.Graph
	svc      *RegistrationService
	notifier *notifierStub
	metrics  *recorderStub
}

func mustSchedule(t *testing.T, day time.Weekday, begin, end string) models.Schedule {
	t.Helper()
	b, err := models.ParseClockTime(begin)
	require.NoError(t, err)
	e, err := models.ParseClockTime(end)
	require.NoError(t, err)
	s, err := models.NewSchedule(models.ClassLecture, "LE", day, "LT1", "", b, e, []int{1, 2, 3})
	require.NoError(t, err)
	return s
}

// newEngineFixture builds CS101 (3 AU) with indexes I1 (1 seat) and I2
// (2 seats), MA101 (4 AU) with M1 (5 seats) and BIG (18 AU) with B1.
func newEngineFixture(t *testing.T, maxAU float64) *engineFixture {
	t.Helper()
	g := graph.New(nil, nil)
	for _, name := range []string{"amy", "bob", "cat", "dan"} {
		require.NoError(t, g.AddUser(&models.User{Username: name, PasswordHash: "x", Domain: models.DomainStudent, Email: name + "@uni.test"}))
		require.NoError(t, g.AddStudent(&models.Student{Username: name, MatricNo: "U-" + name, FullName: name, Year: 2}))
	}
	require.NoError(t, g.AddCourse(&models.Course{Code: "CS101", Name: "Intro", AU: 3}))
	require.NoError(t, g.AddCourse(&models.Course{Code: "MA101", Name: "Calculus", AU: 4}))
	require.NoError(t, g.AddCourse(&models.Course{Code: "BIG", Name: "Capstone", AU: 18}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "I1", CourseCode: "CS101", MaxVacancy: 1,
		Schedules: []models.Schedule{mustSchedule(t, time.Monday, "09:00", "11:00")}}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "I2", CourseCode: "CS101", MaxVacancy: 2,
		Schedules: []models.Schedule{mustSchedule(t, time.Tuesday, "09:00", "11:00")}}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "M1", CourseCode: "MA101", MaxVacancy: 5,
		Schedules: []models.Schedule{mustSchedule(t, time.Monday, "10:00", "12:00")}}))
	require.NoError(t, g.AddIndex(&models.CourseIndex{Number: "B1", CourseCode: "BIG", MaxVacancy: 5}))

	notifier := &notifierStub{}
	metrics := &recorderStub{}
	svc := NewRegistrationService(RegistrationServiceParams{
		Graph:    g,
		Notifier: notifier,
		Metrics:  metrics,
		Config:   RegistrationServiceConfig{MaxAU: maxAU},
	})
	clock := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &engineFixture{graph: g, svc: svc, notifier: notifier, metrics: metrics}
}

func (f *engineFixture) register(t *testing.T, student, index string) models.Registration {
	t.Helper()
	res, err := f.svc.Register(RegisterRequest{Student: student, Index: index})
	require.NoError(t, err)
	require.Len(t, res.Registrations, 1)
	return res.Registrations[0]
}

func (f *engineFixture) status(t *testing.T, student, course string) models.RegistrationStatus {
	t.Helper()
	r, ok := f.graph.Registrations.Get(models.RegistrationKey{Student: student, Course: course})
	require.True(t, ok, "%s should hold %s", student, course)
	return r.Status
}

func TestRegisterFillsSeatsThenWaitlists(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)

	assert.Equal(t, models.StatusRegistered, f.register(t, "amy", "I1").Status)
	assert.Equal(t, models.StatusWaitlist, f.register(t, "bob", "I1").Status)

	v, err := f.svc.Vacancy("I1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Registered)
	assert.Equal(t, 1, v.Waitlisted)
	assert.Zero(t, v.Available)
	assert.Equal(t, 1, f.metrics.counts[OutcomeRegistered])
	assert.Equal(t, 1, f.metrics.counts[OutcomeWaitlisted])
	assert.Equal(t, []string{"Waitlisted for CS101"}, f.notifier.subjectsFor("bob"))
}

func TestRegisterRejections(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")

	_, err := f.svc.Register(RegisterRequest{Student: "amy", Index: "I2"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict), "one registration per course")

	_, err = f.svc.Register(RegisterRequest{Student: "amy", Index: "M1"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict), "M1 clashes with I1 on Monday")

	_, err = f.svc.Register(RegisterRequest{Student: "zed", Index: "I2"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Register(RegisterRequest{Student: "amy", Index: "X9"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	assert.Equal(t, 1, f.graph.Registrations.Len())
	assert.Equal(t, 4, f.metrics.counts[OutcomeRejected])
}

func TestRegisterRejectsOverAUCap(t *testing.T) {
	f := newEngineFixture(t, 20)
	f.register(t, "amy", "B1")

	_, err := f.svc.Register(RegisterRequest{Student: "amy", Index: "I2"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAUCapExceeded), "18 + 3 exceeds 20")
	assert.True(t, appErrors.IsCapacity(err))
	assert.Equal(t, 18.0, f.graph.RegisteredAU("amy"))
	assert.False(t, f.graph.Registrations.Contains(models.RegistrationKey{Student: "amy", Course: "CS101"}))
}

func TestDropPromotesWaitlistInArrivalOrder(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")
	f.register(t, "cat", "I1")

	res, err := f.svc.Drop("amy", "I1")
	require.NoError(t, err)

	assert.True(t, res.Registrations[0].Dropped)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "bob", res.Promoted[0].Key.Student)
	assert.Equal(t, models.StatusRegistered, f.status(t, "bob", "CS101"))
	assert.Equal(t, models.StatusWaitlist, f.status(t, "cat", "CS101"))
	assert.Contains(t, f.notifier.subjectsFor("bob"), "Seat confirmed for CS101")
	assert.Equal(t, 1, f.graph.CountRegistered("I1"))

	_, err = f.svc.Drop("amy", "I1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPromotionSkipsCandidateOverAUCap(t *testing.T) {
	f := newEngineFixture(t, 20)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")
	f.register(t, "cat", "I1")
	f.register(t, "bob", "B1")

	res, err := f.svc.Drop("amy", "I1")
	require.NoError(t, err)

	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "cat", res.Promoted[0].Key.Student)
	assert.Equal(t, models.StatusWaitlist, f.status(t, "bob", "CS101"), "bob stays on the waitlist")
	assert.Equal(t, 1, f.metrics.counts[OutcomeSkipped])
	assert.LessOrEqual(t, f.graph.RegisteredAU("bob"), 20.0)
}

// skippedBehindFreeSeat leaves bob waitlisted in I1 next to a free seat:
// with a 20 AU cap his 18 AU of BIG leaves no room for CS101.
func skippedBehindFreeSeat(t *testing.T) *engineFixture {
	t.Helper()
	f := newEngineFixture(t, 20)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")
	f.register(t, "bob", "B1")
	_, err := f.svc.Drop("amy", "I1")
	require.NoError(t, err)
	_, err = f.svc.ChangeVacancy("I1", 2)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlist, f.status(t, "bob", "CS101"))
	require.Zero(t, f.graph.CountRegistered("I1"))
	return f
}

func TestLoweringCourseAUPromotesSkippedCandidates(t *testing.T) {
	f := skippedBehindFreeSeat(t)
	courses := NewCourseService(f.graph, nil, nil, CourseServiceConfig{MaxAU: 20})

	_, err := courses.Update("BIG", UpdateCourseRequest{Name: "Capstone", AU: 17})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRegistered, f.status(t, "bob", "CS101"))
	assert.Equal(t, 20.0, f.graph.RegisteredAU("bob"))
	assert.Contains(t, f.notifier.subjectsFor("bob"), "Seat confirmed for CS101")
}

func TestDroppingElsewherePromotesSkippedCandidate(t *testing.T) {
	f := skippedBehindFreeSeat(t)

	res, err := f.svc.Drop("bob", "B1")
	require.NoError(t, err)

	require.Len(t, res.Promoted, 1)
	assert.Equal(t, models.RegistrationKey{Student: "bob", Course: "CS101"}, res.Promoted[0].Key)
	assert.Equal(t, models.StatusRegistered, f.status(t, "bob", "CS101"))
}

func TestChangeVacancyGrandfathersAndPromotes(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I2")
	f.register(t, "bob", "I2")
	f.register(t, "cat", "I2")
	f.register(t, "dan", "I2")

	res, err := f.svc.ChangeVacancy("I2", 1)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)
	assert.Equal(t, 2, f.graph.CountRegistered("I2"), "existing seats are kept")
	assert.Zero(t, res.Vacancy.Available)

	res, err = f.svc.ChangeVacancy("I2", 4)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 2)
	assert.Equal(t, "cat", res.Promoted[0].Key.Student)
	assert.Equal(t, "dan", res.Promoted[1].Key.Student)
	assert.Equal(t, 4, res.Vacancy.Registered)

	_, err = f.svc.ChangeVacancy("I2", -1)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestChangeIndex(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")

	_, err := f.svc.ChangeIndex(ChangeIndexRequest{Student: "amy", From: "I1", To: "M1"})
	assert.True(t, errors.Is(err, appErrors.ErrCourseMismatch))

	res, err := f.svc.ChangeIndex(ChangeIndexRequest{Student: "amy", From: "I1", To: "I2"})
	require.NoError(t, err)
	assert.Equal(t, "I2", res.Registrations[0].IndexNumber)
	assert.Equal(t, models.StatusRegistered, res.Registrations[0].Status)
	require.Len(t, res.Promoted, 1, "the freed I1 seat goes to bob")
	assert.Equal(t, "bob", res.Promoted[0].Key.Student)
	assert.Equal(t, 1, f.graph.CountRegistered("I1"))
	assert.Equal(t, 1, f.graph.CountRegistered("I2"))
}

func TestChangeIndexChecksBeforeMutating(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")

	_, err := f.svc.ChangeIndex(ChangeIndexRequest{Student: "amy", From: "I1", To: "I1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.ChangeVacancy("I2", 0)
	require.NoError(t, err)
	_, err = f.svc.ChangeIndex(ChangeIndexRequest{Student: "amy", From: "I1", To: "I2"})
	assert.True(t, errors.Is(err, appErrors.ErrVacancyFull))

	r, _ := f.graph.Registrations.Get(models.RegistrationKey{Student: "amy", Course: "CS101"})
	assert.Equal(t, "I1", r.IndexNumber)
	assert.Equal(t, models.StatusWaitlist, f.status(t, "bob", "CS101"))
}

func TestSwapWithinOneCourse(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I2")

	res, err := f.svc.Swap(SwapRequest{Student: "amy", Index: "I1", PeerStudent: "bob", PeerIndex: "I2"})
	require.NoError(t, err)
	require.Len(t, res.Registrations, 2)

	amy, _ := f.graph.Registrations.Get(models.RegistrationKey{Student: "amy", Course: "CS101"})
	bob, _ := f.graph.Registrations.Get(models.RegistrationKey{Student: "bob", Course: "CS101"})
	assert.Equal(t, "I2", amy.IndexNumber)
	assert.Equal(t, "I1", bob.IndexNumber)
	assert.Equal(t, "bob", f.graph.RegOfIndex("I1")[0].Key.Student)
	assert.Empty(t, f.graph.Verify(DefaultMaxAU))
}

func TestSwapAcrossCoursesChecksBothCaps(t *testing.T) {
	f := newEngineFixture(t, 20)
	f.register(t, "amy", "I2")
	f.register(t, "bob", "B1")

	_, err := f.svc.Swap(SwapRequest{Student: "amy", Index: "I2", PeerStudent: "bob", PeerIndex: "B1"})
	require.NoError(t, err)
	assert.Equal(t, 18.0, f.graph.RegisteredAU("amy"))
	assert.Equal(t, 3.0, f.graph.RegisteredAU("bob"))

	f.register(t, "cat", "M1")
	f.register(t, "cat", "I2")
	_, err = f.svc.Swap(SwapRequest{Student: "cat", Index: "M1", PeerStudent: "amy", PeerIndex: "B1"})
	assert.True(t, errors.Is(err, appErrors.ErrAUCapExceeded), "cat would hold 3 + 18")
	assert.Equal(t, "BIG", f.graph.RegOfStudent("amy")[0].Key.Course)
}

func TestSwapRequiresRegisteredSeats(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")

	_, err := f.svc.Swap(SwapRequest{Student: "amy", Index: "I1", PeerStudent: "bob", PeerIndex: "I1"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, err = f.svc.Swap(SwapRequest{Student: "amy", Index: "I1", PeerStudent: "amy", PeerIndex: "I1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDeletingStudentPromotesImmediately(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")

	require.NoError(t, f.graph.RemoveUser("amy"))

	assert.Equal(t, models.StatusRegistered, f.status(t, "bob", "CS101"))
	assert.Equal(t, 1, f.metrics.counts[OutcomePromoted])
	assert.Empty(t, f.graph.Verify(DefaultMaxAU))
}

func TestRemovingIndexDoesNotPromoteIntoIt(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")

	require.NoError(t, f.graph.RemoveIndex("I1"))

	assert.Zero(t, f.graph.Registrations.Len())
	assert.Zero(t, f.metrics.counts[OutcomePromoted])
}

func TestListings(t *testing.T) {
	f := newEngineFixture(t, DefaultMaxAU)
	f.register(t, "amy", "I1")
	f.register(t, "bob", "I1")
	f.register(t, "amy", "B1")

	byIndex, err := f.svc.ListByIndex("I1")
	require.NoError(t, err)
	require.Len(t, byIndex, 2)
	assert.Equal(t, "amy", byIndex[0].Key.Student)

	byStudent, err := f.svc.ListByStudent("amy")
	require.NoError(t, err)
	assert.Len(t, byStudent, 2)

	byCourse, err := f.svc.ListByCourse("cs101")
	require.NoError(t, err)
	assert.Len(t, byCourse, 2)

	_, err = f.svc.ListByStudent("zed")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
