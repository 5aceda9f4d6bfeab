package service

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/store"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

// DefaultMaxAU is the academic unit cap used when none is configured.
const DefaultMaxAU = 21

// Allocation outcomes recorded by the metrics layer.
const (
	OutcomeRegistered  = "registered"
	OutcomeWaitlisted  = "waitlisted"
	OutcomeRejected    = "rejected"
	OutcomeDropped     = "dropped"
	OutcomePromoted    = "promoted"
	OutcomeSkipped     = "skipped"
	OutcomeIndexChange = "index_changed"
	OutcomeSwapped     = "swapped"
)

type userNotifier interface {
	Notify(user models.User, subject, message string)
}

type allocationRecorder interface {
	RecordAllocation(outcome string)
}

// RegisterRequest asks for a seat in an index.
type RegisterRequest struct {
	Student string `json:"student" validate:"required"`
	Index   string `json:"index" validate:"required"`
}

// ChangeIndexRequest moves a registration to another index of the same course.
type ChangeIndexRequest struct {
	Student string `json:"student" validate:"required"`
	From    string `json:"from" validate:"required"`
	To      string `json:"to" validate:"required"`
}

// SwapRequest exchanges the seats of two students.
type SwapRequest struct {
	Student     string `json:"student" validate:"required"`
	Index       string `json:"index" validate:"required"`
	PeerStudent string `json:"peer_student" validate:"required"`
	PeerIndex   string `json:"peer_index" validate:"required"`
}

// AllocationResult reports what an engine operation changed. Promoted lists
// the waitlisted registrations that received a seat as a consequence.
type AllocationResult struct {
	Registrations []models.Registration `json:"registrations"`
	Vacancy       *models.IndexVacancy  `json:"vacancy,omitempty"`
	Promoted      []models.Registration `json:"promoted,omitempty"`
}

// RegistrationServiceConfig tunes allocation rules.
type RegistrationServiceConfig struct {
	MaxAU float64
}

// RegistrationServiceParams groups constructor dependencies.
type RegistrationServiceParams struct {
	Graph    *graph.Graph
	Notifier userNotifier
	Metrics  allocationRecorder
	Logger   *zap.Logger
	Config   RegistrationServiceConfig
}

// RegistrationService allocates seats. Every operation checks all of its
// preconditions before the first mutation, and freed seats are refilled from
// the waitlist once the operation completes. Seats freed by cascades outside
// an operation, such as deleting a student, are refilled immediately.
type RegistrationService struct {
	graph    *graph.Graph
	notifier userNotifier
	metrics  allocationRecorder
	logger   *zap.Logger
	now      func() time.Time
	cfg      RegistrationServiceConfig

	depth    int
	settling bool
	dirty    map[string]struct{}
	promoted []models.Registration
}

// NewRegistrationService constructs the engine and subscribes it to the graph.
func NewRegistrationService(params RegistrationServiceParams) *RegistrationService {
	cfg := params.Config
	if cfg.MaxAU <= 0 {
		cfg.MaxAU = DefaultMaxAU
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RegistrationService{
		graph:    params.Graph,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
		dirty:    make(map[string]struct{}),
	}
	s.graph.Registrations.Subscribe(&store.Funcs[models.RegistrationKey, *models.Registration]{
		OnRemoved: func(r *models.Registration) {
			if r.Status == models.StatusRegistered {
				s.markDirty(r.IndexNumber)
				s.markWaitlistsOf(r.Key.Student)
			}
		},
		OnReplaced: func(old, r *models.Registration) {
			if old.Status != models.StatusRegistered {
				return
			}
			if r.IndexNumber != old.IndexNumber || r.Status != models.StatusRegistered {
				s.markDirty(old.IndexNumber)
			}
			if r.Status != models.StatusRegistered {
				s.markWaitlistsOf(r.Key.Student)
			}
		},
		OnKeyChanged: func(oldKey models.RegistrationKey, r *models.Registration) {
			// Only trades between two existing students move AU around; a
			// rename leaves the old username behind.
			if r.Status == models.StatusRegistered && oldKey.Student != r.Key.Student && s.graph.Students.Contains(oldKey.Student) {
				s.markWaitlistsOf(oldKey.Student)
				s.markWaitlistsOf(r.Key.Student)
			}
		},
	})
	s.graph.Indexes.Subscribe(&store.Funcs[string, *models.CourseIndex]{
		OnReplaced: func(old, i *models.CourseIndex) {
			if i.MaxVacancy > old.MaxVacancy {
				s.markDirty(i.Number)
			}
		},
	})
	s.graph.Courses.Subscribe(&store.Funcs[string, *models.Course]{
		OnReplaced: func(old, c *models.Course) {
			if c.AU < old.AU {
				s.courseAUDropped(c.Code)
			}
		},
	})
	return s
}

// MaxAU returns the configured academic unit cap.
func (s *RegistrationService) MaxAU() float64 {
	return s.cfg.MaxAU
}

// Register requests a seat. The registration is REGISTERED while seats
// remain and WAITLIST otherwise.
func (s *RegistrationService) Register(req RegisterRequest) (result *AllocationResult, err error) {
	s.begin()
	defer func() { s.end(result) }()
	defer func() { s.recordRejection(err) }()

	index, err := s.index(req.Index)
	if err != nil {
		return nil, err
	}
	course, err := s.course(index.CourseCode)
	if err != nil {
		return nil, err
	}
	if !s.graph.Students.Contains(req.Student) {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", req.Student)
	}
	key := models.RegistrationKey{Student: req.Student, Course: course.Code}
	if existing, ok := s.graph.Registrations.Get(key); ok {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "%s already holds index %s of %s", req.Student, existing.IndexNumber, course.Code)
	}
	if err := s.checkAU(req.Student, course.AU); err != nil {
		return nil, err
	}
	if err := s.checkClash(req.Student, course.Code, index); err != nil {
		return nil, err
	}

	status := models.StatusRegistered
	if s.graph.CountRegistered(index.Number) >= index.MaxVacancy {
		status = models.StatusWaitlist
	}
	reg, err := models.NewRegistration(req.Student, course.Code, index.Number, s.now(), status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.graph.AddRegistration(reg); err != nil {
		return nil, err
	}

	outcome := OutcomeRegistered
	subject := fmt.Sprintf("Registered for %s", course.Code)
	if status == models.StatusWaitlist {
		outcome = OutcomeWaitlisted
		subject = fmt.Sprintf("Waitlisted for %s", course.Code)
	}
	s.record(outcome)
	s.notify(req.Student, subject, fmt.Sprintf("Your registration for %s %s in index %s is %s.", course.Code, course.Name, index.Number, status))
	s.logger.Info("registration added", zap.String("student", req.Student), zap.String("index", index.Number), zap.String("status", string(status)))
	return &AllocationResult{Registrations: []models.Registration{reg.Clone()}}, nil
}

// Drop removes a student's registration in an index and refills the seat.
func (s *RegistrationService) Drop(student, indexNumber string) (result *AllocationResult, err error) {
	s.begin()
	defer func() { s.end(result) }()

	reg, err := s.registrationIn(student, indexNumber)
	if err != nil {
		return nil, err
	}
	removed, _ := s.graph.Registrations.Remove(reg.Key)
	s.record(OutcomeDropped)
	s.notify(student, fmt.Sprintf("Dropped %s", removed.Key.Course), fmt.Sprintf("You are no longer registered in index %s of %s.", indexNumber, removed.Key.Course))
	s.logger.Info("registration dropped", zap.String("student", student), zap.String("index", indexNumber))
	return &AllocationResult{Registrations: []models.Registration{removed.Clone()}}, nil
}

// ChangeVacancy sets the seat limit of an index. Lowering it below the
// current headcount keeps every existing seat; raising it promotes from the
// waitlist.
func (s *RegistrationService) ChangeVacancy(indexNumber string, maxVacancy int) (result *AllocationResult, err error) {
	s.begin()
	defer func() { s.end(result) }()

	if maxVacancy < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max vacancy cannot be negative")
	}
	index, err := s.index(indexNumber)
	if err != nil {
		return nil, err
	}
	updated := index.Clone()
	updated.MaxVacancy = maxVacancy
	if err := s.graph.ReplaceIndex(&updated); err != nil {
		return nil, err
	}
	s.logger.Info("vacancy changed", zap.String("index", indexNumber), zap.Int("from", index.MaxVacancy), zap.Int("to", maxVacancy))
	return &AllocationResult{Vacancy: &models.IndexVacancy{Number: updated.Number}}, nil
}

// ChangeIndex moves a student's registration to another index of the same
// course. The moved registration takes a seat immediately, so the target
// must have one free.
func (s *RegistrationService) ChangeIndex(req ChangeIndexRequest) (result *AllocationResult, err error) {
	s.begin()
	defer func() { s.end(result) }()
	defer func() { s.recordRejection(err) }()

	if req.From == req.To {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target index must differ from the current one")
	}
	reg, err := s.registrationIn(req.Student, req.From)
	if err != nil {
		return nil, err
	}
	target, err := s.index(req.To)
	if err != nil {
		return nil, err
	}
	if target.CourseCode != reg.Key.Course {
		return nil, appErrors.Clonef(appErrors.ErrCourseMismatch, "index %s belongs to %s, not %s", target.Number, target.CourseCode, reg.Key.Course)
	}
	if s.graph.CountRegistered(target.Number) >= target.MaxVacancy {
		return nil, appErrors.Clonef(appErrors.ErrVacancyFull, "index %s has no vacancy", target.Number)
	}
	if reg.Status == models.StatusWaitlist {
		course, err := s.course(reg.Key.Course)
		if err != nil {
			return nil, err
		}
		if err := s.checkAU(req.Student, course.AU); err != nil {
			return nil, err
		}
	}
	if err := s.checkClash(req.Student, reg.Key.Course, target); err != nil {
		return nil, err
	}

	moved := reg.Clone()
	moved.IndexNumber = target.Number
	moved.RegisteredAt = s.now()
	moved.Status = models.StatusRegistered
	if err := s.graph.ReplaceRegistration(&moved); err != nil {
		return nil, err
	}
	s.record(OutcomeIndexChange)
	s.notify(req.Student, fmt.Sprintf("Index changed for %s", moved.Key.Course), fmt.Sprintf("You moved from index %s to index %s.", req.From, req.To))
	return &AllocationResult{Registrations: []models.Registration{moved}}, nil
}

// Swap exchanges the seats of two students. Both registrations must hold a
// seat. The courses may differ, in which case each student ends up in the
// other's course; both AU caps are checked before anything moves.
func (s *RegistrationService) Swap(req SwapRequest) (result *AllocationResult, err error) {
	s.begin()
	defer func() { s.end(result) }()
	defer func() { s.recordRejection(err) }()

	if req.Student == req.PeerStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot swap with yourself")
	}
	mine, err := s.registrationIn(req.Student, req.Index)
	if err != nil {
		return nil, err
	}
	theirs, err := s.registrationIn(req.PeerStudent, req.PeerIndex)
	if err != nil {
		return nil, err
	}
	for _, r := range []*models.Registration{mine, theirs} {
		if r.Status != models.StatusRegistered {
			return nil, appErrors.Clonef(appErrors.ErrInvalidTransition, "%s is %s; only registered seats can be swapped", r.Key, r.Status)
		}
	}
	if err := s.checkSwapSide(mine, theirs); err != nil {
		return nil, err
	}
	if err := s.checkSwapSide(theirs, mine); err != nil {
		return nil, err
	}

	mineKey, theirsKey := mine.Key, theirs.Key
	keys := []models.RegistrationKey{theirsKey, mineKey}
	if !s.graph.Registrations.RekeyAll(keys, func(k models.RegistrationKey) models.RegistrationKey {
		if k == mineKey {
			return k.WithStudent(req.PeerStudent)
		}
		return k.WithStudent(req.Student)
	}) {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "swap of %s and %s was rejected", mineKey, theirsKey)
	}

	s.record(OutcomeSwapped)
	s.notify(req.Student, "Index swapped", fmt.Sprintf("You now hold index %s of %s.", theirs.IndexNumber, theirs.Key.Course))
	s.notify(req.PeerStudent, "Index swapped", fmt.Sprintf("You now hold index %s of %s.", mine.IndexNumber, mine.Key.Course))
	return &AllocationResult{Registrations: []models.Registration{theirs.Clone(), mine.Clone()}}, nil
}

// checkSwapSide verifies that the owner of from can take over to.
func (s *RegistrationService) checkSwapSide(from, to *models.Registration) error {
	student := from.Key.Student
	if to.Key.Course != from.Key.Course {
		if existing, ok := s.graph.Registrations.Get(models.RegistrationKey{Student: student, Course: to.Key.Course}); ok {
			return appErrors.Clonef(appErrors.ErrConflict, "%s already holds index %s of %s", student, existing.IndexNumber, to.Key.Course)
		}
		gain, err := s.course(to.Key.Course)
		if err != nil {
			return err
		}
		loss, err := s.course(from.Key.Course)
		if err != nil {
			return err
		}
		if err := s.checkAU(student, gain.AU-loss.AU); err != nil {
			return err
		}
	}
	target, err := s.index(to.IndexNumber)
	if err != nil {
		return err
	}
	return s.checkClash(student, from.Key.Course, target)
}

// Vacancy returns the seat summary of an index.
func (s *RegistrationService) Vacancy(indexNumber string) (*models.IndexVacancy, error) {
	v, ok := s.graph.Vacancy(indexNumber)
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", indexNumber)
	}
	return &v, nil
}

// ListByIndex returns the registrations of an index in allocation order.
func (s *RegistrationService) ListByIndex(indexNumber string) ([]models.Registration, error) {
	if !s.graph.Indexes.Contains(indexNumber) {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", indexNumber)
	}
	return s.graph.RegOfIndex(indexNumber), nil
}

// ListByCourse returns the registrations across all indexes of a course.
func (s *RegistrationService) ListByCourse(code string) ([]models.Registration, error) {
	code = models.NormalizeCourseCode(code)
	if !s.graph.Courses.Contains(code) {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", code)
	}
	return s.graph.RegOfCourseCode(code), nil
}

// ListByStudent returns a student's registrations ordered by course.
func (s *RegistrationService) ListByStudent(username string) ([]models.Registration, error) {
	if !s.graph.Students.Contains(username) {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", username)
	}
	return s.graph.RegOfStudent(username), nil
}

func (s *RegistrationService) index(number string) (*models.CourseIndex, error) {
	index, ok := s.graph.Indexes.Get(strings.TrimSpace(number))
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", number)
	}
	return index, nil
}

func (s *RegistrationService) course(code string) (*models.Course, error) {
	course, ok := s.graph.Courses.Get(code)
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", code)
	}
	return course, nil
}

// registrationIn finds the live registration a student holds in an index.
func (s *RegistrationService) registrationIn(student, indexNumber string) (*models.Registration, error) {
	index, err := s.index(indexNumber)
	if err != nil {
		return nil, err
	}
	reg, ok := s.graph.Registrations.Get(models.RegistrationKey{Student: student, Course: index.CourseCode})
	if !ok || reg.IndexNumber != index.Number {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "%s is not registered in index %s", student, index.Number)
	}
	return reg, nil
}

func (s *RegistrationService) checkAU(student string, extra float64) error {
	current := s.graph.RegisteredAU(student)
	if current+extra > s.cfg.MaxAU {
		return appErrors.Clonef(appErrors.ErrAUCapExceeded, "%s holds %g AU; adding %g exceeds the cap of %g", student, current, extra, s.cfg.MaxAU)
	}
	return nil
}

func (s *RegistrationService) checkClash(student, skipCourse string, target *models.CourseIndex) error {
	taken := s.graph.StudentSchedules(student, skipCourse)
	for _, want := range target.Schedules {
		for _, have := range taken {
			if want.Clashes(have) {
				return appErrors.Clonef(appErrors.ErrConflict, "index %s %s on %s clashes with an existing class at %s", target.Number, want.Type, want.Day, have.Begin)
			}
		}
	}
	return nil
}

func (s *RegistrationService) begin() {
	if s.depth == 0 {
		s.promoted = nil
	}
	s.depth++
}

// end settles dirty indexes once the outermost operation returns and hands
// the promotions to result.
func (s *RegistrationService) end(result *AllocationResult) {
	s.depth--
	if s.depth > 0 {
		return
	}
	s.settle()
	if result != nil {
		result.Promoted = s.promoted
		if result.Vacancy != nil {
			if v, ok := s.graph.Vacancy(result.Vacancy.Number); ok {
				result.Vacancy = &v
			}
		}
	}
	s.promoted = nil
}

func (s *RegistrationService) markDirty(indexNumber string) {
	s.dirty[indexNumber] = struct{}{}
	if s.depth == 0 {
		s.settle()
	}
}

// markWaitlistsOf queues every index where username waits. Their registered
// AU just went down, so a skipped candidate may fit now.
func (s *RegistrationService) markWaitlistsOf(username string) {
	if !s.graph.Students.Contains(username) {
		return
	}
	s.begin()
	defer s.end(nil)
	for _, r := range s.graph.RegOfStudent(username) {
		if r.Status == models.StatusWaitlist {
			s.markDirty(r.IndexNumber)
		}
	}
}

// courseAUDropped refills the indexes of a cheaper course, and the waitlists
// of every student holding a seat in it.
func (s *RegistrationService) courseAUDropped(code string) {
	s.begin()
	defer s.end(nil)
	for _, index := range s.graph.IndexesOfCourse(code) {
		s.markDirty(index.Number)
	}
	for _, r := range s.graph.RegOfCourseCode(code) {
		if r.Status == models.StatusRegistered {
			s.markWaitlistsOf(r.Key.Student)
		}
	}
}

func (s *RegistrationService) settle() {
	if s.settling {
		return
	}
	s.settling = true
	defer func() { s.settling = false }()
	for len(s.dirty) > 0 {
		numbers := make([]string, 0, len(s.dirty))
		for n := range s.dirty {
			numbers = append(numbers, n)
		}
		clear(s.dirty)
		slices.Sort(numbers)
		for _, n := range numbers {
			s.fill(n)
		}
	}
}

// fill promotes waitlisted registrations of an index, first come first
// served, until its seats run out. A candidate whose promotion would breach
// the AU cap keeps its place and the next one is tried.
func (s *RegistrationService) fill(indexNumber string) {
	index, ok := s.graph.Indexes.Get(indexNumber)
	if !ok {
		return
	}
	free := index.MaxVacancy - s.graph.CountRegistered(indexNumber)
	for _, candidate := range s.graph.Waitlist(indexNumber) {
		if free <= 0 {
			return
		}
		course, ok := s.graph.Courses.Get(candidate.Key.Course)
		if !ok || !s.graph.Students.Contains(candidate.Key.Student) {
			continue
		}
		if s.checkAU(candidate.Key.Student, course.AU) != nil {
			s.record(OutcomeSkipped)
			s.logger.Debug("waitlist candidate skipped over AU cap", zap.String("student", candidate.Key.Student), zap.String("index", indexNumber))
			continue
		}
		promoted := candidate
		if err := promoted.Promote(); err != nil {
			continue
		}
		if _, _, err := s.graph.Registrations.Add(&promoted); err != nil {
			s.logger.Error("promotion rejected", zap.String("registration", promoted.Key.String()), zap.Error(err))
			continue
		}
		free--
		s.promoted = append(s.promoted, promoted.Clone())
		s.record(OutcomePromoted)
		s.notify(promoted.Key.Student, fmt.Sprintf("Seat confirmed for %s", promoted.Key.Course), fmt.Sprintf("You were moved off the waitlist into index %s of %s.", indexNumber, promoted.Key.Course))
		s.logger.Info("waitlist promotion", zap.String("student", promoted.Key.Student), zap.String("index", indexNumber))
	}
}

func (s *RegistrationService) notify(username, subject, message string) {
	if s.notifier == nil {
		return
	}
	user, ok := s.graph.Users.Get(username)
	if !ok {
		return
	}
	s.notifier.Notify(user.Clone(), subject, message)
}

func (s *RegistrationService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAllocation(outcome)
	}
}

func (s *RegistrationService) recordRejection(err error) {
	if err != nil {
		s.record(OutcomeRejected)
	}
}
