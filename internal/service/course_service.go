package service

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/dto"
	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

// CreateCourseRequest represents payload for creating a course.
type CreateCourseRequest struct {
	Code   string  `json:"code" validate:"required,max=16"`
	Name   string  `json:"name" validate:"required"`
	School string  `json:"school"`
	AU     float64 `json:"au" validate:"gte=0,lte=30"`
}

// UpdateCourseRequest replaces the descriptive fields of a course.
type UpdateCourseRequest struct {
	Name   string  `json:"name" validate:"required"`
	School string  `json:"school"`
	AU     float64 `json:"au" validate:"gte=0,lte=30"`
}

// CreateIndexRequest represents payload for adding an index to a course.
type CreateIndexRequest struct {
	Number     string `json:"number" validate:"required,max=16"`
	CourseCode string `json:"course_code" validate:"required"`
	MaxVacancy int    `json:"max_vacancy" validate:"gte=0"`
}

// ScheduleRequest describes one teaching slot in wire form.
type ScheduleRequest struct {
	Type   string `json:"type" validate:"required"`
	Group  string `json:"group"`
	Day    string `json:"day" validate:"required"`
	Venue  string `json:"venue"`
	Remark string `json:"remark"`
	Begin  string `json:"begin" validate:"required"`
	End    string `json:"end" validate:"required"`
	Weeks  []int  `json:"weeks" validate:"required,min=1"`
}

// CourseServiceConfig carries the AU cap enforced on course updates.
type CourseServiceConfig struct {
	MaxAU float64
}

// CourseService manages courses, indexes and schedules.
type CourseService struct {
	graph     *graph.Graph
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CourseServiceConfig
}

// NewCourseService creates an instance of CourseService.
func NewCourseService(g *graph.Graph, validate *validator.Validate, logger *zap.Logger, cfg CourseServiceConfig) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxAU <= 0 {
		cfg.MaxAU = DefaultMaxAU
	}
	return &CourseService{graph: g, validator: validate, logger: logger, cfg: cfg}
}

// List returns every course in code order.
func (s *CourseService) List() []models.Course {
	courses := s.graph.Courses.Items()
	out := make([]models.Course, len(courses))
	for i, c := range courses {
		out[i] = c.Clone()
	}
	return out
}

// Get returns a course with its indexes and their vacancies.
func (s *CourseService) Get(code string) (*dto.CourseDetail, error) {
	course, ok := s.graph.Courses.Get(models.NormalizeCourseCode(code))
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", code)
	}
	detail := &dto.CourseDetail{Course: course.Clone(), Indexes: []dto.IndexDetail{}}
	for _, index := range s.graph.IndexesOfCourse(course.Code) {
		vacancy, _ := s.graph.Vacancy(index.Number)
		detail.Indexes = append(detail.Indexes, dto.IndexDetail{CourseIndex: index, Vacancy: vacancy})
	}
	return detail, nil
}

// Create adds a new course.
func (s *CourseService) Create(req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	code := models.NormalizeCourseCode(req.Code)
	if s.graph.Courses.Contains(code) {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "course %s already exists", code)
	}
	course := &models.Course{Code: code, Name: strings.TrimSpace(req.Name), School: strings.TrimSpace(req.School), AU: req.AU}
	if err := s.graph.AddCourse(course); err != nil {
		return nil, err
	}
	s.logger.Info("course created", zap.String("code", code))
	out := course.Clone()
	return &out, nil
}

// Update replaces the name, school and AU of a course. Raising the AU is
// refused when it would take a registered student over the cap.
func (s *CourseService) Update(code string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	existing, ok := s.graph.Courses.Get(models.NormalizeCourseCode(code))
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", code)
	}
	if delta := req.AU - existing.AU; delta > 0 {
		for _, reg := range s.graph.RegOfCourseCode(existing.Code) {
			if reg.Status != models.StatusRegistered {
				continue
			}
			if s.graph.RegisteredAU(reg.Key.Student)+delta > s.cfg.MaxAU {
				return nil, appErrors.Clonef(appErrors.ErrAUCapExceeded, "raising %s to %g AU takes %s over %g AU", existing.Code, req.AU, reg.Key.Student, s.cfg.MaxAU)
			}
		}
	}
	updated := existing.Clone()
	updated.Name = strings.TrimSpace(req.Name)
	updated.School = strings.TrimSpace(req.School)
	updated.AU = req.AU
	if err := s.graph.AddCourse(&updated); err != nil {
		return nil, err
	}
	s.logger.Info("course updated", zap.String("code", updated.Code))
	out := updated.Clone()
	return &out, nil
}

// Delete removes a course with its indexes and registrations.
func (s *CourseService) Delete(code string) error {
	if err := s.graph.RemoveCourse(code); err != nil {
		return err
	}
	s.logger.Info("course deleted", zap.String("code", code))
	return nil
}

// Rename changes a course code; indexes and registrations follow.
func (s *CourseService) Rename(oldCode, newCode string) error {
	if err := s.graph.RenameCourse(oldCode, newCode); err != nil {
		return err
	}
	s.logger.Info("course renamed", zap.String("from", oldCode), zap.String("to", newCode))
	return nil
}

// Indexes returns the indexes of a course with their vacancies.
func (s *CourseService) Indexes(code string) ([]dto.IndexDetail, error) {
	detail, err := s.Get(code)
	if err != nil {
		return nil, err
	}
	return detail.Indexes, nil
}

// GetIndex returns one index with its vacancy.
func (s *CourseService) GetIndex(number string) (*dto.IndexDetail, error) {
	index, ok := s.graph.Indexes.Get(number)
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", number)
	}
	vacancy, _ := s.graph.Vacancy(number)
	return &dto.IndexDetail{CourseIndex: index.Clone(), Vacancy: vacancy}, nil
}

// CreateIndex adds an index to an existing course.
func (s *CourseService) CreateIndex(req CreateIndexRequest) (*dto.IndexDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid index payload")
	}
	index := &models.CourseIndex{Number: req.Number, CourseCode: req.CourseCode, MaxVacancy: req.MaxVacancy}
	if err := s.graph.AddIndex(index); err != nil {
		return nil, err
	}
	s.logger.Info("index created", zap.String("index", index.Number), zap.String("course", index.CourseCode))
	return s.GetIndex(index.Number)
}

// DeleteIndex removes an index and its registrations. Other indexes of the
// course are not refilled.
func (s *CourseService) DeleteIndex(number string) error {
	if err := s.graph.RemoveIndex(number); err != nil {
		return err
	}
	s.logger.Info("index deleted", zap.String("index", number))
	return nil
}

// RenameIndex changes an index number; registrations follow.
func (s *CourseService) RenameIndex(oldNumber, newNumber string) error {
	if err := s.graph.RenameIndex(oldNumber, newNumber); err != nil {
		return err
	}
	s.logger.Info("index renamed", zap.String("from", oldNumber), zap.String("to", newNumber))
	return nil
}

// AddSchedule appends a teaching slot to an index. The slot may not clash
// with the index's own schedule.
func (s *CourseService) AddSchedule(number string, req ScheduleRequest) (*dto.IndexDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	sc, err := parseSchedule(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	index, ok := s.graph.Indexes.Get(number)
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", number)
	}
	for _, have := range index.Schedules {
		if have.Clashes(sc) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "%s %s clashes with %s %s of index %s", sc.Type, sc.Day, have.Type, have.Day, number)
		}
	}
	updated := index.Clone()
	updated.Schedules = append(updated.Schedules, sc)
	if err := s.graph.ReplaceIndex(&updated); err != nil {
		return nil, err
	}
	s.logger.Info("schedule added", zap.String("index", number), zap.String("type", string(sc.Type)))
	return s.GetIndex(number)
}

func parseSchedule(req ScheduleRequest) (models.Schedule, error) {
	classType, err := models.ParseClassType(req.Type)
	if err != nil {
		return models.Schedule{}, err
	}
	day, err := models.ParseWeekday(req.Day)
	if err != nil {
		return models.Schedule{}, err
	}
	begin, err := models.ParseClockTime(req.Begin)
	if err != nil {
		return models.Schedule{}, err
	}
	end, err := models.ParseClockTime(req.End)
	if err != nil {
		return models.Schedule{}, err
	}
	return models.NewSchedule(classType, req.Group, day, req.Venue, req.Remark, begin, end, req.Weeks)
}
