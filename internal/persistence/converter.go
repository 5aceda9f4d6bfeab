package persistence

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/course-reg-api/internal/models"
)

// Converter maps one entity type to positional string rows. Both
// directions report false for rows that must be skipped.
type Converter[V any] interface {
	Header() []string
	ToRow(V) ([]string, bool)
	FromRow([]string) (V, bool)
}

// field returns row[i], or "" when the row is short.
func field(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// UserConverter stores users with their password hash.
type UserConverter struct{}

func (UserConverter) Header() []string {
	return []string{"username", "password_hash", "domain", "email", "phone"}
}

func (UserConverter) ToRow(u *models.User) ([]string, bool) {
	return []string{u.Username, u.PasswordHash, string(u.Domain), u.Email, u.Phone}, true
}

func (UserConverter) FromRow(row []string) (*models.User, bool) {
	domain, err := models.ParseDomain(field(row, 2))
	if err != nil || field(row, 0) == "" {
		return nil, false
	}
	return &models.User{
		Username:     field(row, 0),
		PasswordHash: field(row, 1),
		Domain:       domain,
		Email:        field(row, 3),
		Phone:        field(row, 4),
	}, true
}

// StudentConverter stores student records keyed by username.
type StudentConverter struct{}

func (StudentConverter) Header() []string {
	return []string{"username", "matric_no", "gender", "full_name", "nationality", "year", "programme"}
}

func (StudentConverter) ToRow(s *models.Student) ([]string, bool) {
	return []string{s.Username, s.MatricNo, s.Gender, s.FullName, s.Nationality, strconv.Itoa(s.Year), s.Programme}, true
}

func (StudentConverter) FromRow(row []string) (*models.Student, bool) {
	year, err := strconv.Atoi(field(row, 5))
	if err != nil || field(row, 0) == "" {
		return nil, false
	}
	return &models.Student{
		Username:    field(row, 0),
		MatricNo:    field(row, 1),
		Gender:      strings.ToUpper(field(row, 2)),
		FullName:    field(row, 3),
		Nationality: field(row, 4),
		Year:        year,
		Programme:   field(row, 6),
	}, true
}

// CourseConverter stores courses.
type CourseConverter struct{}

func (CourseConverter) Header() []string {
	return []string{"code", "name", "school", "au"}
}

func (CourseConverter) ToRow(c *models.Course) ([]string, bool) {
	return []string{c.Code, c.Name, c.School, formatFloat(c.AU)}, true
}

func (CourseConverter) FromRow(row []string) (*models.Course, bool) {
	au, err := strconv.ParseFloat(field(row, 3), 64)
	if err != nil || field(row, 0) == "" {
		return nil, false
	}
	return &models.Course{
		Code:   models.NormalizeCourseCode(field(row, 0)),
		Name:   field(row, 1),
		School: field(row, 2),
		AU:     au,
	}, true
}

// IndexConverter stores indexes without their schedules, which have a
// table of their own.
type IndexConverter struct{}

func (IndexConverter) Header() []string {
	return []string{"number", "course_code", "max_vacancy"}
}

func (IndexConverter) ToRow(i *models.CourseIndex) ([]string, bool) {
	return []string{i.Number, i.CourseCode, strconv.Itoa(i.MaxVacancy)}, true
}

func (IndexConverter) FromRow(row []string) (*models.CourseIndex, bool) {
	maxVacancy, err := strconv.Atoi(field(row, 2))
	if err != nil || field(row, 0) == "" {
		return nil, false
	}
	return &models.CourseIndex{
		Number:     field(row, 0),
		CourseCode: models.NormalizeCourseCode(field(row, 1)),
		MaxVacancy: maxVacancy,
	}, true
}

// IndexSchedule is one schedule row with the index it belongs to.
type IndexSchedule struct {
	IndexNumber string
	Schedule    models.Schedule
}

// ScheduleConverter stores schedules one per row.
type ScheduleConverter struct{}

func (ScheduleConverter) Header() []string {
	return []string{"index_number", "type", "group", "day", "venue", "remark", "begin", "end", "weeks"}
}

func (ScheduleConverter) ToRow(s IndexSchedule) ([]string, bool) {
	sc := s.Schedule
	return []string{
		s.IndexNumber, string(sc.Type), sc.Group, sc.Day.String(), sc.Venue, sc.Remark,
		sc.Begin.String(), sc.End.String(), models.FormatWeeks(sc.Weeks),
	}, true
}

func (ScheduleConverter) FromRow(row []string) (IndexSchedule, bool) {
	number := field(row, 0)
	if number == "" {
		return IndexSchedule{}, false
	}
	classType, err := models.ParseClassType(field(row, 1))
	if err != nil {
		return IndexSchedule{}, false
	}
	day, err := models.ParseWeekday(field(row, 3))
	if err != nil {
		return IndexSchedule{}, false
	}
	begin, err := models.ParseClockTime(field(row, 6))
	if err != nil {
		return IndexSchedule{}, false
	}
	end, err := models.ParseClockTime(field(row, 7))
	if err != nil {
		return IndexSchedule{}, false
	}
	weeks, err := models.ParseWeeks(field(row, 8))
	if err != nil {
		return IndexSchedule{}, false
	}
	sc, err := models.NewSchedule(classType, field(row, 2), day, field(row, 4), field(row, 5), begin, end, weeks)
	if err != nil {
		return IndexSchedule{}, false
	}
	return IndexSchedule{IndexNumber: number, Schedule: sc}, true
}

// RegistrationConverter stores live registrations. Dropped ones are never
// written.
type RegistrationConverter struct{}

func (RegistrationConverter) Header() []string {
	return []string{"student", "course_code", "index_number", "registered_at", "status"}
}

func (RegistrationConverter) ToRow(r *models.Registration) ([]string, bool) {
	if r.Dropped {
		return nil, false
	}
	return []string{
		r.Key.Student, r.Key.Course, r.IndexNumber,
		r.RegisteredAt.UTC().Format(time.RFC3339Nano), string(r.Status),
	}, true
}

func (RegistrationConverter) FromRow(row []string) (*models.Registration, bool) {
	at, err := time.Parse(time.RFC3339Nano, field(row, 3))
	if err != nil {
		return nil, false
	}
	status, err := models.ParseRegistrationStatus(field(row, 4))
	if err != nil {
		return nil, false
	}
	r, err := models.NewRegistration(field(row, 0), field(row, 1), field(row, 2), at, status)
	if err != nil {
		return nil, false
	}
	return r, true
}
