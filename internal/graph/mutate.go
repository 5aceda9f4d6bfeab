package graph

import (
	"strings"

	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

func (g *Graph) validate(v interface{}) error {
	if err := g.validator.Struct(v); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return nil
}

// AddUser inserts or replaces a user. A user that owns a student record
// cannot leave the STUDENT domain.
func (g *Graph) AddUser(u *models.User) error {
	if err := g.validate(u); err != nil {
		return err
	}
	if u.Domain != models.DomainStudent && g.Students.Contains(u.Username) {
		return appErrors.Clonef(appErrors.ErrValidation, "user %s has a student record and must stay %s", u.Username, models.DomainStudent)
	}
	_, _, err := g.Users.Add(u)
	return err
}

// AddStudent inserts or replaces a student. The owning user must exist in
// the STUDENT domain.
func (g *Graph) AddStudent(s *models.Student) error {
	if err := g.validate(s); err != nil {
		return err
	}
	user, ok := g.Users.Get(s.Username)
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "user %s not found", s.Username)
	}
	if user.Domain != models.DomainStudent {
		return appErrors.Clonef(appErrors.ErrValidation, "user %s is not in the %s domain", s.Username, models.DomainStudent)
	}
	_, _, err := g.Students.Add(s)
	return err
}

// AddCourse inserts or replaces a course. The code is normalised first.
func (g *Graph) AddCourse(c *models.Course) error {
	c.Code = models.NormalizeCourseCode(c.Code)
	if err := g.validate(c); err != nil {
		return err
	}
	_, _, err := g.Courses.Add(c)
	return err
}

// AddIndex stores a new index under an existing course. Index numbers are
// unique across all courses.
func (g *Graph) AddIndex(i *models.CourseIndex) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	if existing, ok := g.Indexes.Get(i.Number); ok {
		return appErrors.Clonef(appErrors.ErrConflict, "index %s already belongs to %s", i.Number, existing.CourseCode)
	}
	_, _, err := g.Indexes.Add(i)
	return err
}

// ReplaceIndex overwrites an index in place. It cannot move the index to
// another course.
func (g *Graph) ReplaceIndex(i *models.CourseIndex) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	existing, ok := g.Indexes.Get(i.Number)
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", i.Number)
	}
	if existing.CourseCode != i.CourseCode {
		return appErrors.Clonef(appErrors.ErrCourseMismatch, "index %s belongs to %s", i.Number, existing.CourseCode)
	}
	_, _, err := g.Indexes.Add(i)
	return err
}

func (g *Graph) checkIndex(i *models.CourseIndex) error {
	i.Number = strings.TrimSpace(i.Number)
	i.CourseCode = models.NormalizeCourseCode(i.CourseCode)
	if err := g.validate(i); err != nil {
		return err
	}
	if !g.Courses.Contains(i.CourseCode) {
		return appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", i.CourseCode)
	}
	return nil
}

// CheckRegistration verifies that r may be stored: its student, course and
// index exist and the index belongs to the keyed course.
func (g *Graph) CheckRegistration(r *models.Registration) error {
	if r.Dropped {
		return appErrors.Wrap(ErrDroppedRegistration, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, ErrDroppedRegistration.Error())
	}
	if !r.Key.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "registration needs student and course")
	}
	if !g.Students.Contains(r.Key.Student) {
		return appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", r.Key.Student)
	}
	if !g.Courses.Contains(r.Key.Course) {
		return appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", r.Key.Course)
	}
	index, ok := g.Indexes.Get(r.IndexNumber)
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", r.IndexNumber)
	}
	if index.CourseCode != r.Key.Course {
		return appErrors.Clonef(appErrors.ErrCourseMismatch, "index %s belongs to %s, not %s", index.Number, index.CourseCode, r.Key.Course)
	}
	return nil
}

// AddRegistration stores a new registration. A second registration of the
// same student for the same course is a conflict.
func (g *Graph) AddRegistration(r *models.Registration) error {
	if err := g.CheckRegistration(r); err != nil {
		return err
	}
	if g.Registrations.Contains(r.Key) {
		return appErrors.Clonef(appErrors.ErrConflict, "%s is already registered for %s", r.Key.Student, r.Key.Course)
	}
	_, _, err := g.Registrations.Add(r)
	return err
}

// ReplaceRegistration overwrites the registration stored under r.Key.
func (g *Graph) ReplaceRegistration(r *models.Registration) error {
	if err := g.CheckRegistration(r); err != nil {
		return err
	}
	if !g.Registrations.Contains(r.Key) {
		return appErrors.Clonef(appErrors.ErrNotFound, "registration %s not found", r.Key)
	}
	_, _, err := g.Registrations.Add(r)
	return err
}

// RenameUser changes a username. The student record and every registration
// key follow through the cascade.
func (g *Graph) RenameUser(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := renameCheck(oldName, newName, g.Users.Contains); err != nil {
		return err
	}
	if g.Students.Contains(newName) {
		return appErrors.Clonef(appErrors.ErrConflict, "student %s already exists", newName)
	}
	g.Users.Rekey(oldName, newName)
	return nil
}

// RenameCourse changes a course code. Indexes and registration keys follow.
func (g *Graph) RenameCourse(oldCode, newCode string) error {
	oldCode = models.NormalizeCourseCode(oldCode)
	newCode = models.NormalizeCourseCode(newCode)
	if err := renameCheck(oldCode, newCode, g.Courses.Contains); err != nil {
		return err
	}
	g.Courses.Rekey(oldCode, newCode)
	return nil
}

// RenameIndex changes an index number. Registrations follow.
func (g *Graph) RenameIndex(oldNumber, newNumber string) error {
	newNumber = strings.TrimSpace(newNumber)
	if err := renameCheck(oldNumber, newNumber, g.Indexes.Contains); err != nil {
		return err
	}
	g.Indexes.Rekey(oldNumber, newNumber)
	return nil
}

func renameCheck(oldKey, newKey string, contains func(string) bool) error {
	if newKey == "" {
		return appErrors.Clone(appErrors.ErrValidation, "new key is required")
	}
	if oldKey == newKey {
		return appErrors.Clone(appErrors.ErrValidation, "new key must differ from the current one")
	}
	if !contains(oldKey) {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s not found", oldKey)
	}
	if contains(newKey) {
		return appErrors.Clonef(appErrors.ErrConflict, "%s already exists", newKey)
	}
	return nil
}

// RemoveUser deletes a user and, through the cascade, its student record and
// registrations.
func (g *Graph) RemoveUser(username string) error {
	if _, ok := g.Users.Remove(username); !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "user %s not found", username)
	}
	return nil
}

// RemoveCourse deletes a course with its indexes and registrations.
func (g *Graph) RemoveCourse(code string) error {
	code = models.NormalizeCourseCode(code)
	if _, ok := g.Courses.Remove(code); !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "course %s not found", code)
	}
	return nil
}

// RemoveIndex deletes an index with its registrations.
func (g *Graph) RemoveIndex(number string) error {
	if _, ok := g.Indexes.Remove(number); !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", number)
	}
	return nil
}
