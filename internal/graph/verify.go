package graph

import (
	"fmt"

	"github.com/noah-isme/course-reg-api/internal/models"
)

// Verify walks the whole graph and reports every broken reference. A
// non-positive maxAU skips the AU cap check.
func (g *Graph) Verify(maxAU float64) []error {
	var problems []error
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	g.Students.Each(func(username string, s *models.Student) bool {
		user, ok := g.Users.Get(username)
		switch {
		case !ok:
			report("student %s has no user", username)
		case user.Domain != models.DomainStudent:
			report("student %s belongs to a %s user", username, user.Domain)
		}
		if maxAU > 0 {
			if au := g.RegisteredAU(username); au > maxAU {
				report("student %s holds %.1f AU, above the cap of %.1f", username, au, maxAU)
			}
		}
		return true
	})

	g.Indexes.Each(func(number string, i *models.CourseIndex) bool {
		if !g.Courses.Contains(i.CourseCode) {
			report("index %s refers to missing course %s", number, i.CourseCode)
		}
		if !g.indexesByCourse.Has(i.CourseCode, number) {
			report("index %s is not linked to course %s", number, i.CourseCode)
		}
		return true
	})

	g.Registrations.Each(func(key models.RegistrationKey, r *models.Registration) bool {
		if r.Dropped {
			report("registration %s is dropped but still stored", key)
		}
		if !g.Students.Contains(key.Student) {
			report("registration %s refers to missing student", key)
		}
		index, ok := g.Indexes.Get(r.IndexNumber)
		switch {
		case !ok:
			report("registration %s refers to missing index %s", key, r.IndexNumber)
		case index.CourseCode != key.Course:
			report("registration %s uses index %s of course %s", key, r.IndexNumber, index.CourseCode)
		}
		if !g.regsByIndex.Has(r.IndexNumber, key) || !g.regsByStudent.Has(key.Student, key) {
			report("registration %s is missing from the relation indexes", key)
		}
		return true
	})

	return problems
}
