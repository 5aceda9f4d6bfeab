package graph

import (
	"slices"

	"github.com/noah-isme/course-reg-api/internal/models"
)

// IndexesOfCourse returns copies of the indexes of a course, by number.
func (g *Graph) IndexesOfCourse(code string) []models.CourseIndex {
	numbers := g.indexesByCourse.Children(models.NormalizeCourseCode(code))
	out := make([]models.CourseIndex, 0, len(numbers))
	for _, number := range numbers {
		if index, ok := g.Indexes.Get(number); ok {
			out = append(out, index.Clone())
		}
	}
	return out
}

// RegOfIndex returns copies of the registrations of an index in allocation
// order.
func (g *Graph) RegOfIndex(number string) []models.Registration {
	return g.collect(g.regsByIndex.Children(number), models.CompareRegistrations)
}

// RegOfStudent returns copies of a student's registrations ordered by course.
func (g *Graph) RegOfStudent(username string) []models.Registration {
	return g.collect(g.regsByStudent.Children(username), func(a, b *models.Registration) int {
		return models.CompareRegistrationKeys(a.Key, b.Key)
	})
}

// RegOfCourseCode returns copies of the registrations across every index of
// a course in allocation order.
func (g *Graph) RegOfCourseCode(code string) []models.Registration {
	var keys []models.RegistrationKey
	for _, number := range g.indexesByCourse.Children(models.NormalizeCourseCode(code)) {
		keys = append(keys, g.regsByIndex.Children(number)...)
	}
	return g.collect(keys, models.CompareRegistrations)
}

func (g *Graph) collect(keys []models.RegistrationKey, compare func(a, b *models.Registration) int) []models.Registration {
	live := make([]*models.Registration, 0, len(keys))
	for _, key := range keys {
		if r, ok := g.Registrations.Get(key); ok {
			live = append(live, r)
		}
	}
	slices.SortFunc(live, compare)
	out := make([]models.Registration, len(live))
	for i, r := range live {
		out[i] = r.Clone()
	}
	return out
}

// CountRegistered returns the number of REGISTERED seats of an index.
func (g *Graph) CountRegistered(number string) int {
	count := 0
	for _, key := range g.regsByIndex.Children(number) {
		if r, ok := g.Registrations.Get(key); ok && r.Status == models.StatusRegistered {
			count++
		}
	}
	return count
}

// Waitlist returns copies of the waitlisted registrations of an index, first
// in line first.
func (g *Graph) Waitlist(number string) []models.Registration {
	regs := g.RegOfIndex(number)
	out := regs[:0]
	for _, r := range regs {
		if r.Status == models.StatusWaitlist {
			out = append(out, r)
		}
	}
	return out
}

// RegisteredAU sums the AU of the courses a student holds a REGISTERED seat
// in. Waitlisted registrations do not count.
func (g *Graph) RegisteredAU(username string) float64 {
	var total float64
	for _, key := range g.regsByStudent.Children(username) {
		r, ok := g.Registrations.Get(key)
		if !ok || r.Status != models.StatusRegistered {
			continue
		}
		if course, ok := g.Courses.Get(r.Key.Course); ok {
			total += course.AU
		}
	}
	return total
}

// Vacancy summarises the seats of an index.
func (g *Graph) Vacancy(number string) (models.IndexVacancy, bool) {
	index, ok := g.Indexes.Get(number)
	if !ok {
		return models.IndexVacancy{}, false
	}
	v := models.IndexVacancy{
		Number:     index.Number,
		CourseCode: index.CourseCode,
		MaxVacancy: index.MaxVacancy,
	}
	for _, key := range g.regsByIndex.Children(number) {
		r, ok := g.Registrations.Get(key)
		if !ok {
			continue
		}
		if r.Status == models.StatusRegistered {
			v.Registered++
		} else {
			v.Waitlisted++
		}
	}
	v.Available = max(index.MaxVacancy-v.Registered, 0)
	return v, true
}

// StudentSchedules returns the class slots of every index the student holds
// a registration in, skipping the given course.
func (g *Graph) StudentSchedules(username, skipCourse string) []models.Schedule {
	var out []models.Schedule
	for _, key := range g.regsByStudent.Children(username) {
		if key.Course == skipCourse {
			continue
		}
		r, ok := g.Registrations.Get(key)
		if !ok {
			continue
		}
		if index, ok := g.Indexes.Get(r.IndexNumber); ok {
			for _, s := range index.Schedules {
				out = append(out, s.Clone())
			}
		}
	}
	return out
}
