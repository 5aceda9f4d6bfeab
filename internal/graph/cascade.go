package graph

import (
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/store"
)

// wire subscribes the cascade handlers. Relation bookkeeping for a store is
// registered before any cascade that reads the relation.
func (g *Graph) wire() {
	g.Registrations.Subscribe(&store.Funcs[models.RegistrationKey, *models.Registration]{
		OnAdded:      g.linkRegistration,
		OnReplaced:   g.relinkRegistration,
		OnRemoved:    g.detachRegistration,
		OnKeyChanged: g.rekeyRegistration,
	})
	g.Indexes.Subscribe(&store.Funcs[string, *models.CourseIndex]{
		OnAdded:      g.linkIndex,
		OnReplaced:   g.relinkIndex,
		OnRemoved:    g.indexRemoved,
		OnKeyChanged: g.indexRekeyed,
	})
	g.Courses.Subscribe(&store.Funcs[string, *models.Course]{
		OnRemoved:    g.courseRemoved,
		OnKeyChanged: g.courseRekeyed,
	})
	g.Students.Subscribe(&store.Funcs[string, *models.Student]{
		OnRemoved:    g.studentRemoved,
		OnKeyChanged: g.studentRekeyed,
	})
	g.Users.Subscribe(&store.Funcs[string, *models.User]{
		OnRemoved:    g.userRemoved,
		OnKeyChanged: g.userRekeyed,
	})
}

func (g *Graph) linkRegistration(r *models.Registration) {
	g.regsByIndex.Link(r.IndexNumber, r.Key)
	g.regsByStudent.Link(r.Key.Student, r.Key)
}

func (g *Graph) relinkRegistration(old, r *models.Registration) {
	g.regsByIndex.Unlink(old.IndexNumber, old.Key)
	g.regsByStudent.Unlink(old.Key.Student, old.Key)
	g.linkRegistration(r)
}

// detachRegistration runs for every removal, whether the student dropped the
// course or a parent entity went away.
func (g *Graph) detachRegistration(r *models.Registration) {
	g.regsByIndex.Unlink(r.IndexNumber, r.Key)
	g.regsByStudent.Unlink(r.Key.Student, r.Key)
	r.Drop()
}

// rekeyRegistration keeps a link to oldKey when another item of the same
// batch moved into it, as happens when two registrations trade students.
func (g *Graph) rekeyRegistration(oldKey models.RegistrationKey, r *models.Registration) {
	current, taken := g.Registrations.Get(oldKey)
	if !taken || current.IndexNumber != r.IndexNumber {
		g.regsByIndex.Unlink(r.IndexNumber, oldKey)
	}
	if !taken {
		g.regsByStudent.Unlink(oldKey.Student, oldKey)
	}
	g.linkRegistration(r)
}

func (g *Graph) linkIndex(i *models.CourseIndex) {
	g.indexesByCourse.Link(i.CourseCode, i.Number)
}

func (g *Graph) relinkIndex(old, i *models.CourseIndex) {
	g.indexesByCourse.Unlink(old.CourseCode, old.Number)
	g.linkIndex(i)
}

func (g *Graph) indexRemoved(i *models.CourseIndex) {
	g.indexesByCourse.Unlink(i.CourseCode, i.Number)
	keys := g.regsByIndex.Children(i.Number)
	for _, key := range keys {
		g.Registrations.Remove(key)
	}
	g.logger.Debug("index removed", zap.String("index", i.Number), zap.Int("registrations", len(keys)))
}

func (g *Graph) indexRekeyed(oldNumber string, i *models.CourseIndex) {
	g.indexesByCourse.Unlink(i.CourseCode, oldNumber)
	g.linkIndex(i)
	for _, key := range g.regsByIndex.Children(oldNumber) {
		current, ok := g.Registrations.Get(key)
		if !ok {
			continue
		}
		moved := current.Clone()
		moved.IndexNumber = i.Number
		g.mustAdd(g.Registrations.Add(&moved))
	}
}

func (g *Graph) courseRemoved(c *models.Course) {
	numbers := g.indexesByCourse.Children(c.Code)
	for _, number := range numbers {
		g.Indexes.Remove(number)
	}
	g.logger.Debug("course removed", zap.String("course", c.Code), zap.Int("indexes", len(numbers)))
}

// courseRekeyed rewrites the course code held by each index, then moves the
// course component of every registration key of those indexes.
func (g *Graph) courseRekeyed(oldCode string, c *models.Course) {
	numbers := g.indexesByCourse.Children(oldCode)
	var keys []models.RegistrationKey
	for _, number := range numbers {
		current, ok := g.Indexes.Get(number)
		if !ok {
			continue
		}
		moved := current.Clone()
		moved.CourseCode = c.Code
		g.mustAdd(g.Indexes.Add(&moved))
		keys = append(keys, g.regsByIndex.Children(number)...)
	}
	if !g.Registrations.RekeyAll(keys, func(k models.RegistrationKey) models.RegistrationKey {
		return k.WithCourse(c.Code)
	}) {
		g.logger.Error("registration rekey rejected after course rename",
			zap.String("from", oldCode), zap.String("to", c.Code), zap.Int("registrations", len(keys)))
	}
}

func (g *Graph) studentRemoved(s *models.Student) {
	for _, key := range g.regsByStudent.Children(s.Username) {
		g.Registrations.Remove(key)
	}
}

func (g *Graph) studentRekeyed(oldUsername string, s *models.Student) {
	keys := g.regsByStudent.Children(oldUsername)
	if !g.Registrations.RekeyAll(keys, func(k models.RegistrationKey) models.RegistrationKey {
		return k.WithStudent(s.Username)
	}) {
		g.logger.Error("registration rekey rejected after student rename",
			zap.String("from", oldUsername), zap.String("to", s.Username), zap.Int("registrations", len(keys)))
	}
}

func (g *Graph) userRemoved(u *models.User) {
	g.Students.Remove(u.Username)
}

func (g *Graph) userRekeyed(oldUsername string, u *models.User) {
	if !g.Students.Contains(oldUsername) {
		return
	}
	if !g.Students.Rekey(oldUsername, u.Username) {
		g.logger.Error("student rekey rejected after user rename",
			zap.String("from", oldUsername), zap.String("to", u.Username))
	}
}

// mustAdd logs replacements that the store refused. Cascades only replace
// items that are known to be valid, so this never fires in a consistent graph.
func (g *Graph) mustAdd(_ any, _ bool, err error) {
	if err != nil {
		g.logger.Error("cascade replacement rejected", zap.Error(err))
	}
}
