// Package graph composes the entity stores into one consistent registration
// graph. The stores never reference each other directly: every cascade is a
// subscription on a store's change bus.
package graph

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/store"
)

// ErrDroppedRegistration refuses a dropped registration at the store boundary.
var ErrDroppedRegistration = errors.New("dropped registration cannot be stored")

// Graph holds the entity stores and the relation indexes between them.
//
// Users, Students, Courses and Indexes iterate in key order. Registrations
// iterate in insertion order. Graph is not safe for concurrent use.
type Graph struct {
	Users         *store.Store[string, *models.User]
	Students      *store.Store[string, *models.Student]
	Courses       *store.Store[string, *models.Course]
	Indexes       *store.Store[string, *models.CourseIndex]
	Registrations *store.Store[models.RegistrationKey, *models.Registration]

	indexesByCourse *store.Relation[string, string]
	regsByIndex     *store.Relation[string, models.RegistrationKey]
	regsByStudent   *store.Relation[string, models.RegistrationKey]

	validator *validator.Validate
	logger    *zap.Logger
}

// New builds an empty, fully wired graph.
func New(validate *validator.Validate, logger *zap.Logger) *Graph {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{
		Users: store.New(store.Config[string, *models.User]{
			Name:    "users",
			KeyOf:   func(u *models.User) string { return u.Username },
			SetKey:  func(u *models.User, k string) { u.Username = k },
			Compare: strings.Compare,
		}),
		Students: store.New(store.Config[string, *models.Student]{
			Name:    "students",
			KeyOf:   func(s *models.Student) string { return s.Username },
			SetKey:  func(s *models.Student, k string) { s.Username = k },
			Compare: strings.Compare,
		}),
		Courses: store.New(store.Config[string, *models.Course]{
			Name:    "courses",
			KeyOf:   func(c *models.Course) string { return c.Code },
			SetKey:  func(c *models.Course, k string) { c.Code = k },
			Compare: strings.Compare,
		}),
		Indexes: store.New(store.Config[string, *models.CourseIndex]{
			Name:    "indexes",
			KeyOf:   func(i *models.CourseIndex) string { return i.Number },
			SetKey:  func(i *models.CourseIndex, k string) { i.Number = k },
			Compare: strings.Compare,
		}),
		Registrations: store.New(store.Config[models.RegistrationKey, *models.Registration]{
			Name:     "registrations",
			KeyOf:    func(r *models.Registration) models.RegistrationKey { return r.Key },
			SetKey:   func(r *models.Registration, k models.RegistrationKey) { r.Key = k },
			ValidKey: models.RegistrationKey.Valid,
			Admit: func(r *models.Registration) error {
				if r.Dropped {
					return ErrDroppedRegistration
				}
				return nil
			},
		}),
		indexesByCourse: store.NewRelation[string, string](strings.Compare),
		regsByIndex:     store.NewRelation[string, models.RegistrationKey](models.CompareRegistrationKeys),
		regsByStudent:   store.NewRelation[string, models.RegistrationKey](models.CompareRegistrationKeys),
		validator:       validate,
		logger:          logger,
	}
	g.wire()
	return g
}

// Stats reports the size of every store.
type Stats struct {
	Users         int `json:"users"`
	Students      int `json:"students"`
	Courses       int `json:"courses"`
	Indexes       int `json:"indexes"`
	Registrations int `json:"registrations"`
}

// Stats returns the current store sizes.
func (g *Graph) Stats() Stats {
	return Stats{
		Users:         g.Users.Len(),
		Students:      g.Students.Len(),
		Courses:       g.Courses.Len(),
		Indexes:       g.Indexes.Len(),
		Registrations: g.Registrations.Len(),
	}
}
