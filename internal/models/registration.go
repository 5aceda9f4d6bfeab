package models

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// RegistrationStatus is the seat state of a registration.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusWaitlist   RegistrationStatus = "WAITLIST"
)

func (s RegistrationStatus) rank() int {
	if s == StatusRegistered {
		return 0
	}
	return 1
}

// ParseRegistrationStatus normalises raw into a RegistrationStatus.
func ParseRegistrationStatus(raw string) (RegistrationStatus, error) {
	switch s := RegistrationStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusRegistered, StatusWaitlist:
		return s, nil
	default:
		return "", fmt.Errorf("unknown registration status %q", raw)
	}
}

// RegistrationKey identifies a registration: a student holds at most one
// registration per course.
type RegistrationKey struct {
	Student string `json:"student"`
	Course  string `json:"course"`
}

// Valid reports whether both components are set.
func (k RegistrationKey) Valid() bool {
	return k.Student != "" && k.Course != ""
}

// WithStudent returns k with the student component replaced.
func (k RegistrationKey) WithStudent(student string) RegistrationKey {
	k.Student = student
	return k
}

// WithCourse returns k with the course component replaced.
func (k RegistrationKey) WithCourse(course string) RegistrationKey {
	k.Course = course
	return k
}

func (k RegistrationKey) String() string {
	return k.Student + "/" + k.Course
}

// CompareRegistrationKeys orders keys by student, then course.
func CompareRegistrationKeys(a, b RegistrationKey) int {
	if c := cmp.Compare(a.Student, b.Student); c != 0 {
		return c
	}
	return cmp.Compare(a.Course, b.Course)
}

// Registration links a student to one index of a course.
type Registration struct {
	Key          RegistrationKey    `json:"key"`
	IndexNumber  string             `json:"index_number"`
	RegisteredAt time.Time          `json:"registered_at"`
	Status       RegistrationStatus `json:"status"`
	Dropped      bool               `json:"dropped"`
}

// NewRegistration builds a live registration.
func NewRegistration(student, course, index string, at time.Time, status RegistrationStatus) (*Registration, error) {
	key := RegistrationKey{Student: student, Course: NormalizeCourseCode(course)}
	if !key.Valid() || index == "" {
		return nil, fmt.Errorf("registration needs student, course and index")
	}
	if _, err := ParseRegistrationStatus(string(status)); err != nil {
		return nil, err
	}
	return &Registration{Key: key, IndexNumber: index, RegisteredAt: at, Status: status}, nil
}

// Drop marks the registration dead. It returns false when it was already
// dropped, so repeated calls are harmless.
func (r *Registration) Drop() bool {
	if r.Dropped {
		return false
	}
	r.Dropped = true
	return true
}

// Promote moves a waitlisted registration to REGISTERED. Any other
// transition is rejected with ErrInvalidTransition.
func (r *Registration) Promote() error {
	if r.Dropped {
		return fmt.Errorf("%w: %s is dropped", ErrInvalidTransition, r.Key)
	}
	if r.Status != StatusWaitlist {
		return fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, r.Key, r.Status, StatusWaitlist)
	}
	r.Status = StatusRegistered
	return nil
}

// Clone returns an independent copy.
func (r *Registration) Clone() Registration {
	return *r
}

// CompareRegistrations is the allocation order: REGISTERED before WAITLIST,
// then earlier timestamps, then student and course keys.
func CompareRegistrations(a, b *Registration) int {
	if c := cmp.Compare(a.Status.rank(), b.Status.rank()); c != 0 {
		return c
	}
	if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
		return c
	}
	return CompareRegistrationKeys(a.Key, b.Key)
}
