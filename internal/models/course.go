package models

import "strings"

// Course is keyed by its upper-case course code.
type Course struct {
	Code   string  `json:"code" validate:"required"`
	Name   string  `json:"name" validate:"required"`
	School string  `json:"school"`
	AU     float64 `json:"au" validate:"gte=0"`
}

// NormalizeCourseCode trims and upper-cases a course code.
func NormalizeCourseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Clone returns an independent copy.
func (c *Course) Clone() Course {
	return *c
}

// CourseIndex is a section of a course. Its number is unique across the
// whole system, not only within the course.
type CourseIndex struct {
	Number     string     `json:"number" validate:"required"`
	CourseCode string     `json:"course_code" validate:"required"`
	MaxVacancy int        `json:"max_vacancy" validate:"gte=0"`
	Schedules  []Schedule `json:"schedules"`
}

// Clone returns a deep copy.
func (i *CourseIndex) Clone() CourseIndex {
	out := *i
	out.Schedules = make([]Schedule, len(i.Schedules))
	for n, s := range i.Schedules {
		out.Schedules[n] = s.Clone()
	}
	return out
}

// IndexVacancy summarises seat usage of an index.
type IndexVacancy struct {
	Number     string `json:"number"`
	CourseCode string `json:"course_code"`
	MaxVacancy int    `json:"max_vacancy"`
	Registered int    `json:"registered"`
	Waitlisted int    `json:"waitlisted"`
	Available  int    `json:"available"`
}
