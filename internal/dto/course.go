package dto

import "github.com/noah-isme/course-reg-api/internal/models"

// IndexDetail is an index with its current seat usage.
type IndexDetail struct {
	models.CourseIndex
	Vacancy models.IndexVacancy `json:"vacancy"`
}

// CourseDetail is a course with its indexes.
type CourseDetail struct {
	models.Course
	Indexes []IndexDetail `json:"indexes"`
}

// RenameRequest carries the new key of a renamed entity.
type RenameRequest struct {
	NewKey string `json:"new_key" validate:"required"`
}

// VacancyRequest sets the seat limit of an index.
type VacancyRequest struct {
	MaxVacancy *int `json:"max_vacancy" validate:"required,gte=0"`
}
