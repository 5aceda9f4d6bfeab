package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-reg-api/internal/dto"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/service"
	"github.com/noah-isme/course-reg-api/pkg/response"
)

type courseService interface {
	List() []models.Course
	Get(code string) (*dto.CourseDetail, error)
	Create(req service.CreateCourseRequest) (*models.Course, error)
	Update(code string, req service.UpdateCourseRequest) (*models.Course, error)
	Delete(code string) error
	Rename(oldCode, newCode string) error
	Indexes(code string) ([]dto.IndexDetail, error)
}

type courseRegistrationLister interface {
	ListByCourse(code string) ([]models.Registration, error)
}

// CourseHandler exposes course catalogue endpoints.
type CourseHandler struct {
	courses       courseService
	registrations courseRegistrationLister
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(courses courseService, registrations courseRegistrationLister) *CourseHandler {
	return &CourseHandler{courses: courses, registrations: registrations}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.courses.List(), nil)
}

// Get godoc
// @Summary Get a course with its indexes
// @Tags Courses
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{code} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	detail, err := h.courses.Get(c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := bindJSON(c, &req, "invalid course payload"); err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Create(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param code path string true "Course code"
// @Param payload body service.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{code} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if err := bindJSON(c, &req, "invalid course payload"); err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Update(c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete a course with its indexes and registrations
// @Tags Courses
// @Param code path string true "Course code"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /courses/{code} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.Delete(c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rename godoc
// @Summary Change a course code
// @Tags Courses
// @Accept json
// @Produce json
// @Param code path string true "Course code"
// @Param payload body dto.RenameRequest true "New code"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{code}/rename [put]
func (h *CourseHandler) Rename(c *gin.Context) {
	var req dto.RenameRequest
	if err := bindJSON(c, &req, "invalid rename payload"); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.courses.Rename(c.Param("code"), req.NewKey); err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.courses.Get(req.NewKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Indexes godoc
// @Summary List the indexes of a course
// @Tags Courses
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /courses/{code}/indexes [get]
func (h *CourseHandler) Indexes(c *gin.Context) {
	indexes, err := h.courses.Indexes(c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, indexes, nil)
}

// Registrations godoc
// @Summary List registrations across the indexes of a course
// @Tags Courses
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /courses/{code}/registrations [get]
func (h *CourseHandler) Registrations(c *gin.Context) {
	regs, err := h.registrations.ListByCourse(c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}
