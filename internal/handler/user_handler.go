package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-reg-api/internal/dto"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/service"
	"github.com/noah-isme/course-reg-api/pkg/response"
)

type userService interface {
	CreateStudent(req service.CreateStudentRequest) (*models.StudentDetail, error)
	CreateStaff(req service.CreateStaffRequest) (*models.UserInfo, error)
	GetStudent(username string) (*models.StudentDetail, error)
	ListStudents() []models.StudentDetail
	Rename(oldName, newName string) error
	Delete(username string) error
}

type studentRegistrationLister interface {
	ListByStudent(username string) ([]models.Registration, error)
}

// UserHandler exposes account and student endpoints.
type UserHandler struct {
	users         userService
	registrations studentRegistrationLister
}

// NewUserHandler builds a new handler.
func NewUserHandler(users userService, registrations studentRegistrationLister) *UserHandler {
	return &UserHandler{users: users, registrations: registrations}
}

// ListStudents godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *UserHandler) ListStudents(c *gin.Context) {
	students := h.users.ListStudents()
	page := queryInt(c, "page", 1)
	size := queryInt(c, "page_size", 50)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	start := (page - 1) * size
	if start > len(students) {
		start = len(students)
	}
	end := start + size
	if end > len(students) {
		end = len(students)
	}
	response.JSON(c, http.StatusOK, students[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: len(students)})
}

// CreateStudent godoc
// @Summary Create a student account
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *UserHandler) CreateStudent(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := bindJSON(c, &req, "invalid student payload"); err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.users.CreateStudent(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// CreateStaff godoc
// @Summary Create a staff account
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /staff [post]
func (h *UserHandler) CreateStaff(c *gin.Context) {
	var req service.CreateStaffRequest
	if err := bindJSON(c, &req, "invalid staff payload"); err != nil {
		response.Error(c, err)
		return
	}
	info, err := h.users.CreateStaff(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, info)
}

// GetStudent godoc
// @Summary Get a student with registered AU
// @Tags Students
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{username} [get]
func (h *UserHandler) GetStudent(c *gin.Context) {
	student, err := h.users.GetStudent(c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// StudentRegistrations godoc
// @Summary List the registrations of a student
// @Tags Students
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} response.Envelope
// @Router /students/{username}/registrations [get]
func (h *UserHandler) StudentRegistrations(c *gin.Context) {
	regs, err := h.registrations.ListByStudent(c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Rename godoc
// @Summary Change a username
// @Tags Users
// @Accept json
// @Produce json
// @Param username path string true "Username"
// @Param payload body dto.RenameRequest true "New username"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{username}/rename [put]
func (h *UserHandler) Rename(c *gin.Context) {
	var req dto.RenameRequest
	if err := bindJSON(c, &req, "invalid rename payload"); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.users.Rename(c.Param("username"), req.NewKey); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"username": req.NewKey}, nil)
}

// Delete godoc
// @Summary Delete a user with its student record and registrations
// @Tags Users
// @Param username path string true "Username"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /users/{username} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Param("username")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
