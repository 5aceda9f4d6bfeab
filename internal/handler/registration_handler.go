package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-reg-api/internal/dto"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/service"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
	"github.com/noah-isme/course-reg-api/pkg/response"
)

type registrationService interface {
	Register(req service.RegisterRequest) (*service.AllocationResult, error)
	Drop(student, indexNumber string) (*service.AllocationResult, error)
	ChangeIndex(req service.ChangeIndexRequest) (*service.AllocationResult, error)
	Swap(req service.SwapRequest) (*service.AllocationResult, error)
}

type peerAuthenticator interface {
	Authenticate(username, password string) (models.User, error)
}

// RegistrationHandler exposes seat allocation endpoints.
type RegistrationHandler struct {
	service registrationService
	auth    peerAuthenticator
}

// NewRegistrationHandler builds a new handler.
func NewRegistrationHandler(svc registrationService, auth peerAuthenticator) *RegistrationHandler {
	return &RegistrationHandler{service: svc, auth: auth}
}

// Register godoc
// @Summary Register for an index
// @Description Takes a seat when one is free and joins the waitlist otherwise
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.RegisterBody true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var body dto.RegisterBody
	if err := bindJSON(c, &body, "invalid registration payload"); err != nil {
		response.Error(c, err)
		return
	}
	if body.Index == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "index is required"))
		return
	}
	student, err := actingStudent(c, body.Student)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Register(service.RegisterRequest{Student: student, Index: body.Index})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Drop godoc
// @Summary Drop a registration
// @Tags Registrations
// @Produce json
// @Param index path string true "Index number"
// @Param student query string false "Student username (staff only)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{index} [delete]
func (h *RegistrationHandler) Drop(c *gin.Context) {
	student, err := actingStudent(c, c.Query("student"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Drop(student, c.Param("index"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ChangeIndex godoc
// @Summary Move a registration to another index of the same course
// @Tags Registrations
// @Accept json
// @Produce json
// @Param index path string true "Current index number"
// @Param payload body dto.ChangeIndexBody true "Target index"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /registrations/{index}/change [put]
func (h *RegistrationHandler) ChangeIndex(c *gin.Context) {
	var body dto.ChangeIndexBody
	if err := bindJSON(c, &body, "invalid change index payload"); err != nil {
		response.Error(c, err)
		return
	}
	student, err := actingStudent(c, body.Student)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ChangeIndex(service.ChangeIndexRequest{Student: student, From: c.Param("index"), To: body.To})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Swap godoc
// @Summary Swap seats with another student
// @Description Students confirm the swap with the peer's password
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.SwapBody true "Swap payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/swap [post]
func (h *RegistrationHandler) Swap(c *gin.Context) {
	var body dto.SwapBody
	if err := bindJSON(c, &body, "invalid swap payload"); err != nil {
		response.Error(c, err)
		return
	}
	if body.Index == "" || body.PeerStudent == "" || body.PeerIndex == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "index, peer_student and peer_index are required"))
		return
	}
	student, err := actingStudent(c, body.Student)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !claimsFromContext(c).IsStaff() {
		if _, err := h.auth.Authenticate(body.PeerStudent, body.PeerPassword); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidCredentials, "peer credentials do not match"))
			return
		}
	}
	result, err := h.service.Swap(service.SwapRequest{
		Student:     student,
		Index:       body.Index,
		PeerStudent: body.PeerStudent,
		PeerIndex:   body.PeerIndex,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
