package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/service"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

type registrationServiceMock struct {
	result      *service.AllocationResult
	err         error
	lastReg     service.RegisterRequest
	lastDrop    [2]string
	lastChange  service.ChangeIndexRequest
	lastSwap    service.SwapRequest
	swapCalled  bool
	registerHit bool
}

func (m *registrationServiceMock) Register(req service.RegisterRequest) (*service.AllocationResult, error) {
	m.registerHit = true
	m.lastReg = req
	return m.result, m.err
}

func (m *registrationServiceMock) Drop(student, indexNumber string) (*service.AllocationResult, error) {
	m.lastDrop = [2]string{student, indexNumber}
	return m.result, m.err
}

func (m *registrationServiceMock) ChangeIndex(req service.ChangeIndexRequest) (*service.AllocationResult, error) {
	m.lastChange = req
	return m.result, m.err
}

func (m *registrationServiceMock) Swap(req service.SwapRequest) (*service.AllocationResult, error) {
	m.swapCalled = true
	m.lastSwap = req
	return m.result, m.err
}

type peerAuthenticatorStub struct {
	password string
	calls    int
}

func (s *peerAuthenticatorStub) Authenticate(username, password string) (models.User, error) {
	s.calls++
	if password != s.password {
		return models.User{}, appErrors.ErrInvalidCredentials
	}
	return models.User{Username: username, Domain: models.DomainStudent}, nil
}

func TestRegistrationHandlerRegisterAsStudent(t *testing.T) {
	svc := &registrationServiceMock{result: &service.AllocationResult{
		Registrations: []models.Registration{{Key: models.RegistrationKey{Student: "alice", Course: "CS101"}, IndexNumber: "I1", Status: models.StatusRegistered}},
	}}
	h := NewRegistrationHandler(svc, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodPost, "/registrations", `{"index":"I1"}`, studentClaims)
	h.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, service.RegisterRequest{Student: "alice", Index: "I1"}, svc.lastReg)
}

func TestRegistrationHandlerRegisterForSomeoneElse(t *testing.T) {
	svc := &registrationServiceMock{}
	h := NewRegistrationHandler(svc, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodPost, "/registrations", `{"index":"I1","student":"bob"}`, studentClaims)
	h.Register(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, svc.registerHit)
}

func TestRegistrationHandlerStaffMustNameStudent(t *testing.T) {
	svc := &registrationServiceMock{}
	h := NewRegistrationHandler(svc, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodPost, "/registrations", `{"index":"I1"}`, staffClaims)
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeError(t, w).Error.Code)
	assert.False(t, svc.registerHit)
}

func TestRegistrationHandlerRegisterMapsEngineErrors(t *testing.T) {
	svc := &registrationServiceMock{err: appErrors.ErrAUCapExceeded}
	h := NewRegistrationHandler(svc, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodPost, "/registrations", `{"index":"I1","student":"alice"}`, staffClaims)
	h.Register(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "AU_CAP_EXCEEDED", decodeError(t, w).Error.Code)
}

func TestRegistrationHandlerRegisterInvalidBody(t *testing.T) {
	h := NewRegistrationHandler(&registrationServiceMock{}, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodPost, "/registrations", `{"index":`, studentClaims)
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerDrop(t *testing.T) {
	svc := &registrationServiceMock{result: &service.AllocationResult{}}
	h := NewRegistrationHandler(svc, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodDelete, "/registrations/I1?student=bob", "", staffClaims, gin.Param{Key: "index", Value: "I1"})
	h.Drop(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"bob", "I1"}, svc.lastDrop)
}

func TestRegistrationHandlerChangeIndex(t *testing.T) {
	svc := &registrationServiceMock{result: &service.AllocationResult{}}
	h := NewRegistrationHandler(svc, &peerAuthenticatorStub{})

	c, w := newTestContext(http.MethodPut, "/registrations/I1/change", `{"to":"I2"}`, studentClaims, gin.Param{Key: "index", Value: "I1"})
	h.ChangeIndex(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ChangeIndexRequest{Student: "alice", From: "I1", To: "I2"}, svc.lastChange)
}

func TestRegistrationHandlerSwapRequiresPeerPassword(t *testing.T) {
	svc := &registrationServiceMock{result: &service.AllocationResult{}}
	auth := &peerAuthenticatorStub{password: "bob-secret"}
	h := NewRegistrationHandler(svc, auth)

	body := `{"index":"I1","peer_student":"bob","peer_index":"I2","peer_password":"wrong"}`
	c, w := newTestContext(http.MethodPost, "/registrations/swap", body, studentClaims)
	h.Swap(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, svc.swapCalled)

	body = `{"index":"I1","peer_student":"bob","peer_index":"I2","peer_password":"bob-secret"}`
	c, w = newTestContext(http.MethodPost, "/registrations/swap", body, studentClaims)
	h.Swap(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.SwapRequest{Student: "alice", Index: "I1", PeerStudent: "bob", PeerIndex: "I2"}, svc.lastSwap)
}

func TestRegistrationHandlerSwapByStaffSkipsPeerCheck(t *testing.T) {
	svc := &registrationServiceMock{result: &service.AllocationResult{}}
	auth := &peerAuthenticatorStub{password: "bob-secret"}
	h := NewRegistrationHandler(svc, auth)

	body := `{"student":"alice","index":"I1","peer_student":"bob","peer_index":"I2"}`
	c, w := newTestContext(http.MethodPost, "/registrations/swap", body, staffClaims)
	h.Swap(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, auth.calls)
	assert.True(t, svc.swapCalled)
}
