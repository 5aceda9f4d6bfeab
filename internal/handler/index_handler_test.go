package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-reg-api/internal/dto"
	"github.com/noah-isme/course-reg-api/internal/models"
	"github.com/noah-isme/course-reg-api/internal/service"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
)

type indexServiceMock struct {
	detail   *dto.IndexDetail
	err      error
	schedule service.ScheduleRequest
}

func (m *indexServiceMock) GetIndex(number string) (*dto.IndexDetail, error) { return m.detail, m.err }

func (m *indexServiceMock) CreateIndex(req service.CreateIndexRequest) (*dto.IndexDetail, error) {
	return m.detail, m.err
}

func (m *indexServiceMock) DeleteIndex(number string) error { return m.err }

func (m *indexServiceMock) RenameIndex(oldNumber, newNumber string) error { return m.err }

func (m *indexServiceMock) AddSchedule(number string, req service.ScheduleRequest) (*dto.IndexDetail, error) {
	m.schedule = req
	return m.detail, m.err
}

type indexAllocatorMock struct {
	vacancyCalls []int
	regs         []models.Registration
}

func (m *indexAllocatorMock) ChangeVacancy(indexNumber string, maxVacancy int) (*service.AllocationResult, error) {
	m.vacancyCalls = append(m.vacancyCalls, maxVacancy)
	return &service.AllocationResult{Vacancy: &models.IndexVacancy{Number: indexNumber, MaxVacancy: maxVacancy}}, nil
}

func (m *indexAllocatorMock) ListByIndex(indexNumber string) ([]models.Registration, error) {
	return m.regs, nil
}

type indexReporterStub struct {
	file   *service.ReportFile
	err    error
	format string
}

func (s *indexReporterStub) IndexReport(number, format string) (*service.ReportFile, error) {
	s.format = format
	return s.file, s.err
}

func TestIndexHandlerVacancy(t *testing.T) {
	alloc := &indexAllocatorMock{}
	h := NewIndexHandler(&indexServiceMock{}, alloc, &indexReporterStub{})

	c, w := newTestContext(http.MethodPut, "/indexes/I1/vacancy", `{"max_vacancy":0}`, staffClaims, gin.Param{Key: "index", Value: "I1"})
	h.Vacancy(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{0}, alloc.vacancyCalls)
}

func TestIndexHandlerVacancyRejectsMissingOrNegative(t *testing.T) {
	alloc := &indexAllocatorMock{}
	h := NewIndexHandler(&indexServiceMock{}, alloc, &indexReporterStub{})

	for _, body := range []string{`{}`, `{"max_vacancy":-1}`} {
		c, w := newTestContext(http.MethodPut, "/indexes/I1/vacancy", body, staffClaims, gin.Param{Key: "index", Value: "I1"})
		h.Vacancy(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, alloc.vacancyCalls)
}

func TestIndexHandlerAddScheduleClash(t *testing.T) {
	svc := &indexServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "schedule clashes")}
	h := NewIndexHandler(svc, &indexAllocatorMock{}, &indexReporterStub{})

	body := `{"type":"LEC","day":"MONDAY","begin":"09:00","end":"10:00","weeks":[1,2]}`
	c, w := newTestContext(http.MethodPost, "/indexes/I1/schedules", body, staffClaims, gin.Param{Key: "index", Value: "I1"})
	h.AddSchedule(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []int{1, 2}, svc.schedule.Weeks)
}

func TestIndexHandlerReportAttachment(t *testing.T) {
	reports := &indexReporterStub{file: &service.ReportFile{Filename: "index-I1.csv", ContentType: "text/csv", Data: []byte("No,Student\n")}}
	h := NewIndexHandler(&indexServiceMock{}, &indexAllocatorMock{}, reports)

	c, w := newTestContext(http.MethodGet, "/indexes/I1/report", "", staffClaims, gin.Param{Key: "index", Value: "I1"})
	h.Report(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ReportFormatCSV, reports.format)
	assert.Equal(t, `attachment; filename="index-I1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "No,Student\n", w.Body.String())
}

func TestIndexHandlerReportUnsupportedFormat(t *testing.T) {
	reports := &indexReporterStub{err: appErrors.Clone(appErrors.ErrValidation, "unsupported format xls")}
	h := NewIndexHandler(&indexServiceMock{}, &indexAllocatorMock{}, reports)

	c, w := newTestContext(http.MethodGet, "/indexes/I1/report?format=xls", "", staffClaims, gin.Param{Key: "index", Value: "I1"})
	h.Report(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "xls", reports.format)
}
