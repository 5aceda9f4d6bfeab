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

type indexService interface {
	GetIndex(number string) (*dto.IndexDetail, error)
	CreateIndex(req service.CreateIndexRequest) (*dto.IndexDetail, error)
	DeleteIndex(number string) error
	RenameIndex(oldNumber, newNumber string) error
	AddSchedule(number string, req service.ScheduleRequest) (*dto.IndexDetail, error)
}

type indexAllocator interface {
	ChangeVacancy(indexNumber string, maxVacancy int) (*service.AllocationResult, error)
	ListByIndex(indexNumber string) ([]models.Registration, error)
}

type indexReporter interface {
	IndexReport(number, format string) (*service.ReportFile, error)
}

// IndexHandler exposes endpoints for course indexes.
type IndexHandler struct {
	indexes   indexService
	allocator indexAllocator
	reports   indexReporter
}

// NewIndexHandler builds a new handler.
func NewIndexHandler(indexes indexService, allocator indexAllocator, reports indexReporter) *IndexHandler {
	return &IndexHandler{indexes: indexes, allocator: allocator, reports: reports}
}

// Create godoc
// @Summary Add an index to a course
// @Tags Indexes
// @Accept json
// @Produce json
// @Param payload body service.CreateIndexRequest true "Index payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /indexes [post]
func (h *IndexHandler) Create(c *gin.Context) {
	var req service.CreateIndexRequest
	if err := bindJSON(c, &req, "invalid index payload"); err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.indexes.CreateIndex(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get an index with its vacancy
// @Tags Indexes
// @Produce json
// @Param index path string true "Index number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /indexes/{index} [get]
func (h *IndexHandler) Get(c *gin.Context) {
	detail, err := h.indexes.GetIndex(c.Param("index"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete an index and its registrations
// @Tags Indexes
// @Param index path string true "Index number"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /indexes/{index} [delete]
func (h *IndexHandler) Delete(c *gin.Context) {
	if err := h.indexes.DeleteIndex(c.Param("index")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Vacancy godoc
// @Summary Change the seat limit of an index
// @Description Raising the limit promotes waitlisted students in arrival order
// @Tags Indexes
// @Accept json
// @Produce json
// @Param index path string true "Index number"
// @Param payload body dto.VacancyRequest true "New limit"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /indexes/{index}/vacancy [put]
func (h *IndexHandler) Vacancy(c *gin.Context) {
	var req dto.VacancyRequest
	if err := bindJSON(c, &req, "invalid vacancy payload"); err != nil {
		response.Error(c, err)
		return
	}
	if req.MaxVacancy == nil || *req.MaxVacancy < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "max_vacancy must be zero or more"))
		return
	}
	result, err := h.allocator.ChangeVacancy(c.Param("index"), *req.MaxVacancy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Rename godoc
// @Summary Change an index number
// @Tags Indexes
// @Accept json
// @Produce json
// @Param index path string true "Index number"
// @Param payload body dto.RenameRequest true "New number"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /indexes/{index}/rename [put]
func (h *IndexHandler) Rename(c *gin.Context) {
	var req dto.RenameRequest
	if err := bindJSON(c, &req, "invalid rename payload"); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.indexes.RenameIndex(c.Param("index"), req.NewKey); err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.indexes.GetIndex(req.NewKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// AddSchedule godoc
// @Summary Add a teaching slot to an index
// @Tags Indexes
// @Accept json
// @Produce json
// @Param index path string true "Index number"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /indexes/{index}/schedules [post]
func (h *IndexHandler) AddSchedule(c *gin.Context) {
	var req service.ScheduleRequest
	if err := bindJSON(c, &req, "invalid schedule payload"); err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.indexes.AddSchedule(c.Param("index"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Registrations godoc
// @Summary List the registrations of an index in allocation order
// @Tags Indexes
// @Produce json
// @Param index path string true "Index number"
// @Success 200 {object} response.Envelope
// @Router /indexes/{index}/registrations [get]
func (h *IndexHandler) Registrations(c *gin.Context) {
	regs, err := h.allocator.ListByIndex(c.Param("index"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Report godoc
// @Summary Download the class list of an index
// @Tags Indexes
// @Produce text/csv
// @Produce application/pdf
// @Param index path string true "Index number"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /indexes/{index}/report [get]
func (h *IndexHandler) Report(c *gin.Context) {
	file, err := h.reports.IndexReport(c.Param("index"), c.DefaultQuery("format", service.ReportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
