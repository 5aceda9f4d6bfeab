package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/graph"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
	"github.com/noah-isme/course-reg-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportFile is a rendered report ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders class lists of an index.
type ReportService struct {
	graph  *graph.Graph
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewReportService constructs a ReportService. Nil renderers fall back to
// the default exporters.
func NewReportService(g *graph.Graph, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{graph: g, csv: csv, pdf: pdf, logger: logger}
}

// IndexReport lists the registrations of an index in allocation order.
func (s *ReportService) IndexReport(number, format string) (*ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	index, ok := s.graph.Indexes.Get(number)
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "index %s not found", number)
	}
	dataset := s.buildDataset(number)

	var (
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case ReportFormatCSV:
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ReportFormatPDF:
		vacancy, _ := s.graph.Vacancy(number)
		title := fmt.Sprintf("%s index %s (%d/%d seats)", index.CourseCode, index.Number, vacancy.Registered, vacancy.MaxVacancy)
		data, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unsupported format %s", format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	s.logger.Info("index report rendered", zap.String("index", number), zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return &ReportFile{
		Filename:    fmt.Sprintf("index-%s.%s", number, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (s *ReportService) buildDataset(number string) export.Dataset {
	dataset := export.Dataset{Headers: []string{"No", "Student", "Matric", "Name", "Status", "Registered At"}}
	for i, reg := range s.graph.RegOfIndex(number) {
		row := map[string]string{
			"No":            strconv.Itoa(i + 1),
			"Student":       reg.Key.Student,
			"Status":        string(reg.Status),
			"Registered At": reg.RegisteredAt.UTC().Format(time.RFC3339),
		}
		if student, ok := s.graph.Students.Get(reg.Key.Student); ok {
			row["Matric"] = student.MatricNo
			row["Name"] = student.FullName
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset
}
