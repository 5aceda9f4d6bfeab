package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/noah-isme/course-reg-api/pkg/export"
)

// RowStore persists positional rows grouped by entity kind.
type RowStore interface {
	ReadRows(ctx context.Context, kind string) ([][]string, error)
	WriteRows(ctx context.Context, kind string, header []string, rows [][]string) error
}

// FileStorage is the subset of storage.LocalStorage the CSV store needs.
type FileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
}

// CSVStore keeps one CSV file per kind, with a header line.
type CSVStore struct {
	files    FileStorage
	exporter *export.CSVExporter
}

// NewCSVStore builds a CSV row store over files.
func NewCSVStore(files FileStorage) *CSVStore {
	return &CSVStore{files: files, exporter: export.NewCSVExporter()}
}

func csvName(kind string) string {
	return kind + ".csv"
}

// ReadRows returns the rows of kind in file order. A missing file holds no
// rows.
func (s *CSVStore) ReadRows(_ context.Context, kind string) ([][]string, error) {
	data, err := s.files.Read(csvName(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dataset, err := export.ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", csvName(kind), err)
	}
	return dataset.Records(), nil
}

// WriteRows replaces the file of kind.
func (s *CSVStore) WriteRows(_ context.Context, kind string, header []string, rows [][]string) error {
	data, err := s.exporter.Render(export.FromRecords(header, rows))
	if err != nil {
		return fmt.Errorf("render %s: %w", csvName(kind), err)
	}
	if _, err := s.files.Save(csvName(kind), data); err != nil {
		return err
	}
	return nil
}
