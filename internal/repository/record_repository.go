package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RecordRepository stores snapshot rows in the records table. Every kind of
// entity keeps its rows as positional text arrays, in save order.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new instance of RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ReadRows returns the rows saved under kind in their saved order.
func (r *RecordRepository) ReadRows(ctx context.Context, kind string) ([][]string, error) {
	const query = `SELECT fields FROM records WHERE kind = $1 ORDER BY position`
	var stored []pq.StringArray
	if err := r.db.SelectContext(ctx, &stored, query, kind); err != nil {
		return nil, fmt.Errorf("read %s records: %w", kind, err)
	}
	rows := make([][]string, len(stored))
	for i, fields := range stored {
		rows[i] = []string(fields)
	}
	return rows, nil
}

// WriteRows replaces every row of kind in a single transaction. Fields are
// positional, so the header is not stored.
func (r *RecordRepository) WriteRows(ctx context.Context, kind string, _ []string, rows [][]string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s records: %w", kind, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM records WHERE kind = $1`, kind); err != nil {
		return fmt.Errorf("clear %s records: %w", kind, err)
	}
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO records (kind, position, fields) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("prepare %s records: %w", kind, err)
	}
	defer stmt.Close() //nolint:errcheck
	for i, row := range rows {
		if _, err = stmt.ExecContext(ctx, kind, i, pq.StringArray(row)); err != nil {
			return fmt.Errorf("insert %s record %d: %w", kind, i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s records: %w", kind, err)
	}
	return nil
}
