package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository defines the interface for dispatch-record persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	ListByShow(ctx context.Context, showID string, limit int) ([]Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

// recordColumns is the SELECT column list for dispatch_log queries.
const recordColumns = `id, show_id, event_time_s, dispatched_at, dry_run,
			attempted, succeeded, timed_out, skipped, duration_ms`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores one dispatch record.
func (r *SQLiteRepository) Insert(ctx context.Context, rec Record) error {
	query := `INSERT INTO dispatch_log (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.ShowID,
		rec.EventTimeS,
		rec.DispatchedAt.UTC(),
		rec.DryRun,
		rec.Attempted,
		rec.Succeeded,
		rec.TimedOut,
		rec.Skipped,
		rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch record: %w", err)
	}
	return nil
}

// GetByID retrieves a dispatch record by id.
// Returns ErrRecordNotFound if it does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM dispatch_log WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying dispatch record: %w", err)
	}
	return rec, nil
}

// ListByShow retrieves the most recent records for one show, newest first.
func (r *SQLiteRepository) ListByShow(ctx context.Context, showID string, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM dispatch_log
		WHERE show_id = ? ORDER BY dispatched_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, showID, normaliseLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing dispatch records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListRecent retrieves the most recent records across all shows, newest
// first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM dispatch_log
		ORDER BY dispatched_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, normaliseLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing dispatch records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func normaliseLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	err := s.Scan(
		&rec.ID,
		&rec.ShowID,
		&rec.EventTimeS,
		&rec.DispatchedAt,
		&rec.DryRun,
		&rec.Attempted,
		&rec.Succeeded,
		&rec.TimedOut,
		&rec.Skipped,
		&rec.DurationMS,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dispatch record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatch records: %w", err)
	}
	return records, nil
}
