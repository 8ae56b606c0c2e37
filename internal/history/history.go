// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/eqio/vnote/internal/export"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("run not found")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// RECORD
// =============================================================================

// Record is a stored run.
type Record struct {
	ID         string
	State      export.State
	Source     string
	Format     string
	OutputRoot string

	Total     int
	Attempted int
	Succeeded int
	Failed    int

	// Error is the configuration error of a failed run
	Error string

	StartedAt  time.Time
	FinishedAt time.Time

	// Errors is only filled by Get
	Errors []export.FileError
}

// Duration is the wall time of the run.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// =============================================================================
// STORE
// =============================================================================

// Store keeps finished runs in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the history database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished run with its per-note errors.
func (s *Store) Record(ctx context.Context, sum export.Summary) error {
	if !sum.State.Terminal() {
		return fmt.Errorf("run %s has not finished (state %s)", sum.ID, sum.State)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	var errText sql.NullString
	if sum.Err != nil {
		errText = sql.NullString{String: sum.Err.Error(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, state, source, format, output_root,
			files_total, files_attempted, files_succeeded, files_failed,
			error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, string(sum.State), sum.Source.String(), sum.Format.String(), sum.OutputRoot,
		sum.FilesTotal, sum.FilesAttempted, sum.FilesSucceeded, sum.FilesFailed(),
		errText, sum.StartedAt.UnixMilli(), sum.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert run: %v", ErrDatabaseError, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_errors (run_id, seq, rel_path, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()
	for i, fe := range sum.Errors {
		if _, err := stmt.ExecContext(ctx, sum.ID, i, fe.RelPath, fe.Message); err != nil {
			return fmt.Errorf("%w: insert error: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseError, err)
	}
	s.logger.Debug("run recorded", zap.String("run_id", sum.ID), zap.Int("errors", len(sum.Errors)))
	return nil
}

const selectRun = `
	SELECT id, state, source, format, output_root,
		files_total, files_attempted, files_succeeded, files_failed,
		error, started_at, finished_at
	FROM runs`

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return records, nil
}

// Get returns one run with its per-note errors.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT rel_path, message FROM run_errors WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	for rows.Next() {
		var fe export.FileError
		if err := rows.Scan(&fe.RelPath, &fe.Message); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		rec.Errors = append(rec.Errors, fe)
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return rec, nil
}

// DefaultKeep is how many runs the CLI keeps after recording a new one.
const DefaultKeep = 500

// Prune keeps the newest keep runs and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrDatabaseError, err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec               Record
		state             string
		errText           sql.NullString
		started, finished int64
	)
	err := row.Scan(&rec.ID, &state, &rec.Source, &rec.Format, &rec.OutputRoot,
		&rec.Total, &rec.Attempted, &rec.Succeeded, &rec.Failed,
		&errText, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: scan: %v", ErrDatabaseError, err)
	}
	rec.State = export.State(state)
	rec.Error = errText.String
	rec.StartedAt = time.UnixMilli(started)
	rec.FinishedAt = time.UnixMilli(finished)
	return rec, nil
}
