package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
// Run directories created with another version must be re-run from scratch.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// DatabaseFileName is the state database inside the run directory's data/ folder.
const DatabaseFileName = "state.db"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timestampLayout         = time.RFC3339Nano
)

// SQLiteStore keeps one table per stage in a single database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the state database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers and keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s or use a new --output directory)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

const recordColumns = "submission_id, status, payload_json, error_message, error_category, flags_json, attempts, run_id, updated_at"

// Get returns the latest record for the key, or nil when none exists.
func (s *SQLiteStore) Get(ctx context.Context, submissionID string, stage Stage) (*Record, error) {
	if err := validateStage(stage); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM "+stage.table()+" WHERE submission_id = ?",
		submissionID,
	)
	record, err := scanRecord(row, stage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s record %s: %w", stage.Lower(), submissionID, err)
	}
	return record, nil
}

// Put inserts or replaces the record for its key.
func (s *SQLiteStore) Put(ctx context.Context, record Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	var flagsJSON sql.NullString
	if len(record.Flags) > 0 {
		data, err := json.Marshal(record.Flags)
		if err != nil {
			return fmt.Errorf("encode flags: %w", err)
		}
		flagsJSON = sql.NullString{String: string(data), Valid: true}
	}
	var payload sql.NullString
	if len(record.Payload) > 0 {
		payload = sql.NullString{String: string(record.Payload), Valid: true}
	}
	var errMessage, errCategory sql.NullString
	if record.Error != nil {
		errMessage = sql.NullString{String: record.Error.Message, Valid: true}
		errCategory = sql.NullString{String: record.Error.Category, Valid: true}
	}

	query := "INSERT INTO " + record.Stage.table() + " (" + recordColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON CONFLICT(submission_id) DO UPDATE SET " +
		"status = excluded.status, payload_json = excluded.payload_json, error_message = excluded.error_message, " +
		"error_category = excluded.error_category, flags_json = excluded.flags_json, attempts = excluded.attempts, " +
		"run_id = excluded.run_id, updated_at = excluded.updated_at"
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			record.SubmissionID,
			string(record.Status),
			payload,
			errMessage,
			errCategory,
			flagsJSON,
			record.Attempts,
			record.RunID,
			record.UpdatedAt.UTC().Format(timestampLayout),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("put %s record %s: %w", record.Stage.Lower(), record.SubmissionID, err)
	}
	return nil
}

// Delete removes the submission from every stage table in one transaction.
func (s *SQLiteStore) Delete(ctx context.Context, submissionID string) error {
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		for _, stage := range Stages {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+stage.table()+" WHERE submission_id = ?", submissionID); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("delete records for %s: %w", submissionID, err)
	}
	return nil
}

// All returns every record stored for stage keyed by submission id.
func (s *SQLiteStore) All(ctx context.Context, stage Stage) (map[string]Record, error) {
	if err := validateStage(stage); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM "+stage.table()+" ORDER BY submission_id")
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", stage.Lower(), err)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		record, err := scanRecord(rows, stage)
		if err != nil {
			return nil, fmt.Errorf("scan %s record: %w", stage.Lower(), err)
		}
		out[record.SubmissionID] = *record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", stage.Lower(), err)
	}
	return out, nil
}

// Counts tallies records for stage by status.
func (s *SQLiteStore) Counts(ctx context.Context, stage Stage) (Counts, error) {
	var counts Counts
	if err := validateStage(stage); err != nil {
		return counts, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM "+stage.table()+" GROUP BY status")
	if err != nil {
		return counts, fmt.Errorf("count %s records: %w", stage.Lower(), err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scan %s counts: %w", stage.Lower(), err)
		}
		counts.add(Status(status), n)
	}
	return counts, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }, stage Stage) (*Record, error) {
	var (
		id          string
		status      string
		payload     sql.NullString
		errMessage  sql.NullString
		errCategory sql.NullString
		flagsJSON   sql.NullString
		attempts    int
		runID       sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(&id, &status, &payload, &errMessage, &errCategory, &flagsJSON, &attempts, &runID, &updatedRaw); err != nil {
		return nil, err
	}
	record := &Record{
		SubmissionID: id,
		Stage:        stage,
		Status:       Status(status),
		Attempts:     attempts,
		RunID:        runID.String,
	}
	if payload.Valid && payload.String != "" {
		record.Payload = json.RawMessage(payload.String)
	}
	if errMessage.Valid || errCategory.Valid {
		record.Error = &RecordError{Message: errMessage.String, Category: errCategory.String}
	}
	if flagsJSON.Valid && flagsJSON.String != "" {
		if err := json.Unmarshal([]byte(flagsJSON.String), &record.Flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
	}
	if updatedRaw != "" {
		ts, err := time.Parse(timestampLayout, updatedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		record.UpdatedAt = ts
	}
	return record, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
