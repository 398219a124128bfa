// Package reportstore persists validation runs in a DuckDB file so past
// results can be listed and inspected.
package reportstore

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Diagnostic severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID             string    `json:"runId"`
	Root              string    `json:"root"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	Valid             bool      `json:"valid"`
	NothingToValidate bool      `json:"nothingToValidate"`
	Files             int       `json:"files"`
}

// Diagnostic is a single error or warning recorded for a file.
type Diagnostic struct {
	Path     string `json:"path"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id      VARCHAR PRIMARY KEY,
		root        VARCHAR NOT NULL,
		started_at  TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		valid       BOOLEAN NOT NULL,
		nothing     BOOLEAN NOT NULL,
		file_count  INTEGER NOT NULL,
		report      BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		run_id         VARCHAR NOT NULL,
		seq            INTEGER NOT NULL,
		path           VARCHAR NOT NULL,
		category       VARCHAR NOT NULL,
		series         VARCHAR,
		canonical_name VARCHAR,
		valid          BOOLEAN NOT NULL,
		linkage_valid  BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS diagnostics (
		run_id   VARCHAR NOT NULL,
		seq      INTEGER NOT NULL,
		path     VARCHAR NOT NULL,
		severity VARCHAR NOT NULL,
		message  VARCHAR NOT NULL
	)`,
}

// Store is a DuckDB-backed run history.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	// DuckDB allows a single writer; saves are serialized.
	writeMu sync.Mutex
}

// Open opens or creates the store at path. An empty path keeps the history in memory.
func Open(path string, logger *zap.Logger) (*Store, error) {
	log := logging.OrNop(logger).Named("reportstore")

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warn("pragma failed", zap.String("pragma", pragma), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Info("report store opened", zap.String("path", path))
	return &Store{db: db, path: path, logger: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a report: a summary row with the encoded report, one row
// per file and one row per diagnostic. Files and diagnostics go through the
// DuckDB appender.
func (s *Store) SaveRun(ctx context.Context, rep *models.DatasetReport) error {
	var blob bytes.Buffer
	if err := msgpack.NewEncoder(&blob).Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, root, started_at, finished_at, valid, nothing, file_count, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Root, rep.StartedAt.UTC(), rep.FinishedAt.UTC(),
		rep.Valid, rep.NothingToValidate, len(rep.Files), blob.Bytes())
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", rep.RunID, err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		if err := appendFiles(dConn, rep); err != nil {
			return err
		}
		return appendDiagnostics(dConn, rep)
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	s.logger.Debug("run saved", zap.String("run", rep.RunID), zap.Int("files", len(rep.Files)))
	return nil
}

func appendFiles(conn *duckdb.Conn, rep *models.DatasetReport) error {
	appender, err := duckdb.NewAppenderFromConn(conn, "", "files")
	if err != nil {
		return fmt.Errorf("failed to create appender: %w", err)
	}
	defer appender.Close()

	for i, f := range rep.Files {
		var linkage any
		if f.LinkageValid != nil {
			linkage = *f.LinkageValid
		}
		err := appender.AppendRow(
			rep.RunID,
			int32(i),
			f.Path,
			string(f.Category),
			nullString(f.Series),
			nullString(f.CanonicalName),
			f.Valid,
			linkage,
		)
		if err != nil {
			return fmt.Errorf("failed to append file %d: %w", i, err)
		}
	}
	return appender.Flush()
}

func appendDiagnostics(conn *duckdb.Conn, rep *models.DatasetReport) error {
	appender, err := duckdb.NewAppenderFromConn(conn, "", "diagnostics")
	if err != nil {
		return fmt.Errorf("failed to create appender: %w", err)
	}
	defer appender.Close()

	seq := 0
	add := func(path, severity, msg string) error {
		seq++
		return appender.AppendRow(rep.RunID, int32(seq), path, severity, msg)
	}
	for _, f := range rep.Files {
		for _, e := range f.Errors {
			if err := add(f.Path, SeverityError, e); err != nil {
				return fmt.Errorf("failed to append diagnostic: %w", err)
			}
		}
		for _, w := range f.Warnings {
			if err := add(f.Path, SeverityWarning, w); err != nil {
				return fmt.Errorf("failed to append diagnostic: %w", err)
			}
		}
	}
	return appender.Flush()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, root, started_at, finished_at, valid, nothing, file_count
		FROM runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Root, &r.StartedAt, &r.FinishedAt, &r.Valid, &r.NothingToValidate, &r.Files); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the full report of a run.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.DatasetReport, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}

	var rep models.DatasetReport
	if err := msgpack.Unmarshal(blob, &rep); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &rep, nil
}

// Diagnostics returns every error and warning recorded for a run, in
// file order.
func (s *Store) Diagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) > 0 FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking run %s: %w", runID, err)
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, severity, message FROM diagnostics WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []Diagnostic{}
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Path, &d.Severity, &d.Message); err != nil {
			return nil, err
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}
