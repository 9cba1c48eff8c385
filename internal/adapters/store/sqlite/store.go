package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"formatif-grader/internal/domain/model"
	"formatif-grader/internal/platform/hash"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Store wraps reads and writes of the run ledger.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the ledger at path and applies migrations.
// The connection pool is pinned to one connection; the ledger has a single writer.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return nil, multierr.Append(fmt.Errorf("set busy_timeout: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return nil, multierr.Append(fmt.Errorf("enable foreign keys: %w", err), db.Close())
	}
	if err := NewMigrator(db).Up(ctx); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return db, nil
}

// GetSchemaMetaValue reads a schema_meta key; a missing key is "".
func (s *Store) GetSchemaMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM schema_meta
		WHERE key = ?
		LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query schema_meta %s: %w", key, err)
	}
	return v, nil
}

// RecordHash fingerprints a stored run so later edits to the row are detectable.
func RecordHash(runID, suiteSHA256, reportJSON string) string {
	return hash.Text(runID, suiteSHA256, reportJSON)
}

// SaveRun writes the run and its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, r model.RunReport) (err error) {
	if r.RunID == "" {
		return errors.New("save run: run id is required")
	}
	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs(
			run_id, suite_id, suite_version, suite_sha256, repo_dir,
			started_at, finished_at, total, passed, failed, skipped, warned, info,
			required_failed, report_json, record_hash, created_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID, r.SuiteID, r.SuiteVersion, r.SuiteSHA256, r.RepoDir,
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Summary.Total, r.Summary.Passed, r.Summary.Failed, r.Summary.Skipped,
		r.Summary.Warned, r.Summary.Info, r.Summary.RequiredFailed,
		string(reportJSON), RecordHash(r.RunID, r.SuiteSHA256, string(reportJSON)),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO check_results(
			run_id, seq, check_id, name, kind, status, required, message, line, weight, criterion
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert check_results: %w", err)
	}
	defer stmt.Close()

	for i, c := range r.Results {
		required := 0
		if c.Required {
			required = 1
		}
		_, err = stmt.ExecContext(ctx,
			r.RunID, i, c.ID, c.Name, string(c.Kind), string(c.Status),
			required, c.Message, c.Line, c.Weight, c.Criterion,
		)
		if err != nil {
			return fmt.Errorf("insert check result %s: %w", c.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, suite_id, suite_version, suite_sha256, repo_dir,
			started_at, finished_at, total, passed, failed, skipped, warned, info,
			required_failed, record_hash
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var started, finished int64
		if err := rows.Scan(
			&rec.RunID, &rec.SuiteID, &rec.SuiteVersion, &rec.SuiteSHA256, &rec.RepoDir,
			&started, &finished,
			&rec.Summary.Total, &rec.Summary.Passed, &rec.Summary.Failed, &rec.Summary.Skipped,
			&rec.Summary.Warned, &rec.Summary.Info, &rec.Summary.RequiredFailed,
			&rec.RecordHash,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started).UTC()
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetRun loads a stored report and reports whether its record hash still matches.
func (s *Store) GetRun(ctx context.Context, runID string) (*model.RunReport, bool, error) {
	var reportJSON, suiteSHA, recordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT report_json, suite_sha256, record_hash
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&reportJSON, &suiteSHA, &recordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, false, fmt.Errorf("query run %s: %w", runID, err)
	}

	var r model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	intact := RecordHash(runID, suiteSHA, reportJSON) == recordHash
	return &r, intact, nil
}

// CheckHistory counts statuses of one check id across all stored runs.
func (s *Store) CheckHistory(ctx context.Context, checkID string) (map[model.CheckStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM check_results
		WHERE check_id = ?
		GROUP BY status
	`, checkID)
	if err != nil {
		return nil, fmt.Errorf("query check history: %w", err)
	}
	defer rows.Close()

	out := make(map[model.CheckStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan check history: %w", err)
		}
		out[model.CheckStatus(status)] = n
	}
	return out, rows.Err()
}
