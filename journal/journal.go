// Package journal stores conversion reports in SQLite. A report only keeps
// the first error as its summary; the journal keeps every per-file result
// with its failure kind, message and converter.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/docpdf/convert"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("journal: job not found")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id          TEXT PRIMARY KEY,
	mode            TEXT NOT NULL,
	target          TEXT NOT NULL,
	status          TEXT NOT NULL,
	files_succeeded INTEGER NOT NULL,
	files_failed    INTEGER NOT NULL,
	first_error     TEXT NOT NULL DEFAULT '',
	message         TEXT NOT NULL DEFAULT '',
	output          TEXT NOT NULL DEFAULT '',
	pages           INTEGER NOT NULL DEFAULT 0,
	started_at      INTEGER NOT NULL,
	finished_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);

CREATE TABLE IF NOT EXISTS results (
	result_id     TEXT PRIMARY KEY,
	job_id        TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
	idx           INTEGER NOT NULL,
	path          TEXT NOT NULL,
	class         TEXT NOT NULL,
	status        TEXT NOT NULL,
	output        TEXT NOT NULL DEFAULT '',
	pages         INTEGER NOT NULL DEFAULT 0,
	via           TEXT NOT NULL DEFAULT '',
	error_kind    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_results_job ON results(job_id, idx);
`

// Job is a stored job summary.
type Job struct {
	JobID          string    `json:"job_id"`
	Mode           string    `json:"mode"`
	Target         string    `json:"target"`
	Status         string    `json:"status"`
	FilesSucceeded int       `json:"files_succeeded"`
	FilesFailed    int       `json:"files_failed"`
	FirstError     string    `json:"first_error,omitempty"`
	Message        string    `json:"message"`
	Output         string    `json:"output,omitempty"`
	Pages          int       `json:"pages"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Result is a stored per-file result.
type Result struct {
	ResultID     string        `json:"result_id"`
	JobID        string        `json:"job_id"`
	Index        int           `json:"index"`
	Path         string        `json:"path"`
	Class        string        `json:"class"`
	Status       string        `json:"status"`
	Output       string        `json:"output,omitempty"`
	Pages        int           `json:"pages"`
	Via          string        `json:"via,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Journal is the SQLite-backed history. It implements convert.Recorder.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal database at path and
// initializes its schema. Use ":memory:" for a throwaway journal.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db, logger: logger}
	if err := j.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Init creates the tables. It is idempotent.
func (j *Journal) Init() error {
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record stores r and all of its results in one transaction. Recording the
// same job twice replaces the earlier rows.
func (j *Journal) Record(ctx context.Context, r *convert.Report) error {
	err := runTx(ctx, j.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE job_id = ?`, r.JobID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO jobs (job_id, mode, target, status, files_succeeded, files_failed,
				first_error, message, output, pages, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.JobID, string(r.Mode), r.Target, string(r.Status()), r.FilesSucceeded, r.FilesFailed,
			r.FirstError, r.Message, r.Output, r.Pages, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli())
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO results (result_id, job_id, idx, path, class, status, output, pages, via,
				error_kind, error_message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, res := range r.Results {
			var kind, msg string
			if res.Err != nil {
				kind, msg = string(res.Err.Kind), res.Err.Msg
			}
			if _, err := stmt.ExecContext(ctx, res.ID, r.JobID, res.Index, res.Path, string(res.Class),
				string(res.Status), res.Output, res.Pages, res.Via, kind, msg, res.Duration.Milliseconds()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", r.JobID, err)
	}
	j.logger.Debug("journal: job recorded", "job_id", r.JobID, "results", len(r.Results))
	return nil
}

const jobColumns = `job_id, mode, target, status, files_succeeded, files_failed,
	first_error, message, output, pages, started_at, finished_at`

func scanJob(sc interface{ Scan(...any) error }) (Job, error) {
	var (
		jb                Job
		started, finished int64
	)
	err := sc.Scan(&jb.JobID, &jb.Mode, &jb.Target, &jb.Status, &jb.FilesSucceeded, &jb.FilesFailed,
		&jb.FirstError, &jb.Message, &jb.Output, &jb.Pages, &started, &finished)
	jb.StartedAt = time.UnixMilli(started).UTC()
	jb.FinishedAt = time.UnixMilli(finished).UTC()
	return jb, err
}

// Jobs returns the most recent jobs first. limit <= 0 means 50.
func (j *Journal) Jobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY started_at DESC, job_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		jb, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: scan job: %w", err)
		}
		jobs = append(jobs, jb)
	}
	return jobs, rows.Err()
}

// Job returns one job summary.
func (j *Journal) Job(ctx context.Context, jobID string) (*Job, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	jb, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: get job: %w", err)
	}
	return &jb, nil
}

// Results returns every result of a job in input order.
func (j *Journal) Results(ctx context.Context, jobID string) ([]Result, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT result_id, job_id, idx, path, class, status, output, pages, via,
			error_kind, error_message, duration_ms
		FROM results WHERE job_id = ? ORDER BY idx`, jobID)
	if err != nil {
		return nil, fmt.Errorf("journal: list results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r  Result
			ms int64
		)
		if err := rows.Scan(&r.ResultID, &r.JobID, &r.Index, &r.Path, &r.Class, &r.Status, &r.Output,
			&r.Pages, &r.Via, &r.ErrorKind, &r.ErrorMessage, &ms); err != nil {
			return nil, fmt.Errorf("journal: scan result: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes jobs that started more than retentionDays ago, together with
// their results, and returns how many jobs were removed. retentionDays <= 0
// keeps everything.
func (j *Journal) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	threshold := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	var n int64
	err := runTx(ctx, j.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE started_at < ?`, threshold)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	if n > 0 {
		j.logger.Info("journal: pruned old jobs", "jobs", n, "retention_days", retentionDays)
	}
	return n, nil
}
