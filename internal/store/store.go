package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/space2thread/internal/thread"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	s := &Store{db: db, encoder: encoder, decoder: decoder}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL DEFAULT '',
		audio_path TEXT NOT NULL,
		report_zst BLOB NOT NULL,
		transcript_key TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS thread_runs (
		id TEXT PRIMARY KEY,
		job_id TEXT,
		thread TEXT NOT NULL,
		iterations INTEGER NOT NULL,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (job_id) REFERENCES jobs(id)
	);

	-- thread_feedback keeps the rejected rounds of each run, in order
	CREATE TABLE IF NOT EXISTS thread_feedback (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL,
		PRIMARY KEY (run_id, iteration),
		FOREIGN KEY (run_id) REFERENCES thread_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_transcript ON jobs(transcript_key);
	CREATE INDEX IF NOT EXISTS idx_runs_job ON thread_runs(job_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Job is one processed broadcast.
type Job struct {
	ID            string    `json:"id"`
	SourceURL     string    `json:"source_url"`
	AudioPath     string    `json:"audio_path"`
	Report        string    `json:"markdown_report,omitempty"`
	TranscriptKey string    `json:"transcript_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// ThreadRun is a stored refinement outcome. JobID is empty for runs started
// from a bare transcript.
type ThreadRun struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Outcome   thread.Outcome `json:"outcome"`
}

// Stats summarises the run history.
type Stats struct {
	Jobs          int     `json:"jobs"`
	ThreadRuns    int     `json:"thread_runs"`
	Approved      int     `json:"approved"`
	AvgIterations float64 `json:"avg_iterations"`
}

// SaveJob stores a processed job and returns its id. The report is kept
// zstd-compressed.
func (s *Store) SaveJob(ctx context.Context, sourceURL, audioPath, report, transcript string) (string, error) {
	id := uuid.NewString()
	compressed := s.encoder.EncodeAll([]byte(report), nil)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source_url, audio_path, report_zst, transcript_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sourceURL, audioPath, compressed, TranscriptKey(transcript), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// SaveThreadRun stores an outcome with its feedback history. Pass an empty
// jobID for standalone runs.
func (s *Store) SaveThreadRun(ctx context.Context, jobID string, out *thread.Outcome) (string, error) {
	if out == nil {
		return "", errors.New("nil outcome")
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var job sql.NullString
	if jobID != "" {
		job = sql.NullString{String: jobID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thread_runs (id, job_id, thread, iterations, approved, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, job, out.Thread, out.Iterations, out.Approved, time.Now().UTC()); err != nil {
		return "", err
	}

	for _, rec := range out.FeedbackHistory {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_feedback (run_id, iteration, score, feedback) VALUES (?, ?, ?, ?)`,
			id, rec.Iteration, rec.Score, rec.Feedback); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var (
		j          Job
		compressed []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, audio_path, report_zst, transcript_key, created_at FROM jobs WHERE id = ?`,
		id).Scan(&j.ID, &j.SourceURL, &j.AudioPath, &compressed, &j.TranscriptKey, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	report, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress report: %w", err)
	}
	j.Report = string(report)
	return &j, nil
}

// ListJobs returns the most recent jobs without their reports.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_url, audio_path, transcript_key, created_at FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.SourceURL, &j.AudioPath, &j.TranscriptKey, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// FindJobsByTranscript returns ids of jobs whose transcript normalises to the
// same key, newest first.
func (s *Store) FindJobsByTranscript(ctx context.Context, transcript string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE transcript_key = ? ORDER BY created_at DESC, rowid DESC`,
		TranscriptKey(transcript))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetThreadRun(ctx context.Context, id string) (*ThreadRun, error) {
	var (
		r     ThreadRun
		jobID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, thread, iterations, approved, created_at FROM thread_runs WHERE id = ?`,
		id).Scan(&r.ID, &jobID, &r.Outcome.Thread, &r.Outcome.Iterations, &r.Outcome.Approved, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: thread run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r.JobID = jobID.String

	if r.Outcome.FeedbackHistory, err = s.feedback(ctx, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestThreadRun returns the newest run attached to a job.
func (s *Store) LatestThreadRun(ctx context.Context, jobID string) (*ThreadRun, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM thread_runs WHERE job_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		jobID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: thread run for job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return s.GetThreadRun(ctx, id)
}

// ListThreadRuns returns the most recent runs, feedback included.
func (s *Store) ListThreadRuns(ctx context.Context, limit int) ([]ThreadRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, thread, iterations, approved, created_at FROM thread_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}

	runs := []ThreadRun{}
	for rows.Next() {
		var (
			r     ThreadRun
			jobID sql.NullString
		)
		if err := rows.Scan(&r.ID, &jobID, &r.Outcome.Thread, &r.Outcome.Iterations, &r.Outcome.Approved, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		r.JobID = jobID.String
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Outcome.FeedbackHistory, err = s.feedback(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) feedback(ctx context.Context, runID string) ([]thread.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iteration, score, feedback FROM thread_feedback WHERE run_id = ? ORDER BY iteration`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []thread.IterationRecord{}
	for rows.Next() {
		var rec thread.IterationRecord
		if err := rows.Scan(&rec.Iteration, &rec.Score, &rec.Feedback); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&stats.Jobs); err != nil {
		return nil, err
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN approved THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(iterations), 0)
		FROM thread_runs`).Scan(
		&stats.ThreadRuns,
		&stats.Approved,
		&stats.AvgIterations,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	return s.db.Close()
}

// TranscriptKey is the hex SHA-256 of the trimmed, NFC-normalised transcript.
// Empty transcripts have an empty key.
func TranscriptKey(transcript string) string {
	normalized := normalizeText(transcript)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// normalizeText trims whitespace, collapses internal runs of whitespace and
// applies Unicode NFC normalization.
func normalizeText(text string) string {
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}
