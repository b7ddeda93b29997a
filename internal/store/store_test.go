package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/space2thread/internal/thread"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_SaveAndGetJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	report := strings.Repeat("## Segment\nSomething was said.\n", 50)
	id, err := s.SaveJob(ctx, "https://x.com/i/spaces/1", "/downloads/space.mp3", report, "hello world")
	if err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected job id")
	}

	job, err := s.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Report != report {
		t.Error("report did not survive compression round trip")
	}
	if job.SourceURL != "https://x.com/i/spaces/1" || job.AudioPath != "/downloads/space.mp3" {
		t.Errorf("unexpected job %+v", job)
	}
	if job.TranscriptKey != TranscriptKey("hello world") {
		t.Errorf("unexpected transcript key %q", job.TranscriptKey)
	}
}

func TestStore_GetJob_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetJob(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobs, err := s.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if jobs == nil || len(jobs) != 0 {
		t.Errorf("expected empty non-nil list, got %v", jobs)
	}

	first, _ := s.SaveJob(ctx, "", "/a.mp3", "r1", "t1")
	second, _ := s.SaveJob(ctx, "", "/b.mp3", "r2", "t2")
	s.SaveJob(ctx, "", "/c.mp3", "r3", "t3")

	jobs, err = s.ListJobs(ctx, 2)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[1].ID != second || jobs[0].ID == first {
		t.Errorf("expected newest first, got %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestStore_FindJobsByTranscript(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.SaveJob(ctx, "", "/a.mp3", "r", "Hello   world\n")
	s.SaveJob(ctx, "", "/b.mp3", "r", "something else")

	ids, err := s.FindJobsByTranscript(ctx, "  Hello world")
	if err != nil {
		t.Fatalf("FindJobsByTranscript failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("expected [%s], got %v", id, ids)
	}
}

func TestStore_SaveThreadRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobID, _ := s.SaveJob(ctx, "", "/a.mp3", "report", "transcript")
	out := &thread.Outcome{
		Thread:     "1/ final thread",
		Iterations: 3,
		Approved:   true,
		FeedbackHistory: []thread.IterationRecord{
			{Iteration: 1, Score: 4, Feedback: "too long"},
			{Iteration: 2, Score: 6.5, Feedback: "weak hook"},
		},
	}

	runID, err := s.SaveThreadRun(ctx, jobID, out)
	if err != nil {
		t.Fatalf("SaveThreadRun failed: %v", err)
	}

	run, err := s.GetThreadRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetThreadRun failed: %v", err)
	}
	if run.JobID != jobID {
		t.Errorf("expected job %s, got %s", jobID, run.JobID)
	}
	if run.Outcome.Thread != out.Thread || run.Outcome.Iterations != 3 || !run.Outcome.Approved {
		t.Errorf("unexpected outcome %+v", run.Outcome)
	}
	if len(run.Outcome.FeedbackHistory) != 2 {
		t.Fatalf("expected 2 feedback records, got %d", len(run.Outcome.FeedbackHistory))
	}
	if run.Outcome.FeedbackHistory[1].Feedback != "weak hook" || run.Outcome.FeedbackHistory[1].Score != 6.5 {
		t.Errorf("unexpected feedback %+v", run.Outcome.FeedbackHistory[1])
	}

	latest, err := s.LatestThreadRun(ctx, jobID)
	if err != nil {
		t.Fatalf("LatestThreadRun failed: %v", err)
	}
	if latest.ID != runID {
		t.Errorf("expected latest run %s, got %s", runID, latest.ID)
	}
}

func TestStore_SaveThreadRun_Standalone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.SaveThreadRun(ctx, "", &thread.Outcome{Thread: "t", Iterations: 1, FeedbackHistory: []thread.IterationRecord{}})
	if err != nil {
		t.Fatalf("SaveThreadRun failed: %v", err)
	}
	run, err := s.GetThreadRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetThreadRun failed: %v", err)
	}
	if run.JobID != "" {
		t.Errorf("expected no job, got %q", run.JobID)
	}
	if run.Outcome.FeedbackHistory == nil || len(run.Outcome.FeedbackHistory) != 0 {
		t.Errorf("expected empty feedback history, got %v", run.Outcome.FeedbackHistory)
	}

	if _, err := s.SaveThreadRun(ctx, "", nil); err == nil {
		t.Error("expected error for nil outcome")
	}
	if _, err := s.LatestThreadRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListThreadRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveThreadRun(ctx, "", &thread.Outcome{Thread: "a", Iterations: 1, Approved: true})
	s.SaveThreadRun(ctx, "", &thread.Outcome{
		Thread:          "b",
		Iterations:      2,
		FeedbackHistory: []thread.IterationRecord{{Iteration: 1, Feedback: "no"}, {Iteration: 2, Feedback: "still no"}},
	})

	runs, err := s.ListThreadRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListThreadRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Outcome.Thread != "b" || len(runs[0].Outcome.FeedbackHistory) != 2 {
		t.Errorf("unexpected newest run %+v", runs[0])
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Jobs != 0 || stats.ThreadRuns != 0 || stats.AvgIterations != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	s.SaveJob(ctx, "", "/a.mp3", "r", "t")
	s.SaveThreadRun(ctx, "", &thread.Outcome{Thread: "a", Iterations: 1, Approved: true})
	s.SaveThreadRun(ctx, "", &thread.Outcome{Thread: "b", Iterations: 3})

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Jobs != 1 || stats.ThreadRuns != 2 || stats.Approved != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.AvgIterations != 2 {
		t.Errorf("expected average 2, got %v", stats.AvgIterations)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello  ", "hello"},
		{"hello\n\n world", "hello world"},
		{"e\u0301", "\u00e9"},
		{"", ""},
	}

	for _, tt := range tests {
		got := normalizeText(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeText(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestTranscriptKey(t *testing.T) {
	if TranscriptKey("   ") != "" {
		t.Error("expected empty key for blank transcript")
	}
	if TranscriptKey("a b") != TranscriptKey(" a\tb ") {
		t.Error("expected whitespace-insensitive keys")
	}
	if len(TranscriptKey("a")) != 64 {
		t.Errorf("expected hex sha256, got %q", TranscriptKey("a"))
	}
}
