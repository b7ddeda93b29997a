// Package pipeline turns a Space URL or a local recording into the analysis
// report, and drafts a tweet thread from it when a transcript is available.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/space2thread/internal/analyzer"
	"github.com/valpere/space2thread/internal/logger"
	"github.com/valpere/space2thread/internal/thread"
)

type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, path string) (*analyzer.Analysis, error)
}

type ThreadGenerator interface {
	Generate(ctx context.Context, transcript, segments string) (*thread.Outcome, error)
}

// Recorder persists finished jobs. *store.Store satisfies it.
type Recorder interface {
	FindJobsByTranscript(ctx context.Context, transcript string) ([]string, error)
	SaveJob(ctx context.Context, sourceURL, audioPath, report, transcript string) (string, error)
	SaveThreadRun(ctx context.Context, jobID string, out *thread.Outcome) (string, error)
}

// Result is the response of a processing run. ThreadResult is nil when no
// transcript could be split out of the report or thread generation failed.
// DuplicateOf names the newest earlier job with the same transcript.
type Result struct {
	MarkdownReport string          `json:"markdown_report"`
	AudioPath      string          `json:"audio_path"`
	ThreadResult   *thread.Outcome `json:"thread_result"`
	JobID          string          `json:"job_id,omitempty"`
	DuplicateOf    string          `json:"duplicate_of,omitempty"`
}

type Pipeline struct {
	downloader Downloader
	analyzer   Analyzer
	threads    ThreadGenerator
	recorder   Recorder
	log        logger.Logger
}

type Option func(*Pipeline)

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

func New(d Downloader, a Analyzer, g ThreadGenerator, opts ...Option) *Pipeline {
	p := &Pipeline{downloader: d, analyzer: a, threads: g, log: logger.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process downloads the Space at url and runs the analysis on it.
func (p *Pipeline) Process(ctx context.Context, url string) (*Result, error) {
	if p.downloader == nil {
		return nil, errors.New("no downloader configured")
	}
	p.log.Info(ctx, "Received request for URL: %s", url)
	path, err := p.downloader.Download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	p.log.Info(ctx, "Downloaded to: %s", path)
	return p.run(ctx, url, path)
}

// ProcessFile runs the analysis on a local audio file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("audio file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("audio path %s is a directory", abs)
	}
	return p.run(ctx, "", abs)
}

func (p *Pipeline) run(ctx context.Context, sourceURL, audioPath string) (*Result, error) {
	p.log.Info(ctx, "Starting analysis...")
	analysis, err := p.analyzer.Analyze(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	p.log.Info(ctx, "Analysis complete.")

	result := &Result{
		MarkdownReport: analysis.Report,
		AudioPath:      audioPath,
	}

	segments, transcript := analyzer.SplitReport(analysis.Report)
	switch {
	case transcript == "":
		p.log.Warn(ctx, "Could not extract transcript for thread generation")
	case p.threads == nil:
		p.log.Debug(ctx, "No thread generator configured, skipping thread")
	default:
		p.log.Info(ctx, "Generating tweet thread...")
		out, err := p.threads.Generate(ctx, transcript, segments)
		if err != nil {
			p.log.Warn(ctx, "Thread generation failed (non-fatal): %v", err)
		} else {
			p.log.Info(ctx, "Thread generated: approved=%t, iterations=%d", out.Approved, out.Iterations)
			result.ThreadResult = out
		}
	}

	p.persist(ctx, sourceURL, transcript, result)
	return result, nil
}

// persist records the job and its thread. Storage failures are logged and
// do not fail the run.
func (p *Pipeline) persist(ctx context.Context, sourceURL, transcript string, result *Result) {
	if p.recorder == nil {
		return
	}
	if transcript != "" {
		ids, err := p.recorder.FindJobsByTranscript(ctx, transcript)
		switch {
		case err != nil:
			p.log.Warn(ctx, "Failed to look up earlier jobs: %v", err)
		case len(ids) > 0:
			result.DuplicateOf = ids[0]
			p.log.Info(ctx, "Transcript already processed as job %s", ids[0])
		}
	}

	jobID, err := p.recorder.SaveJob(ctx, sourceURL, result.AudioPath, result.MarkdownReport, transcript)
	if err != nil {
		p.log.Warn(ctx, "Failed to save job: %v", err)
		return
	}
	result.JobID = jobID

	if result.ThreadResult == nil {
		return
	}
	if _, err := p.recorder.SaveThreadRun(ctx, jobID, result.ThreadResult); err != nil {
		p.log.Warn(ctx, "Failed to save thread run for job %s: %v", jobID, err)
	}
}
