// Package thread runs the writer/judge refinement loop that turns a transcript
// and its highlight segments into an approved (or best-effort) tweet thread.
package thread

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/judge"
	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/logger"
	"github.com/valpere/space2thread/internal/writer"
)

// MaxIterations bounds the number of writer/judge rounds.
const MaxIterations = 3

// ErrConfiguration matches every *ConfigurationError.
var ErrConfiguration = errors.New("thread generation not configured")

// ConfigurationError reports a missing prompt. It is raised before any
// model call is made.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("thread writer or judge prompts not configured (missing: %v)", e.Missing)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// IterationRecord is one rejected round.
type IterationRecord struct {
	Iteration int     `json:"iteration"`
	Score     float64 `json:"score"`
	Feedback  string  `json:"feedback"`
}

// Outcome is the result of one refinement run. Thread is always the last
// draft produced, approved or not.
type Outcome struct {
	Thread          string            `json:"thread"`
	Iterations      int               `json:"iterations"`
	Approved        bool              `json:"approved"`
	FeedbackHistory []IterationRecord `json:"feedback_history"`
}

// Settings is the per-run snapshot of models and prompts.
type Settings struct {
	WriterModel  string
	JudgeModel   string
	WriterPrompt string
	JudgePrompt  string
}

// SettingsFrom derives run settings from a configuration document.
func SettingsFrom(doc config.Document) Settings {
	return Settings{
		WriterModel:  doc.Model(config.KeyThreadWriter),
		JudgeModel:   doc.Model(config.KeyThreadJudge),
		WriterPrompt: doc.Prompt(config.KeyThreadWriter),
		JudgePrompt:  doc.Prompt(config.KeyThreadJudge),
	}
}

func (s Settings) validate() error {
	var missing []string
	if s.WriterPrompt == "" {
		missing = append(missing, config.KeyThreadWriter)
	}
	if s.JudgePrompt == "" {
		missing = append(missing, config.KeyThreadJudge)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Generator owns the refinement loop. It keeps no per-run state, so one
// Generator may serve concurrent runs.
type Generator struct {
	writer   writer.Writer
	judge    judge.Judge
	provider config.Provider
	log      logger.Logger
	metrics  *Metrics
}

type Option func(*Generator)

func WithMetrics(m *Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithLogger(log logger.Logger) Option {
	return func(g *Generator) { g.log = log }
}

// New builds a Generator from explicit steps.
func New(w writer.Writer, j judge.Judge, provider config.Provider, opts ...Option) *Generator {
	g := &Generator{
		writer:   w,
		judge:    j,
		provider: provider,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromCaller wires the model-backed writer and judge onto one Caller.
func NewFromCaller(caller llm.Caller, provider config.Provider, log logger.Logger, opts ...Option) *Generator {
	if log == nil {
		log = logger.NewNop()
	}
	opts = append([]Option{WithLogger(log)}, opts...)
	return New(writer.NewLLMWriter(caller, log), judge.NewLLMJudge(caller, log), provider, opts...)
}

// Generate loads a configuration snapshot and runs the loop with it.
func (g *Generator) Generate(ctx context.Context, transcript, segments string) (*Outcome, error) {
	if g.provider == nil {
		return nil, &ConfigurationError{Missing: []string{config.KeyThreadWriter, config.KeyThreadJudge}}
	}
	doc, err := g.provider.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return g.GenerateWith(ctx, SettingsFrom(doc), transcript, segments)
}

// GenerateWith runs the loop with explicit settings. Writer and judge errors
// abort the run; an unparseable judge reply counts as a rejection.
func (g *Generator) GenerateWith(ctx context.Context, s Settings, transcript, segments string) (*Outcome, error) {
	start := time.Now()
	if err := s.validate(); err != nil {
		g.metrics.observeRun("config_error", 0, time.Since(start))
		return nil, err
	}

	var (
		history  = make([]IterationRecord, 0, MaxIterations)
		feedback string
		draft    string
		approved bool
		round    int
	)

	for round = 1; round <= MaxIterations; round++ {
		g.log.Info(ctx, "--- Thread Generation: Iteration %d/%d ---", round, MaxIterations)

		var err error
		draft, err = g.writer.Write(ctx, writer.Request{
			Transcript:       transcript,
			Segments:         segments,
			Prompt:           s.WriterPrompt,
			Model:            s.WriterModel,
			PreviousFeedback: feedback,
		})
		if err != nil {
			g.metrics.observeRun("error", 0, time.Since(start))
			return nil, fmt.Errorf("iteration %d: %w", round, err)
		}

		verdict, err := g.judge.Evaluate(ctx, draft, s.JudgePrompt, s.JudgeModel)
		if err != nil {
			g.metrics.observeRun("error", 0, time.Since(start))
			return nil, fmt.Errorf("iteration %d: %w", round, err)
		}

		if verdict.Approved {
			g.metrics.observeVerdict("approved")
			approved = true
			g.log.Info(ctx, "Thread approved!")
			break
		}

		if verdict.Malformed {
			g.metrics.observeVerdict("malformed")
		} else {
			g.metrics.observeVerdict("rejected")
		}
		history = append(history, IterationRecord{
			Iteration: round,
			Score:     verdict.Score,
			Feedback:  verdict.Feedback,
		})
		feedback = verdict.Feedback
		g.log.Info(ctx, "Thread rejected. Feedback: %s", verdict.Feedback)
	}

	if !approved {
		round = MaxIterations
		g.log.Info(ctx, "Max iterations (%d) reached. Returning best attempt.", MaxIterations)
		g.metrics.observeRun("exhausted", round, time.Since(start))
	} else {
		g.metrics.observeRun("approved", round, time.Since(start))
	}

	return &Outcome{
		Thread:          draft,
		Iterations:      round,
		Approved:        approved,
		FeedbackHistory: history,
	}, nil
}
