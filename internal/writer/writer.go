// Package writer drafts a tweet thread from a transcript and its highlight
// segments. A draft may be a rewrite that answers the judge's last rejection.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/logger"
)

// Request carries everything one drafting round needs.
type Request struct {
	Transcript       string
	Segments         string
	Prompt           string
	Model            string
	PreviousFeedback string
}

// Writer produces one thread draft per call.
type Writer interface {
	Write(ctx context.Context, req Request) (string, error)
}

// LLMWriter drafts threads through a model call. The reply is returned as is.
type LLMWriter struct {
	caller llm.Caller
	log    logger.Logger
}

func NewLLMWriter(caller llm.Caller, log logger.Logger) *LLMWriter {
	if log == nil {
		log = logger.NewNop()
	}
	return &LLMWriter{caller: caller, log: log}
}

func (w *LLMWriter) Write(ctx context.Context, req Request) (string, error) {
	messages := []llm.Message{
		llm.SystemMessage(req.Prompt),
		llm.UserMessage(BuildUserContent(req.Transcript, req.Segments, req.PreviousFeedback)),
	}

	w.log.Info(ctx, "Calling writer (%s)...", req.Model)
	draft, err := w.caller.Call(ctx, messages, req.Model)
	if err != nil {
		return "", fmt.Errorf("writer call failed: %w", err)
	}
	w.log.Info(ctx, "Draft generated.")
	return draft, nil
}

// BuildUserContent assembles the writer's user message. The feedback section
// is appended only when feedback is non-empty.
func BuildUserContent(transcript, segments, previousFeedback string) string {
	var sb strings.Builder
	sb.WriteString("# Transcript\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\n# Viral Segments (High-Value Moments)\n")
	sb.WriteString(segments)

	if previousFeedback != "" {
		sb.WriteString("\n\n# IMPORTANT: Previous Feedback from Quality Judge\n")
		sb.WriteString("Your last draft was rejected. Here's what to fix:\n")
		sb.WriteString(previousFeedback)
		sb.WriteString("\n\nPlease rewrite the thread addressing this feedback.")
	}

	return sb.String()
}
