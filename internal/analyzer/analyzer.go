// Package analyzer turns an audio file into a highlight report in three model
// calls: transcribe, extract segments, verify segments against the transcript.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/logger"
	"github.com/valpere/space2thread/internal/postprocess"
)

// TranscriptMarker separates the segments from the transcript in a report.
const TranscriptMarker = "# Full Transcript"

// Analysis is the output of one analyzer run.
type Analysis struct {
	Transcript string
	Segments   string
	Report     string
}

type Analyzer struct {
	caller   llm.Caller
	provider config.Provider
	log      logger.Logger
}

func New(caller llm.Caller, provider config.Provider, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Analyzer{caller: caller, provider: provider, log: log}
}

// Analyze reads the audio at path and runs the three analysis steps with a
// single configuration snapshot.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Analysis, error) {
	doc, err := a.provider.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a.log.Info(ctx, "Encoding audio...")
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	model := doc.Model(config.KeyTranscript)
	a.log.Info(ctx, "--- Step 1: Generating Transcript (%s) ---", model)
	transcript, err := a.call(ctx, model, doc.Prompt(config.KeyTranscript), llm.UserParts(
		llm.TextPart("Here is the audio file. Please transcribe it."),
		llm.AudioPart(audio, AudioFormat(path)),
	))
	if err != nil {
		return nil, fmt.Errorf("transcript step: %w", err)
	}
	a.log.Info(ctx, "Transcript generated successfully.")

	model = doc.Model(config.KeyExtract)
	a.log.Info(ctx, "--- Step 2: Extracting Viral Segments (%s) ---", model)
	draft, err := a.call(ctx, model, doc.Prompt(config.KeyExtract),
		llm.UserMessage("Here is the transcript:\n\n"+transcript))
	if err != nil {
		return nil, fmt.Errorf("extract step: %w", err)
	}
	a.log.Info(ctx, "Initial segments extracted.")

	model = doc.Model(config.KeyVerify)
	a.log.Info(ctx, "--- Step 3: Verifying and Refining (%s) ---", model)
	segments, err := a.call(ctx, model, doc.Prompt(config.KeyVerify),
		llm.UserMessage("ORIGINAL TRANSCRIPT:\n"+transcript+"\n\nDRAFT SEGMENTS:\n"+draft))
	if err != nil {
		return nil, fmt.Errorf("verify step: %w", err)
	}
	a.log.Info(ctx, "Final verification complete.")

	return &Analysis{
		Transcript: transcript,
		Segments:   segments,
		Report:     BuildReport(segments, transcript),
	}, nil
}

func (a *Analyzer) call(ctx context.Context, model, prompt string, user llm.Message) (string, error) {
	reply, err := a.caller.Call(ctx, []llm.Message{llm.SystemMessage(prompt), user}, model)
	if err != nil {
		return "", err
	}
	return postprocess.Clean(reply), nil
}

// BuildReport lays out the final segments followed by the full transcript.
func BuildReport(segments, transcript string) string {
	return "\n" + segments + "\n\n---\n\n" + TranscriptMarker + "\n" + transcript + "\n"
}

// SplitReport recovers segments and transcript from a report. Without the
// marker the whole report is returned as segments.
func SplitReport(report string) (segments, transcript string) {
	before, after, found := strings.Cut(report, TranscriptMarker)
	if !found {
		return report, ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// AudioFormat maps a file extension to an input_audio format name.
func AudioFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "wav"
	case ".ogg":
		return "ogg"
	case ".m4a":
		return "m4a"
	case ".flac":
		return "flac"
	default:
		return "mp3"
	}
}
