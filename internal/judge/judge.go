// Package judge evaluates a thread draft and turns the model's reply into a
// Verdict. A reply that cannot be understood is treated as a rejection, never
// as an error.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/logger"
	"github.com/valpere/space2thread/internal/postprocess"
)

const (
	DefaultFeedback   = "No specific feedback provided"
	MalformedFeedback = "Judge response was malformed. Please try again."
)

// Verdict is the judge's decision on one draft. Malformed marks a verdict
// synthesized because the reply could not be parsed.
type Verdict struct {
	Approved  bool    `json:"approved"`
	Score     float64 `json:"score"`
	Feedback  string  `json:"feedback"`
	Malformed bool    `json:"malformed,omitempty"`
}

// MalformedVerdict is the fail-closed verdict for unparseable replies.
func MalformedVerdict() Verdict {
	return Verdict{Approved: false, Score: 0, Feedback: MalformedFeedback, Malformed: true}
}

type Judge interface {
	Evaluate(ctx context.Context, draft, prompt, model string) (Verdict, error)
}

type LLMJudge struct {
	caller llm.Caller
	log    logger.Logger
}

func NewLLMJudge(caller llm.Caller, log logger.Logger) *LLMJudge {
	if log == nil {
		log = logger.NewNop()
	}
	return &LLMJudge{caller: caller, log: log}
}

// Evaluate asks the model to grade draft. Only transport and envelope errors
// are returned; reply parsing problems produce MalformedVerdict.
func (j *LLMJudge) Evaluate(ctx context.Context, draft, prompt, model string) (Verdict, error) {
	messages := []llm.Message{
		llm.SystemMessage(prompt),
		llm.UserMessage("Evaluate this tweet thread:\n\n" + draft),
	}

	j.log.Info(ctx, "Calling judge (%s)...", model)
	reply, err := j.caller.Call(ctx, messages, model)
	if err != nil {
		return Verdict{}, fmt.Errorf("judge call failed: %w", err)
	}

	verdict, err := ParseVerdict(reply)
	if err != nil {
		j.log.Warn(ctx, "Could not parse judge response as JSON: %s (%v)", reply, err)
		return MalformedVerdict(), nil
	}

	j.log.Info(ctx, "Judge result: approved=%t, score=%g", verdict.Approved, verdict.Score)
	return verdict, nil
}

var errNotObject = errors.New("judge reply is not a JSON object")

// ParseVerdict decodes a judge reply. Thinking blocks are dropped, and when the
// reply starts with a ``` fence its first and last lines are removed. Missing
// fields take their defaults. Only an unusable approved field is an error;
// score and feedback of another type are coerced.
func ParseVerdict(reply string) (Verdict, error) {
	cleaned := strings.TrimSpace(postprocess.StripThinking(reply))
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) < 2 {
			cleaned = ""
		} else {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return Verdict{}, err
	}
	if fields == nil {
		return Verdict{}, errNotObject
	}

	v := Verdict{Feedback: DefaultFeedback}
	if raw, ok := fields["approved"]; ok {
		var approved *bool
		if err := json.Unmarshal(raw, &approved); err != nil {
			return Verdict{}, fmt.Errorf("approved: %w", err)
		}
		if approved != nil {
			v.Approved = *approved
		}
	}
	if raw, ok := fields["score"]; ok {
		v.Score = parseScore(raw)
	}
	if raw, ok := fields["feedback"]; ok {
		v.Feedback = parseFeedback(raw)
	}

	return v, nil
}

// parseScore accepts a number or a numeric string. Anything else scores 0.
func parseScore(raw json.RawMessage) float64 {
	var score float64
	if err := json.Unmarshal(raw, &score); err == nil {
		return score
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return f
		}
	}
	return 0
}

// parseFeedback returns string feedback as is and the compact JSON text of
// any other non-null value.
func parseFeedback(raw json.RawMessage) string {
	var feedback *string
	if err := json.Unmarshal(raw, &feedback); err == nil {
		if feedback == nil {
			return DefaultFeedback
		}
		return *feedback
	}
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return string(raw)
	}
	return b.String()
}
