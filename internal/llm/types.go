// Package llm holds the chat-completion transports used by every model-backed
// step of the pipeline. All providers satisfy Caller, so the analysis steps
// and the writer/judge loop do not care which backend answers.
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultModel is used whenever a model selection is missing from the
// configuration document.
const DefaultModel = "google/gemini-2.0-flash-001"

// ErrInvalidRequest is returned before any network call when the model id or
// the message list is empty.
var ErrInvalidRequest = errors.New("invalid model call")

// Caller sends an ordered list of messages to a model and returns the text of
// the reply.
type Caller interface {
	Call(ctx context.Context, messages []Message, model string) (string, error)
}

// CallerFunc adapts a plain function to Caller.
type CallerFunc func(ctx context.Context, messages []Message, model string) (string, error)

func (f CallerFunc) Call(ctx context.Context, messages []Message, model string) (string, error) {
	return f(ctx, messages, model)
}

// Message is one role-tagged chat message. When Parts is empty the message is
// sent with plain string content, otherwise as a list of typed parts.
type Message struct {
	Role  string
	Text  string
	Parts []Part
}

// Part is a single element of a multi-part user message.
type Part struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	InputAudio *AudioInput `json:"input_audio,omitempty"`
}

// AudioInput carries base64-encoded audio and its container format (mp3, wav).
type AudioInput struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// UserParts builds a user message with a rich payload.
func UserParts(parts ...Part) Message {
	return Message{Role: RoleUser, Parts: parts}
}

func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// AudioPart base64-encodes raw audio bytes into an input_audio part.
func AudioPart(data []byte, format string) Part {
	return Part{
		Type: "input_audio",
		InputAudio: &AudioInput{
			Data:   base64.StdEncoding.EncodeToString(data),
			Format: strings.ToLower(format),
		},
	}
}

// PlainText joins every text fragment of the message.
func (m Message) PlainText() string {
	if len(m.Parts) == 0 {
		return m.Text
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// HasAudio reports whether any part of the message is an audio payload.
func (m Message) HasAudio() bool {
	for _, p := range m.Parts {
		if p.InputAudio != nil {
			return true
		}
	}
	return false
}

func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 0 {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Text})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content []Part `json:"content"`
	}{m.Role, m.Parts})
}

func validateCall(messages []Message, model string) error {
	if strings.TrimSpace(model) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("model identifier is empty"))
	}
	if len(messages) == 0 {
		return errors.Join(ErrInvalidRequest, errors.New("message list is empty"))
	}
	return nil
}
