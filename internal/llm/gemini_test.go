package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestNewGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", GeminiOptions{})
	var mc *MissingCredentialError
	if !errors.As(err, &mc) || mc.Variable != "GEMINI_API_KEY" {
		t.Errorf("expected MissingCredentialError for GEMINI_API_KEY, got %v", err)
	}
}

func TestGeminiModelName(t *testing.T) {
	if got := geminiModelName("google/gemini-2.0-flash-001"); got != "gemini-2.0-flash-001" {
		t.Errorf("unexpected model name %q", got)
	}
	if got := geminiModelName("gemini-1.5-pro"); got != "gemini-1.5-pro" {
		t.Errorf("unexpected model name %q", got)
	}
}

func TestAudioMIMEType(t *testing.T) {
	tests := map[string]string{
		"mp3":  "audio/mpeg",
		"m4a":  "audio/mp4",
		"wav":  "audio/wav",
		"ogg":  "audio/ogg",
		"flac": "audio/flac",
	}
	for format, want := range tests {
		if got := audioMIMEType(format); got != want {
			t.Errorf("audioMIMEType(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestToGeminiContents(t *testing.T) {
	messages := []Message{
		SystemMessage("you transcribe"),
		UserParts(TextPart("Here is the audio file."), AudioPart([]byte{1, 2, 3}, "mp3")),
		{Role: RoleAssistant, Text: "ok"},
	}

	contents, system, err := toGeminiContents(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system == nil || len(system.Parts) != 1 || system.Parts[0].Text != "you transcribe" {
		t.Fatalf("unexpected system instruction: %+v", system)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}

	user := contents[0]
	if user.Role != genai.RoleUser || len(user.Parts) != 2 {
		t.Fatalf("unexpected user content: %+v", user)
	}
	audio := user.Parts[1].InlineData
	if audio == nil || audio.MIMEType != "audio/mpeg" || string(audio.Data) != "\x01\x02\x03" {
		t.Errorf("unexpected audio part: %+v", audio)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("expected assistant mapped to model role, got %q", contents[1].Role)
	}
}

func TestToGeminiContents_BadAudio(t *testing.T) {
	msg := UserParts(Part{Type: "input_audio", InputAudio: &AudioInput{Data: "%%%", Format: "mp3"}})
	if _, _, err := toGeminiContents([]Message{msg}); err == nil {
		t.Error("expected error for undecodable audio")
	}
}

func TestGeminiClient_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash-001:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "gk" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "systemInstruction") {
			t.Errorf("expected system instruction in request, got %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"segments"}]}}]}`))
	}))
	defer server.Close()

	c, err := NewGeminiClient(context.Background(), "gk", GeminiOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	text, err := c.Call(context.Background(), []Message{SystemMessage("extract"), UserMessage("transcript")}, "google/gemini-2.0-flash-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "segments" {
		t.Errorf("expected 'segments', got %q", text)
	}
}

func TestGeminiClient_Call_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		checkFn func(t *testing.T, err error)
	}{
		{
			name:   "api error",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"bad model","status":"INVALID_ARGUMENT"}}`,
			checkFn: func(t *testing.T, err error) {
				var upstream *UpstreamError
				if !errors.As(err, &upstream) || upstream.StatusCode != 400 || upstream.Body != "bad model" {
					t.Errorf("expected UpstreamError 400, got %v", err)
				}
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"candidates":[]}`,
			checkFn: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				if !errors.As(err, &malformed) {
					t.Errorf("expected MalformedResponseError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, err := NewGeminiClient(context.Background(), "gk", GeminiOptions{BaseURL: server.URL})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			_, err = c.Call(context.Background(), []Message{UserMessage("x")}, "gemini-2.0-flash-001")
			tt.checkFn(t, err)
		})
	}
}
