package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiOptions tunes the Gemini client.
type GeminiOptions struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// GeminiClient calls the Gemini API directly through the genai SDK. Model ids
// in OpenRouter form ("google/gemini-2.0-flash-001") are accepted.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &MissingCredentialError{Variable: "GEMINI_API_KEY"}
	}
	httpClient := opts.Client
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) Call(ctx context.Context, messages []Message, model string) (string, error) {
	if err := validateCall(messages, model); err != nil {
		return "", err
	}

	contents, system, err := toGeminiContents(messages)
	if err != nil {
		return "", err
	}

	var cfg *genai.GenerateContentConfig
	if system != nil {
		cfg = &genai.GenerateContentConfig{SystemInstruction: system}
	}

	resp, err := c.client.Models.GenerateContent(ctx, geminiModelName(model), contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{Provider: "Gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return "", &UpstreamError{Provider: "Gemini", StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &MalformedResponseError{Provider: "Gemini", Body: "no candidates in response"}
	}
	return resp.Text(), nil
}

// audioMIMEType maps an input_audio format name to its MIME type.
func audioMIMEType(format string) string {
	switch strings.ToLower(format) {
	case "mp3", "":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	case "wav":
		return "audio/wav"
	default:
		return "audio/" + strings.ToLower(format)
	}
}

// geminiModelName strips the "google/" vendor prefix used by OpenRouter.
func geminiModelName(model string) string {
	return strings.TrimPrefix(model, "google/")
}

// toGeminiContents splits system messages into a single system instruction
// and converts the rest to genai contents.
func toGeminiContents(messages []Message) ([]*genai.Content, *genai.Content, error) {
	var (
		contents    []*genai.Content
		systemTexts []string
	)

	for _, m := range messages {
		if m.Role == RoleSystem {
			systemTexts = append(systemTexts, m.PlainText())
			continue
		}

		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}

		if len(m.Parts) == 0 {
			contents = append(contents, genai.NewContentFromText(m.Text, role))
			continue
		}

		parts := make([]*genai.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch {
			case p.InputAudio != nil:
				data, err := base64.StdEncoding.DecodeString(p.InputAudio.Data)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to decode audio part: %w", err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, audioMIMEType(p.InputAudio.Format)))
			default:
				parts = append(parts, genai.NewPartFromText(p.Text))
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	var system *genai.Content
	if len(systemTexts) > 0 {
		system = genai.NewContentFromText(strings.Join(systemTexts, "\n\n"), genai.RoleUser)
	}
	return contents, system, nil
}
