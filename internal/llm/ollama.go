package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultOllamaBaseURL = "http://localhost:11434"

// ErrAudioUnsupported is returned by providers that cannot take audio input.
var ErrAudioUnsupported = errors.New("provider does not accept audio input")

// OllamaClient talks to a self-hosted Ollama server through /api/chat. It is
// meant for the text-only steps (extract, verify, writer, judge).
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) Name() string {
	return "ollama"
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

func (c *OllamaClient) Call(ctx context.Context, messages []Message, model string) (string, error) {
	if err := validateCall(messages, model); err != nil {
		return "", err
	}

	reqBody := ollamaChatRequest{Model: model, Stream: false}
	for _, m := range messages {
		if m.HasAudio() {
			return "", fmt.Errorf("ollama: %w", ErrAudioUnsupported)
		}
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: m.Role, Content: m.PlainText()})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Provider: "Ollama", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil || chatResp.Message == nil || chatResp.Message.Content == nil {
		return "", &MalformedResponseError{Provider: "Ollama", Body: string(body)}
	}

	return *chatResp.Message.Content, nil
}
