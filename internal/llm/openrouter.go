package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultReferer           = "https://space2thread.app"
	defaultTitle             = "Space2Thread"
)

// OpenRouterOptions tunes the OpenRouter client. Zero values fall back to the
// defaults.
type OpenRouterOptions struct {
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
	Client  *http.Client
}

// OpenRouterClient calls the OpenRouter chat-completions endpoint.
type OpenRouterClient struct {
	apiKey  string
	baseURL string
	referer string
	title   string
	client  *http.Client
}

// NewOpenRouterClient resolves the credential once. An empty key fails fast
// with a *MissingCredentialError.
func NewOpenRouterClient(apiKey string, opts OpenRouterOptions) (*OpenRouterClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &MissingCredentialError{Variable: "OPENROUTER_API_KEY"}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenRouterBaseURL
	}
	if opts.Referer == "" {
		opts.Referer = defaultReferer
	}
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		referer: opts.Referer,
		title:   opts.Title,
		client:  client,
	}, nil
}

func (c *OpenRouterClient) Name() string {
	return "openrouter"
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Call sends one chat-completion request. It never retries.
func (c *OpenRouterClient) Call(ctx context.Context, messages []Message, model string) (string, error) {
	if err := validateCall(messages, model); err != nil {
		return "", err
	}
	res, err := c.exchange(ctx, messages, model)
	if err != nil {
		return "", err
	}
	return res.Unwrap("OpenRouter")
}

// exchange performs the HTTP round trip and classifies the answer. Transport
// failures (no HTTP response at all) are returned as plain errors.
func (c *OpenRouterClient) exchange(ctx context.Context, messages []Message, model string) (Result, error) {
	jsonData, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.title)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	return classifyChatResponse(resp.StatusCode, body), nil
}
