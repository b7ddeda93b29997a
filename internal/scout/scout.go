// Package scout finds the most recent Space hosted by an account, using the
// Apify twitter-scraper actor.
package scout

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

	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/logger"
)

const (
	DefaultBaseURL  = "https://api.apify.com/v2"
	DefaultUsername = "elonmusk"
	actorPath       = "/acts/quacker~twitter-scraper/run-sync-get-dataset-items"
)

var (
	ErrNotFound    = errors.New("no recent spaces found for this user")
	ErrUnreachable = errors.New("failed to contact Scout")
)

type Scout struct {
	token   string
	baseURL string
	client  *http.Client
	log     logger.Logger
}

func New(token, baseURL string, timeout time.Duration, log logger.Logger) (*Scout, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &llm.MissingCredentialError{Variable: "APIFY_API_TOKEN"}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scout{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

type searchRequest struct {
	SearchTerms []string    `json:"searchTerms"`
	MaxItems    int         `json:"maxItems"`
	Sort        string      `json:"sort"`
	ProxyConfig proxyConfig `json:"proxyConfig"`
}

type proxyConfig struct {
	UseApifyProxy bool `json:"useApifyProxy"`
}

type item struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	IDStr       string `json:"id_str"`
}

// LatestSpace returns the URL of the newest Space by username.
func (s *Scout) LatestSpace(ctx context.Context, username string) (string, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		username = DefaultUsername
	}

	body, err := json.Marshal(searchRequest{
		SearchTerms: []string{fmt.Sprintf("from:%s filter:spaces", username)},
		MaxItems:    1,
		Sort:        "Latest",
		ProxyConfig: proxyConfig{UseApifyProxy: true},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+actorPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		s.log.Error(ctx, "Apify Error %d: %s", resp.StatusCode, string(respBody))
		return "", fmt.Errorf("%w: %w", ErrUnreachable, &llm.UpstreamError{Provider: "Apify", StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var items []item
	if err := json.Unmarshal(respBody, &items); err != nil {
		return "", &llm.MalformedResponseError{Provider: "Apify", Body: string(respBody)}
	}
	if len(items) == 0 {
		return "", ErrNotFound
	}

	return items[0].spaceURL(), nil
}

func (it item) spaceURL() string {
	if it.URL != "" {
		return it.URL
	}
	if it.ExpandedURL != "" {
		return it.ExpandedURL
	}
	return "https://twitter.com/i/spaces/" + it.IDStr
}
