package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/valpere/space2thread/internal/logger"
)

const (
	defaultCatalogTTL = 10 * time.Minute
	catalogCacheSize  = 8
)

// ModelInfo is one entry of the provider model listing.
type ModelInfo struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	ContextLength int            `json:"context_length,omitempty"`
	Pricing       map[string]any `json:"pricing,omitempty"`
}

type catalogEntry struct {
	models   []ModelInfo
	storedAt time.Time
}

// Catalog lists the models available on an OpenRouter-compatible endpoint.
// Successful listings are cached per base URL for the configured TTL.
type Catalog struct {
	baseURL string
	client  *http.Client
	ttl     time.Duration
	log     logger.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, catalogEntry]
}

func NewCatalog(baseURL string, ttl time.Duration, log logger.Logger) *Catalog {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	cache, _ := lru.New[string, catalogEntry](catalogCacheSize)
	return &Catalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     ttl,
		log:     log,
		cache:   cache,
	}
}

// Models returns the listing sorted by id. Any failure yields an empty list
// and is only logged.
func (c *Catalog) Models(ctx context.Context) []ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.cache.Get(c.baseURL); ok {
		if time.Since(entry.storedAt) < c.ttl {
			return entry.models
		}
		c.cache.Remove(c.baseURL)
	}

	models, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn(ctx, "Failed to fetch model catalog: %v", err)
		return []ModelInfo{}
	}
	c.cache.Add(c.baseURL, catalogEntry{models: models, storedAt: time.Now()})
	return models
}

func (c *Catalog) fetch(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Provider: "OpenRouter", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var listing struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &MalformedResponseError{Provider: "OpenRouter", Body: string(body)}
	}

	sort.Slice(listing.Data, func(i, j int) bool {
		return listing.Data[i].ID < listing.Data[j].ID
	})
	if listing.Data == nil {
		listing.Data = []ModelInfo{}
	}
	return listing.Data, nil
}
