package scout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/valpere/space2thread/internal/llm"
)

func newTestScout(t *testing.T, handler http.HandlerFunc) *Scout {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := New("apify-token", server.URL, time.Second, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestNew_MissingToken(t *testing.T) {
	_, err := New("", "", 0, nil)
	var mc *llm.MissingCredentialError
	if !errors.As(err, &mc) || mc.Variable != "APIFY_API_TOKEN" {
		t.Errorf("expected missing APIFY_API_TOKEN, got %v", err)
	}
}

func TestLatestSpace_Request(t *testing.T) {
	s := newTestScout(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acts/quacker~twitter-scraper/run-sync-get-dataset-items" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer apify-token" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(req.SearchTerms) != 1 || req.SearchTerms[0] != "from:naval filter:spaces" {
			t.Errorf("unexpected search terms %v", req.SearchTerms)
		}
		if req.MaxItems != 1 || req.Sort != "Latest" || !req.ProxyConfig.UseApifyProxy {
			t.Errorf("unexpected request %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"url":"https://x.com/i/spaces/1"}]`))
	})

	url, err := s.LatestSpace(context.Background(), "@naval")
	if err != nil {
		t.Fatalf("LatestSpace() error: %v", err)
	}
	if url != "https://x.com/i/spaces/1" {
		t.Errorf("unexpected url %q", url)
	}
}

func TestLatestSpace_URLPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"url first", `[{"url":"u","expanded_url":"e","id_str":"1"}]`, "u"},
		{"expanded url", `[{"expanded_url":"e","id_str":"1"}]`, "e"},
		{"id fallback", `[{"id_str":"1YqKDqWqdPLsV"}]`, "https://twitter.com/i/spaces/1YqKDqWqdPLsV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScout(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(tt.body))
			})
			got, err := s.LatestSpace(context.Background(), "")
			if err != nil {
				t.Fatalf("LatestSpace() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLatestSpace_DefaultUsername(t *testing.T) {
	s := newTestScout(t, func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SearchTerms[0] != "from:elonmusk filter:spaces" {
			t.Errorf("expected default username, got %v", req.SearchTerms)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"url":"u"}]`))
	})
	s.LatestSpace(context.Background(), "  ")
}

func TestLatestSpace_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"no spaces", http.StatusCreated, `[]`, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"ok is not created", http.StatusOK, `[{"url":"u"}]`, func(err error) bool { return errors.Is(err, ErrUnreachable) }},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`, func(err error) bool {
			var up *llm.UpstreamError
			return errors.Is(err, ErrUnreachable) && errors.As(err, &up) && up.StatusCode == 401
		}},
		{"not a list", http.StatusCreated, `{"items":[]}`, func(err error) bool {
			var m *llm.MalformedResponseError
			return errors.As(err, &m)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScout(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := s.LatestSpace(context.Background(), "naval")
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}
