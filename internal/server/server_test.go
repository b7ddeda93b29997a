package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/valpere/space2thread/internal/clip"
	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/pipeline"
	"github.com/valpere/space2thread/internal/scout"
	"github.com/valpere/space2thread/internal/store"
	"github.com/valpere/space2thread/internal/thread"
)

type fakeCatalog struct{ models []llm.ModelInfo }

func (f fakeCatalog) Models(ctx context.Context) []llm.ModelInfo { return f.models }

type fakeConfig struct {
	doc     config.Document
	updated *config.Update
	err     error
}

func (f *fakeConfig) Load() (config.Document, error) { return f.doc, f.err }

func (f *fakeConfig) Update(u config.Update) (config.Document, error) {
	f.updated = &u
	if f.err != nil {
		return config.Document{}, f.err
	}
	return f.doc, nil
}

type fakeScout struct {
	url      string
	err      error
	username string
}

func (f *fakeScout) LatestSpace(ctx context.Context, username string) (string, error) {
	f.username = username
	return f.url, f.err
}

type fakeThreads struct {
	out *thread.Outcome
	err error
}

func (f *fakeThreads) Generate(ctx context.Context, transcript, segments string) (*thread.Outcome, error) {
	return f.out, f.err
}

type fakeProcessor struct {
	result *pipeline.Result
	err    error
}

func (f *fakeProcessor) Process(ctx context.Context, url string) (*pipeline.Result, error) {
	return f.result, f.err
}

type fakeClips struct {
	dir     string
	request clip.Request
	err     error
}

func (f *fakeClips) Render(ctx context.Context, req clip.Request) (string, error) {
	f.request = req
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(f.dir, "clip_abcd1234.mp4"), nil
}

func (f *fakeClips) SaveLogo(name string, src io.Reader) (string, string, error) {
	data, _ := io.ReadAll(src)
	filename := "logo_abcd1234" + filepath.Ext(name)
	path := filepath.Join(f.dir, filename)
	return path, filename, os.WriteFile(path, data, 0o644)
}

func (f *fakeClips) ClipPath(name string) (string, error) {
	path := filepath.Join(f.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", clip.ErrNotFound
	}
	return path, nil
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	return New(config.ServerConfig{Host: "127.0.0.1", Port: 0, CORS: true}, deps)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return m
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	s := newTestServer(t, Deps{Gatherer: reg})

	w := do(t, s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "test_total 1") {
		t.Errorf("unexpected metrics response %d %s", w.Code, w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected allow-all CORS, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestModels(t *testing.T) {
	s := newTestServer(t, Deps{Catalog: fakeCatalog{models: []llm.ModelInfo{{ID: "a/b"}}}})

	w := do(t, s, http.MethodGet, "/api/models", "")
	models, _ := decode(t, w)["models"].([]any)
	if w.Code != http.StatusOK || len(models) != 1 {
		t.Errorf("unexpected models response %d %s", w.Code, w.Body.String())
	}
}

func TestConfig(t *testing.T) {
	cfg := &fakeConfig{doc: config.Document{
		Models:  map[string]string{"transcript": "m"},
		Prompts: map[string]string{"thread_writer": "write"},
	}}
	s := newTestServer(t, Deps{Config: cfg})

	w := do(t, s, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"thread_writer":"write"`) {
		t.Errorf("unexpected config %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodPost, "/api/config", `{"models":{"thread_judge":"x"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	if cfg.updated == nil || cfg.updated.Models["thread_judge"] != "x" || cfg.updated.Prompts != nil {
		t.Errorf("unexpected update %+v", cfg.updated)
	}

	cfg.err = fmt.Errorf("%w: %q", config.ErrInvalidKey, "../x")
	w = do(t, s, http.MethodPost, "/api/config", `{"prompts":{"../x":"y"}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid key, got %d", w.Code)
	}
}

func TestScout(t *testing.T) {
	sc := &fakeScout{url: "https://x.com/i/spaces/1"}
	s := newTestServer(t, Deps{Scout: sc, DefaultUsername: "elonmusk"})

	w := do(t, s, http.MethodPost, "/api/scout", `{"username":"naval"}`)
	if w.Code != http.StatusOK || decode(t, w)["url"] != "https://x.com/i/spaces/1" {
		t.Errorf("unexpected scout response %d %s", w.Code, w.Body.String())
	}
	if sc.username != "naval" {
		t.Errorf("expected naval, got %q", sc.username)
	}

	do(t, s, http.MethodPost, "/api/scout", `{}`)
	if sc.username != "elonmusk" {
		t.Errorf("expected default username, got %q", sc.username)
	}
}

func TestScout_Errors(t *testing.T) {
	tests := []struct {
		name   string
		deps   Deps
		status int
	}{
		{"not found", Deps{Scout: &fakeScout{err: scout.ErrNotFound}}, http.StatusNotFound},
		{"upstream", Deps{Scout: &fakeScout{err: scout.ErrUnreachable}}, http.StatusInternalServerError},
		{"not configured", Deps{}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.deps)
			w := do(t, s, http.MethodPost, "/api/scout", `{"username":"a"}`)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if decode(t, w)["detail"] == "" {
				t.Error("expected detail message")
			}
		})
	}
}

type fakeHistory struct {
	jobs  map[string]*store.Job
	runs  map[string]*store.ThreadRun
	saved []*thread.Outcome
}

func (f *fakeHistory) ListJobs(ctx context.Context, limit int) ([]store.Job, error) {
	var jobs []store.Job
	for _, j := range f.jobs {
		jobs = append(jobs, *j)
	}
	return jobs, nil
}

func (f *fakeHistory) GetJob(ctx context.Context, id string) (*store.Job, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, fmt.Errorf("%w: job %s", store.ErrNotFound, id)
}

func (f *fakeHistory) LatestThreadRun(ctx context.Context, jobID string) (*store.ThreadRun, error) {
	if r, ok := f.runs[jobID]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeHistory) SaveThreadRun(ctx context.Context, jobID string, out *thread.Outcome) (string, error) {
	f.saved = append(f.saved, out)
	return "run-1", nil
}

func TestGenerateThread(t *testing.T) {
	out := &thread.Outcome{Thread: "1/ hi", Iterations: 2, Approved: true,
		FeedbackHistory: []thread.IterationRecord{{Iteration: 1, Score: 5, Feedback: "more"}}}
	hist := &fakeHistory{}
	s := newTestServer(t, Deps{Threads: &fakeThreads{out: out}, History: hist})

	w := do(t, s, http.MethodPost, "/api/generate-thread", `{"transcript":"t","segments":"s"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	if m["thread"] != "1/ hi" || m["approved"] != true || m["iterations"] != float64(2) {
		t.Errorf("unexpected outcome %v", m)
	}
	if history, _ := m["feedback_history"].([]any); len(history) != 1 {
		t.Errorf("unexpected feedback history %v", m["feedback_history"])
	}
	if len(hist.saved) != 1 {
		t.Error("expected the run to be recorded")
	}
}

func TestGenerateThread_ConfigurationError(t *testing.T) {
	err := &thread.ConfigurationError{Missing: []string{"thread_writer"}}
	s := newTestServer(t, Deps{Threads: &fakeThreads{err: err}})

	w := do(t, s, http.MethodPost, "/api/generate-thread", `{"transcript":"t","segments":"s"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(decode(t, w)["detail"].(string), "thread_writer") {
		t.Errorf("expected missing prompt in detail, got %s", w.Body.String())
	}
}

func TestProcess(t *testing.T) {
	res := &pipeline.Result{MarkdownReport: "# r", AudioPath: "/a.mp3"}
	s := newTestServer(t, Deps{Pipeline: &fakeProcessor{result: res}})

	w := do(t, s, http.MethodPost, "/api/process", `{"url":"https://x.com/i/spaces/1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	if m["markdown_report"] != "# r" || m["audio_path"] != "/a.mp3" {
		t.Errorf("unexpected result %v", m)
	}
	if v, ok := m["thread_result"]; !ok || v != nil {
		t.Errorf("expected null thread_result, got %v", v)
	}

	if w := do(t, s, http.MethodPost, "/api/process", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing url, got %d", w.Code)
	}

	s = newTestServer(t, Deps{Pipeline: &fakeProcessor{err: errors.New("download failed: boom")}})
	w = do(t, s, http.MethodPost, "/api/process", `{"url":"u"}`)
	if w.Code != http.StatusInternalServerError || decode(t, w)["detail"] != "download failed: boom" {
		t.Errorf("unexpected error response %d %s", w.Code, w.Body.String())
	}
}

func TestRenderClip(t *testing.T) {
	clips := &fakeClips{dir: t.TempDir()}
	s := newTestServer(t, Deps{Clips: clips})

	w := do(t, s, http.MethodPost, "/api/render-clip", `{"audio_path":"/a.mp3","start_time":1,"end_time":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	if m["clip_url"] != "/api/clips/clip_abcd1234.mp4" || m["filename"] != "clip_abcd1234.mp4" {
		t.Errorf("unexpected response %v", m)
	}
	if clips.request.Layout != clip.LayoutCenteredWaveform || clips.request.Title != "Space2Thread" || clips.request.LogoPosition != "top-right" {
		t.Errorf("expected request defaults, got %+v", clips.request)
	}

	clips.err = clip.ErrInvalidRange
	if w := do(t, s, http.MethodPost, "/api/render-clip", `{"audio_path":"/a.mp3","start_time":5,"end_time":1}`); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestUploadLogoAndServeClip(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, Deps{Clips: &fakeClips{dir: dir}})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "me.jpg")
	part.Write([]byte("jpeg"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload-logo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d %s", w.Code, w.Body.String())
	}
	if m := decode(t, w); m["filename"] != "logo_abcd1234.jpg" {
		t.Errorf("unexpected upload response %v", m)
	}

	os.WriteFile(filepath.Join(dir, "clip_1.mp4"), []byte("mp4"), 0o644)
	w = do(t, s, http.MethodGet, "/api/clips/clip_1.mp4", "")
	if w.Code != http.StatusOK || w.Body.String() != "mp4" {
		t.Errorf("unexpected clip response %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("unexpected content type %q", w.Header().Get("Content-Type"))
	}

	w = do(t, s, http.MethodGet, "/api/clips/missing.mp4", "")
	if w.Code != http.StatusNotFound || decode(t, w)["detail"] != "Clip not found" {
		t.Errorf("unexpected missing clip response %d %s", w.Code, w.Body.String())
	}
}

func TestJobs(t *testing.T) {
	hist := &fakeHistory{
		jobs: map[string]*store.Job{
			"j1": {ID: "j1", SourceURL: "https://x.com/i/spaces/1", Report: "## Hook\n**bold**"},
		},
		runs: map[string]*store.ThreadRun{
			"j1": {ID: "r1", JobID: "j1", Outcome: thread.Outcome{Thread: "1/ t", Iterations: 1, Approved: true}},
		},
	}
	s := newTestServer(t, Deps{History: hist})

	w := do(t, s, http.MethodGet, "/api/jobs", "")
	if jobs, _ := decode(t, w)["jobs"].([]any); w.Code != http.StatusOK || len(jobs) != 1 {
		t.Errorf("unexpected jobs response %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/api/jobs/j1", "")
	m := decode(t, w)
	if m["id"] != "j1" || m["markdown_report"] != "## Hook\n**bold**" {
		t.Errorf("unexpected job %v", m)
	}
	if tr, _ := m["thread_result"].(map[string]any); tr["thread"] != "1/ t" {
		t.Errorf("unexpected thread result %v", m["thread_result"])
	}

	w = do(t, s, http.MethodGet, "/api/jobs/j1/report.html", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<strong>bold</strong>") {
		t.Errorf("unexpected report %d %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type %q", w.Header().Get("Content-Type"))
	}

	if w := do(t, s, http.MethodGet, "/api/jobs/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestJobs_NoHistory(t *testing.T) {
	s := newTestServer(t, Deps{})
	if w := do(t, s, http.MethodGet, "/api/jobs", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
