package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Prompt and model keys used by the pipeline.
const (
	KeyTranscript   = "transcript"
	KeyExtract      = "extract"
	KeyVerify       = "verify"
	KeyThreadWriter = "thread_writer"
	KeyThreadJudge  = "thread_judge"
)

// DefaultModel is the model used for any step without an explicit selection.
const DefaultModel = "google/gemini-2.0-flash-001"

// PromptKeys lists the prompt files read on every load, in display order.
var PromptKeys = []string{KeyTranscript, KeyExtract, KeyVerify, KeyThreadWriter, KeyThreadJudge}

var ErrInvalidKey = errors.New("invalid prompt key")

var promptKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Document is the editable configuration: model selections per step and
// the system prompts.
type Document struct {
	Models  map[string]string `json:"models"`
	Prompts map[string]string `json:"prompts"`
}

// Model returns the model selected for key, or DefaultModel.
func (d Document) Model(key string) string {
	if m := d.Models[key]; m != "" {
		return m
	}
	return DefaultModel
}

// Prompt returns the prompt text for key ("" when absent).
func (d Document) Prompt(key string) string {
	return d.Prompts[key]
}

// Update is a partial document. Nil maps leave the stored values untouched.
type Update struct {
	Models  map[string]string `json:"models,omitempty"`
	Prompts map[string]string `json:"prompts,omitempty"`
}

// Provider hands out configuration snapshots.
type Provider interface {
	Load() (Document, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (Document, error)

func (f ProviderFunc) Load() (Document, error) {
	return f()
}

// Static is a Provider returning a fixed document.
type Static Document

func (s Static) Load() (Document, error) {
	return Document(s), nil
}

// Store keeps model selections in a JSON file and prompts as markdown files
// in a directory, one file per key.
type Store struct {
	configFile string
	promptsDir string
	mu         sync.RWMutex
}

func NewStore(configFile, promptsDir string) *Store {
	return &Store{configFile: configFile, promptsDir: promptsDir}
}

func defaultModels() map[string]string {
	return map[string]string{
		KeyTranscript: DefaultModel,
		KeyExtract:    DefaultModel,
		KeyVerify:     DefaultModel,
	}
}

// Load reads the models file and every known prompt. A missing models file
// yields the default selections, a missing prompt file yields "".
func (s *Store) Load() (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *Store) load() (Document, error) {
	doc := Document{Prompts: make(map[string]string, len(PromptKeys))}

	raw, err := s.readRaw()
	switch {
	case err == nil:
		doc.Models = map[string]string{}
		if m, ok := raw["models"]; ok && string(m) != "null" {
			if err := json.Unmarshal(m, &doc.Models); err != nil {
				return Document{}, fmt.Errorf("failed to parse models in %s: %w", s.configFile, err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
		doc.Models = defaultModels()
	default:
		return Document{}, err
	}

	for _, key := range PromptKeys {
		data, err := os.ReadFile(s.promptPath(key))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				doc.Prompts[key] = ""
				continue
			}
			return Document{}, fmt.Errorf("failed to read prompt %s: %w", key, err)
		}
		doc.Prompts[key] = string(data)
	}

	return doc, nil
}

// Update replaces the models object (other top-level keys of the file are
// kept) and overwrites the given prompt files, then returns a fresh load.
func (s *Store) Update(u Update) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range u.Prompts {
		if !promptKeyPattern.MatchString(key) {
			return Document{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}

	if u.Models != nil {
		raw, err := s.readRaw()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Document{}, err
		}
		if raw == nil {
			raw = map[string]json.RawMessage{}
		}
		models, err := json.Marshal(u.Models)
		if err != nil {
			return Document{}, fmt.Errorf("failed to encode models: %w", err)
		}
		raw["models"] = models

		data, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return Document{}, fmt.Errorf("failed to encode config: %w", err)
		}
		if dir := filepath.Dir(s.configFile); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return Document{}, fmt.Errorf("failed to create config directory: %w", err)
			}
		}
		if err := os.WriteFile(s.configFile, data, 0o644); err != nil {
			return Document{}, fmt.Errorf("failed to write %s: %w", s.configFile, err)
		}
	}

	if len(u.Prompts) > 0 {
		if err := os.MkdirAll(s.promptsDir, 0o755); err != nil {
			return Document{}, fmt.Errorf("failed to create prompts directory: %w", err)
		}
		for key, content := range u.Prompts {
			if err := os.WriteFile(s.promptPath(key), []byte(content), 0o644); err != nil {
				return Document{}, fmt.Errorf("failed to write prompt %s: %w", key, err)
			}
		}
	}

	return s.load()
}

func (s *Store) readRaw() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.configFile)
	if err != nil {
		return nil, err
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.configFile, err)
	}
	return raw, nil
}

func (s *Store) promptPath(key string) string {
	return filepath.Join(s.promptsDir, key+".md")
}
