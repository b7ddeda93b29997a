/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/space2thread/internal/analyzer"
	"github.com/valpere/space2thread/internal/clip"
	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/executor"
	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/media"
	"github.com/valpere/space2thread/internal/pipeline"
	"github.com/valpere/space2thread/internal/scout"
	"github.com/valpere/space2thread/internal/store"
	"github.com/valpere/space2thread/internal/thread"
)

// newCaller builds the model client for llm.provider. Credentials are
// resolved here, once per process.
func newCaller(ctx context.Context) (llm.Caller, error) {
	switch appCfg.LLM.Provider {
	case config.ProviderGemini:
		c, err := llm.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), llm.GeminiOptions{
			BaseURL: appCfg.LLM.BaseURL,
			Timeout: appCfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderOllama:
		return llm.NewOllamaClient(appCfg.LLM.BaseURL, appCfg.LLM.Timeout), nil
	default:
		c, err := llm.NewOpenRouterClient(os.Getenv("OPENROUTER_API_KEY"), llm.OpenRouterOptions{
			BaseURL: appCfg.LLM.BaseURL,
			Referer: appCfg.LLM.Referer,
			Title:   appCfg.LLM.Title,
			Timeout: appCfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func newConfigStore() *config.Store {
	return config.NewStore(appCfg.Paths.ConfigFile, appCfg.Paths.PromptsDir)
}

// newCatalog lists OpenRouter models. Other providers still browse the
// public OpenRouter listing.
func newCatalog() *llm.Catalog {
	baseURL := llm.DefaultOpenRouterBaseURL
	if appCfg.LLM.Provider == config.ProviderOpenRouter && appCfg.LLM.BaseURL != "" {
		baseURL = appCfg.LLM.BaseURL
	}
	return llm.NewCatalog(baseURL, 0, log)
}

func openHistory() (*store.Store, error) {
	if dir := filepath.Dir(appCfg.Paths.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(appCfg.Paths.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func newGenerator(caller llm.Caller, cfgStore config.Provider) *thread.Generator {
	return thread.NewFromCaller(caller, cfgStore, log, thread.WithMetrics(thread.DefaultMetrics()))
}

// newPipeline wires download, analysis and thread generation. history may
// be nil.
func newPipeline(caller llm.Caller, cfgStore config.Provider, history *store.Store) *pipeline.Pipeline {
	downloader := media.NewDownloader(executor.New(), media.Options{
		YtDlp:     appCfg.Tools.YtDlp,
		FFmpegDir: appCfg.Tools.FFmpegDir,
		Dir:       appCfg.Paths.Downloads,
	}, log)

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if history != nil {
		opts = append(opts, pipeline.WithRecorder(history))
	}
	return pipeline.New(
		downloader,
		analyzer.New(caller, cfgStore, log),
		newGenerator(caller, cfgStore),
		opts...,
	)
}

func newRenderer() *clip.Renderer {
	return clip.NewRenderer(executor.New(), clip.Options{
		FFmpeg:      appCfg.Tools.FFmpeg,
		Npx:         appCfg.Tools.Npx,
		RemotionDir: appCfg.Tools.RemotionDir,
		ClipsDir:    appCfg.Paths.Clips,
		LogosDir:    appCfg.Paths.Logos,
	}, log)
}

func newScout() (*scout.Scout, error) {
	return scout.New(os.Getenv("APIFY_API_TOKEN"), "", appCfg.Scout.Timeout, log)
}
