// Package config holds the two layers of configuration: App, the process
// settings read once at startup, and Store, the editable document of model
// selections and prompts that is re-read at the start of every run.
package config

import (
	"fmt"
	"time"
)

type App struct {
	Server  ServerConfig  `mapstructure:"server"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Logging LoggingConfig `mapstructure:"logging"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Scout   ScoutConfig   `mapstructure:"scout"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	CORS bool   `mapstructure:"cors"`
}

type PathsConfig struct {
	Downloads  string `mapstructure:"downloads"`
	Clips      string `mapstructure:"clips"`
	Logos      string `mapstructure:"logos"`
	ConfigFile string `mapstructure:"config_file"`
	PromptsDir string `mapstructure:"prompts_dir"`
	DB         string `mapstructure:"db"`
	Inbox      string `mapstructure:"inbox"`
}

type ToolsConfig struct {
	YtDlp       string `mapstructure:"ytdlp"`
	FFmpeg      string `mapstructure:"ffmpeg"`
	FFmpegDir   string `mapstructure:"ffmpeg_dir"`
	Npx         string `mapstructure:"npx"`
	RemotionDir string `mapstructure:"remotion_dir"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Referer  string        `mapstructure:"referer"`
	Title    string        `mapstructure:"title"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type WatchConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type ScoutConfig struct {
	DefaultUsername string        `mapstructure:"default_username"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Provider names accepted in llm.provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// Validate fills defaults and rejects values that cannot work.
func (c *App) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if c.Paths.Downloads == "" {
		c.Paths.Downloads = "downloads"
	}
	if c.Paths.Clips == "" {
		c.Paths.Clips = "downloads/clips"
	}
	if c.Paths.Logos == "" {
		c.Paths.Logos = "downloads/logos"
	}
	if c.Paths.ConfigFile == "" {
		c.Paths.ConfigFile = "config.json"
	}
	if c.Paths.PromptsDir == "" {
		c.Paths.PromptsDir = "prompts"
	}
	if c.Paths.DB == "" {
		c.Paths.DB = "./data/space2thread.db"
	}
	if c.Paths.Inbox == "" {
		c.Paths.Inbox = "data/inbox"
	}

	if c.Tools.YtDlp == "" {
		c.Tools.YtDlp = "yt-dlp"
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = "ffmpeg"
	}
	if c.Tools.Npx == "" {
		c.Tools.Npx = "npx"
	}
	if c.Tools.RemotionDir == "" {
		c.Tools.RemotionDir = "remotion"
	}

	switch c.LLM.Provider {
	case "":
		c.LLM.Provider = ProviderOpenRouter
	case ProviderOpenRouter, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.Referer == "" {
		c.LLM.Referer = "https://space2thread.app"
	}
	if c.LLM.Title == "" {
		c.LLM.Title = "Space2Thread"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Watch.MaxConcurrent <= 0 {
		c.Watch.MaxConcurrent = 1
	}
	if c.Scout.DefaultUsername == "" {
		c.Scout.DefaultUsername = "elonmusk"
	}
	if c.Scout.Timeout == 0 {
		c.Scout.Timeout = 60 * time.Second
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *App) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
