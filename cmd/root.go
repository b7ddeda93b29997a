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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/logger"
)

var version = "0.1.0"

var (
	cfgFile  string
	logLevel string

	appCfg config.App
	log    logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "space2thread",
	Short: "Turn Twitter Spaces into reports, tweet threads and clips",
	Long: `space2thread downloads a Twitter Space, transcribes it with a multimodal
model, extracts the high-value moments and drafts a tweet thread that a
judge model refines for up to three rounds.

Secrets are read from the environment or a .env file:
  OPENROUTER_API_KEY   model calls through OpenRouter (default provider)
  GEMINI_API_KEY       model calls through the Gemini API
  APIFY_API_TOKEN      scout for the latest Space of an account

Use "space2thread serve" to start the HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./space2thread.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("space2thread")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/space2thread")
	}
	v.SetEnvPrefix("S2T")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	appCfg = config.App{}
	if err := v.Unmarshal(&appCfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if logLevel != "" {
		appCfg.Logging.Level = logLevel
	}
	if err := appCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log = logger.New(appCfg.Logging.Level)
	return nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors", true)

	v.SetDefault("paths.downloads", "downloads")
	v.SetDefault("paths.clips", "downloads/clips")
	v.SetDefault("paths.logos", "downloads/logos")
	v.SetDefault("paths.config_file", "config.json")
	v.SetDefault("paths.prompts_dir", "prompts")
	v.SetDefault("paths.db", "./data/space2thread.db")
	v.SetDefault("paths.inbox", "data/inbox")

	v.SetDefault("tools.ytdlp", "yt-dlp")
	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.ffmpeg_dir", "")
	v.SetDefault("tools.npx", "npx")
	v.SetDefault("tools.remotion_dir", "remotion")

	v.SetDefault("llm.provider", config.ProviderOpenRouter)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.referer", "https://space2thread.app")
	v.SetDefault("llm.title", "Space2Thread")

	v.SetDefault("logging.level", "info")
	v.SetDefault("watch.max_concurrent", 1)
	v.SetDefault("scout.default_username", "elonmusk")
	v.SetDefault("scout.timeout", "60s")
}
