package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	YTDLPPath   string `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	CookiesPath string `envconfig:"COOKIES_PATH"`

	StaticDir   string `envconfig:"STATIC_DIR"`
	StaticIndex string `envconfig:"STATIC_INDEX" default:"index.html"`

	WorkspaceDir    string        `envconfig:"WORKSPACE_DIR"`
	WorkspaceMaxAge time.Duration `envconfig:"WORKSPACE_MAX_AGE" default:"24h"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	CORS struct {
		AllowedOrigins []string `split_words:"true" default:"*"`
	}

	Telemetry struct {
		Enabled      bool   `default:"true"`
		ServiceName  string `split_words:"true" default:"mp3grab"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:5000"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"0s"`
		IdleTimeout     time.Duration `split_words:"true" default:"60s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = os.TempDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the deployment inputs that must exist on disk before the server starts.
func (c *Config) Validate() error {
	if c.YTDLPPath == "" {
		return fmt.Errorf("YTDLP_PATH must not be empty")
	}

	if c.CookiesPath != "" {
		info, err := os.Stat(c.CookiesPath)
		if err != nil {
			return fmt.Errorf("cookies file: %w", err)
		}

		if info.IsDir() {
			return fmt.Errorf("cookies file %s is a directory", c.CookiesPath)
		}
	}

	if c.StaticDir != "" {
		info, err := os.Stat(c.StaticDir)
		if err != nil {
			return fmt.Errorf("static dir: %w", err)
		}

		if !info.IsDir() {
			return fmt.Errorf("static dir %s is not a directory", c.StaticDir)
		}

		if _, err := os.Stat(filepath.Join(c.StaticDir, c.StaticIndex)); err != nil {
			return fmt.Errorf("static index: %w", err)
		}
	}

	if c.WorkspaceMaxAge <= 0 {
		return fmt.Errorf("WORKSPACE_MAX_AGE must be positive, got %s", c.WorkspaceMaxAge)
	}

	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}

	return nil
}

// StaticEnabled reports whether the frontend bundle should be served.
func (c *Config) StaticEnabled() bool {
	return c.StaticDir != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
