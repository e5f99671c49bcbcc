package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/logging"
)

const (
	DefaultInterval     = 301 * time.Second
	MinInterval         = 60 * time.Second
	DefaultErrorBackoff = 90 * time.Second
	DefaultTimeout      = 60 * time.Second
	DefaultAPIBaseURL   = "https://api.twitch.tv"
	DefaultAuthBaseURL  = "https://id.twitch.tv"
)

// Config represents the complete application configuration.
type Config struct {
	Channel      string          `yaml:"channel"`
	OutputDir    string          `yaml:"output_dir"`
	Interval     time.Duration   `yaml:"interval"`
	ErrorBackoff time.Duration   `yaml:"error_backoff"`
	Subdir       bool            `yaml:"subdir"`
	CacheDir     string          `yaml:"cache_dir"`
	Twitch       TwitchConfig    `yaml:"twitch"`
	Thumbnail    ThumbnailConfig `yaml:"thumbnail"`
	Server       ServerConfig    `yaml:"server"`
	Journal      JournalConfig   `yaml:"journal"`
	Telegram     TelegramConfig  `yaml:"telegram"`
	S3           S3Config        `yaml:"s3"`
	Log          LogConfig       `yaml:"log"`
}

// TwitchConfig contains API credentials and endpoints.
type TwitchConfig struct {
	ClientID         string        `yaml:"client_id"`
	ClientSecretFile string        `yaml:"client_secret_file"`
	APIBaseURL       string        `yaml:"api_base_url"`
	AuthBaseURL      string        `yaml:"auth_base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	// UTLS dials with a browser TLS fingerprint.
	UTLS bool `yaml:"utls"`
}

// ThumbnailConfig controls the external resize step.
type ThumbnailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Command  string `yaml:"command"`
	Geometry string `yaml:"geometry"`
}

// ServerConfig contains the optional status server configuration.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JournalConfig contains the capture journal configuration.
type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// TelegramConfig contains capture notification configuration.
type TelegramConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BotToken     string `yaml:"bot_token"`
	ChatID       int64  `yaml:"chat_id"`
	EveryCapture bool   `yaml:"every_capture"`
}

// S3Config contains the capture mirror configuration.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Interval:     DefaultInterval,
		ErrorBackoff: DefaultErrorBackoff,
		CacheDir:     DefaultCacheDir(),
		Twitch: TwitchConfig{
			APIBaseURL:  DefaultAPIBaseURL,
			AuthBaseURL: DefaultAuthBaseURL,
			Timeout:     DefaultTimeout,
		},
		Thumbnail: ThumbnailConfig{
			Command:  "convert",
			Geometry: "x144",
		},
		Server: ServerConfig{
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate validates the configuration. It is run once at startup after
// file, environment and flag values have been merged.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Channel) == "" {
		return fmt.Errorf("channel is required")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	info, err := os.Stat(c.OutputDir)
	if err != nil {
		return fmt.Errorf("output_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output_dir %s is not a directory", c.OutputDir)
	}

	if c.Interval < MinInterval {
		return fmt.Errorf("interval must be at least %s, got %s", MinInterval, c.Interval)
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		return fmt.Errorf("cache_dir is required")
	}

	if err := c.Twitch.Validate(); err != nil {
		return fmt.Errorf("twitch: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if err := c.S3.Validate(); err != nil {
		return fmt.Errorf("s3: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

// Validate validates Twitch configuration.
func (t *TwitchConfig) Validate() error {
	if strings.TrimSpace(t.ClientID) == "" {
		return fmt.Errorf("client_id is required")
	}
	if strings.TrimSpace(t.ClientSecretFile) == "" {
		return fmt.Errorf("client_secret_file is required")
	}
	if t.APIBaseURL == "" {
		t.APIBaseURL = DefaultAPIBaseURL
	}
	if t.AuthBaseURL == "" {
		t.AuthBaseURL = DefaultAuthBaseURL
	}
	if t.Timeout <= 0 {
		t.Timeout = DefaultTimeout
	}
	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

// Validate validates journal configuration.
func (j *JournalConfig) Validate() error {
	if j.RetentionDays < 0 {
		return fmt.Errorf("retention_days cannot be negative")
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("bot_token is required when telegram is enabled")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("chat_id is required when telegram is enabled")
	}
	return nil
}

// Validate validates S3 configuration.
func (s *S3Config) Validate() error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.Bucket) == "" {
		return fmt.Errorf("bucket is required when s3 is enabled")
	}
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}
