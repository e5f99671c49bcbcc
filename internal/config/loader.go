package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ttvsnap/ttvsnap/internal/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv and LoadFromEnv.
const (
	EnvConfigPath       = "TTVSNAP_CONFIG_PATH"
	EnvClientID         = "TTVSNAP_CLIENT_ID"
	EnvClientSecretFile = "TTVSNAP_CLIENT_SECRET_FILE"
	EnvCacheDir         = "TTVSNAP_CACHE_DIR"
	EnvLogLevel         = "TTVSNAP_LOG_LEVEL"
)

// Load reads the configuration from the file at path, substituting ${VAR}
// references from the environment. It does not validate.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrConfigNotFound{Path: path}
		}
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: path, Err: err}
	}

	return Parse(substituteEnvVars(content))
}

// LoadFromEnv loads the file named by TTVSNAP_CONFIG_PATH, or returns defaults
// when the variable is unset.
func LoadFromEnv() (*Config, error) {
	path := strings.TrimSpace(os.Getenv(EnvConfigPath))
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// LoadDotEnv loads variables from the given .env files without overriding
// the ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return &errors.ErrConfigParse{Err: err}
		}
	}
	return nil
}

// ApplyEnv overrides configuration values with the TTVSNAP_* environment variables that are set.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvClientID)); v != "" {
		cfg.Twitch.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClientSecretFile)); v != "" {
		cfg.Twitch.ClientSecretFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheDir)); v != "" {
		cfg.CacheDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
}

// Parse parses configuration from byte slice on top of Default.
func Parse(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}

	return config, nil
}

var errEmptySecret = stderrors.New("client secret file is empty")

// ReadClientSecret reads the client secret file once, trimming surrounding whitespace.
func ReadClientSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &errors.ErrFileRead{Path: path, Err: err}
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", &errors.ErrConfigValidation{Err: &errors.ErrFileRead{Path: path, Err: errEmptySecret}}
	}
	return secret, nil
}

// DefaultCacheDir returns $XDG_CACHE_HOME/ttvsnap, falling back to ~/.cache/ttvsnap.
func DefaultCacheDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); dir != "" {
		return filepath.Join(dir, "ttvsnap")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".cache", "ttvsnap")
	}
	return filepath.Join(home, ".cache", "ttvsnap")
}

func substituteEnvVars(content []byte) []byte {
	return []byte(os.ExpandEnv(string(content)))
}
