// Package config provides configuration loading and structs for the Kurabe server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Scan        ScanConfig        `yaml:"scan"`
	Statistical StatisticalConfig `yaml:"statistical"`
	Credits     CreditsConfig     `yaml:"credits"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ProvidersConfig holds the two AI similarity providers, tried in order.
type ProvidersConfig struct {
	Primary   ProviderConfig `yaml:"primary"`
	Secondary ProviderConfig `yaml:"secondary"`
}

// ProviderConfig describes one OpenAI-compatible chat completion endpoint.
type ProviderConfig struct {
	Name              string            `yaml:"name"`
	BaseURL           string            `yaml:"base_url"`
	Model             string            `yaml:"model"`
	APIKey            string            `yaml:"api_key"`
	APIKeyEnv         string            `yaml:"api_key_env"`
	Timeout           time.Duration     `yaml:"timeout"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Burst             int               `yaml:"burst"`
	Headers           map[string]string `yaml:"headers"`
}

// ResolvedAPIKey returns APIKey, or the value of the APIKeyEnv variable when APIKey is empty.
func (p *ProviderConfig) ResolvedAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// Enabled reports whether the provider has credentials.
func (p *ProviderConfig) Enabled() bool {
	return p.ResolvedAPIKey() != ""
}

// ScanConfig holds scan orchestration settings.
type ScanConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"`
	TopK           int     `yaml:"top_k"`
	Workers        int     `yaml:"workers"`
	PromptChars    int     `yaml:"prompt_chars"`
}

// StatisticalConfig holds settings for the local TF-IDF comparison.
type StatisticalConfig struct {
	MaxFeatures int `yaml:"max_features"`
}

// CreditsConfig holds the daily allowance policy.
type CreditsConfig struct {
	DailyAllowance int           `yaml:"daily_allowance"`
	ResetInterval  time.Duration `yaml:"reset_interval"`
	CheckInterval  time.Duration `yaml:"check_interval"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	OwnerID     string   `yaml:"owner_id"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Scan.MatchThreshold < 0 || c.Scan.MatchThreshold > 1 {
		return fmt.Errorf("scan.match_threshold must be within [0, 1], got %v", c.Scan.MatchThreshold)
	}
	if c.Credits.DailyAllowance < 0 {
		return fmt.Errorf("credits.daily_allowance must not be negative, got %d", c.Credits.DailyAllowance)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
