package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_providersAndDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
providers:
  primary:
    api_key: "k1"
    timeout: 5s
    requests_per_second: 2
  secondary:
    name: "backup"
    base_url: "http://127.0.0.1:9999/v1"
    model: "tiny"
    api_key_env: "KURABE_TEST_SECONDARY_KEY"
    headers:
      X-Title: kurabe
credits:
  daily_allowance: 3
  reset_interval: 12h
scan:
  match_threshold: 0.7
  top_k: 2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KURABE_TEST_SECONDARY_KEY", "k2")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	p := cfg.Providers.Primary
	if p.Name != "mistral" || p.BaseURL != "https://api.mistral.ai/v1" {
		t.Errorf("primary defaults not applied: %+v", p)
	}
	if p.Timeout != 5*time.Second || p.RequestsPerSecond != 2 {
		t.Errorf("primary overrides lost: %+v", p)
	}
	if !p.Enabled() || p.ResolvedAPIKey() != "k1" {
		t.Errorf("primary key = %q", p.ResolvedAPIKey())
	}

	s := cfg.Providers.Secondary
	if s.Name != "backup" || s.Model != "tiny" {
		t.Errorf("secondary overrides lost: %+v", s)
	}
	if s.ResolvedAPIKey() != "k2" {
		t.Errorf("secondary key from env = %q", s.ResolvedAPIKey())
	}
	if s.Headers["X-Title"] != "kurabe" {
		t.Errorf("secondary headers = %v", s.Headers)
	}
	if s.Timeout != 30*time.Second {
		t.Errorf("secondary timeout = %v, want 30s", s.Timeout)
	}

	if cfg.Credits.DailyAllowance != 3 || cfg.Credits.ResetInterval != 12*time.Hour {
		t.Errorf("credits = %+v", cfg.Credits)
	}
	if cfg.Scan.MatchThreshold != 0.7 || cfg.Scan.TopK != 2 {
		t.Errorf("scan = %+v", cfg.Scan)
	}
}

func TestLoad_invalidThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  match_threshold: 1.5\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for threshold above 1")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/kurabe.db"
watch:
  directories: ["./inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "kurabe.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "inbox")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Scan.MatchThreshold != 0.5 || cfg.Scan.TopK != 5 || cfg.Scan.PromptChars != 1500 {
		t.Errorf("scan defaults: %+v", cfg.Scan)
	}
	if cfg.Statistical.MaxFeatures != 5000 {
		t.Errorf("max features: got %d", cfg.Statistical.MaxFeatures)
	}
	if cfg.Credits.DailyAllowance != 20 || cfg.Credits.ResetInterval != 24*time.Hour {
		t.Errorf("credits defaults: %+v", cfg.Credits)
	}
	if cfg.Providers.Secondary.Headers["HTTP-Referer"] == "" {
		t.Error("secondary provider should carry a referer header by default")
	}
	if len(cfg.Watch.Extensions) != 6 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestProviderConfig_disabledWithoutKey(t *testing.T) {
	t.Setenv("KURABE_TEST_EMPTY_KEY", "")
	p := ProviderConfig{APIKeyEnv: "KURABE_TEST_EMPTY_KEY"}
	if p.Enabled() {
		t.Error("provider without key should be disabled")
	}
}
