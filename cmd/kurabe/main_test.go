package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kurabe/internal/config"
	"github.com/hyperjump/kurabe/internal/scan"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after file are moved first",
			args:     []string{"essay.pdf", "--user", "u1"},
			expected: []string{"--user", "u1", "essay.pdf"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--user", "u1", "essay.pdf"},
			expected: []string{"--user", "u1", "essay.pdf"},
		},
		{
			name:     "positional only returns unchanged",
			args:     []string{"doc-1"},
			expected: []string{"doc-1"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
scan:
  top_k: 3
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Scan.TopK != 3 {
		t.Errorf("unexpected config: %+v %+v", cfg.Server, cfg.Scan)
	}
}

func TestBuildProviders_skipsProvidersWithoutKeys(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Providers.Primary.APIKeyEnv = "KURABE_TEST_NO_SUCH_KEY"
	cfg.Providers.Secondary.APIKeyEnv = ""
	cfg.Providers.Secondary.APIKey = "sk-test"

	providers, err := buildProviders(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(providers) != 1 || providers[0].Name() != "openrouter" {
		names := make([]string, len(providers))
		for i, p := range providers {
			names[i] = p.Name()
		}
		t.Errorf("providers = %v, want [openrouter]", names)
	}
}

func TestInitializeComponents(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "kurabe.db")
	cfg.Providers.Primary.APIKeyEnv = "KURABE_TEST_NO_SUCH_KEY"
	cfg.Providers.Secondary.APIKeyEnv = "KURABE_TEST_NO_SUCH_KEY"

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Scanner == nil || c.Credits == nil || c.Engine == nil {
		t.Errorf("components not wired: %+v", c)
	}
}

func TestScanViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/scans" || r.Header.Get("X-User-ID") != "u1" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(f)
		if header.Filename != "essay.txt" || string(body) != "some essay" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"error":"could not process file"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"scan_id":"s1","document_id":"d1","matches_count":0,"top_matches":[],"credits_remaining":4}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "essay.txt")
	if err := os.WriteFile(path, []byte("some essay"), 0600); err != nil {
		t.Fatal(err)
	}
	res, err := scanViaHTTP(srv.URL, path, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.ScanLogID != "s1" || res.Credits != 4 {
		t.Errorf("result = %+v", res)
	}

	_, err = scanViaHTTP(srv.URL, path, "someone-else")
	if err == nil || !strings.Contains(err.Error(), "HTTP 400") {
		t.Errorf("err = %v, want HTTP 400", err)
	}
}

func TestDescribeScanError(t *testing.T) {
	if got := describeScanError(scan.ErrInsufficientCredits); !strings.Contains(got, "no credits") {
		t.Errorf("insufficient credits: %q", got)
	}
	if got := describeScanError(fmt.Errorf("%w: u9", scan.ErrUserNotFound)); got != "unknown user" {
		t.Errorf("unknown user: %q", got)
	}
	if got := describeScanError(errors.New("boom")); got != "boom" {
		t.Errorf("other: %q", got)
	}
}
