package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got, want := cfg.CDPURL(), "http://127.0.0.1:9220"; got != want {
		t.Fatalf("CDPURL() = %q; want %q", got, want)
	}
	if cfg.BindAddr != "127.0.0.1:8190" || cfg.StateFile != "./data/state.json" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.EvalTimeout() != 5*time.Second {
		t.Fatalf("EvalTimeout() = %v; want 5s", cfg.EvalTimeout())
	}
	if len(cfg.PortCandidates) != 2 {
		t.Fatalf("PortCandidates = %v; want two fallbacks", cfg.PortCandidates)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("TWINTYPE_EVAL_TIMEOUT_MS", "10")
	t.Setenv("TWINTYPE_LOG_LEVEL", "DEBUG")
	t.Setenv("TWINTYPE_PORT_CANDIDATES", " 127.0.0.1:9000 ,, 127.0.0.1:9001")
	t.Setenv("TWINTYPE_LAUNCH_BROWSER", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.CDPPort != 9333 || !cfg.LaunchBrowser {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.EvalTimeoutMS != 1000 {
		t.Fatalf("EvalTimeoutMS = %d; want clamped to 1000", cfg.EvalTimeoutMS)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("SlogLevel() = %v; want debug", cfg.SlogLevel())
	}
	if got := strings.Join(cfg.PortCandidates, "|"); got != "127.0.0.1:9000|127.0.0.1:9001" {
		t.Fatalf("PortCandidates = %q", got)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TWINTYPE_STATE_FILE=/tmp/tt.json\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("TWINTYPE_STATE_FILE") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.StateFile != "/tmp/tt.json" {
		t.Fatalf("StateFile = %q; want value from .env", cfg.StateFile)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error; want port range error")
	}
}

func TestLoadStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "startup.yaml")
	body := "tabs:\n  - provider: ChatGPT\n  - url: https://claude.ai/chat/abc\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	cfg, err := LoadStartup(path)
	if err != nil {
		t.Fatalf("LoadStartup() = %v", err)
	}
	got := strings.Join(cfg.URLs(), " ")
	if want := "https://chatgpt.com/ https://claude.ai/chat/abc"; got != want {
		t.Fatalf("URLs() = %q; want %q", got, want)
	}
}

func TestLoadStartupErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadStartup(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadStartup(missing) = %v; want ErrNotExist", err)
	}

	tests := map[string]string{
		"empty entry":      "tabs:\n  - {}\n",
		"unknown provider": "tabs:\n  - provider: bard\n",
		"foreign url":      "tabs:\n  - url: https://example.com/\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("os.WriteFile() failed: %v", err)
			}
			if _, err := LoadStartup(path); err == nil {
				t.Fatal("LoadStartup() = nil error")
			}
		})
	}
}

func TestDefaultStartupURLs(t *testing.T) {
	if got := len(DefaultStartupURLs()); got != 3 {
		t.Fatalf("len(DefaultStartupURLs()) = %d; want 3", got)
	}
}
