package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Run from a directory with no .env; unset keys fall back to defaults.
	t.Setenv("TUNEBINGO_ENV", "")
	t.Setenv("TUNEBINGO_HTTP_PORT", "")
	t.Setenv("TUNEBINGO_SNIPPET_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "development" {
		t.Fatalf("env = %q, want development", cfg.Environment)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.SnippetSeconds != 30 {
		t.Fatalf("snippet = %d, want 30", cfg.SnippetSeconds)
	}
	if !cfg.MetricsEnabled {
		t.Fatal("metrics should default on")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TUNEBINGO_HTTP_PORT", "9090")
	t.Setenv("TUNEBINGO_SNIPPET_SECONDS", "20")
	t.Setenv("TUNEBINGO_METRICS_ENABLED", "false")
	t.Setenv("TUNEBINGO_DEVICE_FILE", "/tmp/dev.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 9090 || cfg.SnippetSeconds != 20 || cfg.MetricsEnabled || cfg.DeviceFile != "/tmp/dev.json" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsNonPositiveSnippet(t *testing.T) {
	t.Setenv("TUNEBINGO_SNIPPET_SECONDS", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("negative snippet length accepted")
	}
}

func TestLoadProductionRequiresCredentials(t *testing.T) {
	t.Setenv("TUNEBINGO_ENV", "production")
	t.Setenv("TUNEBINGO_SPOTIFY_CLIENT_ID", "")
	t.Setenv("TUNEBINGO_SPOTIFY_CLIENT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("production config accepted without credentials")
	}

	t.Setenv("TUNEBINGO_SPOTIFY_CLIENT_ID", "id")
	t.Setenv("TUNEBINGO_SPOTIFY_CLIENT_SECRET", "secret")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with credentials: %v", err)
	}
}
