package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenConfigMissing(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.json")

	s, err := Load(cfg)
	if err != nil {
		t.Fatalf("load settings failed: %v", err)
	}
	if s.BaseURL != DefaultBaseURL {
		t.Fatalf("base url default mismatch: got %q want %q", s.BaseURL, DefaultBaseURL)
	}
	if s.PollInterval() != 5*time.Second {
		t.Fatalf("poll interval mismatch: got %s", s.PollInterval())
	}
	if s.ReloadDelay() != 2*time.Second || s.NoticeDelay() != 5*time.Second || s.SavedIndicatorDelay() != 2*time.Second {
		t.Fatalf("delay defaults mismatch: %+v", s)
	}
	if s.CSRFCookie != "csrftoken" || s.CSRFHeader != "X-CSRFToken" {
		t.Fatalf("csrf defaults mismatch: %+v", s)
	}
}

func TestSaveThenLoadWithEnvOverride(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "veo-wizard.json")
	saved, err := Save(cfg, Settings{BaseURL: "http://backend.local:9000/", UploadPath: "upload", PollIntervalSeconds: 3})
	if err != nil {
		t.Fatalf("save settings failed: %v", err)
	}
	if saved.BaseURL != "http://backend.local:9000" {
		t.Fatalf("base url not normalized: %q", saved.BaseURL)
	}
	if saved.UploadPath != "/upload/" {
		t.Fatalf("upload path not normalized: %q", saved.UploadPath)
	}

	t.Setenv("VEO_WIZARD_POLL_INTERVAL_SECONDS", "9")
	s, err := Load(cfg)
	if err != nil {
		t.Fatalf("load settings failed: %v", err)
	}
	if s.PollIntervalSeconds != 9 {
		t.Fatalf("env override mismatch: got %d want 9", s.PollIntervalSeconds)
	}
	if s.BaseURL != "http://backend.local:9000" {
		t.Fatalf("file value lost: %q", s.BaseURL)
	}

	fileOnly, err := ReadFile(cfg)
	if err != nil {
		t.Fatalf("read file failed: %v", err)
	}
	if fileOnly.PollIntervalSeconds != 3 {
		t.Fatalf("file-only poll interval mismatch: got %d want 3", fileOnly.PollIntervalSeconds)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "veo-wizard.json")
	t.Setenv("VEO_WIZARD_RELOAD_DELAY_MS", "soon")
	if _, err := Load(cfg); err == nil {
		t.Fatal("expected parse error for non-numeric env value")
	}
}

func TestLoadReportsMalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VEO_WIZARD_BASE_URL=\"http://unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(filepath.Join(dir, "veo-wizard.json"))
	if err == nil || !strings.Contains(err.Error(), ".env") {
		t.Fatalf("expected .env parse error, got %v", err)
	}
}

func TestSaveRejectsRelativeBaseURL(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "veo-wizard.json")
	if _, err := Save(cfg, Settings{BaseURL: "backend.local"}); err == nil {
		t.Fatal("expected validation error for base url without scheme")
	}
}
