package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"veo-wizard/internal/config"
)

func TestSettingsSetThenShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veo-wizard.json")

	if _, err := captureStdout(t, func() error {
		return Run([]string{"settings", "set", "--config", path, "--base-url", "http://localhost:9000/", "--poll-interval-seconds", "5"})
	}); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}

	out, err := captureStdout(t, func() error {
		return Run([]string{"settings", "show", "--config", path, "--json"})
	})
	if err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	var got struct {
		Settings config.Settings `json:"settings"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Settings.BaseURL != "http://localhost:9000" {
		t.Fatalf("base_url = %q", got.Settings.BaseURL)
	}
	if got.Settings.PollIntervalSeconds != 5 {
		t.Fatalf("poll_interval_seconds = %d", got.Settings.PollIntervalSeconds)
	}
	if got.Settings.ReloadDelayMS != config.DefaultReloadMS {
		t.Fatalf("untouched values should keep defaults, reload_delay_ms = %d", got.Settings.ReloadDelayMS)
	}
}

func TestSettingsSetRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veo-wizard.json")

	_, err := captureStdout(t, func() error {
		return Run([]string{"settings", "set", "--config", path, "--notice-delay-ms", "0"})
	})
	if err == nil || !strings.Contains(err.Error(), "--notice-delay-ms") {
		t.Fatalf("expected range error, got %v", err)
	}

	_, err = captureStdout(t, func() error {
		return Run([]string{"settings", "set", "--config", path})
	})
	if err == nil || !strings.Contains(err.Error(), "nothing to set") {
		t.Fatalf("expected nothing-to-set error, got %v", err)
	}
}

func TestSettingsShowEffectiveAppliesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "veo-wizard.json")
	t.Setenv("VEO_WIZARD_RELOAD_DELAY_MS", "250")

	out, err := captureStdout(t, func() error {
		return Run([]string{"settings", "show", "--config", path, "--effective"})
	})
	if err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	if !strings.Contains(out, "reload_delay_ms: 250") {
		t.Fatalf("expected env override in output:\n%s", out)
	}

	out, err = captureStdout(t, func() error {
		return Run([]string{"settings", "show", "--config", path})
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "reload_delay_ms: 250") {
		t.Fatalf("plain show must not apply env overrides:\n%s", out)
	}
}
