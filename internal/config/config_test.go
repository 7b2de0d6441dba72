package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()

	old, had := os.LookupEnv(key)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})

	os.Setenv(key, value)
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "CAPTURE_PROFILE", filepath.Join(t.TempDir(), "missing.yml"))
	setEnv(t, "MINIO_ACCESS_KEY", "")
	setEnv(t, "MINIO_SECRET_KEY", "")
	setEnv(t, "LEDGER_PRUNE_SCHEDULE", "")
	setEnv(t, "TELEGRAM_CHAT_ID", "")
	setEnv(t, "TELEGRAM_TOKEN", "")
	setEnv(t, "DISCORD_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Storage.Enabled {
		t.Error("storage should be disabled without credentials")
	}
	if cfg.Storage.Bucket != "tourcam-panoramas" {
		t.Errorf("expected default bucket, got %s", cfg.Storage.Bucket)
	}
	if cfg.Ledger.PruneSchedule != "0 3 * * *" {
		t.Errorf("expected default prune schedule, got %s", cfg.Ledger.PruneSchedule)
	}
	if cfg.Ledger.RetentionDays != 30 {
		t.Errorf("expected 30 retention days, got %d", cfg.Ledger.RetentionDays)
	}
	if cfg.Notify.Telegram.Enabled || cfg.Notify.Discord.Enabled {
		t.Error("notifiers should be disabled by default")
	}
	if cfg.Profile.ExpectedShots != 24 {
		t.Errorf("expected 24 shots, got %d", cfg.Profile.ExpectedShots)
	}
}

func TestLoadStorageEnabled(t *testing.T) {
	setEnv(t, "CAPTURE_PROFILE", filepath.Join(t.TempDir(), "missing.yml"))
	setEnv(t, "MINIO_ACCESS_KEY", "access")
	setEnv(t, "MINIO_SECRET_KEY", "secret")
	setEnv(t, "MINIO_USE_SSL", "true")
	setEnv(t, "STORAGE_PUBLIC_URL", "https://cdn.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if !cfg.Storage.Enabled || !cfg.Storage.UseSSL {
		t.Errorf("expected storage enabled with ssl, got %+v", cfg.Storage)
	}
	if cfg.Storage.PublicURL != "https://cdn.example.com" {
		t.Errorf("unexpected public url %s", cfg.Storage.PublicURL)
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	setEnv(t, "CAPTURE_PROFILE", filepath.Join(t.TempDir(), "missing.yml"))
	setEnv(t, "LEDGER_PRUNE_SCHEDULE", "every day")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid cron schedule")
	}
}

func TestLoadRejectsBadChatID(t *testing.T) {
	setEnv(t, "CAPTURE_PROFILE", filepath.Join(t.TempDir(), "missing.yml"))
	setEnv(t, "LEDGER_PRUNE_SCHEDULE", "")
	setEnv(t, "TELEGRAM_CHAT_ID", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid chat id")
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yml")
	data := `
step_degrees: 30
cooldown: 500ms
max_retries: 0
stitcher:
  wave_correction: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}

	if p.StepDegrees != 30 {
		t.Errorf("expected step 30, got %v", p.StepDegrees)
	}
	if p.Cooldown != 500*time.Millisecond {
		t.Errorf("expected 500ms cooldown, got %s", p.Cooldown)
	}
	if p.MaxRetries != 0 {
		t.Errorf("expected 0 retries, got %d", p.MaxRetries)
	}
	if p.Stitcher.WaveCorrection {
		t.Error("expected wave correction disabled")
	}

	// untouched keys keep defaults
	if p.ExpectedShots != 24 {
		t.Errorf("expected default 24 shots, got %d", p.ExpectedShots)
	}
	if p.Stitcher.ConfidenceThreshold != 0.8 {
		t.Errorf("expected default confidence 0.8, got %v", p.Stitcher.ConfidenceThreshold)
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"zero step", func(p *Profile) { p.StepDegrees = 0 }},
		{"step too large", func(p *Profile) { p.StepDegrees = 180 }},
		{"zero epsilon", func(p *Profile) { p.AlignmentEpsilon = 0 }},
		{"no shots", func(p *Profile) { p.ExpectedShots = 0 }},
		{"negative retries", func(p *Profile) { p.MaxRetries = -1 }},
		{"negative cooldown", func(p *Profile) { p.Cooldown = -time.Second }},
		{"zero interval", func(p *Profile) { p.SampleInterval = 0 }},
		{"bad quality", func(p *Profile) { p.Stitcher.JPEGQuality = 101 }},
	}

	if err := DefaultProfile().Validate(); err != nil {
		t.Fatalf("default profile should be valid: %v", err)
	}

	for _, tt := range tests {
		p := DefaultProfile()
		tt.mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestProfileStep(t *testing.T) {
	p := DefaultProfile()
	if got := p.Step(); got < 0.2617 || got > 0.2619 {
		t.Errorf("expected ~0.2618 rad, got %v", got)
	}
}
