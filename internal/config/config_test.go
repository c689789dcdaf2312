package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("HISTORY_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Thresholds.Confidence != 0.5 {
		t.Fatalf("expected default confidence 0.5, got %v", cfg.Thresholds.Confidence)
	}
	if cfg.Thresholds.ViabilityMeanMin != 100 || cfg.Thresholds.ViabilityStdDevMin != 20 {
		t.Fatalf("unexpected viability thresholds: %+v", cfg.Thresholds)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("expected 5 MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.HistoryBackend != HistoryBackendFile {
		t.Fatalf("expected file history backend, got %q", cfg.HistoryBackend)
	}
	if cfg.RelationalDSN != cfg.PostgresDSN {
		t.Fatalf("expected relational dsn to default to postgres dsn, got %q", cfg.RelationalDSN)
	}
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
api_port: "9000"
detector_timeout: 5s
history_backend: postgres
relational_driver: sqlite3
relational_dsn: /tmp/pollen.db
thresholds:
  confidence: 0.35
  viability_mean_min: 90
detector_resilience:
  retry_max_attempts: 5
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("API_PORT", "9100")
	t.Setenv("VIABILITY_MEAN_MIN", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9100" {
		t.Fatalf("expected env to override file port, got %q", cfg.APIPort)
	}
	if cfg.DetectorTimeout != 5*time.Second {
		t.Fatalf("expected detector timeout 5s, got %v", cfg.DetectorTimeout)
	}
	if cfg.Thresholds.Confidence != 0.35 || cfg.Thresholds.ViabilityMeanMin != 90 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Thresholds.ViabilityStdDevMin != 20 {
		t.Fatalf("expected unspecified std threshold to keep default, got %v", cfg.Thresholds.ViabilityStdDevMin)
	}
	if cfg.DetectorResilience.RetryMaxAttempts != 5 {
		t.Fatalf("expected retry attempts 5, got %d", cfg.DetectorResilience.RetryMaxAttempts)
	}
	if cfg.RelationalDriver != "sqlite3" || cfg.RelationalDSN != "/tmp/pollen.db" {
		t.Fatalf("unexpected relational config: %q %q", cfg.RelationalDriver, cfg.RelationalDSN)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "1.5")
	t.Setenv("HISTORY_BACKEND", "s3")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
