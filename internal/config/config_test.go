package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MESHMAP_BOT_TOKEN", "MESHMAP_DATA_FILE", "MESHMAP_LOG_STATE_FILE",
		"MESHMAP_LOG_LEVEL", "MESHMAP_TIMEOUT_SECONDS", "MESHMAP_ADMIN_IDS", "MESHMAP_SPECIAL_IDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataFile != defaultDataFile || cfg.LogLevel != defaultLogLevel {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FlowTimeout != 300*time.Second {
		t.Fatalf("expected 300s timeout, got %v", cfg.FlowTimeout)
	}
	if len(cfg.AdminIDs) != 0 || len(cfg.SpecialIDs) != 0 {
		t.Fatalf("expected empty identity lists, got %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MESHMAP_DATA_FILE", "/tmp/markers.csv")
	t.Setenv("MESHMAP_TIMEOUT_SECONDS", "60")
	t.Setenv("MESHMAP_ADMIN_IDS", "1608289624, 99")
	t.Setenv("MESHMAP_SPECIAL_IDS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataFile != "/tmp/markers.csv" {
		t.Fatalf("unexpected data file: %q", cfg.DataFile)
	}
	if cfg.FlowTimeout != time.Minute {
		t.Fatalf("unexpected timeout: %v", cfg.FlowTimeout)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[0] != "1608289624" || cfg.AdminIDs[1] != "99" {
		t.Fatalf("unexpected admin IDs: %+v", cfg.AdminIDs)
	}
	if len(cfg.SpecialIDs) != 1 || cfg.SpecialIDs[0] != "7" {
		t.Fatalf("unexpected special IDs: %+v", cfg.SpecialIDs)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MESHMAP_TIMEOUT_SECONDS", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric timeout")
	}
	t.Setenv("MESHMAP_TIMEOUT_SECONDS", "")

	t.Setenv("MESHMAP_ADMIN_IDS", "1,bob")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric identity")
	}
}
