package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReservationTTL != 15*time.Minute {
		t.Errorf("ReservationTTL = %s, want 15m", cfg.ReservationTTL)
	}
	if cfg.ExpirationInterval != 30*time.Second {
		t.Errorf("ExpirationInterval = %s, want 30s", cfg.ExpirationInterval)
	}
	if cfg.MetricsInterval != time.Hour {
		t.Errorf("MetricsInterval = %s, want 1h", cfg.MetricsInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CARSTOCK_RESERVATION_TTL", "5m")
	t.Setenv("CARSTOCK_DB_PATH", "")
	t.Setenv("CARSTOCK_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReservationTTL != 5*time.Minute {
		t.Errorf("ReservationTTL = %s, want 5m", cfg.ReservationTTL)
	}
	if cfg.DBPath != "" {
		t.Errorf("DBPath = %q, want empty", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("CARSTOCK_EXPIRATION_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero expiration interval")
	}
}
