package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scan.SignalScore != 80 {
		t.Errorf("Expected default signal score 80, got %d", cfg.Scan.SignalScore)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
scan:
  universe: test
  workers: 4
scoring:
  ready_score: 80
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Scan.Universe != "test" {
		t.Errorf("Expected universe test, got %s", cfg.Scan.Universe)
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Scan.Workers)
	}
	if cfg.Scoring.ReadyScore != 80 {
		t.Errorf("Expected ready score 80, got %d", cfg.Scoring.ReadyScore)
	}
	// Untouched sections keep their defaults
	if cfg.Scan.MinDollarVolume != 3_500_000 {
		t.Errorf("Expected default dollar-volume floor, got %f", cfg.Scan.MinDollarVolume)
	}
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Scan.Workers = 0 }},
		{"lookback shorter than min bars", func(c *Config) { c.Scan.LookbackDays = 10 }},
		{"forming above ready", func(c *Config) { c.Scoring.FormingScore = 90 }},
		{"soft pullback above hard ceiling", func(c *Config) { c.Scoring.SoftPullbackPct = 40 }},
		{"non-positive horizon", func(c *Config) { c.Tracker.Horizons = []int{5, 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}
