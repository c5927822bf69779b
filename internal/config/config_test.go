package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadDefaults verifies the documented defaults.
func TestLoadDefaults(t *testing.T) {
	cfg := Load("")

	if cfg.Threshold != 0.3 {
		t.Errorf("Threshold = %g, want 0.3", cfg.Threshold)
	}
	if cfg.NMSOverlap != 0.4 {
		t.Errorf("NMSOverlap = %g, want 0.4", cfg.NMSOverlap)
	}
	if cfg.AvgWindow != 3 {
		t.Errorf("AvgWindow = %d, want 3", cfg.AvgWindow)
	}
	if cfg.MinBoxFraction != 0.01 {
		t.Errorf("MinBoxFraction = %g, want 0.01", cfg.MinBoxFraction)
	}
	if cfg.EngineKind != "http" {
		t.Errorf("EngineKind = %q, want http", cfg.EngineKind)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if !cfg.SwapRB {
		t.Error("SwapRB default should be true")
	}
	if cfg.PairTolerance != 50*time.Millisecond {
		t.Errorf("PairTolerance = %s, want 50ms", cfg.PairTolerance)
	}
}

// TestLoadEnvOverrides verifies environment values win over defaults.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DETECT_THRESHOLD", "0.6")
	t.Setenv("AVG_WINDOW", "5")
	t.Setenv("ENGINE", "dnn")
	t.Setenv("DEPTH_ENABLED", "true")
	t.Setenv("STORE_RETENTION", "48h")
	t.Setenv("ALERT_CLASSES", "person, car")

	cfg := Load("")

	if cfg.Threshold != 0.6 {
		t.Errorf("Threshold = %g, want 0.6", cfg.Threshold)
	}
	if cfg.AvgWindow != 5 {
		t.Errorf("AvgWindow = %d, want 5", cfg.AvgWindow)
	}
	if cfg.EngineKind != "dnn" {
		t.Errorf("EngineKind = %q, want dnn", cfg.EngineKind)
	}
	if !cfg.DepthEnabled {
		t.Error("DepthEnabled not picked up")
	}
	if cfg.StoreRetention != 48*time.Hour {
		t.Errorf("StoreRetention = %s, want 48h", cfg.StoreRetention)
	}
	if len(cfg.AlertClasses) != 2 || cfg.AlertClasses[0] != "person" || cfg.AlertClasses[1] != "car" {
		t.Errorf("AlertClasses = %v, want [person car]", cfg.AlertClasses)
	}
}

// TestLoadEnvFile verifies .env values are honored without clobbering
// explicit environment settings.
func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "CAMERA_FPS=25\nLISTEN_ADDR=:9090\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	t.Setenv("LISTEN_ADDR", ":7070")
	// godotenv mutates the process env; restore after the test.
	t.Cleanup(func() { os.Unsetenv("CAMERA_FPS") })

	cfg := Load(path)

	if cfg.CameraFPS != 25 {
		t.Errorf("CameraFPS = %d, want 25 from the env file", cfg.CameraFPS)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, explicit env should win over the file", cfg.ListenAddr)
	}
}

// TestValidate verifies the rejection cases.
func TestValidate(t *testing.T) {
	base := func() *Config { return Load("") }

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.AvgWindow = 0 }},
		{"threshold too high", func(c *Config) { c.Threshold = 1.5 }},
		{"overlap zero", func(c *Config) { c.NMSOverlap = 0 }},
		{"bad engine", func(c *Config) { c.EngineKind = "tarot" }},
		{"depth without device", func(c *Config) { c.DepthEnabled = true; c.DepthDevice = "" }},
		{"auth without password", func(c *Config) { c.AuthEnabled = true; c.AuthPassword = "" }},
		{"telegram without token", func(c *Config) { c.TelegramEnabled = true }},
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid config", tc.name)
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}
