package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir switches to dir for the duration of the test, restoring the
// previous working directory afterwards. (testing.T.Chdir requires Go 1.24.)
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func TestBaseline(t *testing.T) {
	cfg := Baseline()
	if err := Validate(cfg); err != nil {
		t.Fatalf("baseline does not validate: %v", err)
	}
	if cfg.ConnectTimeout != 20*time.Second {
		t.Errorf("connectTimeout = %v", cfg.ConnectTimeout)
	}
	if cfg.CommandTimeout != 2*time.Second {
		t.Errorf("commandTimeout = %v", cfg.CommandTimeout)
	}
	if cfg.QueueDepth != 64 {
		t.Errorf("queueDepth = %d", cfg.QueueDepth)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HUBCORE_CONNECT_TIMEOUT", "5s")
	t.Setenv("HUBCORE_COMMAND_TIMEOUT", "250ms")
	t.Setenv("HUBCORE_QUEUE_DEPTH", "8")
	t.Setenv("HUBCORE_LOG_LEVEL", "debug")

	chdir(t, t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("connectTimeout = %v, want 5s", cfg.ConnectTimeout)
	}
	if cfg.CommandTimeout != 250*time.Millisecond {
		t.Errorf("commandTimeout = %v, want 250ms", cfg.CommandTimeout)
	}
	if cfg.QueueDepth != 8 {
		t.Errorf("queueDepth = %d, want 8", cfg.QueueDepth)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestInvalidEnvValueIgnored(t *testing.T) {
	t.Setenv("HUBCORE_COMMAND_TIMEOUT", "not-a-duration")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CommandTimeout != 2*time.Second {
		t.Errorf("commandTimeout = %v, want baseline 2s", cfg.CommandTimeout)
	}
}

func TestFileOverlay(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte("commandTimeout: 750ms\nqueueDepth: 16\nlog:\n  level: warn\n  file: hub.log\n")
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), yaml, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CommandTimeout != 750*time.Millisecond {
		t.Errorf("commandTimeout = %v, want 750ms", cfg.CommandTimeout)
	}
	if cfg.QueueDepth != 16 {
		t.Errorf("queueDepth = %d, want 16", cfg.QueueDepth)
	}
	if cfg.Log.Level != "warn" || cfg.Log.File != "hub.log" {
		t.Errorf("log = %+v", cfg.Log)
	}
	// Untouched settings keep their baseline values.
	if cfg.ConnectTimeout != 20*time.Second {
		t.Errorf("connectTimeout = %v, want baseline 20s", cfg.ConnectTimeout)
	}
}

func TestFileRejectedWhenMalformed(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte("::: not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("malformed file accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }},
		{"negative command timeout", func(c *Config) { c.CommandTimeout = -time.Second }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"zero queue depth", func(c *Config) { c.QueueDepth = 0 }},
		{"zero scan timeout", func(c *Config) { c.ScanTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Baseline()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}
