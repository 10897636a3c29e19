package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is the optional configuration file probed by Load.
const DefaultFile = "hubcore.yaml"

// Config holds timing, queue, and logging settings for the hub core.
type Config struct {
	// ConnectTimeout bounds one transport open attempt per hub.
	ConnectTimeout time.Duration `yaml:"connectTimeout"`

	// CommandTimeout bounds the wait for a correlated reply to one command.
	CommandTimeout time.Duration `yaml:"commandTimeout"`

	// WriteTimeout bounds one transport write.
	WriteTimeout time.Duration `yaml:"writeTimeout"`

	// QueueDepth is the command channel's admission buffer size.
	QueueDepth int `yaml:"queueDepth"`

	// ScanTimeout bounds device discovery in the BLE transport.
	ScanTimeout time.Duration `yaml:"scanTimeout"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls the zerolog sink.
type LogConfig struct {
	// Level is a zerolog level string: debug, info, warn, error.
	Level string `yaml:"level"`

	// File, when set, adds a rotating file sink next to the console writer.
	File string `yaml:"file"`

	// MaxSizeMB and MaxBackups bound the rotating file sink.
	MaxSizeMB  int `yaml:"maxSizeMb"`
	MaxBackups int `yaml:"maxBackups"`
}

// Baseline returns the built-in defaults.
func Baseline() *Config {
	return &Config{
		ConnectTimeout: 20 * time.Second,
		CommandTimeout: 2 * time.Second,
		WriteTimeout:   1 * time.Second,
		QueueDepth:     64,
		ScanTimeout:    30 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load merges Baseline() + HUBCORE_* env overrides + optional hubcore.yaml,
// then validates the result.
func Load() (*Config, error) {
	cfg := Baseline()

	applyEnvOverrides(cfg)

	if _, err := os.Stat(DefaultFile); err == nil {
		if err := loadFromFile(cfg, DefaultFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", DefaultFile, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies HUBCORE_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("HUBCORE_CONNECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.ConnectTimeout = d
		}
	}
	if val := os.Getenv("HUBCORE_COMMAND_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.CommandTimeout = d
		}
	}
	if val := os.Getenv("HUBCORE_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.WriteTimeout = d
		}
	}
	if val := os.Getenv("HUBCORE_QUEUE_DEPTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.QueueDepth = n
		}
	}
	if val := os.Getenv("HUBCORE_SCAN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.ScanTimeout = d
		}
	}
	if val := os.Getenv("HUBCORE_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("HUBCORE_LOG_FILE"); val != "" {
		cfg.Log.File = val
	}
}

// loadFromFile overlays YAML settings onto cfg. Zero values in the file do
// not clobber existing settings.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	if file.ConnectTimeout > 0 {
		cfg.ConnectTimeout = file.ConnectTimeout
	}
	if file.CommandTimeout > 0 {
		cfg.CommandTimeout = file.CommandTimeout
	}
	if file.WriteTimeout > 0 {
		cfg.WriteTimeout = file.WriteTimeout
	}
	if file.QueueDepth > 0 {
		cfg.QueueDepth = file.QueueDepth
	}
	if file.ScanTimeout > 0 {
		cfg.ScanTimeout = file.ScanTimeout
	}
	if file.Log.Level != "" {
		cfg.Log.Level = file.Log.Level
	}
	if file.Log.File != "" {
		cfg.Log.File = file.Log.File
	}
	if file.Log.MaxSizeMB > 0 {
		cfg.Log.MaxSizeMB = file.Log.MaxSizeMB
	}
	if file.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = file.Log.MaxBackups
	}

	return nil
}

// Validate rejects configurations that would stall or wedge the command
// channel.
func Validate(cfg *Config) error {
	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("connectTimeout must be positive, got %v", cfg.ConnectTimeout)
	}
	if cfg.CommandTimeout <= 0 {
		return fmt.Errorf("commandTimeout must be positive, got %v", cfg.CommandTimeout)
	}
	if cfg.WriteTimeout <= 0 {
		return fmt.Errorf("writeTimeout must be positive, got %v", cfg.WriteTimeout)
	}
	if cfg.QueueDepth < 1 {
		return fmt.Errorf("queueDepth must be at least 1, got %d", cfg.QueueDepth)
	}
	if cfg.ScanTimeout <= 0 {
		return fmt.Errorf("scanTimeout must be positive, got %v", cfg.ScanTimeout)
	}
	return nil
}
