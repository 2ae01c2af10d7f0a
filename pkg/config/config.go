// Package config loads the process-wide YAML configuration into a
// global singleton, read once at startup.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config is the top-level configuration document.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logger  LoggerConfig  `yaml:"logger"`
	Redis   RedisConfig   `yaml:"redis"`
	Sharing SharingConfig `yaml:"sharing"`
}

// ServerConfig configures the admin HTTP surface.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // auth disabled if empty
}

// LoggerConfig configures the structured logger.
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig names the log file path when Output is file or both.
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the optional cross-replica seat mirror and
// the distributed lock guarding the sweep job. A zero-value Addr means
// both run in single-instance mode.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SharingConfig holds the dispatcher's wait-loop and pending-claim
// tuning, plus the set of specs a process should run a dispatcher for.
// Zero values in the tuning fields fall back to their package-level
// defaults.
type SharingConfig struct {
	SpecIDs             []string `yaml:"spec_ids"`
	WaitUnitSeconds     int      `yaml:"wait_unit_seconds"`
	MaxAttempts         int      `yaml:"max_attempts"`
	PendingTTLMinutes   int      `yaml:"pending_ttl_minutes"`
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"`
}

// Init reads the YAML file at $CONFIG_PATH (default config/config.yaml)
// into GlobalConfig.
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	GlobalConfig = &cfg
	return nil
}
