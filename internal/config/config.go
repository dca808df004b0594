// Package config provides YAML-based configuration loading for the trainer.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported storage drivers for the history store.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DefaultHistoryKey is the storage key the history collection lives under.
const DefaultHistoryKey = "ai-trainer-history"

// Config is the top-level trainer configuration, loaded from trainer.yaml.
type Config struct {
	Storage    StorageConfig   `yaml:"storage"`
	Scoring    ScoringConfig   `yaml:"scoring"`
	Analysis   AnalysisConfig  `yaml:"analysis"`
	User       UserConfig      `yaml:"user"`
	TopicsFile string          `yaml:"topics_file"`
	Dashboard  DashboardConfig `yaml:"dashboard"`
	Log        LogConfig       `yaml:"log"`
}

// StorageConfig selects and configures the durable key/value backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`

	// sqlite
	Path string `yaml:"path"`

	// mysql
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`

	// redis
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	Key      string `yaml:"key"`
	MaxBytes int    `yaml:"max_bytes"` // 0 disables the quota
}

// ScoringConfig holds the overall scores passed to the analysis flow.
type ScoringConfig struct {
	Finish    int `yaml:"finish"`
	FinishNow int `yaml:"finish_now"`
}

// AnalysisConfig tunes the staged analysis flow.
type AnalysisConfig struct {
	StepDelay time.Duration `yaml:"step_delay"`
}

// UserConfig is the trainee context used for topic recommendations.
type UserConfig struct {
	Role  string `yaml:"role"`
	Grade string `yaml:"grade"`
}

// DashboardConfig holds HTTP API settings.
type DashboardConfig struct {
	Port       int    `yaml:"port"`
	DigestCron string `yaml:"digest_cron"`
}

// LogConfig controls zap logger construction.
type LogConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.Path == "" {
		c.Storage.Path = "trainer.db"
	}
	if c.Storage.Driver == DriverMySQL {
		if c.Storage.Host == "" {
			c.Storage.Host = "127.0.0.1"
		}
		if c.Storage.Port == 0 {
			c.Storage.Port = 3306
		}
		if c.Storage.User == "" {
			c.Storage.User = "root"
		}
		if c.Storage.Database == "" {
			c.Storage.Database = "trainer"
		}
	}
	if c.Storage.Driver == DriverRedis && c.Storage.Addr == "" {
		c.Storage.Addr = "127.0.0.1:6379"
	}
	if c.Storage.Key == "" {
		c.Storage.Key = DefaultHistoryKey
	}
	if c.Scoring.Finish == 0 {
		c.Scoring.Finish = 85
	}
	if c.Scoring.FinishNow == 0 {
		c.Scoring.FinishNow = 70
	}
	if c.Analysis.StepDelay == 0 {
		c.Analysis.StepDelay = 180 * time.Millisecond
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Dashboard.DigestCron == "" {
		c.Dashboard.DigestCron = "0 9 * * *"
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case DriverSQLite, DriverMySQL, DriverRedis, DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not one of sqlite, mysql, redis, memory", c.Storage.Driver))
	}
	if c.Storage.MaxBytes < 0 {
		errs = append(errs, "storage.max_bytes must be >= 0")
	}
	if c.Scoring.Finish < 0 || c.Scoring.Finish > 100 {
		errs = append(errs, fmt.Sprintf("scoring.finish %d out of range 0-100", c.Scoring.Finish))
	}
	if c.Scoring.FinishNow < 0 || c.Scoring.FinishNow > 100 {
		errs = append(errs, fmt.Sprintf("scoring.finish_now %d out of range 0-100", c.Scoring.FinishNow))
	}
	if c.Analysis.StepDelay < 0 {
		errs = append(errs, "analysis.step_delay must be >= 0")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d out of range", c.Dashboard.Port))
	}
	switch c.Log.Mode {
	case "development", "dev", "production", "prod":
	default:
		errs = append(errs, fmt.Sprintf("log.mode %q is not development or production", c.Log.Mode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
