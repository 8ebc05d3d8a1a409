package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address           string `yaml:"address"`
		Password          string `yaml:"password"`
		DB                int    `yaml:"db"`
		SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	} `yaml:"redis"`

	Schedule struct {
		Timezone          string `yaml:"timezone"`
		StartHour         int    `yaml:"start_hour"`
		EndHour           int    `yaml:"end_hour"`
		StepMinutes       int    `yaml:"step_minutes"`
		ResetCheckSeconds int    `yaml:"reset_check_seconds"`
	} `yaml:"schedule"`

	Admin struct {
		Password        string `yaml:"password"`
		PasswordHash    string `yaml:"password_hash"`
		TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	} `yaml:"admin"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Load reads the YAML config at path. A .env file next to the process is
// loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML, expands ${ENV_VAR} placeholders, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/monte.db"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Seoul"
	}
	if c.Schedule.StartHour == 0 && c.Schedule.EndHour == 0 {
		c.Schedule.StartHour = 11
		c.Schedule.EndHour = 18
	}
	if c.Schedule.StepMinutes <= 0 {
		c.Schedule.StepMinutes = 60
	}
	if c.Schedule.ResetCheckSeconds <= 0 {
		c.Schedule.ResetCheckSeconds = 60
	}
	if c.Admin.TokenTTLMinutes <= 0 {
		c.Admin.TokenTTLMinutes = 30
	}
	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = 2
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Validate rejects configurations that cannot produce a working schedule.
func (c *Config) Validate() error {
	if c.Schedule.StartHour < 0 || c.Schedule.EndHour > 24 || c.Schedule.EndHour <= c.Schedule.StartHour {
		return fmt.Errorf("schedule: invalid hours %d-%d", c.Schedule.StartHour, c.Schedule.EndHour)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule: timezone %q: %w", c.Schedule.Timezone, err)
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return errors.New("admin: password or password_hash is required")
	}
	return nil
}

// Location returns the operating timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) SlotStep() time.Duration {
	return time.Duration(c.Schedule.StepMinutes) * time.Minute
}

func (c *Config) ResetCheckInterval() time.Duration {
	return time.Duration(c.Schedule.ResetCheckSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	if c.Redis.SessionTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.SessionTTLMinutes) * time.Minute
}

func (c *Config) AdminTokenTTL() time.Duration {
	return time.Duration(c.Admin.TokenTTLMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
