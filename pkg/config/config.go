package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for insight-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (the database password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Detection engine tuning
	Detection DetectionConfig `yaml:"detection"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"insight"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"insight_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// Pool recycling. Lifetime bounds how long any connection lives;
	// idle time releases connections between detection bursts.
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" env:"PGCONN_MAX_LIFETIME_MINUTES" env-default:"60"`
	ConnMaxIdleMinutes     int `yaml:"conn_max_idle_minutes" env:"PGCONN_MAX_IDLE_MINUTES" env-default:"30"`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds the PostgreSQL connection string.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// DetectionConfig holds thresholds and sizing for the pattern detection engine.
type DetectionConfig struct {
	// StepExcessRatio is the per-step actual/estimated ratio above which a
	// step counts toward a step-excess pattern.
	StepExcessRatio float64 `yaml:"step_excess_ratio" env:"DETECTION_STEP_EXCESS_RATIO" env-default:"1.5"`

	// CriticalRatio is the mean excess ratio above which step excess
	// escalates to critical severity.
	CriticalRatio float64 `yaml:"critical_ratio" env:"DETECTION_CRITICAL_RATIO" env-default:"2.0"`

	// CohortWindowDays bounds the history window for the cohort baseline.
	CohortWindowDays int `yaml:"cohort_window_days" env:"DETECTION_COHORT_WINDOW_DAYS" env-default:"30"`

	// TrendSampleCount is how many recent completions per owner the trend
	// rule requires.
	TrendSampleCount int `yaml:"trend_sample_count" env:"DETECTION_TREND_SAMPLE_COUNT" env-default:"5"`

	// TrendMinIncreasePercent is the oldest-to-newest growth below which no
	// trend pattern is emitted.
	TrendMinIncreasePercent float64 `yaml:"trend_min_increase_percent" env:"DETECTION_TREND_MIN_INCREASE_PERCENT" env-default:"20"`

	// RuleTimeoutSeconds bounds each rule's history queries so a pathological
	// query cannot stall a detection run.
	RuleTimeoutSeconds int `yaml:"rule_timeout_seconds" env:"DETECTION_RULE_TIMEOUT_SECONDS" env-default:"5"`

	// Workers is the size of the background detection worker pool.
	Workers int `yaml:"workers" env:"DETECTION_WORKERS" env-default:"4"`

	// QueueSize bounds the pending detection job queue; jobs beyond it are
	// dropped rather than blocking the completion caller.
	QueueSize int `yaml:"queue_size" env:"DETECTION_QUEUE_SIZE" env-default:"256"`

	// SweepIntervalMinutes is how often the reconciliation sweep looks for
	// patterns that were persisted without an alert.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes" env:"DETECTION_SWEEP_INTERVAL_MINUTES" env-default:"10"`
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load(version string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	cfg.Version = version

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Detection.StepExcessRatio <= 1.0 {
		return fmt.Errorf("detection.step_excess_ratio must be > 1.0, got %v", c.Detection.StepExcessRatio)
	}
	if c.Detection.CriticalRatio <= c.Detection.StepExcessRatio {
		return fmt.Errorf("detection.critical_ratio must exceed step_excess_ratio")
	}
	if c.Detection.TrendSampleCount < 2 {
		return fmt.Errorf("detection.trend_sample_count must be at least 2, got %d", c.Detection.TrendSampleCount)
	}
	if c.Detection.RuleTimeoutSeconds < 1 {
		return fmt.Errorf("detection.rule_timeout_seconds must be at least 1, got %d", c.Detection.RuleTimeoutSeconds)
	}
	if c.Detection.Workers < 1 {
		return fmt.Errorf("detection.workers must be at least 1, got %d", c.Detection.Workers)
	}
	if c.Detection.QueueSize < 1 {
		return fmt.Errorf("detection.queue_size must be at least 1, got %d", c.Detection.QueueSize)
	}
	return nil
}
