// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the calendar sync service.
type Config struct {
	HTTP struct {
		Addr      string `yaml:"addr"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"http"`

	Storage struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`

	Sync struct {
		// DefaultIntervalMin is used when a sync config does not set its own.
		DefaultIntervalMin int `yaml:"default_interval_min"`
		FetchTimeoutSec    int `yaml:"fetch_timeout_sec"`
		FetchRetries       int `yaml:"fetch_retries"`
		// CheckinTime/CheckoutTime ("HH:MM") turn date-only feed entries
		// into occupancy windows.
		CheckinTime  string `yaml:"checkin_time"`
		CheckoutTime string `yaml:"checkout_time"`
	} `yaml:"sync"`

	Workflow struct {
		// AutoJobType is the job created after checkout when a sync config
		// enables automatic job creation.
		AutoJobType        string `yaml:"auto_job_type"`
		AutoJobDurationMin int    `yaml:"auto_job_duration_min"`
		WebhookURL         string `yaml:"webhook_url"`
	} `yaml:"workflow"`

	Realtime struct {
		BufferSize   int `yaml:"buffer_size"`
		HeartbeatSec int `yaml:"heartbeat_sec"`
	} `yaml:"realtime"`

	Projector struct {
		MaxOccurrences int `yaml:"max_occurrences"`
	} `yaml:"projector"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads configuration from path (optional) and applies environment
// overrides on top of defaults. A missing file is not an error; env-only
// deployments are supported.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8099"
	cfg.HTTP.StaticDir = "./static"
	cfg.Storage.DataDir = "/data"
	cfg.Sync.DefaultIntervalMin = 15
	cfg.Sync.FetchTimeoutSec = 30
	cfg.Sync.FetchRetries = 3
	cfg.Sync.CheckinTime = "15:00"
	cfg.Sync.CheckoutTime = "11:00"
	cfg.Workflow.AutoJobType = "cleaning"
	cfg.Workflow.AutoJobDurationMin = 120
	cfg.Realtime.BufferSize = 256
	cfg.Realtime.HeartbeatSec = 30
	cfg.Projector.MaxOccurrences = 100
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.StaticDir = getEnv("STATIC_DIR", cfg.HTTP.StaticDir)
	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Sync.DefaultIntervalMin = getEnvInt("SYNC_INTERVAL_MIN", cfg.Sync.DefaultIntervalMin)
	cfg.Sync.FetchTimeoutSec = getEnvInt("FETCH_TIMEOUT_SEC", cfg.Sync.FetchTimeoutSec)
	cfg.Sync.FetchRetries = getEnvInt("FETCH_RETRIES", cfg.Sync.FetchRetries)
	cfg.Sync.CheckinTime = getEnv("CHECKIN_TIME", cfg.Sync.CheckinTime)
	cfg.Sync.CheckoutTime = getEnv("CHECKOUT_TIME", cfg.Sync.CheckoutTime)
	cfg.Workflow.AutoJobType = getEnv("AUTO_JOB_TYPE", cfg.Workflow.AutoJobType)
	cfg.Workflow.WebhookURL = getEnv("WEBHOOK_URL", cfg.Workflow.WebhookURL)
	cfg.Realtime.BufferSize = getEnvInt("RT_BUFFER_SIZE", cfg.Realtime.BufferSize)
	cfg.Realtime.HeartbeatSec = getEnvInt("RT_HEARTBEAT_SEC", cfg.Realtime.HeartbeatSec)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

func (c *Config) validate() error {
	if c.Sync.DefaultIntervalMin < 1 {
		return fmt.Errorf("sync.default_interval_min must be >= 1, got %d", c.Sync.DefaultIntervalMin)
	}
	if c.Sync.FetchRetries < 1 {
		return fmt.Errorf("sync.fetch_retries must be >= 1, got %d", c.Sync.FetchRetries)
	}
	if c.Realtime.BufferSize < 1 {
		return fmt.Errorf("realtime.buffer_size must be >= 1, got %d", c.Realtime.BufferSize)
	}
	return nil
}

// FetchTimeout returns the per-feed HTTP timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Sync.FetchTimeoutSec) * time.Second
}

// HeartbeatInterval returns the fan-out heartbeat period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Realtime.HeartbeatSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
