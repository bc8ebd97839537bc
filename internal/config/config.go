package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	HTTP struct {
		Port                int    `yaml:"port"`
		APIKey              string `yaml:"api_key"`
		JWTSecret           string `yaml:"jwt_secret"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"http"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	RateLimit struct {
		Enabled        bool     `yaml:"enabled"`
		RPS            float64  `yaml:"rps"`
		Burst          int      `yaml:"burst"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"rate_limit"`

	AMQP struct {
		URL        string `yaml:"url"`
		Queue      string `yaml:"queue"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"amqp"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Venue struct {
		Timezone         string `yaml:"timezone"`
		SeedPath         string `yaml:"seed_path"`
		SeedWatchSeconds int    `yaml:"seed_watch_seconds"`
	} `yaml:"venue"`

	Booking struct {
		CancellationWindowHours int `yaml:"cancellation_window_hours"`
		MaxCalendarDays         int `yaml:"max_calendar_days"`
	} `yaml:"booking"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${ENV_VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.Database.Path != ":memory:" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSeconds <= 0 {
		c.HTTP.ReadTimeoutSeconds = 10
	}
	if c.HTTP.WriteTimeoutSeconds <= 0 {
		c.HTTP.WriteTimeoutSeconds = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/venuebook.db"
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "venuebook.reservations"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Venue.Timezone == "" {
		c.Venue.Timezone = "UTC"
	}
	if c.Venue.SeedWatchSeconds <= 0 {
		c.Venue.SeedWatchSeconds = 30
	}
	if c.Booking.CancellationWindowHours <= 0 {
		c.Booking.CancellationWindowHours = 24
	}
	if c.Booking.MaxCalendarDays <= 0 {
		c.Booking.MaxCalendarDays = 90
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Location is the venue time zone; calendar days and weekdays are taken in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Venue.Timezone)
	if err != nil {
		return nil, fmt.Errorf("venue timezone %q: %w", c.Venue.Timezone, err)
	}
	return loc, nil
}

func (c *Config) CancellationWindow() time.Duration {
	return time.Duration(c.Booking.CancellationWindowHours) * time.Hour
}

func (c *Config) SeedWatchInterval() time.Duration {
	return time.Duration(c.Venue.SeedWatchSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
