package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Registry struct {
		File string `yaml:"file"`
	} `yaml:"registry"`
	Storage struct {
		Backend string `yaml:"backend" default:"clickhouse"` // clickhouse or memory
	} `yaml:"storage"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"emascreen"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"emascreen"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"ema.updates"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Source struct {
		BaseURL        string        `yaml:"base_url"`
		HistoricalURL  string        `yaml:"historical_url"`
		RateDelay      time.Duration `yaml:"rate_delay" default:"3s"`
		MaxRetries     int           `yaml:"max_retries" default:"3"`
		SessionRefresh int           `yaml:"session_refresh" default:"15"` // calls between session rebuilds
		RequestTimeout time.Duration `yaml:"request_timeout" default:"15s"`
	} `yaml:"source"`
	Screener struct {
		Period  int     `yaml:"period" default:"200"`
		BandPct float64 `yaml:"band_pct" default:"2.5"`
	} `yaml:"screener"`
	Market struct {
		Timezone string `yaml:"timezone" default:"Asia/Kolkata"`
		Cutoff   string `yaml:"cutoff" default:"15:30"` // HH:MM session close
	} `yaml:"market"`
	Schedule struct {
		Cron       string `yaml:"cron" default:"0 45 15 * * MON-FRI"` // six-field spec, seconds first
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REGISTRY_FILE"); v != "" {
		c.Registry.File = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("SOURCE_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Registry.File == "" {
		return fmt.Errorf("registry.file is required")
	}
	if c.Storage.Backend != "clickhouse" && c.Storage.Backend != "memory" {
		return fmt.Errorf("storage.backend must be 'clickhouse' or 'memory', got '%s'", c.Storage.Backend)
	}
	if c.Storage.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for clickhouse backend")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Source.BaseURL == "" || c.Source.HistoricalURL == "" {
		return fmt.Errorf("source.base_url and source.historical_url are required")
	}
	if c.Screener.Period < 2 {
		return fmt.Errorf("screener.period must be at least 2")
	}
	if _, err := time.Parse("15:04", c.Market.Cutoff); err != nil {
		return fmt.Errorf("market.cutoff must be HH:MM: %w", err)
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	return nil
}

// Location returns the exchange timezone. Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Market.Timezone)
	return loc
}

// CutoffClock returns the session cutoff as hour and minute.
func (c *Config) CutoffClock() (hour, minute int) {
	t, _ := time.Parse("15:04", c.Market.Cutoff)
	return t.Hour(), t.Minute()
}
