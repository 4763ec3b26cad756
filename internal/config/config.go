package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Market   MarketConfig   `yaml:"market"`
	Rate     RateConfig     `yaml:"rate_limit"`
}

type AppConfig struct {
	Name           string   `yaml:"name"`
	Env            string   `yaml:"env"`
	Port           int      `yaml:"port"`
	Debug          bool     `yaml:"debug"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MarketConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Currency        string        `yaml:"currency"`
	HotSetSize      int           `yaml:"hot_set_size"`
	CacheTTL        time.Duration `yaml:"-"`
	RefreshInterval time.Duration `yaml:"-"`
	RequestTimeout  time.Duration `yaml:"-"`
	RetryBackoff    time.Duration `yaml:"-"`
}

// UnmarshalYAML parses the duration fields from "5m" style strings, which
// yaml.v2 cannot decode into time.Duration directly.
func (m *MarketConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		Currency        string `yaml:"currency"`
		HotSetSize      int    `yaml:"hot_set_size"`
		CacheTTL        string `yaml:"cache_ttl"`
		RefreshInterval string `yaml:"refresh_interval"`
		RequestTimeout  string `yaml:"request_timeout"`
		RetryBackoff    string `yaml:"retry_backoff"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	m.BaseURL = raw.BaseURL
	m.APIKey = raw.APIKey
	m.Currency = raw.Currency
	m.HotSetSize = raw.HotSetSize

	for _, field := range []struct {
		value string
		dst   *time.Duration
		name  string
	}{
		{raw.CacheTTL, &m.CacheTTL, "cache_ttl"},
		{raw.RefreshInterval, &m.RefreshInterval, "refresh_interval"},
		{raw.RequestTimeout, &m.RequestTimeout, "request_timeout"},
		{raw.RetryBackoff, &m.RetryBackoff, "retry_backoff"},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", field.name, err)
		}
		*field.dst = parsed
	}
	return nil
}

type RateConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Load reads the YAML config file, applies environment overrides and fills
// in defaults for anything left unset.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) loadFromEnv() {
	if env := os.Getenv("APP_ENV"); env != "" {
		c.App.Env = env
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.App.Port = p
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if key := os.Getenv("COINGECKO_API_KEY"); key != "" {
		c.Market.APIKey = key
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "wallstreetbets"
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Market.Currency == "" {
		c.Market.Currency = "usd"
	}
	if c.Market.HotSetSize == 0 {
		c.Market.HotSetSize = 100
	}
	if c.Market.CacheTTL == 0 {
		c.Market.CacheTTL = 5 * time.Minute
	}
	if c.Market.RefreshInterval == 0 {
		c.Market.RefreshInterval = 5 * time.Minute
	}
	if c.Market.RequestTimeout == 0 {
		c.Market.RequestTimeout = 5 * time.Second
	}
	if c.Market.RetryBackoff == 0 {
		c.Market.RetryBackoff = 500 * time.Millisecond
	}
	if c.Rate.RequestsPerSecond == 0 {
		c.Rate.RequestsPerSecond = 50
	}
	if c.Rate.Burst == 0 {
		c.Rate.Burst = 100
	}
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.App.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Market.HotSetSize < 1 {
		return fmt.Errorf("hot set size must be positive")
	}
	return nil
}
