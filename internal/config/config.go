package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Primary   PrimaryConfig   `yaml:"primary"`
	Secondary SecondaryConfig `yaml:"secondary"`
	Failover  FailoverConfig  `yaml:"failover"`
	Refresh   RefreshConfig   `yaml:"refresh"`

	// QuotaPerDay is the expected daily fan gain used to judge members.
	QuotaPerDay int64 `yaml:"quota_per_day"`

	// Clubs are the tracked datasets swept by the scheduled refresh.
	Clubs []ClubConfig `yaml:"clubs"`
}

type ClubConfig struct {
	Name    string `yaml:"name"`
	Dataset string `yaml:"dataset"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
	Dir string        `yaml:"dir"`
}

type PrimaryConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// CallTimeout is the failover layer's outer budget for one logical
	// primary call, retries included.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type SecondaryConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds the lib/pq connection string.
func (s SecondaryConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		s.Host, s.Port, s.Database, s.User, s.Password, s.SSLMode)
}

type FailoverConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Pacing is the minimum spacing between consecutive upstream calls
	// during a bulk sweep, to stay under the provider's rate limit.
	Pacing time.Duration `yaml:"pacing"`
	// SweepTimeout bounds one whole bulk sweep; stragglers are left to
	// cache fallback.
	SweepTimeout time.Duration `yaml:"sweep_timeout"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
			Dir: "data_cache",
		},
		Primary: PrimaryConfig{
			MaxAttempts:    5,
			InitialBackoff: 500 * time.Millisecond,
			CallTimeout:    3 * time.Second,
		},
		Secondary: SecondaryConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Failover: FailoverConfig{
			Cooldown: 5 * time.Minute,
		},
		Refresh: RefreshConfig{
			Interval:     30 * time.Minute,
			Pacing:       2 * time.Second,
			SweepTimeout: 10 * time.Minute,
		},
		QuotaPerDay: 10_000,
	}
}

// Load reads a YAML config file over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}
