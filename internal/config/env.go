package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv applies FANTRACK_* environment overrides to cfg.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("FANTRACK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("FANTRACK_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}

	if ttl := os.Getenv("FANTRACK_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if dir := os.Getenv("FANTRACK_CACHE_DIR"); dir != "" {
		cfg.Cache.Dir = dir
	}

	if url := os.Getenv("FANTRACK_PRIMARY_URL"); url != "" {
		cfg.Primary.BaseURL = url
	}
	if key := os.Getenv("FANTRACK_PRIMARY_API_KEY"); key != "" {
		cfg.Primary.APIKey = key
	}
	if attempts := os.Getenv("FANTRACK_PRIMARY_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			cfg.Primary.MaxAttempts = n
		}
	}
	if backoff := os.Getenv("FANTRACK_PRIMARY_BACKOFF"); backoff != "" {
		if d, err := time.ParseDuration(backoff); err == nil {
			cfg.Primary.InitialBackoff = d
		}
	}
	if timeout := os.Getenv("FANTRACK_PRIMARY_CALL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Primary.CallTimeout = d
		}
	}

	if host := os.Getenv("FANTRACK_DB_HOST"); host != "" {
		cfg.Secondary.Host = host
	}
	if port := os.Getenv("FANTRACK_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Secondary.Port = p
		}
	}
	if db := os.Getenv("FANTRACK_DB_NAME"); db != "" {
		cfg.Secondary.Database = db
	}
	if user := os.Getenv("FANTRACK_DB_USER"); user != "" {
		cfg.Secondary.User = user
	}
	if pass := os.Getenv("FANTRACK_DB_PASSWORD"); pass != "" {
		cfg.Secondary.Password = pass
	}

	if cooldown := os.Getenv("FANTRACK_FAILOVER_COOLDOWN"); cooldown != "" {
		if d, err := time.ParseDuration(cooldown); err == nil {
			cfg.Failover.Cooldown = d
		}
	}

	if interval := os.Getenv("FANTRACK_REFRESH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Refresh.Interval = d
		}
	}
	if pacing := os.Getenv("FANTRACK_REFRESH_PACING"); pacing != "" {
		if d, err := time.ParseDuration(pacing); err == nil {
			cfg.Refresh.Pacing = d
		}
	}

	if quota := os.Getenv("FANTRACK_QUOTA_PER_DAY"); quota != "" {
		if q, err := strconv.ParseInt(quota, 10, 64); err == nil {
			cfg.QuotaPerDay = q
		}
	}
}

// GetEnvOrDefault returns an environment variable or a default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
