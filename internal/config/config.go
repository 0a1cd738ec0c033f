package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	FeedsFile      string `mapstructure:"feeds_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	OutputPath     string `mapstructure:"output_path"`

	TimeRangeHours int    `mapstructure:"time_range_hours"`
	Concurrency    int    `mapstructure:"concurrency"`
	FetchTimeoutMs int64  `mapstructure:"fetch_timeout_ms"`
	UserAgent      string `mapstructure:"user_agent"`
	Accept         string `mapstructure:"accept"`
	Parser         string `mapstructure:"parser"`

	DigestIntervalSeconds int64 `mapstructure:"digest_interval"`
	EnrichDescriptions    bool  `mapstructure:"enrich_descriptions"`
	EnrichDelayMs         int64 `mapstructure:"enrich_delay_ms"`

	StorageType           string `mapstructure:"storage_type"`
	BBoltPath             string `mapstructure:"bbolt_path"`
	StorageTTLSeconds     int64  `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds int64  `mapstructure:"storage_cleanup_interval_seconds"`

	FetchTimeout           time.Duration `mapstructure:"-"`
	DigestInterval         time.Duration `mapstructure:"-"`
	EnrichDelay            time.Duration `mapstructure:"-"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

const (
	DefaultUserAgent = "AI-Daily-Digest/2.0 (RSS Reader)"
	DefaultAccept    = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
)

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"hours":       "time_range_hours",
	"output":      "output_path",
	"concurrency": "concurrency",
	"timeout":     "fetch_timeout_ms",
	"feeds":       "feeds_file",
	"publishers":  "publishers_file",
	"interval":    "digest_interval",
	"parser":      "parser",
	"log-level":   "log_level",
	"enrich":      "enrich_descriptions",
}

// Load reads configuration from environment variables, configs/.env and, when given, parsed CLI flags.
// Flags only override a key when they were set explicitly.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-feed-digest")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("feeds_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("output_path", "")
	v.SetDefault("time_range_hours", 48)
	v.SetDefault("concurrency", 10)
	v.SetDefault("fetch_timeout_ms", 15000)
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("accept", DefaultAccept)
	v.SetDefault("parser", "tolerant")
	v.SetDefault("digest_interval", 0) // seconds; 0 runs once
	v.SetDefault("enrich_descriptions", false)
	v.SetDefault("enrich_delay_ms", 500)
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/reports.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.TimeRangeHours <= 0 {
		return fmt.Errorf("invalid time_range_hours (must be positive hours)")
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency (must be positive)")
	}
	if cfg.FetchTimeoutMs <= 0 {
		return fmt.Errorf("invalid fetch_timeout_ms (must be positive milliseconds)")
	}
	if cfg.DigestIntervalSeconds < 0 {
		return fmt.Errorf("invalid digest_interval (must be zero or positive seconds)")
	}
	if cfg.EnrichDelayMs < 0 {
		return fmt.Errorf("invalid enrich_delay_ms (must be zero or positive)")
	}
	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}

	cfg.Parser = strings.ToLower(strings.TrimSpace(cfg.Parser))
	switch cfg.Parser {
	case "", "tolerant":
		cfg.Parser = "tolerant"
	case "gofeed":
	default:
		return fmt.Errorf("unsupported parser %q (expected tolerant or gofeed)", cfg.Parser)
	}

	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutMs) * time.Millisecond
	cfg.DigestInterval = time.Duration(cfg.DigestIntervalSeconds) * time.Second
	cfg.EnrichDelay = time.Duration(cfg.EnrichDelayMs) * time.Millisecond
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second
	return nil
}
