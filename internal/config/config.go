// Package config loads the service knobs from defaults, an optional config
// file and DELTACACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/IvanBrykalov/deltacache/deltasync"
	"github.com/IvanBrykalov/deltacache/listcache"
	"github.com/IvanBrykalov/deltacache/snapstats"
)

// EnvPrefix prefixes every environment knob, e.g. DELTACACHE_CACHE_TTL.
const EnvPrefix = "DELTACACHE"

// Config is the resolved configuration.
type Config struct {
	Cache CacheConfig `mapstructure:"cache"`
	Stats StatsConfig `mapstructure:"stats"`
	Log   LogConfig   `mapstructure:"log"`
}

// CacheConfig tunes the list cache.
type CacheConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	CompressionLevel int           `mapstructure:"compression_level"`
	Shards           int           `mapstructure:"shards"`
	MaxEntries       int           `mapstructure:"max_entries"`
	StrictCursor     bool          `mapstructure:"strict_cursor"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
}

// StatsConfig tunes the snapshot metrics calculator.
type StatsConfig struct {
	StuckThreshold time.Duration `mapstructure:"stuck_threshold"`
}

// LogConfig selects log level, format and destination. An empty File
// logs to stderr.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Defaults registers the default value of every knob on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("cache.ttl", listcache.DefaultTTL)
	v.SetDefault("cache.sweep_interval", listcache.DefaultSweepInterval)
	v.SetDefault("cache.compression_level", listcache.DefaultCompressionLevel)
	v.SetDefault("cache.shards", 0)
	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("cache.strict_cursor", false)
	v.SetDefault("cache.fetch_timeout", deltasync.DefaultFetchTimeout)
	v.SetDefault("stats.stuck_threshold", snapstats.DefaultStuckThreshold)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
}

// Load resolves the configuration. file may be empty; env vars override the
// file, which overrides defaults.
func Load(file string) (Config, error) {
	v := viper.New()
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the components would silently replace.
func (c Config) Validate() error {
	var errs []error
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("cache.sweep_interval must be positive, got %s", c.Cache.SweepInterval))
	}
	if c.Cache.CompressionLevel < 1 || c.Cache.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("cache.compression_level must be in [1..22], got %d", c.Cache.CompressionLevel))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries))
	}
	if c.Cache.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("cache.fetch_timeout must be positive, got %s", c.Cache.FetchTimeout))
	}
	if c.Stats.StuckThreshold <= 0 {
		errs = append(errs, fmt.Errorf("stats.stuck_threshold must be positive, got %s", c.Stats.StuckThreshold))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// CacheOptions maps the cache knobs onto listcache.Options. Metrics, Logger
// and Clock are left for the caller to inject.
func (c Config) CacheOptions() listcache.Options {
	return listcache.Options{
		TTL:              c.Cache.TTL,
		SweepInterval:    c.Cache.SweepInterval,
		CompressionLevel: c.Cache.CompressionLevel,
		Shards:           c.Cache.Shards,
		MaxEntries:       c.Cache.MaxEntries,
	}
}

// Calculator returns the snapshot metrics calculator configured here.
func (c Config) Calculator() snapstats.Calculator {
	return snapstats.Calculator{StuckThreshold: c.Stats.StuckThreshold}
}
