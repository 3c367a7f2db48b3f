// Package config loads the YAML configuration used by cmd/tiercache.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/tiercache"
)

// Config holds all tiercache configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Cache   CacheConfig   `yaml:"cache"`
	Stream  StreamConfig  `yaml:"stream"`
	Metrics MetricsConfig `yaml:"metrics"`
	Devlog  DevlogConfig  `yaml:"devlog"`
}

// LogConfig picks the logging backend.
// Backend is "zap" (default), "logrus" or "slog"; Format is "json" or "console".
type LogConfig struct {
	Backend string `yaml:"backend"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

type CacheConfig struct {
	Namespace       string                `yaml:"namespace"`
	DefaultMode     tiercache.StorageMode `yaml:"default_mode"`
	PromoteDiskHits bool                  `yaml:"promote_disk_hits"`
	Memory          MemoryConfig          `yaml:"memory"`
	Disk            DiskConfig            `yaml:"disk"`
	Async           AsyncConfig           `yaml:"async"`
	Cookies         CookieConfig          `yaml:"cookies"`
}

// MemoryConfig: Kind is "map" or "ristretto".
type MemoryConfig struct {
	Kind     string `yaml:"kind"`
	MaxItems int64  `yaml:"max_items"`
}

// DiskConfig: Kind is "mem", "sqlite" or "redis".
type DiskConfig struct {
	Kind       string `yaml:"kind"`
	Path       string `yaml:"path"`
	RedisAddr  string `yaml:"redis_addr"`
	Namespace  string `yaml:"namespace"`
	QuotaBytes int    `yaml:"quota_bytes"` // mem only; 0 = unbounded
}

// AsyncConfig: Kind is "none", "badger", "bigcache" or "redis"; Codec is
// "msgpack", "cbor", "json" or "structpb".
type AsyncConfig struct {
	Kind      string        `yaml:"kind"`
	Dir       string        `yaml:"dir"` // badger; "" => in-memory
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
	Codec     string        `yaml:"codec"`
	MaxDecode int           `yaml:"max_decode"`
	MaxSizeMB int           `yaml:"max_size_mb"` // bigcache
}

// CookieConfig: Path, when set, persists the jar between runs.
type CookieConfig struct {
	Path string `yaml:"path"`
}

type StreamConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DevlogConfig: ErrorKey, when set, keeps the last error line in the cache.
type DevlogConfig struct {
	ErrorKey string `yaml:"error_key"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Backend: "zap",
			Level:   "info",
			Format:  "console",
		},
		Cache: CacheConfig{
			Namespace:   "tiercache",
			DefaultMode: tiercache.Memory,
			Memory: MemoryConfig{
				Kind:     "map",
				MaxItems: 10_000,
			},
			Disk: DiskConfig{
				Kind:      "sqlite",
				Path:      "tiercache.db",
				Namespace: "default",
			},
			Async: AsyncConfig{
				Kind:  "none",
				Codec: "msgpack",
			},
		},
		Stream: StreamConfig{
			Endpoint: "http://localhost:8000/stream/",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s must be one of %v, got %q", field, allowed, v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	checks := []error{
		oneOf("log.backend", c.Log.Backend, "zap", "logrus", "slog"),
		oneOf("log.format", c.Log.Format, "json", "console"),
		oneOf("cache.memory.kind", c.Cache.Memory.Kind, "map", "ristretto"),
		oneOf("cache.disk.kind", c.Cache.Disk.Kind, "mem", "sqlite", "redis"),
		oneOf("cache.async.kind", c.Cache.Async.Kind, "none", "badger", "bigcache", "redis"),
		oneOf("cache.async.codec", c.Cache.Async.Codec, "msgpack", "cbor", "json", "structpb"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	switch {
	case c.Cache.Memory.Kind == "ristretto" && c.Cache.Memory.MaxItems <= 0:
		return errors.New("config: cache.memory.max_items is required for ristretto")
	case c.Cache.Disk.Kind == "sqlite" && c.Cache.Disk.Path == "":
		return errors.New("config: cache.disk.path is required for sqlite")
	case c.Cache.Disk.Kind == "redis" && c.Cache.Disk.RedisAddr == "":
		return errors.New("config: cache.disk.redis_addr is required for redis")
	case c.Cache.Async.Kind == "redis" && c.Cache.Async.RedisAddr == "":
		return errors.New("config: cache.async.redis_addr is required for redis")
	case c.Cache.Async.TTL < 0:
		return errors.New("config: cache.async.ttl must not be negative")
	case c.Stream.Timeout < 0:
		return errors.New("config: stream.timeout must not be negative")
	}
	return nil
}
