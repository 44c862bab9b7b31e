package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
	Queue  QueueConfig  `yaml:"queue"`
	Origin OriginConfig `yaml:"origin"`
}

type ServerConfig struct {
	Address string    `yaml:"address" env:"COURIERGATE_ADDRESS"`
	TLS     TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

type CacheConfig struct {
	// Version rotates the generation names; it must change on every deploy
	// so that activation purges the previous generations.
	Version     string   `yaml:"version" env:"COURIERGATE_CACHE_VERSION"`
	StaticBase  string   `yaml:"staticBase"`
	DynamicBase string   `yaml:"dynamicBase"`
	Seeds       []string `yaml:"seeds"`
	Path        string   `yaml:"path" env:"COURIERGATE_CACHE_PATH"`
	MaxEntries  int      `yaml:"maxEntries"`
}

type QueueConfig struct {
	Path string `yaml:"path" env:"COURIERGATE_QUEUE_PATH"`
}

type OriginConfig struct {
	Endpoints      []string              `yaml:"endpoints" env:"COURIERGATE_ORIGIN_ENDPOINTS"`
	Insecure       bool                  `yaml:"insecure"`
	HealthCheck    *HealthCheckConfig    `yaml:"healthCheck,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty"`
}

type HealthCheckConfig struct {
	Path               string        `yaml:"path"`
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"`
	UnhealthyThreshold int           `yaml:"unhealthyThreshold"`
	HealthyThreshold   int           `yaml:"healthyThreshold"`
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures int           `yaml:"consecutiveFailures"`
	Cooldown            time.Duration `yaml:"cooldown"`
}

// DefaultSeeds is the app-shell manifest installed into the static
// generation: the shell root, the web-app manifest and the font stylesheet.
var DefaultSeeds = []string{
	"/",
	"/manifest.json",
	"https://fonts.googleapis.com/css2?family=Open+Sans:wght@400;600;700&display=swap",
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8787"
	}

	if cfg.Cache.Version == "" {
		cfg.Cache.Version = "v1.0"
	}
	if cfg.Cache.StaticBase == "" {
		cfg.Cache.StaticBase = "static-cache"
	}
	if cfg.Cache.DynamicBase == "" {
		cfg.Cache.DynamicBase = "dynamic-cache"
	}
	if len(cfg.Cache.Seeds) == 0 {
		cfg.Cache.Seeds = append([]string(nil), DefaultSeeds...)
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 1024
	}

	if cfg.Queue.Path == "" {
		cfg.Queue.Path = "couriergate-queue.db"
	}
}

// StaticGeneration is the versioned name of the static cache partition,
// e.g. "static-cache-v2.0".
func (cfg *Config) StaticGeneration() string {
	return cfg.Cache.StaticBase + "-" + cfg.Cache.Version
}

// DynamicGeneration is the versioned name of the dynamic cache partition.
func (cfg *Config) DynamicGeneration() string {
	return cfg.Cache.DynamicBase + "-" + cfg.Cache.Version
}
