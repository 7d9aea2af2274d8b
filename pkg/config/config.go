// Package config loads navd's configuration from environment variables,
// with an optional YAML file supplying the same fields as defaults that
// the environment then overrides (§6.4, SPEC_FULL §4.9).
//
// Configuration is organized into logical sections:
//   - Snapshot: paths to the graph snapshot and tile index
//   - Server: HTTP listener settings
//   - Search: worker concurrency, expansion and timeout budgets
//   - Cache: optional persistent route-result cache
//   - Resources: default surge/dive cooldown families
//   - Audit: structured error-event logging
//
// Example:
//
//	cfg, err := config.LoadFromEnvOrFile(*configFlag)
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all of navd's configuration.
type Config struct {
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Server    ServerConfig    `yaml:"server"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Resources ResourcesConfig `yaml:"resources"`
	Audit     AuditConfig     `yaml:"audit"`
}

// SnapshotConfig locates the two required input files (§6.1, §6.2).
type SnapshotConfig struct {
	// Path is SNAPSHOT_PATH: the navigation graph snapshot file.
	Path string `yaml:"path"`
	// TilesPath is TILES_PATH: the tile index file.
	TilesPath string `yaml:"tiles_path"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	AdminToken      string        `yaml:"admin_token"`
}

// SearchConfig holds A* worker concurrency and budgets (§6.4).
type SearchConfig struct {
	// WorkerThreads is concurrent query capacity; default = logical CPUs.
	WorkerThreads int `yaml:"worker_threads"`
	// MaxExpansions is the per-query expansion budget; default 5e6.
	MaxExpansions uint32 `yaml:"max_expansions"`
	// DefaultTimeoutMS is read from DEFAULT_TIMEOUT_MS and the YAML file;
	// the server and the route command do not apply it (their per-query
	// timeout is a fixed 10 seconds).
	DefaultTimeoutMS uint32 `yaml:"default_timeout_ms"`
	// JitterMaxFraction bounds deterministic seeded edge jitter (§4.11).
	JitterMaxFraction float64 `yaml:"jitter_max_fraction"`
}

// CacheConfig holds the optional persistent route-result cache's settings
// (§4.10).
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	LRUSize int    `yaml:"lru_size"`
	// TTL bounds how long a cached route result stays valid in either
	// tier; zero means entries never expire on their own (still subject
	// to LRU eviction).
	TTL time.Duration `yaml:"ttl"`
}

// ResourceFamilyConfig is the configured setting for one cooldown resource
// family (§4.3). The server does not apply it to route queries: a /route
// request without surge / dive runs that family with a zero configuration.
type ResourceFamilyConfig struct {
	Enabled        bool   `yaml:"enabled"`
	InitialCharges uint8  `yaml:"initial_charges"`
	CooldownMS     uint32 `yaml:"cooldown_ms"`
}

// ResourcesConfig holds the known resource families' defaults.
type ResourcesConfig struct {
	Surge ResourceFamilyConfig `yaml:"surge"`
	Dive  ResourceFamilyConfig `yaml:"dive"`
}

// AuditConfig holds structured error-event logging settings (§7, §4.8).
type AuditConfig struct {
	// Path is AUDIT_LOG_PATH; empty means stderr.
	Path string `yaml:"path"`
}

// Default returns a Config with sane defaults for every field except the
// two required snapshot paths.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			EnableCORS:   true,
		},
		Search: SearchConfig{
			WorkerThreads:      runtime.NumCPU(),
			MaxExpansions:      5_000_000,
			DefaultTimeoutMS:   2_000,
			JitterMaxFraction:  0.05,
		},
		Cache: CacheConfig{
			LRUSize: 4096,
			TTL:     1 * time.Hour,
		},
		Resources: ResourcesConfig{
			Surge: ResourceFamilyConfig{InitialCharges: 2, CooldownMS: 20_400},
			Dive:  ResourceFamilyConfig{CooldownMS: 30_000},
		},
	}
}

// LoadFromFile reads and merges a YAML file over Default().
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnvOrFile loads a YAML file (if path is non-empty) as the base,
// then applies environment-variable overrides, which always win. This
// mirrors the teacher's apoc.LoadFromEnvOrFile precedence.
func LoadFromEnvOrFile(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str(&cfg.Snapshot.Path, "SNAPSHOT_PATH")
	str(&cfg.Snapshot.TilesPath, "TILES_PATH")
	str(&cfg.Server.AdminToken, "ADMIN_TOKEN")
	str(&cfg.Audit.Path, "AUDIT_LOG_PATH")
	str(&cfg.Cache.Dir, "ROUTE_CACHE_DIR")
	durationVal(&cfg.Cache.TTL, "ROUTE_CACHE_TTL")

	intVal(&cfg.Server.Port, "HTTP_PORT")
	str(&cfg.Server.Address, "HTTP_ADDRESS")

	intVal(&cfg.Search.WorkerThreads, "WORKER_THREADS")
	uintVal(&cfg.Search.MaxExpansions, "MAX_EXPANSIONS")
	uintVal(&cfg.Search.DefaultTimeoutMS, "DEFAULT_TIMEOUT_MS")

	boolVal(&cfg.Cache.Enabled, "ROUTE_CACHE_ENABLED")

	boolVal(&cfg.Resources.Surge.Enabled, "SURGE_ENABLED")
	boolVal(&cfg.Resources.Dive.Enabled, "DIVE_ENABLED")
}

func str(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}

func intVal(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func durationVal(dst *time.Duration, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func uintVal(dst *uint32, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func boolVal(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		s := strings.ToLower(strings.TrimSpace(v))
		switch s {
		case "true", "1", "yes", "on":
			*dst = true
		case "false", "0", "no", "off":
			*dst = false
		}
	}
}

// Validate checks the required fields and obviously-invalid values.
func (c *Config) Validate() error {
	if c.Snapshot.Path == "" {
		return fmt.Errorf("config: SNAPSHOT_PATH is required")
	}
	if c.Snapshot.TilesPath == "" {
		return fmt.Errorf("config: TILES_PATH is required")
	}
	if c.Search.WorkerThreads <= 0 {
		return fmt.Errorf("config: worker_threads must be positive")
	}
	return nil
}
