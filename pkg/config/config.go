// Package config loads NornicRDF configuration from a YAML file and
// environment variables.
//
// Defaults are applied first, then the YAML file (if any), then NORNICRDF_*
// environment variables, so the environment always wins. Call Validate
// before using the result.
//
// Example Usage:
//
//	cfg, err := config.LoadFile("nornicrdf.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	log.Printf("Starting with config: %s", cfg)
//
// Example file:
//
//	storage:
//	  backend: badger
//	  data_dir: /var/lib/nornicrdf
//	  sync_writes: true
//	lists:
//	  dump_path: /var/log/nornicrdf/broken-list.nt
//	access:
//	  enabled: true
//	  graph_name: urn:nornicrdf:default
//	  users:
//	    - name: admin
//	      password_hash: $2a$10$...
//	      default_role: admin
//	    - name: reader
//	      password_hash: $2a$10$...
//	      grants:
//	        urn:nornicrdf:default: viewer
//
// Environment Variables:
//   - NORNICRDF_STORAGE_BACKEND="badger" or "memory"
//   - NORNICRDF_DATA_DIR="./data"
//   - NORNICRDF_IN_MEMORY=true
//   - NORNICRDF_SYNC_WRITES=true
//   - NORNICRDF_LOW_MEMORY=true
//   - NORNICRDF_BLOCK_CACHE_MB=256
//   - NORNICRDF_LIST_DUMP_PATH="/tmp/broken-list.nt"
//   - NORNICRDF_LIST_DUMP_LIMIT=1000
//   - NORNICRDF_ACCESS_ENABLED=true
//   - NORNICRDF_GRAPH_NAME="urn:nornicrdf:default"
//   - NORNICRDF_AUDIT_ENABLED=true
//   - NORNICRDF_AUDIT_LOG_PATH="./logs/audit.log"
//   - NORNICRDF_AUDIT_SYNC_WRITES=true
//   - NORNICRDF_LOG_LEVEL="INFO"
//   - NORNICRDF_LOG_PREFIX="[nornicrdf] "
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config holds all NornicRDF configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Lists   ListsConfig   `yaml:"lists"`
	Access  AccessConfig  `yaml:"access"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and tunes the graph backend.
type StorageConfig struct {
	// Backend is "badger" (persistent) or "memory".
	Backend string `yaml:"backend"`
	// DataDir is the badger directory. Ignored for InMemory and the memory backend.
	DataDir string `yaml:"data_dir"`
	// InMemory runs badger without touching disk.
	InMemory bool `yaml:"in_memory"`
	// SyncWrites fsyncs every badger commit.
	SyncWrites bool `yaml:"sync_writes"`
	// LowMemory shrinks badger's memtables and caches.
	LowMemory bool `yaml:"low_memory"`
	// BlockCacheMB is badger's block cache size.
	BlockCacheMB int `yaml:"block_cache_mb"`
}

// ListsConfig controls broken list diagnostics.
type ListsConfig struct {
	// DumpPath receives the N-Triples neighbourhood of a broken list.
	// "-" writes to stderr, "off" disables the dump.
	DumpPath string `yaml:"dump_path"`
	// DumpLimit caps the triples written per dump.
	DumpLimit int `yaml:"dump_limit"`
}

// AccessConfig enables permission checks on the default graph.
type AccessConfig struct {
	Enabled   bool         `yaml:"enabled"`
	GraphName string       `yaml:"graph_name"`
	Users     []UserConfig `yaml:"users"`
}

// UserConfig is a principal loaded from the config file. Only bcrypt hashes
// are accepted, never plain passwords.
type UserConfig struct {
	Name         string            `yaml:"name"`
	PasswordHash string            `yaml:"password_hash"`
	DefaultRole  string            `yaml:"default_role"`
	Grants       map[string]string `yaml:"grants"`
}

// AuditConfig controls the security audit trail.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	LogPath    string `yaml:"log_path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	Level string `yaml:"level"`
	// Prefix is prepended to every log line.
	Prefix string `yaml:"prefix"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:      BackendBadger,
			DataDir:      "./data",
			BlockCacheMB: 256,
		},
		Lists: ListsConfig{
			DumpPath:  filepath.Join(os.TempDir(), "broken-list.nt"),
			DumpLimit: 1000,
		},
		Access: AccessConfig{
			GraphName: "urn:nornicrdf:default",
		},
		Audit: AuditConfig{
			LogPath: "./logs/audit.log",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// LoadFromEnv returns the defaults overridden by environment variables.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file over the defaults and then applies environment
// overrides. An empty path behaves like LoadFromEnv.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Backend = strings.ToLower(getEnv("NORNICRDF_STORAGE_BACKEND", c.Storage.Backend))
	c.Storage.DataDir = getEnv("NORNICRDF_DATA_DIR", c.Storage.DataDir)
	c.Storage.InMemory = getEnvBool("NORNICRDF_IN_MEMORY", c.Storage.InMemory)
	c.Storage.SyncWrites = getEnvBool("NORNICRDF_SYNC_WRITES", c.Storage.SyncWrites)
	c.Storage.LowMemory = getEnvBool("NORNICRDF_LOW_MEMORY", c.Storage.LowMemory)
	c.Storage.BlockCacheMB = getEnvInt("NORNICRDF_BLOCK_CACHE_MB", c.Storage.BlockCacheMB)

	c.Lists.DumpPath = getEnv("NORNICRDF_LIST_DUMP_PATH", c.Lists.DumpPath)
	c.Lists.DumpLimit = getEnvInt("NORNICRDF_LIST_DUMP_LIMIT", c.Lists.DumpLimit)

	c.Access.Enabled = getEnvBool("NORNICRDF_ACCESS_ENABLED", c.Access.Enabled)
	c.Access.GraphName = getEnv("NORNICRDF_GRAPH_NAME", c.Access.GraphName)

	c.Audit.Enabled = getEnvBool("NORNICRDF_AUDIT_ENABLED", c.Audit.Enabled)
	c.Audit.LogPath = getEnv("NORNICRDF_AUDIT_LOG_PATH", c.Audit.LogPath)
	c.Audit.SyncWrites = getEnvBool("NORNICRDF_AUDIT_SYNC_WRITES", c.Audit.SyncWrites)

	c.Logging.Level = strings.ToUpper(getEnv("NORNICRDF_LOG_LEVEL", c.Logging.Level))
	c.Logging.Prefix = getEnv("NORNICRDF_LOG_PREFIX", c.Logging.Prefix)
}

// Validate checks the configuration for errors. All failures match
// ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendBadger && !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("%w: badger backend needs a data directory", ErrInvalidConfig)
	}
	if c.Storage.BlockCacheMB <= 0 {
		return fmt.Errorf("%w: block_cache_mb must be positive, got %d", ErrInvalidConfig, c.Storage.BlockCacheMB)
	}
	if c.Lists.DumpLimit <= 0 {
		return fmt.Errorf("%w: dump_limit must be positive, got %d", ErrInvalidConfig, c.Lists.DumpLimit)
	}

	if c.Access.Enabled {
		if c.Access.GraphName == "" {
			return fmt.Errorf("%w: access control enabled but no graph_name", ErrInvalidConfig)
		}
		if len(c.Access.Users) == 0 {
			return fmt.Errorf("%w: access control enabled but no users configured", ErrInvalidConfig)
		}
	}
	seen := make(map[string]bool, len(c.Access.Users))
	for _, u := range c.Access.Users {
		if u.Name == "" {
			return fmt.Errorf("%w: user without name", ErrInvalidConfig)
		}
		if seen[u.Name] {
			return fmt.Errorf("%w: duplicate user %q", ErrInvalidConfig, u.Name)
		}
		seen[u.Name] = true
		if u.PasswordHash == "" {
			return fmt.Errorf("%w: user %q has no password_hash", ErrInvalidConfig, u.Name)
		}
	}

	if c.Audit.Enabled && c.Audit.LogPath == "" {
		return fmt.Errorf("%w: audit enabled but no log_path", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// String returns a representation safe for logging. Password hashes are
// left out.
func (c *Config) String() string {
	dataDir := c.Storage.DataDir
	if c.Storage.Backend == BackendMemory || c.Storage.InMemory {
		dataDir = "(memory)"
	}
	return fmt.Sprintf(
		"Config{Backend: %s, DataDir: %s, Access: %v, Users: %d, Graph: %s, DumpPath: %s}",
		c.Storage.Backend, dataDir,
		c.Access.Enabled, len(c.Access.Users), c.Access.GraphName,
		c.Lists.DumpPath,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
