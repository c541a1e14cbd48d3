package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultStorageDir is the default root for per-run archive storage.
	DefaultStorageDir = "./runs"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultDatabaseDriver is the default run-state database driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default SQLite database location.
	DefaultSQLitePath = "./simarchive.db"
)

// Config is the root configuration for simarchive.
type Config struct {
	Global   GlobalConfig    `yaml:"global"`
	Archive  ArchiveConfig   `yaml:"archive"`
	Database DatabaseConfig  `yaml:"database"`
	Upload   *S3UploadConfig `yaml:"upload,omitempty"`
	API      *APIConfig      `yaml:"api,omitempty"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// ArchiveConfig contains report discovery and archival settings.
//
// Enabled is a pointer: absent from the config file means "tracking
// status unknown", which is a distinct user-visible state from an
// explicit false.
type ArchiveConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`
	WorkspaceDir string `yaml:"workspace_dir"`
	StorageDir   string `yaml:"storage_dir"`

	// SelectionTolerance widens the run-start cutoff backwards (e.g.
	// "2s") to absorb clock skew between the workspace filesystem and
	// the archiving host. Empty means strict comparison.
	SelectionTolerance string `yaml:"selection_tolerance,omitempty"`
}

// Tolerance returns the parsed selection tolerance. Call Validate
// first; an unparseable value yields zero here.
func (c *ArchiveConfig) Tolerance() time.Duration {
	if c.SelectionTolerance == "" {
		return 0
	}

	d, err := time.ParseDuration(c.SelectionTolerance)
	if err != nil {
		return 0
	}

	return d
}

// DatabaseConfig contains run-state database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// S3UploadConfig contains S3-compatible storage settings for mirroring
// archived reports off-host.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty"`
	Concurrency     int    `yaml:"concurrency,omitempty"`
}

// APIConfig contains read-only API server settings.
type APIConfig struct {
	Listen      string          `yaml:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting for the API.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Archive.StorageDir == "" {
		c.Archive.StorageDir = DefaultStorageDir
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.API != nil && c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Archive.SelectionTolerance != "" {
		if _, err := time.ParseDuration(c.Archive.SelectionTolerance); err != nil {
			return fmt.Errorf("invalid selection_tolerance: %w", err)
		}
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
	}

	if c.Upload != nil && c.Upload.Enabled {
		if c.Upload.Bucket == "" {
			return fmt.Errorf("upload bucket is required when upload is enabled")
		}

		if c.Upload.Concurrency < 0 {
			return fmt.Errorf("upload concurrency must not be negative")
		}
	}

	if c.API != nil && c.API.RateLimit.Enabled &&
		c.API.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests_per_minute must be positive")
	}

	return nil
}
