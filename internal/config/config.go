// Package config loads the dashd configuration: a YAML file with defaults,
// overridden by DASHCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dashcore/internal/blob"
	"dashcore/internal/logging"
	"dashcore/pkg/dashboard"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DASHCORE_"

// Config is the root of dashd.yaml.
type Config struct {
	Logging logging.Config `yaml:"logging"`
	Blob    blob.Config    `yaml:"blob"`
	HTTP    HTTPConfig     `yaml:"http"`
	Export  ExportConfig   `yaml:"export"`

	// DataDir resolves relative file sources. Relative directories in the
	// file are taken from the directory of the file.
	DataDir string `yaml:"data_dir"`
	// DashboardsDir holds additional *.yaml dashboard definitions.
	DashboardsDir string `yaml:"dashboards_dir"`
	// Sources overrides the source of a dashboard by key.
	Sources map[string]dashboard.Source `yaml:"sources"`
	// Disabled lists plugin names not to install.
	Disabled []string `yaml:"disabled_plugins"`
}

// HTTPConfig configures dashd serve.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ExportConfig configures the artifact worker.
type ExportConfig struct {
	Prefix    string `yaml:"prefix"`
	QueueSize int    `yaml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: logging.Config{Level: "info", Format: "json"},
		Blob:    blob.Config{Driver: blob.DriverFilesystem, FSRoot: "./blobdata"},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Export:  ExportConfig{Prefix: "exports", QueueSize: 16},
		DataDir: ".",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
			base := filepath.Dir(path)
			cfg.DataDir = resolve(base, cfg.DataDir)
			cfg.DashboardsDir = resolve(base, cfg.DashboardsDir)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve anchors a relative directory from the file at base.
func resolve(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

func (c *Config) applyEnvOverrides() {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("DATA_DIR", &c.DataDir)
	str("DASHBOARDS_DIR", &c.DashboardsDir)
	str("EXPORT_PREFIX", &c.Export.Prefix)

	var driver string
	str("BLOB_DRIVER", &driver)
	if driver != "" {
		c.Blob.Driver = blob.Driver(driver)
	}
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("BLOB_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("BLOB_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	str("BLOB_S3_SESSION_TOKEN", &c.Blob.S3.SessionToken)
	var pathStyle string
	str("BLOB_S3_PATH_STYLE", &pathStyle)
	if pathStyle != "" {
		c.Blob.S3.PathStyle = strings.EqualFold(pathStyle, "true")
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("config: blob.s3.bucket required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	if c.Export.QueueSize < 0 {
		return errors.New("config: export.queue_size must not be negative")
	}
	return nil
}

// Enabled reports whether the named plugin should be installed.
func (c *Config) Enabled(plugin string) bool {
	for _, name := range c.Disabled {
		if strings.EqualFold(name, plugin) {
			return false
		}
	}
	return true
}
