// Package config loads runbox settings from a YAML file and RUNBOX_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runbox setting.
type Config struct {
	Timeout     time.Duration `yaml:"timeout"`
	MemoryLimit string        `yaml:"memory_limit"`
	DiskCache   bool          `yaml:"disk_cache"`
	CacheDir    string        `yaml:"cache_dir"`

	Python PythonConfig `yaml:"python"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// PythonConfig says where the Python runtime comes from.
type PythonConfig struct {
	WasmPath    string `yaml:"wasm_path"`
	LibDir      string `yaml:"lib_dir"`
	DownloadURL string `yaml:"download_url"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures `runbox serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit    float64 `yaml:"rate_limit"`
	Burst        int     `yaml:"burst"`
	MaxBodyBytes int64   `yaml:"max_body_bytes"`
}

// MemoryLimits are the accepted memory_limit values.
var MemoryLimits = []string{"", "1mb", "16mb", "64mb", "256mb", "1gb"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeout:   10 * time.Second,
		DiskCache: true,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			RateLimit:    5,
			Burst:        10,
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Load reads path on top of the defaults, applies the environment and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RUNBOX_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	parse := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	parse("RUNBOX_TIMEOUT", func(v string) (err error) {
		c.Timeout, err = time.ParseDuration(v)
		return err
	})
	str("RUNBOX_MEMORY_LIMIT", &c.MemoryLimit)
	parse("RUNBOX_DISK_CACHE", func(v string) (err error) {
		c.DiskCache, err = strconv.ParseBool(v)
		return err
	})
	str("RUNBOX_CACHE_DIR", &c.CacheDir)

	str("RUNBOX_PYTHON_WASM", &c.Python.WasmPath)
	str("RUNBOX_PYTHON_LIB", &c.Python.LibDir)
	str("RUNBOX_PYTHON_URL", &c.Python.DownloadURL)

	str("RUNBOX_LOG_LEVEL", &c.Log.Level)
	str("RUNBOX_LOG_FORMAT", &c.Log.Format)

	str("RUNBOX_ADDR", &c.Server.Addr)
	parse("RUNBOX_RATE_LIMIT", func(v string) (err error) {
		c.Server.RateLimit, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("RUNBOX_BURST", func(v string) (err error) {
		c.Server.Burst, err = strconv.Atoi(v)
		return err
	})
	parse("RUNBOX_MAX_BODY_BYTES", func(v string) (err error) {
		c.Server.MaxBodyBytes, err = strconv.ParseInt(v, 10, 64)
		return err
	})

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}

	c.MemoryLimit = strings.ToLower(c.MemoryLimit)
	if !contains(MemoryLimits, c.MemoryLimit) {
		errs = append(errs, fmt.Errorf("memory_limit %q: expected one of 1mb, 16mb, 64mb, 256mb, 1gb", c.MemoryLimit))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: expected debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: expected console or json", c.Log.Format))
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, errors.New("server.burst must be at least 1 when rate limiting"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
