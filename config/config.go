// Package config loads the host settings: logging, listen address, the
// extension modules to load and the shutdown budget.
//
// Values come from an optional YAML file and are then overridden by
// environment variables:
//
//	EXTMGR_LOG_LEVEL             debug | info | warn | error
//	EXTMGR_LOG_FORMAT            text | json
//	EXTMGR_ADDR                  listen address, e.g. ":8080"
//	EXTMGR_MODULES               comma separated module globs
//	EXTMGR_SHUTDOWN_TIMEOUT_MS   graceful shutdown budget in milliseconds
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sghaida/extmgr/extension"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Addr      string `yaml:"addr"`

	// Modules are glob patterns over extension module names. Empty means all.
	Modules []string `yaml:"modules"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads path (skipped when empty) over Default, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.LogLevel = getenv("EXTMGR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("EXTMGR_LOG_FORMAT", cfg.LogFormat)
	cfg.Addr = getenv("EXTMGR_ADDR", cfg.Addr)
	if v := os.Getenv("EXTMGR_MODULES"); v != "" {
		cfg.Modules = splitList(v)
	}
	cfg.ShutdownTimeout = time.Duration(getenvInt("EXTMGR_SHUTDOWN_TIMEOUT_MS", int(cfg.ShutdownTimeout.Milliseconds()))) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and reports the first problem.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.Addr == "" {
		return errors.New("config: addr must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("config: shutdown timeout must be > 0")
	}
	if _, err := c.ModulePredicate(); err != nil {
		return fmt.Errorf("config: modules: %w", err)
	}
	return nil
}

// ModulePredicate compiles Modules. It returns nil, selecting every module,
// when Modules is empty.
func (c Config) ModulePredicate() (extension.ModulePredicate, error) {
	return extension.ModuleGlobs(c.Modules...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
