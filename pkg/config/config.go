// Package config loads, validates, and normalises goldtape configuration.
//
// It supports a YAML project file with environment variable overrides and is
// shared by the library constructors and the CLI so both resolve the same
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultDir           = "testdata/golden"
	defaultExtension     = ".json"
	defaultUpdate        = false
	defaultAllowExternal = true
	defaultConfigFile    = ".goldtape.yaml"

	envConfigFile    = "GOLDTAPE_CONFIG"
	envDir           = "GOLDTAPE_DIR"
	envExtension     = "GOLDTAPE_EXT"
	envUpdate        = "GOLDTAPE_UPDATE"
	envAllowExternal = "GOLDTAPE_ALLOW_EXTERNAL"
)

var errEmptyDir = errors.New("fixtures dir must not be empty")

// Config captures fixture storage settings and the process-wide mode toggles.
// The toggles are resolved once by Load and treated as immutable afterwards.
type Config struct {
	// Dir is the fixtures root directory.
	Dir string `yaml:"dir"`
	// Extension is appended to fixture identifiers when resolving file paths.
	Extension string `yaml:"extension"`
	// Update forces re-recording of fixtures regardless of their presence.
	Update bool `yaml:"update"`
	// AllowExternal permits real outbound requests during recording.
	AllowExternal bool `yaml:"allowExternal"`
}

// Option customises how Load resolves configuration.
type Option func(*loader)

type loader struct {
	path     string
	explicit bool
}

// WithPath points Load at a specific configuration file. The file must exist
// when this option is used.
func WithPath(path string) Option {
	return func(l *loader) {
		l.path = path
		l.explicit = true
	}
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Dir:           defaultDir,
		Extension:     defaultExtension,
		Update:        defaultUpdate,
		AllowExternal: defaultAllowExternal,
	}
}

// Load layers configuration: defaults, then the YAML file (if any), then
// environment variables. A missing file is only an error when its path was
// given explicitly via WithPath or GOLDTAPE_CONFIG.
func Load(opts ...Option) (Config, error) {
	l := loader{path: defaultConfigFile}
	if fromEnv := os.Getenv(envConfigFile); fromEnv != "" {
		l.path = fromEnv
		l.explicit = true
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&l)
		}
	}

	cfg := Default()

	if err := applyFile(&cfg, l.path, l.explicit); err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if strings.TrimSpace(cfg.Dir) == "" {
		return cfg, errEmptyDir
	}
	if cfg.Extension != "" && cfg.Extension[0] != '.' {
		cfg.Extension = "." + cfg.Extension
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if dir := os.Getenv(envDir); dir != "" {
		cfg.Dir = dir
	}
	if ext, ok := os.LookupEnv(envExtension); ok {
		cfg.Extension = ext
	}

	update, err := envBool(envUpdate, cfg.Update)
	if err != nil {
		return err
	}
	cfg.Update = update

	allow, err := envBool(envAllowExternal, cfg.AllowExternal)
	if err != nil {
		return err
	}
	cfg.AllowExternal = allow

	return nil
}

func envBool(name string, fallback bool) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	return value, nil
}
