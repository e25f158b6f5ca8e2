// Package config loads the small, optional YAML configuration that
// controls only ambient concerns never covered by the command surface:
// the HTTP listen address, the log level, and the disassembly syntax. The
// target binary path stays a required positional CLI argument and is never
// supplied here.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ambient configuration.
type Config struct {
	// HTTPAddr is the listen address for internal/httpapi.Server, e.g.
	// "127.0.0.1:8080". Defaults to "127.0.0.1:8080" when omitted.
	HTTPAddr string `yaml:"http_addr"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// DisasmSyntax selects the assembler dialect for the Disassemble
	// command: "intel" or "att". Defaults to "intel" when omitted.
	DisasmSyntax string `yaml:"disasm_syntax"`
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDisasmSyntax = map[string]bool{
	"intel": true,
	"att":   true,
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, applies defaults, and validates
// enumerated fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = "127.0.0.1:8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DisasmSyntax == "" {
		cfg.DisasmSyntax = "intel"
	}
}

func validate(cfg *Config) error {
	var errs []error
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if !validDisasmSyntax[cfg.DisasmSyntax] {
		errs = append(errs, fmt.Errorf("disasm_syntax %q must be one of: intel, att", cfg.DisasmSyntax))
	}
	return errors.Join(errs...)
}
