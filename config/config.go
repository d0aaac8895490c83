// Package config loads generator settings from a TOML file.
//
//	error_policy = "continue"
//	log_level = "debug"
//
//	[dialect]
//	prefix = "Hb"
//
//	[[holder]]
//	template = "Holder"
//	field = "thePointer"
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/typehandlers"
)

// Error policies.
const (
	PolicyAbort    = "abort"
	PolicyContinue = "continue"
)

// Config holds the generator settings.
type Config struct {
	// ErrorPolicy is "abort" (stop at the first error) or "continue"
	// (log the error, skip the member and go on).
	ErrorPolicy string   `toml:"error_policy"`
	LogLevel    string   `toml:"log_level"`
	Dialect     Dialect  `toml:"dialect"`
	Holders     []Holder `toml:"holder"`
}

// Dialect selects the host ABI names.
type Dialect struct {
	Prefix string `toml:"prefix"`
}

// Holder registers a smart holder transformation: Template<T> is passed
// around as the T* stored in Field.
type Holder struct {
	Template string `toml:"template"`
	Field    string `toml:"field"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		ErrorPolicy: PolicyAbort,
		LogLevel:    "warn",
		Dialect:     Dialect{Prefix: hostapi.Default().Prefix},
	}
}

// Load reads the TOML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes TOML settings over the defaults and validates them.
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	switch c.ErrorPolicy {
	case PolicyAbort, PolicyContinue:
	default:
		return fmt.Errorf("error_policy must be %q or %q, got %q", PolicyAbort, PolicyContinue, c.ErrorPolicy)
	}
	if c.Dialect.Prefix == "" {
		return fmt.Errorf("dialect prefix cannot be empty")
	}
	for i, h := range c.Holders {
		if h.Template == "" || h.Field == "" {
			return fmt.Errorf("holder %d needs a template and a field", i+1)
		}
	}
	return nil
}

// HostDialect returns the dialect the settings select.
func (c *Config) HostDialect() *hostapi.Dialect {
	return hostapi.New(c.Dialect.Prefix)
}

// Apply registers the configured transformations with reg.
func (c *Config) Apply(reg *typehandlers.Registry) error {
	for _, h := range c.Holders {
		t := typehandlers.HolderTransformation{Template: h.Template, Field: h.Field}
		if err := reg.AddTransformation(t); err != nil {
			return fmt.Errorf("holder %s: %w", h.Template, err)
		}
	}
	return nil
}
