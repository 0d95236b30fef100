package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for the daemon and the project service.
type Config struct {
	Workspace string `koanf:"workspace"`
	Port      int    `koanf:"port"`
	Watch     bool   `koanf:"watch"`
	Verbosity string `koanf:"verbosity"`

	// Project service policy.
	UseSingleInferredProject bool     `koanf:"single-inferred"`
	AllowLocalPluginLoads    bool     `koanf:"allow-local-plugins"`
	PluginProbeLocations     []string `koanf:"plugin-probe-locations"`
	GlobalPlugins            []string `koanf:"global-plugins"`

	// Typings acquisition.
	TypingsCacheLocation string `koanf:"typings-cache"`

	// Watcher debounce timings in milliseconds.
	DebounceQuietMs int `koanf:"debounce-quiet-ms"`
	DebounceMaxMs   int `koanf:"debounce-max-ms"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"workspace":              ".",
		"port":                   7830,
		"watch":                  true,
		"verbosity":              "",
		"single-inferred":        false,
		"allow-local-plugins":    false,
		"plugin-probe-locations": []string{},
		"global-plugins":         []string{},
		"typings-cache":          "",
		"debounce-quiet-ms":      250,
		"debounce-max-ms":        2000,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - projectd.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("projectd.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: PROJECTD_ (e.g., PROJECTD_PORT=9090)
	if err := k.Load(env.Provider("PROJECTD_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "PROJECTD_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
