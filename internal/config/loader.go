package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces reasond environment variables.
const envPrefix = "REASOND_"

// sections are the top-level config keys the env transformer recognizes.
var sections = []string{"server", "logging", "reasoning", "memory", "graph"}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (REASOND_REASONING_MAX_SEARCH_DEPTH, ...)
//  2. YAML config file (when configPath names an existing file)
//  3. Hardcoded defaults
//
// Environment variable mapping drops the prefix, lowercases, and splits on
// the first underscore after a known section name:
//
//	REASOND_SERVER_PORT                   -> server.port
//	REASOND_REASONING_MAX_SEARCH_DEPTH    -> reasoning.max_search_depth
//	REASOND_MEMORY_MAX_MEMORY_SIZE        -> memory.max_memory_size
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// transformEnv maps REASOND_SECTION_FIELD_NAME to section.field_name.
// Variables outside the known sections are dropped.
func transformEnv(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + strings.TrimPrefix(s, section+"_")
		}
	}
	return ""
}
