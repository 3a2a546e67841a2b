// Package config provides configuration loading for reasond.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables with the REASOND_ prefix. Only values are consumed
// here; each component re-validates its own slice of the config.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/reasond/internal/engine"
	"github.com/fyrsmithlabs/reasond/internal/logging"
	"github.com/fyrsmithlabs/reasond/internal/memory"
)

// Config holds the complete reasond configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Reasoning ReasoningConfig `koanf:"reasoning"`
	Memory    MemoryConfig    `koanf:"memory"`
	Graph     GraphConfig     `koanf:"graph"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ReasoningConfig holds reasoning-engine knobs.
type ReasoningConfig struct {
	MaxSearchDepth      int           `koanf:"max_search_depth"`
	SimilarityThreshold float64       `koanf:"similarity_threshold"`
	MaxRefineRetries    int           `koanf:"max_refine_retries"`
	StrategyTimeout     time.Duration `koanf:"strategy_timeout"`
	PromotionThreshold  float64       `koanf:"promotion_threshold"`
}

// MemoryConfig holds tiered-memory knobs.
type MemoryConfig struct {
	MaxMemorySize     int     `koanf:"max_memory_size"`
	EpisodicDecayRate float64 `koanf:"episodic_decay_rate"`
	SemanticDecayRate float64 `koanf:"semantic_decay_rate"`
	DecayEpsilon      float64 `koanf:"decay_epsilon"`
	ProceduralAlpha   float64 `koanf:"procedural_alpha"`
}

// GraphConfig holds graph-store knobs.
type GraphConfig struct {
	// Path is the JSON graph file loaded at startup.
	Path string `koanf:"path"`

	// VectorSize is the expected embedding dimension (0 disables the check).
	VectorSize int `koanf:"vector_size"`

	// DisableIndex turns off the embedded vector index.
	DisableIndex bool `koanf:"disable_index"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9210
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the loadable surface. Engine and memory configs are
// validated again by their owning components.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Reasoning.SimilarityThreshold < 0 || c.Reasoning.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %f out of [0,1]", c.Reasoning.SimilarityThreshold)
	}
	if c.Memory.MaxMemorySize < 0 {
		return fmt.Errorf("max memory size cannot be negative")
	}
	return nil
}

// EngineConfig maps the reasoning section onto the engine's own config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxSearchDepth:      c.Reasoning.MaxSearchDepth,
		SimilarityThreshold: c.Reasoning.SimilarityThreshold,
		MaxRefineRetries:    c.Reasoning.MaxRefineRetries,
		StrategyTimeout:     c.Reasoning.StrategyTimeout,
		PromotionThreshold:  c.Reasoning.PromotionThreshold,
	}
}

// MemorySystemConfig maps the memory section onto the memory system's
// config.
func (c *Config) MemorySystemConfig() memory.Config {
	return memory.Config{
		MaxSize:           c.Memory.MaxMemorySize,
		EpisodicDecayRate: c.Memory.EpisodicDecayRate,
		SemanticDecayRate: c.Memory.SemanticDecayRate,
		DecayEpsilon:      c.Memory.DecayEpsilon,
		ProceduralAlpha:   c.Memory.ProceduralAlpha,
	}
}
