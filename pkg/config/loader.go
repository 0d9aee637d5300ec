package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the single YAML file the loader reads from configDir.
const ConfigFileName = "ninja.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load ninja.yaml from configDir (missing file falls back to defaults)
//  2. Expand {{.ENV}} template variables
//  3. Parse YAML into the typed Config
//  4. Merge built-in defaults underneath user values
//  5. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"redis_addr", cfg.Redis.Addr,
		"db_host", cfg.Database.Host,
		"llm_model", cfg.LLM.Model,
		"workers", cfg.Pipeline.WorkerCount)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := &Config{configDir: configDir}

	path := filepath.Join(configDir, ConfigFileName)
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Warn("Config file not found, using built-in defaults", "path", path)
	case err != nil:
		return nil, NewLoadError(ConfigFileName, err)
	default:
		expanded := ExpandEnv(raw)
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	}

	// User values win; defaults fill the gaps.
	if err := mergo.Merge(cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("merging defaults: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Redis.Addr == "" {
		return NewValidationError("redis", "addr", ErrMissingRequiredField)
	}
	if cfg.Redis.MaxQueueLength <= 0 {
		return NewValidationError("redis", "max_queue_length", ErrInvalidValue)
	}
	if cfg.Database.Host == "" {
		return NewValidationError("database", "host", ErrMissingRequiredField)
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return NewValidationError("database", "port", ErrInvalidValue)
	}
	if cfg.LLM.Model == "" {
		return NewValidationError("llm", "model", ErrMissingRequiredField)
	}
	if cfg.Engine.MaxTurns <= 0 {
		return NewValidationError("engine", "max_turns", ErrInvalidValue)
	}
	if cfg.Engine.MaxDuration <= 0 {
		return NewValidationError("engine", "max_duration", ErrInvalidValue)
	}
	if cfg.Pipeline.WorkerCount <= 0 {
		return NewValidationError("pipeline", "worker_count", ErrInvalidValue)
	}
	if cfg.Pipeline.MaxConcurrentAnalyses <= 0 {
		return NewValidationError("pipeline", "max_concurrent_analyses", ErrInvalidValue)
	}
	if cfg.Learning.MinPatternFrequency <= 0 {
		return NewValidationError("learning", "min_pattern_frequency", ErrInvalidValue)
	}
	if cfg.Learning.InsightConfidence < 0 || cfg.Learning.InsightConfidence > 1 {
		return NewValidationError("learning", "insight_confidence", ErrInvalidValue)
	}
	if cfg.Privacy.PhoneSalt == "" {
		return NewValidationError("privacy", "phone_salt", ErrMissingRequiredField)
	}
	return nil
}
