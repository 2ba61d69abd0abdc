// Package config loads the YAML configuration that parameterizes Project
// construction (spec §6) and the bounded worklist analyses (spec §4.6/§5).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the turi configuration file.
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the turi configuration directory.
const ConfigDirName = ".turi"

// Config holds all turi configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Heuristic HeuristicConfig `yaml:"heuristic"`
}

// ProjectConfig mirrors the Project constructor arguments from spec §6.
type ProjectConfig struct {
	AppPath     string `yaml:"app_path"`
	InputFormat string `yaml:"input_format"`
	SDK         string `yaml:"sdk"`
	CachePath   string `yaml:"cache_path"`
}

// AnalysisConfig holds the slicer's termination bounds (spec §4.6/§5).
type AnalysisConfig struct {
	MaxIter       int `yaml:"max_iter"`
	MaxItersBlock int `yaml:"max_iters_block"`
}

// HeuristicConfig names the collection types the reflection heuristic
// treats as a store-then-iterate container (spec §4.8 step 3).
type HeuristicConfig struct {
	CollectionTypes []string `yaml:"collection_types"`
}

// ErrConfigNotFound is returned when no config file can be found.
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .turi/config.yaml, falling back to defaults. It
// searches for the config directory starting from workDir and walking up
// the directory tree. If no config is found, returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		return DefaultConfig(), nil
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path. Merges loaded config
// with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())

	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// FindConfigDir locates the .turi directory by walking up from startDir.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// Validate checks that config values are valid.
func Validate(cfg *Config) error {
	if cfg.Analysis.MaxIter <= 0 {
		return fmt.Errorf("%w: analysis.max_iter must be positive, got %d",
			ErrInvalidConfig, cfg.Analysis.MaxIter)
	}
	if cfg.Analysis.MaxItersBlock <= 0 {
		return fmt.Errorf("%w: analysis.max_iters_block must be positive, got %d",
			ErrInvalidConfig, cfg.Analysis.MaxItersBlock)
	}
	if len(cfg.Heuristic.CollectionTypes) == 0 {
		return fmt.Errorf("%w: heuristic.collection_types must not be empty",
			ErrInvalidConfig)
	}
	return nil
}
