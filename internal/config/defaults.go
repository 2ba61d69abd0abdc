package config

// DefaultConfig returns configuration with sensible defaults. These
// defaults are used when no config file exists or when the config file is
// missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			InputFormat: "apk",
			CachePath:   "",
		},
		Analysis: AnalysisConfig{
			// spec §4.6 "Termination bounds"
			MaxIter:       5000,
			MaxItersBlock: 30,
		},
		Heuristic: HeuristicConfig{
			CollectionTypes: []string{
				"java.util.List",
				"java.util.LinkedList",
			},
		},
	}
}

// Merge merges loaded config with defaults. Values from loaded config take
// precedence over defaults. Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}
	result.Project = mergeProjectConfig(loaded.Project, defaults.Project)
	result.Analysis = mergeAnalysisConfig(loaded.Analysis, defaults.Analysis)
	result.Heuristic = mergeHeuristicConfig(loaded.Heuristic, defaults.Heuristic)
	return result
}

func mergeProjectConfig(loaded, defaults ProjectConfig) ProjectConfig {
	result := loaded
	if result.InputFormat == "" {
		result.InputFormat = defaults.InputFormat
	}
	return result
}

func mergeAnalysisConfig(loaded, defaults AnalysisConfig) AnalysisConfig {
	result := loaded
	if result.MaxIter == 0 {
		result.MaxIter = defaults.MaxIter
	}
	if result.MaxItersBlock == 0 {
		result.MaxItersBlock = defaults.MaxItersBlock
	}
	return result
}

func mergeHeuristicConfig(loaded, defaults HeuristicConfig) HeuristicConfig {
	result := loaded
	if len(result.CollectionTypes) == 0 {
		result.CollectionTypes = defaults.CollectionTypes
	}
	return result
}
