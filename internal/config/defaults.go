package config

const (
	// DefaultHotPathThreshold is the fraction of its parent a child must
	// reach to stay on the hot path.
	DefaultHotPathThreshold = 0.5
	// DefaultDepth limits printed trees.
	DefaultDepth = 8
)

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: SchemaVersion,
		Logging: LoggingConfig{
			Level:  "warn",
			Pretty: true,
		},
		View: ViewConfig{
			Default: "cct",
			Depth:   DefaultDepth,
			Percent: true,
			Format:  "text",
		},
		HotPath: HotPathConfig{
			Threshold: DefaultHotPathThreshold,
		},
		Aliases: map[string]string{},
		Filter: FilterConfig{
			Mode: "hide",
		},
	}
}
