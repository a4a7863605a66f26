package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// Config represents the calltree configuration file.
type Config struct {
	Version     string            `yaml:"version"`
	Logging     LoggingConfig     `yaml:"logging"`
	View        ViewConfig        `yaml:"view"`
	HotPath     HotPathConfig     `yaml:"hot_path"`
	Aliases     map[string]string `yaml:"aliases,omitempty" jsonschema:"description=Procedure display aliases"`
	Filter      FilterConfig      `yaml:"filter"`
	Threads     ThreadsConfig     `yaml:"threads"`
	ThreadStore ThreadStoreConfig `yaml:"thread_store"`
	Derived     []DerivedMetric   `yaml:"derived,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CALLTREE_LOG_LEVEL" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Pretty bool   `yaml:"pretty" env:"CALLTREE_LOG_PRETTY"`
}

// ViewConfig selects what the view commands print by default.
type ViewConfig struct {
	Default string `yaml:"default" env:"CALLTREE_VIEW" jsonschema:"enum=cct,enum=callers,enum=flat"`
	// Metric is the short name of the metric to show and sort by; empty
	// selects the first inclusive metric.
	Metric  string `yaml:"metric,omitempty" env:"CALLTREE_METRIC"`
	Depth   int    `yaml:"depth" env:"CALLTREE_DEPTH" jsonschema:"minimum=0"`
	Percent bool   `yaml:"percent" env:"CALLTREE_PERCENT"`
	Format  string `yaml:"format" env:"CALLTREE_FORMAT" jsonschema:"enum=text,enum=json,enum=markdown"`
}

// HotPathConfig tunes hot call path detection.
type HotPathConfig struct {
	Threshold float64 `yaml:"threshold" env:"CALLTREE_HOTPATH_THRESHOLD" jsonschema:"minimum=0,maximum=1"`
}

// FilterConfig hides or shows scopes by name.
type FilterConfig struct {
	Patterns []string `yaml:"patterns,omitempty" env:"CALLTREE_FILTER_PATTERNS"`
	Mode     string   `yaml:"mode" env:"CALLTREE_FILTER_MODE" jsonschema:"enum=hide,enum=show"`
}

// ThreadsConfig is the default thread selection for thread-level metrics.
type ThreadsConfig struct {
	Selection []int `yaml:"selection,omitempty" env:"CALLTREE_THREADS"`
}

// ThreadStoreConfig locates the DuckDB thread database. An empty DSN keeps
// thread data in memory.
type ThreadStoreConfig struct {
	DSN string `yaml:"dsn,omitempty" env:"CALLTREE_THREAD_DSN"`
}

// DerivedMetric is a metric computed from other columns.
type DerivedMetric struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression" jsonschema:"description=Formula over metric columns referenced as $N"`
	Percent    bool   `yaml:"percent,omitempty"`
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
	}
	schema := reflector.Reflect(&Config{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
