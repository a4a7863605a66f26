package config

import (
	"testing"
)

func TestLoadFromEnv_Config(t *testing.T) {
	envVars := map[string]string{
		"CALLTREE_LOG_LEVEL":         "debug",
		"CALLTREE_LOG_PRETTY":        "false",
		"CALLTREE_VIEW":              "flat",
		"CALLTREE_DEPTH":             "3",
		"CALLTREE_HOTPATH_THRESHOLD": "0.25",
		"CALLTREE_FILTER_PATTERNS":   "runtime.*, syscall.*",
		"CALLTREE_THREADS":           "0,2",
		"CALLTREE_THREAD_DSN":        "/tmp/threads.duckdb",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg := Default()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Pretty {
		t.Errorf("Logging.Pretty = %v, want false", cfg.Logging.Pretty)
	}
	if cfg.View.Default != "flat" {
		t.Errorf("View.Default = %q, want %q", cfg.View.Default, "flat")
	}
	if cfg.View.Depth != 3 {
		t.Errorf("View.Depth = %d, want 3", cfg.View.Depth)
	}
	if cfg.HotPath.Threshold != 0.25 {
		t.Errorf("HotPath.Threshold = %g, want 0.25", cfg.HotPath.Threshold)
	}
	if len(cfg.Filter.Patterns) != 2 || cfg.Filter.Patterns[1] != "syscall.*" {
		t.Errorf("Filter.Patterns = %v, want [runtime.* syscall.*]", cfg.Filter.Patterns)
	}
	if len(cfg.Threads.Selection) != 2 || cfg.Threads.Selection[1] != 2 {
		t.Errorf("Threads.Selection = %v, want [0 2]", cfg.Threads.Selection)
	}
	if cfg.ThreadStore.DSN != "/tmp/threads.duckdb" {
		t.Errorf("ThreadStore.DSN = %q", cfg.ThreadStore.DSN)
	}

	// untouched fields keep their defaults
	if cfg.View.Format != "text" {
		t.Errorf("View.Format = %q, want %q", cfg.View.Format, "text")
	}
}

func TestLoadFromEnv_EmptyValuesIgnored(t *testing.T) {
	t.Setenv("CALLTREE_VIEW", "")

	cfg := Default()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.View.Default != "cct" {
		t.Errorf("View.Default = %q, want %q", cfg.View.Default, "cct")
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "integer", key: "CALLTREE_DEPTH", value: "deep"},
		{name: "boolean", key: "CALLTREE_PERCENT", value: "maybe"},
		{name: "float", key: "CALLTREE_HOTPATH_THRESHOLD", value: "half"},
		{name: "slice element", key: "CALLTREE_THREADS", value: "0,one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := LoadFromEnv(Default()); err == nil {
				t.Errorf("LoadFromEnv() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_NonStruct(t *testing.T) {
	var n int
	if err := LoadFromEnv(&n); err != nil {
		t.Errorf("LoadFromEnv(*int) = %v, want nil", err)
	}
	if err := LoadFromEnv((*Config)(nil)); err != nil {
		t.Errorf("LoadFromEnv(nil) = %v, want nil", err)
	}
}
