package config

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/calltree/internal/metric"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !oneOf(c.Logging.Level, "trace", "debug", "info", "warn", "error") {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	if !oneOf(c.View.Default, "cct", "callers", "flat") {
		add("view.default", "view must be 'cct', 'callers' or 'flat'")
	}
	if !oneOf(c.View.Format, "text", "json", "markdown") {
		add("view.format", "format must be 'text', 'json' or 'markdown'")
	}
	if c.View.Depth < 0 {
		add("view.depth", "depth cannot be negative")
	}
	if c.HotPath.Threshold < 0 || c.HotPath.Threshold > 1 {
		add("hot_path.threshold", "threshold must be within [0, 1], got %g", c.HotPath.Threshold)
	}
	if !oneOf(c.Filter.Mode, "hide", "show") {
		add("filter.mode", "mode must be 'hide' or 'show'")
	}
	for i, t := range c.Threads.Selection {
		if t < 0 {
			add(fmt.Sprintf("threads.selection[%d]", i), "thread id cannot be negative")
		}
	}
	for i, d := range c.Derived {
		field := fmt.Sprintf("derived[%d]", i)
		if d.Name == "" {
			add(field+".name", "name is required")
		}
		if _, err := metric.CompileExpression(d.Expression); err != nil {
			add(field+".expression", "%v", err)
		}
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}
