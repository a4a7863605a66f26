package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/calltree/internal/config"
	"github.com/coral-mesh/calltree/internal/scope"
)

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

var (
	supportedFormats = []string{FormatText, FormatJSON, FormatMarkdown}
	supportedViews   = []string{"cct", "callers", "flat"}
)

// sessionFlags select how profiles are loaded and processed. Values set on
// the command line override the configuration.
type sessionFlags struct {
	threads    []int
	patterns   []string
	filterMode string
	derived    []string
	dsn        string
}

func (f *sessionFlags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("session", pflag.ContinueOnError)
	fs.IntSliceVarP(&f.threads, "threads", "t", nil, "Threads to resolve thread-level metrics for (mean of several)")
	fs.StringSliceVar(&f.patterns, "filter", nil, "Glob patterns of scope names to filter")
	fs.StringVar(&f.filterMode, "filter-mode", "", "Filter mode (hide, show)")
	fs.StringArrayVar(&f.derived, "derived", nil, `Derived metric "name=expression", columns referenced as $N`)
	fs.StringVar(&f.dsn, "thread-store", "", "DuckDB database for thread-level data (empty keeps it in memory)")
	return fs
}

func (f *sessionFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("threads") {
		cfg.Threads.Selection = f.threads
	}
	if fs.Changed("filter") {
		cfg.Filter.Patterns = f.patterns
	}
	if fs.Changed("filter-mode") {
		cfg.Filter.Mode = f.filterMode
	}
	if fs.Changed("thread-store") {
		cfg.ThreadStore.DSN = f.dsn
	}
	for _, d := range f.derived {
		name, expr, ok := strings.Cut(d, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid derived metric %q, want name=expression", d)
		}
		cfg.Derived = append(cfg.Derived, config.DerivedMetric{Name: name, Expression: expr})
	}
	return nil
}

// viewFlags select what a view command prints.
type viewFlags struct {
	view    string
	metric  string
	depth   int
	percent bool
	format  string
	raw     bool
}

func (f *viewFlags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("view", pflag.ContinueOnError)
	fs.StringVar(&f.view, "view", "", fmt.Sprintf("View to print (%s)", strings.Join(supportedViews, ", ")))
	fs.StringVarP(&f.metric, "metric", "m", "", "Metric short name or display name to show and sort by")
	fs.IntVarP(&f.depth, "depth", "d", 0, "Levels to print below the start scope (0 = unlimited)")
	fs.BoolVar(&f.percent, "percent", false, "Show percent annotations")
	fs.StringVarP(&f.format, "format", "o", "", fmt.Sprintf("Output format (%s)", strings.Join(supportedFormats, ", ")))
	fs.BoolVar(&f.raw, "raw", false, "Add thread-level columns for the selected threads")
	return fs
}

func (f *viewFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("view") {
		cfg.View.Default = f.view
	}
	if fs.Changed("metric") {
		cfg.View.Metric = f.metric
	}
	if fs.Changed("depth") {
		cfg.View.Depth = f.depth
	}
	if fs.Changed("percent") {
		cfg.View.Percent = f.percent
	}
	if fs.Changed("format") {
		cfg.View.Format = f.format
	}
}

// registerCompletions adds shell completion for the enumerated flags that
// cmd carries.
func registerCompletions(cmd *cobra.Command) {
	complete := func(name string, values []string) {
		if cmd.Flags().Lookup(name) == nil {
			return
		}
		_ = cmd.RegisterFlagCompletionFunc(name, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
	}
	complete("format", supportedFormats)
	complete("view", supportedViews)
	complete("filter-mode", []string{"hide", "show"})
}

// parseView maps a view name to its root type.
func parseView(name string) (scope.RootType, error) {
	switch name {
	case "cct", "":
		return scope.RootCallingContextTree, nil
	case "callers":
		return scope.RootCallerTree, nil
	case "flat":
		return scope.RootFlat, nil
	default:
		return 0, fmt.Errorf("unsupported view %q, must be one of: %s", name, strings.Join(supportedViews, ", "))
	}
}
