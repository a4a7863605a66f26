package cli

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/calltree/internal/config"
	"github.com/coral-mesh/calltree/internal/logging"
	"github.com/coral-mesh/calltree/pkg/version"
)

// globals holds state resolved from the persistent flags before a command
// runs.
type globals struct {
	configPath string
	logLevel   string
	stats      bool

	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
}

var g = &globals{}

var rootCmd = &cobra.Command{
	Use:   "calltree",
	Short: "Calltree - calling context tree analysis for profiles",
	Long: `Load one or more pprof profiles (one per thread) into a calling context
tree and inspect it through three views:

- cct:     the calling context tree, top down
- callers: the bottom-up tree, expanded on demand
- flat:    one entry per procedure with loops and statements below

Every view carries inclusive, exclusive, percent and derived metric values.
Thread-level values can be averaged over a selection of threads.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !g.stats {
			return nil
		}
		return writeStats(cmd.ErrOrStderr(), g.registry)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "Config file (default $CALLTREE_CONFIG or ~/.config/calltree/config.yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&g.stats, "stats", false, "Print pipeline statistics to stderr on exit")

	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newHotPathCmd())
	rootCmd.AddCommand(newThreadsCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// setup loads the configuration and builds the logger and the metrics
// registry shared by the command.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	g.cfg = cfg
	g.logger = logging.NewWithComponent(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	}, cmd.Name())
	g.registry = prometheus.NewRegistry()
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("Calltree version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
		},
	}
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
