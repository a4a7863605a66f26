package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/calltree/internal/render"
)

func newViewCmd() *cobra.Command {
	var (
		sf sessionFlags
		vf viewFlags
	)
	cmd := &cobra.Command{
		Use:   "view <profile>...",
		Short: "Print a view of the calling context tree",
		Long: `Loads the profiles (one per thread), computes inclusive, exclusive and
percent values and prints one of the views.

Examples:
  # Top of the calling context tree
  calltree view cpu.pprof --depth 4

  # Bottom-up view sorted by one metric, as JSON
  calltree view cpu.pprof --view callers --metric 1 --format json

  # Flat view without runtime frames
  calltree view cpu.pprof --view flat --filter 'runtime.*'

  # Thread-level values averaged over threads 0 and 2
  calltree view t0.pprof t1.pprof t2.pprof --threads 0,2 --raw

  # A derived column
  calltree view cpu.pprof --derived 'ratio=$1 / 2.0'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if err := sf.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			vf.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			defer s.Close()

			rt, err := parseView(cfg.View.Default)
			if err != nil {
				return err
			}
			root, err := s.exp.ViewRoot(rt)
			if err != nil {
				return err
			}
			cols, sortBy, err := s.columns(cfg.View.Metric, vf.raw)
			if err != nil {
				return err
			}
			node, err := render.Collect(cmd.Context(), s.exp, root, render.Options{
				Metrics: cols,
				SortBy:  sortBy,
				Depth:   cfg.View.Depth,
				Percent: cfg.View.Percent,
			})
			if err != nil {
				return err
			}
			title := fmt.Sprintf("%s: %s view", s.exp.Name, rt)
			return write(cmd.OutOrStdout(), cfg.View.Format, title, node)
		},
	}
	cmd.Flags().AddFlagSet(sf.flagSet())
	cmd.Flags().AddFlagSet(vf.flagSet())
	registerCompletions(cmd)
	return cmd
}

// write prints node in format.
func write(w io.Writer, format, title string, node *render.Node) error {
	switch format {
	case FormatJSON:
		return render.JSON(w, node)
	case FormatMarkdown:
		return render.WriteMarkdown(w, render.Markdown(title, node))
	default:
		return render.Text(w, node)
	}
}
