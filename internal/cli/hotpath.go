package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/calltree/internal/render"
)

func newHotPathCmd() *cobra.Command {
	var (
		sf        sessionFlags
		vf        viewFlags
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "hotpath <profile>...",
		Short: "Follow the hot call path from the top of a view",
		Long: `Starting at the root of a view, repeatedly steps to the child with the
largest value of the selected metric while it keeps at least --threshold
of its parent's value.

Examples:
  calltree hotpath cpu.pprof
  calltree hotpath cpu.pprof --view callers --threshold 0.3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if err := sf.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			vf.apply(cmd.Flags(), cfg)
			if cmd.Flags().Changed("threshold") {
				cfg.HotPath.Threshold = threshold
			}
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
			if sortBy == nil {
				return fmt.Errorf("experiment has no metrics")
			}

			path, found, err := s.exp.HotPath(cmd.Context(), root, sortBy, cfg.HotPath.Threshold)
			if err != nil {
				return err
			}
			if !found {
				s.logger.Info().
					Str("metric", sortBy.DisplayName).
					Float64("threshold", cfg.HotPath.Threshold).
					Msg("No hot call path above threshold")
			}
			node := render.Path(cmd.Context(), s.exp, path, render.Options{
				Metrics: cols,
				Percent: cfg.View.Percent,
			})
			if node == nil {
				return nil
			}
			title := fmt.Sprintf("%s: hot path of %s", s.exp.Name, sortBy.DisplayName)
			return write(cmd.OutOrStdout(), cfg.View.Format, title, node)
		},
	}
	cmd.Flags().AddFlagSet(sf.flagSet())
	cmd.Flags().AddFlagSet(vf.flagSet())
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Fraction of the parent value a child must keep (default from config, 0.5)")
	registerCompletions(cmd)
	return cmd
}
