package cli

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/calltree/internal/cli/browse"
	"github.com/coral-mesh/calltree/internal/scope"
)

func newBrowseCmd() *cobra.Command {
	var (
		sf sessionFlags
		vf viewFlags
	)
	cmd := &cobra.Command{
		Use:   "browse <profile>...",
		Short: "Browse the views interactively",
		Long: `Opens an interactive tree browser. Scopes expand on demand, tab cycles
through the calling context, callers and flat views and f follows the hot
call path below the cursor.`,
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

			first, err := parseView(cfg.View.Default)
			if err != nil {
				return err
			}
			views := []scope.RootType{scope.RootCallingContextTree, scope.RootCallerTree, scope.RootFlat}
			i := slices.Index(views, first)
			views = append(slices.Clone(views[i:]), views[:i]...)

			cols, sortBy, err := s.columns(cfg.View.Metric, vf.raw)
			if err != nil {
				return err
			}
			model, err := browse.NewModel(cmd.Context(), s.exp, browse.Options{
				Views:     views,
				Metrics:   cols,
				SortBy:    sortBy,
				Threshold: cfg.HotPath.Threshold,
				Percent:   cfg.View.Percent,
			})
			if err != nil {
				return err
			}
			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
				return fmt.Errorf("browse: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().AddFlagSet(sf.flagSet())
	cmd.Flags().AddFlagSet(vf.flagSet())
	registerCompletions(cmd)
	return cmd
}
