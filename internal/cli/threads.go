package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type threadRow struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func newThreadsCmd() *cobra.Command {
	var (
		sf     sessionFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "threads <profile>...",
		Short: "List the threads thread-level metrics can be resolved for",
		Long: `Lists the threads (ranks) recorded by the profiles. The ids are the values
accepted by --threads.

With --thread-store the thread-level data is written to a DuckDB database
and the list is read back from it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if err := sf.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			defer s.Close()

			labels, err := s.exp.RankLabels(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]threadRow, len(labels))
			for i, l := range labels {
				rows[i] = threadRow{ID: i, Label: l}
			}

			out := cmd.OutOrStdout()
			if format == FormatJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			selected := make(map[int]bool)
			for _, t := range s.exp.Threads() {
				selected[t] = true
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			if _, err := fmt.Fprintln(w, "ID\tLABEL\tSELECTED"); err != nil {
				return err
			}
			for _, r := range rows {
				mark := ""
				if selected[r.ID] {
					mark = "*"
				}
				if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Label, mark); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().AddFlagSet(sf.flagSet())
	cmd.Flags().StringVarP(&format, "format", "o", FormatText, "Output format (text, json)")
	registerCompletions(cmd)
	return cmd
}
