package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var since string
	var preview bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "List files changed since a point in time",
		Long: `Walks the container's primary root's git history back to --since and
reports which files changed, without touching the index itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			changes, err := c.Diff(since, flagContainer, preview)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(changes)
			}

			w := cmd.OutOrStdout()
			for _, ch := range changes {
				fmt.Fprintf(w, "%s  +%d -%d\n", ch.Path, ch.Additions, ch.Deletions)
				if preview && ch.Preview != "" {
					fmt.Fprintf(w, "    %s\n", ch.Preview)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "24h", "How far back to look: a non-negative integer with one unit suffix s, m, h, d or w (e.g. 24h, 7d)")
	cmd.Flags().BoolVar(&preview, "preview", false, "Include a short content preview per changed file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
