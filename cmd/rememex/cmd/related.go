package cmd

import (
	"github.com/spf13/cobra"
)

func newRelatedCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "related <path>",
		Short: "Find files related to path by averaging its chunk vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			results, err := c.Related(ctx, args[0], flagContainer, opts.limit)
			if err != nil {
				return err
			}
			return renderSearchResults(cmd, args[0], results, opts.format)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}
