package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a folder into the active container",
		Long: `Index walks path, chunks every eligible file, embeds the chunks, and
adds them to the active container's search index.

The root is remembered: a later 'rememex reindex' re-walks every root
the container has been given, not just the most recent one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.IndexFolder(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files from %s\n", n, args[0])
			return nil
		},
	}
	return cmd
}

func newReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-index every root already recorded for the active container",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.ReindexAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reindex complete")
			return nil
		},
	}
	return cmd
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the active container's index",
		Long:  `Clears the active container's table and annotation store, leaving its indexed roots recorded so a subsequent 'rememex reindex' repopulates it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.ResetIndex(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "index reset")
			return nil
		},
	}
	return cmd
}

func newCompactCmd() *cobra.Command {
	var threshold float64
	var minCount int

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Purge orphaned vector/FTS index entries for the active container",
		Long: `Removes vector and full-text index entries left behind by interrupted
writes -- entries with no backing row. Runs only if the orphan ratio
clears --threshold and there are at least --min-count of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			name := flagContainer
			status, err := c.IndexStatus(name)
			if err != nil {
				return err
			}

			removed, err := c.CompactContainer(ctx, status.Container, threshold, minCount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphan entries from %q\n", removed, status.Container)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.2, "Orphan ratio required before compaction runs")
	cmd.Flags().IntVar(&minCount, "min-count", 100, "Minimum number of orphans required before compaction runs")

	return cmd
}
