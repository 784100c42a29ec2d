package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the active container's indexed roots and incrementally reindex on change",
		Long: `Starts the active container's file watcher in the foreground and
single-flights incremental reindexing of every create/modify/delete
event it sees, until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			// SetActiveContainer on the already-active container just
			// (re)starts its watcher -- the watch command's whole job.
			name := flagContainer
			if name == "" {
				for _, info := range c.ListContainers() {
					if info.Active {
						name = info.Name
						break
					}
				}
			}
			if err := c.SetActiveContainer(ctx, name); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "watching %q, press ctrl-c to stop\n", name)
			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "stopping watcher")
			return nil
		},
	}
	return cmd
}
