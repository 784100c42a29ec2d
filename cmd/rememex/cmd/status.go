package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rememex/rememex/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status for the active (or --container) container",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			result, err := c.IndexStatus(flagContainer)
			if err != nil {
				return err
			}

			daemonRunning := daemon.NewClient(daemon.DefaultConfig()).IsRunning()

			if jsonOutput {
				type jsonStatus struct {
					Container     string   `json:"container"`
					DocumentCount int      `json:"document_count"`
					VectorCount   int      `json:"vector_count"`
					IndexedRoots  []string `json:"indexed_roots"`
					DaemonRunning bool     `json:"daemon_running"`
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(jsonStatus{
					Container:     result.Container,
					DocumentCount: result.DocumentCount,
					VectorCount:   result.VectorCount,
					IndexedRoots:  result.IndexedRoots,
					DaemonRunning: daemonRunning,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "container:   %s\n", result.Container)
			fmt.Fprintf(w, "documents:   %d\n", result.DocumentCount)
			fmt.Fprintf(w, "vectors:     %d\n", result.VectorCount)
			fmt.Fprintf(w, "daemon:      %t\n", daemonRunning)
			fmt.Fprintf(w, "indexed roots:\n")
			for _, root := range result.IndexedRoots {
				fmt.Fprintf(w, "  - %s\n", root)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
