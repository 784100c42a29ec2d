package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rememex/rememex/internal/daemon"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run rememex as a background search service over a Unix socket",
	}
	cmd.AddCommand(newDaemonServeCmd())
	cmd.AddCommand(newDaemonPingCmd())
	return cmd
}

func newDaemonServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon in the foreground",
		Long: `Opens the active container once and keeps it resident, so repeated
searches sent over its socket don't pay embedder startup cost every
time. 'rememex search' does not go through the daemon: it always opens
the container itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, root, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			daemonCfg := daemon.DefaultConfig()
			if err := daemonCfg.EnsureDir(); err != nil {
				return err
			}

			srv, err := daemon.NewServer(daemonCfg.SocketPath)
			if err != nil {
				return err
			}

			handler := &daemon.CoreHandler{Core: c, EmbedderModel: cfg.EmbeddingModel}
			if cfg.Compaction.Enabled {
				handler.Compaction = daemon.NewCompactionManager(c, cfg.Compaction)
			}
			srv.SetHandler(handler)

			pidFile := daemon.NewPIDFile(daemonCfg.PIDPath)
			if err := pidFile.Write(); err != nil {
				slog.Warn("failed to write PID file", slog.String("error", err.Error()))
			}
			defer func() { _ = pidFile.Remove() }()

			fmt.Fprintf(cmd.OutOrStdout(), "daemon listening on %s\n", daemonCfg.SocketPath)
			err = srv.ListenAndServe(ctx)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newDaemonPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether the daemon is running and responsive",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := daemon.NewClient(daemon.DefaultConfig())
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "daemon is running")
			return nil
		},
	}
}
