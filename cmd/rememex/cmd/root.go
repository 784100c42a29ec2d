// Package cmd provides the CLI commands for rememex.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rememex/rememex/internal/core"
	"github.com/rememex/rememex/internal/logging"
	"github.com/rememex/rememex/internal/ui"
	"github.com/rememex/rememex/pkg/version"
)

var (
	flagDataDir   string
	flagContainer string
	flagDebug     bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the rememex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rememex",
		Short: "Local-first hybrid code search",
		Long: `rememex indexes a codebase into a hybrid BM25 + semantic search
index and lets you query it from the command line.

It runs entirely locally: no code ever leaves the machine.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("rememex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the store directory (default: <project root>/.rememex)")
	cmd.PersistentFlags().StringVar(&flagContainer, "container", "", "Container to operate on (default: the active container)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging to ~/.rememex/logs/")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newContainersCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newRelatedCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupLogging enables debug file logging when --debug is passed.
func setupLogging(*cobra.Command, []string) error {
	if !flagDebug {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// openCore resolves the project root, loads its config, and constructs a
// *core.Core wired to write config mutations back to that project's
// config file -- the construction path every command drives, the same
// way internal/daemon/server.go's CoreHandler drives one for the daemon
// transport.
func openCore(ctx context.Context) (*core.Core, string, error) {
	root, err := findProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}

	dataDir := flagDataDir
	if dataDir == "" {
		dataDir = filepath.Join(root, dataDirName)
	}

	var out io.Writer = os.Stderr
	renderer := ui.NewRenderer(ui.NewConfig(out, ui.WithProjectDir(root)))

	c, err := core.New(ctx, core.Options{
		DataDir:   dataDir,
		ModelsDir: filepath.Join(dataDir, "models"),
		Config:    cfg,
		Persist:   persister(root),
		Renderer:  renderer,
	})
	if err != nil {
		return nil, "", err
	}

	if flagContainer != "" {
		if err := c.SetActiveContainer(ctx, flagContainer); err != nil {
			_ = c.Close()
			return nil, "", err
		}
	}

	return c, root, nil
}
