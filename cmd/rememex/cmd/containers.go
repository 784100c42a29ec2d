package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newContainersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "containers",
		Aliases: []string{"container"},
		Short:   "Manage containers -- rememex's separately indexed, separately searched collections",
	}

	cmd.AddCommand(newContainersListCmd())
	cmd.AddCommand(newContainersCreateCmd())
	cmd.AddCommand(newContainersDeleteCmd())
	cmd.AddCommand(newContainersUseCmd())

	return cmd
}

func newContainersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configured container",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			w := cmd.OutOrStdout()
			for _, info := range c.ListContainers() {
				marker := " "
				if info.Active {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s\t%s\n", marker, info.Name, info.Description)
				for _, p := range info.Paths {
					fmt.Fprintf(w, "    %s\n", p)
				}
			}
			return nil
		},
	}
}

func newContainersCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new, empty container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.CreateContainer(args[0], description, ""); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created container %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Free-text description for the container")
	return cmd
}

func newContainersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a container and its storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.DeleteContainer(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted container %q\n", args[0])
			return nil
		},
	}
}

func newContainersUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Switch the active container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.SetActiveContainer(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active container is now %q\n", args[0])
			return nil
		},
	}
}
