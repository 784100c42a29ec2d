package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Attach and browse searchable notes on indexed files",
	}
	cmd.AddCommand(newAnnotateAddCmd())
	cmd.AddCommand(newAnnotateListCmd())
	cmd.AddCommand(newAnnotateRemoveCmd())
	return cmd
}

func newAnnotateAddCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "add <path> <note>",
		Short: "Attach a note to path, embedding it so it's searchable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ann, err := c.AddAnnotation(ctx, args[0], args[1], source, flagContainer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added annotation %s to %s\n", ann.ID, ann.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "manual", "Who/what added the annotation")
	return cmd
}

func newAnnotateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List annotations on path, or every annotation in the container if omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			annotations, err := c.ListAnnotations(ctx, path, flagContainer)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, a := range annotations {
				fmt.Fprintf(w, "%s  %s  %s\n", a.ID, a.Path, a.Note)
			}
			return nil
		},
	}
}

func newAnnotateRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an annotation by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.DeleteAnnotation(ctx, args[0], flagContainer); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted annotation %s\n", args[0])
			return nil
		},
	}
}
