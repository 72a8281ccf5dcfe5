package main

import (
	"context"

	"github.com/spf13/cobra"
)

var cmdRm = &cobra.Command{
	Use:   "rm [flags] PATH",
	Short: "Remove an object",
	Long: `
The "rm" command removes the object at PATH. On backends with physical
directories a directory is removed together with its contents.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRm(cmd.Context(), globalOptions, args)
	},
}

func init() {
	cmdRoot.AddCommand(cmdRm)
}

func runRm(ctx context.Context, gopts GlobalOptions, args []string) error {
	store, err := openStore(ctx, gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	path, err := parsePathArg(args[0])
	if err != nil {
		return err
	}

	return store.DeleteObject(ctx, path)
}
