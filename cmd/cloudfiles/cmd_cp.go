package main

import (
	"context"

	"github.com/spf13/cobra"
)

var cmdCp = &cobra.Command{
	Use:   "cp [flags] SOURCE TARGET",
	Short: "Copy a file within the store",
	Long: `
The "cp" command copies the file at SOURCE to TARGET within the same store.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCp(cmd.Context(), globalOptions, args)
	},
}

func init() {
	cmdRoot.AddCommand(cmdCp)
}

func runCp(ctx context.Context, gopts GlobalOptions, args []string) error {
	store, err := openStore(ctx, gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	source, err := parsePathArg(args[0])
	if err != nil {
		return err
	}
	target, err := parsePathArg(args[1])
	if err != nil {
		return err
	}

	return store.CopyFile(ctx, source, target)
}
