package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cmdStat = &cobra.Command{
	Use:   "stat [flags] PATH",
	Short: "Print the object record at a path",
	Long: `
The "stat" command prints the type, size and path of the object at PATH.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStat(cmd.Context(), globalOptions, args)
	},
}

func init() {
	cmdRoot.AddCommand(cmdStat)
}

func runStat(ctx context.Context, gopts GlobalOptions, args []string) error {
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

	obj, err := store.GetObject(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%v\n", obj)
	return nil
}
