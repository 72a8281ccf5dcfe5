package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudfiles/cloudfiles/internal/errors"
	"github.com/cloudfiles/cloudfiles/internal/streams"
)

var cmdCat = &cobra.Command{
	Use:   "cat [flags] PATH",
	Short: "Print a file to stdout",
	Long: `
The "cat" command streams the content of the file at PATH to stdout.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCat(cmd.Context(), globalOptions, args)
	},
}

func init() {
	cmdRoot.AddCommand(cmdCat)
}

func runCat(ctx context.Context, gopts GlobalOptions, args []string) error {
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

	stream, err := store.GetFileStream(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		_ = stream.Close()
	}()

	if _, err := streams.WriteTo(ctx, stream, os.Stdout); err != nil {
		return errors.Wrap(err, "writing to stdout")
	}
	return nil
}
