package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudfiles/cloudfiles/internal/streams"
)

var cmdPut = &cobra.Command{
	Use:   "put [flags] PATH",
	Short: "Write stdin to a file",
	Long: `
The "put" command reads stdin and writes it to the file at PATH, replacing
anything already stored there.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	Args:              cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPut(cmd.Context(), globalOptions, args)
	},
}

func init() {
	cmdRoot.AddCommand(cmdPut)
}

func runPut(ctx context.Context, gopts GlobalOptions, args []string) error {
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

	data := streams.NewReaderStream(os.Stdin, streams.DefaultInitialBufferSize, streams.DefaultMinimumBufferSize)
	return store.WriteFileFromStream(ctx, path, data)
}
