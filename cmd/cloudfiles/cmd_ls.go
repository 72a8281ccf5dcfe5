package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
	"github.com/cloudfiles/cloudfiles/internal/streams"
)

var cmdLs = &cobra.Command{
	Use:   "ls [flags] [PREFIX]",
	Short: "List objects in the store",
	Long: `
The "ls" command lists the objects whose paths start with the given prefix,
or every object in the store when no prefix is given. On a local directory
store the prefix names a directory and only the objects below it are listed.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	Args:              cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLs(cmd.Context(), globalOptions, args)
	},
}

var lsSorted bool

func init() {
	cmdRoot.AddCommand(cmdLs)
	cmdLs.Flags().BoolVar(&lsSorted, "sort", false, "sort the listing by path")
}

func runLs(ctx context.Context, gopts GlobalOptions, args []string) error {
	store, err := openStore(ctx, gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	prefix := objectpath.Root()
	if len(args) == 1 {
		prefix, err = parsePathArg(args[0])
		if err != nil {
			return err
		}
	}

	stream, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	defer func() {
		_ = stream.Close()
	}()

	print := func(obj storage.Object) {
		fmt.Fprintf(os.Stdout, "%-8s%6d %s\n", obj.Type, obj.Size, obj.Path)
	}

	if lsSorted {
		objects, err := streams.Collect[storage.Object](ctx, stream)
		if err != nil {
			return err
		}
		storage.SortObjects(objects)
		for _, obj := range objects {
			print(obj)
		}
		return nil
	}

	for {
		obj, err := stream.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		print(obj)
	}
}
