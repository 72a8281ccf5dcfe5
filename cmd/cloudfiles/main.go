// Command cloudfiles accesses files stored on a local directory or in a
// Backblaze B2 bucket through one uniform interface.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cloudfiles/cloudfiles/internal/debug"
	"github.com/cloudfiles/cloudfiles/internal/errors"
	"github.com/cloudfiles/cloudfiles/internal/storage"
)

func init() {
	// don't import `go.uber.org/automaxprocs` to disable the log output
	_, _ = maxprocs.Set()
}

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "cloudfiles",
	Short: "Access files in local or cloud storage",
	Long: `
cloudfiles lists, reads, writes and removes files stored in a local directory
or in a Backblaze B2 bucket, addressed by logical paths.

The store is selected with --store (or $CLOUDFILES_STORE): either a local
directory ("file:/srv/data" or just "/srv/data"), or a B2 bucket
("b2:bucket[:prefix]") with credentials taken from $B2_ACCOUNT_ID and
$B2_ACCOUNT_KEY.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

func main() {
	debug.Log("main %#v", os.Args)

	err := cmdRoot.ExecuteContext(context.Background())

	switch {
	case err == nil:
		return
	case errors.IsFatal(err):
		fmt.Fprintln(os.Stderr, err)
	default:
		var terr *storage.TransferError
		if errors.As(err, &terr) {
			err = terr.Err
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		debug.Log("error: %+v", err)
	}

	os.Exit(1)
}
