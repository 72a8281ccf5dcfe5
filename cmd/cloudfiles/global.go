package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudfiles/cloudfiles/internal/backend"
	"github.com/cloudfiles/cloudfiles/internal/backend/b2"
	"github.com/cloudfiles/cloudfiles/internal/backend/local"
	"github.com/cloudfiles/cloudfiles/internal/backend/location"
	"github.com/cloudfiles/cloudfiles/internal/debug"
	"github.com/cloudfiles/cloudfiles/internal/errors"
	"github.com/cloudfiles/cloudfiles/internal/filestore"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
)

// GlobalOptions holds all global options for cloudfiles.
type GlobalOptions struct {
	Store string
	Quiet bool

	backend.TransportOptions
}

var globalOptions = GlobalOptions{
	Store: os.Getenv("CLOUDFILES_STORE"),
}

func init() {
	f := cmdRoot.PersistentFlags()
	f.StringVarP(&globalOptions.Store, "store", "s", globalOptions.Store, "storage location (default: $CLOUDFILES_STORE)")
	f.BoolVarP(&globalOptions.Quiet, "quiet", "q", false, "do not output non-essential messages")
	f.StringSliceVar(&globalOptions.RootCertFilenames, "cacert", nil, "`file` to load root certificates from (default: use system certificates)")
	f.StringVar(&globalOptions.TLSClientCertKeyFilename, "tls-client-cert", "", "path to a `file` containing PEM encoded TLS client certificate and private key")
	f.BoolVar(&globalOptions.InsecureTLS, "insecure-tls", false, "skip TLS certificate verification (insecure)")
}

// Printf writes a message to stdout unless quiet mode is active.
func Printf(format string, args ...interface{}) {
	if globalOptions.Quiet {
		return
	}
	fmt.Fprintf(os.Stdout, format, args...)
}

// Warnf writes a warning to stderr.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// openStore opens the store named by the global options.
func openStore(ctx context.Context, gopts GlobalOptions) (*filestore.Store, error) {
	if gopts.Store == "" {
		return nil, errors.Fatal("Please specify a store location (-s or $CLOUDFILES_STORE)")
	}

	loc, err := location.Parse(gopts.Store)
	if err != nil {
		return nil, err
	}

	debug.Log("opening %v store", loc.Scheme)

	var be backend.Backend
	switch cfg := loc.Config.(type) {
	case *local.Config:
		be, err = local.Open(ctx, *cfg)
	case *b2.Config:
		cfg.ApplyEnvironment()

		transport, terr := backend.Transport(gopts.TransportOptions)
		if terr != nil {
			return nil, terr
		}
		be, err = b2.Open(ctx, *cfg, transport)
	default:
		return nil, errors.Fatalf("unknown store scheme %q", loc.Scheme)
	}
	if err != nil {
		return nil, err
	}

	return filestore.New(be), nil
}

// parsePathArg parses a command line path argument.
func parsePathArg(arg string) (objectpath.Path, error) {
	path, err := objectpath.Parse(arg)
	if err != nil {
		return objectpath.Path{}, err
	}
	if !path.IsAbsolute() {
		// command line paths are relative to the store root
		path, err = objectpath.Root().Join(path)
		if err != nil {
			return objectpath.Path{}, err
		}
	}
	return path, nil
}
