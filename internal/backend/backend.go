// Package backend defines the contract that every storage backend implements.
package backend

import (
	"context"

	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
	"github.com/cloudfiles/cloudfiles/internal/streams"
)

// Kind identifies a backend implementation.
type Kind uint8

const (
	// KindLocal is the local-filesystem backend.
	KindLocal Kind = iota
	// KindB2 is the Backblaze B2 backend.
	KindB2
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "file"
	case KindB2:
		return "b2"
	default:
		return "unknown"
	}
}

// ObjectStream is a lazy stream of object records.
type ObjectStream = streams.Stream[storage.Object]

// ChunkStream is a stream of byte chunks making up a file body.
type ChunkStream = streams.Stream[[]byte]

// Backend is used to store and access objects.
//
// Paths reaching a backend have been validated by the file store: file
// operations never receive pure directory paths, and windows-prefix paths are
// rejected at the public boundary. Errors from WriteFileFromStream are tagged
// as storage.TransferError so that callers can tell a failing source stream
// from a failing target.
type Backend interface {
	// Kind returns the tag of the backend implementation.
	Kind() Kind

	// ListObjects returns a stream of objects whose rendered paths start
	// with prefix. Backends with physical directories walk prefix as a
	// directory, so objects that only share a string prefix with it are
	// not listed. The stream is lazy; callers must Close it when
	// abandoning it early.
	ListObjects(ctx context.Context, prefix objectpath.Path) (ObjectStream, error)

	// ListDirectory returns the objects one level below dir.
	ListDirectory(ctx context.Context, dir objectpath.Path) (ObjectStream, error)

	// GetObject returns the object record at path.
	GetObject(ctx context.Context, path objectpath.Path) (storage.Object, error)

	// GetFileStream returns the body of the file at path. The returned
	// stream holds backend resources (a concurrency permit, a file handle
	// or response body) until it ends or is closed.
	GetFileStream(ctx context.Context, path objectpath.Path) (ChunkStream, error)

	// DeleteObject removes the object at path. Backends with physical
	// directories remove directories recursively.
	DeleteObject(ctx context.Context, path objectpath.Path) error

	// WriteFileFromStream replaces whatever is at path with a file built
	// from the chunks of data, in stream order.
	WriteFileFromStream(ctx context.Context, path objectpath.Path, data ChunkStream) error

	// Close releases the backend's resources.
	Close() error
}
