// Package filestore provides the public access point to a storage backend.
// It validates paths before dispatch and supplies the generic copy and move
// operations.
package filestore

import (
	"context"

	"github.com/cloudfiles/cloudfiles/internal/backend"
	"github.com/cloudfiles/cloudfiles/internal/debug"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
)

// Store provides access to a storage backend. Stores are cheap to copy and
// safe for concurrent use; copies share the backend.
type Store struct {
	be backend.Backend
}

// New creates a Store for the given backend.
func New(be backend.Backend) *Store {
	return &Store{be: be}
}

// Kind returns the tag of the active backend.
func (s *Store) Kind() backend.Kind {
	return s.be.Kind()
}

// checkPath rejects paths that may not cross the public API boundary.
// Windows-prefix paths are a backend implementation detail and never legal
// here.
func checkPath(path objectpath.Path) error {
	if path.IsWindows() {
		return storage.InvalidPath(path, "windows-style paths are not supported")
	}
	return nil
}

// checkFilePath additionally rejects pure directory paths for operations that
// only make sense on files.
func checkFilePath(path objectpath.Path) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if path.IsDir() {
		return storage.InvalidPath(path, "expected a file path")
	}
	return nil
}

// ListObjects lists the objects whose rendered paths start with prefix, as
// the backend's ListObjects does. Any path without a windows prefix is
// accepted as a prefix.
func (s *Store) ListObjects(ctx context.Context, prefix objectpath.Path) (backend.ObjectStream, error) {
	if err := checkPath(prefix); err != nil {
		return nil, err
	}
	return s.be.ListObjects(ctx, prefix)
}

// ListDirectory lists the objects one level below dir.
func (s *Store) ListDirectory(ctx context.Context, dir objectpath.Path) (backend.ObjectStream, error) {
	if err := checkPath(dir); err != nil {
		return nil, err
	}
	return s.be.ListDirectory(ctx, dir.AsDir())
}

// GetObject returns the object record at path.
func (s *Store) GetObject(ctx context.Context, path objectpath.Path) (storage.Object, error) {
	if err := checkFilePath(path); err != nil {
		return storage.Object{}, err
	}
	return s.be.GetObject(ctx, path)
}

// GetFileStream returns the body of the file at path as a chunk stream.
// Closing the stream early releases the backend resources it holds.
func (s *Store) GetFileStream(ctx context.Context, path objectpath.Path) (backend.ChunkStream, error) {
	if err := checkFilePath(path); err != nil {
		return nil, err
	}
	return s.be.GetFileStream(ctx, path)
}

// DeleteObject removes the object at path.
func (s *Store) DeleteObject(ctx context.Context, path objectpath.Path) error {
	if err := checkFilePath(path); err != nil {
		return err
	}
	return s.be.DeleteObject(ctx, path)
}

// WriteFileFromStream replaces whatever is at path with a file built from
// data. All errors carry a transfer tag.
func (s *Store) WriteFileFromStream(ctx context.Context, path objectpath.Path, data backend.ChunkStream) error {
	if err := checkFilePath(path); err != nil {
		return storage.TargetError(err)
	}
	return s.be.WriteFileFromStream(ctx, path, data)
}

// CopyFile copies a file within the store by piping the source body into the
// target. All errors carry a transfer tag.
func (s *Store) CopyFile(ctx context.Context, source, target objectpath.Path) error {
	if err := checkFilePath(source); err != nil {
		return storage.SourceError(err)
	}
	if err := checkFilePath(target); err != nil {
		return storage.TargetError(err)
	}

	debug.Log("copy %v -> %v", source, target)

	data, err := s.be.GetFileStream(ctx, source)
	if err != nil {
		return storage.SourceError(err)
	}
	// release the source stream's resources even when the write fails early
	defer func() {
		_ = data.Close()
	}()

	return s.be.WriteFileFromStream(ctx, target, data)
}

// MoveFile copies a file within the store, then deletes the source. A failing
// delete is reported as a source error.
func (s *Store) MoveFile(ctx context.Context, source, target objectpath.Path) error {
	if err := s.CopyFile(ctx, source, target); err != nil {
		return err
	}

	debug.Log("move: removing source %v", source)

	if err := s.be.DeleteObject(ctx, source); err != nil {
		return storage.SourceError(err)
	}
	return nil
}

// Close releases the backend's resources.
func (s *Store) Close() error {
	return s.be.Close()
}
