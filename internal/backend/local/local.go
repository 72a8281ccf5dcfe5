// Package local implements the storage backend for a local directory.
//
// The root path given at open time is the base of the visible storage; all
// logical paths resolve below it. Directories and symlinks cannot be created
// but are visible through listing and GetObject; DeleteObject and
// WriteFileFromStream remove them (recursively in the directory case).
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cloudfiles/cloudfiles/internal/backend"
	"github.com/cloudfiles/cloudfiles/internal/backend/sema"
	"github.com/cloudfiles/cloudfiles/internal/debug"
	"github.com/cloudfiles/cloudfiles/internal/errors"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
	"github.com/cloudfiles/cloudfiles/internal/streams"
)

// Local is a backend in a local directory.
type Local struct {
	Config
	sem sema.Semaphore
}

// ensure statically that *Local implements backend.Backend.
var _ backend.Backend = &Local{}

// Open opens the local backend as specified by config. The configured path
// must be an existing directory.
func Open(_ context.Context, cfg Config) (*Local, error) {
	debug.Log("open local backend at %v", cfg.Path)

	fi, err := os.Lstat(cfg.Path)
	if err != nil {
		return nil, storage.InvalidSettings("root path cannot be accessed", err)
	}
	if !fi.IsDir() {
		return nil, storage.InvalidSettings("root path is not a directory", nil)
	}

	if cfg.Connections == 0 {
		cfg.Connections = NewConfig().Connections
	}
	sem, err := sema.New(cfg.Connections)
	if err != nil {
		return nil, err
	}

	return &Local{Config: cfg, sem: sem}, nil
}

// Kind returns the backend tag.
func (b *Local) Kind() backend.Kind {
	return backend.KindLocal
}

// resolve maps a logical path to the host path below the backend root.
func (b *Local) resolve(path objectpath.Path) (string, error) {
	if path.IsWindows() {
		return "", storage.InvalidPath(path, "windows-style paths are not supported")
	}
	if !path.IsAbsolute() && path.IsAboveBase() {
		return "", storage.InvalidPath(path, "path escapes the backend root")
	}
	return path.OSPath(b.Path), nil
}

func wrapError(err error, path objectpath.Path) error {
	if err == nil {
		return nil
	}
	// a path below a regular file does not exist either
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return storage.NotFound(path, err)
	}
	return storage.OtherError(path.String(), err)
}

func objectFor(path objectpath.Path, fi fs.FileInfo) storage.Object {
	switch {
	case fi.Mode().IsRegular():
		return storage.Object{Path: path, Type: storage.TypeFile, Size: uint64(fi.Size())}
	case fi.IsDir():
		return storage.Object{Path: path.AsDir(), Type: storage.TypeDirectory}
	case fi.Mode()&fs.ModeSymlink != 0:
		return storage.Object{Path: path, Type: storage.TypeSymlink}
	default:
		return storage.Object{Path: path, Type: storage.TypeUnknown}
	}
}

// ListObjects lists all objects below prefix, lazily and depth by depth.
// Subdirectory listings are merged into the stream as they are discovered.
func (b *Local) ListObjects(_ context.Context, prefix objectpath.Path) (backend.ObjectStream, error) {
	return b.lister(prefix.AsDir()), nil
}

// ListDirectory lists the objects one level below dir.
func (b *Local) ListDirectory(_ context.Context, dir objectpath.Path) (backend.ObjectStream, error) {
	return b.dirStream(dir.AsDir()), nil
}

// GetObject returns the object record at path, without following symlinks.
func (b *Local) GetObject(_ context.Context, path objectpath.Path) (storage.Object, error) {
	target, err := b.resolve(path)
	if err != nil {
		return storage.Object{}, err
	}

	fi, err := os.Lstat(target)
	if err != nil {
		return storage.Object{}, wrapError(err, path)
	}

	return objectFor(path, fi), nil
}

// GetFileStream opens the file at path and returns its body as a chunk
// stream. The stream holds a concurrency permit and the open file until it
// ends or is closed.
func (b *Local) GetFileStream(ctx context.Context, path objectpath.Path) (backend.ChunkStream, error) {
	target, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	permit, err := b.sem.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	fi, err := os.Lstat(target)
	if err != nil {
		permit.Release()
		return nil, wrapError(err, path)
	}
	if !fi.Mode().IsRegular() {
		permit.Release()
		return nil, storage.NotFound(path, nil)
	}

	f, err := os.Open(target)
	if err != nil {
		permit.Release()
		return nil, wrapError(err, path)
	}

	rs := streams.NewReaderStream(f, streams.DefaultInitialBufferSize, streams.DefaultMinimumBufferSize)
	return streams.After[[]byte](rs, func() {
		_ = rs.Close()
		permit.Release()
	}), nil
}

// DeleteObject removes the object at path. Directories are removed
// recursively: files first, then directories children before parents.
func (b *Local) DeleteObject(ctx context.Context, path objectpath.Path) error {
	target, err := b.resolve(path)
	if err != nil {
		return err
	}

	fi, err := os.Lstat(target)
	if err != nil {
		return wrapError(err, path)
	}

	if !fi.IsDir() {
		return wrapError(os.Remove(target), path)
	}

	return b.deleteDirectory(ctx, path.AsDir())
}

func (b *Local) deleteDirectory(ctx context.Context, dir objectpath.Path) error {
	debug.Log("delete directory %v", dir)

	all, err := streams.Collect[storage.Object](ctx, b.lister(dir))
	if err != nil {
		return err
	}

	wg, _ := errgroup.WithContext(ctx)
	wg.SetLimit(int(b.Connections))
	for _, obj := range all {
		if obj.Type == storage.TypeDirectory {
			continue
		}
		obj := obj
		wg.Go(func() error {
			target, err := b.resolve(obj.Path)
			if err != nil {
				return err
			}
			return wrapError(os.Remove(target), obj.Path)
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}

	// Children sort after their parents, so removing in reverse order
	// empties each directory before it is removed.
	dirs := all[:0]
	for _, obj := range all {
		if obj.Type == storage.TypeDirectory {
			dirs = append(dirs, obj)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Compare(dirs[j]) > 0 })

	for _, obj := range dirs {
		target, err := b.resolve(obj.Path)
		if err != nil {
			return err
		}
		if err := wrapError(os.Remove(target), obj.Path); err != nil {
			return err
		}
	}

	target, err := b.resolve(dir)
	if err != nil {
		return err
	}
	return wrapError(os.Remove(target), dir)
}

// WriteFileFromStream replaces whatever exists at path with a file built from
// the chunks of data. There is no atomic replace: a failed write leaves a
// partial file behind.
func (b *Local) WriteFileFromStream(ctx context.Context, path objectpath.Path, data backend.ChunkStream) error {
	target, err := b.resolve(path)
	if err != nil {
		return storage.TargetError(err)
	}

	permit, err := b.sem.Acquire(ctx)
	if err != nil {
		return storage.TargetError(err)
	}
	defer permit.Release()

	fi, err := os.Lstat(target)
	switch {
	case err == nil && fi.IsDir():
		if err := b.deleteDirectory(ctx, path.AsDir()); err != nil {
			return storage.TargetError(err)
		}
	case err == nil:
		if err := os.Remove(target); err != nil {
			return storage.TargetError(wrapError(err, path))
		}
	case !errors.Is(err, fs.ErrNotExist):
		return storage.TargetError(wrapError(err, path))
	}

	f, err := os.Create(target)
	if errors.Is(err, fs.ErrNotExist) {
		// the parent directory is missing, create it and retry
		if mkdirErr := os.MkdirAll(filepath.Dir(target), 0700); mkdirErr != nil {
			debug.Log("error creating dir for %v: %v", target, mkdirErr)
		} else {
			f, err = os.Create(target)
		}
	}
	if err != nil {
		return storage.TargetError(wrapError(err, path))
	}

	for {
		chunk, err := data.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			_ = f.Close()
			return storage.SourceError(err)
		}
		if _, err := f.Write(chunk); err != nil {
			_ = f.Close()
			return storage.TargetError(wrapError(err, path))
		}
	}

	// Ignore error if the filesystem does not support fsync.
	if err := f.Sync(); err != nil && !errors.Is(err, syscall.ENOTSUP) {
		_ = f.Close()
		return storage.TargetError(wrapError(err, path))
	}

	if err := f.Close(); err != nil {
		return storage.TargetError(wrapError(err, path))
	}
	return nil
}

// Close closes the backend. All open files are closed by their streams.
func (b *Local) Close() error {
	return nil
}
