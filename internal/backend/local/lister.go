package local

import (
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/cloudfiles/cloudfiles/internal/backend"
	"github.com/cloudfiles/cloudfiles/internal/errors"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
	"github.com/cloudfiles/cloudfiles/internal/streams"
)

// readDirBatchSize bounds how many directory entries are read at once, so
// that listing huge directories stays lazy.
const readDirBatchSize = 128

// dirStream lists a single directory lazily. The directory is opened on the
// first Next call and entries are read in batches.
type dirStream struct {
	be      *Local
	dir     objectpath.Path
	file    *os.File
	batch   []os.DirEntry
	started bool
	done    bool
}

func (b *Local) dirStream(dir objectpath.Path) *dirStream {
	return &dirStream{be: b, dir: dir}
}

func (s *dirStream) Next(ctx context.Context) (storage.Object, error) {
	if s.done {
		return storage.Object{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}

	if !s.started {
		s.started = true
		target, err := s.be.resolve(s.dir)
		if err != nil {
			s.done = true
			return storage.Object{}, err
		}
		f, err := os.Open(target)
		if err != nil {
			s.done = true
			return storage.Object{}, wrapError(err, s.dir)
		}
		s.file = f
	}

	for {
		if len(s.batch) == 0 {
			batch, err := s.file.ReadDir(readDirBatchSize)
			if len(batch) == 0 {
				s.done = true
				closeErr := s.file.Close()
				s.file = nil
				if err != nil && err != io.EOF {
					return storage.Object{}, wrapError(err, s.dir)
				}
				if closeErr != nil {
					return storage.Object{}, wrapError(closeErr, s.dir)
				}
				return storage.Object{}, io.EOF
			}
			s.batch = batch
		}

		entry := s.batch[0]
		s.batch = s.batch[1:]

		// The entry info has lstat semantics: symlinks are reported,
		// not followed.
		fi, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// the entry vanished between the read and the stat
				continue
			}
			return storage.Object{}, wrapError(err, s.dir)
		}

		var path objectpath.Path
		if fi.IsDir() {
			path = s.dir.PushDir(entry.Name())
		} else {
			path = s.dir.WithFilename(entry.Name())
		}

		return objectFor(path, fi), nil
	}
}

func (s *dirStream) Close() error {
	s.done = true
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// lister walks a directory tree. Every directory record that passes through
// enqueues a listing of that directory into the merged stream, so at most one
// directory read is outstanding per tree node.
type lister struct {
	be     *Local
	merged *streams.Merged[storage.Object]
}

var _ backend.ObjectStream = &lister{}

func (b *Local) lister(dir objectpath.Path) *lister {
	l := &lister{be: b, merged: streams.NewMerged[storage.Object]()}
	l.merged.Add(b.dirStream(dir))
	return l
}

func (l *lister) Next(ctx context.Context) (storage.Object, error) {
	obj, err := l.merged.Next(ctx)
	if err != nil {
		return storage.Object{}, err
	}

	if obj.Type == storage.TypeDirectory {
		l.merged.Add(l.be.dirStream(obj.Path))
	}

	return obj, nil
}

func (l *lister) Close() error {
	return l.merged.Close()
}
