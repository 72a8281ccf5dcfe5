package streams

import (
	"context"
	"io"
)

// afterStream wraps a stream with a hook that fires exactly once when the
// inner stream ends or is closed, whichever comes first.
type afterStream[T any] struct {
	inner Stream[T]
	after func()
	fired bool
}

// After attaches fn to s. The hook runs exactly once: when Next returns
// io.EOF, or on Close when the stream is abandoned early.
func After[T any](s Stream[T], fn func()) Stream[T] {
	return &afterStream[T]{inner: s, after: fn}
}

func (s *afterStream[T]) fire() {
	if !s.fired {
		s.fired = true
		s.after()
	}
}

func (s *afterStream[T]) Next(ctx context.Context) (T, error) {
	item, err := s.inner.Next(ctx)
	if err == io.EOF {
		s.fire()
	}
	return item, err
}

func (s *afterStream[T]) Close() error {
	err := s.inner.Close()
	s.fire()
	return err
}
