package streams

import (
	"context"
	"io"

	"github.com/cloudfiles/cloudfiles/internal/errors"
)

// Merged combines a set of streams into a single stream. Sub-streams are
// scanned in order; once a sub-stream is exhausted it is dropped. Values from
// one sub-stream arrive in order, there is no ordering across sub-streams.
//
// Adding sub-streams after the merged stream has reported io.EOF makes it
// live again. Merged is not safe for concurrent use.
type Merged[T any] struct {
	streams []Stream[T]
}

// NewMerged creates an empty merged stream.
func NewMerged[T any]() *Merged[T] {
	return &Merged[T]{}
}

// Add appends a sub-stream to the set.
func (m *Merged[T]) Add(s Stream[T]) {
	m.streams = append(m.streams, s)
}

func (m *Merged[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for len(m.streams) > 0 {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		item, err := m.streams[0].Next(ctx)
		if err == io.EOF {
			m.streams = m.streams[1:]
			continue
		}
		if err != nil {
			return zero, err
		}
		return item, nil
	}
	return zero, io.EOF
}

func (m *Merged[T]) Close() error {
	var err error
	for _, s := range m.streams {
		err = errors.CombineErrors(err, s.Close())
	}
	m.streams = nil
	return err
}
