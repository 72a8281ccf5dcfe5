// Package sema implements the counted semaphore that limits concurrent
// backend operations.
package sema

import (
	"context"
	"io"

	"github.com/cloudfiles/cloudfiles/internal/errors"
)

// A Semaphore limits access to a restricted resource. Copies share state.
type Semaphore struct {
	ch chan struct{}
}

// New returns a new semaphore with capacity n.
func New(n uint) (Semaphore, error) {
	if n == 0 {
		return Semaphore{}, errors.New("capacity must be a positive number")
	}
	return Semaphore{
		ch: make(chan struct{}, n),
	}, nil
}

// Acquire blocks until a permit is available or the context is cancelled.
func (s Semaphore) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case s.ch <- struct{}{}:
		return &Permit{sem: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// A Permit is a single slot in the semaphore, held for the duration of one
// in-flight operation. Release returns the slot and is idempotent.
type Permit struct {
	sem      Semaphore
	released bool
}

// Release returns the permit to the semaphore.
func (p *Permit) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	<-p.sem.ch
}

// ReleaseOnClose wraps an io.ReadCloser to release the permit on Close.
func (p *Permit) ReleaseOnClose(rc io.ReadCloser) io.ReadCloser {
	return &wrapReader{ReadCloser: rc, permit: p}
}

type wrapReader struct {
	io.ReadCloser
	eofSeen bool
	permit  *Permit
}

func (wr *wrapReader) Read(b []byte) (int, error) {
	if wr.eofSeen {
		return 0, io.EOF
	}

	n, err := wr.ReadCloser.Read(b)
	if err == io.EOF {
		wr.eofSeen = true
	}
	return n, err
}

func (wr *wrapReader) Close() error {
	err := wr.ReadCloser.Close()
	wr.permit.Release()
	return err
}
