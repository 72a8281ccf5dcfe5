package sema_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudfiles/cloudfiles/internal/backend/sema"
	rtest "github.com/cloudfiles/cloudfiles/internal/test"
)

func TestNewZero(t *testing.T) {
	_, err := sema.New(0)
	rtest.Assert(t, err != nil, "expected error for zero capacity")
}

func TestLimitsConcurrency(t *testing.T) {
	ctx := context.Background()

	sem, err := sema.New(3)
	rtest.OK(t, err)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			permit, err := sem.Acquire(ctx)
			rtest.OK(t, err)
			defer permit.Release()

			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	rtest.Assert(t, maxActive <= 3, "more than 3 concurrent holders: %d", maxActive)
}

func TestReleaseIdempotent(t *testing.T) {
	ctx := context.Background()

	sem, err := sema.New(1)
	rtest.OK(t, err)

	permit, err := sem.Acquire(ctx)
	rtest.OK(t, err)
	permit.Release()
	permit.Release()

	// The single slot must be available again exactly once.
	permit, err = sem.Acquire(ctx)
	rtest.OK(t, err)
	permit.Release()
}

func TestAcquireCancelled(t *testing.T) {
	sem, err := sema.New(1)
	rtest.OK(t, err)

	permit, err := sem.Acquire(context.Background())
	rtest.OK(t, err)
	defer permit.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = sem.Acquire(ctx)
	rtest.Assert(t, err != nil, "expected context error")
}

func TestReleaseOnClose(t *testing.T) {
	ctx := context.Background()

	sem, err := sema.New(1)
	rtest.OK(t, err)

	permit, err := sem.Acquire(ctx)
	rtest.OK(t, err)

	rc := permit.ReleaseOnClose(io.NopCloser(strings.NewReader("body")))

	data, err := io.ReadAll(rc)
	rtest.OK(t, err)
	rtest.Equals(t, "body", string(data))
	rtest.OK(t, rc.Close())

	// The permit was returned by Close.
	permit, err = sem.Acquire(ctx)
	rtest.OK(t, err)
	permit.Release()
}
