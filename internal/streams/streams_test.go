package streams_test

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"sort"
	"testing"

	"github.com/cloudfiles/cloudfiles/internal/streams"
	rtest "github.com/cloudfiles/cloudfiles/internal/test"
)

func TestFromSlice(t *testing.T) {
	ctx := context.Background()

	s := streams.FromSlice([]int{1, 2, 3})
	items, err := streams.Collect(ctx, s)
	rtest.OK(t, err)
	rtest.Equals(t, []int{1, 2, 3}, items)

	// A drained stream stays at io.EOF.
	_, err = s.Next(ctx)
	rtest.Equals(t, io.EOF, err)
}

func TestMergedMultisetUnion(t *testing.T) {
	ctx := context.Background()

	merged := streams.NewMerged[int]()
	var want []int
	for i := 0; i < 5; i++ {
		var items []int
		for j := 0; j < i*3; j++ {
			items = append(items, i*100+j)
			want = append(want, i*100+j)
		}
		merged.Add(streams.FromSlice(items))
	}

	got, err := streams.Collect(ctx, merged)
	rtest.OK(t, err)

	sort.Ints(got)
	sort.Ints(want)
	rtest.Equals(t, want, got)
}

func TestMergedRevive(t *testing.T) {
	ctx := context.Background()

	merged := streams.NewMerged[string]()
	merged.Add(streams.FromSlice([]string{"a"}))

	items, err := streams.Collect(ctx, merged)
	rtest.OK(t, err)
	rtest.Equals(t, []string{"a"}, items)

	_, err = merged.Next(ctx)
	rtest.Equals(t, io.EOF, err)

	// Adding a stream after exhaustion makes the merged stream live again.
	merged.Add(streams.FromSlice([]string{"b", "c"}))
	items, err = streams.Collect(ctx, merged)
	rtest.OK(t, err)
	rtest.Equals(t, []string{"b", "c"}, items)
}

func TestMergedSubStreamOrder(t *testing.T) {
	ctx := context.Background()

	merged := streams.NewMerged[int]()
	merged.Add(streams.FromSlice([]int{1, 2, 3}))
	merged.Add(streams.FromSlice([]int{10, 20, 30}))

	got, err := streams.Collect(ctx, merged)
	rtest.OK(t, err)

	// FIFO within each sub-stream.
	var small, large []int
	for _, v := range got {
		if v < 10 {
			small = append(small, v)
		} else {
			large = append(large, v)
		}
	}
	rtest.Equals(t, []int{1, 2, 3}, small)
	rtest.Equals(t, []int{10, 20, 30}, large)
}

func TestReaderStream(t *testing.T) {
	ctx := context.Background()

	source := make([]byte, 255*1024)
	rnd := rand.New(rand.NewSource(23))
	_, err := rnd.Read(source)
	rtest.OK(t, err)

	s := streams.NewReaderStream(bytes.NewReader(source), 64*1024, 16*1024)

	var chunks [][]byte
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		rtest.OK(t, err)
		rtest.Assert(t, len(chunk) > 0, "empty chunk emitted")
		chunks = append(chunks, chunk)
	}

	// The concatenation of all chunks equals the source, and chunks stay
	// intact after later reads reused fresh buffers.
	rtest.Equals(t, source, bytes.Join(chunks, nil))

	// After EOF the stream stays finished.
	_, err = s.Next(ctx)
	rtest.Equals(t, io.EOF, err)
}

func TestReaderStreamEmpty(t *testing.T) {
	ctx := context.Background()

	s := streams.NewReaderStream(bytes.NewReader(nil), 1024, 512)
	_, err := s.Next(ctx)
	rtest.Equals(t, io.EOF, err)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestReaderStreamClose(t *testing.T) {
	rec := &closeRecorder{Reader: bytes.NewReader([]byte("data"))}
	s := streams.NewReaderStream(rec, 1024, 512)
	rtest.OK(t, s.Close())
	rtest.Assert(t, rec.closed, "underlying reader not closed")
	rtest.OK(t, s.Close())

	_, err := s.Next(context.Background())
	rtest.Equals(t, io.EOF, err)
}

func TestAfterFiresOnceOnEOF(t *testing.T) {
	ctx := context.Background()

	count := 0
	s := streams.After(streams.FromSlice([]int{1}), func() { count++ })

	_, err := s.Next(ctx)
	rtest.OK(t, err)
	rtest.Equals(t, 0, count)

	_, err = s.Next(ctx)
	rtest.Equals(t, io.EOF, err)
	rtest.Equals(t, 1, count)

	// Further reads and closes do not re-fire the hook.
	_, err = s.Next(ctx)
	rtest.Equals(t, io.EOF, err)
	rtest.OK(t, s.Close())
	rtest.Equals(t, 1, count)
}

func TestAfterFiresOnClose(t *testing.T) {
	count := 0
	s := streams.After(streams.FromSlice([]int{1, 2, 3}), func() { count++ })

	_, err := s.Next(context.Background())
	rtest.OK(t, err)

	rtest.OK(t, s.Close())
	rtest.Equals(t, 1, count)
	rtest.OK(t, s.Close())
	rtest.Equals(t, 1, count)
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := streams.WriteTo(context.Background(), streams.FromSlice([][]byte{
		[]byte("hello "), []byte("world"),
	}), &buf)
	rtest.OK(t, err)
	rtest.Equals(t, int64(11), n)
	rtest.Equals(t, "hello world", buf.String())
}
