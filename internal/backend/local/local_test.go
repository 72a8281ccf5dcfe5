package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudfiles/cloudfiles/internal/backend/local"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
	"github.com/cloudfiles/cloudfiles/internal/streams"
	rtest "github.com/cloudfiles/cloudfiles/internal/test"
)

func openTestBackend(t *testing.T) (*local.Local, string) {
	t.Helper()

	root := t.TempDir()
	cfg := local.NewConfig()
	cfg.Path = root

	be, err := local.Open(context.Background(), cfg)
	rtest.OK(t, err)
	return be, root
}

func writeHostFile(t *testing.T, root string, name string, data []byte) {
	t.Helper()
	target := filepath.Join(root, filepath.FromSlash(name))
	rtest.OK(t, os.MkdirAll(filepath.Dir(target), 0700))
	rtest.OK(t, os.WriteFile(target, data, 0600))
}

func chunkStream(chunks ...string) streams.Stream[[]byte] {
	data := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		data = append(data, []byte(c))
	}
	return streams.FromSlice(data)
}

func readAll(t *testing.T, be *local.Local, path string) []byte {
	t.Helper()

	stream, err := be.GetFileStream(context.Background(), objectpath.MustParse(path))
	rtest.OK(t, err)
	defer func() {
		rtest.OK(t, stream.Close())
	}()

	var buf bytes.Buffer
	_, err = streams.WriteTo(context.Background(), stream, &buf)
	rtest.OK(t, err)
	return buf.Bytes()
}

func TestOpenNotADirectory(t *testing.T) {
	root := t.TempDir()
	writeHostFile(t, root, "file", []byte("x"))

	cfg := local.NewConfig()
	cfg.Path = filepath.Join(root, "file")

	_, err := local.Open(context.Background(), cfg)
	rtest.Equals(t, storage.KindInvalidSettings, storage.KindOf(err))
}

func TestSmallFileRoundTrip(t *testing.T) {
	be, _ := openTestBackend(t)
	ctx := context.Background()
	path := objectpath.MustParse("/t/a.txt")

	rtest.OK(t, be.WriteFileFromStream(ctx, path, chunkStream("hello ", "world")))
	rtest.Equals(t, "hello world", string(readAll(t, be, "/t/a.txt")))

	obj, err := be.GetObject(ctx, path)
	rtest.OK(t, err)
	rtest.Equals(t, storage.TypeFile, obj.Type)
	rtest.Equals(t, uint64(11), obj.Size)
}

func TestOverwriteDirectory(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	writeHostFile(t, root, "t/d/x", []byte("xx"))
	writeHostFile(t, root, "t/d/y", []byte("yy"))

	rtest.OK(t, be.WriteFileFromStream(ctx, objectpath.MustParse("/t/d"), chunkStream("data")))

	obj, err := be.GetObject(ctx, objectpath.MustParse("/t/d"))
	rtest.OK(t, err)
	rtest.Equals(t, storage.TypeFile, obj.Type)
	rtest.Equals(t, uint64(4), obj.Size)

	_, err = be.GetObject(ctx, objectpath.MustParse("/t/d/x"))
	rtest.Equals(t, storage.KindNotFound, storage.KindOf(err))
}

func TestRecursiveDelete(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	writeHostFile(t, root, "t/d/a", nil)
	writeHostFile(t, root, "t/d/b", nil)
	writeHostFile(t, root, "t/d/sub/c", nil)
	writeHostFile(t, root, "t/keep", nil)

	rtest.OK(t, be.DeleteObject(ctx, objectpath.MustParse("/t/d")))

	stream, err := be.ListObjects(ctx, objectpath.MustParse("/t/"))
	rtest.OK(t, err)
	objects, err := streams.Collect[storage.Object](ctx, stream)
	rtest.OK(t, err)

	rtest.Equals(t, 1, len(objects))
	rtest.Equals(t, "/t/keep", objects[0].Path.String())
}

func TestDeleteFile(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	writeHostFile(t, root, "t/a", []byte("a"))
	rtest.OK(t, be.DeleteObject(ctx, objectpath.MustParse("/t/a")))

	_, err := be.GetObject(ctx, objectpath.MustParse("/t/a"))
	rtest.Equals(t, storage.KindNotFound, storage.KindOf(err))

	err = be.DeleteObject(ctx, objectpath.MustParse("/t/a"))
	rtest.Equals(t, storage.KindNotFound, storage.KindOf(err))
}

func TestListOrdering(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	names := []string{"0foo", "1bar", "5diz", "bar", "daz", "foo", "hop", "yu"}
	for _, name := range names {
		writeHostFile(t, root, "t/dir2/"+name, nil)
	}

	stream, err := be.ListObjects(ctx, objectpath.MustParse("/t/dir2/"))
	rtest.OK(t, err)
	objects, err := streams.Collect[storage.Object](ctx, stream)
	rtest.OK(t, err)

	storage.SortObjects(objects)

	got := make([]string, 0, len(objects))
	for _, obj := range objects {
		rtest.Equals(t, storage.TypeFile, obj.Type)
		rtest.Equals(t, uint64(0), obj.Size)
		got = append(got, obj.Path.Filename())
	}
	rtest.Equals(t, names, got)
}

func TestListPrefix(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	writeHostFile(t, root, "t/a", nil)
	writeHostFile(t, root, "t/sub/b", nil)
	writeHostFile(t, root, "other/c", nil)

	prefix := objectpath.MustParse("/t/")
	stream, err := be.ListObjects(ctx, prefix)
	rtest.OK(t, err)
	objects, err := streams.Collect[storage.Object](ctx, stream)
	rtest.OK(t, err)

	// every object appears once and starts with the prefix
	seen := map[string]int{}
	for _, obj := range objects {
		rtest.Assert(t, obj.Path.HasPrefix(prefix), "object %v outside prefix %v", obj.Path, prefix)
		seen[obj.Path.String()]++
	}
	rtest.Equals(t, map[string]int{"/t/a": 1, "/t/sub/": 1, "/t/sub/b": 1}, seen)
}

func TestListDirectory(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	writeHostFile(t, root, "t/a", nil)
	writeHostFile(t, root, "t/sub/b", nil)

	stream, err := be.ListDirectory(ctx, objectpath.MustParse("/t/"))
	rtest.OK(t, err)
	objects, err := streams.Collect[storage.Object](ctx, stream)
	rtest.OK(t, err)
	storage.SortObjects(objects)

	rtest.Equals(t, 2, len(objects))
	rtest.Equals(t, "/t/a", objects[0].Path.String())
	rtest.Equals(t, "/t/sub/", objects[1].Path.String())
	rtest.Equals(t, storage.TypeDirectory, objects[1].Type)
}

func TestGetFileStreamNotFound(t *testing.T) {
	be, root := openTestBackend(t)
	ctx := context.Background()

	_, err := be.GetFileStream(ctx, objectpath.MustParse("/missing"))
	rtest.Equals(t, storage.KindNotFound, storage.KindOf(err))

	// a directory has no byte content
	writeHostFile(t, root, "d/x", nil)
	_, err = be.GetFileStream(ctx, objectpath.MustParse("/d"))
	rtest.Equals(t, storage.KindNotFound, storage.KindOf(err))
}

func TestWriteSourceError(t *testing.T) {
	be, _ := openTestBackend(t)
	ctx := context.Background()

	boom := storage.OtherError("stream broke", nil)
	data := streams.Error[[]byte](boom)

	err := be.WriteFileFromStream(ctx, objectpath.MustParse("/t/out"), data)
	side, ok := storage.TransferSideOf(err)
	rtest.Assert(t, ok, "missing transfer tag on %v", err)
	rtest.Equals(t, storage.SourceSide, side)
}

func TestPathEscapesRoot(t *testing.T) {
	be, _ := openTestBackend(t)
	ctx := context.Background()

	_, err := be.GetObject(ctx, objectpath.MustParse("../outside"))
	rtest.Equals(t, storage.KindInvalidPath, storage.KindOf(err))
}
