// Package b2 implements the storage backend for Backblaze B2. The HTTP
// client, session handling and upload orchestration live in client.go; this
// file maps the backend contract onto the API calls.
package b2

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"strings"

	"github.com/cloudfiles/cloudfiles/internal/backend"
	"github.com/cloudfiles/cloudfiles/internal/debug"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
)

// Billing happens in 1000 item granularity, but we are more interested in
// reducing the number of network round trips.
const defaultListMaxItems = 10 * 1000

const defaultContentType = "b2/x-auto"

// B2 is a backend which stores its data in a Backblaze B2 bucket.
type B2 struct {
	cfg          Config
	client       *client
	listMaxItems int
}

// ensure statically that *B2 implements backend.Backend.
var _ backend.Backend = &B2{}

// Open opens a connection to the B2 service. The session is authorized lazily
// on the first call that needs it.
func Open(_ context.Context, cfg Config, rt http.RoundTripper) (*B2, error) {
	debug.Log("open b2 backend for bucket %v", cfg.Bucket)

	if err := checkBucketName(cfg.Bucket); err != nil {
		return nil, storage.InvalidSettings(err.Error(), nil)
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Connections == 0 {
		cfg.Connections = NewConfig().Connections
	}
	if cfg.SmallFileLimit == 0 {
		cfg.SmallFileLimit = NewConfig().SmallFileLimit
	}

	client, err := newClient(cfg, rt)
	if err != nil {
		return nil, err
	}

	return &B2{
		cfg:          cfg,
		client:       client,
		listMaxItems: defaultListMaxItems,
	}, nil
}

// Kind returns the backend tag.
func (b *B2) Kind() backend.Kind {
	return backend.KindB2
}

// fileName maps a logical path to the object name within the bucket.
func (b *B2) fileName(path objectpath.Path) string {
	name := strings.TrimPrefix(path.String(), "/")
	if b.cfg.Prefix != "" {
		name = b.cfg.Prefix + "/" + name
	}
	return name
}

// pathForName maps an object name back to a logical path.
func (b *B2) pathForName(name string) (objectpath.Path, error) {
	if b.cfg.Prefix != "" {
		name = strings.TrimPrefix(name, b.cfg.Prefix+"/")
	}
	return objectpath.Parse("/" + name)
}

func objectForFile(path objectpath.Path, file fileInfo) storage.Object {
	switch file.Action {
	case actionUpload:
		return storage.Object{Path: path, Type: storage.TypeFile, Size: file.ContentLength}
	case actionFolder:
		return storage.Object{Path: path.AsDir(), Type: storage.TypeDirectory}
	default:
		return storage.Object{Path: path, Type: storage.TypeUnknown}
	}
}

// ListObjects lists the objects whose names start with prefix, flattening the
// paginated b2_list_file_names calls into a lazy stream.
func (b *B2) ListObjects(_ context.Context, prefix objectpath.Path) (backend.ObjectStream, error) {
	name := strings.TrimSuffix(b.fileName(prefix), "/")
	if prefix.IsDir() && name != "" {
		name += "/"
	}
	return &listStream{be: b, path: prefix, prefix: name}, nil
}

// ListDirectory lists one level below dir using the delimiter form of
// b2_list_file_names; folders come back as directory records.
func (b *B2) ListDirectory(_ context.Context, dir objectpath.Path) (backend.ObjectStream, error) {
	name := strings.TrimSuffix(b.fileName(dir.AsDir()), "/")
	if name != "" {
		name += "/"
	}
	return &listStream{be: b, path: dir, prefix: name, delimiter: "/"}, nil
}

// GetObject looks up the object record for path.
func (b *B2) GetObject(ctx context.Context, path objectpath.Path) (storage.Object, error) {
	bucketID, err := b.client.resolveBucketID(ctx)
	if err != nil {
		return storage.Object{}, err
	}

	name := b.fileName(path)

	var resp listFileNamesResponse
	err = b.client.call(ctx, "b2_list_file_names", path, listFileNamesRequest{
		BucketID:      bucketID,
		StartFileName: name,
		Prefix:        name,
		MaxFileCount:  1,
	}, &resp)
	if err != nil {
		return storage.Object{}, err
	}

	if len(resp.Files) == 0 || resp.Files[0].FileName != name {
		return storage.Object{}, storage.NotFound(path, nil)
	}
	return objectForFile(path, resp.Files[0]), nil
}

// GetFileStream downloads the file at path. The returned stream holds a
// concurrency permit until the body completes or the stream is closed.
func (b *B2) GetFileStream(ctx context.Context, path objectpath.Path) (backend.ChunkStream, error) {
	return b.client.download(ctx, path, b.cfg.Bucket, b.fileName(path))
}

// DeleteObject removes every version of the file at path.
func (b *B2) DeleteObject(ctx context.Context, path objectpath.Path) error {
	bucketID, err := b.client.resolveBucketID(ctx)
	if err != nil {
		return err
	}

	name := b.fileName(path)

	var versions []fileInfo
	startName, startID := name, ""
	for {
		var resp listFileVersionsResponse
		err := b.client.call(ctx, "b2_list_file_versions", path, listFileVersionsRequest{
			BucketID:      bucketID,
			StartFileName: startName,
			StartFileID:   startID,
			Prefix:        name,
			MaxFileCount:  b.listMaxItems,
		}, &resp)
		if err != nil {
			return err
		}

		for _, file := range resp.Files {
			if file.FileName == name {
				versions = append(versions, file)
			}
		}

		if resp.NextFileName == "" || resp.NextFileName != name {
			break
		}
		startName, startID = resp.NextFileName, resp.NextFileID
	}

	if len(versions) == 0 {
		return storage.NotFound(path, nil)
	}

	for _, version := range versions {
		var resp deleteFileVersionResponse
		err := b.client.call(ctx, "b2_delete_file_version", path, deleteFileVersionRequest{
			FileName: version.FileName,
			FileID:   version.FileID,
		}, &resp)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteFileFromStream uploads a file built from the chunks of data. Bodies up
// to the small-file limit go up in a single request; anything larger uses the
// large-file API with one part per recommended part size. The SHA-1 checksums
// B2 requires are computed incrementally as chunks are buffered.
func (b *B2) WriteFileFromStream(ctx context.Context, path objectpath.Path, data backend.ChunkStream) error {
	bucketID, err := b.client.resolveBucketID(ctx)
	if err != nil {
		return storage.TargetError(err)
	}

	name := b.fileName(path)

	var (
		buffered [][]byte
		total    uint64
		bodyHash = sha1.New()
	)

	for {
		chunk, err := data.Next(ctx)
		if err == io.EOF {
			// the whole body fit under the limit
			return b.uploadSmall(ctx, path, bucketID, name, buffered, total, bodyHash)
		}
		if err != nil {
			return storage.SourceError(err)
		}

		buffered = append(buffered, chunk)
		total += uint64(len(chunk))
		_, _ = bodyHash.Write(chunk)

		if total > b.cfg.SmallFileLimit {
			return b.uploadLarge(ctx, path, bucketID, name, buffered, total, data)
		}
	}
}

func (b *B2) uploadSmall(ctx context.Context, path objectpath.Path, bucketID, name string,
	buffered [][]byte, total uint64, bodyHash hash.Hash) error {

	debug.Log("uploading %v (%d bytes) in one request", name, total)

	var upload getUploadURLResponse
	err := b.client.call(ctx, "b2_get_upload_url", path, getUploadURLRequest{BucketID: bucketID}, &upload)
	if err != nil {
		return storage.TargetError(err)
	}

	sum := hex.EncodeToString(bodyHash.Sum(nil))
	_, err = b.client.uploadFile(ctx, path, upload, name, defaultContentType, nil, total, sum, buffered)
	if err != nil {
		return storage.TargetError(err)
	}
	return nil
}

// uploadLarge streams the remainder of data through the large-file API. The
// already buffered chunks form the head of the body.
func (b *B2) uploadLarge(ctx context.Context, path objectpath.Path, bucketID, name string,
	buffered [][]byte, total uint64, data backend.ChunkStream) error {

	session, err := b.client.accountInfo(ctx)
	if err != nil {
		return storage.TargetError(err)
	}

	partSize := session.RecommendedPartSize
	if partSize > b.cfg.SmallFileLimit {
		// keep at least two parts in every large upload
		partSize = b.cfg.SmallFileLimit
	}
	if partSize < session.AbsoluteMinimumPartSize {
		partSize = session.AbsoluteMinimumPartSize
	}
	if partSize == 0 {
		partSize = 100 * 1024 * 1024
	}

	debug.Log("starting large file upload for %v with part size %d", name, partSize)

	var start fileInfo
	err = b.client.call(ctx, "b2_start_large_file", path, startLargeFileRequest{
		BucketID:    bucketID,
		FileName:    name,
		ContentType: defaultContentType,
	}, &start)
	if err != nil {
		return storage.TargetError(err)
	}

	parts := partAssembler{size: partSize, pending: buffered, pendingLen: total}
	var partHashes []string

	uploadPart := func(chunks [][]byte, length uint64) error {
		partHash := sha1.New()
		for _, chunk := range chunks {
			_, _ = partHash.Write(chunk)
		}
		sum := hex.EncodeToString(partHash.Sum(nil))

		var upload getUploadPartURLResponse
		err := b.client.call(ctx, "b2_get_upload_part_url", path, getUploadPartURLRequest{FileID: start.FileID}, &upload)
		if err != nil {
			return err
		}

		_, err = b.client.uploadPart(ctx, path, upload, len(partHashes)+1, length, sum, chunks)
		if err != nil {
			return err
		}
		partHashes = append(partHashes, sum)
		return nil
	}

	for {
		for {
			chunks, length, ok := parts.take()
			if !ok {
				break
			}
			if err := uploadPart(chunks, length); err != nil {
				return storage.TargetError(err)
			}
		}

		chunk, err := data.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return storage.SourceError(err)
		}
		parts.add(chunk)
	}

	if chunks, length := parts.rest(); length > 0 {
		if err := uploadPart(chunks, length); err != nil {
			return storage.TargetError(err)
		}
	}

	var finish fileInfo
	err = b.client.call(ctx, "b2_finish_large_file", path, finishLargeFileRequest{
		FileID:        start.FileID,
		PartSha1Array: partHashes,
	}, &finish)
	if err != nil {
		return storage.TargetError(err)
	}
	return nil
}

// Close closes the backend.
func (b *B2) Close() error {
	b.client.http.CloseIdleConnections()
	return nil
}
