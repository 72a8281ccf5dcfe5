package b2

import (
	"context"
	"io"

	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
)

// listStream flattens the paginated b2_list_file_names calls into a lazy
// object stream. With a delimiter set it lists a single level and surfaces
// folders as directory records.
type listStream struct {
	be        *B2
	path      objectpath.Path
	prefix    string
	delimiter string

	next string
	buf  []fileInfo
	done bool
}

func (s *listStream) Next(ctx context.Context) (storage.Object, error) {
	for {
		if len(s.buf) > 0 {
			file := s.buf[0]
			s.buf = s.buf[1:]

			path, err := s.be.pathForName(file.FileName)
			if err != nil {
				return storage.Object{}, storage.InvalidData("the service returned an unparsable file name", err)
			}
			return objectForFile(path, file), nil
		}

		if s.done {
			return storage.Object{}, io.EOF
		}

		bucketID, err := s.be.client.resolveBucketID(ctx)
		if err != nil {
			return storage.Object{}, err
		}

		var resp listFileNamesResponse
		err = s.be.client.call(ctx, "b2_list_file_names", s.path, listFileNamesRequest{
			BucketID:      bucketID,
			StartFileName: s.next,
			Prefix:        s.prefix,
			Delimiter:     s.delimiter,
			MaxFileCount:  s.be.listMaxItems,
		}, &resp)
		if err != nil {
			return storage.Object{}, err
		}

		s.buf = resp.Files
		if resp.NextFileName == "" {
			s.done = true
		} else {
			s.next = resp.NextFileName
		}

		if len(s.buf) == 0 && s.done {
			return storage.Object{}, io.EOF
		}
	}
}

func (s *listStream) Close() error {
	s.buf = nil
	s.done = true
	return nil
}
