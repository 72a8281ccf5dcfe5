package b2

// An in-memory B2 service for the client and backend tests. It implements
// just enough of the v2 API: account authorization with expirable tokens,
// file listing with pagination, small and large uploads, downloads and
// version deletes.

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	testAccountID = "test-account"
	testKey       = "test-key"
	testBucket    = "testbucket"
	testBucketID  = "bkt-0001"
)

type testVersion struct {
	id   string
	data []byte
}

type testLargeUpload struct {
	name  string
	parts map[int][]byte
	shas  map[int]string
}

type testServer struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	token   string
	seq     int
	expired map[string]bool

	recommendedPartSize uint64
	minimumPartSize     uint64

	files  map[string][]testVersion
	larges map[string]*testLargeUpload

	authorizeCalls int
	downloadCalls  int
	uploadCalls    int

	// number of upload requests to fail with 503 before succeeding
	failUploads int
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{
		t:                   t,
		expired:             map[string]bool{},
		files:               map[string][]testVersion{},
		larges:              map[string]*testLargeUpload{},
		recommendedPartSize: 8,
		minimumPartSize:     4,
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// expireToken marks the current token invalid, as if the service had expired
// the session.
func (s *testServer) expireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[s.token] = true
}

func (s *testServer) fileData(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.files[name]
	if len(versions) == 0 {
		return nil, false
	}
	return versions[len(versions)-1].data, true
}

func (s *testServer) putFile(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeVersionLocked(name, data)
}

func (s *testServer) storeVersionLocked(name string, data []byte) testVersion {
	s.seq++
	version := testVersion{id: fmt.Sprintf("id-%04d", s.seq), data: data}
	s.files[name] = append(s.files[name], version)
	return version
}

func (s *testServer) jsonError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Status: status, Code: code, Message: message})
}

func (s *testServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/b2api/v2/b2_authorize_account":
		s.handleAuthorize(w, r)
	case strings.HasPrefix(r.URL.Path, "/b2api/v2/"):
		s.handleAPI(w, r)
	case strings.HasPrefix(r.URL.Path, "/file/"):
		s.handleDownload(w, r)
	case r.URL.Path == "/upload_file":
		s.handleUploadFile(w, r)
	case strings.HasPrefix(r.URL.Path, "/upload_part/"):
		s.handleUploadPart(w, r)
	default:
		s.jsonError(w, 404, "not_found", "no such endpoint: "+r.URL.Path)
	}
}

func (s *testServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authorizeCalls++

	id, key, ok := r.BasicAuth()
	if !ok || id != testAccountID || key != testKey {
		s.jsonError(w, 401, "bad_auth_token", "bad credentials")
		return
	}

	s.seq++
	s.token = fmt.Sprintf("token-%04d", s.seq)

	_ = json.NewEncoder(w).Encode(authorizeAccountResponse{
		AccountID:          testAccountID,
		AuthorizationToken: s.token,
		Allowed: authorizeAccountAllowed{
			Capabilities: []string{"listFiles", "readFiles", "writeFiles", "deleteFiles"},
			BucketID:     testBucketID,
			BucketName:   testBucket,
		},
		APIURL:                  s.srv.URL,
		DownloadURL:             s.srv.URL,
		RecommendedPartSize:     s.recommendedPartSize,
		AbsoluteMinimumPartSize: s.minimumPartSize,
	})
}

// checkTokenLocked validates the session token of a request. It must be called
// with the mutex held.
func (s *testServer) checkTokenLocked(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if auth != s.token || s.expired[auth] {
		s.jsonError(w, 401, "expired_auth_token", "token expired")
		return false
	}
	return true
}

func (s *testServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.checkTokenLocked(w, r) {
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/b2api/v2/")
	switch method {
	case "b2_list_buckets":
		_ = json.NewEncoder(w).Encode(listBucketsResponse{Buckets: []bucketInfo{
			{AccountID: testAccountID, BucketID: testBucketID, BucketName: testBucket, BucketType: "allPrivate"},
		}})

	case "b2_list_file_names":
		var req listFileNamesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		names := make([]string, 0, len(s.files))
		for name := range s.files {
			if strings.HasPrefix(name, req.Prefix) && name >= req.StartFileName {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		maxCount := req.MaxFileCount
		if maxCount <= 0 || maxCount > 10000 {
			maxCount = 100
		}

		var resp listFileNamesResponse
		for i, name := range names {
			if i == maxCount {
				resp.NextFileName = name
				break
			}
			versions := s.files[name]
			latest := versions[len(versions)-1]
			resp.Files = append(resp.Files, fileInfo{
				AccountID:     testAccountID,
				Action:        actionUpload,
				BucketID:      testBucketID,
				ContentLength: uint64(len(latest.data)),
				FileID:        latest.id,
				FileName:      name,
			})
		}
		if resp.Files == nil {
			resp.Files = []fileInfo{}
		}
		_ = json.NewEncoder(w).Encode(resp)

	case "b2_list_file_versions":
		var req listFileVersionsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		names := make([]string, 0, len(s.files))
		for name := range s.files {
			if strings.HasPrefix(name, req.Prefix) && name >= req.StartFileName {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		var resp listFileVersionsResponse
		for _, name := range names {
			for _, version := range s.files[name] {
				resp.Files = append(resp.Files, fileInfo{
					AccountID:     testAccountID,
					Action:        actionUpload,
					BucketID:      testBucketID,
					ContentLength: uint64(len(version.data)),
					FileID:        version.id,
					FileName:      name,
				})
			}
		}
		if resp.Files == nil {
			resp.Files = []fileInfo{}
		}
		_ = json.NewEncoder(w).Encode(resp)

	case "b2_delete_file_version":
		var req deleteFileVersionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		versions := s.files[req.FileName]
		for i, version := range versions {
			if version.id == req.FileID {
				versions = append(versions[:i], versions[i+1:]...)
				if len(versions) == 0 {
					delete(s.files, req.FileName)
				} else {
					s.files[req.FileName] = versions
				}
				_ = json.NewEncoder(w).Encode(deleteFileVersionResponse{FileName: req.FileName, FileID: req.FileID})
				return
			}
		}
		s.jsonError(w, 400, "file_not_present", "no such version")

	case "b2_get_upload_url":
		_ = json.NewEncoder(w).Encode(getUploadURLResponse{
			BucketID:           testBucketID,
			UploadURL:          s.srv.URL + "/upload_file",
			AuthorizationToken: "upload-token",
		})

	case "b2_start_large_file":
		var req startLargeFileRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.seq++
		id := fmt.Sprintf("large-%04d", s.seq)
		s.larges[id] = &testLargeUpload{
			name:  req.FileName,
			parts: map[int][]byte{},
			shas:  map[int]string{},
		}
		_ = json.NewEncoder(w).Encode(fileInfo{
			AccountID: testAccountID,
			Action:    actionStart,
			BucketID:  testBucketID,
			FileID:    id,
			FileName:  req.FileName,
		})

	case "b2_get_upload_part_url":
		var req getUploadPartURLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if s.larges[req.FileID] == nil {
			s.jsonError(w, 400, "bad_request", "unknown large file")
			return
		}
		_ = json.NewEncoder(w).Encode(getUploadPartURLResponse{
			FileID:             req.FileID,
			UploadURL:          s.srv.URL + "/upload_part/" + req.FileID,
			AuthorizationToken: "part-token",
		})

	case "b2_finish_large_file":
		var req finishLargeFileRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		large := s.larges[req.FileID]
		if large == nil {
			s.jsonError(w, 400, "bad_request", "unknown large file")
			return
		}
		if len(req.PartSha1Array) != len(large.parts) {
			s.jsonError(w, 400, "bad_request", "wrong number of parts")
			return
		}

		var data []byte
		for part := 1; part <= len(large.parts); part++ {
			chunk, ok := large.parts[part]
			if !ok || large.shas[part] != req.PartSha1Array[part-1] {
				s.jsonError(w, 400, "bad_request", "part mismatch")
				return
			}
			data = append(data, chunk...)
		}

		delete(s.larges, req.FileID)
		version := s.storeVersionLocked(large.name, data)
		_ = json.NewEncoder(w).Encode(fileInfo{
			AccountID:     testAccountID,
			Action:        actionUpload,
			BucketID:      testBucketID,
			ContentLength: uint64(len(data)),
			FileID:        version.id,
			FileName:      large.name,
		})

	default:
		s.jsonError(w, 400, "bad_request", "unknown method "+method)
	}
}

func (s *testServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	s.downloadCalls++
	if !s.checkTokenLocked(w, r) {
		s.mu.Unlock()
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/file/")
	bucket, encodedName, _ := strings.Cut(rest, "/")
	if bucket != testBucket {
		s.mu.Unlock()
		s.jsonError(w, 404, "not_found", "no such bucket")
		return
	}

	name, err := percentDecode(encodedName)
	if err != nil {
		s.mu.Unlock()
		s.jsonError(w, 400, "bad_request", "bad file name")
		return
	}

	versions := s.files[name]
	if len(versions) == 0 {
		s.mu.Unlock()
		s.jsonError(w, 404, "not_found", "no such file")
		return
	}
	data := versions[len(versions)-1].data
	s.mu.Unlock()

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *testServer) readUploadBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.jsonError(w, 400, "bad_request", "reading body failed")
		return nil, false
	}

	sum := sha1.Sum(body)
	if hex.EncodeToString(sum[:]) != r.Header.Get(headerContentSha1) {
		s.jsonError(w, 400, "bad_request", "checksum mismatch")
		return nil, false
	}
	return body, true
}

func (s *testServer) failUpload(w http.ResponseWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploadCalls++
	if s.failUploads > 0 {
		s.failUploads--
		s.jsonError(w, 503, "bad_request", "try again")
		return true
	}
	return false
}

func (s *testServer) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "upload-token" {
		s.jsonError(w, 401, "unauthorized", "bad upload token")
		return
	}
	if s.failUpload(w) {
		return
	}

	body, ok := s.readUploadBody(w, r)
	if !ok {
		return
	}

	name, err := percentDecode(r.Header.Get(headerFileName))
	if err != nil {
		s.jsonError(w, 400, "bad_request", "bad file name")
		return
	}

	s.mu.Lock()
	version := s.storeVersionLocked(name, body)
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(fileInfo{
		AccountID:     testAccountID,
		Action:        actionUpload,
		BucketID:      testBucketID,
		ContentLength: uint64(len(body)),
		ContentSha1:   r.Header.Get(headerContentSha1),
		FileID:        version.id,
		FileName:      name,
	})
}

func (s *testServer) handleUploadPart(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "part-token" {
		s.jsonError(w, 401, "unauthorized", "bad upload token")
		return
	}
	if s.failUpload(w) {
		return
	}

	body, ok := s.readUploadBody(w, r)
	if !ok {
		return
	}

	part, err := strconv.Atoi(r.Header.Get(headerPartNumber))
	if err != nil || part < 1 {
		s.jsonError(w, 400, "bad_request", "bad part number")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/upload_part/")

	s.mu.Lock()
	large := s.larges[id]
	if large == nil {
		s.mu.Unlock()
		s.jsonError(w, 400, "bad_request", "unknown large file")
		return
	}
	large.parts[part] = body
	large.shas[part] = r.Header.Get(headerContentSha1)
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(uploadPartResponse{
		FileID:        id,
		PartNumber:    part,
		ContentLength: uint64(len(body)),
		ContentSha1:   r.Header.Get(headerContentSha1),
	})
}
