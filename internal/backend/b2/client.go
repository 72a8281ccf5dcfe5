package b2

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloudfiles/cloudfiles/internal/backend"
	"github.com/cloudfiles/cloudfiles/internal/backend/sema"
	"github.com/cloudfiles/cloudfiles/internal/debug"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
	"github.com/cloudfiles/cloudfiles/internal/storage"
	"github.com/cloudfiles/cloudfiles/internal/streams"
)

// maxAPIRetries bounds the total number of attempts for one API call.
const maxAPIRetries = 5

const apiVersion = "v2"

// client holds the session state shared by all operations of a B2 backend.
// The session cell and the cached bucket id are the only mutated shared
// state, both guarded by mu. The session is created lazily on the first call
// and replaced after the service reports an expired token.
type client struct {
	cfg  Config
	http *http.Client
	sem  sema.Semaphore

	mu       sync.Mutex
	session  *authorizeAccountResponse
	bucketID string
}

func newClient(cfg Config, rt http.RoundTripper) (*client, error) {
	if cfg.AccountID == "" {
		return nil, storage.InvalidSettings("unable to open B2 backend: Account ID ($B2_ACCOUNT_ID) is empty", nil)
	}
	if cfg.Key == "" {
		return nil, storage.InvalidSettings("unable to open B2 backend: Key ($B2_ACCOUNT_KEY) is empty", nil)
	}

	sem, err := sema.New(cfg.Connections)
	if err != nil {
		return nil, err
	}

	return &client{
		cfg:  cfg,
		http: &http.Client{Transport: rt},
		sem:  sem,
	}, nil
}

func apiURL(host, method string) string {
	return fmt.Sprintf("%s/b2api/%s/%s", host, apiVersion, method)
}

// generateError turns a failed API response into a storage error, classified
// by the (status, code) pair reported by the service.
func generateError(method string, path objectpath.Path, body []byte) error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		debug.Log("unable to parse error response from %v: %q", method, body)
		return storage.InvalidData(fmt.Sprintf("unable to parse error response from %s", method), err)
	}

	debug.Log("api call %v failed with %v %v: %v", method, resp.Status, resp.Code, resp.Message)

	if method == "b2_authorize_account" && resp.Status == 401 && resp.Code == "bad_auth_token" {
		return storage.AccessDenied("the application key id or key were not recognized", nil)
	}

	switch {
	case resp.Status == 400 && (resp.Code == "invalid_bucket_id" || resp.Code == "bad_bucket_id" || resp.Code == "file_not_present"):
		return storage.NotFound(path, nil)
	case resp.Status == 400 && (resp.Code == "bad_request" || resp.Code == "out_of_range"):
		return storage.InternalError(resp.Message, nil)
	case resp.Status == 401 && resp.Code == "unauthorized":
		return storage.AccessDenied("the application key id or key were not recognized", nil)
	case resp.Status == 401 && resp.Code == "bad_auth_token":
		return storage.AccessExpired("the authentication token is invalid", nil)
	case resp.Status == 401 && resp.Code == "expired_auth_token":
		return storage.AccessExpired("the authentication token has expired", nil)
	case resp.Status == 404 && resp.Code == "not_found":
		return storage.NotFound(path, nil)
	case resp.Status == 503 && resp.Code == "bad_request":
		return storage.ConnectionFailed(resp.Message, nil)
	default:
		return storage.OtherError(fmt.Sprintf("unknown B2 API failure %d: %s, %s", resp.Status, resp.Code, resp.Message), nil)
	}
}

// request sends req and returns the response if it was successful. Failed
// responses are drained, closed and turned into storage errors.
func (c *client) request(ctx context.Context, method string, path objectpath.Path, req *http.Request) (*http.Response, error) {
	debug.Log("requesting %v", req.URL)

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, storage.Cancelled("the request was cancelled", err)
		}
		return nil, storage.ConnectionFailed(fmt.Sprintf("%s b2 api call failed", method), err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, storage.ConnectionClosed("reading the error response failed", readErr)
	}
	return nil, generateError(method, path, body)
}

// basicRequest sends req and decodes the JSON response into result.
func (c *client) basicRequest(ctx context.Context, method string, path objectpath.Path, req *http.Request, result interface{}) error {
	resp, err := c.request(ctx, method, path, req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return storage.InvalidData(fmt.Sprintf("unable to parse response from %s", method), err)
	}
	return nil
}

// authorize performs b2_authorize_account with HTTP basic authentication.
func (c *client) authorize(ctx context.Context) (*authorizeAccountResponse, error) {
	debug.Log("starting b2_authorize_account api call")

	req, err := http.NewRequest(http.MethodGet, apiURL(c.cfg.Host, "b2_authorize_account"), nil)
	if err != nil {
		return nil, storage.InternalError("building the authorize request failed", err)
	}

	secret := base64.StdEncoding.EncodeToString([]byte(c.cfg.AccountID + ":" + c.cfg.Key))
	req.Header.Set("Authorization", "Basic "+secret)

	var session authorizeAccountResponse
	if err := c.basicRequest(ctx, "b2_authorize_account", objectpath.Empty(), req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// currentSession returns the session, authorizing lazily. The mutex
// serializes concurrent authorizers: only one authorization is ever in
// flight.
func (c *client) currentSession(ctx context.Context) (authorizeAccountResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return *c.session, nil
	}

	session, err := c.authorize(ctx)
	if err != nil {
		return authorizeAccountResponse{}, err
	}
	c.session = session
	return *session, nil
}

// resetSession drops the session, but only when it still carries the token
// the failed call used. A concurrent caller may already have re-authorized.
func (c *client) resetSession(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.AuthorizationToken == token {
		c.session = nil
	}
}

// call performs one JSON API call, re-authorizing and retrying when the
// session has expired.
func (c *client) call(ctx context.Context, method string, path objectpath.Path, request, response interface{}) error {
	for tries := 1; ; tries++ {
		permit, err := c.sem.Acquire(ctx)
		if err != nil {
			return err
		}

		err = c.tryCall(ctx, method, path, request, response)
		permit.Release()

		if err != nil && storage.KindOf(err) == storage.KindAccessExpired && tries < maxAPIRetries {
			continue
		}
		return err
	}
}

func (c *client) tryCall(ctx context.Context, method string, path objectpath.Path, request, response interface{}) error {
	session, err := c.currentSession(ctx)
	if err != nil {
		return err
	}

	debug.Log("starting %v api call", method)

	data, err := json.Marshal(request)
	if err != nil {
		return storage.InternalError(fmt.Sprintf("unable to encode request for %s", method), err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL(session.APIURL, method), bytes.NewReader(data))
	if err != nil {
		return storage.InternalError(fmt.Sprintf("building the %s request failed", method), err)
	}
	req.Header.Set("Authorization", session.AuthorizationToken)
	req.Header.Set("Content-Type", "application/json")

	err = c.basicRequest(ctx, method, path, req, response)
	if err != nil && storage.KindOf(err) == storage.KindAccessExpired {
		c.resetSession(session.AuthorizationToken)
	}
	return err
}

// download performs b2_download_file_by_name. The returned chunk stream owns
// a concurrency permit which is released when the body ends or the stream is
// closed.
func (c *client) download(ctx context.Context, path objectpath.Path, bucket, fileName string) (backend.ChunkStream, error) {
	for tries := 1; ; tries++ {
		permit, err := c.sem.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		session, err := c.currentSession(ctx)
		if err != nil {
			permit.Release()
			return nil, err
		}

		debug.Log("starting b2_download_file_by_name api call (attempt %d)", tries)

		url := fmt.Sprintf("%s/file/%s/%s", session.DownloadURL, percentEncode(bucket), percentEncode(fileName))
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			permit.Release()
			return nil, storage.InternalError("building the download request failed", err)
		}
		req.Header.Set("Authorization", session.AuthorizationToken)

		resp, err := c.request(ctx, "b2_download_file_by_name", path, req)
		if err == nil {
			rs := streams.NewReaderStream(resp.Body, streams.DefaultInitialBufferSize, streams.DefaultMinimumBufferSize)
			return streams.After[[]byte](rs, func() {
				_ = rs.Close()
				permit.Release()
			}), nil
		}

		permit.Release()
		if storage.KindOf(err) == storage.KindAccessExpired {
			c.resetSession(session.AuthorizationToken)
			if tries < maxAPIRetries {
				continue
			}
		}
		return nil, err
	}
}

// uploadRetry runs op with the bounded exponential backoff schedule used for
// upload requests, which are retried on any error.
func (c *client) uploadRetry(ctx context.Context, msg string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond

	return backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxAPIRetries-1), ctx),
		func(err error, d time.Duration) {
			debug.Log("%v failed, retrying in %v: %v", msg, d, err)
		},
	)
}

// uploadFile performs one b2_upload_file request against an upload URL
// obtained from b2_get_upload_url. The url carries its own authorization
// token.
func (c *client) uploadFile(ctx context.Context, path objectpath.Path, upload getUploadURLResponse,
	fileName, contentType string, info map[string]string, length uint64, hash string, data [][]byte) (fileInfo, error) {

	var result fileInfo
	err := c.uploadRetry(ctx, "b2_upload_file", func() error {
		req, err := http.NewRequest(http.MethodPost, upload.UploadURL, chunkReader(data))
		if err != nil {
			return backoff.Permanent(storage.InternalError("building the upload request failed", err))
		}
		req.Header.Set("Authorization", upload.AuthorizationToken)
		req.Header.Set(headerFileName, percentEncode(fileName))
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(headerContentSha1, hash)
		for key, value := range info {
			req.Header.Set(headerFileInfoPrefix+key, percentEncode(value))
		}
		req.ContentLength = int64(length)

		permit, err := c.sem.Acquire(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer permit.Release()

		return c.basicRequest(ctx, "b2_upload_file", path, req, &result)
	})
	return result, err
}

// uploadPart performs one b2_upload_part request against a part upload URL.
func (c *client) uploadPart(ctx context.Context, path objectpath.Path, upload getUploadPartURLResponse,
	part int, length uint64, hash string, data [][]byte) (uploadPartResponse, error) {

	var result uploadPartResponse
	err := c.uploadRetry(ctx, "b2_upload_part", func() error {
		req, err := http.NewRequest(http.MethodPost, upload.UploadURL, chunkReader(data))
		if err != nil {
			return backoff.Permanent(storage.InternalError("building the upload request failed", err))
		}
		req.Header.Set("Authorization", upload.AuthorizationToken)
		req.Header.Set(headerPartNumber, fmt.Sprintf("%d", part))
		req.Header.Set(headerContentSha1, hash)
		req.ContentLength = int64(length)

		permit, err := c.sem.Acquire(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer permit.Release()

		return c.basicRequest(ctx, "b2_upload_part", path, req, &result)
	})
	return result, err
}

// accountInfo returns the session, authorizing if necessary.
func (c *client) accountInfo(ctx context.Context) (authorizeAccountResponse, error) {
	permit, err := c.sem.Acquire(ctx)
	if err != nil {
		return authorizeAccountResponse{}, err
	}
	defer permit.Release()

	return c.currentSession(ctx)
}

// resolveBucketID looks up the bucket id for the configured bucket, using the
// restriction info from the session when present. The id is cached; bucket
// ids never change.
func (c *client) resolveBucketID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.bucketID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	session, err := c.accountInfo(ctx)
	if err != nil {
		return "", err
	}

	var id string
	if session.Allowed.BucketName == c.cfg.Bucket && session.Allowed.BucketID != "" {
		id = session.Allowed.BucketID
	} else {
		var resp listBucketsResponse
		err := c.call(ctx, "b2_list_buckets", objectpath.Empty(), listBucketsRequest{
			AccountID:  session.AccountID,
			BucketName: c.cfg.Bucket,
		}, &resp)
		if err != nil {
			return "", err
		}
		for _, bucket := range resp.Buckets {
			if bucket.BucketName == c.cfg.Bucket {
				id = bucket.BucketID
				break
			}
		}
		if id == "" {
			return "", storage.InvalidSettings(fmt.Sprintf("bucket %q was not found", c.cfg.Bucket), nil)
		}
	}

	c.mu.Lock()
	c.bucketID = id
	c.mu.Unlock()
	return id, nil
}

// chunkReader builds a fresh body reader over buffered chunks, so that upload
// retries can resend the same data.
func chunkReader(data [][]byte) io.Reader {
	readers := make([]io.Reader, 0, len(data))
	for _, chunk := range data {
		readers = append(readers, bytes.NewReader(chunk))
	}
	return io.MultiReader(readers...)
}
