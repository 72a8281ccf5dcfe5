package b2

// The request and response shapes of the B2 v2 API. Field names on the wire
// are camelCase.

const (
	headerFileName       = "X-Bz-File-Name"
	headerContentSha1    = "X-Bz-Content-Sha1"
	headerPartNumber     = "X-Bz-Part-Number"
	headerFileInfoPrefix = "X-Bz-Info-"
)

// file actions as reported by the listing calls
const (
	actionStart  = "start"
	actionUpload = "upload"
	actionHide   = "hide"
	actionFolder = "folder"
)

type errorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type authorizeAccountAllowed struct {
	Capabilities []string `json:"capabilities"`
	BucketID     string   `json:"bucketId"`
	BucketName   string   `json:"bucketName"`
	NamePrefix   string   `json:"namePrefix"`
}

type authorizeAccountResponse struct {
	AccountID               string                  `json:"accountId"`
	AuthorizationToken      string                  `json:"authorizationToken"`
	Allowed                 authorizeAccountAllowed `json:"allowed"`
	APIURL                  string                  `json:"apiUrl"`
	DownloadURL             string                  `json:"downloadUrl"`
	RecommendedPartSize     uint64                  `json:"recommendedPartSize"`
	AbsoluteMinimumPartSize uint64                  `json:"absoluteMinimumPartSize"`
}

type bucketInfo struct {
	AccountID  string `json:"accountId"`
	BucketID   string `json:"bucketId"`
	BucketName string `json:"bucketName"`
	BucketType string `json:"bucketType"`
}

type listBucketsRequest struct {
	AccountID  string `json:"accountId"`
	BucketName string `json:"bucketName,omitempty"`
}

type listBucketsResponse struct {
	Buckets []bucketInfo `json:"buckets"`
}

type fileInfo struct {
	AccountID       string            `json:"accountId"`
	Action          string            `json:"action"`
	BucketID        string            `json:"bucketId"`
	ContentLength   uint64            `json:"contentLength"`
	ContentSha1     string            `json:"contentSha1"`
	ContentType     string            `json:"contentType"`
	FileID          string            `json:"fileId"`
	FileInfo        map[string]string `json:"fileInfo"`
	FileName        string            `json:"fileName"`
	UploadTimestamp uint64            `json:"uploadTimestamp"`
}

type listFileNamesRequest struct {
	BucketID      string `json:"bucketId"`
	StartFileName string `json:"startFileName,omitempty"`
	MaxFileCount  int    `json:"maxFileCount,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
}

type listFileNamesResponse struct {
	Files        []fileInfo `json:"files"`
	NextFileName string     `json:"nextFileName"`
}

type listFileVersionsRequest struct {
	BucketID      string `json:"bucketId"`
	StartFileName string `json:"startFileName,omitempty"`
	StartFileID   string `json:"startFileId,omitempty"`
	MaxFileCount  int    `json:"maxFileCount,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
}

type listFileVersionsResponse struct {
	Files        []fileInfo `json:"files"`
	NextFileName string     `json:"nextFileName"`
	NextFileID   string     `json:"nextFileId"`
}

type deleteFileVersionRequest struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}

type deleteFileVersionResponse struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}

type getUploadURLRequest struct {
	BucketID string `json:"bucketId"`
}

type getUploadURLResponse struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type startLargeFileRequest struct {
	BucketID    string            `json:"bucketId"`
	FileName    string            `json:"fileName"`
	ContentType string            `json:"contentType"`
	FileInfo    map[string]string `json:"fileInfo,omitempty"`
}

type getUploadPartURLRequest struct {
	FileID string `json:"fileId"`
}

type getUploadPartURLResponse struct {
	FileID             string `json:"fileId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type uploadPartResponse struct {
	FileID        string `json:"fileId"`
	PartNumber    int    `json:"partNumber"`
	ContentLength uint64 `json:"contentLength"`
	ContentSha1   string `json:"contentSha1"`
}

type finishLargeFileRequest struct {
	FileID        string   `json:"fileId"`
	PartSha1Array []string `json:"partSha1Array"`
}
