package b2

import (
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/cloudfiles/cloudfiles/internal/errors"
)

// DefaultHost is the published entry point of the B2 API.
const DefaultHost = "https://api.backblazeb2.com"

// Config contains all configuration necessary to connect to a B2 bucket.
type Config struct {
	AccountID string
	Key       string
	Bucket    string
	Prefix    string

	// Host is the API entry point, overridable for tests.
	Host string

	Connections uint `option:"connections" help:"set a limit for the number of concurrent connections (default: 5)"`

	// SmallFileLimit is the size in bytes above which uploads switch to
	// the large-file API.
	SmallFileLimit uint64 `option:"small-file-limit" help:"upload files larger than this in parts (default: 100 MiB)"`
}

// NewConfig returns a new config with default options applied.
func NewConfig() Config {
	return Config{
		Host:           DefaultHost,
		Connections:    5,
		SmallFileLimit: 100 * 1024 * 1024,
	}
}

var bucketName = regexp.MustCompile("^[a-zA-Z0-9-]+$")

// checkBucketName tests the bucket name against the rules at
// https://help.backblaze.com/hc/en-us/articles/217666908-What-you-need-to-know-about-B2-Bucket-names
func checkBucketName(name string) error {
	if name == "" {
		return errors.New("bucket name is empty")
	}

	if len(name) < 6 {
		return errors.New("bucket name is too short")
	}

	if len(name) > 50 {
		return errors.New("bucket name is too long")
	}

	if !bucketName.MatchString(name) {
		return errors.New("bucket name contains invalid characters, allowed are: a-z, A-Z, 0-9, dash (-)")
	}

	return nil
}

// ParseConfig parses the string s and extracts the b2 config. The supported
// configuration format is b2:bucketname[:prefix].
func ParseConfig(s string) (*Config, error) {
	if !strings.HasPrefix(s, "b2:") {
		return nil, errors.New("invalid format, want: b2:bucket-name[:path]")
	}

	s = s[3:]
	data := strings.SplitN(s, ":", 2)
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, errors.New("bucket name not found")
	}

	cfg := NewConfig()
	cfg.Bucket = data[0]

	if err := checkBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	if len(data) == 2 {
		p := data[1]
		if len(p) > 0 {
			p = path.Clean(p)
		}

		if len(p) > 0 && path.IsAbs(p) {
			p = p[1:]
		}

		cfg.Prefix = p
	}

	return &cfg, nil
}

// ApplyEnvironment fills in the account credentials from the environment.
func (cfg *Config) ApplyEnvironment() {
	if cfg.AccountID == "" {
		cfg.AccountID = os.Getenv("B2_ACCOUNT_ID")
	}
	if cfg.Key == "" {
		cfg.Key = os.Getenv("B2_ACCOUNT_KEY")
	}
}
