// Package location implements parsing the storage location from a string.
package location

import (
	"strings"

	"github.com/cloudfiles/cloudfiles/internal/backend/b2"
	"github.com/cloudfiles/cloudfiles/internal/backend/local"
	"github.com/cloudfiles/cloudfiles/internal/errors"
)

// Location specifies the location of a store, including the method of access
// and (possibly) credentials needed for access.
type Location struct {
	Scheme string
	Config interface{}
}

type parser struct {
	scheme string
	parse  func(string) (interface{}, error)
}

// parsers is a list of valid config parsers for the backends.
var parsers = []parser{
	{"b2", func(s string) (interface{}, error) { return b2.ParseConfig(s) }},
	{"file", func(s string) (interface{}, error) { return local.ParseConfig(s) }},
}

func isPath(s string) bool {
	if strings.HasPrefix(s, "../") || strings.HasPrefix(s, `..\`) {
		return true
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) || strings.HasPrefix(s, "./") {
		return true
	}

	if len(s) < 3 {
		return false
	}

	// check for drive paths
	drive := s[0]
	if !(drive >= 'a' && drive <= 'z') && !(drive >= 'A' && drive <= 'Z') {
		return false
	}

	if s[1] != ':' {
		return false
	}

	if s[2] != '\\' && s[2] != '/' {
		return false
	}

	return true
}

func extractScheme(s string) string {
	scheme, _, _ := strings.Cut(s, ":")
	return scheme
}

// Parse extracts the storage location information from the string s. If s
// starts with a backend name followed by a colon, that backend's parser is
// used. Otherwise s is interpreted as the name of a local directory.
func Parse(s string) (Location, error) {
	scheme := extractScheme(s)

	for _, parser := range parsers {
		if parser.scheme != scheme {
			continue
		}

		cfg, err := parser.parse(s)
		if err != nil {
			return Location{}, err
		}

		return Location{Scheme: scheme, Config: cfg}, nil
	}

	// if s is not a path and contains ":", it's ambiguous
	if !isPath(s) && strings.ContainsRune(s, ':') {
		return Location{}, errors.New("invalid backend\nIf the store is in a local directory, you need to add a `file:` prefix")
	}

	cfg, err := local.ParseConfig("file:" + s)
	if err != nil {
		return Location{}, err
	}

	return Location{Scheme: "file", Config: cfg}, nil
}
