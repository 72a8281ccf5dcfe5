package objectpath

import "fmt"

// PrefixKind enumerates the supported windows path prefix forms.
type PrefixKind uint8

const (
	// VerbatimUNC is a verbatim UNC prefix, e.g. `\\?\UNC\server\share`.
	VerbatimUNC PrefixKind = iota
	// VerbatimDisk is a verbatim disk prefix, e.g. `\\?\C:`.
	VerbatimDisk
	// UNC is a UNC prefix, e.g. `\\server\share`.
	UNC
	// Disk is a drive prefix, e.g. `C:`.
	Disk
)

// Prefix is the windows-style prefix of a path, if any. Verbatim prefixes
// disable `/` as a separator for the rest of the path.
type Prefix struct {
	Kind   PrefixKind
	Server string
	Share  string
	Letter byte
}

func (p Prefix) allowsForwardSlash() bool {
	switch p.Kind {
	case VerbatimUNC, VerbatimDisk:
		return false
	default:
		return true
	}
}

func (p Prefix) String() string {
	switch p.Kind {
	case VerbatimUNC:
		return fmt.Sprintf(`\\?\UNC\%s\%s`, p.Server, p.Share)
	case VerbatimDisk:
		return fmt.Sprintf(`\\?\%c:`, p.Letter)
	case UNC:
		return fmt.Sprintf(`\\%s\%s`, p.Server, p.Share)
	default:
		return fmt.Sprintf(`%c:`, p.Letter)
	}
}

func isDrivePath(s string, start int, allowForward bool) bool {
	if len(s) < start+3 {
		return false
	}
	letter := s[start]
	if !(letter >= 'a' && letter <= 'z') && !(letter >= 'A' && letter <= 'Z') {
		return false
	}
	if s[start+1] != ':' {
		return false
	}
	return s[start+2] == '\\' || (allowForward && s[start+2] == '/')
}

// parsePrefix detects a windows prefix at the start of s. It returns the
// prefix and the offset of the first byte after it, or nil if there is none.
func parsePrefix(s string) (*Prefix, int, error) {
	if len(s) < 3 {
		return nil, 0, nil
	}

	if hasPrefix(s, `\\?\`) {
		if hasPrefix(s, `\\?\UNC\`) {
			server, next := findSeparator(s, 8, false)
			if next == len(s) {
				return nil, 0, &ParseError{Spec: s, Message: "incorrect format for verbatim UNC path"}
			}
			share, last := findSeparator(s, next+1, false)
			return &Prefix{Kind: VerbatimUNC, Server: server, Share: share}, last, nil
		}
		if isDrivePath(s, 4, false) {
			return &Prefix{Kind: VerbatimDisk, Letter: s[4]}, 6, nil
		}
		return nil, 0, &ParseError{Spec: s, Message: "verbatim prefix did not match any supported form"}
	}

	if isDrivePath(s, 0, true) {
		return &Prefix{Kind: Disk, Letter: s[0]}, 2, nil
	}

	if part, next := findSeparator(s, 0, true); part == "" && next == 0 {
		if part, next := findSeparator(s, 1, true); part == "" && next == 1 {
			// Starts with two separators.
			server, next := findSeparator(s, 2, true)
			if next < len(s) {
				share, last := findSeparator(s, next+1, true)
				return &Prefix{Kind: UNC, Server: server, Share: share}, last, nil
			}
		}
	}

	return nil, 0, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
