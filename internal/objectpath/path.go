// Package objectpath implements the logical paths used to identify objects in
// storage.
//
// A Path is similar to the host path types except that it supports windows and
// non-windows style paths on all platforms. All of the backends use
// non-windows style paths for referencing objects. One chief difference is
// that paths that end with a separator are considered to be directories,
// those without are files.
//
// Paths are immutable values; the builder methods return modified copies.
package objectpath

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	parentDir  = ".."
	currentDir = "."
)

// ParseError is returned when a string cannot be parsed or manipulated into a
// valid Path.
type ParseError struct {
	Spec    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q: %s", e.Spec, e.Message)
}

// Path is a normalized logical path: an optional windows prefix, an
// absoluteness flag, a run of directory segments and an optional filename. A
// Path with no filename references a directory.
type Path struct {
	prefix   *Prefix
	absolute bool
	dirs     []string
	filename string
}

// Empty returns the empty relative directory path.
func Empty() Path {
	return Path{}
}

// Root returns the absolute root directory path.
func Root() Path {
	return Path{absolute: true}
}

// findSeparator returns the part of s between start and the next separator,
// along with the index of that separator (or len(s) if there is none).
func findSeparator(s string, start int, allowForward bool) (string, int) {
	part := s[start:]
	pos := strings.IndexByte(part, '\\')
	if pos < 0 {
		pos = len(part)
	}
	if allowForward {
		if fwd := strings.IndexByte(part, '/'); fwd >= 0 && fwd < pos {
			pos = fwd
		}
	}

	if pos == len(part) {
		return part, len(s)
	}
	return part[:pos], start + pos
}

// Parse parses a string into a Path and normalizes it.
func Parse(s string) (Path, error) {
	var result Path
	anySeparator := true

	prefix, pos, err := parsePrefix(s)
	if err != nil {
		return Path{}, err
	}
	if prefix != nil {
		if !prefix.allowsForwardSlash() {
			anySeparator = false
		}
		result.prefix = prefix
	}

	s = s[pos:]
	pos = 0

	for pos < len(s) {
		part, next := findSeparator(s, pos, anySeparator)

		if next == 0 {
			result.absolute = true
		} else if next == len(s) {
			if part == parentDir || part == currentDir {
				result.dirs = append(result.dirs, part)
			} else if part != "" {
				result.filename = part
			}
			break
		} else {
			result.dirs = append(result.dirs, part)
		}

		pos = next + 1
	}

	if err := result.normalize(); err != nil {
		return Path{}, err
	}

	return result, nil
}

// MustParse is like Parse but panics on error. For use with constant paths.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Path) normalize() error {
	pos := 0
	for pos < len(p.dirs) {
		switch p.dirs[pos] {
		case "":
			p.dirs = append(p.dirs[:pos], p.dirs[pos+1:]...)
		case parentDir:
			if pos > 0 {
				if p.dirs[pos-1] == parentDir {
					pos++
				} else {
					p.dirs = append(p.dirs[:pos-1], p.dirs[pos+1:]...)
					pos--
				}
			} else {
				if p.absolute {
					return &ParseError{
						Spec:    p.String(),
						Message: "cannot have remaining relative path parts in an absolute path",
					}
				}
				pos++
			}
		case currentDir:
			p.dirs = append(p.dirs[:pos], p.dirs[pos+1:]...)
		default:
			pos++
		}
	}

	return nil
}

// IsAbsolute reports whether the path is absolute.
func (p Path) IsAbsolute() bool {
	return p.absolute
}

// IsDir reports whether the path references a directory (has no filename).
func (p Path) IsDir() bool {
	return p.filename == ""
}

// IsWindows reports whether the path carries a windows-style prefix.
func (p Path) IsWindows() bool {
	return p.prefix != nil
}

// IsAboveBase reports whether the path is absolute or, when joined to an
// absolute path, would move above that path's directory.
func (p Path) IsAboveBase() bool {
	return p.absolute || (len(p.dirs) > 0 && p.dirs[0] == parentDir)
}

// Filename returns the filename, or "" for a directory path.
func (p Path) Filename() string {
	return p.filename
}

// Parts returns all segments of the path, including the filename if present.
func (p Path) Parts() []string {
	parts := make([]string, 0, len(p.dirs)+1)
	parts = append(parts, p.dirs...)
	if p.filename != "" {
		parts = append(parts, p.filename)
	}
	return parts
}

// Dirs returns the directory segments of the path.
func (p Path) Dirs() []string {
	return append([]string(nil), p.dirs...)
}

func (p Path) clone() Path {
	c := p
	c.dirs = append([]string(nil), p.dirs...)
	return c
}

// Join joins a relative path to this path and returns the result. An absolute
// argument replaces the receiver entirely.
func (p Path) Join(other Path) (Path, error) {
	if other.absolute {
		return other.clone(), nil
	}

	joined := p.clone()
	joined.filename = other.filename
	joined.dirs = append(joined.dirs, other.dirs...)

	if err := joined.normalize(); err != nil {
		return Path{}, err
	}

	return joined, nil
}

// Relative returns a relative path that, when joined to this path, yields
// target. Both paths must be absolute and share the same prefix.
func (p Path) Relative(target Path) (Path, error) {
	if !p.absolute {
		return Path{}, &ParseError{Spec: p.String(), Message: "start path must be absolute when generating a relative path"}
	}
	if !target.absolute {
		return Path{}, &ParseError{Spec: target.String(), Message: "final path must be absolute when generating a relative path"}
	}
	if !samePrefix(p.prefix, target.prefix) {
		spec := "<none>"
		if target.prefix != nil {
			spec = target.prefix.String()
		}
		return Path{}, &ParseError{Spec: spec, Message: "can only generate a relative path between two absolute paths with the same windows prefix"}
	}

	var relative Path
	relative.filename = target.filename

	sameCount := 0
	minLength := min(len(p.dirs), len(target.dirs))
	for sameCount < minLength && p.dirs[sameCount] == target.dirs[sameCount] {
		sameCount++
	}

	for range p.dirs[sameCount:] {
		relative.dirs = append(relative.dirs, parentDir)
	}
	relative.dirs = append(relative.dirs, target.dirs[sameCount:]...)

	return relative, nil
}

func samePrefix(a, b *Prefix) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// PushDir moves the path to the named subdirectory, discarding any filename.
func (p Path) PushDir(dir string) Path {
	c := p.clone()
	c.dirs = append(c.dirs, dir)
	c.filename = ""
	return c
}

// WithFilename returns the path with the filename replaced.
func (p Path) WithFilename(filename string) Path {
	c := p.clone()
	c.filename = filename
	return c
}

// AsDir converts the path into a directory by moving any filename into the
// directory segments.
func (p Path) AsDir() Path {
	if p.filename == "" {
		return p.clone()
	}
	c := p.clone()
	c.dirs = append(c.dirs, c.filename)
	c.filename = ""
	return c
}

// AsFile converts the path into a file by moving the last directory segment
// into the filename.
func (p Path) AsFile() Path {
	if p.filename != "" || len(p.dirs) == 0 {
		return p.clone()
	}
	c := p.clone()
	c.filename = c.dirs[len(c.dirs)-1]
	c.dirs = c.dirs[:len(c.dirs)-1]
	return c
}

// String renders the path. The separator is `\` when a windows prefix is
// present and `/` otherwise.
func (p Path) String() string {
	separator := "/"
	if p.prefix != nil {
		separator = `\`
	}

	var b strings.Builder
	if p.prefix != nil {
		b.WriteString(p.prefix.String())
	}
	if p.absolute {
		b.WriteString(separator)
	}
	for _, dir := range p.dirs {
		b.WriteString(dir)
		b.WriteString(separator)
	}
	b.WriteString(p.filename)

	return b.String()
}

// Compare orders paths by their rendered form.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.String(), other.String())
}

// Equal reports structural equality of two normalized paths.
func (p Path) Equal(other Path) bool {
	if p.absolute != other.absolute || p.filename != other.filename {
		return false
	}
	if !samePrefix(p.prefix, other.prefix) {
		return false
	}
	if len(p.dirs) != len(other.dirs) {
		return false
	}
	for i := range p.dirs {
		if p.dirs[i] != other.dirs[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether the rendered form of p starts with the rendered
// form of prefix. This is a plain string prefix, not a directory containment
// test.
func (p Path) HasPrefix(prefix Path) bool {
	return strings.HasPrefix(p.String(), prefix.String())
}

// FromOSPath parses a host path into a Path. A trailing host separator marks
// a directory, as with Parse.
func FromOSPath(s string) (Path, error) {
	return Parse(filepath.ToSlash(s))
}

// OSPath appends the path's segments below base using the host separator.
func (p Path) OSPath(base string) string {
	return filepath.Join(append([]string{base}, p.Parts()...)...)
}
