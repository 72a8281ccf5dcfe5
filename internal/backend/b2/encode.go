package b2

import "net/url"

// The characters B2 accepts unescaped in file names. The documented set is
// wrong; this is the set the service actually requires.
const unescaped = "/._-~!$'()*;=:@"

func isUnescaped(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return true
	}
	for i := 0; i < len(unescaped); i++ {
		if unescaped[i] == c {
			return true
		}
	}
	return false
}

const upperhex = "0123456789ABCDEF"

// percentEncode escapes a file name for use in a URL or header per the B2
// rules.
func percentEncode(value string) string {
	escape := 0
	for i := 0; i < len(value); i++ {
		if !isUnescaped(value[i]) {
			escape++
		}
	}
	if escape == 0 {
		return value
	}

	buf := make([]byte, 0, len(value)+2*escape)
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isUnescaped(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperhex[c>>4], upperhex[c&0xf])
	}
	return string(buf)
}

// percentDecode reverses percentEncode. A `+` decodes to a space.
func percentDecode(value string) (string, error) {
	return url.QueryUnescape(value)
}
