package uri

import (
	"strings"

	"github.com/pkg/errors"
)

// Characters left as-is on top of the unreserved set.
const (
	SafeScriptName = "/"
	SafePathInfo   = "/;=,"
	SafeURIPath    = "/:@&+$,-_.!~*'()"
	SafeIRI        = "/#%[]=:;$&()+,!?*@'~"
)

func hex(c byte) (h [2]byte) {
	const hexSet = "0123456789ABCDEF"
	h[0] = hexSet[c>>4]
	h[1] = hexSet[c&0xF]
	return
}

func unhex(h [2]byte) (c byte) {
	return (hexToNum(h[0]) << 4) | hexToNum(h[1])
}

func hexToNum(h byte) byte {
	switch {
	case '0' <= h && h <= '9':
		return h - '0'
	case 'a' <= h && h <= 'f':
		return h - 'a' + 10
	case 'A' <= h && h <= 'F':
		return h - 'A' + 10
	}
	return 0
}

// Quote percent-encodes every byte of s except unreserved characters
// and the ones listed in safe.
func Quote(s string, safe string) string {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if shouldEscape(c, safe) {
			hex := hex(c)
			b.Write([]byte{'%', hex[0], hex[1]})
		} else {
			b.WriteByte(c)
		}
	}

	return b.String()
}

var ErrBadPercentEncoding = errors.New("percent encoding not properly applied")

// Unquote decodes percent-encoded octets, failing on malformed sequences.
func Unquote(s string) (string, error) {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if c == '%' {
			if idx+2 >= len(s) || !isPercentEncoded(s[idx:idx+3]) {
				bad := s[idx:min(len(s), idx+3)]
				return "", errors.Wrapf(ErrBadPercentEncoding, "%q", bad)
			}
			b.WriteByte(unhex([2]byte{s[idx+1], s[idx+2]}))
			idx += 2
			continue
		}
		b.WriteByte(c)
	}

	return b.String(), nil
}

// unquoteForm decodes a form component into raw octets.
// '+' becomes a space and malformed sequences are kept verbatim.
func unquoteForm(s string) string {
	b := new(strings.Builder)
	b.Grow(len(s))

	for idx := 0; idx < len(s); idx++ {
		switch c := s[idx]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && idx+2 < len(s) && isPercentEncoded(s[idx:idx+3]):
			b.WriteByte(unhex([2]byte{s[idx+1], s[idx+2]}))
			idx += 2
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func shouldEscape(c byte, safe string) bool {
	if isUnreserved(c) {
		return false
	}

	return strings.IndexByte(safe, c) < 0
}
