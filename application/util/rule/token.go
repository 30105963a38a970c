package rule

import (
	"bytes"
	"strings"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2-2
func IsValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if IsAlpha(c) || IsDigit(c) {
			continue
		}

		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+',
			'-', '.', '^', '_', '`', '|', '~':
			continue
		}

		return false
	}

	return true
}

// IsCookieOctet reports whether c may appear unquoted in a cookie value.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc6265#section-4.1.1
func IsCookieOctet(c byte) bool {
	switch {
	case c == 0x21:
		return true
	case 0x23 <= c && c <= 0x2B:
		return true
	case 0x2D <= c && c <= 0x3A:
		return true
	case 0x3C <= c && c <= 0x5B:
		return true
	case 0x5D <= c && c <= 0x7E:
		return true
	}
	return false
}

// Quote wraps s with double quotes, escaping quotes and backslashes inside.
func Quote(s string) string {
	b := new(strings.Builder)
	b.Grow(len(s) + 2)

	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')

	return b.String()
}

// Unquote unquotes token if it was quoted with double quotes.
// If quoted string includes escaped character, it will be un-escaped.
func Unquote(token []byte) []byte {
	quoted := false
	if len(token) >= 2 {
		// Unquote the token if it's wrapped with quotes.
		first, last := 0, len(token)-1
		if token[first] == '"' && token[last] == '"' {
			token = token[first+1 : last]
			quoted = true
		}
	}

	if !quoted {
		return bytes.Clone(token)
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(token)))
	for idx := 0; idx < len(token); idx++ {
		c := token[idx]
		if c == '\\' && idx+1 < len(token) {
			// Escaped character inside quote.
			idx++
			c = token[idx]
		}
		buf.WriteByte(c)
	}

	return buf.Bytes()
}
