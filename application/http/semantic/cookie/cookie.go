// Package cookie parses Cookie request headers and renders Set-Cookie values.
package cookie

import (
	"iter"
	"strconv"
	"strings"
	"time"

	"webstack/application/util/rule"
)

// DeletedExpires is the expiry sent when a cookie is deleted.
const DeletedExpires = "Thu, 01-Jan-1970 00:00:00 GMT"

const expiresLayout = "Mon, 02-Jan-2006 15:04:05 GMT"

// FormatExpires formats t the way expires attributes are written.
func FormatExpires(t time.Time) string { return t.UTC().Format(expiresLayout) }

// Attribute names that never name a cookie.
var reserved = map[string]struct{}{
	"expires":  {},
	"path":     {},
	"comment":  {},
	"domain":   {},
	"max-age":  {},
	"secure":   {},
	"httponly": {},
	"version":  {},
	"samesite": {},
}

// Parse reads a Cookie header into a name to value map.
// Later duplicates replace earlier ones. A malformed pair makes the whole
// header unusable and an empty map is returned.
func Parse(raw string) map[string]string {
	jar := make(map[string]string)

	for part := range splitPairs(raw) {
		part = strings.TrimFunc(part, rule.IsWhitespace)
		if part == "" {
			continue
		}

		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return map[string]string{}
		}

		name = strings.TrimFunc(name, rule.IsWhitespace)
		value = strings.TrimFunc(value, rule.IsWhitespace)
		if !isLegalName(name) || !isLegalValue(value) {
			return map[string]string{}
		}

		if _, skip := reserved[strings.ToLower(name)]; skip {
			continue
		}

		jar[name] = string(rule.Unquote([]byte(value)))
	}

	return jar
}

// splitPairs splits on ';' outside of quoted values.
func splitPairs(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start, quoted := 0, false
		for i := 0; i < len(raw); i++ {
			switch c := raw[i]; {
			case quoted && c == '\\':
				i++
			case c == '"':
				quoted = !quoted
			case !quoted && c == ';':
				if !yield(raw[start:i]) {
					return
				}
				start = i + 1
			}
		}
		yield(raw[start:])
	}
}

func isLegalName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] != ':' && !rule.IsValidToken(name[i:i+1]) {
			return false
		}
	}
	return true
}

func isLegalValue(value string) bool {
	if strings.HasPrefix(value, `"`) {
		return len(value) >= 2 && strings.HasSuffix(value, `"`)
	}
	return !strings.ContainsAny(value, "\" ,\t")
}

// Cookie is a single Set-Cookie value.
// Expires is kept as the already formatted string.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  string
	MaxAge   *int
	Secure   bool
	HTTPOnly bool
	SameSite string
}

func (c *Cookie) String() string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(quoteValue(c.Value))

	attr := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString("; ")
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
	}

	attr("Path", c.Path)
	attr("Domain", c.Domain)
	attr("expires", c.Expires)
	if c.MaxAge != nil {
		attr("Max-Age", strconv.Itoa(*c.MaxAge))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	attr("SameSite", c.SameSite)

	return b.String()
}

func quoteValue(v string) string {
	if v == "" {
		return `""`
	}
	for i := 0; i < len(v); i++ {
		if !rule.IsCookieOctet(v[i]) {
			return rule.Quote(v)
		}
	}
	return v
}
