package semantic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const defaultCharset = "utf-8"

var (
	ErrUnknownCharset = errors.New("unknown charset")

	charsetParam = regexp.MustCompile(`(?i);\s*charset=("[^"]*"|[^\s;]+)`)
)

// charsetOf returns the charset parameter of a Content-Type value.
func charsetOf(contentType string) (string, bool) {
	m := charsetParam.FindStringSubmatch(contentType)
	if m == nil {
		return "", false
	}
	return strings.Trim(m[1], `"`), true
}

func lookupCharset(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownCharset, "%q", name)
	}
	return enc, nil
}

func isUTF8(enc encoding.Encoding) bool {
	name, err := htmlindex.Name(enc)
	return err == nil && name == defaultCharset
}

// decodeText turns raw octets in charset into a string.
// Invalid input is replaced rather than rejected.
func decodeText(b []byte, charset string) (string, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return "", err
	}

	if isUTF8(enc) {
		if utf8.Valid(b) {
			return string(b), nil
		}
		return strings.ToValidUTF8(string(b), "\uFFFD"), nil
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrapf(err, "decoding %s", charset)
	}
	return string(out), nil
}

func encodeText(s string, charset string) ([]byte, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}

	if isUTF8(enc) {
		return []byte(s), nil
	}

	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding in %s", charset)
	}
	return []byte(out), nil
}
