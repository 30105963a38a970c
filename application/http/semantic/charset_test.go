package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharsetOf(t *testing.T) {
	testcases := []struct {
		desc        string
		contentType string
		expected    string
		ok          bool
	}{
		{desc: "no parameter", contentType: "text/html", ok: false},
		{desc: "plain parameter", contentType: "text/html; charset=utf-8", expected: "utf-8", ok: true},
		{desc: "quoted parameter", contentType: `text/html; charset="latin1"`, expected: "latin1", ok: true},
		{desc: "upper case name", contentType: "text/html;CHARSET=ISO-8859-1; q=1", expected: "ISO-8859-1", ok: true},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			cs, ok := charsetOf(tc.contentType)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, cs)
		})
	}
}

func TestDecodeText(t *testing.T) {
	s, err := decodeText([]byte("caf\xe9"), "latin1")
	require.NoError(t, err)
	assert.Equal(t, "café", s)

	s, err = decodeText([]byte("caf\xc3\xa9"), "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "café", s)

	s, err = decodeText([]byte("a\xffb"), "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "a\uFFFDb", s)

	_, err = decodeText([]byte("x"), "no-such-charset")
	assert.ErrorIs(t, err, ErrUnknownCharset)
}

func TestEncodeText(t *testing.T) {
	b, err := encodeText("café", "iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("caf\xe9"), b)

	b, err = encodeText("café", "UTF-8")
	require.NoError(t, err)
	assert.Equal(t, []byte("café"), b)
}
