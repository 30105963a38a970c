package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHex(t *testing.T) {
	assert.Equal(t, [2]byte{'F', 'F'}, hex(0xFF))
	assert.Equal(t, [2]byte{'3', '1'}, hex(0x31))
}

func TestUnhex(t *testing.T) {
	assert.Equal(t, byte(0xFF), unhex([2]byte{'F', 'F'}))
	assert.Equal(t, byte(0xFF), unhex([2]byte{'f', 'f'}))
	assert.Equal(t, byte(0x31), unhex([2]byte{'3', '1'}))
}

func TestQuote(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		safe     string
		expected string
	}{
		{
			desc:     "unreserved only",
			input:    "abc-._~123",
			expected: "abc-._~123",
		},
		{
			desc:     "slash kept for script name",
			input:    "/PREFIX/",
			safe:     SafeScriptName,
			expected: "/PREFIX/",
		},
		{
			desc:     "space escaped",
			input:    "/hello world",
			safe:     SafeScriptName,
			expected: "/hello%20world",
		},
		{
			desc:     "path info keeps params",
			input:    "/a;b=c,d?",
			safe:     SafePathInfo,
			expected: "/a;b=c,d%3F",
		},
		{
			desc:     "non ascii bytes",
			input:    "/caf\xc3\xa9",
			safe:     SafeScriptName,
			expected: "/caf%C3%A9",
		},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, Quote(tc.input, tc.safe))
		})
	}
}

func TestUnquote(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			desc:     "plain",
			input:    "/somepath/",
			expected: "/somepath/",
		},
		{
			desc:     "escaped",
			input:    "/hello%20world%2f",
			expected: "/hello world/",
		},
		{
			desc:    "truncated",
			input:   "/bad%2",
			wantErr: true,
		},
		{
			desc:    "not hex",
			input:   "/bad%zz",
			wantErr: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := Unquote(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadPercentEncoding)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, s)
		})
	}
}
