package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	testcases := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{input: "HTTP/1.1", want: Version{1, 1}},
		{input: "HTTP/1.0", want: Version{1, 0}},
		{input: "HTTP/2.0", want: Version{2, 0}},
		{input: "http/1.1", wantErr: true},
		{input: "HTTP1.1", wantErr: true},
		{input: "HTTP/1", wantErr: true},
		{input: "HTTP/1.1.1", wantErr: true},
		{input: "HTTP/x.1", wantErr: true},
		{input: "HTTP/1.-1", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseVersion([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVersionText(t *testing.T) {
	for _, v := range []Version{{1, 1}, {1, 0}, {0, 9}, {10, 12}} {
		t.Run(v.String(), func(t *testing.T) {
			parsed, err := ParseVersion(v.Text())
			require.NoError(t, err)
			assert.Equal(t, v, parsed)
		})
	}
	assert.Equal(t, "HTTP/1.1", Version{1, 1}.String())
}

func TestNewStatusLine(t *testing.T) {
	line, err := NewStatusLine(Version{1, 1}, "418 I'm a teapot")
	require.NoError(t, err)
	assert.Equal(t, StatusLine{Version: Version{1, 1}, StatusCode: 418, ReasonPhrase: "I'm a teapot"}, line)

	_, err = NewStatusLine(Version{1, 1}, "OK")
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	testcases := []struct {
		desc    string
		input   string
		want    Field
		wantErr bool
	}{
		{
			desc:  "optional whitespace trimmed",
			input: "Content-Type: \t text/plain \t",
			want:  NewField("Content-Type", "text/plain"),
		},
		{
			desc:  "colon inside value",
			input: "Host: localhost:8000",
			want:  NewField("Host", "localhost:8000"),
		},
		{
			desc:  "name left unvalidated",
			input: "bad name: v",
			want:  NewField("bad name", "v"),
		},
		{desc: "no colon", input: "Host localhost", wantErr: true},
		{desc: "space before colon", input: "Host : localhost", wantErr: true},
		{desc: "tab before colon", input: "Host\t: localhost", wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := ParseField([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFieldText(t *testing.T) {
	f := NewField("Set-Cookie", "sessionid=abc; HttpOnly")
	assert.Equal(t, "Set-Cookie: sessionid=abc; HttpOnly", string(f.Text()))

	parsed, err := ParseField(f.Text())
	require.NoError(t, err)
	assert.Equal(t, f, parsed)
}
