package http

import (
	"io"
	"strings"
	"testing"

	"webstack/application/util/rule"
	iolib "webstack/lib/io"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func messageDecoder(input string, opts DecodeOptions) MessageDecoder {
	return MessageDecoder{r: iolib.NewUntilReader(strings.NewReader(input)), opts: opts}
}

type MessageDecoderTestSuite struct {
	suite.Suite
}

func TestMessageDecoderTestSuite(t *testing.T) {
	suite.Run(t, new(MessageDecoderTestSuite))
}

func (s *MessageDecoderTestSuite) TestReadLine() {
	ws := string(rule.Whitespaces)

	testcases := []struct {
		desc    string
		opts    DecodeOptions
		limit   uint
		input   string
		want    string
		wantErr error
	}{
		{desc: "CRLF stripped", input: "GET / HTTP/1.1\r\n", want: "GET / HTTP/1.1"},
		{desc: "limit reached", input: "GET / HTTP/1.1\r\n", limit: 4, wantErr: errLineTooLong},
		{desc: "sole LF rejected", input: "Host: a\n", wantErr: ErrMissingCRBeforeLF},
		{desc: "empty line without CR", input: "\n", wantErr: ErrMissingCRBeforeLF},
		{
			desc:  "sole LF accepted",
			opts:  DecodeOptions{AllowSoleLF: true},
			input: "Host: a\n",
			want:  "Host: a",
		},
		{desc: "bare CR becomes SP", input: "a\rb\r\n", want: "a b"},
		{
			desc:  "lenient whitespace normalized",
			opts:  DecodeOptions{LenientWhitespace: true},
			input: "a" + ws + "b\r\n",
			want:  "a" + strings.Repeat(" ", len(ws)) + "b",
		},
		{
			desc:  "lenient whitespace trimmed",
			opts:  DecodeOptions{LenientWhitespace: true},
			input: ws + "/path" + ws + "\r\n",
			want:  "/path",
		},
		{desc: "source exhausted", input: "no terminator", wantErr: io.EOF},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			d := messageDecoder(tc.input, tc.opts)

			b, err := d.readLine(tc.limit)
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}
			s.Require().NoError(err)
			s.Equal(tc.want, string(b))
		})
	}
}

func (s *MessageDecoderTestSuite) TestDecodeHeaders() {
	testcases := []struct {
		desc    string
		opts    DecodeOptions
		input   string
		want    []Field
		wantErr error
	}{
		{
			desc:  "fields in order",
			input: "Host: example.com\r\nContent-Length: 5\r\n\r\n",
			want:  []Field{NewField("Host", "example.com"), NewField("Content-Length", "5")},
		},
		{
			desc:  "repeated names kept",
			input: "Cookie: a=1\r\nCookie: b=2\r\n\r\n",
			want:  []Field{NewField("Cookie", "a=1"), NewField("Cookie", "b=2")},
		},
		{
			desc:  "no fields",
			input: "\r\n",
			want:  []Field{},
		},
		{
			desc:    "field line too long",
			opts:    DecodeOptions{MaxFieldLineLength: 8},
			input:   "User-Agent: curl/8.0\r\n\r\n",
			wantErr: ErrFieldLineTooLong,
		},
		{
			desc:    "too many fields",
			opts:    DecodeOptions{MaxFieldLines: 2},
			input:   "A: 1\r\nB: 2\r\nC: 3\r\n\r\n",
			wantErr: ErrTooManyFieldLines,
		},
		{
			desc:    "missing colon",
			input:   "Host example.com\r\n\r\n",
			wantErr: ErrMalformedFieldLine,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			d := messageDecoder(tc.input, tc.opts)

			var got []Field
			err := d.decodeHeaders(&got)
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}
			s.Require().NoError(err)
			s.Equal(tc.want, got)
		})
	}
}

func TestRequestDecoderDecode(t *testing.T) {
	raw := "" +
		"\r\n" +
		"POST /comments/?page=2 HTTP/1.1\r\n" +
		"Host: localhost:8000\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: 11\r\n" +
		"\r\n" +
		"text=hello!" +
		"GET / HTTP/1.1\r\n"

	rd := NewRequestDecoder(iolib.NewUntilReader(strings.NewReader(raw)), DefaultDecodeOptions)

	var req Request
	require.NoError(t, rd.Decode(&req))

	assert.Equal(t, RequestLine{Method: "POST", Target: "/comments/?page=2", Version: Version{1, 1}}, req.RequestLine)
	assert.Equal(t, []Field{
		NewField("Host", "localhost:8000"),
		NewField("Content-Type", "application/x-www-form-urlencoded"),
		NewField("Content-Length", "11"),
	}, req.Headers)

	// The body is not bounded by the decoder.
	body := make([]byte, 11)
	_, err := io.ReadFull(req.Body, body)
	require.NoError(t, err)
	assert.Equal(t, "text=hello!", string(body))

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(rest))
}

func TestRequestDecoderErrors(t *testing.T) {
	testcases := []struct {
		desc    string
		opts    DecodeOptions
		input   string
		wantErr error
	}{
		{
			desc:    "request line too long",
			opts:    DecodeOptions{MaxRequestLineLength: 16},
			input:   "GET /" + strings.Repeat("a", 32) + " HTTP/1.1\r\n\r\n",
			wantErr: ErrRequestLineTooLong,
		},
		{
			desc:    "double space",
			input:   "GET  / HTTP/1.1\r\n\r\n",
			wantErr: ErrMalformedRequestLine,
		},
		{
			desc:    "field line too long",
			opts:    DecodeOptions{MaxRequestLineLength: 64, MaxFieldLineLength: 8},
			input:   "GET / HTTP/1.1\r\nCookie: sessionid=abcdef\r\n\r\n",
			wantErr: ErrFieldLineTooLong,
		},
		{
			desc:    "connection dropped mid head",
			input:   "GET / HTTP/1.1\r\nHost: a",
			wantErr: io.EOF,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			rd := NewRequestDecoder(iolib.NewUntilReader(strings.NewReader(tc.input)), tc.opts)

			var req Request
			assert.ErrorIs(t, rd.Decode(&req), tc.wantErr)
		})
	}
}

func TestParseRequestLine(t *testing.T) {
	testcases := []struct {
		input   string
		want    RequestLine
		wantErr bool
	}{
		{input: "GET / HTTP/1.0", want: RequestLine{"GET", "/", Version{1, 0}}},
		{input: "DELETE /api/items/7/ HTTP/1.1", want: RequestLine{"DELETE", "/api/items/7/", Version{1, 1}}},
		{input: "OPTIONS * HTTP/1.1", want: RequestLine{"OPTIONS", "*", Version{1, 1}}},
		{input: "GET", wantErr: true},
		{input: " / HTTP/1.1", wantErr: true},
		{input: "GET  HTTP/1.1", wantErr: true},
		{input: "G{T / HTTP/1.1", wantErr: true},
		{input: "GET / HTTP/1.1 extra", wantErr: true},
		{input: "GET / HTTP/one", wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseRequestLine([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResponseDecoderDecode(t *testing.T) {
	raw := "" +
		"HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"<h1>Not Found</h1>"

	rd := NewResponseDecoder(iolib.NewUntilReader(strings.NewReader(raw)), DefaultDecodeOptions)

	var res Response
	require.NoError(t, rd.Decode(&res))

	assert.Equal(t, StatusLine{Version: Version{1, 1}, StatusCode: 404, ReasonPhrase: "Not Found"}, res.StatusLine)
	assert.Equal(t, []Field{
		NewField("Content-Type", "text/html; charset=utf-8"),
		NewField("Connection", "close"),
	}, res.Headers)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Not Found</h1>", string(body))
}

func TestResponseDecoderErrors(t *testing.T) {
	testcases := []struct {
		desc    string
		opts    DecodeOptions
		input   string
		wantErr error
	}{
		{
			desc:    "status line too long",
			opts:    DecodeOptions{MaxStatusLineLength: 12},
			input:   "HTTP/1.1 200 Everything Is Fine\r\n\r\n",
			wantErr: ErrStatusLineTooLong,
		},
		{
			desc:    "four digit code",
			input:   "HTTP/1.1 2000 OK\r\n\r\n",
			wantErr: ErrMalformedStatusLine,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			rd := NewResponseDecoder(iolib.NewUntilReader(strings.NewReader(tc.input)), tc.opts)

			var res Response
			assert.ErrorIs(t, rd.Decode(&res), tc.wantErr)
		})
	}
}

func TestParseStatusLine(t *testing.T) {
	testcases := []struct {
		input   string
		want    StatusLine
		wantErr bool
	}{
		{input: "HTTP/1.1 200 OK", want: StatusLine{Version{1, 1}, 200, "OK"}},
		{input: "HTTP/1.1 500 Internal Server Error", want: StatusLine{Version{1, 1}, 500, "Internal Server Error"}},
		{input: "HTTP/1.0 204 ", want: StatusLine{Version{1, 0}, 204, ""}},
		{input: "HTTP/1.1 302", want: StatusLine{Version{1, 1}, 302, ""}},
		{input: "HTTP/1.1", wantErr: true},
		{input: " 200 OK", wantErr: true},
		{input: "HTTP/1.1 OK", wantErr: true},
		{input: "HTTP/1.1 099 Low", wantErr: true},
		{input: "HTTP/1.1 20 Short", wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseStatusLine([]byte(tc.input))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
