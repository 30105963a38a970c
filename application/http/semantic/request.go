package semantic

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"webstack/application/http/semantic/cookie"
	"webstack/application/util/rule"
	"webstack/application/util/uri"
	"webstack/conf"
	iolib "webstack/lib/io"

	"github.com/pkg/errors"
)

var (
	ErrMultipartUnsupported   = errors.New("multipart form parsing is not supported")
	ErrUnsupportedContentType = errors.New("unsupported request content type")
)

type formData struct {
	post  *MultiValue[string]
	files *MultiValue[io.ReadCloser]
}

// Request is one inbound request. GET, POST, FILES, COOKIES and the body
// are computed on first access and kept afterwards.
// A Request belongs to one worker and is not safe for concurrent use.
type Request struct {
	env      Environ
	settings *conf.Settings
	ctx      context.Context

	method   string
	path     string
	headers  *Headers
	encoding string

	stream      *iolib.LimitedStream
	readStarted bool
	bodyErr     error // first failure of Body, returned on every later call.
	closed      bool

	get     lazy[*MultiValue[string]]
	cookies lazy[map[string]string]
	body    lazy[[]byte]
	form    lazy[formData]
}

// NewRequest validates env and wraps it. A nil settings uses [conf.Default].
func NewRequest(env Environ, settings *conf.Settings) (*Request, error) {
	if settings == nil {
		defaults := conf.Default()
		settings = &defaults
	}

	if !rule.IsValidToken(env.Method) {
		return nil, RequestParse(nil, "invalid method %q", env.Method)
	}

	headers := env.Headers
	if headers == nil {
		headers = NewHeaders()
	}
	for name, value := range headers.All() {
		if !utf8.ValidString(value) || rule.ContainsCTL(value) {
			return nil, RequestParse(nil, "invalid value for header %q", name)
		}
	}

	ctx := env.Context
	if ctx == nil {
		ctx = context.Background()
	}

	r := &Request{
		env:      env,
		settings: settings,
		ctx:      ctx,
		method:   strings.ToUpper(env.Method),
		path:     joinPath(env.ScriptName, env.PathInfo),
		headers:  headers,
	}

	body := env.Body
	if body == nil {
		body = bytes.NewReader(nil)
	}
	r.stream = iolib.NewLimitedStream(body, r.ContentLength(), iolib.WithMaxBuffer(settings.MaxStreamBuffer))

	return r, nil
}

// joinPath escapes the script prefix and path info and joins them with a single '/'.
func joinPath(scriptName, pathInfo string) string {
	if scriptName == "" {
		scriptName = "/"
	}
	if pathInfo == "" {
		pathInfo = "/"
	}

	prefix := strings.TrimRight(uri.Quote(scriptName, uri.SafeScriptName), "/")
	return prefix + "/" + strings.TrimPrefix(uri.Quote(pathInfo, uri.SafePathInfo), "/")
}

func (r *Request) Method() string      { return r.method }
func (r *Request) Path() string        { return r.path }
func (r *Request) ScriptName() string  { return r.env.ScriptName }
func (r *Request) QueryString() string { return r.env.QueryString }
func (r *Request) RemoteAddr() string  { return r.env.RemoteAddr }

// PathInfo is the part of the path routing matches against.
func (r *Request) PathInfo() string {
	if r.env.PathInfo == "" {
		return "/"
	}
	return r.env.PathInfo
}

func (r *Request) Settings() *conf.Settings { return r.settings }

func (r *Request) Context() context.Context { return r.ctx }

// WithValue attaches a value to the request context.
func (r *Request) WithValue(key, value any) {
	r.ctx = context.WithValue(r.ctx, key, value)
}

func (r *Request) Headers() *Headers { return r.headers }

func (r *Request) Header(name string) (string, bool) { return r.headers.Get(name) }

func (r *Request) ContentType() string {
	ct, _ := r.headers.Get("Content-Type")
	return ct
}

// ContentLength is zero when the header is absent or invalid.
func (r *Request) ContentLength() int64 {
	v, ok := r.headers.Get("Content-Length")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (r *Request) IsSecure() bool {
	if p := r.settings.SecureProxySSLHeader; p != nil {
		if v, ok := r.headers.Get(p.Name); ok {
			return v == p.Value
		}
	}
	return r.env.Secure
}

func (r *Request) Scheme() string {
	if r.IsSecure() {
		return "https"
	}
	return "http"
}

// Port prefers X-Forwarded-Port when the settings allow it.
func (r *Request) Port() string {
	if r.settings.UseXForwardedPort {
		if v, ok := r.headers.Get("X-Forwarded-Port"); ok && v != "" {
			return v
		}
	}
	return r.env.ServerPort
}

// Host prefers the Host header and omits the port when it is the scheme default.
func (r *Request) Host() string {
	if v, ok := r.headers.Get("Host"); ok && v != "" {
		return v
	}

	host, port := r.env.ServerName, r.Port()
	defaultPort := "80"
	if r.IsSecure() {
		defaultPort = "443"
	}
	if port == "" || port == defaultPort {
		return host
	}
	return host + ":" + port
}

// FullPath is the path with the query string.
// forceSlash appends a trailing '/' to the path when missing.
func (r *Request) FullPath(forceSlash bool) string {
	path := r.path
	if forceSlash && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	if qs := r.env.QueryString; qs != "" {
		path += "?" + uri.Quote(qs, uri.SafeIRI)
	}
	return path
}

func (r *Request) RawURI() string {
	return r.Scheme() + "://" + r.Host() + r.FullPath(false)
}

// Encoding is the charset used to decode GET and POST.
func (r *Request) Encoding() string {
	if r.encoding != "" {
		return r.encoding
	}
	if cs, ok := charsetOf(r.ContentType()); ok {
		if _, err := lookupCharset(cs); err == nil {
			return cs
		}
	}
	return defaultCharset
}

// SetEncoding overrides the charset and drops parsed GET and POST.
func (r *Request) SetEncoding(name string) error {
	if _, err := lookupCharset(name); err != nil {
		return err
	}

	r.encoding = name
	r.get.reset()
	r.form.reset()
	return nil
}

func (r *Request) GET() (*MultiValue[string], error) {
	return r.get.get(func() (*MultiValue[string], error) {
		return r.parseForm(r.env.QueryString)
	})
}

func (r *Request) COOKIES() map[string]string {
	jar, _ := r.cookies.get(func() (map[string]string, error) {
		raw, _ := r.headers.Get("Cookie")
		return cookie.Parse(raw), nil
	})
	return jar
}

func (r *Request) POST() (*MultiValue[string], error) {
	form, err := r.form.get(r.loadForm)
	return form.post, err
}

// FILES is always empty until upload parsing exists, but is still closed with the request.
func (r *Request) FILES() (*MultiValue[io.ReadCloser], error) {
	form, err := r.form.get(r.loadForm)
	return form.files, err
}

// Body reads the whole body once. It fails when the stream was already read
// directly, and keeps failing once a read of the body failed.
func (r *Request) Body() ([]byte, error) {
	return r.body.get(func() ([]byte, error) {
		if r.bodyErr != nil {
			return nil, r.bodyErr
		}
		if r.readStarted {
			return nil, RequestParse(nil, "body accessed after reading from the request stream")
		}

		r.readStarted = true
		b, err := r.stream.ReadAll()
		if err != nil {
			r.bodyErr = RequestParse(err, "reading request body")
			return nil, r.bodyErr
		}

		r.stream = iolib.NewLimitedStream(bytes.NewReader(b), int64(len(b)))
		return b, nil
	})
}

func (r *Request) Read(p []byte) (int, error) {
	r.readStarted = true
	return r.stream.Read(p)
}

func (r *Request) ReadLine(size int) ([]byte, error) {
	r.readStarted = true
	return r.stream.ReadLine(size)
}

// Close releases every uploaded file. Calling it again does nothing.
func (r *Request) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if !r.form.loaded {
		return nil
	}

	var first error
	for _, files := range r.form.value.files.Lists() {
		for _, f := range files {
			if err := f.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (r *Request) loadForm() (formData, error) {
	empty := formData{post: NewMultiValue[string](), files: NewMultiValue[io.ReadCloser]()}

	if r.method != "POST" {
		return empty, nil
	}

	if r.bodyErr != nil {
		return formData{}, r.bodyErr
	}

	// The stream was consumed directly, nothing is left to parse.
	if r.readStarted && !r.body.loaded {
		return empty, nil
	}

	ct := r.ContentType()
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		return formData{}, RequestParse(ErrMultipartUnsupported, "parsing %q", ct)

	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		body, err := r.Body()
		if err != nil {
			return formData{}, err
		}
		post, err := r.parseForm(string(body))
		if err != nil {
			return formData{}, err
		}
		empty.post = post
		return empty, nil

	default:
		body, err := r.Body()
		if err != nil {
			return formData{}, err
		}
		if len(body) > 0 {
			return formData{}, RequestParse(ErrUnsupportedContentType, "%q", ct)
		}
		return empty, nil
	}
}

func (r *Request) parseForm(qs string) (*MultiValue[string], error) {
	charset := r.Encoding()
	mv := NewMultiValue[string]()

	for _, pair := range uri.ParseQuery(qs) {
		key, err := decodeText([]byte(pair.Key), charset)
		if err != nil {
			return nil, RequestParse(err, "decoding form key")
		}
		value, err := decodeText([]byte(pair.Value), charset)
		if err != nil {
			return nil, RequestParse(err, "decoding form value")
		}
		mv.Append(key, value)
	}

	return mv, nil
}
