package semantic

import (
	"bytes"
	"io"
	"iter"
	"net/url"

	"webstack/application/util/uri"

	"github.com/pkg/errors"
)

var (
	ErrBodyNotAllowed     = errors.New("response does not allow a body")
	ErrDisallowedRedirect = errors.New("unsafe redirect")
)

// HTTPResponse keeps its whole body in memory.
type HTTPResponse struct {
	base
	content []byte
	noBody  bool
}

var _ Response = (*HTTPResponse)(nil)

func NewHTTPResponse(content []byte, opts ...ResponseOption) *HTTPResponse {
	return &HTTPResponse{
		base:    newBase(200, opts),
		content: bytes.Clone(content),
	}
}

// NewTextResponse encodes text in the response charset.
func NewTextResponse(text string, opts ...ResponseOption) (*HTTPResponse, error) {
	r := NewHTTPResponse(nil, opts...)
	if err := r.SetText(text); err != nil {
		return nil, err
	}
	return r, nil
}

// NewNotModified builds a 304 without Content-Type that refuses any body.
func NewNotModified(opts ...ResponseOption) *HTTPResponse {
	r := NewHTTPResponse(nil, append(opts, WithStatus(304))...)
	r.headers.Del("Content-Type")
	r.noBody = true
	return r
}

func (r *HTTPResponse) Content() []byte { return r.content }

func (r *HTTPResponse) Len() int { return len(r.content) }

func (r *HTTPResponse) SetContent(b []byte) error {
	if r.noBody {
		return ErrBodyNotAllowed
	}
	r.content = bytes.Clone(b)
	return nil
}

func (r *HTTPResponse) SetText(s string) error {
	b, err := encodeText(s, r.Charset())
	if err != nil {
		return err
	}
	return r.SetContent(b)
}

// SetContentFrom reads src fully into the body. A closing src is registered
// before it is read, so it is released even when reading fails.
func (r *HTTPResponse) SetContentFrom(src io.Reader) error {
	if r.noBody {
		return ErrBodyNotAllowed
	}
	if c, ok := src.(io.Closer); ok {
		r.RegisterClosable(c)
	}

	b, err := io.ReadAll(src)
	if err != nil {
		return errors.Wrap(err, "reading response content")
	}
	r.content = b
	return nil
}

// Write appends to the body.
func (r *HTTPResponse) Write(p []byte) (int, error) {
	if r.noBody {
		return 0, ErrBodyNotAllowed
	}
	r.content = append(r.content, p...)
	return len(p), nil
}

func (r *HTTPResponse) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if len(r.content) > 0 {
			yield(r.content, nil)
		}
	}
}

var allowedRedirectSchemes = map[string]struct{}{"http": {}, "https": {}, "ftp": {}}

// RedirectResponse points the client at another location.
type RedirectResponse struct {
	*HTTPResponse
}

// NewRedirect builds a 302 to target.
func NewRedirect(target string, opts ...ResponseOption) (*RedirectResponse, error) {
	return newRedirect(302, target, opts)
}

// NewPermanentRedirect builds a 301 to target.
func NewPermanentRedirect(target string, opts ...ResponseOption) (*RedirectResponse, error) {
	return newRedirect(301, target, opts)
}

func newRedirect(code int, target string, opts []ResponseOption) (*RedirectResponse, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrapf(ErrDisallowedRedirect, "%q: %s", target, err)
	}
	if _, ok := allowedRedirectSchemes[u.Scheme]; u.Scheme != "" && !ok {
		return nil, errors.Wrapf(ErrDisallowedRedirect, "scheme %q", u.Scheme)
	}

	r := &RedirectResponse{HTTPResponse: NewHTTPResponse(nil, append(opts, WithStatus(code))...)}
	r.headers.Set("Location", uri.Quote(target, uri.SafeIRI))
	return r, nil
}

// URL is the Location the client is sent to.
func (r *RedirectResponse) URL() string {
	loc, _ := r.headers.Get("Location")
	return loc
}
