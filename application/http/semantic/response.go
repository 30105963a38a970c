package semantic

import (
	"io"
	"iter"
	"os"
	"time"

	"webstack/application/http/semantic/cookie"
	"webstack/application/http/semantic/status"
	"webstack/conf"

	"github.com/benbjohnson/clock"
)

// Response is what views and middleware hand back to the pipeline.
type Response interface {
	StatusCode() int
	ReasonPhrase() string
	Headers() *Headers
	Cookies() *cookie.Jar
	Charset() string

	// Chunks yields the body. Streaming variants yield it only once.
	Chunks() iter.Seq2[[]byte, error]

	RegisterClosable(c io.Closer)
	// Close releases every registered closable once.
	Close() error

	SetCookie(name, value string, opts ...CookieOption)
	DeleteCookie(name string, opts ...CookieOption)
}

// Renderable responses produce their content in a separate step.
type Renderable interface {
	Response
	Render() (Response, error)
}

// FileStreamer exposes a file that can be sent without copying through user space.
type FileStreamer interface {
	Response
	FileToStream() *os.File
}

// Streaming responses expose their chunk source instead of buffered content.
type Streaming interface {
	Response
	StreamingContent() iter.Seq2[[]byte, error]
	SetStreamingContent(chunks iter.Seq2[[]byte, error])
}

type responseConfig struct {
	status      int
	reason      string
	contentType string
	charset     string
	settings    *conf.Settings
	clock       clock.Clock
}

type ResponseOption func(*responseConfig)

func WithStatus(code int) ResponseOption { return func(c *responseConfig) { c.status = code } }

// WithReason overrides the reason phrase looked up from the status code.
func WithReason(reason string) ResponseOption { return func(c *responseConfig) { c.reason = reason } }

func WithContentType(ct string) ResponseOption {
	return func(c *responseConfig) { c.contentType = ct }
}

func WithCharset(charset string) ResponseOption {
	return func(c *responseConfig) { c.charset = charset }
}

// WithDefaults takes the default content type and charset from s.
func WithDefaults(s *conf.Settings) ResponseOption {
	return func(c *responseConfig) { c.settings = s }
}

// WithClock sets the clock used for cookie expiry.
func WithClock(clk clock.Clock) ResponseOption { return func(c *responseConfig) { c.clock = clk } }

// base carries what every response variant shares.
type base struct {
	status  int
	reason  string
	headers *Headers
	cookies *cookie.Jar

	charset        string
	defaultCharset string

	clock     clock.Clock
	closables []io.Closer
	closed    bool
}

func newBase(defaultStatus int, opts []ResponseOption) base {
	cfg := responseConfig{status: defaultStatus}
	for _, opt := range opts {
		opt(&cfg)
	}

	settings := cfg.settings
	if settings == nil {
		defaults := conf.Default()
		settings = &defaults
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}

	b := base{
		status:         cfg.status,
		reason:         cfg.reason,
		headers:        NewHeaders(),
		cookies:        cookie.NewJar(),
		charset:        cfg.charset,
		defaultCharset: settings.DefaultCharset,
		clock:          cfg.clock,
	}

	ct := cfg.contentType
	if ct == "" {
		ct = settings.DefaultContentType + "; charset=" + b.Charset()
	}
	b.headers.Set("Content-Type", ct)

	return b
}

func (b *base) StatusCode() int { return b.status }

func (b *base) SetStatusCode(code int) { b.status = code }

func (b *base) ReasonPhrase() string {
	if b.reason != "" {
		return b.reason
	}
	return status.Text(b.status)
}

func (b *base) Headers() *Headers { return b.headers }

func (b *base) Cookies() *cookie.Jar { return b.cookies }

// Charset is the explicit charset, else the Content-Type charset, else the default.
func (b *base) Charset() string {
	if b.charset != "" {
		return b.charset
	}
	if ct, ok := b.headers.Get("Content-Type"); ok {
		if cs, ok := charsetOf(ct); ok {
			return cs
		}
	}
	return b.defaultCharset
}

func (b *base) SetCharset(charset string) { b.charset = charset }

func (b *base) RegisterClosable(c io.Closer) { b.closables = append(b.closables, c) }

func (b *base) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	for _, c := range b.closables {
		// Errors from closables are not reported.
		_ = c.Close()
	}
	b.closables = nil

	return nil
}

type cookieParams struct {
	maxAge     *int
	expires    time.Time
	expiresRaw string
	path       *string
	domain     string
	secure     bool
	httpOnly   bool
	sameSite   string
}

type CookieOption func(*cookieParams)

func CookieMaxAge(seconds int) CookieOption {
	return func(p *cookieParams) { p.maxAge = &seconds }
}

// CookieExpires sets the expiry from a time; the max age is derived from it.
func CookieExpires(t time.Time) CookieOption {
	return func(p *cookieParams) { p.expires, p.expiresRaw = t, "" }
}

// CookieExpiresString sets an already formatted expiry.
func CookieExpiresString(s string) CookieOption {
	return func(p *cookieParams) { p.expiresRaw, p.expires = s, time.Time{} }
}

// CookiePath defaults to "/". An empty path omits the attribute.
func CookiePath(path string) CookieOption { return func(p *cookieParams) { p.path = &path } }
func CookieDomain(domain string) CookieOption { return func(p *cookieParams) { p.domain = domain } }
func CookieSecure() CookieOption { return func(p *cookieParams) { p.secure = true } }
func CookieHTTPOnly() CookieOption { return func(p *cookieParams) { p.httpOnly = true } }
func CookieSameSite(v string) CookieOption { return func(p *cookieParams) { p.sameSite = v } }

func (b *base) SetCookie(name, value string, opts ...CookieOption) {
	var p cookieParams
	for _, opt := range opts {
		opt(&p)
	}

	now := b.clock.Now()
	c := cookie.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.domain,
		Secure:   p.secure,
		HTTPOnly: p.httpOnly,
		SameSite: p.sameSite,
	}
	if p.path != nil {
		c.Path = *p.path
	}

	maxAge := p.maxAge
	switch {
	case !p.expires.IsZero():
		// One extra second makes the formatted expiry match the requested one.
		delta := p.expires.Sub(now) + time.Second
		seconds := max(0, int(delta/time.Second))
		maxAge = &seconds
	case p.expiresRaw != "":
		c.Expires = p.expiresRaw
	}

	if maxAge != nil {
		c.MaxAge = maxAge
		if c.Expires == "" {
			c.Expires = cookie.FormatExpires(now.Add(time.Duration(*maxAge) * time.Second))
		}
	}

	b.cookies.Set(c)
}

// DeleteCookie makes the client drop name.
func (b *base) DeleteCookie(name string, opts ...CookieOption) {
	opts = append(opts, CookieMaxAge(0), CookieExpiresString(cookie.DeletedExpires))
	b.SetCookie(name, "", opts...)
}
