package server

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"webstack/application/http"
	"webstack/application/http/semantic"
	"webstack/application/http/semantic/status"
	"webstack/application/util/uri"
	iolib "webstack/lib/io"
	"webstack/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Layout of the Date header.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

var (
	ErrIdleTimeoutExceeded = errors.New("idle timeout exceeded")
	ErrHeaderWritten       = errors.New("response header was already written")

	errTransferCoding = errors.New("transfer codings are not supported")
	errContentLength  = errors.New("invalid content length")
	errContentTooLong = errors.New("content length exceeds limit")
)

// conn serves a single request, then closes.
type conn struct {
	con transport.Conn
	r   *iolib.UntilReader

	handler *Handler
	clock   clock.Clock

	logger *slog.Logger

	opts Options
}

func (c *conn) start(ctx context.Context) {
	defer func() {
		c.logger.Debug("closing connection")
		if err := c.con.Close(); err != nil {
			c.logger.Error("error when closing connection", "error", err)
		}
	}()

	err := c.serve(ctx)

	switch {
	case errors.Is(err, context.Canceled):
		// no-op.
	case errors.Is(err, ErrIdleTimeoutExceeded):
		c.logger.Info("idle timeout exceeded")
	case errors.Is(err, transport.ErrConnClosed):
		c.logger.Info("connection closed by peer")
	case err != nil:
		c.logger.Error("serving connection", "error", err)
	}
}

func (c *conn) serve(ctx context.Context) error {
	if err := c.waitForRequest(ctx); err != nil {
		return errors.Wrap(err, "waiting for request")
	}

	env, err := c.readRequest(ctx)
	if err != nil {
		if errors.Is(err, transport.ErrConnClosed) {
			return err
		}
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-9
		se := toStatusError(err)
		c.logger.Info("rejecting request", "status", se.Status.Code, "error", err)
		return c.writeStatus(se)
	}

	c.logger.Debug("serving request", "method", env.Method, "path", env.PathInfo)

	w := &responseWriter{conn: c, enc: http.NewResponseEncoder(c.con, c.opts.Encode)}
	if err := c.handler.Serve(env, w); err != nil {
		if w.wroteHeader {
			return errors.Wrap(err, "serving request")
		}

		c.logger.Error("handler failed before responding", "error", err)
		return c.writeStatus(status.NewError(err, status.InternalServerError))
	}

	return nil
}

func (c *conn) waitForRequest(ctx context.Context) error {
	timeout := c.opts.Timeout.IdleTimeout

	signal := make(chan error, 1)
	go func() {
		if timeout > 0 {
			c.con.SetReadDeadLine(c.clock.Now().Add(timeout))
		}

		_, err := c.con.Read(nil)
		if errors.Is(err, transport.ErrDeadLineExceeded) {
			err = ErrIdleTimeoutExceeded
		}

		signal <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-signal:
		return err
	}
}

func (c *conn) readRequest(ctx context.Context) (semantic.Environ, error) {
	if timeout := c.opts.Timeout.ReadTimeout; timeout > 0 {
		c.con.SetReadDeadLine(c.clock.Now().Add(timeout))
	}

	var raw http.Request
	if err := http.NewRequestDecoder(c.r, c.opts.Decode).Decode(&raw); err != nil {
		return semantic.Environ{}, err
	}

	return c.environ(ctx, raw)
}

// environ describes raw the way the request model expects it.
func (c *conn) environ(ctx context.Context, raw http.Request) (semantic.Environ, error) {
	headers := semantic.HeadersFrom(raw.Headers)

	target, authority := originForm(raw.Target)
	if authority != "" && !headers.Has("Host") {
		headers.Set("Host", authority)
	}

	rawPath, query, _ := strings.Cut(target, "?")
	pathInfo, err := uri.Unquote(rawPath)
	if err != nil {
		return semantic.Environ{}, status.NewError(errors.Wrap(err, "decoding path"), status.BadRequest)
	}

	if headers.Has("Transfer-Encoding") {
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.1-11
		return semantic.Environ{}, status.NewError(errTransferCoding, status.NotImplemented)
	}

	if v, ok := headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		switch {
		case err != nil || n < 0:
			// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.5
			return semantic.Environ{}, status.NewError(errContentLength, status.BadRequest)
		case c.opts.MaxContentLen > 0 && n > c.opts.MaxContentLen:
			return semantic.Environ{}, status.NewError(errContentTooLong, status.ContentTooLarge)
		}
	}

	serverName, serverPort := transport.HostPort(c.con.LocalAddr())

	var remoteAddr string
	if addr := c.con.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}

	return semantic.Environ{
		Method:      raw.Method,
		PathInfo:    pathInfo,
		QueryString: query,
		Headers:     headers,
		ServerName:  serverName,
		ServerPort:  serverPort,
		RemoteAddr:  remoteAddr,
		Body:        raw.Body,
		Context:     ctx,
	}, nil
}

// originForm strips the scheme and authority of an absolute-form target.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.2
func originForm(target string) (string, string) {
	if strings.HasPrefix(target, "/") {
		return target, ""
	}

	_, rest, ok := strings.Cut(target, "://")
	if !ok {
		return target, ""
	}

	i := strings.IndexAny(rest, "/?")
	switch {
	case i < 0:
		return "/", rest
	case rest[i] == '?':
		return "/" + rest[i:], rest[:i]
	}
	return rest[i:], rest[:i]
}

func (c *conn) setWriteDeadLine() {
	if timeout := c.opts.Timeout.WriteTimeout; timeout > 0 {
		c.con.SetWriteDeadLine(c.clock.Now().Add(timeout))
	}
}

// writeStatus answers with a bodiless response carrying only se's status.
func (c *conn) writeStatus(se status.Error) error {
	c.setWriteDeadLine()

	line := http.StatusLine{
		Version:      http.Version{1, 1},
		StatusCode:   se.Status.Code,
		ReasonPhrase: se.Status.ReasonPhrase,
	}
	headers := c.connHeaders([]http.Field{http.NewField("Content-Length", "0")})

	if err := http.NewResponseEncoder(c.con, c.opts.Encode).EncodeHead(line, headers); err != nil {
		return errors.Wrap(err, "writing status response")
	}
	return nil
}

// connHeaders adds the headers owned by the connection.
func (c *conn) connHeaders(fields []http.Field) []http.Field {
	out := make([]http.Field, 0, len(fields)+2)
	hasDate := false
	for _, f := range fields {
		switch {
		case strings.EqualFold(string(f.Name), "Connection"):
			continue
		case strings.EqualFold(string(f.Name), "Date"):
			hasDate = true
		}
		out = append(out, f)
	}

	if !hasDate {
		// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-6.6.1-6
		out = append(out, http.NewField("Date", c.clock.Now().UTC().Format(dateLayout)))
	}
	return append(out, http.NewField("Connection", "close"))
}

type responseWriter struct {
	conn        *conn
	enc         *http.ResponseEncoder
	wroteHeader bool
}

var (
	_ ResponseWriter = (*responseWriter)(nil)
	_ FileSender     = (*responseWriter)(nil)
)

func (w *responseWriter) WriteHeader(statusText string, headers []http.Field) error {
	if w.wroteHeader {
		return ErrHeaderWritten
	}

	line, err := http.NewStatusLine(http.Version{1, 1}, statusText)
	if err != nil {
		return errors.Wrapf(err, "parsing status %q", statusText)
	}

	w.conn.setWriteDeadLine()
	w.wroteHeader = true

	return w.enc.EncodeHead(line, w.conn.connHeaders(headers))
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		return 0, errors.New("writing body before header")
	}
	return w.conn.con.Write(p)
}

func (w *responseWriter) SendFile(f *os.File, n int64) (int64, error) {
	fc, ok := w.conn.con.(transport.FileConn)
	if !ok || !w.wroteHeader {
		return 0, transport.ErrSendFileUnsupported
	}
	return fc.SendFile(f, n)
}

// toStatusError converts an error returned while reading a request
// into [status.Error]. Unknown errors become [status.BadRequest].
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-9
func toStatusError(err error) status.Error {
	if se := new(status.Error); errors.As(err, se) {
		return *se
	}

	switch {
	case errors.Is(err, transport.ErrDeadLineExceeded):
		return status.NewError(nil, status.RequestTimeout)
	case errors.Is(err, http.ErrRequestLineTooLong):
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-4
		return status.NewError(err, status.RequestURITooLong)
	case errors.Is(err, http.ErrFieldLineTooLong), errors.Is(err, http.ErrTooManyFieldLines):
		// Reference: https://datatracker.ietf.org/doc/html/rfc6585#section-5
		return status.NewError(err, status.HeaderFieldsTooLarge)
	}

	return status.NewError(err, status.BadRequest)
}
