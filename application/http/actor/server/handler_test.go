package server

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webstack/application/http"
	"webstack/application/http/dispatch"
	"webstack/application/http/semantic"
	"webstack/conf"
	"webstack/transport"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// recordWriter keeps everything a handler writes.
type recordWriter struct {
	status  string
	headers []http.Field
	body    bytes.Buffer

	headerErr error
}

func (w *recordWriter) WriteHeader(status string, headers []http.Field) error {
	if w.headerErr != nil {
		return w.headerErr
	}
	w.status, w.headers = status, headers
	return nil
}

func (w *recordWriter) Write(p []byte) (int, error) { return w.body.Write(p) }

func (w *recordWriter) values(name string) []string {
	var out []string
	for _, f := range w.headers {
		if strings.EqualFold(string(f.Name), name) {
			out = append(out, string(f.Value))
		}
	}
	return out
}

// fileWriter also records files handed over for zero-copy sending.
type fileWriter struct {
	recordWriter
	sent    int64
	sendErr error
}

func (w *fileWriter) SendFile(f *os.File, n int64) (int64, error) {
	if w.sendErr != nil {
		return 0, w.sendErr
	}
	w.sent = n
	return n, nil
}

// trackingReader reports whether a body was closed.
type trackingReader struct {
	*strings.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

type HandlerTestSuite struct {
	suite.Suite

	settings conf.Settings
	router   *dispatch.Router
	registry dispatch.Registry
	file     string
	stream   *trackingReader
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.settings = conf.Default()
	s.registry = dispatch.Registry{}
	s.router = dispatch.NewRouter(conf.UnmatchedNotFound)

	s.file = filepath.Join(s.T().TempDir(), "index.html")
	s.Require().NoError(os.WriteFile(s.file, []byte("<p>static</p>"), 0o600))

	s.stream = &trackingReader{Reader: strings.NewReader("streamed body")}

	s.router.Handle("/hello/", func(r *semantic.Request, _ []string, _ map[string]string) (semantic.Response, error) {
		resp, err := semantic.NewTextResponse("hello", semantic.WithDefaults(r.Settings()))
		if err != nil {
			return nil, err
		}
		resp.Headers().Set("X-Frame-Options", "DENY")
		resp.SetCookie("session", "abc", semantic.CookieHTTPOnly())
		resp.SetCookie("theme", "dark")
		return resp, nil
	})
	s.router.Handle("/fail/", func(*semantic.Request, []string, map[string]string) (semantic.Response, error) {
		return nil, errors.New("database is down")
	})
	s.router.Handle("/bad-header/", func(r *semantic.Request, _ []string, _ map[string]string) (semantic.Response, error) {
		resp := semantic.NewHTTPResponse([]byte("x"), semantic.WithDefaults(r.Settings()))
		resp.Headers().Set("X-Injected", "a\r\nSet-Cookie: evil=1")
		return resp, nil
	})
	s.router.Handle("/file/", func(r *semantic.Request, _ []string, _ map[string]string) (semantic.Response, error) {
		f, err := os.Open(s.file)
		if err != nil {
			return nil, err
		}
		return semantic.NewFileResponse(f, semantic.WithDefaults(r.Settings())), nil
	})
	s.router.Handle("/stream/", func(r *semantic.Request, _ []string, _ map[string]string) (semantic.Response, error) {
		return semantic.NewFileResponse(s.stream, semantic.WithDefaults(r.Settings())), nil
	})
}

func (s *HandlerTestSuite) handler() *Handler {
	pipeline := dispatch.New(&s.settings, s.router, slog.New(slog.DiscardHandler), dispatch.WithRegistry(s.registry))
	return NewHandler(pipeline, &s.settings, slog.New(slog.DiscardHandler))
}

func environ(method, path string) semantic.Environ {
	return semantic.Environ{
		Method:     method,
		PathInfo:   path,
		Headers:    semantic.NewHeaders(),
		ServerName: "testserver",
		ServerPort: "80",
		RemoteAddr: "10.0.0.1:5000",
		Body:       bytes.NewReader(nil),
		Context:    context.Background(),
	}
}

func (s *HandlerTestSuite) TestServe() {
	w := &recordWriter{}
	s.Require().NoError(s.handler().Serve(environ("GET", "/hello/"), w))

	s.Equal("200 OK", w.status)
	s.Equal([]string{"text/html; charset=utf-8"}, w.values("Content-Type"))
	s.Equal([]string{"DENY"}, w.values("X-Frame-Options"))
	s.Equal([]string{"session=abc; Path=/; HttpOnly", "theme=dark; Path=/"}, w.values("Set-Cookie"))
	s.Equal("hello", w.body.String())

	// Response headers come first, cookies last.
	s.Equal("Set-Cookie", string(w.headers[len(w.headers)-1].Name))
}

func (s *HandlerTestSuite) TestServeNotFound() {
	w := &recordWriter{}
	s.Require().NoError(s.handler().Serve(environ("GET", "/missing/"), w))

	s.Equal("404 Not Found", w.status)
	s.Contains(w.body.String(), "<h1>Not Found</h1>")
}

func (s *HandlerTestSuite) TestServeUncaught() {
	w := &recordWriter{}
	s.Require().NoError(s.handler().Serve(environ("GET", "/fail/"), w))

	s.Equal("500 Internal Server Error", w.status)
	s.Equal("<h1>Server Error (500)</h1>", w.body.String())
}

func (s *HandlerTestSuite) TestServeInvalidResponseHeader() {
	w := &recordWriter{}
	s.Require().NoError(s.handler().Serve(environ("GET", "/bad-header/"), w))

	s.Equal("500 Internal Server Error", w.status)
	s.Empty(w.values("X-Injected"))
}

func (s *HandlerTestSuite) TestServeBadRequest() {
	testcases := []struct {
		desc string
		env  func(env *semantic.Environ)
	}{
		{
			desc: "invalid method",
			env:  func(env *semantic.Environ) { env.Method = "GE T" },
		},
		{
			desc: "header is not utf-8",
			env:  func(env *semantic.Environ) { env.Headers.Set("X-Name", "caf\xe9") },
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			env := environ("GET", "/hello/")
			tc.env(&env)

			w := &recordWriter{}
			s.Require().NoError(s.handler().Serve(env, w))

			s.Equal("400 Bad Request", w.status)
			s.Equal("<h1>Bad Request (400)</h1>", w.body.String())
		})
	}
}

func (s *HandlerTestSuite) TestServeFile() {
	s.Run("zero-copy", func() {
		w := &fileWriter{}
		s.Require().NoError(s.handler().Serve(environ("GET", "/file/"), w))

		s.Equal("200 OK", w.status)
		s.Equal([]string{"13"}, w.values("Content-Length"))
		s.Equal(int64(13), w.sent)
		s.Empty(w.body.String())
	})

	s.Run("fallback to chunks", func() {
		w := &fileWriter{sendErr: transport.ErrSendFileUnsupported}
		s.Require().NoError(s.handler().Serve(environ("GET", "/file/"), w))

		s.Zero(w.sent)
		s.Equal("<p>static</p>", w.body.String())
	})

	s.Run("send fails", func() {
		w := &fileWriter{sendErr: transport.ErrConnClosed}
		err := s.handler().Serve(environ("GET", "/file/"), w)
		s.ErrorIs(err, transport.ErrConnClosed)
	})

	s.Run("no file sender", func() {
		w := &recordWriter{}
		s.Require().NoError(s.handler().Serve(environ("GET", "/file/"), w))
		s.Equal("<p>static</p>", w.body.String())
	})
}

func (s *HandlerTestSuite) TestServeClosesResponse() {
	s.Run("after streaming", func() {
		w := &fileWriter{}
		s.Require().NoError(s.handler().Serve(environ("GET", "/stream/"), w))

		s.Equal("streamed body", w.body.String())
		s.True(s.stream.closed)
	})

	s.Run("when the head cannot be written", func() {
		s.stream = &trackingReader{Reader: strings.NewReader("streamed body")}
		w := &recordWriter{headerErr: transport.ErrConnClosed}

		err := s.handler().Serve(environ("GET", "/stream/"), w)
		s.ErrorIs(err, transport.ErrConnClosed)
		s.True(s.stream.closed)
	})
}

func (s *HandlerTestSuite) TestMiddlewareLoading() {
	loads := 0
	s.registry["flaky"] = func(*conf.Settings) (dispatch.Middleware, error) {
		loads++
		if loads == 1 {
			return nil, errors.New("not ready")
		}
		return nil, dispatch.ErrMiddlewareNotUsed
	}
	s.settings.MiddlewareClasses = []string{"flaky"}

	h := s.handler()

	err := h.Serve(environ("GET", "/hello/"), &recordWriter{})
	s.Require().Error(err)
	s.False(h.pipeline.Loaded())

	w := &recordWriter{}
	s.Require().NoError(h.Serve(environ("GET", "/hello/"), w))
	s.Equal("200 OK", w.status)
	s.True(h.pipeline.Loaded())

	s.Require().NoError(h.Serve(environ("GET", "/hello/"), &recordWriter{}))
	s.Equal(2, loads)
}

func (s *HandlerTestSuite) TestConcurrentFirstRequestsLoadOnce() {
	var loads atomic.Int32
	s.registry["slow"] = func(*conf.Settings) (dispatch.Middleware, error) {
		loads.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil, dispatch.ErrMiddlewareNotUsed
	}
	s.settings.MiddlewareClasses = []string{"slow"}

	h := s.handler()

	const requests = 16
	start := make(chan struct{})
	statuses := make([]string, requests)
	errs := make([]error, requests)

	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			w := &recordWriter{}
			errs[i] = h.Serve(environ("GET", "/hello/"), w)
			statuses[i] = w.status
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), loads.Load())
	for i := range requests {
		s.NoError(errs[i])
		s.Equal("200 OK", statuses[i])
	}
}
