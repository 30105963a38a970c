package server

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"webstack/application/http"
	"webstack/application/http/dispatch"
	"webstack/application/http/semantic"
	"webstack/application/http/semantic/status"
	"webstack/conf"
	iolib "webstack/lib/io"
	"webstack/transport"

	"github.com/pkg/errors"
)

// ResponseWriter is what a transport gives [Handler.Serve] to answer one request.
// WriteHeader is called exactly once, before any body bytes.
type ResponseWriter interface {
	WriteHeader(status string, headers []http.Field) error
	io.Writer
}

// FileSender is implemented by response writers that can send a file
// without copying it through user space. Returning
// [transport.ErrSendFileUnsupported] before writing anything makes
// the handler fall back to copying.
type FileSender interface {
	SendFile(f *os.File, n int64) (int64, error)
}

// Handler adapts the dispatch pipeline to a transport.
// Middleware is loaded on the first request, and again on the next one if loading failed.
type Handler struct {
	mu       sync.Mutex
	pipeline *dispatch.Handler
	settings *conf.Settings
	logger   *slog.Logger
}

func NewHandler(pipeline *dispatch.Handler, settings *conf.Settings, logger *slog.Logger) *Handler {
	return &Handler{pipeline: pipeline, settings: settings, logger: logger}
}

func (h *Handler) ensureMiddleware() error {
	if h.pipeline.Loaded() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pipeline.Loaded() {
		return nil
	}

	if err := h.pipeline.LoadMiddleware(); err != nil {
		h.pipeline.ResetMiddleware()
		return errors.Wrap(err, "loading middleware")
	}
	return nil
}

// Serve answers env through w. The returned error means the response
// could not be produced or written; the response itself is always closed.
func (h *Handler) Serve(env semantic.Environ, w ResponseWriter) error {
	if err := h.ensureMiddleware(); err != nil {
		return err
	}

	resp := h.respond(env)
	defer resp.Close()

	return h.write(resp, w)
}

func (h *Handler) respond(env semantic.Environ) semantic.Response {
	r, err := semantic.NewRequest(env, h.settings)
	if err != nil {
		return h.pipeline.HandleBadRequest(env.PathInfo, err)
	}

	resp, err := h.pipeline.GetResponse(r)
	if err != nil {
		return h.pipeline.HandleUncaught(r, err)
	}

	if err := resp.Headers().Validate(); err != nil {
		resp.Close()
		return h.pipeline.HandleUncaught(r, errors.Wrap(err, "validating response headers"))
	}

	return resp
}

func (h *Handler) write(resp semantic.Response, w ResponseWriter) error {
	line := status.Status{Code: resp.StatusCode(), ReasonPhrase: resp.ReasonPhrase()}.Line()

	if err := w.WriteHeader(line, headerFields(resp)); err != nil {
		return errors.Wrap(err, "writing response head")
	}

	if fs, ok := resp.(semantic.FileStreamer); ok {
		if sender, ok := w.(FileSender); ok {
			if f := fs.FileToStream(); f != nil {
				sent, err := sendFile(sender, f)
				if sent || err != nil {
					return err
				}
			}
		}
	}

	if _, err := iolib.WriteChunks(w, resp.Chunks()); err != nil {
		return errors.Wrap(err, "writing response body")
	}
	return nil
}

// sendFile reports whether f went through the zero-copy path.
func sendFile(sender FileSender, f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false, nil
	}

	_, err = sender.SendFile(f, info.Size())
	switch {
	case errors.Is(err, transport.ErrSendFileUnsupported):
		return false, nil
	case err != nil:
		return true, errors.Wrap(err, "sending file")
	}
	return true, nil
}

func headerFields(resp semantic.Response) []http.Field {
	fields := resp.Headers().Fields()
	for c := range resp.Cookies().All() {
		fields = append(fields, http.NewField("Set-Cookie", c.String()))
	}
	return fields
}
