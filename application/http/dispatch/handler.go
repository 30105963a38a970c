package dispatch

import (
	"log/slog"
	"reflect"
	"sync/atomic"

	"webstack/application/http/semantic"
	"webstack/conf"

	"github.com/pkg/errors"
)

var ErrMiddlewareNotLoaded = errors.New("middleware is not loaded")

type Handler struct {
	settings *conf.Settings
	router   *Router
	registry Registry
	hooks    Hooks
	logger   *slog.Logger

	chain atomic.Pointer[chain]
}

type Option func(h *Handler)

// WithHooks overrides the error response hooks that are set in hooks.
func WithHooks(hooks Hooks) Option {
	return func(h *Handler) { h.hooks = h.hooks.merge(hooks) }
}

func WithRegistry(registry Registry) Option {
	return func(h *Handler) { h.registry = registry }
}

func New(settings *conf.Settings, router *Router, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		settings: settings,
		router:   router,
		registry: Registry{},
		hooks:    defaultHooks(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LoadMiddleware builds the chain listed in the settings.
// Nothing is stored when it fails.
func (h *Handler) LoadMiddleware() error {
	c, err := buildChain(h.settings, h.registry, func(name string) {
		h.logger.Debug("Middleware not used", slog.String("name", name))
	})
	if err != nil {
		return err
	}

	h.chain.Store(c)
	return nil
}

func (h *Handler) Loaded() bool { return h.chain.Load() != nil }

func (h *Handler) ResetMiddleware() { h.chain.Store(nil) }

// GetResponse runs the pipeline for r. Errors that no hook maps to a response
// are returned, and the caller should answer with [Handler.HandleUncaught].
// The returned response closes r when it is closed.
func (h *Handler) GetResponse(r *semantic.Request) (resp semantic.Response, err error) {
	c := h.chain.Load()
	if c == nil {
		return nil, ErrMiddlewareNotLoaded
	}

	defer func() {
		if e := recover(); e != nil {
			resp, err = nil, errors.Errorf("pipeline panicked: %v", e)
		}
	}()

	resp, rendered, err := h.respond(c, r)
	if err != nil {
		kind := semantic.KindOf(err)
		if !isKnown(kind) {
			return nil, err
		}
		resp = h.errorResponse(r, kind, err)
	}

	for _, mw := range c.response {
		next, err := mw.ProcessResponse(r, resp)
		if err == nil && isNil(next) {
			err = semantic.ViewContract("%s.ProcessResponse returned no response", mw.Name())
		}
		if err != nil {
			resp.Close()
			return nil, err
		}
		resp = next
	}

	resp.RegisterClosable(r)

	// Error responses can still be renderable.
	if rr, ok := resp.(semantic.Renderable); ok && !rendered {
		if resp, err = rr.Render(); err != nil {
			rr.Close()
			return nil, err
		}
	}

	return resp, nil
}

// HandleUncaught answers an error that escaped the pipeline with the server error hook.
func (h *Handler) HandleUncaught(r *semantic.Request, err error) semantic.Response {
	var path string
	if r != nil {
		path = r.Path()
	}
	h.logger.Error("Internal Server Error",
		slog.String("path", path),
		slog.Int("status", 500),
		slog.String("error", err.Error()))

	resp := h.hooks.ServerError(r, err)
	if r != nil {
		resp.RegisterClosable(r)
	}
	return resp
}

// HandleBadRequest answers a request that could not be built from its environ.
// The bad request hook receives a nil request.
func (h *Handler) HandleBadRequest(path string, err error) semantic.Response {
	h.logger.Warn("Bad Request (Unable to build request)",
		slog.String("path", path),
		slog.Int("status", 400),
		slog.String("error", err.Error()))

	return h.hooks.BadRequest(nil, err)
}

func (h *Handler) respond(c *chain, r *semantic.Request) (semantic.Response, bool, error) {
	for _, mw := range c.request {
		resp, err := mw.ProcessRequest(r)
		if err != nil {
			return nil, false, err
		}
		if !isNil(resp) {
			return resp, false, nil
		}
	}

	match, err := h.router.Resolve(r.PathInfo())
	if err != nil {
		resp, err := h.processException(c, r, err)
		return resp, false, err
	}

	var resp semantic.Response
	for _, mw := range c.view {
		if resp, err = mw.ProcessView(r, match.View, match.Args, match.Kwargs); err != nil {
			return nil, false, err
		}
		if !isNil(resp) {
			break
		}
	}

	if isNil(resp) {
		resp, err = invoke(match, r)
		if err != nil {
			if resp, err = h.processException(c, r, err); err != nil {
				return nil, false, err
			}
		}
		if isNil(resp) {
			return nil, false, semantic.ViewContract(
				"the view %s didn't return a response, it returned nil instead", match.Name)
		}
	}

	rr, ok := resp.(semantic.Renderable)
	if !ok {
		return resp, false, nil
	}

	for _, mw := range c.template {
		next, err := mw.ProcessTemplateResponse(r, rr)
		if err != nil {
			return nil, false, err
		}
		if isNil(next) {
			return nil, false, semantic.ViewContract(
				"%s.ProcessTemplateResponse returned no response", mw.Name())
		}

		resp = next
		if rr, ok = next.(semantic.Renderable); !ok {
			return resp, true, nil
		}
	}

	if resp, err = rr.Render(); err != nil {
		if resp, err = h.processException(c, r, err); err != nil {
			return nil, false, err
		}
	}
	return resp, true, nil
}

func invoke(match Match, r *semantic.Request) (resp semantic.Response, err error) {
	defer func() {
		if e := recover(); e != nil {
			resp, err = nil, errors.Errorf("view %s panicked: %v", match.Name, e)
		}
	}()

	return match.View(r, match.Args, match.Kwargs)
}

// processException returns the first exception middleware response, or err itself.
func (h *Handler) processException(c *chain, r *semantic.Request, err error) (semantic.Response, error) {
	for _, mw := range c.exception {
		if resp := mw.ProcessException(r, err); !isNil(resp) {
			return resp, nil
		}
	}
	return nil, err
}

func (h *Handler) errorResponse(r *semantic.Request, kind semantic.Kind, err error) semantic.Response {
	var (
		hook Hook
		msg  string
		code int
	)

	switch kind {
	case semantic.KindNotFound:
		hook, msg, code = h.hooks.NotFound, "Not Found", 404
	case semantic.KindPermissionDenied:
		hook, msg, code = h.hooks.Forbidden, "Forbidden (Permission denied)", 403
	default:
		hook, msg, code = h.hooks.BadRequest, "Bad request (Unable to parse request body)", 400
	}

	h.logger.Warn(msg,
		slog.String("path", r.Path()),
		slog.Int("status", code),
		slog.String("error", err.Error()))

	return hook(r, err)
}

func isKnown(kind semantic.Kind) bool {
	switch kind {
	case semantic.KindNotFound, semantic.KindPermissionDenied, semantic.KindRequestParse:
		return true
	}
	return false
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(resp semantic.Response) bool {
	if resp == nil {
		return true
	}
	v := reflect.ValueOf(resp)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
