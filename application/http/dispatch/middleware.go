package dispatch

import (
	"webstack/application/http/semantic"
	"webstack/conf"

	"github.com/pkg/errors"
)

// ErrMiddlewareNotUsed is returned by a [Factory] to leave its middleware out of the chain.
var ErrMiddlewareNotUsed = errors.New("middleware not used")

// Middleware takes part in dispatch through any of the processor interfaces below.
type Middleware interface {
	Name() string
}

// RequestProcessor runs before routing. A non-nil response skips the view.
type RequestProcessor interface {
	Middleware
	ProcessRequest(r *semantic.Request) (semantic.Response, error)
}

// ViewProcessor runs after routing. A non-nil response skips the view.
type ViewProcessor interface {
	Middleware
	ProcessView(r *semantic.Request, view View, args []string, kwargs map[string]string) (semantic.Response, error)
}

// ExceptionProcessor may turn an error into a response. Returning nil passes.
type ExceptionProcessor interface {
	Middleware
	ProcessException(r *semantic.Request, err error) semantic.Response
}

// TemplateResponseProcessor sees renderable responses before they render.
type TemplateResponseProcessor interface {
	Middleware
	ProcessTemplateResponse(r *semantic.Request, resp semantic.Renderable) (semantic.Response, error)
}

// ResponseProcessor sees every response, including error responses.
type ResponseProcessor interface {
	Middleware
	ProcessResponse(r *semantic.Request, resp semantic.Response) (semantic.Response, error)
}

// Factory builds a middleware from the settings.
type Factory func(settings *conf.Settings) (Middleware, error)

// Registry maps the names listed in the settings to factories.
type Registry map[string]Factory

// chain is the loaded middleware split by phase. Every phase runs in
// registration order.
type chain struct {
	request   []RequestProcessor
	view      []ViewProcessor
	exception []ExceptionProcessor
	template  []TemplateResponseProcessor
	response  []ResponseProcessor
}

func (c *chain) add(mw Middleware) {
	if p, ok := mw.(RequestProcessor); ok {
		c.request = append(c.request, p)
	}
	if p, ok := mw.(ViewProcessor); ok {
		c.view = append(c.view, p)
	}
	if p, ok := mw.(ExceptionProcessor); ok {
		c.exception = append(c.exception, p)
	}
	if p, ok := mw.(TemplateResponseProcessor); ok {
		c.template = append(c.template, p)
	}
	if p, ok := mw.(ResponseProcessor); ok {
		c.response = append(c.response, p)
	}
}

func buildChain(settings *conf.Settings, registry Registry, skipped func(name string)) (*chain, error) {
	c := &chain{}

	for _, name := range settings.MiddlewareClasses {
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Wrapf(conf.ErrImproperlyConfigured, "middleware %q is not registered", name)
		}

		mw, err := factory(settings)
		if errors.Is(err, ErrMiddlewareNotUsed) {
			skipped(name)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "loading middleware %q", name)
		}

		c.add(mw)
	}

	return c, nil
}
