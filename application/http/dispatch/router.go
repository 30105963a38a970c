package dispatch

import (
	"reflect"
	"runtime"

	"webstack/application/http/semantic"
	"webstack/conf"
)

// View handles a resolved request.
type View func(r *semantic.Request, args []string, kwargs map[string]string) (semantic.Response, error)

// Match is a resolved route.
type Match struct {
	View   View
	Name   string
	Route  string
	Args   []string
	Kwargs map[string]string
}

// Router resolves paths by exact match.
type Router struct {
	routes    map[string]View
	fallback  View
	unmatched conf.UnmatchedRoute
}

func NewRouter(unmatched conf.UnmatchedRoute) *Router {
	return &Router{
		routes:    make(map[string]View),
		fallback:  FallbackView,
		unmatched: unmatched,
	}
}

// Handle registers v for path. Routes must be registered before serving.
func (rt *Router) Handle(path string, v View) { rt.routes[path] = v }

// SetFallback replaces the view unmatched paths resolve to.
func (rt *Router) SetFallback(v View) { rt.fallback = v }

func (rt *Router) Resolve(path string) (Match, error) {
	if v, ok := rt.routes[path]; ok {
		return Match{View: v, Name: ViewName(v), Route: path}, nil
	}

	if rt.unmatched == conf.UnmatchedNotFound || rt.fallback == nil {
		return Match{}, semantic.NotFound("no route matches %q", path)
	}
	return Match{View: rt.fallback, Name: ViewName(rt.fallback)}, nil
}

// ViewName returns the fully qualified function name of v.
func ViewName(v View) string {
	if v == nil {
		return "<nil>"
	}
	if fn := runtime.FuncForPC(reflect.ValueOf(v).Pointer()); fn != nil {
		return fn.Name()
	}
	return "<unknown>"
}

// FallbackView answers paths without a route.
func FallbackView(r *semantic.Request, _ []string, _ map[string]string) (semantic.Response, error) {
	resp, err := semantic.NewTextResponse("HI!", semantic.WithDefaults(r.Settings()))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
