package dispatch

import (
	"fmt"
	"html"

	"webstack/application/http/semantic"
)

// Hook builds the response for an error of a known kind.
type Hook func(r *semantic.Request, err error) semantic.Response

// Hooks build error responses. Nil fields keep the defaults.
type Hooks struct {
	BadRequest  Hook
	Forbidden   Hook
	NotFound    Hook
	ServerError Hook
}

func defaultHooks() Hooks {
	return Hooks{
		BadRequest:  errorPage(400, "<h1>Bad Request (400)</h1>"),
		Forbidden:   errorPage(403, "<h1>403 Forbidden</h1>"),
		NotFound:    errorPage(404, "<h1>Not Found</h1><p>The requested URL was not found on this server.</p>"),
		ServerError: errorPage(500, "<h1>Server Error (500)</h1>"),
	}
}

func (h Hooks) merge(o Hooks) Hooks {
	if o.BadRequest != nil {
		h.BadRequest = o.BadRequest
	}
	if o.Forbidden != nil {
		h.Forbidden = o.Forbidden
	}
	if o.NotFound != nil {
		h.NotFound = o.NotFound
	}
	if o.ServerError != nil {
		h.ServerError = o.ServerError
	}
	return h
}

// errorPage renders a fixed body. Debug settings append the error and the path.
func errorPage(code int, body string) Hook {
	return func(r *semantic.Request, err error) semantic.Response {
		content := body
		if r != nil && r.Settings().Debug && err != nil {
			content += fmt.Sprintf("<pre>%s</pre><p>Request path: %s</p>",
				html.EscapeString(err.Error()), html.EscapeString(r.Path()))
		}

		var opts []semantic.ResponseOption
		if r != nil {
			opts = append(opts, semantic.WithDefaults(r.Settings()))
		}
		return semantic.NewHTTPResponse([]byte(content), append(opts, semantic.WithStatus(code))...)
	}
}
