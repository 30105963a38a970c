package semantic

import "github.com/pkg/errors"

// RenderFunc produces the content of a [DeferredResponse].
type RenderFunc func(r *DeferredResponse) ([]byte, error)

// DeferredResponse postpones building its body until the pipeline renders it,
// so middleware can still adjust what the renderer sees.
type DeferredResponse struct {
	*HTTPResponse
	render   RenderFunc
	rendered bool

	// Context is handed to the renderer untouched.
	Context map[string]any
}

var _ Renderable = (*DeferredResponse)(nil)

func NewDeferredResponse(render RenderFunc, ctx map[string]any, opts ...ResponseOption) *DeferredResponse {
	return &DeferredResponse{
		HTTPResponse: NewHTTPResponse(nil, opts...),
		render:       render,
		Context:      ctx,
	}
}

func (r *DeferredResponse) IsRendered() bool { return r.rendered }

// Render runs the render function once. Later calls return r unchanged.
func (r *DeferredResponse) Render() (Response, error) {
	if r.rendered {
		return r, nil
	}

	content, err := r.render(r)
	if err != nil {
		return nil, errors.Wrap(err, "rendering response")
	}
	if err := r.SetContent(content); err != nil {
		return nil, err
	}

	r.rendered = true
	return r, nil
}
