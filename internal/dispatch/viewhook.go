package dispatch

import (
	"net/http"
	"path/filepath"
)

// Renderer renders the view file at path, given without extension.
type Renderer interface {
	RenderFile(w http.ResponseWriter, r *http.Request, path string) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request, path string) error

// RenderFile implements Renderer.
func (f RendererFunc) RenderFile(w http.ResponseWriter, r *http.Request, path string) error {
	return f(w, r, path)
}

// ViewOption configures ViewHook.
type ViewOption func(*viewHook)

// OnRenderError sets the handler for renderer failures. The default
// replies 500.
func OnRenderError(fn func(w http.ResponseWriter, r *http.Request, err error)) ViewOption {
	return func(h *viewHook) {
		if fn != nil {
			h.onError = fn
		}
	}
}

type viewHook struct {
	renderer Renderer
	dir      string
	onError  func(w http.ResponseWriter, r *http.Request, err error)
}

// ViewHook returns a stage that renders root/viewDir/<controller>/<action>
// after the inner chain has run, for requests the dispatcher resolved with
// automatic views enabled. Install it outside the dispatcher.
func ViewHook(renderer Renderer, root, viewDir string, opts ...ViewOption) func(http.Handler) http.Handler {
	h := &viewHook{
		renderer: renderer,
		dir:      filepath.Join(root, viewDir),
		onError: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, res := WithResolution(r.Context())
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)

			if !res.Eligible() {
				return
			}

			path := filepath.Join(h.dir, res.Controller, res.Action)
			if err := h.renderer.RenderFile(w, r, path); err != nil {
				h.onError(w, r, err)
			}
		})
	}
}
