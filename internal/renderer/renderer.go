// Package renderer compiles and renders view templates.
//
// Views are html/template sources, either read from disk on demand for
// automatic views or taken from the artifact store as raw types.Template
// values. Compiled templates are kept in a bounded LRU cache keyed by file
// path. Entries for on-disk views can be dropped with Invalidate so edited
// files are read again; boot-time templates keep their loaded content.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/ni/internal/dispatch"
	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/types"
)

// DefaultCacheSize bounds the number of compiled templates kept.
const DefaultCacheSize = 256

// Options configures a Renderer.
type Options struct {
	// Ext is appended to paths given to RenderFile
	Ext string
	// CacheSize is the number of compiled templates kept
	CacheSize int
	// Funcs are made available to every template
	Funcs template.FuncMap
}

// ViewData is the data automatic views are executed with.
type ViewData struct {
	Controller string
	Action     string
	Data       any
}

// Renderer renders html/template views.
type Renderer struct {
	ext   string
	funcs template.FuncMap
	cache *lru.Cache[string, *template.Template]
}

// New creates a renderer.
func New(opts Options) (*Renderer, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Ext != "" && !strings.HasPrefix(opts.Ext, ".") {
		opts.Ext = "." + opts.Ext
	}

	cache, err := lru.New[string, *template.Template](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating template cache: %w", err)
	}

	return &Renderer{
		ext:   opts.Ext,
		funcs: opts.Funcs,
		cache: cache,
	}, nil
}

// RenderFile renders the view at path plus the configured extension. The
// template receives a ViewData built from the request's dispatch
// resolution. It implements dispatch.Renderer.
func (r *Renderer) RenderFile(w http.ResponseWriter, req *http.Request, path string) error {
	file := path + r.ext
	key := cacheKey(file)

	tmpl, ok := r.cache.Get(key)
	if !ok {
		content, err := os.ReadFile(file)
		if err != nil {
			return nierrors.NewIOError(nierrors.ErrCodeTemplateNotFound, "reading view", err).
				WithKind(string(types.KindViews)).
				WithPath(file)
		}

		tmpl, err = r.compile(file, string(content))
		if err != nil {
			return err
		}
		r.cache.Add(key, tmpl)
	}

	data := ViewData{}
	if res, ok := dispatch.ResolutionFromContext(req.Context()); ok {
		data = ViewData{Controller: res.Controller, Action: res.Action, Data: res.Data}
	}

	return r.execute(w, tmpl, data)
}

// RenderTemplate compiles a view loaded at boot and executes it with data.
// Templates with a path are compiled once.
func (r *Renderer) RenderTemplate(w http.ResponseWriter, view types.Template, data any) error {
	var (
		tmpl *template.Template
		ok   bool
		err  error
	)

	if view.Path != "" {
		tmpl, ok = r.cache.Get(view.Path)
	}
	if !ok {
		tmpl, err = r.compile(view.Path, view.Content)
		if err != nil {
			return err
		}
		if view.Path != "" {
			r.cache.Add(view.Path, tmpl)
		}
	}

	return r.execute(w, tmpl, data)
}

// Cached returns the number of compiled templates in the cache.
func (r *Renderer) Cached() int {
	return r.cache.Len()
}

// Invalidate drops the compiled templates for the given files and reports
// how many were cached.
func (r *Renderer) Invalidate(files ...string) int {
	n := 0
	for _, file := range files {
		if r.cache.Remove(cacheKey(file)) {
			n++
		}
	}
	return n
}

// Purge drops every compiled template.
func (r *Renderer) Purge() {
	r.cache.Purge()
}

// cacheKey makes on-disk view keys absolute so they match watcher paths.
func cacheKey(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}

func (r *Renderer) compile(name, content string) (*template.Template, error) {
	tmpl, err := template.New(filepath.Base(name)).Funcs(r.funcs).Parse(content)
	if err != nil {
		return nil, nierrors.NewIOError(nierrors.ErrCodeTemplateCompile, "compiling view", err).
			WithKind(string(types.KindViews)).
			WithPath(name)
	}
	return tmpl, nil
}

// execute renders into a buffer first so a failing template writes nothing.
func (r *Renderer) execute(w http.ResponseWriter, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nierrors.NewIOError(nierrors.ErrCodeTemplateCompile, "executing view", err).
			WithKind(string(types.KindViews)).
			WithPath(tmpl.Name())
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, err := buf.WriteTo(w)
	return err
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying r.
func WithContext(ctx context.Context, r *Renderer) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the renderer attached to ctx, or nil.
func FromContext(ctx context.Context) *Renderer {
	r, _ := ctx.Value(contextKey{}).(*Renderer)
	return r
}

// Middleware attaches r to every request passing through.
func (r *Renderer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		next.ServeHTTP(w, req.WithContext(WithContext(req.Context(), r)))
	})
}

// View renders the store template called name with data, using the store
// and renderer attached to the request.
func View(w http.ResponseWriter, req *http.Request, name string, data any) error {
	r := FromContext(req.Context())
	if r == nil {
		return nierrors.NewInternalError(nierrors.ErrCodeInternalError, "no renderer attached to request", nil)
	}

	store := registry.FromContext(req.Context())
	if store == nil {
		return nierrors.NewInternalError(nierrors.ErrCodeInternalError, "no artifact store attached to request", nil)
	}

	view, ok := store.View(name)
	if !ok {
		return nierrors.NewIOError(nierrors.ErrCodeTemplateNotFound, "no view named "+name, nil).
			WithKind(string(types.KindViews))
	}

	return r.RenderTemplate(w, view, data)
}
