// Package app ties configuration, the module catalog, the bootstrap loader
// and the dispatcher into one application object.
//
// Typical use:
//
//	a, err := app.New(cfg)
//	a.AddRoute("/", "/home/index")
//	if err := a.Boot(ctx); err != nil { ... }
//	h, err := a.Handler(nil)
package app

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/ni/internal/boot"
	"github.com/conneroisu/ni/internal/catalog"
	"github.com/conneroisu/ni/internal/config"
	"github.com/conneroisu/ni/internal/dispatch"
	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/logging"
	"github.com/conneroisu/ni/internal/metrics"
	"github.com/conneroisu/ni/internal/middleware"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/renderer"
	"github.com/conneroisu/ni/internal/respond"
	"github.com/conneroisu/ni/internal/routes"
	"github.com/conneroisu/ni/internal/scanner"
	"github.com/conneroisu/ni/internal/types"
)

// App is one application: its configuration, custom routes and, once
// booted, its artifact store.
type App struct {
	cfg      *config.Config
	logger   logging.Logger
	catalog  *catalog.Catalog
	source   boot.Source
	fsys     fs.FS
	metrics  *metrics.Metrics
	routes   *routes.Table
	renderer *renderer.Renderer

	bootMu    sync.Mutex
	attempted bool
	store     atomic.Pointer[registry.Store]
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger logging.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithCatalog sets the module catalog. The default is catalog.Default.
func WithCatalog(c *catalog.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithFS loads artifacts from fsys instead of the root directory on disk,
// for applications that embed their tree.
func WithFS(fsys fs.FS) Option {
	return func(a *App) { a.fsys = fsys }
}

// WithSource replaces directory scanning altogether.
func WithSource(src boot.Source) Option {
	return func(a *App) { a.source = src }
}

// WithMetrics records boot and dispatch measurements.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an application. Routes from the configuration are
// registered first, ahead of any added later with AddRoute.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}

	a := &App{
		cfg:     cfg,
		logger:  logging.NewNop(),
		catalog: catalog.Default,
		routes:  routes.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithComponent("app")

	if err := a.routes.AddFromConfig(cfg.CustomRoutes); err != nil {
		return nil, err
	}

	r, err := renderer.New(renderer.Options{Ext: cfg.ViewExt})
	if err != nil {
		return nil, nierrors.NewInternalError(nierrors.ErrCodeInternalError, "creating renderer", err)
	}
	a.renderer = r

	return a, nil
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// SetRoot sets the directory artifacts are loaded from.
func (a *App) SetRoot(root string) error {
	return a.cfg.Set(config.KeyRoot, root)
}

// AddRoute registers a custom route; see routes.Table.Add. Routes cannot
// be added once the application has booted.
func (a *App) AddRoute(matcher any, destination string, methods ...string) error {
	return a.routes.Add(matcher, destination, methods...)
}

// Routes returns the custom route table.
func (a *App) Routes() *routes.Table {
	return a.routes
}

// Renderer returns the view renderer.
func (a *App) Renderer() *renderer.Renderer {
	return a.renderer
}

// Store returns the artifact store, or nil before a successful boot.
func (a *App) Store() *registry.Store {
	return a.store.Load()
}

// View returns the raw template loaded under name.
func (a *App) View(name string) (types.Template, bool) {
	store := a.Store()
	if store == nil {
		return types.Template{}, false
	}
	return store.View(name)
}

// Boot loads every artifact collection and publishes the store. It may be
// called once; a failed boot is not retried and leaves the application
// without a store.
func (a *App) Boot(ctx context.Context) error {
	a.bootMu.Lock()
	defer a.bootMu.Unlock()

	if a.attempted {
		return nierrors.NewBootError(nierrors.ErrCodeAlreadyBooted, "application already booted", nil)
	}
	a.attempted = true

	src, err := a.bootSource()
	if err != nil {
		return err
	}

	start := time.Now()
	store, err := boot.Load(ctx, src)
	elapsed := time.Since(start)

	if a.metrics != nil {
		a.metrics.ObserveBoot(store, elapsed)
	}
	if err != nil {
		return err
	}

	a.routes.Freeze()
	a.store.Store(store)

	a.logger.Info(ctx, "Application booted",
		"root", a.cfg.GetString(config.KeyRoot),
		"controllers", store.Count(types.KindControllers),
		"models", store.Count(types.KindModels),
		"views", store.Count(types.KindViews),
		"libraries", store.Count(types.KindLibraries),
		"helpers", store.Count(types.KindHelpers),
		"routes", a.routes.Len(),
		"duration", elapsed)

	return nil
}

func (a *App) bootSource() (boot.Source, error) {
	if a.source != nil {
		return a.source, nil
	}

	root := a.cfg.GetString(config.KeyRoot)
	if root == "" && a.fsys == nil {
		return nil, nierrors.NewConfigError(nierrors.ErrCodeRootNotSet, "root must be set before boot")
	}

	fsys := a.fsys
	if fsys == nil {
		fsys = os.DirFS(root)
	}

	return &scanner.FileSource{FS: fsys, Root: root, Catalog: a.catalog}, nil
}

// Handler returns the request chain of the booted application: the view
// hook when automatic views are on, the renderer, then the dispatcher with
// notFound as its continuation. A nil notFound replies 404.
func (a *App) Handler(notFound http.Handler) (http.Handler, error) {
	store := a.Store()
	if store == nil {
		return nil, nierrors.NewInternalError(nierrors.ErrCodeInternalError, "handler requested before boot", nil)
	}
	if notFound == nil {
		notFound = respond.NotFoundHandler()
	}

	opts := dispatch.Options{
		AutoView: a.cfg.AutomaticViews,
		Config:   a.cfg,
	}
	if a.metrics != nil {
		opts.Observer = a.metrics
	}

	chain := middleware.NewChain()
	if a.cfg.AutomaticViews {
		chain.Use(dispatch.ViewHook(a.renderer, a.cfg.GetString(config.KeyRoot), a.cfg.ViewDir,
			dispatch.OnRenderError(a.renderError)))
	}
	chain.Use(a.renderer.Middleware)

	return chain.Then(dispatch.New(store, a.routes, opts).Middleware(notFound)), nil
}

func (a *App) renderError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error(r.Context(), err, "Automatic view failed", "path", r.URL.Path)
	respond.Error(w, http.StatusText(http.StatusInternalServerError))
}
