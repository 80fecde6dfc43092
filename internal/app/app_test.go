package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ni/internal/boot"
	"github.com/conneroisu/ni/internal/catalog"
	"github.com/conneroisu/ni/internal/config"
	"github.com/conneroisu/ni/internal/dispatch"
	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/metrics"
	"github.com/conneroisu/ni/internal/renderer"
	"github.com/conneroisu/ni/internal/respond"
	"github.com/conneroisu/ni/internal/types"
)

func testCatalog() *catalog.Catalog {
	cat := catalog.New()
	cat.Register(types.KindControllers, "home", func() (any, error) {
		return types.Actions{
			"index": func(w http.ResponseWriter, r *http.Request, next http.Handler, args ...string) {
				respond.OK(w, "Hello from "+config.FromContext(r.Context()).GetString("location"))
			},
		}, nil
	})
	cat.Register(types.KindControllers, "calculator", func() (any, error) {
		return types.Actions{
			"add": func(w http.ResponseWriter, r *http.Request, next http.Handler, args ...string) {
				if len(args) < 2 {
					respond.Error(w, "a and b are required")
					return
				}
				if err := renderer.View(w, r, "calculator", map[string]string{"a": args[0], "b": args[1]}); err != nil {
					respond.Error(w, err.Error())
				}
			},
			"auto": func(w http.ResponseWriter, r *http.Request, next http.Handler, args ...string) {
				dispatch.SetViewData(r, args)
			},
			"silent": func(w http.ResponseWriter, r *http.Request, next http.Handler, args ...string) {},
		}, nil
	})
	return cat
}

var testTree = fstest.MapFS{
	"controllers/home.go":       {},
	"controllers/calculator.go": {},
	"views/calculator.html":     {Data: []byte("{{.a}} and {{.b}}")},
}

func bootedApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithCatalog(testCatalog()), WithFS(testTree)}, opts...)
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, a.Boot(context.Background()))
	return a
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestApp_Serve(t *testing.T) {
	cfg := config.New()
	require.NoError(t, cfg.Set("location", "the lab"))

	a := bootedApp(t, cfg)
	h, err := a.Handler(nil)
	require.NoError(t, err)

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/", http.StatusOK, "Hello from the lab"},
		{"/calculator/add/4/5", http.StatusOK, "4 and 5"},
		{"/calculator/add/4", http.StatusInternalServerError, "a and b are required"},
		{"/calculator/nosuchaction", http.StatusNotFound, "Not Found"},
		{"/nope", http.StatusNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := get(t, h, tt.target)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestApp_AddRouteAfterBootFails(t *testing.T) {
	a := bootedApp(t, nil)

	err := a.AddRoute("/x", "/y")
	require.Error(t, err)
	assert.True(t, nierrors.IsRegistrationError(err))
}

func TestApp_CustomRoutes(t *testing.T) {
	cfg := config.New()
	cfg.CustomRoutes = []config.RouteConfig{{Path: "/sum", To: "/calculator/add/1/2"}}

	a, err := New(cfg, WithCatalog(testCatalog()), WithFS(testTree))
	require.NoError(t, err)
	require.NoError(t, a.AddRoute(regexp.MustCompile(`^/plus/(\d+)/(\d+)$`), "/calculator/add/$1/$2"))
	require.NoError(t, a.AddRoute("/sum", "/never", http.MethodGet))
	require.NoError(t, a.Boot(context.Background()))

	h, err := a.Handler(nil)
	require.NoError(t, err)

	assert.Equal(t, "1 and 2", get(t, h, "/sum").Body.String(), "config routes come first")
	assert.Equal(t, "7 and 8", get(t, h, "/plus/7/8").Body.String())
	assert.Equal(t, 3, a.Routes().Len())
}

func TestApp_AutomaticViews(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "views", "calculator"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "views", "calculator", "auto.html"),
		[]byte("{{.Controller}}.{{.Action}} {{range .Data}}[{{.}}]{{end}}"), 0o600))

	cfg := config.New()
	cfg.Root = root
	cfg.AutomaticViews = true

	a := bootedApp(t, cfg)
	h, err := a.Handler(nil)
	require.NoError(t, err)

	w := get(t, h, "/calculator/auto/x/y")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "calculator.auto [x][y]", w.Body.String())

	w = get(t, h, "/calculator/silent")
	assert.Equal(t, http.StatusInternalServerError, w.Code, "missing automatic view is a server error")
}

func TestApp_BootOnce(t *testing.T) {
	a := bootedApp(t, nil)

	err := a.Boot(context.Background())
	require.Error(t, err)
	var ne *nierrors.NiError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, nierrors.ErrCodeAlreadyBooted, ne.Code)
}

func TestApp_BootRequiresRoot(t *testing.T) {
	a, err := New(config.New(), WithCatalog(testCatalog()))
	require.NoError(t, err)

	err = a.Boot(context.Background())
	require.Error(t, err)
	assert.True(t, nierrors.IsConfigError(err))
	assert.Nil(t, a.Store())

	_, err = a.Handler(nil)
	assert.Error(t, err)
}

func TestApp_SetRootAndDiskSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "views"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "views", "home.html"), []byte("hi"), 0o600))

	a, err := New(config.New(), WithCatalog(catalog.New()))
	require.NoError(t, err)
	require.NoError(t, a.SetRoot(root))
	require.NoError(t, a.Boot(context.Background()))

	view, ok := a.View("home")
	require.True(t, ok)
	assert.Equal(t, "hi", view.Content)
	assert.Equal(t, filepath.Join(root, "views", "home.html"), view.Path)
}

func TestApp_BootFailurePublishesNothing(t *testing.T) {
	m := metrics.New()
	a, err := New(config.New(),
		WithCatalog(catalog.New()),
		WithFS(fstest.MapFS{"controllers/orphan.go": {}}),
		WithMetrics(m))
	require.NoError(t, err)

	err = a.Boot(context.Background())
	require.Error(t, err)
	assert.True(t, nierrors.IsBootError(err))
	assert.Nil(t, a.Store())

	_, ok := a.View("anything")
	assert.False(t, ok)
}

func TestApp_WithSource(t *testing.T) {
	src := boot.Collections{
		types.KindViews: {"page": types.Template{Content: "x"}},
	}
	a, err := New(config.New(), WithSource(src))
	require.NoError(t, err)
	require.NoError(t, a.Boot(context.Background()))

	assert.Equal(t, 1, a.Store().Count(types.KindViews))
}

func TestNew_InvalidConfigRoute(t *testing.T) {
	cfg := config.New()
	cfg.CustomRoutes = []config.RouteConfig{{Path: "/a"}}

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, nierrors.IsRegistrationError(err))
}
