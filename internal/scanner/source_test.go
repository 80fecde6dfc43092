package scanner

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ni/internal/catalog"
	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/types"
)

func testSource(fsys fstest.MapFS, cat *catalog.Catalog) *FileSource {
	return &FileSource{FS: fsys, Root: "/srv/app", Catalog: cat}
}

func TestFileSource_Views(t *testing.T) {
	src := testSource(fstest.MapFS{
		"views/calculator.html": {Data: []byte("<p>{{.}}</p>")},
	}, catalog.New())

	views, err := src.LoadCollection(context.Background(), types.KindViews)
	require.NoError(t, err)

	require.Contains(t, views, "calculator")
	tmpl, ok := views["calculator"].(types.Template)
	require.True(t, ok)
	assert.Equal(t, "<p>{{.}}</p>", tmpl.Content)
	assert.Equal(t, filepath.Join("/srv/app", "views", "calculator.html"), tmpl.Path)
}

func TestFileSource_Modules(t *testing.T) {
	cat := catalog.New()
	home := types.Actions{"index": func(w http.ResponseWriter, r *http.Request, next http.Handler, args ...string) {}}
	cat.Register(types.KindControllers, "home", func() (any, error) { return home, nil })
	cat.Register(types.KindModels, "user", func() (any, error) { return "user-model", nil })

	src := testSource(fstest.MapFS{
		"controllers/home.go": {},
		"models/user.go":      {},
	}, cat)

	controllers, err := src.LoadCollection(context.Background(), types.KindControllers)
	require.NoError(t, err)
	assert.Contains(t, controllers, "home")

	models, err := src.LoadCollection(context.Background(), types.KindModels)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "user-model"}, models)

	libraries, err := src.LoadCollection(context.Background(), types.KindLibraries)
	require.NoError(t, err)
	assert.Empty(t, libraries, "absent directory is an empty collection")
}

func TestFileSource_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		register func(*catalog.Catalog)
		code     string
		cause    error
	}{
		{
			name:     "file without module",
			register: func(*catalog.Catalog) {},
			code:     nierrors.ErrCodeModuleNotFound,
		},
		{
			name: "factory error",
			register: func(c *catalog.Catalog) {
				c.Register(types.KindHelpers, "format", func() (any, error) { return nil, boom })
			},
			code:  nierrors.ErrCodeModuleLoad,
			cause: boom,
		},
		{
			name: "factory panic",
			register: func(c *catalog.Catalog) {
				c.Register(types.KindHelpers, "format", func() (any, error) { panic("bad init") })
			},
			code: nierrors.ErrCodeModuleLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := catalog.New()
			tt.register(cat)
			src := testSource(fstest.MapFS{"helpers/format.go": {}}, cat)

			result, err := src.LoadCollection(context.Background(), types.KindHelpers)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, nierrors.IsBootError(err))

			var ne *nierrors.NiError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.code, ne.Code)
			assert.Equal(t, "helpers", ne.Kind)
			assert.Equal(t, filepath.Join("/srv/app", "helpers", "format.go"), ne.Path)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestNewFileSource_DefaultCatalog(t *testing.T) {
	src := NewFileSource(t.TempDir(), nil)
	assert.Same(t, catalog.Default, src.Catalog)

	views, err := src.LoadCollection(context.Background(), types.KindViews)
	require.NoError(t, err)
	assert.Empty(t, views)
}
