package config

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nierrors "github.com/conneroisu/ni/internal/errors"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Empty(t, cfg.Root)
	assert.False(t, cfg.AutomaticViews)
	assert.Equal(t, "views", cfg.ViewDir)
	assert.Equal(t, ".html", cfg.ViewExt)
	assert.Empty(t, cfg.CustomRoutes)
	assert.Equal(t, "localhost:3000", cfg.Address())
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults when nothing is set",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "views", cfg.ViewDir)
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, "info", cfg.Log.Level)
			},
		},
		{
			name: "recognized keys",
			setup: func(v *viper.Viper) {
				v.Set("root", "/srv/app")
				v.Set("automatic_views", true)
				v.Set("view_dir", "templates")
				v.Set("server.port", 8080)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/app", cfg.Root)
				assert.True(t, cfg.AutomaticViews)
				assert.Equal(t, "templates", cfg.ViewDir)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "/srv/app/templates", cfg.ViewRoot())
			},
		},
		{
			name: "custom routes decode with single method strings",
			setup: func(v *viper.Viper) {
				v.Set("custom_routes", []interface{}{
					map[string]interface{}{"path": "/old", "to": "/new"},
					map[string]interface{}{"pattern": `^/u/(\d+)$`, "to": "/users/$1", "methods": "POST"},
				})
			},
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.CustomRoutes, 2)
				assert.Equal(t, "/old", cfg.CustomRoutes[0].Path)
				assert.Equal(t, "/new", cfg.CustomRoutes[0].To)
				assert.Equal(t, []string{"POST"}, cfg.CustomRoutes[1].AllMethods())
			},
		},
		{
			name: "custom route without destination",
			setup: func(v *viper.Viper) {
				v.Set("custom_routes", []interface{}{
					map[string]interface{}{"path": "/old"},
				})
			},
			expectError: true,
		},
		{
			name: "custom route with broken pattern",
			setup: func(v *viper.Viper) {
				v.Set("custom_routes", []interface{}{
					map[string]interface{}{"pattern": "(", "to": "/x"},
				})
			},
			expectError: true,
		},
		{
			name: "unknown route field",
			setup: func(v *viper.Viper) {
				v.Set("custom_routes", []interface{}{
					map[string]interface{}{"path": "/a", "to": "/b", "destination": "/c"},
				})
			},
			expectError: true,
		},
		{
			name: "view dir traversal",
			setup: func(v *viper.Viper) {
				v.Set("view_dir", "../outside")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 70000)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_UsesGlobalViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("location", "Bay Area")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Bay Area", cfg.GetString("location"))
}

func TestConfig_GetSet(t *testing.T) {
	v := viper.New()
	v.Set("location", "Paris")
	v.Set("mail.sender", "ni@example.com")
	v.Set("server.port", 3000)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "Paris", cfg.Get("location"))
	assert.Equal(t, "ni@example.com", cfg.GetString("mail.sender"))
	assert.Equal(t, "3000", cfg.GetString("server.port"))
	assert.Nil(t, cfg.Get("missing"))

	require.NoError(t, cfg.Set("location", "Tokyo"))
	assert.Equal(t, "Tokyo", cfg.GetString("location"))

	require.NoError(t, cfg.Set("root", "/app"))
	assert.Equal(t, "/app", cfg.Root)
	assert.Equal(t, "/app", cfg.Get("root"))

	require.NoError(t, cfg.Set("automatic_views", true))
	assert.True(t, cfg.AutomaticViews)

	err = cfg.Set("automatic_views", "yes")
	assert.True(t, nierrors.IsConfigError(err))

	err = cfg.Set("view_dir", "/abs")
	assert.True(t, nierrors.IsConfigError(err))

	err = cfg.Set("custom_routes", nil)
	assert.True(t, nierrors.IsConfigError(err))
}

func TestConfig_Context(t *testing.T) {
	cfg := New()
	ctx := WithContext(context.Background(), cfg)

	assert.Same(t, cfg, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
