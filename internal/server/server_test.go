package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ni/internal/logging"
	"github.com/conneroisu/ni/internal/metrics"
	"github.com/conneroisu/ni/internal/monitoring"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/security"
)

func echoApp() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/panic":
			panic("boom")
		case "/missing":
			http.NotFound(w, r)
		default:
			fmt.Fprintf(w, "app:%s", r.URL.Path)
		}
	})
}

func TestServer_Routes(t *testing.T) {
	health := monitoring.NewHealthMonitor(logging.NewNop())
	health.RegisterCheck(monitoring.StoreHealthChecker(registry.Empty))

	s := New("localhost:0", echoApp(), Options{
		Metrics: metrics.New(),
		Health:  health,
	})

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/", http.StatusOK, "app:/"},
		{"/calculator/add/4/5", http.StatusOK, "app:/calculator/add/4/5"},
		{"/missing", http.StatusNotFound, "404 page not found"},
		{"/panic", http.StatusInternalServerError, ""},
		{"/healthz", http.StatusOK, `"status": "healthy"`},
		{"/metrics", http.StatusOK, "ni_http_requests_total"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestServer_WithoutOptionalEndpoints(t *testing.T) {
	s := New("localhost:0", echoApp(), Options{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "app:/metrics", w.Body.String(), "unclaimed paths belong to the app")
}

func TestServer_SecurityHeaders(t *testing.T) {
	s := New("localhost:0", echoApp(), Options{Security: security.DefaultConfig()})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")

	w = httptest.NewRecorder()
	New("localhost:0", echoApp(), Options{}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
}

func TestNew_NilAppPanics(t *testing.T) {
	assert.Panics(t, func() { New("localhost:0", nil, Options{}) })
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelInfo, Format: "json", Output: &buf})

	h := RequestLogger(logger)(echoApp())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/calculator", nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"Request handled"`)
	assert.Contains(t, out, `"path":"/calculator"`)
	assert.Contains(t, out, `"status":200`)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := New("127.0.0.1:0", echoApp(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(s.Addr(), ":0")
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/hello")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "app:/hello", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.True(t, s.IsShutdown())
	assert.NoError(t, s.Shutdown(context.Background()), "shutdown is idempotent")
	assert.Error(t, s.Start(context.Background()), "a stopped server cannot restart")
}
