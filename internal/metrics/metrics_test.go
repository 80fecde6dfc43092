package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ni/internal/dispatch"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/types"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestObserveBoot(t *testing.T) {
	m := New()
	store := registry.NewBuilder().
		AddController("home", types.Actions{}).
		AddView("calculator", types.Template{}).
		AddView("home", types.Template{}).
		Build()

	m.ObserveBoot(store, 20*time.Millisecond)
	m.ObserveBoot(nil, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `ni_artifacts_loaded{kind="controllers"} 1`)
	assert.Contains(t, body, `ni_artifacts_loaded{kind="views"} 2`)
	assert.Contains(t, body, `ni_artifacts_loaded{kind="helpers"} 0`)
	assert.Contains(t, body, "ni_boot_failures_total 1")
	assert.Contains(t, body, "ni_boot_duration_seconds_count 2")
}

func TestObserveDispatch(t *testing.T) {
	m := New()

	m.ObserveDispatch(dispatch.Route{Controller: "calculator", Action: "add", Found: true}, time.Millisecond)
	m.ObserveDispatch(dispatch.Route{Controller: "calculator", Action: "add", Found: true}, time.Millisecond)
	m.ObserveDispatch(dispatch.Route{Controller: "wp-admin", Action: "index"}, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `ni_dispatches_total{action="add",controller="calculator",outcome="hit"} 2`)
	assert.Contains(t, body, `ni_dispatches_total{action="none",controller="none",outcome="miss"} 1`)
	assert.NotContains(t, body, "wp-admin")
}

func TestMiddleware(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	h = m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	h = m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/", nil))

	body := scrape(t, m)
	assert.Contains(t, body, `ni_http_requests_total{code="404",method="GET"} 1`)
	assert.Contains(t, body, `ni_http_requests_total{code="200",method="POST"} 1`)
	assert.Contains(t, body, `ni_http_requests_total{code="200",method="PUT"} 1`, "silent handlers count as 200")
}
