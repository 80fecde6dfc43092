// Package dispatch resolves request paths to handler group actions.
//
// A request path is first rewritten by the custom route table, then split
// on "/": the first segment names the handler group, the second the action
// and the rest are positional arguments passed through as strings. Both
// matching and splitting see the escaped path; each segment is unescaped
// after the split, so "%2F" stays inside its argument. Paths that resolve
// to no action are handed to the continuation untouched.
package dispatch

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conneroisu/ni/internal/config"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/routes"
	"github.com/conneroisu/ni/internal/types"
)

const (
	DefaultController = "home"
	DefaultAction     = "index"
	// InitAction is reserved for the gate of a handler group and is never
	// dispatched as an action of its own.
	InitAction = "init"
)

// Route is the outcome of resolving one request path.
type Route struct {
	Controller string   `json:"controller"`
	Action     string   `json:"action"`
	Args       []string `json:"args"`
	View       bool     `json:"view"`
	Found      bool     `json:"found"`
}

// Observer is notified after every dispatch.
type Observer interface {
	ObserveDispatch(route Route, elapsed time.Duration)
}

// Options configures a Dispatcher.
type Options struct {
	// AutoView marks resolved requests as eligible for automatic views
	AutoView bool
	// Config is attached to the context of dispatched requests
	Config *config.Config
	// Observer receives dispatch outcomes; nil disables it
	Observer Observer
}

// Dispatcher resolves paths against a route table and an artifact store.
// Both are only read, so one Dispatcher serves any number of concurrent
// requests.
type Dispatcher struct {
	store *registry.Store
	table *routes.Table
	opts  Options
}

// New creates a dispatcher. A nil table resolves paths unchanged.
func New(store *registry.Store, table *routes.Table, opts Options) *Dispatcher {
	if store == nil {
		store = registry.Empty()
	}
	if table == nil {
		table = routes.New()
	}
	return &Dispatcher{store: store, table: table, opts: opts}
}

// Resolve computes the route for an escaped path and method without
// invoking it.
func (d *Dispatcher) Resolve(path, method string) Route {
	route, _, _ := d.resolve(path, method)
	return route
}

func (d *Dispatcher) resolve(path, method string) (Route, types.Action, types.InitFunc) {
	segments := strings.Split(d.table.Resolve(path, method), "/")
	for i, segment := range segments {
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segments[i] = unescaped
		}
	}

	route := Route{Controller: DefaultController, Action: DefaultAction, Args: []string{}}
	if len(segments) > 1 && segments[1] != "" {
		route.Controller = segments[1]
		if len(segments) > 2 && segments[2] != "" {
			route.Action = segments[2]
		}
		if len(segments) > 3 {
			route.Args = segments[3:]
		}
	}

	controller, ok := d.store.Controller(route.Controller)
	if !ok || route.Action == InitAction {
		return route, nil, nil
	}

	action, ok := controller.Action(route.Action)
	if !ok {
		return route, nil, nil
	}

	var gate types.InitFunc
	if gated, ok := controller.(types.Gated); ok {
		if fn, ok := gated.Gate(); ok {
			gate = fn
		}
	}

	route.Found = true
	route.View = d.opts.AutoView
	return route, action, gate
}

// Middleware returns the request stage running the dispatcher in front of
// next. next receives every request that resolves to no action.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		res, ok := ResolutionFromContext(ctx)
		if !ok {
			ctx, res = WithResolution(ctx)
		}

		route, action, gate := d.resolve(r.URL.EscapedPath(), r.Method)
		if !route.Found {
			*res = Resolution{}
			d.observe(route, start)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// View is claimed only once the action runs, and given up again
		// when the request falls through to next.
		*res = Resolution{Controller: route.Controller, Action: route.Action}
		passOn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res.View = false
			next.ServeHTTP(w, r)
		})

		ctx = registry.WithStore(ctx, d.store)
		if d.opts.Config != nil {
			ctx = config.WithContext(ctx, d.opts.Config)
		}
		r = r.WithContext(ctx)

		invoke := func(args ...string) {
			res.View = route.View
			action(w, r, passOn, args...)
		}
		if gate != nil {
			gate(w, r, passOn, invoke, route.Args...)
		} else {
			invoke(route.Args...)
		}

		d.observe(route, start)
	})
}

// Handler is the dispatcher as a terminal handler with notFound as the
// continuation.
func (d *Dispatcher) Handler(notFound http.Handler) http.Handler {
	return d.Middleware(notFound)
}

func (d *Dispatcher) observe(route Route, start time.Time) {
	if d.opts.Observer != nil {
		d.opts.Observer.ObserveDispatch(route, time.Since(start))
	}
}
