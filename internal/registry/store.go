// Package registry holds the artifact store: the five name-keyed
// collections populated once at boot and only read afterwards.
//
// A Builder is filled by the bootstrap loader and published with Build.
// The resulting *Store has no mutating methods, so request handlers may read
// it from any number of goroutines without locking.
package registry

import (
	"context"
	"sort"

	"github.com/conneroisu/ni/internal/types"
)

// Store is the published, read-only artifact store.
type Store struct {
	controllers map[string]types.Controller
	models      map[string]any
	views       map[string]types.Template
	libraries   map[string]any
	helpers     map[string]any
}

// Builder collects artifacts before the store is published.
// It is not safe for concurrent use; the loader fills it after joining.
type Builder struct {
	store *Store
	built bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{store: newStore()}
}

func newStore() *Store {
	return &Store{
		controllers: make(map[string]types.Controller),
		models:      make(map[string]any),
		views:       make(map[string]types.Template),
		libraries:   make(map[string]any),
		helpers:     make(map[string]any),
	}
}

// Empty returns a store with five empty collections.
func Empty() *Store {
	return newStore()
}

// AddController registers a handler group, replacing any previous one.
func (b *Builder) AddController(name string, c types.Controller) *Builder {
	b.mustOpen()
	b.store.controllers[name] = c
	return b
}

// AddView registers a template, replacing any previous one.
func (b *Builder) AddView(name string, t types.Template) *Builder {
	b.mustOpen()
	b.store.views[name] = t
	return b
}

// AddModule registers an opaque module of a code kind other than
// controllers.
func (b *Builder) AddModule(kind types.Kind, name string, module any) *Builder {
	b.mustOpen()
	switch kind {
	case types.KindModels:
		b.store.models[name] = module
	case types.KindLibraries:
		b.store.libraries[name] = module
	case types.KindHelpers:
		b.store.helpers[name] = module
	default:
		panic("registry: AddModule called with kind " + string(kind))
	}
	return b
}

// Build publishes the store. The builder cannot be used afterwards.
func (b *Builder) Build() *Store {
	b.mustOpen()
	b.built = true
	return b.store
}

func (b *Builder) mustOpen() {
	if b.built {
		panic("registry: builder used after Build")
	}
}

// Controller retrieves a handler group by name.
func (s *Store) Controller(name string) (types.Controller, bool) {
	c, ok := s.controllers[name]
	return c, ok
}

// View retrieves a raw template by name.
func (s *Store) View(name string) (types.Template, bool) {
	t, ok := s.views[name]
	return t, ok
}

// Model retrieves a data module by name.
func (s *Store) Model(name string) (any, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Library retrieves a shared library by name.
func (s *Store) Library(name string) (any, bool) {
	l, ok := s.libraries[name]
	return l, ok
}

// Helper retrieves a helper module by name.
func (s *Store) Helper(name string) (any, bool) {
	h, ok := s.helpers[name]
	return h, ok
}

// Names returns the sorted artifact names of a collection.
func (s *Store) Names(kind types.Kind) []string {
	var names []string
	switch kind {
	case types.KindControllers:
		names = keys(s.controllers)
	case types.KindModels:
		names = keys(s.models)
	case types.KindViews:
		names = keys(s.views)
	case types.KindLibraries:
		names = keys(s.libraries)
	case types.KindHelpers:
		names = keys(s.helpers)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of artifacts in a collection.
func (s *Store) Count(kind types.Kind) int {
	switch kind {
	case types.KindControllers:
		return len(s.controllers)
	case types.KindModels:
		return len(s.models)
	case types.KindViews:
		return len(s.views)
	case types.KindLibraries:
		return len(s.libraries)
	case types.KindHelpers:
		return len(s.helpers)
	default:
		return 0
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

type contextKey struct{}

// WithStore returns a copy of ctx carrying the store.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the store attached by the dispatcher, or nil.
func FromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(contextKey{}).(*Store)
	return s
}
