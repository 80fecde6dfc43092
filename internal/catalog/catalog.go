// Package catalog is the compiled counterpart of loading code from a
// directory: application packages register a factory per module name from
// their init functions, and the loader instantiates the factory whose name
// matches each file it finds under controllers/, models/, libraries/ and
// helpers/.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/ni/internal/types"
)

// Factory builds one module instance.
type Factory func() (any, error)

// Catalog maps (kind, name) to module factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[types.Kind]map[string]Factory
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		factories: make(map[types.Kind]map[string]Factory),
	}
}

// Default is the catalog package-level Register calls write to.
var Default = New()

// Register adds a factory. A later registration for the same kind and name
// replaces the earlier one. It panics on a nil factory or on the views
// kind, which is never compiled.
func (c *Catalog) Register(kind types.Kind, name string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("catalog: nil factory for %s/%s", kind, name))
	}
	if !kind.IsCode() {
		panic(fmt.Sprintf("catalog: %s are loaded as text, not registered", kind))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byName, ok := c.factories[kind]
	if !ok {
		byName = make(map[string]Factory)
		c.factories[kind] = byName
	}
	byName[name] = factory
}

// Lookup returns the factory registered for kind and name.
func (c *Catalog) Lookup(kind types.Kind, name string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	factory, ok := c.factories[kind][name]
	return factory, ok
}

// Names returns the sorted module names registered for kind.
func (c *Catalog) Names(kind types.Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories[kind]))
	for name := range c.factories[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a factory to Default.
func Register(kind types.Kind, name string, factory Factory) {
	Default.Register(kind, name, factory)
}

// RegisterController adds a handler group factory to Default.
func RegisterController(name string, factory func() (types.Controller, error)) {
	Default.Register(types.KindControllers, name, func() (any, error) {
		return factory()
	})
}

// Controller registers a ready-made handler group in Default.
func Controller(name string, c types.Controller) {
	RegisterController(name, func() (types.Controller, error) { return c, nil })
}

// Module registers a ready-made module of a code kind in Default.
func Module(kind types.Kind, name string, module any) {
	Default.Register(kind, name, func() (any, error) { return module, nil })
}
