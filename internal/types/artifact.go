// Package types provides common type definitions used throughout ni.
// This package contains shared types to avoid circular dependencies between
// the loader, the artifact store, and the dispatcher.
package types

import (
	"net/http"
)

// Kind identifies one of the artifact collections loaded at boot.
type Kind string

const (
	KindControllers Kind = "controllers"
	KindModels      Kind = "models"
	KindViews       Kind = "views"
	KindLibraries   Kind = "libraries"
	KindHelpers     Kind = "helpers"
)

// Kinds lists every collection in boot order.
var Kinds = []Kind{KindControllers, KindModels, KindViews, KindLibraries, KindHelpers}

// Dir returns the directory name of the collection relative to the app root.
func (k Kind) Dir() string {
	return string(k)
}

// IsCode reports whether artifacts of this kind are compiled modules
// rather than raw text.
func (k Kind) IsCode() bool {
	return k != KindViews
}

// Template is a view artifact: raw, uncompiled template text.
type Template struct {
	// Path is the file the template was read from
	Path string `json:"path" yaml:"path"`
	// Content is the raw template text
	Content string `json:"content" yaml:"content"`
}

// Action is a single request-handling entry point of a handler group.
// next is the transport continuation; args are the positional URL segments
// following the action segment, passed through uncoerced.
type Action func(w http.ResponseWriter, r *http.Request, next http.Handler, args ...string)

// Proceed runs the action an init gate is guarding, with the given
// positional arguments.
type Proceed func(args ...string)

// InitFunc is the optional gate of a handler group. It runs before the
// resolved action and decides whether and how to call proceed.
type InitFunc func(w http.ResponseWriter, r *http.Request, next http.Handler, proceed Proceed, args ...string)

// Controller is a handler group: a named bag of actions.
type Controller interface {
	// Action looks up an action by its URL name.
	Action(name string) (Action, bool)
}

// Gated is the optional capability of a Controller exposing an init gate.
type Gated interface {
	Gate() (InitFunc, bool)
}

// Actions is a map-backed Controller.
type Actions map[string]Action

// Action implements Controller.
func (a Actions) Action(name string) (Action, bool) {
	fn, ok := a[name]
	if !ok || fn == nil {
		return nil, false
	}
	return fn, true
}

// Names returns the action names in no particular order.
func (a Actions) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	return names
}

// Group is a handler group with an optional init gate.
type Group struct {
	Actions Actions
	Init    InitFunc
}

// Action implements Controller.
func (g *Group) Action(name string) (Action, bool) {
	return g.Actions.Action(name)
}

// Gate implements Gated.
func (g *Group) Gate() (InitFunc, bool) {
	return g.Init, g.Init != nil
}

// Names returns the action names of the group.
func (g *Group) Names() []string {
	return g.Actions.Names()
}
