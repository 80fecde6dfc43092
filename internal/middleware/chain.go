// Package middleware composes transport stages around an application
// handler. A stage is any func(http.Handler) http.Handler; the dispatcher,
// the renderer attachment and the view hook are all stages.
package middleware

import (
	"fmt"
	"net/http"
)

// Middleware represents a single stage.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of stages. The first stage added is the
// outermost wrapper: requests flow through stages in the order they were
// added, and responses in reverse.
//
// Example with stages [A, B, C] and handler H: A(B(C(H))).
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from stages, skipping nil ones.
func NewChain(middlewares ...Middleware) *Chain {
	c := &Chain{middlewares: make([]Middleware, 0, len(middlewares))}
	for _, m := range middlewares {
		c.Use(m)
	}
	return c
}

// Use appends a stage inside the ones already added. Nil is ignored so
// optional stages can be passed unconditionally.
func (c *Chain) Use(m Middleware) *Chain {
	if m != nil {
		c.middlewares = append(c.middlewares, m)
	}
	return c
}

// UseIf appends m when cond holds.
func (c *Chain) UseIf(cond bool, m Middleware) *Chain {
	if cond {
		c.Use(m)
	}
	return c
}

// Len returns the number of stages.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Then wraps handler with every stage and returns the result. It panics
// if handler is nil or a stage returns nil.
func (c *Chain) Then(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware: handler cannot be nil")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("middleware: stage %d returned nil handler", i))
		}
	}

	return wrapped
}
