// Package pipeline is the HTTP request pipeline that application extensions
// configure: an ordered list of named middleware wrapped around a ServeMux.
package pipeline

import "net/http"

// Middleware wraps the next handler in the pipeline.
type Middleware func(next http.Handler) http.Handler

type namedMiddleware struct {
	name string
	mw   Middleware
}

// Builder collects middleware and routes. The first middleware passed to Use
// is the outermost one, so it sees the request first.
//
// Builder is not safe for concurrent use; it is driven from bootstrap only.
type Builder struct {
	middlewares []namedMiddleware
	mux         *http.ServeMux
	routes      []string
	properties  map[string]any
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		mux:        http.NewServeMux(),
		properties: make(map[string]any),
	}
}

// Use appends a middleware under name. A nil middleware is ignored.
func (b *Builder) Use(name string, mw Middleware) *Builder {
	if mw == nil {
		return b
	}
	b.middlewares = append(b.middlewares, namedMiddleware{name: name, mw: mw})
	return b
}

// Handle registers h for pattern on the underlying ServeMux.
// Like http.ServeMux it panics on conflicting patterns.
func (b *Builder) Handle(pattern string, h http.Handler) *Builder {
	b.mux.Handle(pattern, h)
	b.routes = append(b.routes, pattern)
	return b
}

// HandleFunc registers fn for pattern.
func (b *Builder) HandleFunc(pattern string, fn func(http.ResponseWriter, *http.Request)) *Builder {
	return b.Handle(pattern, http.HandlerFunc(fn))
}

// Middlewares returns the middleware names in execution order.
func (b *Builder) Middlewares() []string {
	out := make([]string, len(b.middlewares))
	for i, m := range b.middlewares {
		out[i] = m.name
	}
	return out
}

// Routes returns the registered patterns in registration order.
func (b *Builder) Routes() []string {
	return append([]string(nil), b.routes...)
}

// SetProperty stores a value extensions can share while configuring the pipeline.
func (b *Builder) SetProperty(key string, v any) *Builder {
	b.properties[key] = v
	return b
}

// Property returns a value stored with SetProperty.
func (b *Builder) Property(key string) (any, bool) {
	v, ok := b.properties[key]
	return v, ok
}

// Build composes the pipeline into a single handler.
func (b *Builder) Build() http.Handler {
	var h http.Handler = b.mux
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		h = b.middlewares[i].mw(h)
	}
	return h
}
