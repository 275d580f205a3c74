package middleware

import "net/http"

// Middleware wraps an http.Handler. The server applies its stack around the
// whole Gin engine, so it also covers 404s and preflight requests that never
// match a route.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares; the first one sees the request first.
func Chain(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := range middlewares {
			h = middlewares[len(middlewares)-1-i](h)
		}
		return h
	}
}
