// Package middleware provides a middleware pipeline for request transports.
//
// Middleware wraps a transport.Transport to add cross-cutting concerns like
// logging, rate limiting, metrics, panic recovery, request ids and timeouts.
package middleware

import (
	"github.com/meszmate/ews-go/transport"
)

// Middleware wraps a Transport to add behavior before/after sending.
type Middleware func(next transport.Transport) transport.Transport

// Chain composes multiple middlewares into a single middleware.
// Middlewares are applied in order: the first middleware in the list
// is the outermost (executed first on request, last on response).
func Chain(middlewares ...Middleware) Middleware {
	return func(next transport.Transport) transport.Transport {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				next = middlewares[i](next)
			}
		}
		return next
	}
}

// Apply wraps t with the given middlewares.
func Apply(t transport.Transport, middlewares ...Middleware) transport.Transport {
	return Chain(middlewares...)(t)
}
