// Package requestid conveys a per-request identifier through
// context.Context. The transport adapters stamp each HTTP request with one
// and include it in their per-request log line; the cachefs layer does not
// receive or log it.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// New generates a fresh request ID and returns a context carrying it.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request ID carried by ctx, generating a fresh one
// if none is present.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
