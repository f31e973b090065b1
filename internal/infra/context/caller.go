package context

import (
	"context"

	"github.com/mkrupp/bookcase/internal/domain"
)

type contextKey string

const contextKeyCaller = contextKey("caller")

// CallerFromContext extracts the authenticated caller from the context.
// Returns the caller and true if present, or a zero caller and false if not present.
func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(domain.Caller)

	return caller, ok
}

// WithCaller creates a new context carrying the authenticated caller.
// This context can be used to track the acting user throughout a request.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}
