package logging

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID returns a child context carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the ID carried by ctx, or "".
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func GenerateCorrelationID() string {
	return uuid.NewString()
}

// EnsureCorrelationID keeps an existing ID and generates one otherwise.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationID(ctx); id != "" {
		return ctx, id
	}
	return NewCorrelationScope(ctx)
}

// NewCorrelationScope always starts a fresh ID, replacing any inherited one.
// The grab loop opens one scope per cycle.
func NewCorrelationScope(ctx context.Context) (context.Context, string) {
	id := GenerateCorrelationID()
	return WithCorrelationID(ctx, id), id
}
