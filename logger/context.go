package logger

import (
	"context"
)

// ContextKey is used for context values
type ContextKey string

const (
	// ResourceIDKey is the context key for the tracked resource identity
	ResourceIDKey ContextKey = "resource_id"
	// OperationKey is the context key for the in-flight operation name
	OperationKey ContextKey = "operation"
	// PoolNameKey is the context key for the buffer pool name
	PoolNameKey ContextKey = "pool"
)

// WithContextValue adds a value to the context for logging
func WithContextValue(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// ExtractContextValues extracts logging-relevant values from context
func ExtractContextValues(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var args []any

	// Extract common context values
	if resourceID, ok := ctx.Value(ResourceIDKey).(uint64); ok {
		args = append(args, "resource_id", resourceID)
	}

	if operation, ok := ctx.Value(OperationKey).(string); ok {
		args = append(args, "operation", operation)
	}

	if pool, ok := ctx.Value(PoolNameKey).(string); ok {
		args = append(args, "pool", pool)
	}

	return args
}
