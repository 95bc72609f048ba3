package logger

import (
	"log/slog"
	"time"
)

// Field helpers for structured logging
var (
	// Common field constructors
	String  = slog.String
	Int     = slog.Int
	Int64   = slog.Int64
	Uint64  = slog.Uint64
	Float64 = slog.Float64
	Bool    = slog.Bool
	Time    = slog.Time
	Any     = slog.Any

	// Specialized field constructors
	Duration = func(key string, d time.Duration) slog.Attr {
		return slog.Any(key, d)
	}

	ErrorField = func(err error) slog.Attr {
		if err == nil {
			return slog.String("error", "<nil>")
		}
		return slog.String("error", err.Error())
	}

	// Component-specific fields
	Component = func(name string) slog.Attr {
		return slog.String("component", name)
	}

	Operation = func(name string) slog.Attr {
		return slog.String("operation", name)
	}

	ResourceID = func(id uint64) slog.Attr {
		return slog.Uint64("resource_id", id)
	}

	ResourceKind = func(kind string) slog.Attr {
		return slog.String("kind", kind)
	}

	Category = func(name string) slog.Attr {
		return slog.String("category", name)
	}

	Bytes = func(key string, n int64) slog.Attr {
		return slog.Int64(key, n)
	}
)
