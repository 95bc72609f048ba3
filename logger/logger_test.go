package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextLogging(t *testing.T) {
	// Create a context with resource and operation information
	ctx := context.Background()
	ctx = WithContextValue(ctx, ResourceIDKey, uint64(123))
	ctx = WithContextValue(ctx, OperationKey, "allocate")
	ctx = WithContextValue(ctx, PoolNameKey, "default")

	// Test context-aware logging
	InfoContext(ctx, "Test message with context")

	// Test appending to existing args
	InfoContext(ctx, "Test message with context and args", "key", "value")
}

func TestExtractContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithContextValue(ctx, ResourceIDKey, uint64(7))
	ctx = WithContextValue(ctx, OperationKey, "release")

	args := ExtractContextValues(ctx)
	if len(args) != 4 {
		t.Fatalf("Expected 4 args, got %d", len(args))
	}
	if args[0] != "resource_id" || args[1] != uint64(7) {
		t.Errorf("Unexpected resource_id args: %v", args[:2])
	}
}

func TestFactoryWriter(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggerFactory(Config{
		Level:  slog.LevelDebug,
		Format: "json",
		Writer: &buf,
	})

	log := factory.CreateComponentLogger("pool")
	log.Info("hello", "hits", 1)

	out := buf.String()
	if !strings.Contains(out, `"component":"pool"`) {
		t.Errorf("Expected component field in output, got %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("Expected message in output, got %s", out)
	}
}

func TestLevelName(t *testing.T) {
	if LevelName(LevelTrace) != "TRACE" {
		t.Errorf("Expected TRACE, got %s", LevelName(LevelTrace))
	}
	if LevelName(LevelFatal) != "FATAL" {
		t.Errorf("Expected FATAL, got %s", LevelName(LevelFatal))
	}
	if LevelName(slog.LevelInfo) != "INFO" {
		t.Errorf("Expected INFO, got %s", LevelName(slog.LevelInfo))
	}
}

func TestBufferedWriter(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBufferedWriter(&buf, 64)

	if _, err := bw.Write([]byte("small")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected data to be buffered, but %d bytes were written", buf.Len())
	}

	if err := bw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if buf.String() != "small" {
		t.Errorf("Expected 'small', got %q", buf.String())
	}

	// Writes larger than the buffer go through directly
	big := bytes.Repeat([]byte("x"), 128)
	if _, err := bw.Write(big); err != nil {
		t.Fatalf("write large: %v", err)
	}
	if buf.Len() != 5+128 {
		t.Errorf("Expected 133 bytes written, got %d", buf.Len())
	}
}
