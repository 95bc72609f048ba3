package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// LoggerFactory manages logger creation and configuration
type LoggerFactory struct {
	config Config
	writer io.Writer
	mutex  sync.RWMutex
}

// NewLoggerFactory creates a new LoggerFactory with the given configuration
func NewLoggerFactory(config Config) *LoggerFactory {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}

	return &LoggerFactory{
		config: config,
		writer: writer,
	}
}

// CreateLogger creates a new logger with the factory's configuration
func (f *LoggerFactory) CreateLogger() *slog.Logger {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	config := f.config
	config.Writer = f.writer
	return NewLogger(config)
}

// CreateComponentLogger creates a logger pre-tagged with a component name
func (f *LoggerFactory) CreateComponentLogger(component string) *slog.Logger {
	return f.CreateLogger().With("component", component)
}

// UpdateConfig updates the factory's configuration
func (f *LoggerFactory) UpdateConfig(config Config) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.config = config

	// Update writer if provided
	if config.Writer != nil {
		f.writer = config.Writer
	}
}
