// Package handle provides supervised ownership of externally-cleaned-up
// resources with an atomic close state machine.
package handle

import (
	"log/slog"
	"sync/atomic"

	"github.com/guileen/respool/errors"
	"github.com/guileen/respool/logger"
)

// State is the lifecycle state of a handle
type State int32

const (
	StateAllocated State = iota
	StateClosing
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CleanupFunc releases the owned resource. It is invoked at most once per
// successful close.
type CleanupFunc[T any] func(T) error

// NotifyFunc is the optional release notification, invoked before cleanup.
// Errors and panics from it are logged and absorbed; they never block
// cleanup.
type NotifyFunc func() error

// Handle owns exactly one resource and supervises its release. Close is
// idempotent and safe for concurrent use; cleanup runs exactly once even
// under racing Close calls.
type Handle[T any] struct {
	resource T
	cleanup  CleanupFunc[T]
	notify   NotifyFunc
	state    atomic.Int32
	log      *slog.Logger
}

// Option configures a Handle
type Option[T any] func(*Handle[T])

// WithNotify attaches a release-notification callback
func WithNotify[T any](notify NotifyFunc) Option[T] {
	return func(h *Handle[T]) {
		h.notify = notify
	}
}

// WithLogger sets the handle logger
func WithLogger[T any](log *slog.Logger) Option[T] {
	return func(h *Handle[T]) {
		h.log = log
	}
}

// New creates a handle owning resource. cleanup may be nil for resources
// whose release is tracked elsewhere.
func New[T any](resource T, cleanup CleanupFunc[T], opts ...Option[T]) *Handle[T] {
	h := &Handle[T]{
		resource: resource,
		cleanup:  cleanup,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.log == nil {
		h.log = logger.With("component", "handle")
	}

	return h
}

// Get returns the owned resource while the handle is open
func (h *Handle[T]) Get() (T, error) {
	if State(h.state.Load()) != StateAllocated {
		var zero T
		return zero, errors.Wrap(errors.ErrHandleClosed, errors.ErrCodeAlreadyClosed, "handle.Get")
	}
	return h.resource, nil
}

// State returns the current lifecycle state
func (h *Handle[T]) State() State {
	return State(h.state.Load())
}

// Close releases the owned resource. A failed cleanup rolls the handle back
// to the allocated state so the close can be retried; notification failures
// are absorbed. Calling Close on an already closing or closed handle is a
// no-op.
func (h *Handle[T]) Close() error {
	if !h.state.CompareAndSwap(int32(StateAllocated), int32(StateClosing)) {
		return nil
	}

	h.runNotify()

	if h.cleanup != nil {
		if err := h.cleanup(h.resource); err != nil {
			// Resource is still open and usable; the caller may retry
			h.state.Store(int32(StateAllocated))
			return errors.NewCleanupFailure("handle.Close", err)
		}
	}

	h.state.Store(int32(StateClosed))
	return nil
}

// runNotify invokes the release notification, absorbing errors and panics
func (h *Handle[T]) runNotify() {
	if h.notify == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("release notification panicked", "panic", r)
		}
	}()

	if err := h.notify(); err != nil {
		h.log.Warn("release notification failed",
			"error_code", errors.ErrCodeNotificationFailure,
			"error", err.Error(),
		)
	}
}

// Listener receives lifecycle notifications for tracked resources
type Listener interface {
	OnCreated(id uint64, kind string)
	OnActivated(id uint64, kind string)
	OnClosed(id uint64, kind string)
}
