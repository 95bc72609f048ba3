// Package manager composes the buffer pool and the resource registry behind
// a single facade.
package manager

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/guileen/respool/config"
	"github.com/guileen/respool/errors"
	"github.com/guileen/respool/handle"
	"github.com/guileen/respool/logger"
	"github.com/guileen/respool/pool"
	"github.com/guileen/respool/tracker"
)

// Manager owns a buffer pool and a resource registry configured together.
// Instances are explicit; there is no process-wide singleton.
type Manager struct {
	cfg config.Config

	pool *pool.Pool
	reg  *tracker.Tracker

	// buffers maps buffer identity to registry identity for buffers handed
	// out through AllocateMemory. Guarded by mu; never held together with
	// the pool or registry locks.
	mu      sync.Mutex
	buffers map[uint64]uint64

	closed    atomic.Bool
	clock     clock.Clock
	startedAt time.Time
	log       *slog.Logger
}

// Option configures a Manager
type Option func(*options)

type options struct {
	clock       clock.Clock
	log         *slog.Logger
	trackerOpts []tracker.Option
}

// WithClock substitutes the time source used by the pool and registry
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the manager logger
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithAllocationTracing records registration call sites for leak reports
func WithAllocationTracing() Option {
	return func(o *options) {
		o.trackerOpts = append(o.trackerOpts, tracker.WithAllocationTracing())
	}
}

// New creates a manager from the given configuration
func New(cfg config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{clock: clock.New()}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.With("component", "manager")
	}

	bufPool, err := pool.New(cfg,
		pool.WithClock(o.clock),
		pool.WithLogger(o.log.With("component", "pool")),
	)
	if err != nil {
		return nil, err
	}

	trackerOpts := append([]tracker.Option{
		tracker.WithMaxResources(cfg.MaxResourceCount),
		tracker.WithClock(o.clock),
		tracker.WithLogger(o.log.With("component", "tracker")),
	}, o.trackerOpts...)

	return &Manager{
		cfg:       cfg,
		pool:      bufPool,
		reg:       tracker.New(trackerOpts...),
		buffers:   make(map[uint64]uint64),
		clock:     o.clock,
		startedAt: o.clock.Now(),
		log:       o.log,
	}, nil
}

// NewDefault creates a manager with the default configuration
func NewDefault(opts ...Option) (*Manager, error) {
	return New(config.Default(), opts...)
}

// AllocateMemory hands out a pooled buffer and registers it as an active
// resource until released
func (m *Manager) AllocateMemory(size int) (*pool.Buffer, error) {
	if m.closed.Load() {
		return nil, errors.Wrap(errors.ErrManagerClosed, errors.ErrCodeAlreadyClosed, "manager.AllocateMemory")
	}

	buf, err := m.pool.Allocate(size)
	if err != nil {
		return nil, err
	}

	id, err := m.reg.Register("buffer", nil)
	if err != nil {
		m.pool.Return(buf)
		return nil, err
	}

	m.mu.Lock()
	m.buffers[buf.ID()] = id
	m.mu.Unlock()

	return buf, nil
}

// ReleaseMemory returns a buffer to the pool and unregisters it. Nil buffers
// and double releases are no-ops.
func (m *Manager) ReleaseMemory(buf *pool.Buffer) error {
	if buf == nil {
		return nil
	}

	if m.closed.Load() {
		return errors.Wrap(errors.ErrManagerClosed, errors.ErrCodeAlreadyClosed, "manager.ReleaseMemory")
	}

	m.mu.Lock()
	id, ok := m.buffers[buf.ID()]
	if ok {
		delete(m.buffers, buf.ID())
	}
	m.mu.Unlock()

	if !ok {
		// Not one of ours, or already released
		return nil
	}

	m.reg.Unregister(id)
	m.pool.Return(buf)
	return nil
}

// Add wraps an externally-cleaned-up resource in a supervised handle
// registered with the tracker. The optional listener is notified on
// creation, activation and close; listener failures are absorbed.
func Add[T any](m *Manager, resource T, cleanup handle.CleanupFunc[T], l handle.Listener) (*handle.Handle[T], error) {
	if m.closed.Load() {
		return nil, errors.Wrap(errors.ErrManagerClosed, errors.ErrCodeAlreadyClosed, "manager.Add")
	}

	kind := fmt.Sprintf("%T", resource)

	// The handle must be complete before its Close is visible to the
	// registry, so a concurrent force-close sweep never sees a half-built
	// closer. The identity is published through an atomic for the same
	// reason; until it lands the sweep does its own unregistering.
	var id atomic.Uint64
	h := handle.New(resource,
		func(res T) error {
			if cleanup != nil {
				if err := cleanup(res); err != nil {
					return err
				}
			}
			m.reg.Unregister(id.Load())
			notify(m.log, func() { safeOnClosed(l, id.Load(), kind) })
			return nil
		},
		handle.WithLogger[T](m.log.With("component", "handle", "kind", kind)),
	)

	regID, err := m.reg.Register(kind, h.Close)
	if err != nil {
		return nil, err
	}
	id.Store(regID)

	notify(m.log, func() { safeOnCreated(l, regID, kind) })
	notify(m.log, func() { safeOnActivated(l, regID, kind) })

	return h, nil
}

// notify runs a listener callback, absorbing panics so bookkeeping can never
// break resource management
func notify(log *slog.Logger, f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("resource listener panicked", "panic", r)
		}
	}()
	f()
}

func safeOnCreated(l handle.Listener, id uint64, kind string) {
	if l != nil {
		l.OnCreated(id, kind)
	}
}

func safeOnActivated(l handle.Listener, id uint64, kind string) {
	if l != nil {
		l.OnActivated(id, kind)
	}
}

func safeOnClosed(l handle.Listener, id uint64, kind string) {
	if l != nil {
		l.OnClosed(id, kind)
	}
}

// PerformMaintenance runs idle eviction and registry reconciliation. It is
// meant to be driven by a periodic caller, never by the allocation path.
func (m *Manager) PerformMaintenance() error {
	if m.closed.Load() {
		return errors.Wrap(errors.ErrManagerClosed, errors.ErrCodeAlreadyClosed, "manager.PerformMaintenance")
	}

	evicted := m.pool.EvictExpired()

	// Drop buffer mappings whose registry record disappeared, e.g. after a
	// force-close sweep
	stale := 0
	m.mu.Lock()
	for bufID, resID := range m.buffers {
		if _, ok := m.reg.Get(resID); !ok {
			delete(m.buffers, bufID)
			stale++
		}
	}
	m.mu.Unlock()

	m.log.Debug("maintenance pass complete", "idle_evicted", evicted, "stale_mappings", stale)
	return nil
}

// ActiveResourceCount returns the number of currently tracked resources
func (m *Manager) ActiveResourceCount() int {
	return m.reg.ActiveCount()
}

// TotalMemoryUsage returns the bytes currently resident in the pool
func (m *Manager) TotalMemoryUsage() int64 {
	return m.pool.Stats().ResidentBytes
}

// Stats returns a read-only snapshot of pool and registry state
func (m *Manager) Stats() Stats {
	records := m.reg.ActiveRecords()
	byKind := make(map[string]int)
	for _, rec := range records {
		byKind[rec.Kind]++
	}

	return Stats{
		Pool:            m.pool.Stats(),
		ActiveResources: len(records),
		ResourcesByKind: byKind,
		UptimeSeconds:   m.clock.Since(m.startedAt).Seconds(),
	}
}

// ActiveRecords returns the registry records of currently live resources
func (m *Manager) ActiveRecords() []tracker.Record {
	return m.reg.ActiveRecords()
}

// RecentlyClosed returns the bounded history of released resources
func (m *Manager) RecentlyClosed() []tracker.ClosedRecord {
	return m.reg.RecentlyClosed()
}

// CaptureSnapshot records the active identities for leak-detection diffs
func (m *Manager) CaptureSnapshot() *tracker.Snapshot {
	return m.reg.CaptureSnapshot()
}

// ForceCloseAll closes every tracked resource, logging individual failures.
// An emergency sweep for test teardown.
func (m *Manager) ForceCloseAll() int {
	return m.reg.ForceCloseAll()
}

// Reset clears pool and registry state for test isolation. The manager
// remains usable.
func (m *Manager) Reset() error {
	if m.closed.Load() {
		return errors.Wrap(errors.ErrManagerClosed, errors.ErrCodeAlreadyClosed, "manager.Reset")
	}

	m.pool.Clear()
	m.reg.Reset()

	m.mu.Lock()
	m.buffers = make(map[uint64]uint64)
	m.mu.Unlock()

	m.log.Info("manager state reset")
	return nil
}

// Close shuts the manager down: tracked resources are force-closed, pooled
// memory is released, and every subsequent operation fails. Close is
// idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	closed := m.reg.ForceCloseAll()
	m.pool.Clear()

	m.mu.Lock()
	m.buffers = make(map[uint64]uint64)
	m.mu.Unlock()

	m.log.Info("manager shut down", "force_closed", closed)
	return nil
}

// Shutdown is an alias for Close
func (m *Manager) Shutdown() error {
	return m.Close()
}

// Closed reports whether the manager has been shut down
func (m *Manager) Closed() bool {
	return m.closed.Load()
}
