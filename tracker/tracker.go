// Package tracker maintains a registry of live resource identities for leak
// detection and diagnostics.
package tracker

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guileen/respool/errors"
	"github.com/guileen/respool/logger"
)

// defaultClosedHistorySize bounds the recently-closed diagnostic buffer
const defaultClosedHistorySize = 1024

// Record is the lifecycle metadata kept per registered resource
type Record struct {
	ID        uint64
	Kind      string
	CreatedAt time.Time
	Trace     []string // allocation site, present when tracing is enabled

	closer func() error
}

// ClosedRecord is the diagnostic trace of an already-released resource
type ClosedRecord struct {
	ID        uint64
	Kind      string
	CreatedAt time.Time
	ClosedAt  time.Time
}

// Tracker is a concurrent registry from resource identity to Record.
// Identities are process-unique integers assigned at registration; they are
// never reused while a record is active.
type Tracker struct {
	mu      sync.RWMutex
	records map[uint64]*Record

	nextID atomic.Uint64

	clock clock.Clock
	log   *slog.Logger

	maxResources int
	traceAlloc   bool

	recentlyClosed *lru.Cache[uint64, ClosedRecord]
}

// Option configures a Tracker
type Option func(*Tracker)

// WithAllocationTracing captures the registration call site per record
func WithAllocationTracing() Option {
	return func(t *Tracker) {
		t.traceAlloc = true
	}
}

// WithMaxResources caps the number of live records; zero means unlimited
func WithMaxResources(n int) Option {
	return func(t *Tracker) {
		t.maxResources = n
	}
}

// WithClock substitutes the time source for tests
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithLogger sets the tracker logger
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

// New creates an empty tracker
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[uint64]*Record),
		clock:   clock.New(),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.log == nil {
		t.log = logger.With("component", "tracker")
	}

	// Size is a positive constant, so construction cannot fail
	t.recentlyClosed, _ = lru.New[uint64, ClosedRecord](defaultClosedHistorySize)

	return t
}

// Register assigns a fresh identity to a resource and stores its record.
// closer may be nil for resources released through another path.
func (t *Tracker) Register(kind string, closer func() error) (uint64, error) {
	var trace []string
	if t.traceAlloc {
		trace = captureTrace(2)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxResources > 0 && len(t.records) >= t.maxResources {
		return 0, errors.Wrapf(errors.ErrTooManyResources, errors.ErrCodeLimitExceeded,
			"tracker.Register", "registry is at capacity (%d)", t.maxResources)
	}

	id := t.nextID.Add(1)
	t.records[id] = &Record{
		ID:        id,
		Kind:      kind,
		CreatedAt: t.clock.Now(),
		Trace:     trace,
		closer:    closer,
	}

	return id, nil
}

// Unregister removes a record. The second call for the same identity is a
// no-op, not an error. Returns whether a record was removed.
func (t *Tracker) Unregister(id uint64) bool {
	t.mu.Lock()
	rec, ok := t.records[id]
	if ok {
		delete(t.records, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	t.recentlyClosed.Add(id, ClosedRecord{
		ID:        id,
		Kind:      rec.Kind,
		CreatedAt: rec.CreatedAt,
		ClosedAt:  t.clock.Now(),
	})

	return true
}

// ActiveCount returns the number of currently registered resources
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// ActiveIDs returns the identities of currently registered resources in
// ascending order
func (t *Tracker) ActiveIDs() []uint64 {
	t.mu.RLock()
	ids := make([]uint64, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Get returns a copy of the record for an identity
func (t *Tracker) Get(id uint64) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ActiveRecords returns copies of all live records in identity order
func (t *Tracker) ActiveRecords() []Record {
	t.mu.RLock()
	records := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, *rec)
	}
	t.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// ForceCloseAll invokes the closer of every still-registered resource,
// logging individual failures instead of propagating them. Records whose
// closer succeeds (or that have none) are removed. Returns the number of
// resources closed. Intended as an emergency sweep for test teardown.
func (t *Tracker) ForceCloseAll() int {
	t.mu.RLock()
	pending := make([]*Record, 0, len(t.records))
	for _, rec := range t.records {
		pending = append(pending, rec)
	}
	t.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	closed := 0
	for _, rec := range pending {
		if rec.closer != nil {
			if err := rec.closer(); err != nil {
				t.log.Error("force close failed",
					"resource_id", rec.ID,
					"kind", rec.Kind,
					"error", err.Error(),
				)
				continue
			}
		}
		t.Unregister(rec.ID)
		closed++
	}

	if closed > 0 {
		t.log.Warn("force closed resources", "closed", closed)
	}

	return closed
}

// RecentlyClosed returns the bounded history of released resources
func (t *Tracker) RecentlyClosed() []ClosedRecord {
	return t.recentlyClosed.Values()
}

// Reset clears all records for test isolation. Identities are not reused.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.records = make(map[uint64]*Record)
	t.mu.Unlock()

	t.recentlyClosed.Purge()
}

// captureTrace records the registration call site
func captureTrace(skip int) []string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	trace := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		trace = append(trace, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return trace
}
