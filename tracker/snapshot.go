package tracker

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot captures the set of active resource identities at one moment,
// tagged with a unique snapshot ID so before/after pairs are unambiguous in
// test output.
type Snapshot struct {
	ID      string
	TakenAt time.Time

	resources map[uint64]snapshotEntry
}

type snapshotEntry struct {
	kind      string
	createdAt time.Time
	trace     []string
}

// Contains reports whether the snapshot holds the identity
func (s *Snapshot) Contains(id uint64) bool {
	_, ok := s.resources[id]
	return ok
}

// Size returns the number of captured identities
func (s *Snapshot) Size() int {
	return len(s.resources)
}

// CaptureSnapshot records the currently active identities
func (t *Tracker) CaptureSnapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	resources := make(map[uint64]snapshotEntry, len(t.records))
	for id, rec := range t.records {
		resources[id] = snapshotEntry{
			kind:      rec.Kind,
			createdAt: rec.CreatedAt,
			trace:     rec.Trace,
		}
	}

	return &Snapshot{
		ID:        uuid.NewString(),
		TakenAt:   t.clock.Now(),
		resources: resources,
	}
}

// Leak describes one resource identity present after but absent before
type Leak struct {
	ID    uint64
	Kind  string
	Age   time.Duration
	Trace []string
}

// LeakReport is the result of diffing two snapshots
type LeakReport struct {
	BeforeID string
	AfterID  string
	TakenAt  time.Time

	// ByKind groups leaked identities by logical resource type
	ByKind map[string][]Leak
}

// HasLeaks reports whether any identity appeared without being released
func (r *LeakReport) HasLeaks() bool {
	return len(r.ByKind) > 0
}

// Count returns the total number of leaked identities
func (r *LeakReport) Count() int {
	n := 0
	for _, leaks := range r.ByKind {
		n += len(leaks)
	}
	return n
}

// Diff identifies identities present in after but absent in before, grouped
// by kind and annotated with age and allocation trace
func Diff(before, after *Snapshot) *LeakReport {
	report := &LeakReport{
		BeforeID: before.ID,
		AfterID:  after.ID,
		TakenAt:  after.TakenAt,
		ByKind:   make(map[string][]Leak),
	}

	for id, entry := range after.resources {
		if before.Contains(id) {
			continue
		}
		report.ByKind[entry.kind] = append(report.ByKind[entry.kind], Leak{
			ID:    id,
			Kind:  entry.kind,
			Age:   after.TakenAt.Sub(entry.createdAt),
			Trace: entry.trace,
		})
	}

	return report
}
