// Package pool provides a size-bucketed buffer pool with watermark-driven and
// idle-based eviction.
package pool

import (
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/guileen/respool/config"
	"github.com/guileen/respool/errors"
	"github.com/guileen/respool/logger"
)

// bucket holds the free list for one rounded size
type bucket struct {
	size     int64
	category Category
	free     []*Buffer
	keepWarm bool
	useCount uint64 // pool hits served from this bucket
}

// Pool is a bounded cache of reusable byte buffers, bucketed by
// power-of-two size. Bucket structures are mutated under a single lock;
// statistics are read lock-free.
type Pool struct {
	mu      sync.Mutex
	buckets map[int64]*bucket
	seq     uint64 // monotonic return sequence

	cfg   config.Config
	clock clock.Clock
	log   *slog.Logger

	nextID atomic.Uint64

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	residentBytes atomic.Int64
	activeBuffers atomic.Int64
}

// Option configures a Pool
type Option func(*Pool)

// WithClock substitutes the time source, used by idle-eviction tests
func WithClock(c clock.Clock) Option {
	return func(p *Pool) {
		p.clock = c
	}
}

// WithLogger sets the pool logger
func WithLogger(log *slog.Logger) Option {
	return func(p *Pool) {
		p.log = log
	}
}

// New creates a buffer pool with the given configuration
func New(cfg config.Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		buckets: make(map[int64]*bucket),
		cfg:     cfg,
		clock:   clock.New(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		p.log = logger.With("component", "pool")
	}

	return p, nil
}

// Allocate returns a zero-filled buffer whose capacity is the smallest power
// of two at or above size. Size zero yields a zero-capacity buffer.
func (p *Pool) Allocate(size int) (*Buffer, error) {
	if size < 0 {
		return nil, errors.Wrapf(errors.ErrInvalidSize, errors.ErrCodeInvalidArgument,
			"pool.Allocate", "size must be non-negative, got %d", size)
	}

	if size == 0 {
		p.misses.Add(1)
		p.activeBuffers.Add(1)
		return &Buffer{id: p.nextID.Add(1), category: CategorySmall}, nil
	}

	rounded := nextPowerOfTwo(int64(size))

	p.mu.Lock()
	if b, ok := p.buckets[rounded]; ok && len(b.free) > 0 {
		buf := b.free[len(b.free)-1]
		b.free = b.free[:len(b.free)-1]
		b.useCount++
		buf.pooled = false
		p.residentBytes.Add(-rounded)
		p.mu.Unlock()

		clear(buf.data)
		p.hits.Add(1)
		p.activeBuffers.Add(1)
		return buf, nil
	}
	p.mu.Unlock()

	buf := &Buffer{
		id:       p.nextID.Add(1),
		data:     make([]byte, rounded),
		category: CategoryFor(rounded),
	}

	p.misses.Add(1)
	p.activeBuffers.Add(1)
	return buf, nil
}

// Return places the buffer back in its bucket and applies the watermark
// policy. Nil buffers and double returns are no-ops.
func (p *Pool) Return(buf *Buffer) {
	if buf == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if buf.pooled {
		p.log.Warn("buffer returned twice", "buffer_id", buf.id)
		return
	}

	p.activeBuffers.Add(-1)

	if buf.Cap() == 0 {
		// Never enters a free list, but still needs the double-return guard
		buf.pooled = true
		return
	}

	size := int64(buf.Cap())
	b, ok := p.buckets[size]
	if !ok {
		b = &bucket{size: size, category: buf.category}
		p.buckets[size] = b
	}

	p.seq++
	buf.returnSeq = p.seq
	if buf.firstSeq == 0 {
		buf.firstSeq = p.seq
	}
	buf.lastReturn = p.clock.Now()
	buf.keepWarm = b.keepWarm
	buf.pooled = true
	b.free = append(b.free, buf)
	p.residentBytes.Add(size)

	p.enforceWatermarksLocked()
}

// enforceWatermarksLocked evicts down to the low watermark once the high
// watermark is crossed, and past keep-warm pins if the hard cap is still
// exceeded.
func (p *Pool) enforceWatermarksLocked() {
	maxBytes := p.cfg.MaxPoolSizeBytes
	high := int64(p.cfg.HighWaterMark * float64(maxBytes))
	low := int64(p.cfg.LowWaterMark * float64(maxBytes))

	if p.residentBytes.Load() > high {
		p.evictLocked(low, false)
	}

	// Keep-warm pins do not protect against the hard cap
	if p.residentBytes.Load() > maxBytes {
		p.evictLocked(maxBytes, true)
	}
}

// evictLocked removes buffers in eviction-policy order until resident bytes
// drop to targetBytes or no candidates remain
func (p *Pool) evictLocked(targetBytes int64, includeKeepWarm bool) {
	for p.residentBytes.Load() > targetBytes {
		victim, b := p.selectVictimLocked(includeKeepWarm)
		if victim == nil {
			return
		}
		p.removeLocked(victim, b)
		p.evictions.Add(1)
		p.log.Debug("evicted buffer",
			"buffer_id", victim.id,
			"capacity", victim.Cap(),
			"category", victim.category.String(),
		)
	}
}

// removeLocked unlinks a buffer from its bucket's free list
func (p *Pool) removeLocked(buf *Buffer, b *bucket) {
	for i, candidate := range b.free {
		if candidate == buf {
			b.free = append(b.free[:i], b.free[i+1:]...)
			break
		}
	}
	buf.pooled = false
	p.residentBytes.Add(-int64(buf.Cap()))
}

// EvictExpired removes buffers idle past their category timeout, unless
// keep-warm. Intended to be driven by periodic maintenance.
func (p *Pool) EvictExpired() int {
	if p.cfg.MaxIdleTime == 0 {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	evicted := 0

	for _, b := range p.buckets {
		timeout := b.category.IdleTimeout(p.cfg.MaxIdleTime)
		kept := b.free[:0]
		for _, buf := range b.free {
			if !buf.keepWarm && now.Sub(buf.lastReturn) > timeout {
				buf.pooled = false
				p.residentBytes.Add(-int64(buf.Cap()))
				p.evictions.Add(1)
				evicted++
				continue
			}
			kept = append(kept, buf)
		}
		b.free = kept
	}

	if evicted > 0 {
		p.log.Debug("idle eviction pass complete", "evicted", evicted)
	}

	return evicted
}

// KeepWarm pins the bucket for the given size against idle eviction
func (p *Pool) KeepWarm(size int) {
	if size <= 0 {
		return
	}
	rounded := nextPowerOfTwo(int64(size))

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[rounded]
	if !ok {
		b = &bucket{size: rounded, category: CategoryFor(rounded)}
		p.buckets[rounded] = b
	}
	b.keepWarm = true
	for _, buf := range b.free {
		buf.keepWarm = true
	}
}

// ClearKeepWarm unpins the bucket for the given size
func (p *Pool) ClearKeepWarm(size int) {
	if size <= 0 {
		return
	}
	rounded := nextPowerOfTwo(int64(size))

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[rounded]
	if !ok {
		return
	}
	b.keepWarm = false
	for _, buf := range b.free {
		buf.keepWarm = false
	}
}

// Clear drops every pooled buffer. Borrowed buffers are unaffected.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range p.buckets {
		for _, buf := range b.free {
			buf.pooled = false
		}
	}
	p.buckets = make(map[int64]*bucket)
	p.seq = 0
	p.residentBytes.Store(0)
}

// Stats is a point-in-time snapshot of pool counters
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Evictions     int64   `json:"evictions"`
	ResidentBytes int64   `json:"resident_bytes"`
	ActiveBuffers int64   `json:"active_buffers"`
}

// Stats returns current counters without taking the pool lock
func (p *Pool) Stats() Stats {
	hits := p.hits.Load()
	misses := p.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		Evictions:     p.evictions.Load(),
		ResidentBytes: p.residentBytes.Load(),
		ActiveBuffers: p.activeBuffers.Load(),
	}
}

// nextPowerOfTwo rounds n up to the nearest power of two. Zero stays zero.
func nextPowerOfTwo(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len64(uint64(n))
}
