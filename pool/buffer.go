package pool

import "time"

// Buffer is a fixed-capacity block of reusable memory. Buffers are tracked by
// their integer identity, never by content, so two same-sized buffers remain
// distinguishable.
type Buffer struct {
	id       uint64
	data     []byte
	category Category

	// Bookkeeping below is guarded by the owning pool's lock.
	pooled     bool // back in a free list, or a returned zero-cap buffer
	keepWarm   bool
	lastReturn time.Time
	firstSeq   uint64 // sequence of the first return, stable across reuse
	returnSeq  uint64 // sequence of the most recent return
}

// ID returns the process-unique identity assigned at creation
func (b *Buffer) ID() uint64 {
	return b.id
}

// Cap returns the buffer capacity in bytes
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Bytes returns the content region. The slice must not be retained past
// Return.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Category returns the size category the buffer was allocated under
func (b *Buffer) Category() Category {
	return b.category
}
