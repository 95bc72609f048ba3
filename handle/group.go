package handle

import (
	"io"
	"sync"

	"go.uber.org/multierr"
)

// Group aggregates handles so a multi-resource acquisition can be released
// as one unit. Close attempts every member even when some fail; failures are
// accumulated, never dropped, and the failed members stay in the group so a
// later Close can retry them. The group does not roll back partially built
// acquisitions on its own; callers close it on their failure paths.
type Group struct {
	mu      sync.Mutex
	members []io.Closer
	closed  bool
}

// NewGroup creates an empty handle group
func NewGroup() *Group {
	return &Group{}
}

// Add appends a handle to the group. Adding to a closed group closes the
// handle immediately so nothing leaks past the group's scope.
func (g *Group) Add(c io.Closer) error {
	if c == nil {
		return nil
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return c.Close()
	}
	g.members = append(g.members, c)
	g.mu.Unlock()
	return nil
}

// Len returns the number of member handles
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Close closes every member in reverse acquisition order, accumulating
// failures. Members whose close failed remain in the group so Close can be
// called again to retry them; the group only transitions to closed once all
// members are released. A Close after that is a no-op.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	var err error
	var failed []io.Closer
	for i := len(g.members) - 1; i >= 0; i-- {
		if cerr := g.members[i].Close(); cerr != nil {
			err = multierr.Append(err, cerr)
			// Prepend to preserve acquisition order for the retry
			failed = append([]io.Closer{g.members[i]}, failed...)
		}
	}

	g.members = failed
	if err == nil {
		g.closed = true
	}
	return err
}
