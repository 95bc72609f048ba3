package handle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resperrors "github.com/guileen/respool/errors"
)

type fakeResource struct {
	name string
}

func TestGetReturnsResource(t *testing.T) {
	h := New(&fakeResource{name: "texture"}, func(*fakeResource) error { return nil })

	res, err := h.Get()
	require.NoError(t, err)
	assert.Equal(t, "texture", res.name)
	assert.Equal(t, StateAllocated, h.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	var cleanups int
	h := New(&fakeResource{}, func(*fakeResource) error {
		cleanups++
		return nil
	})

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.Equal(t, 1, cleanups, "cleanup must run exactly once")
	assert.Equal(t, StateClosed, h.State())

	_, err := h.Get()
	require.Error(t, err)
	assert.True(t, resperrors.IsAlreadyClosed(err))
}

func TestCleanupFailureRollsBack(t *testing.T) {
	attempts := 0
	h := New(&fakeResource{}, func(*fakeResource) error {
		attempts++
		if attempts == 1 {
			return errors.New("device busy")
		}
		return nil
	})

	err := h.Close()
	require.Error(t, err)
	assert.True(t, resperrors.IsCleanupFailure(err))
	assert.Equal(t, StateAllocated, h.State(), "failed close must roll back to allocated")

	// The resource is still reachable and the close can be retried
	_, getErr := h.Get()
	require.NoError(t, getErr)

	require.NoError(t, h.Close())
	assert.Equal(t, StateClosed, h.State())
	assert.Equal(t, 2, attempts)
}

func TestNotificationFailureDoesNotBlockCleanup(t *testing.T) {
	var cleaned bool
	h := New(&fakeResource{},
		func(*fakeResource) error {
			cleaned = true
			return nil
		},
		WithNotify[*fakeResource](func() error {
			return errors.New("bookkeeping broke")
		}),
	)

	require.NoError(t, h.Close(), "notification errors must never surface")
	assert.True(t, cleaned)
	assert.Equal(t, StateClosed, h.State())
}

func TestNotificationPanicIsAbsorbed(t *testing.T) {
	var cleaned bool
	h := New(&fakeResource{},
		func(*fakeResource) error {
			cleaned = true
			return nil
		},
		WithNotify[*fakeResource](func() error {
			panic("listener bug")
		}),
	)

	require.NoError(t, h.Close())
	assert.True(t, cleaned)
}

func TestNilCleanup(t *testing.T) {
	h := New(42, nil)
	require.NoError(t, h.Close())
	assert.Equal(t, StateClosed, h.State())
}

func TestConcurrentCloseRunsCleanupOnce(t *testing.T) {
	const goroutines = 16

	var cleanups atomic.Int32
	h := New(&fakeResource{}, func(*fakeResource) error {
		cleanups.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if err := h.Close(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), cleanups.Load())
	assert.Equal(t, StateClosed, h.State())
}

func TestGroupClosesAllMembersDespiteFailures(t *testing.T) {
	g := NewGroup()

	var closed []string
	failure := errors.New("release failed")

	mk := func(name string, fail bool) *Handle[string] {
		return New(name, func(n string) error {
			closed = append(closed, n)
			if fail {
				return failure
			}
			return nil
		})
	}

	require.NoError(t, g.Add(mk("a", false)))
	require.NoError(t, g.Add(mk("b", true)))
	require.NoError(t, g.Add(mk("c", false)))
	assert.Equal(t, 3, g.Len())

	err := g.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure))

	// Every member saw a close attempt, in reverse acquisition order
	assert.Equal(t, []string{"c", "b", "a"}, closed)
}

func TestGroupRetriesFailedMembers(t *testing.T) {
	g := NewGroup()

	attempts := 0
	h := New("volume", func(string) error {
		attempts++
		if attempts == 1 {
			return errors.New("device busy")
		}
		return nil
	})
	require.NoError(t, g.Add(h))
	require.NoError(t, g.Add(New("scratch", nil)))

	err := g.Close()
	require.Error(t, err)
	assert.True(t, resperrors.IsCleanupFailure(err))
	assert.Equal(t, 1, g.Len(), "the failed member must stay in the group")
	assert.Equal(t, StateAllocated, h.State())

	// A second Close retries only the failed member
	require.NoError(t, g.Close())
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, 2, attempts)
	assert.Equal(t, StateClosed, h.State())

	require.NoError(t, g.Close())
}

func TestGroupCloseIsIdempotent(t *testing.T) {
	g := NewGroup()

	var cleanups int
	require.NoError(t, g.Add(New(1, func(int) error {
		cleanups++
		return nil
	})))

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.Equal(t, 1, cleanups)
}

func TestGroupAddAfterCloseClosesImmediately(t *testing.T) {
	g := NewGroup()
	require.NoError(t, g.Close())

	var cleaned bool
	err := g.Add(New(1, func(int) error {
		cleaned = true
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, cleaned, "late additions must not leak past the group scope")
}
