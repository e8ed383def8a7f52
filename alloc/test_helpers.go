package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/chunk"
)

// ============================================================================
// Test Helpers
// ============================================================================

// recordingProvider wraps the heap provider and records every chunk it hands
// out so tests can assert on chunk population, injected failures, and
// leak-freedom.
type recordingProvider struct {
	inner    *chunk.HeapProvider
	acquired map[unsafe.Pointer]int // base address -> chunk size

	// failNext injects this many Acquire failures before resuming service.
	failNext int
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{
		inner:    chunk.NewHeap(),
		acquired: make(map[unsafe.Pointer]int),
	}
}

func (r *recordingProvider) Acquire(size int) unsafe.Pointer {
	if r.failNext > 0 {
		r.failNext--
		return nil
	}
	p := r.inner.Acquire(size)
	if p != nil {
		r.acquired[p] = size
	}
	return p
}

func (r *recordingProvider) Release(p unsafe.Pointer) bool {
	if _, ok := r.acquired[p]; !ok {
		return false
	}
	delete(r.acquired, p)
	return r.inner.Release(p)
}

// live returns the number of chunks acquired and not yet released.
func (r *recordingProvider) live() int { return len(r.acquired) }

// acquiredBytes sums the sizes of all outstanding chunks.
func (r *recordingProvider) acquiredBytes() int {
	total := 0
	for _, sz := range r.acquired {
		total += sz
	}
	return total
}

// newTestAllocator creates an allocator over a fresh recording provider.
func newTestAllocator(t testing.TB, baseSize int) (*Allocator, *recordingProvider) {
	t.Helper()
	rp := newRecordingProvider()
	a, err := New(baseSize, &Options{Provider: rp})
	require.NoError(t, err)
	return a, rp
}

// assertInvariants fails the test on the first violated bookkeeping
// invariant, and cross-checks the accounting against the provider's view of
// outstanding chunks.
func assertInvariants(t testing.TB, a *Allocator, rp *recordingProvider) {
	t.Helper()
	require.NoError(t, a.checkInvariants())
	if rp != nil {
		require.Equal(t, rp.acquiredBytes(), a.TotalSize(),
			"totalSize must equal the bytes outstanding at the provider")
	}
}

// countNodes returns the number of live nodes reachable from head and how
// many of them are free.
func countNodes(a *Allocator) (total, free int) {
	for id := a.head; id != invalidNode; id = a.table.at(id).next {
		total++
		if a.table.at(id).free {
			free++
		}
	}
	return total, free
}
