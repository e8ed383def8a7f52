// Package chunk acquires and releases the large contiguous memory regions
// that the allocator sub-divides into blocks.
//
// A Provider hands out raw base addresses. The default HeapProvider backs
// chunks with Go heap allocations; MmapProvider substitutes anonymous
// mappings on platforms that support them. Test doubles implement the same
// two-method interface.
package chunk

import "unsafe"

// Provider obtains contiguous memory regions from the host.
//
// Acquire returns the base address of a region of at least size bytes, or nil
// when the host cannot satisfy the request. Release returns a region to the
// host; the address must be exactly one previously returned by Acquire.
type Provider interface {
	Acquire(size int) unsafe.Pointer
	Release(p unsafe.Pointer) bool
}

// HeapProvider is the default Provider. Chunks come from the Go heap and are
// pinned in a map until Release so the runtime cannot collect memory the
// allocator is still handing out.
//
// Not safe for concurrent use, matching the allocator's concurrency model.
type HeapProvider struct {
	chunks map[unsafe.Pointer][]byte
}

// NewHeap creates a heap-backed chunk provider.
func NewHeap() *HeapProvider {
	return &HeapProvider{chunks: make(map[unsafe.Pointer][]byte)}
}

// Acquire allocates a chunk of size bytes. Returns nil for non-positive sizes.
func (h *HeapProvider) Acquire(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	buf := make([]byte, size)
	p := unsafe.Pointer(&buf[0])
	h.chunks[p] = buf
	return p
}

// Release unpins a chunk. Reports false for an address it never handed out.
func (h *HeapProvider) Release(p unsafe.Pointer) bool {
	if _, ok := h.chunks[p]; !ok {
		return false
	}
	delete(h.chunks, p)
	return true
}

// Live returns the number of chunks acquired and not yet released.
func (h *HeapProvider) Live() int { return len(h.chunks) }

var _ Provider = (*HeapProvider)(nil)
