//go:build unix

package chunk

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapProvider acquires chunks as anonymous private mappings. Released chunks
// return to the kernel immediately instead of waiting on the Go collector,
// which suits long-lived allocators with large, bursty footprints.
type MmapProvider struct {
	chunks map[unsafe.Pointer][]byte
}

// NewMmap creates an mmap-backed chunk provider.
func NewMmap() *MmapProvider {
	return &MmapProvider{chunks: make(map[unsafe.Pointer][]byte)}
}

// Acquire maps a fresh anonymous region of size bytes. Returns nil for
// non-positive sizes or when the kernel refuses the mapping.
func (m *MmapProvider) Acquire(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}
	p := unsafe.Pointer(&data[0])
	m.chunks[p] = data
	return p
}

// Release unmaps a chunk. Reports false for an address it never handed out.
func (m *MmapProvider) Release(p unsafe.Pointer) bool {
	data, ok := m.chunks[p]
	if !ok {
		return false
	}
	delete(m.chunks, p)
	return unix.Munmap(data) == nil
}

// Live returns the number of mappings acquired and not yet released.
func (m *MmapProvider) Live() int { return len(m.chunks) }

var _ Provider = (*MmapProvider)(nil)
