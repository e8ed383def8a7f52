//go:build !unix

package chunk

// MmapProvider falls back to heap-backed chunks on platforms without
// anonymous mappings. The observable behavior matches the unix build.
type MmapProvider struct {
	HeapProvider
}

// NewMmap creates the fallback provider.
func NewMmap() *MmapProvider {
	return &MmapProvider{HeapProvider: *NewHeap()}
}
