// Package alloc implements a dynamic memory allocator for medium-to-large
// allocations over provider-acquired chunks.
//
// # Overview
//
// The allocator manages one or more contiguous memory chunks obtained from a
// chunk.Provider (default: the Go heap) and sub-allocates variable-sized
// blocks from them. Bookkeeping lives entirely outside the managed memory:
// every block is described by a node in a dense table, and the nodes form an
// intrusive singly-linked list over table indices covering every byte of
// every chunk, allocated or free.
//
// # Allocation
//
// Allocate scans the list for the smallest free block that fits (best-fit,
// first-encountered wins ties). When the chosen block is large enough to be
// worth dividing, it is split and the remainder becomes a new free node; a
// remainder below MinAllocSize is absorbed into the allocation as slack.
// When no block fits, the allocator grows by acquiring a dedicated chunk.
//
// # Freeing
//
// Free resolves the block's base address back to its node, marks it free, and
// coalesces it with free physical neighbors from the same chunk in both
// directions, so no two adjacent free blocks ever persist.
//
// # Resize
//
// Resize grows the total backing space by acquiring one new chunk, or shrinks
// it by releasing primary chunks that are entirely free. Chunks are chained
// in acquisition order; blocks never span chunks.
//
// # Node recycling
//
// Coalescing and chunk release retire node table slots into a free-index bin.
// Once the bin outgrows a threshold, new nodes reuse recycled indices (LIFO)
// until the bin drains; below it they append. The hysteresis bounds table
// growth without reshuffling on short-lived churn.
//
// # Accounting
//
// TotalSize, FreeSize and Occupied report exact byte counts: the sum of all
// node sizes always equals TotalSize, and the sum of free node sizes always
// equals FreeSize. Slack absorbed into an allocation is charged to the caller
// and never reported as free.
//
// # Thread Safety
//
// Allocator instances are not thread-safe; no operation may run concurrently
// with another on the same instance. Callers must synchronize externally.
//
// # Related Packages
//
//   - github.com/joshuapare/memkit/chunk: chunk providers (heap, mmap)
package alloc
