package alloc

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/joshuapare/memkit/chunk"
)

// Debug flag - set to true to enable internal consistency checks after every
// mutating operation (compile-time toggle).
const debugAlloc = false

// Runtime flag for allocation logging - controlled by MEMKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("MEMKIT_LOG_ALLOC") != ""

const (
	// MaxNodesDefault is the default reserved capacity of the node table.
	MaxNodesDefault = 51200

	// MinAllocSize is the smallest useful block. A split that would leave a
	// remainder below this threshold is skipped and the whole block is taken;
	// the slack is charged to the caller.
	MinAllocSize = 64

	// freeIDsUseThreshold is the bin population above which index recycling
	// engages.
	freeIDsUseThreshold = 64
)

// Options configures an Allocator. A nil pointer selects the defaults:
// MaxNodesDefault descriptors and the heap chunk provider.
type Options struct {
	// MaxNodes reserves node table capacity. It is a sizing hint, not a hard
	// cap: the table still grows past it under extreme fragmentation.
	MaxNodes int

	// Provider supplies backing chunks. Defaults to chunk.NewHeap().
	Provider chunk.Provider
}

// Allocator sub-allocates variable-sized blocks from provider-acquired chunks
// using an intrusive free-list with best-fit placement, block splitting and
// adjacency coalescing. Returned blocks are raw, unaligned byte ranges.
//
// An Allocator is not safe for concurrent use.
type Allocator struct {
	provider chunk.Provider
	table    nodeTable

	head nodeID
	last nodeID

	totalSize int
	freeSize  int

	metrics Metrics
}

// New creates an allocator and acquires a base chunk of baseSize bytes.
// A baseSize of zero creates an empty allocator that grows on first use.
func New(baseSize int, opts *Options) (*Allocator, error) {
	if baseSize < 0 {
		return nil, ErrBadSize
	}
	maxNodes := MaxNodesDefault
	var provider chunk.Provider
	if opts != nil {
		if opts.MaxNodes > 0 {
			maxNodes = opts.MaxNodes
		}
		provider = opts.Provider
	}
	if provider == nil {
		provider = chunk.NewHeap()
	}
	a := &Allocator{
		provider: provider,
		table:    newNodeTable(maxNodes),
		head:     invalidNode,
		last:     invalidNode,
	}
	if baseSize > 0 && !a.Resize(baseSize) {
		return nil, ErrNoChunk
	}
	return a, nil
}

// Resize grows or shrinks the total backing space to newTotal bytes.
//
// Growing acquires one new chunk of newTotal-TotalSize bytes and reports false
// with no state change when the provider refuses. Shrinking releases primary
// chunks that are entirely free until the total drops to newTotal or no
// candidate remains; it reports true only when the target was reached, and
// partial shrinkage is not rolled back. Resize(0) is equivalent to Clear.
func (a *Allocator) Resize(newTotal int) bool {
	switch {
	case newTotal < 0:
		return false
	case newTotal == 0:
		a.Clear()
		return true
	case a.head == invalidNode:
		return a.grow(newTotal)
	case newTotal > a.totalSize:
		return a.grow(newTotal - a.totalSize)
	case newTotal == a.totalSize:
		return true
	case a.freeSize >= newTotal:
		return a.shrink(newTotal)
	default:
		// Occupied space alone exceeds the target; nothing can be released.
		return false
	}
}

// Allocate returns a block of exactly size bytes, or nil when no backing
// memory can be obtained. The slice aliases allocator-owned chunk memory and
// stays valid until the block is freed or the allocator is cleared.
func (a *Allocator) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}
	a.metrics.AllocCalls++

	if size > a.freeSize {
		// Over-provision up front. A provider failure here surfaces as a nil
		// result below once the scan comes up empty.
		a.Resize(a.totalSize + size)
	}

	// Best-fit scan: smallest free block that fits, first-encountered wins
	// ties.
	best := invalidNode
	for id := a.head; id != invalidNode; id = a.table.at(id).next {
		n := a.table.at(id)
		if !n.free || n.size < size {
			continue
		}
		if best == invalidNode || n.size < a.table.at(best).size {
			best = id
		}
	}

	if best == invalidNode {
		// Out of space or fragmented beyond use; append a dedicated chunk
		// sized for this request and take it.
		if !a.Resize(a.totalSize + size) {
			if logAlloc {
				fmt.Fprintf(os.Stderr, "[ALLOC] %d bytes: no candidate and grow failed\n", size)
			}
			return nil
		}
		best = a.last
	}

	n := a.table.at(best)
	if n.size-size >= MinAllocSize {
		tailID := a.table.insert(node{
			size:         n.size - size,
			memory:       unsafe.Add(n.memory, size),
			next:         n.next,
			free:         true,
			nextAdjacent: n.nextAdjacent,
		})
		// insert may have grown the table; re-fetch the candidate slot.
		n = a.table.at(best)
		if a.last == best {
			a.last = tailID
		}
		n.size = size
		n.free = false
		n.next = tailID
		n.nextAdjacent = true
		a.freeSize -= size
		a.metrics.SplitCount++
	} else {
		// Remainder too small to be useful: take the whole block. The slack
		// is never reported as free space.
		n.free = false
		a.freeSize -= n.size
	}
	a.metrics.BytesAllocated += int64(n.size)

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] %d bytes at %p (block=%d free=%d)\n",
			size, n.memory, n.size, a.freeSize)
	}
	if debugAlloc {
		mustHoldInvariants(a)
	}
	return unsafe.Slice((*byte)(n.memory), size)
}

// Free returns a previously allocated block to the free list and coalesces it
// with free physical neighbors from the same chunk. It reports false for an
// address the allocator does not currently have allocated.
func (a *Allocator) Free(block []byte) bool {
	if len(block) == 0 {
		return false
	}
	return a.freeAddr(unsafe.Pointer(&block[0]))
}

func (a *Allocator) freeAddr(addr unsafe.Pointer) bool {
	prev := invalidNode
	cur := a.head
	for cur != invalidNode && a.table.at(cur).memory != addr {
		prev = cur
		cur = a.table.at(cur).next
	}
	if cur == invalidNode || a.table.at(cur).free {
		// Unknown address, or a block that is already free (double free).
		return false
	}
	a.metrics.FreeCalls++

	n := a.table.at(cur)
	n.free = true
	a.freeSize += n.size
	a.metrics.BytesFreed += int64(n.size)

	// Forward coalesce: absorb a free physical neighbor.
	if n.next != invalidNode && n.nextAdjacent {
		nextID := n.next
		if nxt := a.table.at(nextID); nxt.free {
			n.size += nxt.size
			n.next = nxt.next
			n.nextAdjacent = nxt.nextAdjacent
			if a.last == nextID {
				a.last = cur
			}
			a.table.recycle(nextID)
			a.metrics.CoalesceForward++
		}
	}

	// Backward coalesce: fold this block into a free adjacent predecessor.
	// List structure guarantees prev's adjacency refers to cur.
	if prev != invalidNode {
		if p := a.table.at(prev); p.nextAdjacent && p.free {
			p.size += n.size
			p.next = n.next
			p.nextAdjacent = n.nextAdjacent
			if a.last == cur {
				a.last = prev
			}
			a.table.recycle(cur)
			a.metrics.CoalesceBackward++
		}
	}

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[FREE] %p (free=%d)\n", addr, a.freeSize)
	}
	if debugAlloc {
		mustHoldInvariants(a)
	}
	return true
}

// Clear releases every primary chunk back to the provider and resets the
// allocator to its empty state. Safe to call repeatedly.
func (a *Allocator) Clear() {
	for id := a.head; id != invalidNode; {
		n := a.table.at(id)
		next := n.next
		if n.primary {
			a.provider.Release(n.memory)
			a.metrics.ReleaseCalls++
			a.metrics.ReleaseBytes += int64(n.size)
		}
		id = next
	}
	a.table.reset()
	a.head = invalidNode
	a.last = invalidNode
	a.totalSize = 0
	a.freeSize = 0
}

// TotalSize returns the number of bytes currently backed by chunks.
func (a *Allocator) TotalSize() int { return a.totalSize }

// FreeSize returns the number of bytes available for allocation.
func (a *Allocator) FreeSize() int { return a.freeSize }

// Occupied returns TotalSize minus FreeSize.
func (a *Allocator) Occupied() int {
	debugAssert(a.freeSize <= a.totalSize, "free size exceeds total size")
	return a.totalSize - a.freeSize
}

// grow acquires one chunk of delta bytes and links it as the new last node.
// Chunks chain in acquisition order; the link to the previous last stays
// non-adjacent because separate chunks are never contiguous.
func (a *Allocator) grow(delta int) bool {
	p := a.provider.Acquire(delta)
	if p == nil {
		if logAlloc {
			fmt.Fprintf(os.Stderr, "[GROW] provider refused %d bytes\n", delta)
		}
		return false
	}
	id := a.table.insert(node{
		size:    delta,
		memory:  p,
		next:    invalidNode,
		free:    true,
		primary: true,
	})
	if a.head == invalidNode {
		a.head = id
	} else {
		a.table.at(a.last).next = id
	}
	a.last = id
	a.totalSize += delta
	a.freeSize += delta
	a.metrics.GrowCalls++
	a.metrics.GrowBytes += int64(delta)

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[GROW] #%d: +%d bytes (total=%d free=%d)\n",
			a.metrics.GrowCalls, delta, a.totalSize, a.freeSize)
	}
	if debugAlloc {
		mustHoldInvariants(a)
	}
	return true
}

// shrink walks the list releasing primary chunks that are intact (never
// split, or fully re-coalesced) and free, stopping once totalSize or freeSize
// reaches the target. Reports whether totalSize actually reached it.
func (a *Allocator) shrink(target int) bool {
	prev := invalidNode
	for id := a.head; id != invalidNode; {
		n := a.table.at(id)
		next := n.next
		if n.primary && n.free && !n.nextAdjacent {
			a.provider.Release(n.memory)
			a.totalSize -= n.size
			a.freeSize -= n.size
			a.metrics.ReleaseCalls++
			a.metrics.ReleaseBytes += int64(n.size)

			if id == a.head {
				a.head = next
			} else {
				a.table.at(prev).next = next
			}
			if id == a.last {
				a.last = prev
			}
			a.table.recycle(id)

			if a.totalSize <= target || a.freeSize <= target {
				break
			}
		} else {
			prev = id
		}
		id = next
	}
	if a.head == invalidNode {
		a.last = invalidNode
	}

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[SHRINK] target=%d (total=%d free=%d)\n",
			target, a.totalSize, a.freeSize)
	}
	if debugAlloc {
		mustHoldInvariants(a)
	}
	return a.totalSize <= target
}

// debugAssert panics with msg when cond is false. Compiled out unless
// debugAlloc is set.
func debugAssert(cond bool, msg string) {
	if debugAlloc && !cond {
		panic("alloc: " + msg)
	}
}

// mustHoldInvariants panics on the first violated bookkeeping invariant.
func mustHoldInvariants(a *Allocator) {
	if err := a.checkInvariants(); err != nil {
		panic(err)
	}
}
