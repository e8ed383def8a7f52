package alloc

import (
	"fmt"
	"strings"
)

// Metrics holds cumulative operation counters for instrumentation and tests.
type Metrics struct {
	AllocCalls       int   // Total Allocate() calls
	FreeCalls        int   // Successful Free() calls
	GrowCalls        int   // Chunks acquired from the provider
	ReleaseCalls     int   // Chunks released back to the provider
	SplitCount       int   // Allocations that split a block
	CoalesceForward  int   // Forward coalesce operations
	CoalesceBackward int   // Backward coalesce operations
	GrowBytes        int64 // Total bytes acquired
	ReleaseBytes     int64 // Total bytes released
	BytesAllocated   int64 // Total bytes handed out (including slack)
	BytesFreed       int64 // Total bytes returned
}

// Metrics returns a snapshot of the allocator's operation counters.
func (a *Allocator) Metrics() Metrics { return a.metrics }

// Stats formats a human-readable dump of the node list and the free-index
// bin, in list order.
func (a *Allocator) Stats() string {
	var b strings.Builder
	fmt.Fprintf(&b, "allocator: total=%d free=%d occupied=%d nodes=%d bin=%d\n",
		a.totalSize, a.freeSize, a.totalSize-a.freeSize,
		len(a.table.nodes), a.table.binLen())
	for id := a.head; id != invalidNode; id = a.table.at(id).next {
		n := a.table.at(id)
		fmt.Fprintf(&b, "  id[%d] size[%d] free[%t] primary[%t] adjacent[%t] next[%d] addr[%p]\n",
			id, n.size, n.free, n.primary, n.nextAdjacent, n.next, n.memory)
	}
	if a.table.binLen() > 0 {
		b.WriteString("  free ids:")
		for _, id := range a.table.freeIDs {
			fmt.Fprintf(&b, " %d", id)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
