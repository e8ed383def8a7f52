package alloc

import (
	"fmt"
	"unsafe"
)

// checkInvariants walks the whole structure and reports the first violated
// bookkeeping invariant. Exercised by tests and by the debugAlloc toggle;
// a violation is a programming error, never a runtime condition.
func (a *Allocator) checkInvariants() error {
	if (a.head == invalidNode) != (a.last == invalidNode) {
		return fmt.Errorf("alloc: head/last mismatch: head=%d last=%d", a.head, a.last)
	}

	reachable := make(map[nodeID]bool)
	sumTotal, sumFree := 0, 0
	tail := invalidNode
	for id := a.head; id != invalidNode; id = a.table.at(id).next {
		if reachable[id] {
			return fmt.Errorf("alloc: list cycle at node %d", id)
		}
		reachable[id] = true

		n := a.table.at(id)
		sumTotal += n.size
		if n.free {
			sumFree += n.size
		}
		if n.nextAdjacent {
			if n.next == invalidNode {
				return fmt.Errorf("alloc: node %d adjacent with no next", id)
			}
			nxt := a.table.at(n.next)
			if unsafe.Add(n.memory, n.size) != nxt.memory {
				return fmt.Errorf("alloc: node %d not contiguous with node %d", id, n.next)
			}
			if n.free && nxt.free {
				return fmt.Errorf("alloc: uncoalesced free pair %d, %d", id, n.next)
			}
		}
		tail = id
	}

	if a.head != invalidNode && tail != a.last {
		return fmt.Errorf("alloc: last=%d but traversal ends at %d", a.last, tail)
	}
	if sumTotal != a.totalSize {
		return fmt.Errorf("alloc: node sizes sum to %d, totalSize=%d", sumTotal, a.totalSize)
	}
	if sumFree != a.freeSize {
		return fmt.Errorf("alloc: free node sizes sum to %d, freeSize=%d", sumFree, a.freeSize)
	}
	if a.freeSize > a.totalSize {
		return fmt.Errorf("alloc: freeSize %d exceeds totalSize %d", a.freeSize, a.totalSize)
	}

	for _, id := range a.table.freeIDs {
		if reachable[id] {
			return fmt.Errorf("alloc: recycled node %d still reachable from head", id)
		}
		if slot := a.table.at(id); slot.memory != nil || slot.size != 0 {
			return fmt.Errorf("alloc: recycled node %d not invalidated", id)
		}
	}
	return nil
}
