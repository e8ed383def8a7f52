package alloc

import "unsafe"

// nodeID indexes the node table. An index is the node's stable identity for
// the node's entire lifetime.
type nodeID = uint32

// invalidNode is the list sentinel. The table must never grow this large.
const invalidNode nodeID = 0xFFFFFFFF

// node describes one block: a contiguous byte range of exactly one chunk.
// Metadata lives here, outside the managed memory, so allocated blocks are
// raw bytes with no hidden header prefix.
type node struct {
	size   int
	memory unsafe.Pointer
	next   nodeID

	// free marks the block as available for allocation.
	free bool
	// nextAdjacent marks the block at next as physically contiguous with
	// this one. False means next belongs to a different chunk.
	nextAdjacent bool
	// primary marks a node that holds an entire provider-acquired chunk.
	// Only primary nodes may be released back to the provider.
	primary bool
}

// nodeTable is the dense array of block descriptors plus the free-index bin.
// Recycled slots are not erased from the array; their ids wait in the bin
// until the recycling threshold engages.
type nodeTable struct {
	nodes   []node
	freeIDs []nodeID

	// useFreeIDs engages once the bin outgrows freeIDsUseThreshold and
	// disengages when the bin drains. The hysteresis keeps short-lived
	// alloc/free churn from flapping between append and reuse.
	useFreeIDs bool
}

func newNodeTable(capacity int) nodeTable {
	return nodeTable{
		nodes:   make([]node, 0, capacity),
		freeIDs: make([]nodeID, 0, capacity),
	}
}

// at returns the slot for id. The pointer is invalidated by the next insert.
func (t *nodeTable) at(id nodeID) *node { return &t.nodes[id] }

// insert places n in the table and returns its id: a recycled slot while the
// bin is engaged (last pushed, first reused), a fresh append otherwise.
func (t *nodeTable) insert(n node) nodeID {
	if t.useFreeIDs {
		id := t.freeIDs[len(t.freeIDs)-1]
		t.freeIDs = t.freeIDs[:len(t.freeIDs)-1]
		t.nodes[id] = n
		if len(t.freeIDs) == 0 {
			t.useFreeIDs = false
		}
		return id
	}
	t.nodes = append(t.nodes, n)
	return nodeID(len(t.nodes) - 1)
}

// recycle invalidates the slot and pushes its id into the bin.
func (t *nodeTable) recycle(id nodeID) {
	t.nodes[id] = node{next: invalidNode}
	t.freeIDs = append(t.freeIDs, id)
	if len(t.freeIDs) > freeIDsUseThreshold {
		t.useFreeIDs = true
	}
}

func (t *nodeTable) binLen() int { return len(t.freeIDs) }

func (t *nodeTable) reset() {
	t.nodes = t.nodes[:0]
	t.freeIDs = t.freeIDs[:0]
	t.useFreeIDs = false
}
