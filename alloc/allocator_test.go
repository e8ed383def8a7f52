package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneMiB = 1 << 20

func TestAllocateBasic(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)

	block := a.Allocate(800)
	require.NotNil(t, block, "allocation should succeed")
	assert.Len(t, block, 800)

	assert.Equal(t, 800, a.Occupied())
	assert.Equal(t, oneMiB-800, a.FreeSize())
	assert.Equal(t, oneMiB, a.TotalSize())

	// The block must be writable over its full extent.
	block[0] = 0x11
	block[799] = 0x22
	assert.Equal(t, byte(0x11), block[0])
	assert.Equal(t, byte(0x22), block[799])

	assertInvariants(t, a, rp)
}

func TestAllocateZeroAndNegative(t *testing.T) {
	a, rp := newTestAllocator(t, 1024)
	assert.Nil(t, a.Allocate(0))
	assert.Nil(t, a.Allocate(-16))
	assert.Equal(t, 0, a.Occupied())
	assertInvariants(t, a, rp)
}

// TestCoalesceNeighbors walks the A/B/C scenario: freeing B then A leaves two
// free blocks (the coalesced 256-byte prefix and the chunk remainder), and
// freeing C collapses the whole chunk back into a single free block.
func TestCoalesceNeighbors(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)

	blockA := a.Allocate(128)
	blockB := a.Allocate(128)
	blockC := a.Allocate(128)
	require.NotNil(t, blockA)
	require.NotNil(t, blockB)
	require.NotNil(t, blockC)

	require.True(t, a.Free(blockB))
	assertInvariants(t, a, rp)

	require.True(t, a.Free(blockA))
	total, free := countNodes(a)
	assert.Equal(t, 2, free, "coalesced prefix and chunk remainder")
	assert.Equal(t, 3, total, "prefix, C, remainder")
	assertInvariants(t, a, rp)

	require.True(t, a.Free(blockC))
	total, free = countNodes(a)
	assert.Equal(t, 1, total, "one node per chunk after full coalesce")
	assert.Equal(t, 1, free)
	assert.Equal(t, a.TotalSize(), a.FreeSize())
	assertInvariants(t, a, rp)
}

// TestAllocateTriggersGrow covers the over-provision path: the second request
// exceeds the remaining free space and forces a new chunk.
func TestAllocateTriggersGrow(t *testing.T) {
	a, rp := newTestAllocator(t, 1024)

	first := a.Allocate(900)
	require.NotNil(t, first)

	second := a.Allocate(200)
	require.NotNil(t, second)

	assert.GreaterOrEqual(t, a.TotalSize(), 1124)
	assert.Equal(t, 2, rp.live(), "second allocation must have grown a chunk")
	assertInvariants(t, a, rp)
}

// TestChurnKeepsFootprint allocates and frees 10000 times without ever
// needing growth. The backing chunk, the accounting, and the node table must
// all stay bounded.
func TestChurnKeepsFootprint(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)

	for i := 0; i < 10000; i++ {
		block := a.Allocate(1000)
		require.NotNil(t, block)
		require.True(t, a.Free(block))
	}

	assert.Equal(t, oneMiB, a.TotalSize(), "churn must not grow the allocator")
	assert.Equal(t, oneMiB, a.FreeSize())
	assert.Equal(t, 1, rp.live())
	assert.LessOrEqual(t, len(a.table.nodes), freeIDsUseThreshold+2,
		"index recycling must bound the node table")
	assertInvariants(t, a, rp)
}

// TestShrinkReleasesFreeChunks follows the resize scenario: shrink fails while
// a large block pins its chunk, partial shrinkage is kept, and after freeing
// the block a second shrink releases everything.
func TestShrinkReleasesFreeChunks(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)

	require.True(t, a.Resize(oneMiB+10000))
	assert.Equal(t, oneMiB+10000, a.TotalSize())
	assert.Equal(t, 2, rp.live())

	big := a.Allocate(1003520) // ~980 KiB out of the first chunk
	require.NotNil(t, big)

	// The occupied chunk cannot be released; only the intact 10000-byte chunk
	// goes. The partial shrink is not rolled back.
	assert.False(t, a.Resize(5120))
	assert.Equal(t, oneMiB, a.TotalSize())
	assert.Equal(t, 1, rp.live())
	assertInvariants(t, a, rp)

	require.True(t, a.Free(big))
	assert.True(t, a.Resize(5120))
	assert.LessOrEqual(t, a.TotalSize(), 5120)
	assert.Equal(t, 0, rp.live(), "fully free chunks must be released")
	assertInvariants(t, a, rp)
}

// TestSplitSlackBoundary pins the MinAllocSize boundary: a remainder of
// MinAllocSize-1 is absorbed as slack, a remainder of exactly MinAllocSize is
// split off as a new free block.
func TestSplitSlackBoundary(t *testing.T) {
	t.Run("remainder below threshold is absorbed", func(t *testing.T) {
		a, rp := newTestAllocator(t, 1024)
		block := a.Allocate(1024 - (MinAllocSize - 1))
		require.NotNil(t, block)

		assert.Equal(t, 1024, a.Occupied(), "slack is charged to the caller")
		assert.Equal(t, 0, a.FreeSize())
		total, free := countNodes(a)
		assert.Equal(t, 1, total, "no split")
		assert.Equal(t, 0, free)
		assertInvariants(t, a, rp)
	})

	t.Run("remainder at threshold splits", func(t *testing.T) {
		a, rp := newTestAllocator(t, 1024)
		block := a.Allocate(1024 - MinAllocSize)
		require.NotNil(t, block)

		assert.Equal(t, 1024-MinAllocSize, a.Occupied())
		assert.Equal(t, MinAllocSize, a.FreeSize())
		total, free := countNodes(a)
		assert.Equal(t, 2, total, "split created the remainder node")
		assert.Equal(t, 1, free)
		assertInvariants(t, a, rp)
	})
}

// TestFreeRestoresFreeSize is the allocate/free round-trip law for requests
// that split cleanly.
func TestFreeRestoresFreeSize(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)
	before := a.FreeSize()

	block := a.Allocate(4096)
	require.NotNil(t, block)
	require.True(t, a.Free(block))

	assert.Equal(t, before, a.FreeSize())
	assertInvariants(t, a, rp)
}

func TestFreeUnknownAddress(t *testing.T) {
	a, rp := newTestAllocator(t, 1024)

	foreign := make([]byte, 64)
	assert.False(t, a.Free(foreign))
	assert.False(t, a.Free(nil))

	block := a.Allocate(128)
	require.NotNil(t, block)
	assert.False(t, a.Free(block[1:]), "interior address is not a block base")
	assert.Equal(t, 128, a.Occupied())
	assertInvariants(t, a, rp)
}

func TestDoubleFree(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)

	block := a.Allocate(4096)
	require.NotNil(t, block)
	require.True(t, a.Free(block))

	free := a.FreeSize()
	assert.False(t, a.Free(block), "second free of the same block must fail")
	assert.Equal(t, free, a.FreeSize(), "double free must not change accounting")
	assertInvariants(t, a, rp)
}

func TestClearReleasesEverything(t *testing.T) {
	a, rp := newTestAllocator(t, oneMiB)

	a.Allocate(512)
	a.Allocate(oneMiB) // forces a second chunk
	require.Equal(t, 2, rp.live())

	a.Clear()
	assert.Equal(t, 0, a.TotalSize())
	assert.Equal(t, 0, a.FreeSize())
	assert.Equal(t, 0, rp.live(), "clear must release every primary chunk")
	assertInvariants(t, a, rp)

	// Idempotent.
	a.Clear()
	assert.Equal(t, 0, a.TotalSize())
	assert.Equal(t, 0, rp.live())
	assertInvariants(t, a, rp)
}

func TestAllocateAfterClear(t *testing.T) {
	a, rp := newTestAllocator(t, 4096)
	a.Clear()

	block := a.Allocate(4096)
	require.NotNil(t, block, "allocator must regrow from empty")
	assert.Equal(t, 4096, a.TotalSize())
	assertInvariants(t, a, rp)
}

func TestNewValidation(t *testing.T) {
	_, err := New(-1, nil)
	assert.ErrorIs(t, err, ErrBadSize)

	rp := newRecordingProvider()
	rp.failNext = 1
	_, err = New(1024, &Options{Provider: rp})
	assert.ErrorIs(t, err, ErrNoChunk)

	a, err := New(0, nil)
	require.NoError(t, err, "zero base creates an empty allocator")
	assert.Equal(t, 0, a.TotalSize())
}
