package gpu

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFreeList(t *testing.T, capacity uint64) *FreeList {
	t.Helper()
	fl, err := NewFreeList(capacity)
	require.NoError(t, err)
	return fl
}

func TestFreeList_FirstFitFromFront(t *testing.T) {
	fl := newFreeList(t, 1024)

	a, ok := fl.Allocate(100)
	require.True(t, ok)
	assert.Equal(t, Allocation{Offset: 0, Size: 100}, a)

	b, ok := fl.Allocate(200)
	require.True(t, ok)
	assert.Equal(t, Allocation{Offset: 100, Size: 200}, b)

	assert.Equal(t, []FreeBlock{{Offset: 300, Size: 724}}, fl.FreeBlocks())

	// Free the 200 block, then the 100 block: everything merges back.
	require.True(t, fl.Free(b))
	require.True(t, fl.Free(a))
	assert.Equal(t, []FreeBlock{{Offset: 0, Size: 1024}}, fl.FreeBlocks())
	assert.Equal(t, 0, fl.LiveAllocations())
}

func TestFreeList_AlignsSizes(t *testing.T) {
	fl := newFreeList(t, 64)

	a, ok := fl.Allocate(1)
	require.True(t, ok)
	assert.Equal(t, uint64(4), a.Size)

	b, ok := fl.Allocate(6)
	require.True(t, ok)
	assert.Equal(t, Allocation{Offset: 4, Size: 8}, b)
}

func TestFreeList_ExactFitRemovesBlock(t *testing.T) {
	fl := newFreeList(t, 64)
	a, _ := fl.Allocate(16)
	_, _ = fl.Allocate(16)
	fl.Free(a)
	require.Len(t, fl.FreeBlocks(), 2)

	c, ok := fl.Allocate(16)
	require.True(t, ok)
	assert.Equal(t, uint64(0), c.Offset, "first fit reuses the hole")
	assert.Equal(t, []FreeBlock{{Offset: 32, Size: 32}}, fl.FreeBlocks())
}

func TestFreeList_ExhaustionIsNotAnError(t *testing.T) {
	fl := newFreeList(t, 128)
	a, ok := fl.Allocate(64)
	require.True(t, ok)
	_, ok = fl.Allocate(32)
	require.True(t, ok)
	fl.Free(a)

	// 96 bytes are free in total, but split 64 + 32.
	assert.Equal(t, uint64(96), fl.FreeBytes())
	_, ok = fl.Allocate(96)
	assert.False(t, ok)
	_, ok = fl.Allocate(0)
	assert.False(t, ok)
	_, ok = fl.Allocate(4096)
	assert.False(t, ok)
}

func TestFreeList_RejectsBadFrees(t *testing.T) {
	fl := newFreeList(t, 256)
	a, _ := fl.Allocate(64)
	b, _ := fl.Allocate(64)

	assert.True(t, fl.Free(a))
	assert.False(t, fl.Free(a), "double free")
	assert.False(t, fl.Free(Allocation{Offset: 200, Size: 16}), "overlaps free tail")
	assert.False(t, fl.Free(Allocation{Offset: 252, Size: 8}), "past capacity")
	assert.False(t, fl.Free(Allocation{Offset: 66, Size: 4}), "misaligned")
	assert.False(t, fl.Free(Allocation{}), "empty")
	assert.False(t, fl.Free(Allocation{Offset: 64, Size: 32}), "front half of a live allocation")
	assert.False(t, fl.Free(Allocation{Offset: 96, Size: 32}), "back half of a live allocation")
	assert.Equal(t, 1, fl.LiveAllocations())
	assert.Equal(t, uint64(64), fl.UsedBytes())

	assert.Equal(t, fl.Capacity(), fl.FreeBytes()+fl.UsedBytes())
	assert.True(t, fl.Free(b))
	assert.Equal(t, []FreeBlock{{Offset: 0, Size: 256}}, fl.FreeBlocks())
}

func TestFreeList_OversizedRequestsFail(t *testing.T) {
	fl := newFreeList(t, 1024)

	for _, size := range []uint64{1025, math.MaxUint64, math.MaxUint64 - 2} {
		a, ok := fl.Allocate(size)
		assert.False(t, ok, "size %d", size)
		assert.Equal(t, Allocation{}, a)
	}
	assert.Equal(t, 0, fl.LiveAllocations())
	assert.Equal(t, []FreeBlock{{Offset: 0, Size: 1024}}, fl.FreeBlocks())

	a, ok := fl.Allocate(1024)
	require.True(t, ok)
	assert.Equal(t, Allocation{Offset: 0, Size: 1024}, a)
}

func TestFreeList_MergesWithBothNeighbours(t *testing.T) {
	fl := newFreeList(t, 48)
	a, _ := fl.Allocate(16)
	b, _ := fl.Allocate(16)
	c, _ := fl.Allocate(16)

	fl.Free(a)
	fl.Free(c)
	require.Equal(t, []FreeBlock{{0, 16}, {32, 16}}, fl.FreeBlocks())

	fl.Free(b)
	assert.Equal(t, []FreeBlock{{0, 48}}, fl.FreeBlocks())
}

func TestNewFreeList_ZeroCapacity(t *testing.T) {
	_, err := NewFreeList(0)
	assert.ErrorIs(t, err, ErrZeroCapacity)
	_, err = NewFreeList(3)
	assert.ErrorIs(t, err, ErrZeroCapacity)
}

// checkInvariants asserts conservation, non-aliasing and merge completeness.
func checkInvariants(t *testing.T, fl *FreeList, live map[uint64]Allocation) {
	t.Helper()

	var liveSum uint64
	ranges := make([]FreeBlock, 0, len(live)+len(fl.FreeBlocks()))
	for _, a := range live {
		liveSum += a.Size
		ranges = append(ranges, FreeBlock{a.Offset, a.Size})
	}
	free := fl.FreeBlocks()
	require.Equal(t, fl.Capacity(), fl.FreeBytes()+liveSum, "conservation")
	require.Equal(t, liveSum, fl.UsedBytes())

	for i := 1; i < len(free); i++ {
		require.Less(t, free[i-1].Offset, free[i].Offset, "free list sorted")
		require.NotEqual(t, free[i-1].End(), free[i].Offset, "adjacent free blocks must be merged")
	}

	ranges = append(ranges, free...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Offset < ranges[j].Offset })
	for i := 1; i < len(ranges); i++ {
		require.LessOrEqual(t, ranges[i-1].End(), ranges[i].Offset, "ranges overlap: %v %v", ranges[i-1], ranges[i])
	}
}

func TestFreeList_RandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	fl := newFreeList(t, 1<<16)
	live := make(map[uint64]Allocation)

	for step := 0; step < 5000; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			if a, ok := fl.Allocate(uint64(1 + rng.Intn(2048))); ok {
				_, dup := live[a.Offset]
				require.False(t, dup, "offset %d handed out twice", a.Offset)
				live[a.Offset] = a
			}
		} else {
			keys := make([]uint64, 0, len(live))
			for k := range live {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			k := keys[rng.Intn(len(keys))]
			require.True(t, fl.Free(live[k]))
			delete(live, k)
		}
		checkInvariants(t, fl, live)
	}

	for k, a := range live {
		require.True(t, fl.Free(a))
		delete(live, k)
	}
	assert.Equal(t, []FreeBlock{{0, 1 << 16}}, fl.FreeBlocks())
}
