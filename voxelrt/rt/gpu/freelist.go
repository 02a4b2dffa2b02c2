package gpu

import (
	"errors"
	"sort"
)

// Alignment is the granularity of every allocation, in bytes.
const Alignment = 4

var ErrZeroCapacity = errors.New("gpu: arena capacity must be positive")

// Allocation is a live byte range inside one arena.
type Allocation struct {
	Offset uint64
	Size   uint64
}

// End is the first byte past the allocation.
func (a Allocation) End() uint64 { return a.Offset + a.Size }

// FreeBlock is an unused byte range inside one arena.
type FreeBlock struct {
	Offset uint64
	Size   uint64
}

func (b FreeBlock) End() uint64 { return b.Offset + b.Size }

// AlignUp rounds size up to the allocation alignment.
func AlignUp(size uint64) uint64 {
	return (size + Alignment - 1) &^ (Alignment - 1)
}

// FreeList is a first-fit sub-allocator over capacity bytes. Free blocks are kept
// sorted by offset and byte-adjacent blocks are always merged. Live allocations
// never move.
type FreeList struct {
	capacity uint64
	free     []FreeBlock
	used     uint64
	live     map[uint64]uint64 // offset -> size of every live allocation
}

func NewFreeList(capacity uint64) (*FreeList, error) {
	capacity &^= Alignment - 1
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	return &FreeList{
		capacity: capacity,
		free:     []FreeBlock{{Offset: 0, Size: capacity}},
		live:     make(map[uint64]uint64),
	}, nil
}

// Allocate takes the first free block that fits size (rounded up to Alignment).
// An exact fit removes the block; otherwise the allocation is cut from its front.
// ok is false when no block is large enough.
func (f *FreeList) Allocate(size uint64) (Allocation, bool) {
	if size == 0 || size > f.capacity {
		return Allocation{}, false
	}
	size = AlignUp(size)
	for i := range f.free {
		blk := &f.free[i]
		if blk.Size < size {
			continue
		}
		a := Allocation{Offset: blk.Offset, Size: size}
		if blk.Size == size {
			f.free = append(f.free[:i], f.free[i+1:]...)
		} else {
			blk.Offset += size
			blk.Size -= size
		}
		f.used += size
		f.live[a.Offset] = a.Size
		return a, true
	}
	return Allocation{}, false
}

// Free returns a range to the list, merging it with the preceding and then the
// following block when they touch. Only an exact live allocation is accepted;
// double frees, partial ranges and foreign ranges return false.
func (f *FreeList) Free(a Allocation) bool {
	if size, ok := f.live[a.Offset]; !ok || size != a.Size {
		return false
	}
	delete(f.live, a.Offset)

	i := sort.Search(len(f.free), func(i int) bool { return f.free[i].Offset >= a.Offset })

	f.free = append(f.free, FreeBlock{})
	copy(f.free[i+1:], f.free[i:])
	f.free[i] = FreeBlock{Offset: a.Offset, Size: a.Size}

	if i > 0 && f.free[i-1].End() == f.free[i].Offset {
		f.free[i-1].Size += f.free[i].Size
		f.free = append(f.free[:i], f.free[i+1:]...)
		i--
	}
	if i+1 < len(f.free) && f.free[i].End() == f.free[i+1].Offset {
		f.free[i].Size += f.free[i+1].Size
		f.free = append(f.free[:i+1], f.free[i+2:]...)
	}

	f.used -= a.Size
	return true
}

// Reset drops every allocation.
func (f *FreeList) Reset() {
	f.free = append(f.free[:0], FreeBlock{Offset: 0, Size: f.capacity})
	f.used = 0
	clear(f.live)
}

func (f *FreeList) Capacity() uint64 { return f.capacity }

// UsedBytes is the sum of live allocation sizes.
func (f *FreeList) UsedBytes() uint64 { return f.used }

// FreeBytes is the sum of free block sizes.
func (f *FreeList) FreeBytes() uint64 {
	var n uint64
	for _, b := range f.free {
		n += b.Size
	}
	return n
}

// LiveAllocations is the number of allocations not yet freed.
func (f *FreeList) LiveAllocations() int { return len(f.live) }

// LargestFree is the biggest single allocation that could currently succeed.
func (f *FreeList) LargestFree() uint64 {
	var n uint64
	for _, b := range f.free {
		if b.Size > n {
			n = b.Size
		}
	}
	return n
}

// FreeBlocks returns a copy of the free list in offset order.
func (f *FreeList) FreeBlocks() []FreeBlock {
	return append([]FreeBlock(nil), f.free...)
}
