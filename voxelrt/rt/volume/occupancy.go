package volume

// ComputeOccupancy builds the per-sub-block occupancy masks: bit i of a
// sub-block's 64-bit mask is set iff its cell i is non-empty. Stored as two
// 32-bit words, low word first.
func (c *Chunk) ComputeOccupancy() {
	if c.occupancy == nil {
		c.occupancy = make([]uint32, SubBlockCount*2)
	}
	if c.compressed != nil {
		c.computeOccupancyCompressed()
		return
	}
	var cells [SubBlockCells]BlockType
	for sub := 0; sub < SubBlockCount; sub++ {
		gatherSubBlock(c.blocks, sub, &cells)
		var mask uint64
		for i, b := range cells {
			if !b.IsEmpty() {
				mask |= 1 << uint(i)
			}
		}
		c.occupancy[sub*2] = uint32(mask)
		c.occupancy[sub*2+1] = uint32(mask >> 32)
	}
}

func (c *Chunk) computeOccupancyCompressed() {
	comp := c.compressed
	for sub := 0; sub < SubBlockCount; sub++ {
		var mask uint64
		if v, ok := comp.UniformValue(sub); ok {
			if !v.IsEmpty() {
				mask = ^uint64(0)
			}
		} else {
			cells := comp.Payload[comp.payloadIndex(sub)*SubBlockCells:]
			for i := 0; i < SubBlockCells; i++ {
				if !cells[i].IsEmpty() {
					mask |= 1 << uint(i)
				}
			}
		}
		c.occupancy[sub*2] = uint32(mask)
		c.occupancy[sub*2+1] = uint32(mask >> 32)
	}
}

// HasOccupancy reports whether ComputeOccupancy has run.
func (c *Chunk) HasOccupancy() bool { return c.occupancy != nil }

// Occupancy returns the two mask words of sub-block sub.
func (c *Chunk) Occupancy(sub int) (lo, hi uint32) {
	if c.occupancy == nil || sub < 0 || sub >= SubBlockCount {
		return 0, 0
	}
	return c.occupancy[sub*2], c.occupancy[sub*2+1]
}

// OccupancyMask returns the sub-block's mask as one 64-bit value.
func (c *Chunk) OccupancyMask(sub int) uint64 {
	lo, hi := c.Occupancy(sub)
	return uint64(lo) | uint64(hi)<<32
}

// SubBlockEmpty reports a sub-block with no occupied cell.
func (c *Chunk) SubBlockEmpty(sub int) bool { return c.OccupancyMask(sub) == 0 }

// SubBlockFull reports a sub-block whose 64 cells are all occupied.
func (c *Chunk) SubBlockFull(sub int) bool { return c.OccupancyMask(sub) == ^uint64(0) }

func (c *Chunk) setOccupied(x, y, z int, occupied bool) {
	sub, cell := SubBlockIndex(x, y, z)
	word := sub*2 + cell/32
	bit := uint32(1) << uint(cell%32)
	if occupied {
		c.occupancy[word] |= bit
	} else {
		c.occupancy[word] &^= bit
	}
}
