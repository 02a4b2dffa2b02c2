package volume

import (
	"errors"
	"fmt"
	"math/bits"
)

var ErrCorruptCompressed = errors.New("volume: corrupt compressed chunk")

const mixedWords = (SubBlockCount + 63) / 64

// Compressed stores a chunk grid as 4x4x4 sub-blocks. A uniform sub-block keeps a
// single byte in Uniform; a mixed one sets its bit in MixedMask and keeps its 64
// cells in Payload, packed in sub-block order.
type Compressed struct {
	Uniform   [SubBlockCount]BlockType
	MixedMask [mixedWords]uint64
	Payload   []BlockType

	rank [mixedWords]uint16 // mixed sub-blocks before each mask word
}

// SubBlockIndex returns the sub-block holding local cell (x, y, z) and the
// cell's index inside it (lx + lz*4 + ly*16).
func SubBlockIndex(x, y, z int) (sub, cell int) {
	sx, sy, sz := x/SubBlockSize, y/SubBlockSize, z/SubBlockSize
	lx, ly, lz := x%SubBlockSize, y%SubBlockSize, z%SubBlockSize
	sub = sy*SubBlocksX*SubBlocksZ + sz*SubBlocksX + sx
	cell = lx + lz*SubBlockSize + ly*SubBlockSize*SubBlockSize
	return sub, cell
}

// subBlockOrigin is the inverse of SubBlockIndex for the sub-block part.
func subBlockOrigin(sub int) (x, y, z int) {
	sy := sub / (SubBlocksX * SubBlocksZ)
	rem := sub % (SubBlocksX * SubBlocksZ)
	sz := rem / SubBlocksX
	sx := rem % SubBlocksX
	return sx * SubBlockSize, sy * SubBlockSize, sz * SubBlockSize
}

// gatherSubBlock copies one sub-block of a flat grid into dst in sub-block order.
func gatherSubBlock(grid []BlockType, sub int, dst *[SubBlockCells]BlockType) {
	ox, oy, oz := subBlockOrigin(sub)
	i := 0
	for ly := 0; ly < SubBlockSize; ly++ {
		for lz := 0; lz < SubBlockSize; lz++ {
			row := Index(ox, oy+ly, oz+lz)
			copy(dst[i:i+SubBlockSize], grid[row:row+SubBlockSize])
			i += SubBlockSize
		}
	}
}

// Compress builds the compressed form of a flat grid of CellCount cells.
func Compress(grid []BlockType) *Compressed {
	c := &Compressed{}
	var cells [SubBlockCells]BlockType
	for sub := 0; sub < SubBlockCount; sub++ {
		gatherSubBlock(grid, sub, &cells)
		first := cells[0]
		uniform := true
		for _, b := range cells[1:] {
			if b != first {
				uniform = false
				break
			}
		}
		if uniform {
			c.Uniform[sub] = first
			continue
		}
		c.MixedMask[sub/64] |= 1 << uint(sub%64)
		c.Payload = append(c.Payload, cells[:]...)
	}
	c.buildRank()
	return c
}

func (c *Compressed) buildRank() {
	var n uint16
	for w := 0; w < mixedWords; w++ {
		c.rank[w] = n
		n += uint16(bits.OnesCount64(c.MixedMask[w]))
	}
}

// IsMixed reports whether sub-block sub keeps a full payload.
func (c *Compressed) IsMixed(sub int) bool {
	return c.MixedMask[sub/64]&(1<<uint(sub%64)) != 0
}

// payloadIndex is the packed slot of a mixed sub-block.
func (c *Compressed) payloadIndex(sub int) int {
	w := sub / 64
	below := c.MixedMask[w] & ((uint64(1) << uint(sub%64)) - 1)
	return int(c.rank[w]) + bits.OnesCount64(below)
}

// MixedCount is the number of sub-blocks flagged mixed in MixedMask.
func (c *Compressed) MixedCount() int {
	n := 0
	for _, w := range c.MixedMask {
		n += bits.OnesCount64(w)
	}
	return n
}

// Validate checks that the payload holds exactly one 64-cell run per mixed
// sub-block. Data decoded from outside must pass before it is read.
func (c *Compressed) Validate() error {
	if want := c.MixedCount() * SubBlockCells; len(c.Payload) != want {
		return fmt.Errorf("%w: payload %d bytes, %d mixed sub-blocks need %d",
			ErrCorruptCompressed, len(c.Payload), c.MixedCount(), want)
	}
	return nil
}

// UniformValue returns the single value of a uniform sub-block.
func (c *Compressed) UniformValue(sub int) (BlockType, bool) {
	if c.IsMixed(sub) {
		return BlockAir, false
	}
	return c.Uniform[sub], true
}

// Block reads one cell without decompressing. Out of bounds reads as air.
func (c *Compressed) Block(x, y, z int) BlockType {
	if !InBounds(x, y, z) {
		return BlockAir
	}
	sub, cell := SubBlockIndex(x, y, z)
	if !c.IsMixed(sub) {
		return c.Uniform[sub]
	}
	return c.Payload[c.payloadIndex(sub)*SubBlockCells+cell]
}

// Decompress expands back into a flat grid.
func (c *Compressed) Decompress() []BlockType {
	grid := make([]BlockType, CellCount)
	for sub := 0; sub < SubBlockCount; sub++ {
		ox, oy, oz := subBlockOrigin(sub)
		if !c.IsMixed(sub) {
			v := c.Uniform[sub]
			if v == BlockAir {
				continue
			}
			for ly := 0; ly < SubBlockSize; ly++ {
				for lz := 0; lz < SubBlockSize; lz++ {
					row := Index(ox, oy+ly, oz+lz)
					for lx := 0; lx < SubBlockSize; lx++ {
						grid[row+lx] = v
					}
				}
			}
			continue
		}
		cells := c.Payload[c.payloadIndex(sub)*SubBlockCells:]
		i := 0
		for ly := 0; ly < SubBlockSize; ly++ {
			for lz := 0; lz < SubBlockSize; lz++ {
				row := Index(ox, oy+ly, oz+lz)
				copy(grid[row:row+SubBlockSize], cells[i:i+SubBlockSize])
				i += SubBlockSize
			}
		}
	}
	return grid
}

// Bytes approximates the memory held by the compressed form.
func (c *Compressed) Bytes() int {
	return SubBlockCount + mixedWords*8 + mixedWords*2 + len(c.Payload)
}

// Rebuild recomputes derived lookup tables after the exported fields were filled
// from outside, e.g. when decoding a snapshot.
func (c *Compressed) Rebuild() {
	c.buildRank()
}
