package volume

import "github.com/go-gl/mathgl/mgl32"

const (
	Width  = 16
	Height = 128
	Depth  = 16

	CellCount = Width * Height * Depth

	SubBlockSize  = 4
	SubBlockCells = SubBlockSize * SubBlockSize * SubBlockSize // 64

	SubBlocksX    = Width / SubBlockSize
	SubBlocksY    = Height / SubBlockSize
	SubBlocksZ    = Depth / SubBlockSize
	SubBlockCount = SubBlocksX * SubBlocksY * SubBlocksZ
)

// Chunk is one Width x Height x Depth column of the world at chunk coords (CX, CZ).
// Block data lives either in the flat grid or, after Compress, in the compressed
// form; never in both.
type Chunk struct {
	CX, CZ int32

	blocks     []BlockType
	compressed *Compressed
	occupancy  []uint32 // two words per sub-block, nil until computed
}

func NewChunk(cx, cz int32) *Chunk {
	return &Chunk{
		CX:     cx,
		CZ:     cz,
		blocks: make([]BlockType, CellCount),
	}
}

// InBounds reports whether local coords address a cell of a chunk.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height && z >= 0 && z < Depth
}

// Index is the flat offset of a local cell: y-major, then z, then x.
func Index(x, y, z int) int {
	return y*Width*Depth + z*Width + x
}

// WorldOrigin returns the world-space block coords of local (0, 0, 0).
func (c *Chunk) WorldOrigin() (x, z int) {
	return int(c.CX) * Width, int(c.CZ) * Depth
}

// Bounds returns the chunk's world-space box.
func (c *Chunk) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	return ChunkBounds(c.CX, c.CZ)
}

// ChunkBounds returns the world-space box of the chunk at (cx, cz).
func ChunkBounds(cx, cz int32) (mgl32.Vec3, mgl32.Vec3) {
	x0 := float32(int(cx) * Width)
	z0 := float32(int(cz) * Depth)
	return mgl32.Vec3{x0, 0, z0}, mgl32.Vec3{x0 + Width, Height, z0 + Depth}
}

// Block returns the block at local coords. Anything out of bounds reads as air.
func (c *Chunk) Block(x, y, z int) BlockType {
	if !InBounds(x, y, z) {
		return BlockAir
	}
	if c.compressed != nil {
		return c.compressed.Block(x, y, z)
	}
	return c.blocks[Index(x, y, z)]
}

// SetBlock writes a block. Writes out of bounds are dropped; a compressed chunk
// is decompressed first. The occupancy mask is kept current if it was computed.
func (c *Chunk) SetBlock(x, y, z int, b BlockType) {
	if !InBounds(x, y, z) {
		return
	}
	c.Decompress()
	c.blocks[Index(x, y, z)] = b
	if c.occupancy != nil {
		c.setOccupied(x, y, z, !b.IsEmpty())
	}
}

// FillColumn sets cells y0..y1 (inclusive) of column (x, z).
func (c *Chunk) FillColumn(x, z, y0, y1 int, b BlockType) {
	if y0 < 0 {
		y0 = 0
	}
	if y1 >= Height {
		y1 = Height - 1
	}
	for y := y0; y <= y1; y++ {
		c.SetBlock(x, y, z, b)
	}
}

// HighestBlock returns the y of the topmost non-air cell in column (x, z), or -1.
func (c *Chunk) HighestBlock(x, z int) int {
	for y := Height - 1; y >= 0; y-- {
		if !c.Block(x, y, z).IsEmpty() {
			return y
		}
	}
	return -1
}

// Blocks returns the flat grid for bulk writes, decompressing if needed.
func (c *Chunk) Blocks() []BlockType {
	c.Decompress()
	return c.blocks
}

func (c *Chunk) IsCompressed() bool { return c.compressed != nil }

// Compress swaps the flat grid for the sub-block representation.
func (c *Chunk) Compress() {
	if c.compressed != nil {
		return
	}
	c.compressed = Compress(c.blocks)
	c.blocks = nil
}

// Decompress restores the flat grid. It is a no-op on an uncompressed chunk.
func (c *Chunk) Decompress() {
	if c.compressed == nil {
		return
	}
	c.blocks = c.compressed.Decompress()
	c.compressed = nil
}

// Compressed returns the compressed form, or nil.
func (c *Chunk) Compressed() *Compressed { return c.compressed }

// FromCompressed builds a chunk directly in compressed form.
func FromCompressed(cx, cz int32, comp *Compressed) *Chunk {
	return &Chunk{CX: cx, CZ: cz, compressed: comp}
}

// MemoryBytes is the block storage currently held by the chunk.
func (c *Chunk) MemoryBytes() int {
	n := len(c.blocks) + len(c.occupancy)*4
	if c.compressed != nil {
		n += c.compressed.Bytes()
	}
	return n
}

// EmissiveBlocks calls fn for every cell that emits light.
func (c *Chunk) EmissiveBlocks(fn func(x, y, z int, b BlockType)) {
	for y := 0; y < Height; y++ {
		for z := 0; z < Depth; z++ {
			for x := 0; x < Width; x++ {
				b := c.Block(x, y, z)
				if _, _, ok := b.Emission(); ok {
					fn(x, y, z, b)
				}
			}
		}
	}
}
