package volume

// LODScale is the downsampling factor used for the LOD ring.
const LODScale = 4

// CoarseGrid is a downsampled chunk: each cell stands for Scale^3 source cells.
type CoarseGrid struct {
	CX, CZ  int32
	Scale   int
	W, H, D int
	Cells   []BlockType
}

func NewCoarseGrid(cx, cz int32, scale int) *CoarseGrid {
	w, h, d := Width/scale, Height/scale, Depth/scale
	return &CoarseGrid{
		CX:    cx,
		CZ:    cz,
		Scale: scale,
		W:     w,
		H:     h,
		D:     d,
		Cells: make([]BlockType, w*h*d),
	}
}

func (g *CoarseGrid) index(x, y, z int) int {
	return y*g.W*g.D + z*g.W + x
}

// Block reads a coarse cell. Out of bounds reads as air.
func (g *CoarseGrid) Block(x, y, z int) BlockType {
	if g == nil || x < 0 || x >= g.W || y < 0 || y >= g.H || z < 0 || z >= g.D {
		return BlockAir
	}
	return g.Cells[g.index(x, y, z)]
}

func (g *CoarseGrid) SetBlock(x, y, z int, b BlockType) {
	if x < 0 || x >= g.W || y < 0 || y >= g.H || z < 0 || z >= g.D {
		return
	}
	g.Cells[g.index(x, y, z)] = b
}

// Downsample reduces a chunk by scale along every axis. A coarse cell takes the
// most frequent non-air block when at least half of its source cells are
// non-air, otherwise air. Ties go to the lower block id.
func Downsample(c *Chunk, scale int) *CoarseGrid {
	if scale < 1 {
		scale = 1
	}
	g := NewCoarseGrid(c.CX, c.CZ, scale)
	total := scale * scale * scale

	var counts [256]int
	for gy := 0; gy < g.H; gy++ {
		for gz := 0; gz < g.D; gz++ {
			for gx := 0; gx < g.W; gx++ {
				counts = [256]int{}
				solid := 0
				for y := gy * scale; y < (gy+1)*scale; y++ {
					for z := gz * scale; z < (gz+1)*scale; z++ {
						for x := gx * scale; x < (gx+1)*scale; x++ {
							b := c.Block(x, y, z)
							if b.IsEmpty() {
								continue
							}
							counts[b]++
							solid++
						}
					}
				}
				if solid*2 < total {
					continue
				}
				best, bestN := BlockAir, 0
				for id := 1; id < len(counts); id++ {
					if counts[id] > bestN {
						best, bestN = BlockType(id), counts[id]
					}
				}
				g.Cells[g.index(gx, gy, gz)] = best
			}
		}
	}
	return g
}
