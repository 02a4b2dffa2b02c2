package gen

import "github.com/gekko3d/voxstream/voxelrt/rt/volume"

// HeightFunc returns the terrain surface height at a world column.
type HeightFunc func(worldX, worldZ int) int

// Heightmap fills bedrock, stone, dirt and a grass (or sand near sea level)
// surface up to Height(x, z).
type Heightmap struct {
	Height   HeightFunc
	SeaLevel int
}

func (h Heightmap) Generate(c *volume.Chunk) {
	ox, oz := c.WorldOrigin()
	for z := 0; z < volume.Depth; z++ {
		for x := 0; x < volume.Width; x++ {
			top := h.Height(ox+x, oz+z)
			if top >= volume.Height {
				top = volume.Height - 1
			}
			if top < 1 {
				top = 1
			}
			c.SetBlock(x, 0, z, volume.BlockBedrock)
			c.FillColumn(x, z, 1, top-4, volume.BlockStone)
			c.FillColumn(x, z, max(1, top-3), top-1, volume.BlockDirt)
			surface := volume.BlockGrass
			if top <= h.SeaLevel+1 {
				surface = volume.BlockSand
			}
			c.SetBlock(x, top, z, surface)
		}
	}
}

// Hash mixes world coords and a seed into 32 well-spread bits.
func Hash(seed int64, x, y, z int) uint32 {
	h := uint64(seed) ^ 0x9E3779B97F4A7C15
	for _, v := range [3]int{x, y, z} {
		h ^= uint64(int64(v)) + 0x9E3779B97F4A7C15 + (h << 6) + (h >> 2)
		h *= 0xBF58476D1CE4E5B9
		h ^= h >> 31
	}
	return uint32(h >> 32)
}

// OreVeins turns a fraction of stone cells into ore. Only stone is replaced.
type OreVeins struct {
	Seed     int64
	Permille uint32
}

func (o OreVeins) Generate(c *volume.Chunk) {
	ox, oz := c.WorldOrigin()
	for y := 1; y < volume.Height; y++ {
		for z := 0; z < volume.Depth; z++ {
			for x := 0; x < volume.Width; x++ {
				if c.Block(x, y, z) != volume.BlockStone {
					continue
				}
				r := Hash(o.Seed, ox+x, y, oz+z) % 1000
				switch {
				case r < o.Permille/3:
					c.SetBlock(x, y, z, volume.BlockIronOre)
				case r < o.Permille:
					c.SetBlock(x, y, z, volume.BlockCoalOre)
				}
			}
		}
	}
}

// Flowers plants vegetation on grass surfaces.
type Flowers struct {
	Seed     int64
	Permille uint32
}

func (f Flowers) Generate(c *volume.Chunk) {
	ox, oz := c.WorldOrigin()
	for z := 0; z < volume.Depth; z++ {
		for x := 0; x < volume.Width; x++ {
			top := c.HighestBlock(x, z)
			if top < 0 || top+1 >= volume.Height || c.Block(x, top, z) != volume.BlockGrass {
				continue
			}
			r := Hash(f.Seed, ox+x, top, oz+z) % 1000
			switch {
			case r < f.Permille/4:
				c.SetBlock(x, top+1, z, volume.BlockFlower)
			case r < f.Permille:
				c.SetBlock(x, top+1, z, volume.BlockTallGrass)
			}
		}
	}
}

// Beacons places a glowstone pillar cap in every chunk whose hash hits.
type Beacons struct {
	Seed     int64
	Permille uint32
}

func (b Beacons) Generate(c *volume.Chunk) {
	if Hash(b.Seed, int(c.CX), 0, int(c.CZ))%1000 >= b.Permille {
		return
	}
	x, z := volume.Width/2, volume.Depth/2
	top := c.HighestBlock(x, z)
	if top < 0 || top+3 >= volume.Height {
		return
	}
	c.FillColumn(x, z, top+1, top+2, volume.BlockLog)
	c.SetBlock(x, top+3, z, volume.BlockGlowstone)
}

// SeaLevel fills air below Level with water.
type SeaLevel struct {
	Level int
}

func (s SeaLevel) Generate(c *volume.Chunk) {
	for z := 0; z < volume.Depth; z++ {
		for x := 0; x < volume.Width; x++ {
			for y := s.Level; y > 0; y-- {
				if c.Block(x, y, z) != volume.BlockAir {
					break
				}
				c.SetBlock(x, y, z, volume.BlockWater)
			}
		}
	}
}
