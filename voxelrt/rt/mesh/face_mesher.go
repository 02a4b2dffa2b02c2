package mesh

import "github.com/gekko3d/voxstream/voxelrt/rt/volume"

// FaceMesher emits one quad per exposed face. Positions are in world space.
// Faces on a chunk border look into the neighbour chunk; a missing neighbour
// counts as air, so the border is drawn until the neighbour arrives and the
// chunk is remeshed.
type FaceMesher struct {
	LODScale int
}

var _ Builder = (*FaceMesher)(nil)

func NewFaceMesher() *FaceMesher {
	return &FaceMesher{LODScale: volume.LODScale}
}

func (m *FaceMesher) blockAt(c *volume.Chunk, n Neighbors, x, y, z int) volume.BlockType {
	switch {
	case x < 0:
		return lookup(n.NegX, x+volume.Width, y, z)
	case x >= volume.Width:
		return lookup(n.PosX, x-volume.Width, y, z)
	case z < 0:
		return lookup(n.NegZ, x, y, z+volume.Depth)
	case z >= volume.Depth:
		return lookup(n.PosZ, x, y, z-volume.Depth)
	}
	return c.Block(x, y, z)
}

func lookup(c *volume.Chunk, x, y, z int) volume.BlockType {
	if c == nil {
		return volume.BlockAir
	}
	return c.Block(x, y, z)
}

func (m *FaceMesher) BuildMesh(c *volume.Chunk, n Neighbors) ChunkMesh {
	var out ChunkMesh
	solid := geometryWriter{&out.Solid}
	veg := geometryWriter{&out.Vegetation}
	water := geometryWriter{&out.Water}

	ox, oz := c.WorldOrigin()
	useMask := c.HasOccupancy()

	for sy := 0; sy < volume.SubBlocksY; sy++ {
		for sz := 0; sz < volume.SubBlocksZ; sz++ {
			for sx := 0; sx < volume.SubBlocksX; sx++ {
				x0, y0, z0 := sx*volume.SubBlockSize, sy*volume.SubBlockSize, sz*volume.SubBlockSize
				if useMask {
					sub, _ := volume.SubBlockIndex(x0, y0, z0)
					if c.SubBlockEmpty(sub) {
						continue
					}
				}
				for y := y0; y < y0+volume.SubBlockSize; y++ {
					for z := z0; z < z0+volume.SubBlockSize; z++ {
						for x := x0; x < x0+volume.SubBlockSize; x++ {
							b := c.Block(x, y, z)
							if b.IsEmpty() {
								continue
							}
							wx, wy, wz := float32(ox+x), float32(y), float32(oz+z)
							if b.IsVegetation() {
								for _, cc := range crossCorners {
									veg.quad(placeCorners(cc, wx, wy, wz, 1), b, FacePosY)
								}
								continue
							}
							w := solid
							if b.IsWater() {
								w = water
							}
							for face, d := range faceDirs {
								nb := m.blockAt(c, n, x+d[0], y+d[1], z+d[2])
								if faceVisible(b, nb) {
									w.quad(placeCorners(faceCorners[face], wx, wy, wz, 1), b, face)
								}
							}
						}
					}
				}
			}
		}
	}
	return out
}

func (m *FaceMesher) scale() int {
	if m.LODScale < 1 {
		return volume.LODScale
	}
	return m.LODScale
}

func (m *FaceMesher) Downsample(c *volume.Chunk) *volume.CoarseGrid {
	return volume.Downsample(c, m.scale())
}

func coarseAt(g *volume.CoarseGrid, n CoarseNeighbors, x, y, z int) volume.BlockType {
	switch {
	case x < 0:
		if n.NegX == nil {
			return volume.BlockAir
		}
		return n.NegX.Block(x+n.NegX.W, y, z)
	case x >= g.W:
		if n.PosX == nil {
			return volume.BlockAir
		}
		return n.PosX.Block(x-g.W, y, z)
	case z < 0:
		if n.NegZ == nil {
			return volume.BlockAir
		}
		return n.NegZ.Block(x, y, z+n.NegZ.D)
	case z >= g.D:
		if n.PosZ == nil {
			return volume.BlockAir
		}
		return n.PosZ.Block(x, y, z-g.D)
	}
	return g.Block(x, y, z)
}

// BuildLODMesh meshes a coarse grid; every coarse cell becomes a Scale-sized cube.
func (m *FaceMesher) BuildLODMesh(g *volume.CoarseGrid, worldX, worldZ int, n CoarseNeighbors) Geometry {
	var out Geometry
	w := geometryWriter{&out}
	s := float32(g.Scale)
	for y := 0; y < g.H; y++ {
		for z := 0; z < g.D; z++ {
			for x := 0; x < g.W; x++ {
				b := g.Block(x, y, z)
				if !b.IsSolidGeometry() {
					continue
				}
				wx := float32(worldX) + float32(x)*s
				wy := float32(y) * s
				wz := float32(worldZ) + float32(z)*s
				for face, d := range faceDirs {
					if faceVisible(b, coarseAt(g, n, x+d[0], y+d[1], z+d[2])) {
						w.quad(placeCorners(faceCorners[face], wx, wy, wz, s), b, face)
					}
				}
			}
		}
	}
	return out
}
