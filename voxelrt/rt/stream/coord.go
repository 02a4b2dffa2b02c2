package stream

import (
	"fmt"
	"math"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// Coord is a chunk grid coordinate.
type Coord struct {
	X, Z int32
}

// Key packs the coordinate into one map key.
func (c Coord) Key() uint64 {
	return uint64(uint32(c.X))<<32 | uint64(uint32(c.Z))
}

// CoordFromKey is the inverse of Key.
func CoordFromKey(k uint64) Coord {
	return Coord{X: int32(uint32(k >> 32)), Z: int32(uint32(k))}
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Z) }

// DistSq is the squared distance in chunks.
func (c Coord) DistSq(o Coord) int64 {
	dx := int64(c.X) - int64(o.X)
	dz := int64(c.Z) - int64(o.Z)
	return dx*dx + dz*dz
}

// Neighbours returns the four horizontally adjacent coords: -X, +X, -Z, +Z.
func (c Coord) Neighbours() [4]Coord {
	return [4]Coord{
		{c.X - 1, c.Z},
		{c.X + 1, c.Z},
		{c.X, c.Z - 1},
		{c.X, c.Z + 1},
	}
}

// Bounds is the world-space box of the chunk.
func (c Coord) Bounds() core.AABB {
	lo, hi := volume.ChunkBounds(c.X, c.Z)
	return core.AABB{Min: lo, Max: hi}
}

// ChunkCoordOf returns the chunk holding a world position.
func ChunkCoordOf(pos mgl32.Vec3) Coord {
	return Coord{
		X: int32(math.Floor(float64(pos.X()) / volume.Width)),
		Z: int32(math.Floor(float64(pos.Z()) / volume.Depth)),
	}
}

// within reports whether c lies inside radius r (chunks) of center.
func within(c, center Coord, r int) bool {
	return c.DistSq(center) <= int64(r)*int64(r)
}

// ring calls fn for every coord with DistSq in (inner², outer²], inner < 0
// meaning the full disc.
func ring(center Coord, inner, outer int, fn func(Coord)) {
	outerSq := int64(outer) * int64(outer)
	innerSq := int64(-1)
	if inner >= 0 {
		innerSq = int64(inner) * int64(inner)
	}
	for dz := -outer; dz <= outer; dz++ {
		for dx := -outer; dx <= outer; dx++ {
			d := int64(dx*dx + dz*dz)
			if d > outerSq || d <= innerSq {
				continue
			}
			fn(Coord{center.X + int32(dx), center.Z + int32(dz)})
		}
	}
}
