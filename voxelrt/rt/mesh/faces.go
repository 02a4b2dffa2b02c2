package mesh

import "github.com/gekko3d/voxstream/voxelrt/rt/volume"

const (
	FacePosX = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

var faceDirs = [6][3]int{
	FacePosX: {1, 0, 0},
	FaceNegX: {-1, 0, 0},
	FacePosY: {0, 1, 0},
	FaceNegY: {0, -1, 0},
	FacePosZ: {0, 0, 1},
	FaceNegZ: {0, 0, -1},
}

// faceCorners are unit-cube corners, counter-clockwise seen from outside.
var faceCorners = [6][4][3]float32{
	FacePosX: {{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	FaceNegX: {{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}},
	FacePosY: {{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	FaceNegY: {{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	FacePosZ: {{1, 0, 1}, {1, 1, 1}, {0, 1, 1}, {0, 0, 1}},
	FaceNegZ: {{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
}

// crossCorners are the two diagonal planes used for vegetation.
var crossCorners = [2][4][3]float32{
	{{0, 0, 0}, {0, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	{{1, 0, 0}, {1, 1, 0}, {0, 1, 1}, {0, 0, 1}},
}

func placeCorners(c [4][3]float32, x, y, z, scale float32) [4][3]float32 {
	var out [4][3]float32
	for i, p := range c {
		out[i] = [3]float32{x + p[0]*scale, y + p[1]*scale, z + p[2]*scale}
	}
	return out
}

// faceVisible decides whether a face of block b toward neighbour n is drawn.
func faceVisible(b, n volume.BlockType) bool {
	switch {
	case b.IsWater():
		return n.IsEmpty()
	case b.IsSolidGeometry():
		return !n.IsOpaque()
	}
	return false
}
