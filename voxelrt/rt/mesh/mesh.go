// Package mesh turns block grids into indexed triangle geometry.
package mesh

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
)

// VertexStride is the size of one vertex: position (3 x f32) + packed attributes.
const VertexStride = 16

// Geometry is one vertex/index set in VertexStride layout.
type Geometry struct {
	Vertices []byte
	Indices  []uint32
}

func (g Geometry) VertexCount() int { return len(g.Vertices) / VertexStride }
func (g Geometry) IndexCount() int  { return len(g.Indices) }
func (g Geometry) Empty() bool      { return len(g.Indices) == 0 }

// ChunkMesh is the full-detail output for one chunk, split by geometry class.
type ChunkMesh struct {
	Solid      Geometry
	Vegetation Geometry
	Water      Geometry
}

// Neighbors are the four horizontally adjacent chunks; nil when not loaded.
type Neighbors struct {
	NegX, PosX, NegZ, PosZ *volume.Chunk
}

// Count is the number of loaded neighbours.
func (n Neighbors) Count() int {
	c := 0
	for _, ch := range [4]*volume.Chunk{n.NegX, n.PosX, n.NegZ, n.PosZ} {
		if ch != nil {
			c++
		}
	}
	return c
}

// CoarseNeighbors are the downsampled grids of the four adjacent LOD chunks.
type CoarseNeighbors struct {
	NegX, PosX, NegZ, PosZ *volume.CoarseGrid
}

// Builder is the meshing collaborator used by the chunk scheduler.
type Builder interface {
	BuildMesh(c *volume.Chunk, n Neighbors) ChunkMesh
	Downsample(c *volume.Chunk) *volume.CoarseGrid
	BuildLODMesh(g *volume.CoarseGrid, worldX, worldZ int, n CoarseNeighbors) Geometry
}

// PackAttributes packs block id, face and corner into the vertex attribute word.
func PackAttributes(block volume.BlockType, face, corner int) uint32 {
	return uint32(block) | uint32(face&0xF)<<8 | uint32(corner&0x3)<<12
}

// UnpackAttributes is the inverse of PackAttributes.
func UnpackAttributes(v uint32) (block volume.BlockType, face, corner int) {
	return volume.BlockType(v & 0xFF), int(v>>8) & 0xF, int(v>>12) & 0x3
}

// geometryWriter appends quads to a Geometry.
type geometryWriter struct {
	g *Geometry
}

func (w geometryWriter) quad(corners [4][3]float32, block volume.BlockType, face int) {
	base := uint32(w.g.VertexCount())
	var v [VertexStride]byte
	for i, p := range corners {
		binary.LittleEndian.PutUint32(v[0:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(v[4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(v[8:], math.Float32bits(p[2]))
		binary.LittleEndian.PutUint32(v[12:], PackAttributes(block, face, i))
		w.g.Vertices = append(w.g.Vertices, v[:]...)
	}
	w.g.Indices = append(w.g.Indices, base, base+1, base+2, base, base+2, base+3)
}

// VertexPosition decodes the position of vertex i.
func (g Geometry) VertexPosition(i int) [3]float32 {
	off := i * VertexStride
	return [3]float32{
		math.Float32frombits(binary.LittleEndian.Uint32(g.Vertices[off:])),
		math.Float32frombits(binary.LittleEndian.Uint32(g.Vertices[off+4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(g.Vertices[off+8:])),
	}
}

// VertexAttributes decodes the packed attribute word of vertex i.
func (g Geometry) VertexAttributes(i int) uint32 {
	return binary.LittleEndian.Uint32(g.Vertices[i*VertexStride+12:])
}
