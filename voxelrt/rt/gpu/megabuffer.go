package gpu

import (
	"encoding/binary"
	"fmt"
)

// MegaBuffer is one fixed-size GPU buffer shared by many chunks, sub-allocated
// through a FreeList. It never grows or compacts: an upload that does not fit
// fails and the caller tries again on a later remesh.
type MegaBuffer struct {
	*FreeList

	name string
	buf  Buffer
}

func NewMegaBuffer(dev Device, name string, capacity uint64) (*MegaBuffer, error) {
	fl, err := NewFreeList(capacity)
	if err != nil {
		return nil, fmt.Errorf("mega buffer %s: %w", name, err)
	}
	buf, err := dev.CreateBuffer(name, fl.Capacity())
	if err != nil {
		return nil, err
	}
	return &MegaBuffer{FreeList: fl, name: name, buf: buf}, nil
}

func (m *MegaBuffer) Name() string   { return m.name }
func (m *MegaBuffer) ID() BufferID   { return m.buf.ID() }
func (m *MegaBuffer) Buffer() Buffer { return m.buf }

// Upload allocates room for data and queues the copy.
func (m *MegaBuffer) Upload(data []byte) (Allocation, bool) {
	a, ok := m.Allocate(uint64(len(data)))
	if !ok {
		return Allocation{}, false
	}
	m.buf.Write(a.Offset, data)
	return a, true
}

// Release frees an allocation. The bytes may be handed out by the next Allocate;
// the GPU queue orders the later write after draws already submitted.
func (m *MegaBuffer) Release(a Allocation) bool {
	return m.Free(a)
}

// MeshRegion is a geometry upload: the allocation plus the values needed for
// one indexed draw.
type MeshRegion struct {
	Alloc      Allocation
	IndexCount uint32
	FirstIndex uint32 // in indices (4 bytes each) from the start of the buffer
	BaseVertex int32  // in vertices from the start of the buffer
}

// Empty reports a region that holds no geometry.
func (r MeshRegion) Empty() bool { return r.IndexCount == 0 }

// geometryLayout computes the allocation size for vertices and indices with
// enough slack that vertex data can start on a multiple of stride.
func geometryLayout(vertexBytes, indexCount int, stride uint32) uint64 {
	slack := uint64(0)
	if stride > Alignment {
		slack = uint64(stride - Alignment)
	}
	return uint64(vertexBytes) + uint64(indexCount)*4 + slack
}

// writeGeometry places vertices at the first stride-aligned offset inside a and
// indices right after them.
func writeGeometry(buf Buffer, a Allocation, vertices []byte, indices []uint32, stride uint32) MeshRegion {
	s := uint64(stride)
	vertexStart := (a.Offset + s - 1) / s * s
	indexStart := vertexStart + uint64(len(vertices))

	buf.Write(vertexStart, vertices)
	buf.Write(indexStart, encodeIndices(indices))

	return MeshRegion{
		Alloc:      a,
		IndexCount: uint32(len(indices)),
		FirstIndex: uint32(indexStart / 4),
		BaseVertex: int32(vertexStart / s),
	}
}

func encodeIndices(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// UploadGeometry uploads one vertex/index set. stride must be a multiple of 4.
// An empty set succeeds without allocating.
func (m *MegaBuffer) UploadGeometry(vertices []byte, indices []uint32, stride uint32) (MeshRegion, bool) {
	if len(indices) == 0 {
		return MeshRegion{}, true
	}
	a, ok := m.Allocate(geometryLayout(len(vertices), len(indices), stride))
	if !ok {
		return MeshRegion{}, false
	}
	return writeGeometry(m.buf, a, vertices, indices, stride), true
}

// ReleaseRegion frees the allocation behind a region. Empty regions are ignored.
func (m *MegaBuffer) ReleaseRegion(r MeshRegion) {
	if r.Alloc.Size == 0 {
		return
	}
	m.Free(r.Alloc)
}

// Close releases the GPU buffer.
func (m *MegaBuffer) Close() {
	m.buf.Release()
}

// DedicatedGeometry is geometry that owns a whole buffer, used for small
// per-chunk sets like water.
type DedicatedGeometry struct {
	Buf    Buffer
	Region MeshRegion
}

// NewDedicatedGeometry creates a buffer sized for exactly one geometry set.
func NewDedicatedGeometry(dev Device, name string, vertices []byte, indices []uint32, stride uint32) (*DedicatedGeometry, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	size := AlignUp(uint64(len(vertices)) + uint64(len(indices))*4)
	buf, err := dev.CreateBuffer(name, size)
	if err != nil {
		return nil, err
	}
	a := Allocation{Offset: 0, Size: size}
	return &DedicatedGeometry{
		Buf:    buf,
		Region: writeGeometry(buf, a, vertices, indices, stride),
	}, nil
}

func (d *DedicatedGeometry) Release() {
	if d == nil || d.Buf == nil {
		return
	}
	d.Buf.Release()
	d.Buf = nil
}
