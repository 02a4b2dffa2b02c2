package stream

import (
	"sort"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
)

// DrawCall is everything the renderer needs to issue one indexed draw.
type DrawCall struct {
	Coord      Coord
	Arena      gpu.BufferID
	Buffer     gpu.Buffer
	IndexCount uint32
	FirstIndex uint32
	BaseVertex int32
}

func regionCall(c Coord, buf gpu.Buffer, r gpu.MeshRegion) DrawCall {
	return DrawCall{
		Coord:      c,
		Arena:      buf.ID(),
		Buffer:     buf,
		IndexCount: r.IndexCount,
		FirstIndex: r.FirstIndex,
		BaseVertex: r.BaseVertex,
	}
}

// sortCalls orders calls nearest first, ties by key, so output is stable.
func sortCalls(calls []DrawCall, center Coord) {
	sort.Slice(calls, func(i, j int) bool {
		di, dj := calls[i].Coord.DistSq(center), calls[j].Coord.DistSq(center)
		if di != dj {
			return di < dj
		}
		return calls[i].Coord.Key() < calls[j].Coord.Key()
	})
}

func (m *Manager) collect(frustum core.Frustum, pick func(e *Entry) (DrawCall, bool)) []DrawCall {
	var calls []DrawCall
	for _, e := range m.entries {
		if e.State != StateReady {
			continue
		}
		if !frustum.IntersectsAABB(e.Coord.Bounds()) {
			continue
		}
		if dc, ok := pick(e); ok {
			calls = append(calls, dc)
		}
	}
	sortCalls(calls, m.center)
	return calls
}

// DrawCalls returns one call per visible READY chunk with solid geometry.
func (m *Manager) DrawCalls() []DrawCall {
	return m.collect(m.frustum, func(e *Entry) (DrawCall, bool) {
		if e.solid.Empty() {
			return DrawCall{}, false
		}
		return regionCall(e.Coord, m.solid.Buffer(), e.solid), true
	})
}

func (m *Manager) VegetationDrawCalls() []DrawCall {
	return m.collect(m.frustum, func(e *Entry) (DrawCall, bool) {
		if e.vegetation.Empty() {
			return DrawCall{}, false
		}
		return regionCall(e.Coord, m.vegetation.Buffer(), e.vegetation), true
	})
}

// WaterDrawCalls reference each chunk's dedicated water buffer.
func (m *Manager) WaterDrawCalls() []DrawCall {
	return m.collect(m.frustum, func(e *Entry) (DrawCall, bool) {
		if e.water == nil || e.water.Region.Empty() {
			return DrawCall{}, false
		}
		return regionCall(e.Coord, e.water.Buf, e.water.Region), true
	})
}
