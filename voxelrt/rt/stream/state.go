package stream

import (
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
)

// State is a chunk entry's lifecycle state. Within one pass an entry only moves
// forward: Queued -> Generating -> Meshing -> Ready.
type State uint8

const (
	StateQueued State = iota
	StateGenerating
	StateMeshing
	StateReady
	// StateRemoved is only ever reported to observers; no stored entry holds it.
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateGenerating:
		return "generating"
	case StateMeshing:
		return "meshing"
	case StateReady:
		return "ready"
	case StateRemoved:
		return "removed"
	}
	return "unknown"
}

// Entry pairs a chunk with its lifecycle state and GPU allocations.
// Entries never point at each other; neighbours are looked up by coordinate.
type Entry struct {
	Coord Coord
	State State
	Chunk *volume.Chunk

	solid      gpu.MeshRegion
	vegetation gpu.MeshRegion
	water      *gpu.DedicatedGeometry
}

// HasGeometry reports whether any geometry of the entry is resident.
func (e *Entry) HasGeometry() bool {
	return !e.solid.Empty() || !e.vegetation.Empty() || e.water != nil
}

// FrameStats summarises one Update.
type FrameStats struct {
	Enqueued  int
	Generated int
	Remeshed  int
	Unloaded  int
	Exhausted int // geometry uploads that did not fit their arena
	Stale     int // queue entries discarded because their state moved on

	LODEnqueued   int
	LODGenerated  int
	LODUnloaded   int
	LODSuperseded int
}

func (s *FrameStats) add(o FrameStats) {
	s.Enqueued += o.Enqueued
	s.Generated += o.Generated
	s.Remeshed += o.Remeshed
	s.Unloaded += o.Unloaded
	s.Exhausted += o.Exhausted
	s.Stale += o.Stale
	s.LODEnqueued += o.LODEnqueued
	s.LODGenerated += o.LODGenerated
	s.LODUnloaded += o.LODUnloaded
	s.LODSuperseded += o.LODSuperseded
}
