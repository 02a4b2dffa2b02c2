package stream

import (
	"fmt"
	"sort"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gen"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/mesh"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
)

// ReadyChecker reports whether a coordinate is served at full detail.
type ReadyChecker interface {
	IsReady(c Coord) bool
}

// LODEntry is one coarse chunk in the LOD ring.
type LODEntry struct {
	Coord  Coord
	State  State
	Grid   *volume.CoarseGrid
	region gpu.MeshRegion
}

// LODManager loads the ring between the render distance and render distance
// plus LOD distance with downsampled chunks in their own arena.
type LODManager struct {
	cfg      Config
	log      core.Logger
	clock    core.Clock
	pipeline *gen.Pipeline
	mesher   mesh.Builder
	primary  ReadyChecker

	arena    *gpu.MegaBuffer
	entries  map[uint64]*LODEntry
	queue    []Coord
	center   Coord
	frustum  core.Frustum
	throttle *core.Throttle

	// Supersedes between updates, reported by the next Update.
	superseded int
}

func NewLODManager(cfg Config, deps Deps, primary ReadyChecker) (*LODManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: lod manager needs the primary registry", ErrInvalidConfig)
	}
	arena, err := gpu.NewMegaBuffer(deps.Device, "chunk-lod", cfg.LODArenaBytes)
	if err != nil {
		return nil, fmt.Errorf("lod arena: %w", err)
	}
	return &LODManager{
		cfg:      cfg,
		log:      deps.Logger,
		clock:    deps.Clock,
		pipeline: deps.Pipeline,
		mesher:   deps.Mesher,
		primary:  primary,
		arena:    arena,
		entries:  make(map[uint64]*LODEntry),
		throttle: core.NewThrottle(exhaustionLogEvery),
	}, nil
}

func (l *LODManager) Arena() *gpu.MegaBuffer { return l.arena }

func (l *LODManager) Len() int      { return len(l.entries) }
func (l *LODManager) QueueLen() int { return len(l.queue) }

func (l *LODManager) Entry(c Coord) (*LODEntry, bool) {
	e, ok := l.entries[c.Key()]
	return e, ok
}

// ReadyCount is the number of READY LOD entries.
func (l *LODManager) ReadyCount() int {
	n := 0
	for _, e := range l.entries {
		if e.State == StateReady {
			n++
		}
	}
	return n
}

// IsReady reports whether c has a READY LOD entry.
func (l *LODManager) IsReady(c Coord) bool {
	e, ok := l.entries[c.Key()]
	return ok && e.State == StateReady
}

// Supersede drops the LOD entry for c, if any. Called the moment the
// full-detail chunk at c becomes READY.
func (l *LODManager) Supersede(c Coord) bool {
	e, ok := l.entries[c.Key()]
	if !ok {
		return false
	}
	l.remove(e)
	l.superseded++
	return true
}

func (l *LODManager) remove(e *LODEntry) {
	l.arena.ReleaseRegion(e.region)
	e.region = gpu.MeshRegion{}
	e.Grid = nil
	delete(l.entries, e.Coord.Key())
}

// Update sweeps the ring and, when load is set, builds queued coords until the
// deadline. The sweep runs every frame even when loading is held back.
func (l *LODManager) Update(center Coord, frustum core.Frustum, deadline time.Time, load bool) FrameStats {
	var stats FrameStats
	l.center = center
	l.frustum = frustum

	stats.LODSuperseded = l.superseded
	l.superseded = 0
	stats.LODUnloaded = l.sweep(center, &stats)

	if !load {
		return stats
	}
	ring(center, l.cfg.RenderDistance, l.cfg.LODOuterDistance(), func(c Coord) {
		k := c.Key()
		if _, ok := l.entries[k]; ok || l.primary.IsReady(c) {
			return
		}
		l.entries[k] = &LODEntry{Coord: c, State: StateQueued}
		l.queue = append(l.queue, c)
		stats.LODEnqueued++
	})
	l.sortQueue()

	head := 0
	for head < len(l.queue) && l.clock.Now().Before(deadline) {
		c := l.queue[head]
		head++
		e, ok := l.entries[c.Key()]
		if !ok || e.State != StateQueued {
			stats.Stale++
			continue
		}
		if l.primary.IsReady(c) {
			l.remove(e)
			stats.LODSuperseded++
			continue
		}
		l.build(e, &stats)
		stats.LODGenerated++
	}
	l.queue = append(l.queue[:0], l.queue[head:]...)
	return stats
}

// sweep unloads entries past the LOD unload distance and any whose
// full-detail chunk is READY.
func (l *LODManager) sweep(center Coord, stats *FrameStats) int {
	limit := l.cfg.LODUnloadDistance()
	n := 0
	for _, e := range l.entries {
		switch {
		case !within(e.Coord, center, limit):
			l.remove(e)
			n++
		case l.primary.IsReady(e.Coord):
			l.remove(e)
			stats.LODSuperseded++
		}
	}
	return n
}

func (l *LODManager) sortQueue() {
	sort.SliceStable(l.queue, func(i, j int) bool {
		vi := l.frustum.IntersectsAABB(l.queue[i].Bounds())
		vj := l.frustum.IntersectsAABB(l.queue[j].Bounds())
		if vi != vj {
			return vi
		}
		return l.queue[i].DistSq(l.center) < l.queue[j].DistSq(l.center)
	})
}

func (l *LODManager) coarseNeighbours(c Coord) mesh.CoarseNeighbors {
	get := func(n Coord) *volume.CoarseGrid {
		e, ok := l.entries[n.Key()]
		if !ok || e.State != StateReady {
			return nil
		}
		return e.Grid
	}
	nb := c.Neighbours()
	return mesh.CoarseNeighbors{NegX: get(nb[0]), PosX: get(nb[1]), NegZ: get(nb[2]), PosZ: get(nb[3])}
}

func (l *LODManager) build(e *LODEntry, stats *FrameStats) {
	e.State = StateGenerating
	chunk := volume.NewChunk(e.Coord.X, e.Coord.Z)
	l.pipeline.Run(chunk, gen.ModeLOD)
	e.Grid = l.mesher.Downsample(chunk)

	e.State = StateMeshing
	ox, oz := chunk.WorldOrigin()
	g := l.mesher.BuildLODMesh(e.Grid, ox, oz, l.coarseNeighbours(e.Coord))
	if r, ok := l.arena.UploadGeometry(g.Vertices, g.Indices, mesh.VertexStride); ok {
		e.region = r
	} else {
		stats.Exhausted++
		if log, n := l.throttle.Allow(l.arena.Name()); log {
			l.log.Warnf("%s arena exhausted: chunk %v, largest free %d (%d occurrences)",
				l.arena.Name(), e.Coord, l.arena.LargestFree(), n)
		}
	}
	e.State = StateReady
}

// DrawCalls returns visible READY LOD chunks, leaving out every coordinate
// whose full-detail chunk is READY.
func (l *LODManager) DrawCalls() []DrawCall {
	var calls []DrawCall
	buf := l.arena.Buffer()
	for _, e := range l.entries {
		if e.State != StateReady || e.region.Empty() {
			continue
		}
		if l.primary.IsReady(e.Coord) {
			continue
		}
		if !l.frustum.IntersectsAABB(e.Coord.Bounds()) {
			continue
		}
		calls = append(calls, regionCall(e.Coord, buf, e.region))
	}
	sortCalls(calls, l.center)
	return calls
}

// Close drops every entry and releases the arena.
func (l *LODManager) Close() {
	for _, e := range l.entries {
		l.remove(e)
	}
	l.queue = nil
	l.arena.Close()
}
