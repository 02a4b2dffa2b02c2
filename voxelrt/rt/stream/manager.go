package stream

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gen"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/mesh"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// Deps are the collaborators shared by the managers.
type Deps struct {
	Pipeline *gen.Pipeline
	Mesher   mesh.Builder
	Device   gpu.Device
	Logger   core.Logger
	Clock    core.Clock
}

func (d *Deps) normalize() error {
	if d.Mesher == nil {
		return errors.New("stream: mesher is required")
	}
	if d.Device == nil {
		return errors.New("stream: device is required")
	}
	if d.Pipeline == nil {
		d.Pipeline = gen.NewPipeline()
	}
	if d.Clock == nil {
		d.Clock = core.SystemClock{}
	}
	d.Logger = core.OrNop(d.Logger)
	return nil
}

// exhaustionLogEvery is how many repeated exhaustions of one arena are
// folded into a single warning.
const exhaustionLogEvery = 64

// Manager owns the full-detail chunk registry. It is driven from a single
// goroutine: Update, SetBlock and the draw-call getters must not run concurrently.
type Manager struct {
	cfg      Config
	log      core.Logger
	clock    core.Clock
	pipeline *gen.Pipeline
	mesher   mesh.Builder
	device   gpu.Device

	solid      *gpu.MegaBuffer
	vegetation *gpu.MegaBuffer

	entries map[uint64]*Entry
	queue   []Coord

	// Neighbour remeshes deferred to later frames, FIFO.
	pending    []Coord
	pendingSet map[uint64]struct{}

	lights map[uint64][]core.PointLight

	center  Coord
	frustum core.Frustum

	observers []func(Coord, State)
	throttle  *core.Throttle
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	solid, err := gpu.NewMegaBuffer(deps.Device, "chunk-solid", cfg.SolidArenaBytes)
	if err != nil {
		return nil, fmt.Errorf("solid arena: %w", err)
	}
	veg, err := gpu.NewMegaBuffer(deps.Device, "chunk-vegetation", cfg.VegetationArenaBytes)
	if err != nil {
		solid.Close()
		return nil, fmt.Errorf("vegetation arena: %w", err)
	}
	return &Manager{
		cfg:        cfg,
		log:        deps.Logger,
		clock:      deps.Clock,
		pipeline:   deps.Pipeline,
		mesher:     deps.Mesher,
		device:     deps.Device,
		solid:      solid,
		vegetation: veg,
		entries:    make(map[uint64]*Entry),
		pendingSet: make(map[uint64]struct{}),
		lights:     make(map[uint64][]core.PointLight),
		throttle:   core.NewThrottle(exhaustionLogEvery),
	}, nil
}

// OnStateChange registers fn to be called on every state change, including removal.
func (m *Manager) OnStateChange(fn func(Coord, State)) {
	m.observers = append(m.observers, fn)
}

func (m *Manager) setState(e *Entry, s State) {
	e.State = s
	if m.log.DebugEnabled() {
		m.log.Debugf("chunk %v -> %v", e.Coord, s)
	}
	for _, fn := range m.observers {
		fn(e.Coord, s)
	}
}

// Entry returns the registry entry for c.
func (m *Manager) Entry(c Coord) (*Entry, bool) {
	e, ok := m.entries[c.Key()]
	return e, ok
}

// State returns the state of c; ok is false when c has no entry.
func (m *Manager) State(c Coord) (State, bool) {
	e, ok := m.entries[c.Key()]
	if !ok {
		return StateRemoved, false
	}
	return e.State, true
}

// IsReady reports whether c has a READY full-detail entry.
func (m *Manager) IsReady(c Coord) bool {
	e, ok := m.entries[c.Key()]
	return ok && e.State == StateReady
}

// Len is the number of entries in any state.
func (m *Manager) Len() int { return len(m.entries) }

// QueueLen is the number of coordinates waiting to be processed.
func (m *Manager) QueueLen() int { return len(m.queue) }

// PendingRemeshes is the number of deferred neighbour remeshes.
func (m *Manager) PendingRemeshes() int { return len(m.pendingSet) }

// CountInState counts entries in state s.
func (m *Manager) CountInState(s State) int {
	n := 0
	for _, e := range m.entries {
		if e.State == s {
			n++
		}
	}
	return n
}

func (m *Manager) SolidArena() *gpu.MegaBuffer      { return m.solid }
func (m *Manager) VegetationArena() *gpu.MegaBuffer { return m.vegetation }

// ReadyChunks calls fn for every READY entry.
func (m *Manager) ReadyChunks(fn func(Coord, *volume.Chunk)) {
	for _, e := range m.entries {
		if e.State == StateReady {
			fn(e.Coord, e.Chunk)
		}
	}
}

// Enqueue adds c as a QUEUED entry. It returns false if c already has an entry.
func (m *Manager) Enqueue(c Coord) bool {
	k := c.Key()
	if _, ok := m.entries[k]; ok {
		return false
	}
	e := &Entry{Coord: c}
	m.entries[k] = e
	m.queue = append(m.queue, c)
	m.setState(e, StateQueued)
	return true
}

// Update runs one frame: enqueue, prioritise, process until the time budget is
// spent, deferred neighbour remeshes, then unload.
func (m *Manager) Update(camPos mgl32.Vec3, frustum core.Frustum) FrameStats {
	deadline := m.clock.Now().Add(m.cfg.TimeBudget())
	return m.update(ChunkCoordOf(camPos), frustum, deadline)
}

func (m *Manager) update(center Coord, frustum core.Frustum, deadline time.Time) FrameStats {
	var stats FrameStats
	m.center = center
	m.frustum = frustum

	ring(center, -1, m.cfg.RenderDistance, func(c Coord) {
		if m.Enqueue(c) {
			stats.Enqueued++
		}
	})
	m.sortQueue()

	generated := m.processQueue(deadline, &stats)
	m.deferNeighbourRemeshes(generated)
	stats.Remeshed = m.processPendingRemeshes(m.cfg.MaxNeighborRebuilds, &stats)
	stats.Unloaded = m.unload(center)
	return stats
}

// sortQueue puts frustum-visible coords first, each group nearest first.
func (m *Manager) sortQueue() {
	type item struct {
		c       Coord
		visible bool
		dist    int64
	}
	items := make([]item, len(m.queue))
	for i, c := range m.queue {
		items[i] = item{c: c, visible: m.frustum.IntersectsAABB(c.Bounds()), dist: c.DistSq(m.center)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].visible != items[j].visible {
			return items[i].visible
		}
		return items[i].dist < items[j].dist
	})
	for i := range items {
		m.queue[i] = items[i].c
	}
}

// processQueue starts chunks until the deadline passes. A started chunk always
// runs to READY; the deadline only stops the next one from starting.
func (m *Manager) processQueue(deadline time.Time, stats *FrameStats) []Coord {
	var generated []Coord
	head := 0
	for head < len(m.queue) && m.clock.Now().Before(deadline) {
		c := m.queue[head]
		head++
		e, ok := m.entries[c.Key()]
		if !ok || e.State != StateQueued {
			stats.Stale++
			continue
		}
		m.build(e, stats)
		stats.Generated++
		generated = append(generated, c)
	}
	m.queue = append(m.queue[:0], m.queue[head:]...)
	return generated
}

func (m *Manager) build(e *Entry, stats *FrameStats) {
	m.setState(e, StateGenerating)
	e.Chunk = volume.NewChunk(e.Coord.X, e.Coord.Z)
	m.pipeline.Run(e.Chunk, gen.ModeFull)
	e.Chunk.ComputeOccupancy()

	m.setState(e, StateMeshing)
	m.remesh(e, stats)
	e.Chunk.Compress()
	m.refreshLights(e)

	m.setState(e, StateReady)
}

// neighbours resolves the four adjacent READY chunks through the registry.
func (m *Manager) neighbours(c Coord) mesh.Neighbors {
	get := func(n Coord) *volume.Chunk {
		e, ok := m.entries[n.Key()]
		if !ok || e.State != StateReady {
			return nil
		}
		return e.Chunk
	}
	nb := c.Neighbours()
	return mesh.Neighbors{NegX: get(nb[0]), PosX: get(nb[1]), NegZ: get(nb[2]), PosZ: get(nb[3])}
}

// remesh rebuilds and re-uploads all geometry of e. Old allocations are freed
// before the new ones are requested.
func (m *Manager) remesh(e *Entry, stats *FrameStats) {
	cm := m.mesher.BuildMesh(e.Chunk, m.neighbours(e.Coord))
	m.releaseGeometry(e)

	e.solid = m.uploadTo(m.solid, e.Coord, cm.Solid, stats)
	e.vegetation = m.uploadTo(m.vegetation, e.Coord, cm.Vegetation, stats)

	if !cm.Water.Empty() {
		w, err := gpu.NewDedicatedGeometry(m.device, "chunk-water "+e.Coord.String(), cm.Water.Vertices, cm.Water.Indices, mesh.VertexStride)
		if err != nil {
			m.log.Errorf("water buffer for chunk %v: %v", e.Coord, err)
		} else {
			e.water = w
		}
	}
}

func (m *Manager) uploadTo(arena *gpu.MegaBuffer, c Coord, g mesh.Geometry, stats *FrameStats) gpu.MeshRegion {
	r, ok := arena.UploadGeometry(g.Vertices, g.Indices, mesh.VertexStride)
	if ok {
		return r
	}
	stats.Exhausted++
	if log, n := m.throttle.Allow(arena.Name()); log {
		m.log.Warnf("%s arena exhausted: chunk %v needs %d bytes, largest free %d of %d free (%d occurrences)",
			arena.Name(), c, len(g.Vertices)+len(g.Indices)*4, arena.LargestFree(), arena.FreeBytes(), n)
	}
	return gpu.MeshRegion{}
}

func (m *Manager) releaseGeometry(e *Entry) {
	m.solid.ReleaseRegion(e.solid)
	m.vegetation.ReleaseRegion(e.vegetation)
	e.solid = gpu.MeshRegion{}
	e.vegetation = gpu.MeshRegion{}
	if e.water != nil {
		e.water.Release()
		e.water = nil
	}
}

func (m *Manager) refreshLights(e *Entry) {
	k := e.Coord.Key()
	ox, oz := e.Chunk.WorldOrigin()
	var lights []core.PointLight
	e.Chunk.EmissiveBlocks(func(x, y, z int, b volume.BlockType) {
		rgb, intensity, _ := b.Emission()
		lights = append(lights, core.PointLight{
			Position:  mgl32.Vec3{float32(ox+x) + 0.5, float32(y) + 0.5, float32(oz+z) + 0.5},
			Color:     rgb,
			Intensity: intensity,
			Range:     lightRange * intensity,
		})
	})
	if len(lights) == 0 {
		delete(m.lights, k)
		return
	}
	m.lights[k] = lights
}

// lightRange is the reach in blocks of an intensity 1 emissive block.
const lightRange = 10

// deferNeighbourRemeshes records the READY neighbours of chunks generated this
// frame that were meshed before them; they are rebuilt a few per frame instead
// of all at once. A neighbour generated later in the same frame already saw
// the earlier chunk and keeps its mesh.
func (m *Manager) deferNeighbourRemeshes(generated []Coord) {
	if len(generated) == 0 {
		return
	}
	order := make(map[uint64]int, len(generated))
	for i, c := range generated {
		order[c.Key()] = i
	}
	for i, c := range generated {
		for _, n := range c.Neighbours() {
			if j, ok := order[n.Key()]; ok && j > i {
				continue
			}
			m.deferRemesh(n)
		}
	}
}

func (m *Manager) deferRemesh(c Coord) {
	k := c.Key()
	e, ok := m.entries[k]
	if !ok || e.State != StateReady {
		return
	}
	if _, dup := m.pendingSet[k]; dup {
		return
	}
	m.pendingSet[k] = struct{}{}
	m.pending = append(m.pending, c)
}

func (m *Manager) processPendingRemeshes(limit int, stats *FrameStats) int {
	done := 0
	for done < limit && len(m.pending) > 0 {
		c := m.pending[0]
		m.pending = m.pending[1:]
		k := c.Key()
		if _, ok := m.pendingSet[k]; !ok {
			continue
		}
		delete(m.pendingSet, k)
		e, ok := m.entries[k]
		if !ok || e.State != StateReady {
			continue
		}
		m.remesh(e, stats)
		done++
	}
	if len(m.pending) == 0 {
		m.pending = nil
	}
	return done
}

// unload removes every entry, in any state, beyond the unload distance.
func (m *Manager) unload(center Coord) int {
	limit := m.cfg.UnloadDistance()
	n := 0
	for _, e := range m.entries {
		if !within(e.Coord, center, limit) {
			m.remove(e)
			n++
		}
	}
	return n
}

// remove frees every GPU allocation of e, then drops the entry and the caches
// derived from it.
func (m *Manager) remove(e *Entry) {
	k := e.Coord.Key()
	m.releaseGeometry(e)
	delete(m.lights, k)
	delete(m.pendingSet, k)
	delete(m.entries, k)
	e.Chunk = nil
	for _, fn := range m.observers {
		fn(e.Coord, StateRemoved)
	}
}

// SetBlock edits a READY chunk at world block coords. The chunk is decompressed,
// remeshed at once, and border neighbours are queued for a deferred remesh.
// It returns false when the chunk is not READY.
func (m *Manager) SetBlock(x, y, z int, b volume.BlockType) bool {
	c := Coord{X: int32(floorDiv(x, volume.Width)), Z: int32(floorDiv(z, volume.Depth))}
	e, ok := m.entries[c.Key()]
	if !ok || e.State != StateReady || y < 0 || y >= volume.Height {
		return false
	}
	lx := x - int(c.X)*volume.Width
	lz := z - int(c.Z)*volume.Depth
	e.Chunk.SetBlock(lx, y, lz, b)

	var stats FrameStats
	m.remesh(e, &stats)
	m.refreshLights(e)

	nb := c.Neighbours()
	if lx == 0 {
		m.deferRemesh(nb[0])
	}
	if lx == volume.Width-1 {
		m.deferRemesh(nb[1])
	}
	if lz == 0 {
		m.deferRemesh(nb[2])
	}
	if lz == volume.Depth-1 {
		m.deferRemesh(nb[3])
	}
	return true
}

// Block reads a block at world coords from a READY chunk; anything else is air.
func (m *Manager) Block(x, y, z int) volume.BlockType {
	c := Coord{X: int32(floorDiv(x, volume.Width)), Z: int32(floorDiv(z, volume.Depth))}
	e, ok := m.entries[c.Key()]
	if !ok || e.State != StateReady {
		return volume.BlockAir
	}
	return e.Chunk.Block(x-int(c.X)*volume.Width, y, z-int(c.Z)*volume.Depth)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// PointLights returns the emissive-block lights nearest to pos, at most
// MaxPointLights of them.
func (m *Manager) PointLights(pos mgl32.Vec3) []core.PointLight {
	var all []core.PointLight
	for _, ls := range m.lights {
		all = append(all, ls...)
	}
	return core.NearestLights(all, pos, m.cfg.MaxPointLights)
}

// Close unloads every entry and releases both arenas.
func (m *Manager) Close() {
	for _, e := range m.entries {
		m.remove(e)
	}
	m.queue = nil
	m.pending = nil
	m.solid.Close()
	m.vegetation.Close()
}
