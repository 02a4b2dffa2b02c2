package stream

import (
	"testing"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gen"
	"github.com/gekko3d/voxstream/voxelrt/rt/mesh"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RequiresCollaborators(t *testing.T) {
	_, err := NewManager(testConfig(), Deps{})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.TimeBudgetMs = 0
	deps, _ := testDeps(newFakeClock(), 0)
	_, err = NewManager(cfg, deps)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManager_TimeBudgetBoundsStartedWork(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.TimeBudgetMs = 5
	deps, _ := testDeps(clock, time.Millisecond)
	m := newTestManager(t, cfg, deps)

	for i := 0; i < 50; i++ {
		require.True(t, m.Enqueue(Coord{X: int32(i), Z: 100}))
	}
	assert.False(t, m.Enqueue(Coord{X: 0, Z: 100}))

	var stats FrameStats
	generated := m.processQueue(clock.Now().Add(cfg.TimeBudget()), &stats)

	assert.Len(t, generated, 5)
	assert.Equal(t, 5, stats.Generated)
	assert.Equal(t, 5, m.CountInState(StateReady))
	assert.Equal(t, 45, m.CountInState(StateQueued))
	assert.Equal(t, 45, m.QueueLen())
	for i := 0; i < 5; i++ {
		assert.True(t, m.IsReady(Coord{X: int32(i), Z: 100}))
	}
}

func TestManager_StartedChunkRunsToReadyPastDeadline(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.TimeBudgetMs = 1
	deps, _ := testDeps(clock, 10*time.Millisecond)
	m := newTestManager(t, cfg, deps)

	stats := m.Update(mgl32.Vec3{8, 64, 8}, noCulling)
	assert.Equal(t, 1, stats.Generated)
	assert.True(t, m.IsReady(Coord{}))
	assert.Equal(t, 4, m.QueueLen())
}

func TestManager_StatesOnlyMoveForward(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.RenderDistance = 2
	cfg.TimeBudgetMs = 3
	deps, _ := testDeps(clock, time.Millisecond)
	m := newTestManager(t, cfg, deps)

	seen := map[Coord][]State{}
	m.OnStateChange(func(c Coord, s State) {
		seen[c] = append(seen[c], s)
	})

	pos := mgl32.Vec3{8, 64, 8}
	for frame := 0; frame < 40; frame++ {
		if frame == 20 {
			pos = mgl32.Vec3{8 + 6*volume.Width, 64, 8}
		}
		m.Update(pos, noCulling)
	}

	require.NotEmpty(t, seen)
	for c, states := range seen {
		want := StateQueued
		for _, s := range states {
			if s == StateRemoved {
				want = StateQueued
				continue
			}
			require.Equal(t, want, s, "chunk %v went %v", c, states)
			want = s + 1
		}
	}
}

func TestManager_GeneratesAndCompresses(t *testing.T) {
	clock := newFakeClock()
	deps, _ := testDeps(clock, 0)
	m := newTestManager(t, testConfig(), deps)

	stats := m.Update(mgl32.Vec3{8, 64, 8}, noCulling)
	assert.Equal(t, 5, stats.Enqueued)
	assert.Equal(t, 5, stats.Generated)
	assert.Equal(t, 0, m.QueueLen())

	e, ok := m.Entry(Coord{})
	require.True(t, ok)
	assert.True(t, e.Chunk.IsCompressed())
	assert.True(t, e.Chunk.HasOccupancy())
	assert.True(t, e.HasGeometry())
	assert.Equal(t, volume.BlockGrass, e.Chunk.Block(3, flatHeight, 3))
	assert.Equal(t, volume.BlockBedrock, m.Block(-5, 0, 7))
	assert.Equal(t, volume.BlockAir, m.Block(500, 0, 500))

	st, ok := m.State(Coord{X: 1})
	assert.True(t, ok)
	assert.Equal(t, StateReady, st)
	_, ok = m.State(Coord{X: 1, Z: 1})
	assert.False(t, ok)
}

func TestManager_NeighbourRemeshIsDeferredAndCapped(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.TimeBudgetMs = 1
	deps, _ := testDeps(clock, time.Millisecond)
	m := newTestManager(t, cfg, deps)
	center := Coord{}

	stats := m.update(center, noCulling, clock.Now().Add(cfg.TimeBudget()))
	require.Equal(t, 1, stats.Generated)
	assert.Equal(t, 0, stats.Remeshed)

	// The second chunk borders the first, which is queued for a rebuild.
	stats = m.update(center, noCulling, clock.Now().Add(cfg.TimeBudget()))
	require.Equal(t, 1, stats.Generated)
	assert.Equal(t, 1, stats.Remeshed)

	// Finish loading, then force five pending rebuilds.
	m.update(center, noCulling, farDeadline(clock))
	require.Equal(t, 5, m.CountInState(StateReady))
	m.processPendingRemeshes(len(m.pending), &FrameStats{})
	for _, c := range []Coord{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		m.deferRemesh(c)
	}
	m.deferRemesh(Coord{})
	assert.Equal(t, 5, m.PendingRemeshes())

	stats = m.update(center, noCulling, farDeadline(clock))
	assert.Equal(t, cfg.MaxNeighborRebuilds, stats.Remeshed)
	assert.Equal(t, 3, m.PendingRemeshes())

	stats = m.update(center, noCulling, farDeadline(clock))
	assert.Equal(t, 2, stats.Remeshed)
	stats = m.update(center, noCulling, farDeadline(clock))
	assert.Equal(t, 1, stats.Remeshed)
	assert.Equal(t, 0, m.PendingRemeshes())
}

func TestManager_FirstLoadDropsSeamFaces(t *testing.T) {
	clock := newFakeClock()
	deps, _ := testDeps(clock, 0)
	m := newTestManager(t, testConfig(), deps)

	stats := m.update(Coord{}, noCulling, farDeadline(clock))
	require.Equal(t, 5, stats.Generated)
	assert.Equal(t, 1, stats.Remeshed)
	assert.Equal(t, 0, m.PendingRemeshes())

	drawn := map[Coord]uint32{}
	for _, dc := range m.DrawCalls() {
		drawn[dc.Coord] = dc.IndexCount
	}
	require.Len(t, drawn, 5)

	centre, _ := m.Entry(Coord{})
	isolated := mesh.NewFaceMesher().BuildMesh(centre.Chunk, mesh.Neighbors{})
	assert.Less(t, drawn[Coord{}], uint32(len(isolated.Solid.Indices)))

	// A forced rebuild of any chunk draws exactly what is already drawn.
	for c, n := range drawn {
		e, _ := m.Entry(c)
		m.remesh(e, &FrameStats{})
		assert.Equal(t, n, e.solid.IndexCount, "chunk %v", c)
	}
}

func TestManager_UnloadFreesEverything(t *testing.T) {
	clock := newFakeClock()
	deps, dev := testDeps(clock, 0)
	deps.Pipeline.Set(gen.StageWater, gen.SeaLevel{Level: flatHeight + 4})
	m := newTestManager(t, testConfig(), deps)

	var removed []Coord
	m.OnStateChange(func(c Coord, s State) {
		if s == StateRemoved {
			removed = append(removed, c)
		}
	})

	m.update(Coord{}, noCulling, farDeadline(clock))
	solid := m.SolidArena()
	require.Greater(t, solid.UsedBytes(), uint64(0))
	assert.Equal(t, 5, solid.LiveAllocations())
	assert.Equal(t, 2+5, dev.LiveBuffers())

	m.update(Coord{X: 40}, noCulling, farDeadline(clock))
	assert.Len(t, removed, 5)
	for _, c := range removed {
		_, ok := m.Entry(c)
		assert.False(t, ok)
	}
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, 5, solid.LiveAllocations())
	assert.Equal(t, solid.Capacity(), solid.UsedBytes()+solid.FreeBytes())

	m.Close()
	assert.Equal(t, uint64(0), solid.UsedBytes())
	assert.Equal(t, 0, dev.LiveBuffers())
}

func TestManager_UnloadKeepsChunksInsideMargin(t *testing.T) {
	clock := newFakeClock()
	deps, _ := testDeps(clock, 0)
	m := newTestManager(t, testConfig(), deps)

	m.update(Coord{}, noCulling, farDeadline(clock))
	// Render distance 1 unloads past 3; (-1,0) is now 3 away.
	m.update(Coord{X: 2}, noCulling, farDeadline(clock))
	assert.True(t, m.IsReady(Coord{X: -1}))

	m.update(Coord{X: 3}, noCulling, farDeadline(clock))
	assert.False(t, m.IsReady(Coord{X: -1}))
}

func TestManager_StaleQueueEntriesAreDiscarded(t *testing.T) {
	clock := newFakeClock()
	deps, _ := testDeps(clock, 0)
	m := newTestManager(t, testConfig(), deps)

	require.True(t, m.Enqueue(Coord{X: 50}))
	// Nothing starts; the far entry is unloaded but stays in the queue.
	stats := m.update(Coord{}, noCulling, clock.Now())
	assert.Equal(t, 0, stats.Generated)
	assert.Equal(t, 1, stats.Unloaded)
	assert.Equal(t, 6, m.QueueLen())

	stats = m.update(Coord{}, noCulling, farDeadline(clock))
	assert.Equal(t, 1, stats.Stale)
	assert.Equal(t, 5, stats.Generated)
	_, ok := m.Entry(Coord{X: 50})
	assert.False(t, ok)
}

func TestManager_ExhaustionIsNotFatal(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.SolidArenaBytes = 64
	deps, _ := testDeps(clock, 0)
	log := &recordingLogger{}
	deps.Logger = log
	m := newTestManager(t, cfg, deps)

	stats := m.update(Coord{}, noCulling, farDeadline(clock))
	assert.Equal(t, 5, stats.Generated)
	// Five builds plus the centre rebuilt once its neighbours exist.
	assert.Equal(t, 6, stats.Exhausted)
	assert.Equal(t, 5, m.CountInState(StateReady))
	assert.Empty(t, m.DrawCalls())
	assert.Len(t, log.warnings, 1)
	assert.Equal(t, uint64(0), m.SolidArena().UsedBytes())
}

func TestManager_VisibleChunksLoadFirst(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.TimeBudgetMs = 1
	deps, _ := testDeps(clock, time.Millisecond)
	m := newTestManager(t, cfg, deps)

	// Only x >= 20 is visible: (1,0) beats the nearer (0,0).
	var f core.Frustum
	f[core.PlaneLeft] = mgl32.Vec4{1, 0, 0, -20}
	m.update(Coord{}, f, clock.Now().Add(cfg.TimeBudget()))
	assert.True(t, m.IsReady(Coord{X: 1}))
	assert.False(t, m.IsReady(Coord{}))
}

func TestManager_DrawCalls(t *testing.T) {
	clock := newFakeClock()
	deps, _ := testDeps(clock, 0)
	deps.Pipeline.Set(gen.StageWater, gen.SeaLevel{Level: flatHeight + 4})
	m := newTestManager(t, testConfig(), deps)
	m.update(Coord{}, noCulling, farDeadline(clock))

	calls := m.DrawCalls()
	require.Len(t, calls, 5)
	assert.Equal(t, Coord{}, calls[0].Coord)
	seen := map[uint32]bool{}
	for _, dc := range calls {
		assert.Equal(t, m.SolidArena().ID(), dc.Arena)
		assert.Greater(t, dc.IndexCount, uint32(0))
		assert.False(t, seen[dc.FirstIndex])
		seen[dc.FirstIndex] = true
	}

	water := m.WaterDrawCalls()
	require.Len(t, water, 5)
	arenas := map[string]bool{}
	for _, dc := range water {
		arenas[string(dc.Arena)] = true
		assert.Equal(t, int32(0), dc.BaseVertex)
	}
	assert.Len(t, arenas, 5)
	assert.Empty(t, m.VegetationDrawCalls())

	// Cull everything with x > 8.
	var f core.Frustum
	f[core.PlaneRight] = mgl32.Vec4{-1, 0, 0, 8}
	m.update(Coord{}, f, farDeadline(clock))
	for _, dc := range m.DrawCalls() {
		assert.NotEqual(t, int32(1), dc.Coord.X)
	}
	assert.Len(t, m.DrawCalls(), 4)
}

func TestManager_SetBlockRemeshesAndTracksLights(t *testing.T) {
	clock := newFakeClock()
	deps, _ := testDeps(clock, 0)
	m := newTestManager(t, testConfig(), deps)
	m.update(Coord{}, noCulling, farDeadline(clock))
	require.Empty(t, m.PointLights(mgl32.Vec3{}))

	before := m.DrawCalls()[0].IndexCount
	require.True(t, m.SetBlock(3, flatHeight+1, 3, volume.BlockGlowstone))

	e, _ := m.Entry(Coord{})
	assert.False(t, e.Chunk.IsCompressed())
	assert.Equal(t, volume.BlockGlowstone, m.Block(3, flatHeight+1, 3))
	assert.Greater(t, m.DrawCalls()[0].IndexCount, before)

	lights := m.PointLights(mgl32.Vec3{})
	require.Len(t, lights, 1)
	assert.Equal(t, mgl32.Vec3{3.5, flatHeight + 1.5, 3.5}, lights[0].Position)

	// A border edit queues the neighbour across the border.
	require.True(t, m.SetBlock(0, flatHeight+1, 5, volume.BlockStone))
	assert.Equal(t, 1, m.PendingRemeshes())

	assert.False(t, m.SetBlock(500, 5, 500, volume.BlockStone))
	assert.False(t, m.SetBlock(3, volume.Height, 3, volume.BlockStone))

	// Unloading drops the light cache of the chunk.
	m.update(Coord{X: 40}, noCulling, clock.Now())
	assert.Empty(t, m.PointLights(mgl32.Vec3{}))
}

func TestManager_PointLightsAreBounded(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxPointLights = 3
	deps, _ := testDeps(clock, 0)
	m := newTestManager(t, cfg, deps)
	m.update(Coord{}, noCulling, farDeadline(clock))

	for x := 0; x < 8; x++ {
		require.True(t, m.SetBlock(x, flatHeight+1, 8, volume.BlockTorch))
	}
	lights := m.PointLights(mgl32.Vec3{0, flatHeight, 8})
	require.Len(t, lights, 3)
	assert.Equal(t, float32(0.5), lights[0].Position.X())
	assert.Equal(t, float32(2.5), lights[2].Position.X())
}
