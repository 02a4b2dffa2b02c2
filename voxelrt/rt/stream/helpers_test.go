package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gen"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/mesh"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordingLogger keeps warnings and errors for assertions.
type recordingLogger struct {
	warnings []string
	errors   []string
}

func (l *recordingLogger) DebugEnabled() bool    { return false }
func (l *recordingLogger) SetDebug(bool)         {}
func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(string, ...any)  {}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}
func (l *recordingLogger) Errorf(format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

const flatHeight = 10

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RenderDistance = 1
	cfg.LODDistance = 0
	cfg.TimeBudgetMs = 1000
	cfg.SolidArenaBytes = 32 << 20
	cfg.VegetationArenaBytes = 4 << 20
	cfg.LODArenaBytes = 8 << 20
	return cfg
}

// testDeps builds flat terrain. Each terrain run advances clock by cost.
func testDeps(clock *fakeClock, cost time.Duration) (Deps, *gpu.HostDevice) {
	dev := gpu.NewHostDevice()
	flat := gen.Heightmap{Height: func(int, int) int { return flatHeight }}
	p := gen.NewPipeline().Set(gen.StageTerrain, gen.GeneratorFunc(func(c *volume.Chunk) {
		clock.Advance(cost)
		flat.Generate(c)
	}))
	return Deps{
		Pipeline: p,
		Mesher:   mesh.NewFaceMesher(),
		Device:   dev,
		Clock:    clock,
	}, dev
}

func newTestManager(t *testing.T, cfg Config, deps Deps) *Manager {
	t.Helper()
	m, err := NewManager(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// noCulling accepts every box.
var noCulling core.Frustum

func farDeadline(clock *fakeClock) time.Time { return clock.Now().Add(time.Hour) }
