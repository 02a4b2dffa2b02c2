package stream

import (
	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Streamer drives the full-detail registry and the LOD ring from one camera.
// Full-detail work always runs first; the LOD ring only loads once the primary
// queue has drained.
type Streamer struct {
	cfg      Config
	log      core.Logger
	clock    core.Clock
	primary  *Manager
	lod      *LODManager
	profiler *Profiler

	frame   core.FrameTime
	frustum core.Frustum
}

func NewStreamer(cfg Config, deps Deps) (*Streamer, error) {
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	primary, err := NewManager(cfg, deps)
	if err != nil {
		return nil, err
	}
	s := &Streamer{
		cfg:      cfg,
		log:      deps.Logger,
		clock:    deps.Clock,
		primary:  primary,
		profiler: NewProfiler(deps.Clock),
	}
	if cfg.LODDistance > 0 {
		s.lod, err = NewLODManager(cfg, deps, primary)
		if err != nil {
			primary.Close()
			return nil, err
		}
		primary.OnStateChange(func(c Coord, st State) {
			if st == StateReady {
				s.lod.Supersede(c)
			}
		})
	}
	s.log.Infof("streamer: render distance %d, lod distance %d, budget %v",
		cfg.RenderDistance, cfg.LODDistance, cfg.TimeBudget())
	return s, nil
}

func (s *Streamer) Primary() *Manager     { return s.primary }
func (s *Streamer) LOD() *LODManager      { return s.lod }
func (s *Streamer) Profiler() *Profiler   { return s.profiler }
func (s *Streamer) Frame() core.FrameTime { return s.frame }

// Update runs one frame. The frustum is extracted once here and shared by both
// registries, and both spend the same deadline.
func (s *Streamer) Update(camPos mgl32.Vec3, viewProj mgl32.Mat4) FrameStats {
	now := s.clock.Now()
	s.frame.Advance(now)
	deadline := now.Add(s.cfg.TimeBudget())
	s.frustum = core.ExtractFrustum(viewProj)
	center := ChunkCoordOf(camPos)

	s.profiler.BeginScope("primary")
	stats := s.primary.update(center, s.frustum, deadline)
	s.profiler.EndScope("primary")

	if s.lod != nil {
		s.profiler.BeginScope("lod")
		stats.add(s.lod.Update(center, s.frustum, deadline, s.primary.QueueLen() == 0))
		s.profiler.EndScope("lod")
	}

	s.profiler.SetCount("ready", s.primary.CountInState(StateReady))
	s.profiler.SetCount("queued", s.primary.QueueLen())
	s.profiler.SetCount("exhausted", stats.Exhausted)
	if s.lod != nil {
		s.profiler.SetCount("lod_ready", s.lod.ReadyCount())
	}
	if stats.Exhausted > 0 && s.log.DebugEnabled() {
		s.log.Debugf("frame %d: %d uploads did not fit", s.frame.Frame, stats.Exhausted)
	}
	return stats
}

func (s *Streamer) GetDrawCalls() []DrawCall           { return s.primary.DrawCalls() }
func (s *Streamer) GetVegetationDrawCalls() []DrawCall { return s.primary.VegetationDrawCalls() }
func (s *Streamer) GetWaterDrawCalls() []DrawCall      { return s.primary.WaterDrawCalls() }

// GetLODDrawCalls is empty when the LOD ring is disabled.
func (s *Streamer) GetLODDrawCalls() []DrawCall {
	if s.lod == nil {
		return nil
	}
	return s.lod.DrawCalls()
}

func (s *Streamer) GetPointLights(camPos mgl32.Vec3) []core.PointLight {
	return s.primary.PointLights(camPos)
}

// Arenas lists every shared arena, for stats and the renderer's bind step.
func (s *Streamer) Arenas() []*gpu.MegaBuffer {
	a := []*gpu.MegaBuffer{s.primary.SolidArena(), s.primary.VegetationArena()}
	if s.lod != nil {
		a = append(a, s.lod.Arena())
	}
	return a
}

func (s *Streamer) Close() {
	if s.lod != nil {
		s.lod.Close()
	}
	s.primary.Close()
}
