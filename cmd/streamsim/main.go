// Command streamsim drives the chunk streamer headless: a camera flies along +X
// over demo terrain while chunks load, mesh and unload under the frame budget.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gen"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/mesh"
	"github.com/gekko3d/voxstream/voxelrt/rt/snapshot"
	"github.com/gekko3d/voxstream/voxelrt/rt/stream"
	"github.com/go-gl/mathgl/mgl32"
)

const seaLevel = 40

func demoPipeline(seed int64) *gen.Pipeline {
	height := func(x, z int) int {
		fx, fz := float64(x), float64(z)
		h := 44 + 10*math.Sin(fx/23) + 7*math.Cos(fz/17) + 4*math.Sin((fx+fz)/9)
		return int(h)
	}
	return gen.NewPipeline().
		Set(gen.StageTerrain, gen.Heightmap{Height: height, SeaLevel: seaLevel}).
		Set(gen.StageOres, gen.OreVeins{Seed: seed, Permille: 30}).
		Set(gen.StageStructures, gen.Beacons{Seed: seed, Permille: 60}).
		Set(gen.StageVegetation, gen.Flowers{Seed: seed, Permille: 40}).
		Set(gen.StageWater, gen.SeaLevel{Level: seaLevel})
}

func main() {
	var (
		configPath = flag.String("config", "", "stream config yaml (optional)")
		frames     = flag.Int("frames", 600, "frames to simulate")
		speed      = flag.Float64("speed", 0.5, "camera speed in blocks per frame")
		seed       = flag.Int64("seed", 1, "world seed")
		debug      = flag.Bool("debug", false, "debug logging, same as -log_level=debug")
		logLevel   = flag.String("log_level", "info", "lowest level logged: debug, info, warn or error")
		dump       = flag.String("dump", "", "write a snapshot of loaded chunks to this path at exit")
		every      = flag.Int("stats_every", 120, "log profiler stats every N frames")
		useGPU     = flag.Bool("gpu", false, "upload into real GPU buffers on a headless wgpu device")
	)
	flag.Parse()

	log := core.NewDefaultLogger("streamsim", *debug)
	if !*debug {
		level, err := core.ParseLevel(*logLevel)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.SetLevel(level)
	}

	cfg := stream.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = stream.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load config:", err)
			os.Exit(2)
		}
	}

	var dev gpu.Device = gpu.NewHostDevice()
	if *useGPU {
		wdev, release, err := gpu.OpenHeadless(log.Named("gpu"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "gpu:", err)
			os.Exit(1)
		}
		defer release()
		dev = wdev
	}

	s, err := stream.NewStreamer(cfg, stream.Deps{
		Pipeline: demoPipeline(*seed),
		Mesher:   mesh.NewFaceMesher(),
		Device:   dev,
		Logger:   log,
		Clock:    core.SystemClock{},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "streamer:", err)
		os.Exit(1)
	}
	defer s.Close()

	cam := core.NewCameraState()
	cam.Yaw = math.Pi / 2
	cam.Pitch = -0.2

	var total stream.FrameStats
	start := time.Now()
	for f := 1; f <= *frames; f++ {
		cam.Position = cam.Position.Add(mgl32.Vec3{float32(*speed), 0, 0})
		st := s.Update(cam.Position, cam.ViewProjection())
		total.Generated += st.Generated
		total.LODGenerated += st.LODGenerated
		total.Unloaded += st.Unloaded
		total.Exhausted += st.Exhausted

		if *every > 0 && f%*every == 0 {
			log.Infof("frame %d at %v: %d draws, %d lod draws, %d lights\n%s",
				f, stream.ChunkCoordOf(cam.Position), len(s.GetDrawCalls()), len(s.GetLODDrawCalls()),
				len(s.GetPointLights(cam.Position)), s.Profiler().StatsString())
		}
	}
	log.Infof("%d frames in %v: generated %d, lod %d, unloaded %d, exhausted %d",
		*frames, time.Since(start).Round(time.Millisecond), total.Generated, total.LODGenerated, total.Unloaded, total.Exhausted)
	for _, a := range s.Arenas() {
		log.Infof("arena %s: %d/%d bytes used, %d allocations, largest free %d",
			a.Name(), a.UsedBytes(), a.Capacity(), a.LiveAllocations(), a.LargestFree())
	}

	if *dump != "" {
		snap := snapshot.Capture(s.Primary(), time.Now())
		if err := snapshot.Write(*dump, snap); err != nil {
			log.Errorf("write snapshot: %v", err)
			os.Exit(1)
		}
		log.Infof("wrote %d chunks to %s", snap.Header.Chunks, *dump)
	}
}
