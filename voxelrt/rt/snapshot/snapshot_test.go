package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/voxstream/voxelrt/rt/core"
	"github.com/gekko3d/voxstream/voxelrt/rt/gen"
	"github.com/gekko3d/voxstream/voxelrt/rt/gpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/mesh"
	"github.com/gekko3d/voxstream/voxelrt/rt/stream"
	"github.com/gekko3d/voxstream/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedManager(t *testing.T) *stream.Manager {
	t.Helper()
	cfg := stream.DefaultConfig()
	cfg.RenderDistance = 1
	cfg.LODDistance = 0
	cfg.TimeBudgetMs = 60_000
	cfg.SolidArenaBytes = 16 << 20
	cfg.VegetationArenaBytes = 1 << 20

	p := gen.NewPipeline().
		Set(gen.StageTerrain, gen.Heightmap{Height: func(x, z int) int { return 8 + (x+z)&3 }}).
		Set(gen.StageOres, gen.OreVeins{Seed: 7, Permille: 200})
	m, err := stream.NewManager(cfg, stream.Deps{
		Pipeline: p,
		Mesher:   mesh.NewFaceMesher(),
		Device:   gpu.NewHostDevice(),
		Logger:   core.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	m.Update(mgl32.Vec3{8, 64, 8}, core.Frustum{})
	require.Equal(t, 5, m.CountInState(stream.StateReady))
	return m
}

func TestSnapshot_WriteRead(t *testing.T) {
	m := loadedManager(t)
	require.True(t, m.SetBlock(2, 20, 2, volume.BlockGlowstone))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := Capture(m, now)
	require.Len(t, snap.Chunks, 5)
	assert.Equal(t, int32(-1), snap.Chunks[0].CX)

	path := filepath.Join(t.TempDir(), "dumps", "region.snap")
	require.NoError(t, Write(path, snap))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, Header{Version: Version, Created: now, Chunks: 5}, h)

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got.Chunks, 5)

	for _, rec := range got.Chunks {
		c, err := rec.Chunk()
		require.NoError(t, err)
		assert.True(t, c.IsCompressed())
		assert.True(t, c.HasOccupancy())

		orig, ok := m.Entry(stream.Coord{X: rec.CX, Z: rec.CZ})
		require.True(t, ok)
		assert.Equal(t, orig.Chunk.Blocks(), c.Blocks(), "chunk (%d,%d)", rec.CX, rec.CZ)
	}

	c, err := got.Chunks[2].Chunk()
	require.NoError(t, err)
	assert.Equal(t, volume.BlockGlowstone, c.Block(2, 20, 2))
}

func TestSnapshot_RejectsCorruptRecords(t *testing.T) {
	_, err := ChunkRecord{CX: 1}.Chunk()
	assert.ErrorIs(t, err, ErrCorrupt)

	comp := volume.Compress(make([]volume.BlockType, volume.CellCount))
	comp.MixedMask[0] = 1
	_, err = ChunkRecord{Data: comp}.Chunk()
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, volume.ErrCorruptCompressed)

	// Two payload runs behind one mixed bit.
	comp.Payload = make([]volume.BlockType, 2*volume.SubBlockCells)
	_, err = ChunkRecord{Data: comp}.Chunk()
	assert.ErrorIs(t, err, ErrCorrupt)

	comp.Payload = comp.Payload[:volume.SubBlockCells]
	c, err := ChunkRecord{Data: comp}.Chunk()
	require.NoError(t, err)
	assert.Equal(t, volume.BlockAir, c.Block(0, 0, 0))
}

func TestSnapshot_ReadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(dir, "junk")
	require.NoError(t, os.WriteFile(junk, []byte("not zstd"), 0o644))
	_, err = Read(junk)
	assert.Error(t, err)
}
