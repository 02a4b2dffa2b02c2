// Package gen runs content generators over a chunk in a fixed order.
// The generators themselves are supplied by the caller.
package gen

import "github.com/gekko3d/voxstream/voxelrt/rt/volume"

// Stage is one pass of the generation pipeline. Later stages rely on earlier
// ones: ores only replace stone placed by terrain, caves must run before
// structures so they do not carve through them.
type Stage int

const (
	StageTerrain Stage = iota
	StageOres
	StageCaves
	StageStructures
	StageTrees
	StageVegetation
	StageWater

	stageCount
)

var stageNames = [stageCount]string{
	"terrain", "ores", "caves", "structures", "trees", "vegetation", "water",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return "unknown"
	}
	return stageNames[s]
}

// Stages lists every stage in run order.
func Stages() []Stage {
	out := make([]Stage, stageCount)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

// Mode selects which stages run.
type Mode int

const (
	// ModeFull runs every stage.
	ModeFull Mode = iota
	// ModeLOD skips vegetation and water, which are not visible at LOD distance.
	ModeLOD
)

func (m Mode) includes(s Stage) bool {
	if m == ModeLOD {
		return s != StageVegetation && s != StageWater
	}
	return true
}

// Generator mutates a chunk's block grid in place.
type Generator interface {
	Generate(c *volume.Chunk)
}

type GeneratorFunc func(c *volume.Chunk)

func (f GeneratorFunc) Generate(c *volume.Chunk) { f(c) }

// Pipeline holds at most one generator per stage.
type Pipeline struct {
	stages [stageCount]Generator
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Set installs g for stage s, replacing any previous one. A nil g clears it.
func (p *Pipeline) Set(s Stage, g Generator) *Pipeline {
	if s >= 0 && s < stageCount {
		p.stages[s] = g
	}
	return p
}

// Has reports whether stage s has a generator.
func (p *Pipeline) Has(s Stage) bool {
	return s >= 0 && s < stageCount && p.stages[s] != nil
}

// Run executes the stages selected by mode in order. Empty stages are skipped.
func (p *Pipeline) Run(c *volume.Chunk, mode Mode) {
	for s := Stage(0); s < stageCount; s++ {
		g := p.stages[s]
		if g == nil || !mode.includes(s) {
			continue
		}
		g.Generate(c)
	}
}
