package core

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// PointLight is a light derived from an emissive block.
type PointLight struct {
	Position  mgl32.Vec3
	Color     [3]float32 // RGB
	Intensity float32
	Range     float32
}

// GPU returns the std140 layout used by the lighting pass:
// position.xyz + range, color.rgb + intensity.
func (l PointLight) GPU() [8]float32 {
	return [8]float32{
		l.Position[0], l.Position[1], l.Position[2], l.Range,
		l.Color[0], l.Color[1], l.Color[2], l.Intensity,
	}
}

// NearestLights sorts lights by distance to pos and keeps at most max of them.
// The input slice is reordered in place.
func NearestLights(lights []PointLight, pos mgl32.Vec3, max int) []PointLight {
	sort.SliceStable(lights, func(i, j int) bool {
		di := lights[i].Position.Sub(pos).LenSqr()
		dj := lights[j].Position.Sub(pos).LenSqr()
		return di < dj
	})
	if max >= 0 && len(lights) > max {
		lights = lights[:max]
	}
	return lights
}
