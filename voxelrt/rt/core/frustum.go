package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane indices inside a Frustum.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum holds six planes in Ax + By + Cz + D = 0 form with normals pointing inside.
// The zero Frustum accepts every box.
type Frustum [6]mgl32.Vec4

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Planes come out in order: Left, Right, Bottom, Top, Near, Far.
func ExtractFrustum(vp mgl32.Mat4) Frustum {
	var f Frustum

	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	f[PlaneLeft] = r3.Add(r0)
	f[PlaneRight] = r3.Sub(r0)
	f[PlaneBottom] = r3.Add(r1)
	f[PlaneTop] = r3.Sub(r1)
	// OpenGL-style clip depth -1..1
	f[PlaneNear] = r3.Add(r2)
	f[PlaneFar] = r3.Sub(r2)

	for i := range f {
		p := f[i]
		length := float32(math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])))
		if length > 0 {
			f[i] = p.Mul(1.0 / length)
		}
	}
	return f
}

// IntersectsAABB reports whether any part of the box may be inside the frustum.
// For each plane the corner with the highest signed distance is tested; if even
// that corner is behind a plane the whole box is outside.
func (f Frustum) IntersectsAABB(box AABB) bool {
	for i := 0; i < 6; i++ {
		plane := f[i]

		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = box.Max[axis]
			} else {
				p[axis] = box.Min[axis]
			}
		}

		dist := plane[0]*p[0] + plane[1]*p[1] + plane[2]*p[2] + plane[3]
		if dist < 0 {
			return false
		}
	}
	return true
}

// AABBInFrustum is the array form of Frustum.IntersectsAABB.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	f := Frustum(planes)
	return f.IntersectsAABB(AABB{Min: aabb[0], Max: aabb[1]})
}
