package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a Y-up fly camera. Yaw 0 looks down -Z.
type CameraState struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32

	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position: mgl32.Vec3{8, 96, 8},
		FovY:     mgl32.DegToRad(70),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1024,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	cp := math.Cos(float64(c.Pitch))
	return mgl32.Vec3{
		float32(cp * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-cp * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns projection * view.
func (c *CameraState) ViewProjection() mgl32.Mat4 {
	return c.GetProjectionMatrix().Mul4(c.GetViewMatrix())
}
