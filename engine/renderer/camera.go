package renderer

import (
	"github.com/spaghettifunk/prisma/engine/math"
)

// Camera orbits the scene origin on spherical coordinates, the way the
// testbed's mouse/keyboard controls drive it.
type Camera struct {
	theta  float32
	phi    float32
	radius float32

	fovY   float32
	aspect float32
	nearZ  float32
	farZ   float32
}

func NewCamera() *Camera {
	return &Camera{
		theta:  1.5 * math.K_PI,
		phi:    math.K_QUARTER_PI,
		radius: 15.0,
		fovY:   math.K_QUARTER_PI,
		aspect: 1.0,
		nearZ:  1.0,
		farZ:   1000.0,
	}
}

// Orbit rotates the eye around the target by the given angle deltas. Phi is
// clamped away from the poles to keep the view matrix well defined.
func (c *Camera) Orbit(dTheta, dPhi float32) {
	c.theta += dTheta
	c.phi = math.Clamp(c.phi+dPhi, 0.1, math.K_PI-0.1)
}

// Zoom moves the eye along the view ray, clamped to a sane range.
func (c *Camera) Zoom(delta float32) {
	c.radius = math.Clamp(c.radius+delta, 3.0, 200.0)
}

func (c *Camera) SetAspect(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) Eye() math.Vec3 {
	return math.SphericalToCartesian(c.radius, c.theta, c.phi)
}

func (c *Camera) View() math.Mat4 {
	return math.NewMat4LookAt(c.Eye(), math.NewVec3Zero(), math.NewVec3(0, 1, 0))
}

func (c *Camera) Proj() math.Mat4 {
	return math.NewMat4Perspective(c.fovY, c.aspect, c.nearZ, c.farZ)
}

func (c *Camera) NearZ() float32 {
	return c.nearZ
}

func (c *Camera) FarZ() float32 {
	return c.farZ
}
