package math

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireVec4InDelta(t *testing.T, want, got Vec4) {
	t.Helper()
	require.InDelta(t, want.X, got.X, 1e-5)
	require.InDelta(t, want.Y, got.Y, 1e-5)
	require.InDelta(t, want.Z, got.Z, 1e-5)
	require.InDelta(t, want.W, got.W, 1e-5)
}

func TestMat4Identity(t *testing.T) {
	v := NewVec4(1, -2, 3, 1)
	requireVec4InDelta(t, v, NewMat4Identity().MulVec4(v))

	m := NewMat4Translation(NewVec3(4, 5, 6))
	require.Equal(t, m, m.Mul(NewMat4Identity()))
	require.Equal(t, m, NewMat4Identity().Mul(m))
}

func TestMat4Translation(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	requireVec4InDelta(t, NewVec4(1, 2, 3, 1), m.MulVec4(NewVec4(0, 0, 0, 1)))
	// Directions (w = 0) are unaffected.
	requireVec4InDelta(t, NewVec4(0, 1, 0, 0), m.MulVec4(NewVec4(0, 1, 0, 0)))
}

func TestMat4RotationY(t *testing.T) {
	m := NewMat4RotationY(K_HALF_PI)
	requireVec4InDelta(t, NewVec4(0, 0, -1, 1), m.MulVec4(NewVec4(1, 0, 0, 1)))
	requireVec4InDelta(t, NewVec4(0, 1, 0, 1), m.MulVec4(NewVec4(0, 1, 0, 1)))

	// A full turn is the identity.
	full := NewMat4RotationY(K_PI_2)
	requireVec4InDelta(t, NewVec4(1, 0, 2, 1), full.MulVec4(NewVec4(1, 0, 2, 1)))
}

func TestMat4MulComposesRightToLeft(t *testing.T) {
	translate := NewMat4Translation(NewVec3(5, 0, 0))
	rotate := NewMat4RotationY(K_HALF_PI)

	// translate * rotate rotates first, then translates.
	composed := translate.Mul(rotate)
	requireVec4InDelta(t, NewVec4(5, 0, -1, 1), composed.MulVec4(NewVec4(1, 0, 0, 1)))
}

func TestMat4Transpose(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	tr := m.Transpose()
	require.Equal(t, m.Data[3], tr.Data[12])
	require.Equal(t, m.Data[7], tr.Data[13])
	require.Equal(t, m.Data[11], tr.Data[14])
	require.Equal(t, m, tr.Transpose())
}

func TestMat4PerspectiveDepthRange(t *testing.T) {
	near, far := float32(1.0), float32(100.0)
	m := NewMat4Perspective(K_QUARTER_PI, 16.0/9.0, near, far)

	// Near plane maps to depth 0 after the perspective divide.
	p := m.MulVec4(NewVec4(0, 0, -near, 1))
	require.InDelta(t, 0.0, p.Z/p.W, 1e-5)
	require.InDelta(t, near, p.W, 1e-5)

	// Far plane maps to depth 1.
	p = m.MulVec4(NewVec4(0, 0, -far, 1))
	require.InDelta(t, 1.0, p.Z/p.W, 1e-4)
	require.InDelta(t, far, p.W, 1e-4)
}

func TestMat4LookAt(t *testing.T) {
	eye := NewVec3(0, 0, 10)
	m := NewMat4LookAt(eye, NewVec3Zero(), NewVec3(0, 1, 0))

	// The eye lands at the view-space origin; the target sits down -Z.
	requireVec4InDelta(t, NewVec4(0, 0, 0, 1), m.MulVec4(NewVec4(eye.X, eye.Y, eye.Z, 1)))
	requireVec4InDelta(t, NewVec4(0, 0, -10, 1), m.MulVec4(NewVec4(0, 0, 0, 1)))
}

func TestClamp(t *testing.T) {
	require.Equal(t, float32(0.1), Clamp(-3, 0.1, 1))
	require.Equal(t, float32(1.0), Clamp(3, 0.1, 1))
	require.Equal(t, float32(0.5), Clamp(0.5, 0.1, 1))
}

func TestSphericalToCartesian(t *testing.T) {
	// phi = pi/2 puts the point on the equator.
	p := SphericalToCartesian(2, 0, K_HALF_PI)
	require.InDelta(t, 0.0, p.Y, 1e-5)
	require.InDelta(t, 2.0, p.Length(), 1e-5)

	// phi near 0 approaches the +Y pole.
	p = SphericalToCartesian(2, 0.7, 0)
	require.InDelta(t, 2.0, p.Y, 1e-5)
}

func TestRandomFloatRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := RandomFloatRange(0.2, 0.8)
		require.GreaterOrEqual(t, v, float32(0.2))
		require.LessOrEqual(t, v, float32(0.8))
	}
}
