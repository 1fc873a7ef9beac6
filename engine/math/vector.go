package math

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

func (v Vec3) Length() float32 {
	return ksqrt(v.Dot(v))
}

func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l < K_FLOAT_EPSILON {
		return Vec3{}
	}
	return v.Scale(1.0 / l)
}

// SphericalToCartesian converts orbital coordinates (radius, polar angle phi
// from the +Y axis, azimuthal angle theta around Y) into a cartesian position.
func SphericalToCartesian(radius, theta, phi float32) Vec3 {
	return Vec3{
		X: radius * ksin(phi) * kcos(theta),
		Y: radius * kcos(phi),
		Z: radius * ksin(phi) * ksin(theta),
	}
}
