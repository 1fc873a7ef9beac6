package math

// Matrices use the column-vector convention (v' = M * v); translation lives
// in the last column. Constant-buffer writes transpose on the way out, so
// shaders see the transposed layout they expect.

func NewMat4Identity() Mat4 {
	m := Mat4{}
	m.Data[0] = 1
	m.Data[5] = 1
	m.Data[10] = 1
	m.Data[15] = 1
	return m
}

// Mul returns m * other.
func (m Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m.Data[row*4+k] * other.Data[k*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

func (m Mat4) Transpose() Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out.Data[col*4+row] = m.Data[row*4+col]
		}
	}
	return out
}

// MulVec4 returns m * v.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		X: m.Data[0]*v.X + m.Data[1]*v.Y + m.Data[2]*v.Z + m.Data[3]*v.W,
		Y: m.Data[4]*v.X + m.Data[5]*v.Y + m.Data[6]*v.Z + m.Data[7]*v.W,
		Z: m.Data[8]*v.X + m.Data[9]*v.Y + m.Data[10]*v.Z + m.Data[11]*v.W,
		W: m.Data[12]*v.X + m.Data[13]*v.Y + m.Data[14]*v.Z + m.Data[15]*v.W,
	}
}

func NewMat4Translation(position Vec3) Mat4 {
	m := NewMat4Identity()
	m.Data[3] = position.X
	m.Data[7] = position.Y
	m.Data[11] = position.Z
	return m
}

func NewMat4Scale(scale Vec3) Mat4 {
	m := NewMat4Identity()
	m.Data[0] = scale.X
	m.Data[5] = scale.Y
	m.Data[10] = scale.Z
	return m
}

func NewMat4RotationX(angleRad float32) Mat4 {
	m := NewMat4Identity()
	c := kcos(angleRad)
	s := ksin(angleRad)
	m.Data[5] = c
	m.Data[6] = -s
	m.Data[9] = s
	m.Data[10] = c
	return m
}

func NewMat4RotationY(angleRad float32) Mat4 {
	m := NewMat4Identity()
	c := kcos(angleRad)
	s := ksin(angleRad)
	m.Data[0] = c
	m.Data[2] = s
	m.Data[8] = -s
	m.Data[10] = c
	return m
}

func NewMat4RotationZ(angleRad float32) Mat4 {
	m := NewMat4Identity()
	c := kcos(angleRad)
	s := ksin(angleRad)
	m.Data[0] = c
	m.Data[1] = -s
	m.Data[4] = s
	m.Data[5] = c
	return m
}

// NewMat4Perspective builds a right-handed perspective projection with a
// [0,1] depth range.
func NewMat4Perspective(fovYRad, aspect, nearZ, farZ float32) Mat4 {
	f := 1.0 / ktan(fovYRad*0.5)
	m := Mat4{}
	m.Data[0] = f / aspect
	m.Data[5] = f
	m.Data[10] = farZ / (nearZ - farZ)
	m.Data[11] = (nearZ * farZ) / (nearZ - farZ)
	m.Data[14] = -1
	return m
}

// NewMat4LookAt builds a right-handed view matrix from an eye position
// looking at a target.
func NewMat4LookAt(eye, target, up Vec3) Mat4 {
	zAxis := eye.Sub(target).Normalize()
	xAxis := up.Cross(zAxis).Normalize()
	yAxis := zAxis.Cross(xAxis)

	m := NewMat4Identity()
	m.Data[0] = xAxis.X
	m.Data[1] = xAxis.Y
	m.Data[2] = xAxis.Z
	m.Data[3] = -xAxis.Dot(eye)
	m.Data[4] = yAxis.X
	m.Data[5] = yAxis.Y
	m.Data[6] = yAxis.Z
	m.Data[7] = -yAxis.Dot(eye)
	m.Data[8] = zAxis.X
	m.Data[9] = zAxis.Y
	m.Data[10] = zAxis.Z
	m.Data[11] = -zAxis.Dot(eye)
	return m
}
