package geometry

import (
	"github.com/spaghettifunk/prisma/engine/math"
)

// AddBox appends an axis-aligned box centered at the origin.
func (b *Builder) AddBox(width, height, depth float32, colour math.Vec4) Handle {
	w := width * 0.5
	h := height * 0.5
	d := depth * 0.5

	type face struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}
	faces := []face{
		// +Z
		{math.NewVec3(0, 0, 1), [4]math.Vec3{{X: -w, Y: -h, Z: d}, {X: w, Y: -h, Z: d}, {X: w, Y: h, Z: d}, {X: -w, Y: h, Z: d}}},
		// -Z
		{math.NewVec3(0, 0, -1), [4]math.Vec3{{X: w, Y: -h, Z: -d}, {X: -w, Y: -h, Z: -d}, {X: -w, Y: h, Z: -d}, {X: w, Y: h, Z: -d}}},
		// +X
		{math.NewVec3(1, 0, 0), [4]math.Vec3{{X: w, Y: -h, Z: d}, {X: w, Y: -h, Z: -d}, {X: w, Y: h, Z: -d}, {X: w, Y: h, Z: d}}},
		// -X
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{{X: -w, Y: -h, Z: -d}, {X: -w, Y: -h, Z: d}, {X: -w, Y: h, Z: d}, {X: -w, Y: h, Z: -d}}},
		// +Y
		{math.NewVec3(0, 1, 0), [4]math.Vec3{{X: -w, Y: h, Z: d}, {X: w, Y: h, Z: d}, {X: w, Y: h, Z: -d}, {X: -w, Y: h, Z: -d}}},
		// -Y
		{math.NewVec3(0, -1, 0), [4]math.Vec3{{X: -w, Y: -h, Z: -d}, {X: w, Y: -h, Z: -d}, {X: w, Y: -h, Z: d}, {X: -w, Y: -h, Z: d}}},
	}

	vertices := make([]math.Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for fi, f := range faces {
		base := uint32(fi * 4)
		for _, corner := range f.corners {
			vertices = append(vertices, math.Vertex3D{
				Position: corner,
				Normal:   f.normal,
				Colour:   colour,
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return b.add(vertices, indices)
}

// AddGrid appends a flat grid in the XZ plane centered at the origin, with m
// vertices along X and n along Z.
func (b *Builder) AddGrid(width, depth float32, m, n uint32, colour math.Vec4) Handle {
	if m < 2 {
		m = 2
	}
	if n < 2 {
		n = 2
	}
	halfWidth := width * 0.5
	halfDepth := depth * 0.5
	dx := width / float32(m-1)
	dz := depth / float32(n-1)

	vertices := make([]math.Vertex3D, 0, m*n)
	for i := uint32(0); i < n; i++ {
		z := halfDepth - float32(i)*dz
		for j := uint32(0); j < m; j++ {
			x := -halfWidth + float32(j)*dx
			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3(x, 0, z),
				Normal:   math.NewVec3(0, 1, 0),
				Colour:   colour,
			})
		}
	}

	indices := make([]uint32, 0, (m-1)*(n-1)*6)
	for i := uint32(0); i < n-1; i++ {
		for j := uint32(0); j < m-1; j++ {
			a := i*m + j
			indices = append(indices,
				a, a+1, a+m+1,
				a, a+m+1, a+m)
		}
	}
	return b.add(vertices, indices)
}

// AddSphere appends a UV sphere built from slice/stack rings with pole caps.
func (b *Builder) AddSphere(radius float32, sliceCount, stackCount uint32, colour math.Vec4) Handle {
	if sliceCount < 3 {
		sliceCount = 3
	}
	if stackCount < 2 {
		stackCount = 2
	}

	vertices := []math.Vertex3D{{
		Position: math.NewVec3(0, radius, 0),
		Normal:   math.NewVec3(0, 1, 0),
		Colour:   colour,
	}}

	phiStep := math.K_PI / float32(stackCount)
	thetaStep := math.K_PI_2 / float32(sliceCount)
	for i := uint32(1); i < stackCount; i++ {
		phi := float32(i) * phiStep
		for j := uint32(0); j <= sliceCount; j++ {
			theta := float32(j) * thetaStep
			pos := math.NewVec3(
				radius*math.Sin(phi)*math.Cos(theta),
				radius*math.Cos(phi),
				radius*math.Sin(phi)*math.Sin(theta),
			)
			vertices = append(vertices, math.Vertex3D{
				Position: pos,
				Normal:   pos.Normalize(),
				Colour:   colour,
			})
		}
	}
	vertices = append(vertices, math.Vertex3D{
		Position: math.NewVec3(0, -radius, 0),
		Normal:   math.NewVec3(0, -1, 0),
		Colour:   colour,
	})

	indices := make([]uint32, 0)
	// Top cap.
	for j := uint32(1); j <= sliceCount; j++ {
		indices = append(indices, 0, j+1, j)
	}
	// Interior stacks.
	ringVertexCount := sliceCount + 1
	base := uint32(1)
	for i := uint32(0); i < stackCount-2; i++ {
		for j := uint32(0); j < sliceCount; j++ {
			indices = append(indices,
				base+i*ringVertexCount+j,
				base+i*ringVertexCount+j+1,
				base+(i+1)*ringVertexCount+j,
				base+(i+1)*ringVertexCount+j,
				base+i*ringVertexCount+j+1,
				base+(i+1)*ringVertexCount+j+1)
		}
	}
	// Bottom cap.
	southPole := uint32(len(vertices)) - 1
	lastRing := southPole - ringVertexCount
	for j := uint32(0); j < sliceCount; j++ {
		indices = append(indices, southPole, lastRing+j, lastRing+j+1)
	}
	return b.add(vertices, indices)
}

// AddCylinder appends an open-angle cylinder along Y with flat end caps.
func (b *Builder) AddCylinder(bottomRadius, topRadius, height float32, sliceCount, stackCount uint32, colour math.Vec4) Handle {
	if sliceCount < 3 {
		sliceCount = 3
	}
	if stackCount < 1 {
		stackCount = 1
	}

	stackHeight := height / float32(stackCount)
	radiusStep := (topRadius - bottomRadius) / float32(stackCount)
	ringCount := stackCount + 1

	vertices := make([]math.Vertex3D, 0)
	for i := uint32(0); i < ringCount; i++ {
		y := -0.5*height + float32(i)*stackHeight
		r := bottomRadius + float32(i)*radiusStep
		dTheta := math.K_PI_2 / float32(sliceCount)
		for j := uint32(0); j <= sliceCount; j++ {
			c := math.Cos(float32(j) * dTheta)
			s := math.Sin(float32(j) * dTheta)
			vertices = append(vertices, math.Vertex3D{
				Position: math.NewVec3(r*c, y, r*s),
				Normal:   math.NewVec3(c, 0, s),
				Colour:   colour,
			})
		}
	}

	indices := make([]uint32, 0)
	ringVertexCount := sliceCount + 1
	for i := uint32(0); i < stackCount; i++ {
		for j := uint32(0); j < sliceCount; j++ {
			indices = append(indices,
				i*ringVertexCount+j,
				(i+1)*ringVertexCount+j,
				(i+1)*ringVertexCount+j+1,
				i*ringVertexCount+j,
				(i+1)*ringVertexCount+j+1,
				i*ringVertexCount+j+1)
		}
	}

	// Top cap.
	topBase := uint32(len(vertices))
	yTop := 0.5 * height
	dTheta := math.K_PI_2 / float32(sliceCount)
	for j := uint32(0); j <= sliceCount; j++ {
		x := topRadius * math.Cos(float32(j)*dTheta)
		z := topRadius * math.Sin(float32(j)*dTheta)
		vertices = append(vertices, math.Vertex3D{
			Position: math.NewVec3(x, yTop, z),
			Normal:   math.NewVec3(0, 1, 0),
			Colour:   colour,
		})
	}
	topCenter := uint32(len(vertices))
	vertices = append(vertices, math.Vertex3D{
		Position: math.NewVec3(0, yTop, 0),
		Normal:   math.NewVec3(0, 1, 0),
		Colour:   colour,
	})
	for j := uint32(0); j < sliceCount; j++ {
		indices = append(indices, topCenter, topBase+j+1, topBase+j)
	}

	// Bottom cap.
	bottomBase := uint32(len(vertices))
	yBottom := -0.5 * height
	for j := uint32(0); j <= sliceCount; j++ {
		x := bottomRadius * math.Cos(float32(j)*dTheta)
		z := bottomRadius * math.Sin(float32(j)*dTheta)
		vertices = append(vertices, math.Vertex3D{
			Position: math.NewVec3(x, yBottom, z),
			Normal:   math.NewVec3(0, -1, 0),
			Colour:   colour,
		})
	}
	bottomCenter := uint32(len(vertices))
	vertices = append(vertices, math.Vertex3D{
		Position: math.NewVec3(0, yBottom, 0),
		Normal:   math.NewVec3(0, -1, 0),
		Colour:   colour,
	})
	for j := uint32(0); j < sliceCount; j++ {
		indices = append(indices, bottomCenter, bottomBase+j, bottomBase+j+1)
	}

	return b.add(vertices, indices)
}
