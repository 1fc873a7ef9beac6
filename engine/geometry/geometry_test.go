package geometry_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/geometry"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

var (
	red  = math.NewVec4(1, 0, 0, 1)
	grey = math.NewVec4(0.4, 0.4, 0.4, 1)
)

func TestBuilderRejectsEmptyBuild(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	_, err := geometry.NewBuilder().Build(device)
	require.ErrorIs(t, err, core.ErrPrecondition)
}

func TestBuilderHandlesAreSequential(t *testing.T) {
	builder := geometry.NewBuilder()
	require.Equal(t, geometry.Handle(0), builder.AddBox(1, 1, 1, red))
	require.Equal(t, geometry.Handle(1), builder.AddGrid(10, 10, 4, 3, grey))
	require.Equal(t, geometry.Handle(2), builder.AddSphere(0.5, 8, 4, red))
	require.Equal(t, geometry.Handle(3), builder.AddCylinder(0.5, 0.3, 2, 8, 2, red))
}

func TestCacheSubrangesAccumulate(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	builder := geometry.NewBuilder()
	box := builder.AddBox(2, 2, 2, red)
	grid := builder.AddGrid(30, 40, 4, 3, grey)

	cache, err := builder.Build(device)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	boxRange, err := cache.Lookup(box)
	require.NoError(t, err)
	// A box is 6 faces of 4 vertices and 2 triangles each.
	require.Equal(t, uint32(36), boxRange.IndexCount)
	require.Equal(t, uint32(0), boxRange.StartIndex)
	require.Equal(t, int32(0), boxRange.BaseVertex)

	gridRange, err := cache.Lookup(grid)
	require.NoError(t, err)
	// A 4x3 grid is 6 quads of 2 triangles, appended after the box.
	require.Equal(t, uint32(36), gridRange.IndexCount)
	require.Equal(t, uint32(36), gridRange.StartIndex)
	require.Equal(t, int32(24), gridRange.BaseVertex)

	// Both ranges share the same concatenated buffers.
	require.Equal(t, boxRange.Vertices.Address, gridRange.Vertices.Address)
	require.Equal(t, boxRange.Indices.Address, gridRange.Indices.Address)

	stride := uint32(unsafe.Sizeof(math.Vertex3D{}))
	require.Equal(t, stride, boxRange.Vertices.Stride)
	require.Equal(t, uint64(24+12)*uint64(stride), boxRange.Vertices.Size)
	require.Equal(t, uint32(4), boxRange.Indices.Stride)
	require.Equal(t, uint64((36+36)*4), boxRange.Indices.Size)
}

func TestSphereVertexAndIndexCounts(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	builder := geometry.NewBuilder()
	sphere := builder.AddSphere(1, 8, 4, red)
	cache, err := builder.Build(device)
	require.NoError(t, err)

	r, err := cache.Lookup(sphere)
	require.NoError(t, err)
	// Two pole caps of sliceCount triangles plus stackCount-2 interior
	// rings of sliceCount quads.
	require.Equal(t, uint32(8*3+2*8*6+8*3), r.IndexCount)
	stride := uint64(unsafe.Sizeof(math.Vertex3D{}))
	// Two poles plus stackCount-1 rings of sliceCount+1 vertices.
	require.Equal(t, uint64(2+3*9)*stride, r.Vertices.Size)
}

func TestCacheLookupBounds(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	builder := geometry.NewBuilder()
	builder.AddBox(1, 1, 1, red)
	cache, err := builder.Build(device)
	require.NoError(t, err)

	_, err = cache.Lookup(geometry.Handle(1))
	require.ErrorIs(t, err, core.ErrPrecondition)
}
