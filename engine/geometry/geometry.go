// Package geometry builds the immutable vertex/index buffers the scene draws
// from. All primitives are concatenated into one vertex and one index
// buffer; each primitive is addressed by an integer handle resolved once at
// load time, so the per-frame path never touches a string key.
package geometry

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

// Handle identifies one primitive range inside the cache.
type Handle uint32

// Builder accumulates primitive meshes before the GPU buffers exist.
type Builder struct {
	vertices []math.Vertex3D
	indices  []uint32
	ranges   []subrange
}

type subrange struct {
	indexCount uint32
	startIndex uint32
	baseVertex int32
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(vertices []math.Vertex3D, indices []uint32) Handle {
	handle := Handle(len(b.ranges))
	b.ranges = append(b.ranges, subrange{
		indexCount: uint32(len(indices)),
		startIndex: uint32(len(b.indices)),
		baseVertex: int32(len(b.vertices)),
	})
	b.vertices = append(b.vertices, vertices...)
	b.indices = append(b.indices, indices...)
	return handle
}

// Build uploads the concatenated buffers and freezes the cache. The returned
// cache is immutable and safely shared by all frames and render items.
func (b *Builder) Build(device renderer.Device) (*Cache, error) {
	if len(b.ranges) == 0 {
		err := fmt.Errorf("%w: geometry builder has no primitives", core.ErrPrecondition)
		core.LogError(err.Error())
		return nil, err
	}

	stride := uint32(unsafe.Sizeof(math.Vertex3D{}))
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&b.vertices[0])), len(b.vertices)*int(stride))

	vertices, err := device.CreateVertexBuffer(raw, stride)
	if err != nil {
		return nil, err
	}
	indices, err := device.CreateIndexBuffer(b.indices)
	if err != nil {
		return nil, err
	}

	cache := &Cache{
		vertices: vertices,
		indices:  indices,
		ranges:   make([]renderer.GeometrySubrange, len(b.ranges)),
	}
	for i, r := range b.ranges {
		cache.ranges[i] = renderer.GeometrySubrange{
			Vertices:   vertices,
			Indices:    indices,
			IndexCount: r.indexCount,
			StartIndex: r.startIndex,
			BaseVertex: r.baseVertex,
		}
	}
	core.LogDebug("geometry cache built: %d primitives, %d vertices, %d indices", len(b.ranges), len(b.vertices), len(b.indices))
	return cache, nil
}

// Cache is the immutable geometry table.
type Cache struct {
	vertices renderer.BufferView
	indices  renderer.BufferView
	ranges   []renderer.GeometrySubrange
}

func (c *Cache) Lookup(handle Handle) (renderer.GeometrySubrange, error) {
	if uint32(handle) >= uint32(len(c.ranges)) {
		err := fmt.Errorf("%w: geometry handle %d out of range [0,%d)", core.ErrPrecondition, handle, len(c.ranges))
		core.LogError(err.Error())
		return renderer.GeometrySubrange{}, err
	}
	return c.ranges[handle], nil
}

func (c *Cache) Len() int {
	return len(c.ranges)
}
