package renderer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
)

// GeometrySubrange references one drawable range inside shared, immutable
// vertex/index buffers owned by the geometry cache.
type GeometrySubrange struct {
	Vertices   BufferView
	Indices    BufferView
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32
}

// RenderItem is one drawable instance. Created once during scene setup and
// never destroyed during the run. Its object slot is stable and unique
// across all items.
type RenderItem struct {
	id       uuid.UUID
	world    math.Mat4
	geometry GeometrySubrange
	slot     uint32

	// dirty counts the ring slots whose constant data still holds an older
	// transform. Set to the ring size on every transform change and
	// decremented once per refreshing frame, so a change propagates into
	// every ring slot exactly once and converges within N frames.
	dirty      uint32
	frameCount uint32
}

func (ri *RenderItem) ID() uuid.UUID {
	return ri.id
}

func (ri *RenderItem) Slot() uint32 {
	return ri.slot
}

func (ri *RenderItem) World() math.Mat4 {
	return ri.world
}

// SetWorld replaces the item's model-to-world transform and marks every ring
// slot's copy of it stale.
func (ri *RenderItem) SetWorld(world math.Mat4) {
	ri.world = world
	ri.dirty = ri.frameCount
}

func (ri *RenderItem) Geometry() GeometrySubrange {
	return ri.geometry
}

// Catalog is the flat, insertion-ordered list of drawable objects. The
// object set is static after scene setup: items are added once and assigned
// consecutive upload slots.
type Catalog struct {
	layout TableLayout
	items  []*RenderItem
}

func NewCatalog(layout TableLayout) *Catalog {
	return &Catalog{
		layout: layout,
		items:  make([]*RenderItem, 0, layout.ObjectCount()),
	}
}

// Add registers a drawable with the given geometry and initial transform.
// The new item starts fully dirty so its constants reach every ring slot.
func (c *Catalog) Add(geometry GeometrySubrange, world math.Mat4) (*RenderItem, error) {
	if uint32(len(c.items)) >= c.layout.ObjectCount() {
		err := fmt.Errorf("%w: catalog is full (%d objects)", core.ErrPrecondition, c.layout.ObjectCount())
		core.LogError(err.Error())
		return nil, err
	}
	item := &RenderItem{
		id:         uuid.New(),
		world:      world,
		geometry:   geometry,
		slot:       uint32(len(c.items)),
		dirty:      c.layout.FrameCount(),
		frameCount: c.layout.FrameCount(),
	}
	c.items = append(c.items, item)
	return item, nil
}

func (c *Catalog) Items() []*RenderItem {
	return c.items
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// RefreshObjects writes the transposed world transform of every dirty item
// into the current frame's object constant region, at most one write per
// item. Deliberately O(dirty items): static items cost nothing after their
// first N refreshes.
func (c *Catalog) RefreshObjects(fr *FrameResource) error {
	region := fr.ObjectConstants()
	for _, item := range c.items {
		if item.dirty == 0 {
			continue
		}
		record := ObjectConstants{World: item.world.Transpose()}
		if err := region.Write(item.slot, record.Bytes()); err != nil {
			return err
		}
		item.dirty--
	}
	return nil
}

// RefreshPass unconditionally rewrites the per-pass record; camera state
// changes every frame by construction.
func (c *Catalog) RefreshPass(fr *FrameResource, pass *PassConstants) error {
	return fr.PassConstants().Write(0, pass.Bytes())
}

// Dispatch issues one indexed draw per item in stable submission order,
// binding each item's geometry and its constant view for the current frame
// index.
func (c *Catalog) Dispatch(cb CommandBuffer, frameIndex uint32) {
	for _, item := range c.items {
		cb.BindGeometry(item.geometry.Vertices, item.geometry.Indices)
		cb.BindObjectConstants(c.layout.ObjectOffset(frameIndex, item.slot))
		cb.DrawIndexed(item.geometry.IndexCount, item.geometry.StartIndex, item.geometry.BaseVertex)
	}
}
