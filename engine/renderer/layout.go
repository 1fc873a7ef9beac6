package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
)

// TableLayout computes descriptor heap entry indices for per-frame,
// per-object constant views. Each frame index owns a disjoint range of
// entries, so no two frames ever alias the same descriptor while the GPU
// might still read it; object lookups are pure O(1) arithmetic.
//
// Heap layout: frameCount blocks of objectCount object views, followed by a
// reserved trailing region of frameCount pass views.
type TableLayout struct {
	frameCount  uint32
	objectCount uint32
}

func NewTableLayout(frameCount, objectCount uint32) (TableLayout, error) {
	if frameCount == 0 || objectCount == 0 {
		err := fmt.Errorf("%w: table layout needs frameCount > 0 and objectCount > 0 (got %d, %d)", core.ErrPrecondition, frameCount, objectCount)
		core.LogError(err.Error())
		return TableLayout{}, err
	}
	return TableLayout{
		frameCount:  frameCount,
		objectCount: objectCount,
	}, nil
}

func (l TableLayout) FrameCount() uint32 {
	return l.frameCount
}

func (l TableLayout) ObjectCount() uint32 {
	return l.objectCount
}

// ObjectOffset returns the heap entry for one object's constant view in one
// frame.
func (l TableLayout) ObjectOffset(frameIndex, objectSlot uint32) uint32 {
	return frameIndex*l.objectCount + objectSlot
}

// PassOffset returns the heap entry for one frame's pass constant view, in
// the reserved trailing region.
func (l TableLayout) PassOffset(frameIndex uint32) uint32 {
	return l.objectCount*l.frameCount + frameIndex
}

// HeapSize returns the total number of heap entries the layout addresses.
func (l TableLayout) HeapSize() uint32 {
	return (l.objectCount + 1) * l.frameCount
}

// Build creates the descriptor heap once at startup and fills every entry
// with a constant-buffer view pointing at the matching upload region slot.
// The stride/alignment contract is validated here, before any frame runs.
func (l TableLayout) Build(device Device, ring *FrameRing) (DescriptorHeap, error) {
	if ring.Count() != l.frameCount {
		err := fmt.Errorf("%w: layout has %d frames but ring has %d", core.ErrPrecondition, l.frameCount, ring.Count())
		core.LogError(err.Error())
		return nil, err
	}

	heap, err := device.CreateDescriptorHeap(l.HeapSize())
	if err != nil {
		return nil, err
	}

	for frameIndex := uint32(0); frameIndex < l.frameCount; frameIndex++ {
		fr := ring.At(frameIndex)

		objects := fr.ObjectConstants()
		if objects.SlotCount() != l.objectCount {
			heap.Release()
			err := fmt.Errorf("%w: frame %d object region has %d slots, layout expects %d", core.ErrPrecondition, frameIndex, objects.SlotCount(), l.objectCount)
			core.LogError(err.Error())
			return nil, err
		}
		for slot := uint32(0); slot < l.objectCount; slot++ {
			if err := heap.WriteConstantView(l.ObjectOffset(frameIndex, slot), objects.SlotAddress(slot), objects.RecordSize()); err != nil {
				heap.Release()
				return nil, err
			}
		}

		pass := fr.PassConstants()
		if err := heap.WriteConstantView(l.PassOffset(frameIndex), pass.BaseAddress(), pass.RecordSize()); err != nil {
			heap.Release()
			return nil, err
		}
	}

	core.LogDebug("descriptor table built: %d frames x %d objects + %d pass entries", l.frameCount, l.objectCount, l.frameCount)
	return heap, nil
}
