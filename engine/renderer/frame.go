package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
)

// FrameResource bundles everything one in-flight frame owns exclusively: a
// command allocator, an upload region for per-object constants, an upload
// region for the per-pass record, and the timeline value that marks the
// frame's GPU work complete. All frame resources are created once at startup
// and live for the process duration; they are only disposed en masse at
// shutdown.
type FrameResource struct {
	allocator       CommandAllocator
	objectConstants *UploadRegion
	passConstants   *UploadRegion

	// fenceValue is the timeline value that, once reached by the GPU,
	// guarantees this frame's work is complete. Zero means never submitted.
	// It is mutated exactly once per frame, immediately after submission.
	fenceValue uint64
}

func NewFrameResource(device Device, objectCount uint32, objectRecordBytes, passRecordBytes uint64) (*FrameResource, error) {
	allocator, err := device.CreateCommandAllocator()
	if err != nil {
		return nil, err
	}
	objectConstants, err := NewUploadRegion(device, objectCount, objectRecordBytes)
	if err != nil {
		allocator.Release()
		return nil, err
	}
	passConstants, err := NewUploadRegion(device, 1, passRecordBytes)
	if err != nil {
		objectConstants.Release()
		allocator.Release()
		return nil, err
	}
	return &FrameResource{
		allocator:       allocator,
		objectConstants: objectConstants,
		passConstants:   passConstants,
	}, nil
}

func (fr *FrameResource) Allocator() CommandAllocator {
	return fr.allocator
}

func (fr *FrameResource) ObjectConstants() *UploadRegion {
	return fr.objectConstants
}

func (fr *FrameResource) PassConstants() *UploadRegion {
	return fr.passConstants
}

func (fr *FrameResource) FenceValue() uint64 {
	return fr.fenceValue
}

func (fr *FrameResource) SetFenceValue(value uint64) {
	fr.fenceValue = value
}

func (fr *FrameResource) Release() {
	if fr.passConstants != nil {
		fr.passConstants.Release()
		fr.passConstants = nil
	}
	if fr.objectConstants != nil {
		fr.objectConstants.Release()
		fr.objectConstants = nil
	}
	if fr.allocator != nil {
		fr.allocator.Release()
		fr.allocator = nil
	}
}

// FrameRing is a fixed-size circular list of frame resources. It is a pure
// container: which frame is current is its only state, and all
// synchronization policy lives in the Scheduler.
type FrameRing struct {
	frames  []*FrameResource
	current int
}

func NewFrameRing(device Device, frameCount, objectCount uint32, objectRecordBytes, passRecordBytes uint64) (*FrameRing, error) {
	if frameCount < 2 {
		err := fmt.Errorf("%w: frame ring needs at least 2 slots, got %d", core.ErrPrecondition, frameCount)
		core.LogError(err.Error())
		return nil, err
	}
	ring := &FrameRing{
		frames: make([]*FrameResource, frameCount),
		// Start just before slot 0 so the first Advance lands on it.
		current: int(frameCount) - 1,
	}
	for i := uint32(0); i < frameCount; i++ {
		fr, err := NewFrameResource(device, objectCount, objectRecordBytes, passRecordBytes)
		if err != nil {
			ring.Release()
			return nil, err
		}
		ring.frames[i] = fr
	}
	return ring, nil
}

// Advance moves the current index forward circularly and returns the new
// current frame resource.
func (ring *FrameRing) Advance() *FrameResource {
	ring.current = (ring.current + 1) % len(ring.frames)
	return ring.frames[ring.current]
}

func (ring *FrameRing) Current() *FrameResource {
	return ring.frames[ring.current]
}

func (ring *FrameRing) CurrentIndex() uint32 {
	return uint32(ring.current)
}

func (ring *FrameRing) Count() uint32 {
	return uint32(len(ring.frames))
}

func (ring *FrameRing) At(index uint32) *FrameResource {
	return ring.frames[index]
}

func (ring *FrameRing) CurrentFenceValue() uint64 {
	return ring.Current().FenceValue()
}

func (ring *FrameRing) SetCurrentFenceValue(value uint64) {
	ring.Current().SetFenceValue(value)
}

func (ring *FrameRing) Release() {
	for i, fr := range ring.frames {
		if fr != nil {
			fr.Release()
			ring.frames[i] = nil
		}
	}
}
