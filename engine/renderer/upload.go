package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
)

// UploadRegion is a CPU-writable, GPU-readable linear buffer holding one
// fixed-size record per slot. The per-slot stride is the record size rounded
// up to the device's minimum constant-buffer alignment, so every slot address
// is individually bindable. The region is a single contiguous allocation and
// is never resized after creation.
type UploadRegion struct {
	buffer     UploadBuffer
	slotCount  uint32
	recordSize uint64
	rawSize    uint64
}

// AlignUp rounds value up to the next multiple of alignment. Alignment must
// be a power of two.
func AlignUp(value, alignment uint64) uint64 {
	return (value + alignment - 1) &^ (alignment - 1)
}

func NewUploadRegion(device Device, slotCount uint32, recordBytes uint64) (*UploadRegion, error) {
	if slotCount == 0 || recordBytes == 0 {
		err := fmt.Errorf("%w: upload region needs slotCount > 0 and recordBytes > 0 (got %d, %d)", core.ErrPrecondition, slotCount, recordBytes)
		core.LogError(err.Error())
		return nil, err
	}
	alignment := device.MinConstantAlignment()
	if alignment == 0 || alignment&(alignment-1) != 0 {
		err := fmt.Errorf("%w: device constant alignment must be a power of two, got %d", core.ErrPrecondition, alignment)
		core.LogError(err.Error())
		return nil, err
	}

	stride := AlignUp(recordBytes, alignment)
	buffer, err := device.CreateUploadBuffer(uint64(slotCount) * stride)
	if err != nil {
		return nil, err
	}
	return &UploadRegion{
		buffer:     buffer,
		slotCount:  slotCount,
		recordSize: stride,
		rawSize:    recordBytes,
	}, nil
}

// Write copies a fixed-size record into the given slot of the persistently
// mapped buffer. The caller owns synchronization: the slot's frame must not
// be in flight on the GPU.
func (r *UploadRegion) Write(slot uint32, record []byte) error {
	if slot >= r.slotCount {
		return fmt.Errorf("%w: upload slot %d out of range [0,%d)", core.ErrPrecondition, slot, r.slotCount)
	}
	if uint64(len(record)) > r.recordSize {
		return fmt.Errorf("%w: record of %d bytes exceeds slot stride %d", core.ErrPrecondition, len(record), r.recordSize)
	}
	offset := uint64(slot) * r.recordSize
	copy(r.buffer.Bytes()[offset:offset+uint64(len(record))], record)
	return nil
}

// BaseAddress returns the GPU-visible base address of the region.
func (r *UploadRegion) BaseAddress() GPUAddress {
	return r.buffer.Address()
}

// SlotAddress returns the GPU-visible address of one slot.
func (r *UploadRegion) SlotAddress(slot uint32) GPUAddress {
	return r.buffer.Address() + GPUAddress(uint64(slot)*r.recordSize)
}

// RecordSize returns the padded per-slot stride in bytes.
func (r *UploadRegion) RecordSize() uint64 {
	return r.recordSize
}

func (r *UploadRegion) SlotCount() uint32 {
	return r.slotCount
}

// Release frees the backing buffer. Only call once no in-flight frame
// references the region.
func (r *UploadRegion) Release() {
	if r.buffer != nil {
		r.buffer.Release()
		r.buffer = nil
	}
}
