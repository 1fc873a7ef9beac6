package soft

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

type uploadBuffer struct {
	device   *Device
	address  renderer.GPUAddress
	data     []byte
	released bool
}

func (b *uploadBuffer) Bytes() []byte {
	return b.data
}

func (b *uploadBuffer) Address() renderer.GPUAddress {
	return b.address
}

func (b *uploadBuffer) Release() {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	b.released = true
}

func (d *Device) CreateUploadBuffer(size uint64) (renderer.UploadBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: upload buffer size must be > 0", core.ErrPrecondition)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := &uploadBuffer{
		device:  d,
		address: d.nextAddress,
		data:    make([]byte, size),
	}
	// Guard gap between allocations so off-by-one address math cannot
	// silently resolve into a neighbour.
	d.nextAddress += renderer.GPUAddress(renderer.AlignUp(size, d.alignment) + d.alignment)
	d.buffers = append(d.buffers, buf)
	return buf, nil
}

// resolveLocked maps a GPU address back to the upload buffer and offset that
// contain it.
func (d *Device) resolveLocked(addr renderer.GPUAddress, size uint64) (*uploadBuffer, uint64, error) {
	for _, buf := range d.buffers {
		if addr >= buf.address && uint64(addr-buf.address)+size <= uint64(len(buf.data)) {
			if buf.released {
				return nil, 0, fmt.Errorf("%w: read of released upload buffer at %#x", core.ErrDeviceLost, addr)
			}
			return buf, uint64(addr - buf.address), nil
		}
	}
	return nil, 0, fmt.Errorf("%w: address %#x does not resolve to any live allocation", core.ErrDeviceLost, addr)
}

type geometryBuffer struct {
	data []byte
}

func (d *Device) CreateVertexBuffer(data []byte, stride uint32) (renderer.BufferView, error) {
	if len(data) == 0 || stride == 0 {
		return renderer.BufferView{}, fmt.Errorf("%w: vertex buffer needs data and a stride", core.ErrPrecondition)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	d.mu.Lock()
	defer d.mu.Unlock()
	view := renderer.BufferView{
		Handle:  &geometryBuffer{data: stored},
		Address: d.nextAddress,
		Size:    uint64(len(stored)),
		Stride:  stride,
	}
	d.nextAddress += renderer.GPUAddress(renderer.AlignUp(view.Size, d.alignment) + d.alignment)
	return view, nil
}

func (d *Device) CreateIndexBuffer(indices []uint32) (renderer.BufferView, error) {
	if len(indices) == 0 {
		return renderer.BufferView{}, fmt.Errorf("%w: index buffer needs indices", core.ErrPrecondition)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
	stored := make([]byte, len(data))
	copy(stored, data)
	d.mu.Lock()
	defer d.mu.Unlock()
	view := renderer.BufferView{
		Handle:  &geometryBuffer{data: stored},
		Address: d.nextAddress,
		Size:    uint64(len(stored)),
		Stride:  4,
	}
	d.nextAddress += renderer.GPUAddress(renderer.AlignUp(view.Size, d.alignment) + d.alignment)
	return view, nil
}

type constantView struct {
	address renderer.GPUAddress
	size    uint64
	written bool
}

type descriptorHeap struct {
	entries []constantView
}

func (d *Device) CreateDescriptorHeap(capacity uint32) (renderer.DescriptorHeap, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: descriptor heap capacity must be > 0", core.ErrPrecondition)
	}
	return &descriptorHeap{entries: make([]constantView, capacity)}, nil
}

func (h *descriptorHeap) Capacity() uint32 {
	return uint32(len(h.entries))
}

func (h *descriptorHeap) WriteConstantView(index uint32, addr renderer.GPUAddress, size uint64) error {
	if index >= uint32(len(h.entries)) {
		return fmt.Errorf("%w: descriptor entry %d out of range [0,%d)", core.ErrPrecondition, index, len(h.entries))
	}
	h.entries[index] = constantView{address: addr, size: size, written: true}
	return nil
}

func (h *descriptorHeap) Release() {
	h.entries = nil
}

type commandAllocator struct {
	device *Device
	// inFlight counts submissions recorded from this allocator that the
	// consumer has not executed yet. Resetting while nonzero is exactly the
	// data race the frame scheduler exists to prevent.
	inFlight int
	released bool
}

func (d *Device) CreateCommandAllocator() (renderer.CommandAllocator, error) {
	return &commandAllocator{device: d}, nil
}

func (a *commandAllocator) Reset() error {
	a.device.mu.Lock()
	defer a.device.mu.Unlock()
	if a.released {
		return fmt.Errorf("%w: reset of released command allocator", core.ErrPrecondition)
	}
	if a.inFlight > 0 {
		return fmt.Errorf("%w: command allocator reset while %d submission(s) still in flight", core.ErrPrecondition, a.inFlight)
	}
	return nil
}

func (a *commandAllocator) Release() {
	a.device.mu.Lock()
	defer a.device.mu.Unlock()
	a.released = true
}
