package renderer

// GPUAddress is a GPU-visible virtual address of a buffer region.
type GPUAddress uint64

// PipelineState is an opaque pipeline handle owned by the device backend.
// The renderer only selects between preconfigured handles (solid fill or
// wireframe); it never inspects them.
type PipelineState interface{}

// BufferView describes a GPU buffer region used as a vertex or index source.
type BufferView struct {
	// Handle is the backend buffer object.
	Handle interface{}
	// Address is the GPU-visible base address of the region.
	Address GPUAddress
	// Size is the region length in bytes.
	Size uint64
	// Stride is the per-element size in bytes.
	Stride uint32
}

// UploadBuffer is a persistently mapped, CPU-writable, GPU-readable linear
// allocation. The mapping stays valid for the buffer's whole lifetime.
type UploadBuffer interface {
	// Bytes returns the mapped CPU-side view of the whole buffer.
	Bytes() []byte
	// Address returns the GPU-visible base address.
	Address() GPUAddress
	// Release frees the allocation. The caller guarantees no submitted work
	// still references it.
	Release()
}

// DescriptorHeap is a shader-visible table of constant-buffer views. It is
// built once at startup and never resized.
type DescriptorHeap interface {
	Capacity() uint32
	// WriteConstantView points entry index at addr/size. Writing past the
	// capacity is a caller bug and returns an error wrapping
	// core.ErrPrecondition.
	WriteConstantView(index uint32, addr GPUAddress, size uint64) error
	Release()
}

// CommandAllocator is the exclusively owned backing store for recorded
// commands. It may only be reset once the GPU has finished consuming the
// commands it last recorded; the frame scheduler's fence wait guarantees
// that before the owning frame is reused.
type CommandAllocator interface {
	Reset() error
	Release()
}

// CommandBuffer records GPU commands for one frame. Recorded commands are
// immutable once Close has been called; a submitted buffer is unaffected by
// later pipeline or state changes on the CPU side.
type CommandBuffer interface {
	SetViewport(width, height uint32)
	ClearTarget(color [4]float32)
	BindDescriptorHeap(heap DescriptorHeap)
	// BindPassConstants binds the heap entry holding the per-pass record.
	BindPassConstants(entry uint32)
	// BindObjectConstants binds the heap entry holding one object's record.
	BindObjectConstants(entry uint32)
	BindGeometry(vertices, indices BufferView)
	DrawIndexed(indexCount, startIndex uint32, baseVertex int32)
	Close() error
}

// Device is the GPU command submission and resource creation contract the
// frame pipeline is built against. Submission is strictly FIFO; the timeline
// counter only ever moves forward.
type Device interface {
	// MinConstantAlignment is the device's minimum constant-buffer offset
	// alignment in bytes. Upload region strides round up to it.
	MinConstantAlignment() uint64

	CreateUploadBuffer(size uint64) (UploadBuffer, error)
	CreateVertexBuffer(data []byte, stride uint32) (BufferView, error)
	CreateIndexBuffer(indices []uint32) (BufferView, error)
	CreateDescriptorHeap(capacity uint32) (DescriptorHeap, error)
	CreateCommandAllocator() (CommandAllocator, error)

	// RecordCommands begins recording into the given allocator with the
	// given pipeline configuration bound.
	RecordCommands(allocator CommandAllocator, pipeline PipelineState) (CommandBuffer, error)
	// Submit enqueues a closed command buffer for execution.
	Submit(cb CommandBuffer) error

	// SignalTimeline requests the GPU to advance the timeline to value once
	// all previously submitted work completes.
	SignalTimeline(value uint64) error
	// CompletedTimelineValue returns the last timeline value the GPU has
	// reached.
	CompletedTimelineValue() uint64
	// WaitForTimelineValue blocks until the timeline reaches value. Returns
	// an error wrapping core.ErrDeviceLost if the wait times out.
	WaitForTimelineValue(value uint64) error

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error
	Shutdown() error
}

// ViewportProvider supplies the current render target dimensions for the
// per-pass record. The window system implements it.
type ViewportProvider interface {
	FramebufferSize() (uint32, uint32)
}
