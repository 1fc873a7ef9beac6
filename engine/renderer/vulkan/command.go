package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

// Pipeline is a graphics pipeline handle built against the backend's
// PipelineLayout. Construction is the caller's job; the backend only binds.
type Pipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// commandAllocator owns a dedicated command pool with one pre-allocated
// primary buffer. Reset resets the whole pool, which is only legal once the
// frame's fence has been observed signaled.
type commandAllocator struct {
	backend *VulkanRenderer
	pool    vk.CommandPool
	buffer  vk.CommandBuffer
}

func (vr *VulkanRenderer) CreateCommandAllocator() (renderer.CommandAllocator, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(vr.context.Device.GraphicsQueueIndex),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(vr.context.Device.LogicalDevice, &poolCreateInfo, vr.context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create command pool")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(vr.context.Device.LogicalDevice, &allocateInfo, buffers); res != vk.Success {
		vk.DestroyCommandPool(vr.context.Device.LogicalDevice, pool, vr.context.Allocator)
		err := fmt.Errorf("failed to allocate command buffer")
		core.LogError(err.Error())
		return nil, err
	}

	return &commandAllocator{
		backend: vr,
		pool:    pool,
		buffer:  buffers[0],
	}, nil
}

func (ca *commandAllocator) Reset() error {
	if res := vk.ResetCommandPool(ca.backend.context.Device.LogicalDevice, ca.pool, 0); res != vk.Success {
		err := fmt.Errorf("failed to reset command pool with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (ca *commandAllocator) Release() {
	if ca.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(ca.backend.context.Device.LogicalDevice, ca.pool, ca.backend.context.Allocator)
		ca.pool = vk.NullCommandPool
	}
}

// commandBuffer records one frame's draw commands. The render pass begins
// lazily at the first bind or draw so the clear color and viewport set
// earlier in recording are in hand by then.
type commandBuffer struct {
	backend   *VulkanRenderer
	allocator *commandAllocator
	handle    vk.CommandBuffer
	pipeline  *Pipeline
	heap      *descriptorHeap

	width      uint32
	height     uint32
	clearColor [4]float32

	passBegun bool
	closed    bool
	submitted bool
}

func (vr *VulkanRenderer) RecordCommands(allocator renderer.CommandAllocator, pipeline renderer.PipelineState) (renderer.CommandBuffer, error) {
	ca, ok := allocator.(*commandAllocator)
	if !ok {
		err := fmt.Errorf("command allocator does not belong to this backend: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return nil, err
	}
	pl, ok := pipeline.(*Pipeline)
	if !ok || pl == nil {
		err := fmt.Errorf("pipeline state does not belong to this backend: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return nil, err
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(ca.buffer, &beginInfo); res != vk.Success {
		err := fmt.Errorf("failed to begin command buffer with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &commandBuffer{
		backend:   vr,
		allocator: ca,
		handle:    ca.buffer,
		pipeline:  pl,
		width:     vr.context.FramebufferWidth,
		height:    vr.context.FramebufferHeight,
	}, nil
}

func (cb *commandBuffer) SetViewport(width, height uint32) {
	cb.width = width
	cb.height = height
}

func (cb *commandBuffer) ClearTarget(color [4]float32) {
	cb.clearColor = color
}

func (cb *commandBuffer) BindDescriptorHeap(heap renderer.DescriptorHeap) {
	if dh, ok := heap.(*descriptorHeap); ok {
		cb.heap = dh
	} else {
		core.LogError("descriptor heap does not belong to this backend")
	}
}

// ensurePass begins the render pass on first use, once the clear color and
// viewport are known.
func (cb *commandBuffer) ensurePass() {
	if cb.passBegun {
		return
	}
	context := cb.backend.context
	context.MainRenderpass.Begin(cb.handle, context.Framebuffer, cb.width, cb.height, cb.clearColor)

	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointGraphics, cb.pipeline.Handle)

	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(cb.width),
		Height:   float32(cb.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: cb.width, Height: cb.height},
	}
	vk.CmdSetViewport(cb.handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb.handle, 0, 1, []vk.Rect2D{scissor})

	cb.passBegun = true
}

func (cb *commandBuffer) bindHeapEntry(setIndex, entry uint32) {
	heap := cb.heap
	if heap == nil || entry >= heap.capacity {
		core.LogError("heap entry %d is out of range", entry)
		return
	}
	vk.CmdBindDescriptorSets(cb.handle, vk.PipelineBindPointGraphics, cb.pipeline.Layout,
		setIndex, 1, []vk.DescriptorSet{heap.sets[entry]}, 0, nil)
}

func (cb *commandBuffer) BindPassConstants(entry uint32) {
	cb.ensurePass()
	cb.bindHeapEntry(0, entry)
}

func (cb *commandBuffer) BindObjectConstants(entry uint32) {
	cb.ensurePass()
	cb.bindHeapEntry(1, entry)
}

func (cb *commandBuffer) BindGeometry(vertices, indices renderer.BufferView) {
	cb.ensurePass()

	vb, ok := vertices.Handle.(*VulkanBuffer)
	if !ok {
		core.LogError("vertex buffer does not belong to this backend")
		return
	}
	ib, ok := indices.Handle.(*VulkanBuffer)
	if !ok {
		core.LogError("index buffer does not belong to this backend")
		return
	}

	vk.CmdBindVertexBuffers(cb.handle, 0, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cb.handle, ib.Handle, 0, vk.IndexTypeUint32)
}

func (cb *commandBuffer) DrawIndexed(indexCount, startIndex uint32, baseVertex int32) {
	cb.ensurePass()
	vk.CmdDrawIndexed(cb.handle, indexCount, 1, startIndex, baseVertex, 0)
}

func (cb *commandBuffer) Close() error {
	if cb.closed {
		err := fmt.Errorf("command buffer closed twice: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}
	// A frame with no draws still clears the targets.
	cb.ensurePass()
	cb.backend.context.MainRenderpass.End(cb.handle)

	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		err := fmt.Errorf("failed to end command buffer with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	cb.closed = true
	return nil
}
