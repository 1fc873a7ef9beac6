package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &buffer); res != vk.Success {
		err := fmt.Errorf("failed to create buffer with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer, context.Allocator)
		err := fmt.Errorf("required memory type not found for buffer")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer, context.Allocator)
		err := fmt.Errorf("failed to allocate buffer memory with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer, context.Allocator)
		err := fmt.Errorf("failed to bind buffer memory")
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanBuffer{Handle: buffer, Memory: memory, Size: size}, nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = vk.NullBuffer
	}
}

// uploadBuffer is a host-visible, host-coherent buffer that stays mapped for
// its whole lifetime.
type uploadBuffer struct {
	backend *VulkanRenderer
	buffer  *VulkanBuffer
	mapped  []byte
	address renderer.GPUAddress
}

func (ub *uploadBuffer) Bytes() []byte {
	return ub.mapped
}

func (ub *uploadBuffer) Address() renderer.GPUAddress {
	return ub.address
}

func (ub *uploadBuffer) Release() {
	if ub.buffer == nil {
		return
	}
	vk.UnmapMemory(ub.backend.context.Device.LogicalDevice, ub.buffer.Memory)
	ub.backend.unregisterSpan(ub.address)
	ub.buffer.Destroy(ub.backend.context)
	ub.buffer = nil
	ub.mapped = nil
}

func (vr *VulkanRenderer) CreateUploadBuffer(size uint64) (renderer.UploadBuffer, error) {
	if size == 0 {
		err := fmt.Errorf("upload buffer size must be non-zero: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return nil, err
	}

	buffer, err := BufferCreate(vr.context, size,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}

	var data unsafe.Pointer
	if res := vk.MapMemory(vr.context.Device.LogicalDevice, buffer.Memory, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		buffer.Destroy(vr.context)
		err := fmt.Errorf("failed to map upload buffer memory with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &uploadBuffer{
		backend: vr,
		buffer:  buffer,
		mapped:  unsafe.Slice((*byte)(data), size),
		address: vr.registerSpan(buffer, size),
	}, nil
}

// createGeometryBuffer writes data once into a host-visible buffer and
// unmaps it. Geometry is immutable after creation so no staging copy is
// needed.
func (vr *VulkanRenderer) createGeometryBuffer(data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, renderer.GPUAddress, error) {
	if len(data) == 0 {
		err := fmt.Errorf("geometry buffer data must be non-empty: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return nil, 0, err
	}

	buffer, err := BufferCreate(vr.context, uint64(len(data)), usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, 0, err
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(vr.context.Device.LogicalDevice, buffer.Memory, 0, vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		buffer.Destroy(vr.context)
		err := fmt.Errorf("failed to map geometry buffer memory with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, 0, err
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(vr.context.Device.LogicalDevice, buffer.Memory)

	return buffer, vr.registerSpan(buffer, uint64(len(data))), nil
}

func (vr *VulkanRenderer) CreateVertexBuffer(data []byte, stride uint32) (renderer.BufferView, error) {
	if stride == 0 {
		err := fmt.Errorf("vertex stride must be non-zero: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return renderer.BufferView{}, err
	}

	buffer, address, err := vr.createGeometryBuffer(data, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return renderer.BufferView{}, err
	}

	return renderer.BufferView{
		Handle:  buffer,
		Address: address,
		Size:    uint64(len(data)),
		Stride:  stride,
	}, nil
}

func (vr *VulkanRenderer) CreateIndexBuffer(indices []uint32) (renderer.BufferView, error) {
	if len(indices) == 0 {
		err := fmt.Errorf("index buffer must be non-empty: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return renderer.BufferView{}, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
	buffer, address, err := vr.createGeometryBuffer(data, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return renderer.BufferView{}, err
	}

	return renderer.BufferView{
		Handle:  buffer,
		Address: address,
		Size:    uint64(len(indices) * 4),
		Stride:  4,
	}, nil
}
