package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

// descriptorHeap maps the flat constant-view table onto Vulkan descriptor
// sets: one uniform-buffer set per table entry, all sharing the backend's
// set layout. Binding a table entry is binding its set.
type descriptorHeap struct {
	backend  *VulkanRenderer
	pool     vk.DescriptorPool
	sets     []vk.DescriptorSet
	capacity uint32
}

func createSetLayout(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}

	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutCreateInfo, context.Allocator, &layout); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor set layout with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

func (vr *VulkanRenderer) CreateDescriptorHeap(capacity uint32) (renderer.DescriptorHeap, error) {
	if capacity == 0 {
		err := fmt.Errorf("descriptor heap capacity must be non-zero: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return nil, err
	}

	poolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: capacity,
	}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: 1,
		PPoolSizes:    []vk.DescriptorPoolSize{poolSize},
		MaxSets:       capacity,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(vr.context.Device.LogicalDevice, &poolCreateInfo, vr.context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor pool with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	heap := &descriptorHeap{
		backend:  vr,
		pool:     pool,
		sets:     make([]vk.DescriptorSet, capacity),
		capacity: capacity,
	}

	for i := uint32(0); i < capacity; i++ {
		allocateInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{vr.setLayout},
		}
		var set vk.DescriptorSet
		if res := vk.AllocateDescriptorSets(vr.context.Device.LogicalDevice, &allocateInfo, &set); res != vk.Success {
			heap.Release()
			err := fmt.Errorf("failed to allocate descriptor set %d with error `%s`", i, VulkanResultString(res))
			core.LogError(err.Error())
			return nil, err
		}
		heap.sets[i] = set
	}

	return heap, nil
}

func (dh *descriptorHeap) Capacity() uint32 {
	return dh.capacity
}

func (dh *descriptorHeap) WriteConstantView(index uint32, addr renderer.GPUAddress, size uint64) error {
	if index >= dh.capacity {
		err := fmt.Errorf("descriptor write at index %d exceeds heap capacity %d: %w", index, dh.capacity, core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}

	buffer, offset, err := dh.backend.resolveSpan(addr, size)
	if err != nil {
		return err
	}

	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer.Handle,
		Offset: vk.DeviceSize(offset),
		Range:  vk.DeviceSize(size),
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          dh.sets[index],
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(dh.backend.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

func (dh *descriptorHeap) Release() {
	if dh.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(dh.backend.context.Device.LogicalDevice, dh.pool, dh.backend.context.Allocator)
		dh.pool = vk.NullDescriptorPool
	}
	dh.sets = nil
}
