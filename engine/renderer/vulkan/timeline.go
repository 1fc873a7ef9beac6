package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prisma/engine/core"
)

// VulkanTimeline emulates a monotonic timeline counter with a pool of
// binary fences. Each signal request submits an empty batch carrying a
// fence; queue submission order guarantees the fence signals only after
// all previously submitted work has completed, which is exactly the
// timeline contract.
type VulkanTimeline struct {
	mu sync.Mutex

	context *VulkanContext
	queue   vk.Queue

	// Pending signals in submission order. Entries retire front to back.
	pending []timelineEntry
	// Retired fences available for reuse.
	free []vk.Fence

	completed uint64
	lastValue uint64

	timeoutNs uint64
}

type timelineEntry struct {
	value uint64
	fence vk.Fence
}

func NewVulkanTimeline(context *VulkanContext, queue vk.Queue, timeoutNs uint64) *VulkanTimeline {
	return &VulkanTimeline{
		context:   context,
		queue:     queue,
		timeoutNs: timeoutNs,
	}
}

func (vt *VulkanTimeline) acquireFenceLocked() (vk.Fence, error) {
	if n := len(vt.free); n > 0 {
		fence := vt.free[n-1]
		vt.free = vt.free[:n-1]
		if res := vk.ResetFences(vt.context.Device.LogicalDevice, 1, []vk.Fence{fence}); res != vk.Success {
			err := fmt.Errorf("failed to reset fence")
			core.LogError(err.Error())
			return vk.NullFence, err
		}
		return fence, nil
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if res := vk.CreateFence(vt.context.Device.LogicalDevice, &fenceCreateInfo, vt.context.Allocator, &fence); res != vk.Success {
		err := fmt.Errorf("failed to create fence")
		core.LogError(err.Error())
		return vk.NullFence, err
	}
	return fence, nil
}

// Signal requests the timeline to advance to value once all work submitted
// so far has completed. Values must be strictly increasing.
func (vt *VulkanTimeline) Signal(value uint64) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	if value <= vt.lastValue {
		err := fmt.Errorf("timeline signal value %d is not greater than %d: %w", value, vt.lastValue, core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}

	fence, err := vt.acquireFenceLocked()
	if err != nil {
		return err
	}

	// Empty submission; the fence signals once the queue drains past it.
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	if res := vk.QueueSubmit(vt.queue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		vt.free = append(vt.free, fence)
		err := fmt.Errorf("vkQueueSubmit failed with result `%s`: %w", VulkanResultString(res), VulkanResultToError(res))
		core.LogError(err.Error())
		return err
	}

	vt.lastValue = value
	vt.pending = append(vt.pending, timelineEntry{value: value, fence: fence})
	return nil
}

// Completed returns the last timeline value the GPU has reached.
func (vt *VulkanTimeline) Completed() uint64 {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.retireLocked()
	return vt.completed
}

// retireLocked polls pending fences in order and advances completed past
// every one that has signaled.
func (vt *VulkanTimeline) retireLocked() {
	for len(vt.pending) > 0 {
		entry := vt.pending[0]
		if vk.GetFenceStatus(vt.context.Device.LogicalDevice, entry.fence) != vk.Success {
			break
		}
		vt.completed = entry.value
		vt.free = append(vt.free, entry.fence)
		vt.pending = vt.pending[1:]
	}
}

// Wait blocks until the timeline reaches value. A timeout is treated as a
// lost device.
func (vt *VulkanTimeline) Wait(value uint64) error {
	vt.mu.Lock()
	vt.retireLocked()
	if vt.completed >= value {
		vt.mu.Unlock()
		return nil
	}

	// Find the first pending entry covering value.
	var fence vk.Fence
	found := false
	for _, entry := range vt.pending {
		if entry.value >= value {
			fence = entry.fence
			found = true
			break
		}
	}
	vt.mu.Unlock()

	if !found {
		err := fmt.Errorf("timeline value %d was never signaled: %w", value, core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}

	result := vk.WaitForFences(vt.context.Device.LogicalDevice, 1, []vk.Fence{fence}, vk.True, vt.timeoutNs)
	switch result {
	case vk.Success:
	case vk.Timeout:
		err := fmt.Errorf("fence wait timed out at timeline value %d: %w", value, core.ErrDeviceLost)
		core.LogError(err.Error())
		return err
	default:
		err := fmt.Errorf("fence wait failed with result `%s`: %w", VulkanResultString(result), VulkanResultToError(result))
		core.LogError(err.Error())
		return err
	}

	vt.mu.Lock()
	vt.retireLocked()
	vt.mu.Unlock()
	return nil
}

// Drain retires every pending signal. The caller must have idled the queue.
func (vt *VulkanTimeline) Drain() {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	for len(vt.pending) > 0 {
		entry := vt.pending[0]
		vt.completed = entry.value
		vt.free = append(vt.free, entry.fence)
		vt.pending = vt.pending[1:]
	}
}

func (vt *VulkanTimeline) Destroy() {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	for _, entry := range vt.pending {
		vk.DestroyFence(vt.context.Device.LogicalDevice, entry.fence, vt.context.Allocator)
	}
	vt.pending = nil
	for _, fence := range vt.free {
		vk.DestroyFence(vt.context.Device.LogicalDevice, fence, vt.context.Allocator)
	}
	vt.free = nil
}
