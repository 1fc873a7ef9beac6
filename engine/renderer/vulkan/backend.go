package vulkan

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/platform"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

const defaultFenceTimeoutNs = 5 * 1000 * 1000 * 1000

// VulkanRenderer implements the renderer device contract on a real GPU. It
// draws into an offscreen color/depth target; presentation is out of scope.
type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext
	timeline *VulkanTimeline

	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout

	// GPU address bookkeeping. Buffers get virtual addresses from a
	// monotonic counter with guard gaps; descriptor writes translate them
	// back to buffer/offset pairs.
	spanMu      sync.Mutex
	spans       []bufferSpan
	nextAddress renderer.GPUAddress

	debug bool
}

type bufferSpan struct {
	base   renderer.GPUAddress
	size   uint64
	buffer *VulkanBuffer
}

func New(p *platform.Platform) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context: &VulkanContext{
			FramebufferWidth:  0,
			FramebufferHeight: 0,
			Allocator:         nil,
		},
		nextAddress: 0x10000,
		debug:       true,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	// TODO: custom allocator.
	vr.context.Allocator = nil
	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	// Setup Vulkan instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Prisma Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}

	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugUtilsExtensionName, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for i := 0; i < len(requiredExtensions); i++ {
			core.LogInfo(requiredExtensions[i])
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	requiredValidationLayerNames := []string{}
	if vr.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layers")
			core.LogError(err.Error())
			return err
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			err := fmt.Errorf("failed to enumerate instance layers")
			core.LogError(err.Error())
			return err
		}

		for i := range requiredValidationLayerNames {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
				if requiredValidationLayerNames[i] == vk.ToString(availableLayers[j].LayerName[:end+1]) {
					found = true
					break
				}
			}
			if !found {
				err := fmt.Errorf("required validation layer is missing: %s", requiredValidationLayerNames[i])
				core.LogError(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface. Only used for device compatibility; the frame pipeline
	// renders offscreen.
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		core.LogError("failed to create platform surface: %s", err)
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	// Offscreen render targets.
	colorFormat := vk.FormatB8g8r8a8Unorm
	colorTarget, err := ImageCreate(vr.context, appWidth, appHeight, colorFormat,
		vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransferSrcBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return err
	}
	vr.context.ColorTarget = colorTarget

	depthTarget, err := ImageCreate(vr.context, appWidth, appHeight, vr.context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}
	vr.context.DepthTarget = depthTarget

	rp, err := RenderpassCreate(vr.context, colorFormat, 1.0, 0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	fb, err := FramebufferCreate(vr.context, rp, appWidth, appHeight,
		[]vk.ImageView{colorTarget.View, depthTarget.View})
	if err != nil {
		return err
	}
	vr.context.Framebuffer = fb

	// Descriptor set layout shared by every heap, and the pipeline layout
	// every pipeline must be built against: set 0 holds the pass record,
	// set 1 the object record.
	layout, err := createSetLayout(vr.context)
	if err != nil {
		return err
	}
	vr.setLayout = layout

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 2,
		PSetLayouts:    []vk.DescriptorSetLayout{vr.setLayout, vr.setLayout},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(vr.context.Device.LogicalDevice, &pipelineLayoutCreateInfo, vr.context.Allocator, &pipelineLayout); res != vk.Success {
		err := fmt.Errorf("failed to create pipeline layout with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	vr.pipelineLayout = pipelineLayout

	vr.timeline = NewVulkanTimeline(vr.context, vr.context.Device.GraphicsQueue, defaultFenceTimeoutNs)

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// PipelineLayout is the layout every pipeline bound through this backend
// must be created with.
func (vr *VulkanRenderer) PipelineLayout() vk.PipelineLayout {
	return vr.pipelineLayout
}

// RenderPass is the pass pipelines must be compatible with.
func (vr *VulkanRenderer) RenderPass() vk.RenderPass {
	return vr.context.MainRenderpass.Handle
}

func (vr *VulkanRenderer) MinConstantAlignment() uint64 {
	alignment := vr.context.Device.MinUniformAlignment()
	if alignment == 0 {
		alignment = 256
	}
	return alignment
}

func (vr *VulkanRenderer) registerSpan(buffer *VulkanBuffer, size uint64) renderer.GPUAddress {
	vr.spanMu.Lock()
	defer vr.spanMu.Unlock()
	base := vr.nextAddress
	// Guard gap so adjacent spans never produce ambiguous addresses.
	vr.nextAddress += renderer.GPUAddress(size) + 0x1000
	vr.spans = append(vr.spans, bufferSpan{base: base, size: size, buffer: buffer})
	return base
}

func (vr *VulkanRenderer) unregisterSpan(base renderer.GPUAddress) {
	vr.spanMu.Lock()
	defer vr.spanMu.Unlock()
	for i := range vr.spans {
		if vr.spans[i].base == base {
			vr.spans = append(vr.spans[:i], vr.spans[i+1:]...)
			return
		}
	}
}

func (vr *VulkanRenderer) resolveSpan(addr renderer.GPUAddress, size uint64) (*VulkanBuffer, uint64, error) {
	vr.spanMu.Lock()
	defer vr.spanMu.Unlock()
	for i := range vr.spans {
		span := &vr.spans[i]
		if addr >= span.base && uint64(addr-span.base)+size <= span.size {
			return span.buffer, uint64(addr - span.base), nil
		}
	}
	err := fmt.Errorf("address %#x does not map to a live buffer: %w", uint64(addr), core.ErrPrecondition)
	core.LogError(err.Error())
	return nil, 0, err
}

func (vr *VulkanRenderer) Submit(cb renderer.CommandBuffer) error {
	vcb, ok := cb.(*commandBuffer)
	if !ok {
		err := fmt.Errorf("command buffer does not belong to this backend: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}
	if !vcb.closed {
		err := fmt.Errorf("cannot submit an open command buffer: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}
	if vcb.submitted {
		err := fmt.Errorf("command buffer already submitted: %w", core.ErrPrecondition)
		core.LogError(err.Error())
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcb.handle},
	}
	if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		err := fmt.Errorf("vkQueueSubmit failed with result `%s`: %w", VulkanResultString(res), VulkanResultToError(res))
		core.LogError(err.Error())
		return err
	}
	vcb.submitted = true
	return nil
}

func (vr *VulkanRenderer) SignalTimeline(value uint64) error {
	return vr.timeline.Signal(value)
}

func (vr *VulkanRenderer) CompletedTimelineValue() uint64 {
	return vr.timeline.Completed()
}

func (vr *VulkanRenderer) WaitForTimelineValue(value uint64) error {
	return vr.timeline.Wait(value)
}

func (vr *VulkanRenderer) WaitIdle() error {
	if res := vk.QueueWaitIdle(vr.context.Device.GraphicsQueue); res != vk.Success {
		err := fmt.Errorf("queue failed to wait in idle mode with error `%s`: %w", VulkanResultString(res), core.ErrDeviceLost)
		core.LogError(err.Error())
		return err
	}
	vr.timeline.Drain()
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	vr.timeline.Destroy()

	if vr.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(vr.context.Device.LogicalDevice, vr.pipelineLayout, vr.context.Allocator)
		vr.pipelineLayout = vk.NullPipelineLayout
	}
	if vr.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(vr.context.Device.LogicalDevice, vr.setLayout, vr.context.Allocator)
		vr.setLayout = vk.NullDescriptorSetLayout
	}

	if vr.context.Framebuffer != nil {
		vr.context.Framebuffer.Destroy(vr.context)
		vr.context.Framebuffer = nil
	}
	if vr.context.MainRenderpass != nil {
		vr.context.MainRenderpass.Destroy(vr.context)
		vr.context.MainRenderpass = nil
	}
	if vr.context.DepthTarget != nil {
		vr.context.DepthTarget.Destroy(vr.context)
		vr.context.DepthTarget = nil
	}
	if vr.context.ColorTarget != nil {
		vr.context.ColorTarget.Destroy(vr.context)
		vr.context.ColorTarget = nil
	}

	DeviceDestroy(vr.context)

	if vr.debug && vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
	}

	vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)

	core.LogInfo("Vulkan renderer shut down.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
