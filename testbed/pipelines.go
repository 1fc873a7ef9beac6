package testbed

import (
	"fmt"
	"os"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/vulkan"
)

const (
	vertexShaderPath   = "assets/shaders/shapes.vert.spv"
	fragmentShaderPath = "assets/shaders/shapes.frag.spv"
)

// setupPipelines builds the solid and wireframe pipeline pair. The software
// device treats pipeline state as an opaque token; the vulkan backend gets
// real pipelines built from the compiled shape shaders (mage build:shaders).
func setupPipelines(device renderer.Device) (renderer.PipelineState, renderer.PipelineState, error) {
	vr, ok := device.(*vulkan.VulkanRenderer)
	if !ok {
		return "solid", "wireframe", nil
	}

	vertSPV, err := os.ReadFile(vertexShaderPath)
	if err != nil {
		err = fmt.Errorf("failed to read %s (run `mage build:shaders` first): %w", vertexShaderPath, err)
		core.LogError(err.Error())
		return nil, nil, err
	}
	fragSPV, err := os.ReadFile(fragmentShaderPath)
	if err != nil {
		err = fmt.Errorf("failed to read %s (run `mage build:shaders` first): %w", fragmentShaderPath, err)
		core.LogError(err.Error())
		return nil, nil, err
	}

	config := vulkan.GraphicsPipelineConfig{
		VertexShaderSPV:   vertSPV,
		FragmentShaderSPV: fragSPV,
		Stride:            uint32(unsafe.Sizeof(math.Vertex3D{})),
		Attributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(math.Vertex3D{}.Position))},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(math.Vertex3D{}.Normal))},
			{Location: 2, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: uint32(unsafe.Offsetof(math.Vertex3D{}.Colour))},
		},
	}

	solid, err := vr.NewGraphicsPipeline(&config)
	if err != nil {
		return nil, nil, err
	}

	config.Wireframe = true
	wire, err := vr.NewGraphicsPipeline(&config)
	if err != nil {
		vr.DestroyPipeline(solid)
		return nil, nil, err
	}
	return solid, wire, nil
}
