package engine

import (
	"github.com/spaghettifunk/prisma/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnSetupPipelines  SetupPipelines
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
}

// SetupPipelines builds the solid and wireframe pipeline states for the
// given device. Optional for the software backend; the vulkan backend needs
// pipelines built against its PipelineLayout and RenderPass.
type SetupPipelines func(device renderer.Device) (solid, wire renderer.PipelineState, err error)

type Initialize func(e *Engine) error
type Update func(e *Engine, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
