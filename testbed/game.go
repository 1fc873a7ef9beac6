package testbed

import (
	"github.com/spaghettifunk/prisma/engine"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/geometry"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

// spinner is a catalog item that rotates in place around the Y axis.
type spinner struct {
	item  *renderer.RenderItem
	base  math.Mat4
	speed float32
	angle float32
}

type gameState struct {
	cache    *geometry.Cache
	spinners []*spinner
}

func NewShapesGame() *engine.Game {
	return &engine.Game{
		ApplicationConfig: &engine.ApplicationConfig{
			StartPosX:  100,
			StartPosY:  100,
			ConfigPath: "assets/config.toml",
		},
		State:            &gameState{},
		FnSetupPipelines: setupPipelines,
		FnInitialize:     initialize,
		FnUpdate:         update,
		FnOnResize:       onResize,
	}
}

func initialize(e *engine.Engine) error {
	g := e.Renderer()
	state := &gameState{}

	builder := geometry.NewBuilder()
	box := builder.AddBox(2.0, 2.0, 2.0, math.NewVec4(0.8, 0.2, 0.2, 1.0))
	grid := builder.AddGrid(30.0, 40.0, 60, 40, math.NewVec4(0.3, 0.3, 0.3, 1.0))
	sphere := builder.AddSphere(0.5, 20, 20, math.NewVec4(0.2, 0.4, 0.8, 1.0))
	cylinder := builder.AddCylinder(0.5, 0.3, 3.0, 20, 20, math.NewVec4(0.2, 0.7, 0.3, 1.0))

	cache, err := builder.Build(e.Device())
	if err != nil {
		return err
	}
	state.cache = cache

	catalog := g.Catalog()
	scene := e.Config().Scene

	gridGeo, err := cache.Lookup(grid)
	if err != nil {
		return err
	}
	if _, err := catalog.Add(gridGeo, math.NewMat4Identity()); err != nil {
		return err
	}

	boxGeo, err := cache.Lookup(box)
	if err != nil {
		return err
	}
	boxItem, err := catalog.Add(boxGeo, math.NewMat4Translation(math.NewVec3(0, 1.0, 0)))
	if err != nil {
		return err
	}
	state.spinners = append(state.spinners, &spinner{
		item:  boxItem,
		base:  math.NewMat4Translation(math.NewVec3(0, 1.0, 0)),
		speed: math.RandomFloatRange(scene.SpinSpeedMin, scene.SpinSpeedMax),
	})

	sphereGeo, err := cache.Lookup(sphere)
	if err != nil {
		return err
	}
	cylinderGeo, err := cache.Lookup(cylinder)
	if err != nil {
		return err
	}

	// Two columns of cylinders with spheres on top running down each side.
	for i := uint32(0); i < scene.ShapeColumns; i++ {
		z := -10.0 + float32(i)*5.0
		for _, x := range []float32{-5.0, 5.0} {
			if _, err := catalog.Add(cylinderGeo, math.NewMat4Translation(math.NewVec3(x, 1.5, z))); err != nil {
				return err
			}
			base := math.NewMat4Translation(math.NewVec3(x, 3.5, z))
			sphereItem, err := catalog.Add(sphereGeo, base)
			if err != nil {
				return err
			}
			state.spinners = append(state.spinners, &spinner{
				item:  sphereItem,
				base:  base,
				speed: math.RandomFloatRange(scene.SpinSpeedMin, scene.SpinSpeedMax),
			})
		}
	}

	core.LogInfo("shapes scene ready: %d items, %d spinning", catalog.Len(), len(state.spinners))

	// Replace the placeholder state wholesale so update sees the scene.
	*e.GameState().(*gameState) = *state
	return nil
}

func update(e *engine.Engine, deltaTime float64) error {
	state := e.GameState().(*gameState)
	camera := e.Renderer().Camera()

	// Keyboard camera: A/D orbit, W/S tilt, Q/E zoom.
	var orbitSpeed float32 = 1.5
	if core.InputIsKeyDown(core.KEY_A) {
		camera.Orbit(-orbitSpeed*float32(deltaTime), 0)
	}
	if core.InputIsKeyDown(core.KEY_D) {
		camera.Orbit(orbitSpeed*float32(deltaTime), 0)
	}
	if core.InputIsKeyDown(core.KEY_W) {
		camera.Orbit(0, -orbitSpeed*float32(deltaTime))
	}
	if core.InputIsKeyDown(core.KEY_S) {
		camera.Orbit(0, orbitSpeed*float32(deltaTime))
	}
	if core.InputIsKeyDown(core.KEY_Q) {
		camera.Zoom(-10.0 * float32(deltaTime))
	}
	if core.InputIsKeyDown(core.KEY_E) {
		camera.Zoom(10.0 * float32(deltaTime))
	}

	for _, s := range state.spinners {
		s.angle += s.speed * float32(deltaTime)
		s.item.SetWorld(s.base.Mul(math.NewMat4RotationY(s.angle)))
	}
	return nil
}

func onResize(width uint32, height uint32) error {
	core.LogDebug("shapes scene resized to %dx%d", width, height)
	return nil
}
