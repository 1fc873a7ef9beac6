package engine

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/config"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/platform"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
	"github.com/spaghettifunk/prisma/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	device       renderer.Device
	renderer     *renderer.Renderer
	solid        renderer.PipelineState
	wire         renderer.PipelineState
	cfg          *config.Config
	watcher      *config.Watcher
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	cfg, err := config.Load(g.ApplicationConfig.ConfigPath)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	// Window parameters fall back to the config file when the application
	// config leaves them zero.
	if g.ApplicationConfig.StartWidth == 0 {
		g.ApplicationConfig.StartWidth = cfg.Application.StartWidth
	}
	if g.ApplicationConfig.StartHeight == 0 {
		g.ApplicationConfig.StartHeight = cfg.Application.StartHeight
	}
	if g.ApplicationConfig.Name == "" {
		g.ApplicationConfig.Name = cfg.Application.Name
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     platform.New(),
		cfg:          cfg,
		isRunning:    true,
		isSuspended:  false,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(e.gameInstance.ApplicationConfig.Name,
		e.gameInstance.ApplicationConfig.StartPosX,
		e.gameInstance.ApplicationConfig.StartPosY,
		e.gameInstance.ApplicationConfig.StartWidth,
		e.gameInstance.ApplicationConfig.StartHeight); err != nil {
		return err
	}

	device, err := e.createDevice()
	if err != nil {
		return err
	}
	e.device = device

	solid, wire, err := e.setupPipelines()
	if err != nil {
		return err
	}
	e.solid, e.wire = solid, wire

	r, err := renderer.New(e.device, e.platform, renderer.Settings{
		FramesInFlight: e.cfg.Renderer.FramesInFlight,
		MaxObjects:     e.cfg.Renderer.MaxObjects,
		ClearColor:     e.cfg.Renderer.ClearColor,
		Wireframe:      e.cfg.Renderer.Wireframe,
	}, solid, wire)
	if err != nil {
		return err
	}
	e.renderer = r

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	// Live-reload the tunable parts of the config. Structural settings
	// (backend, frame count, object budget) need a restart.
	if e.gameInstance.ApplicationConfig.ConfigPath != "" {
		w, err := config.NewWatcher(e.gameInstance.ApplicationConfig.ConfigPath, e.onConfigReload)
		if err != nil {
			core.LogWarn("config watcher disabled: %s", err.Error())
		} else {
			e.watcher = w
		}
	}

	if err := e.gameInstance.FnInitialize(e); err != nil {
		return err
	}

	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) createDevice() (renderer.Device, error) {
	switch e.cfg.Renderer.Backend {
	case "", "software":
		core.LogInfo("using software device backend")
		return soft.New(), nil
	case "vulkan":
		core.LogInfo("using vulkan device backend")
		vr := vulkan.New(e.platform)
		if err := vr.Initialize(e.gameInstance.ApplicationConfig.Name, e.width, e.height); err != nil {
			return nil, err
		}
		return vr, nil
	default:
		err := fmt.Errorf("unknown renderer backend `%s`", e.cfg.Renderer.Backend)
		core.LogError(err.Error())
		return nil, err
	}
}

func (e *Engine) setupPipelines() (renderer.PipelineState, renderer.PipelineState, error) {
	if e.gameInstance.FnSetupPipelines != nil {
		return e.gameInstance.FnSetupPipelines(e.device)
	}
	if e.cfg.Renderer.Backend == "vulkan" {
		err := fmt.Errorf("the vulkan backend requires the game to set up its pipelines")
		core.LogError(err.Error())
		return nil, nil, err
	}
	// The software device treats pipeline state as an opaque token.
	return "solid", "wireframe", nil
}

func (e *Engine) onConfigReload(cfg *config.Config) {
	core.LogInfo("configuration reloaded")
	e.cfg.Renderer.ClearColor = cfg.Renderer.ClearColor
	e.cfg.Scene = cfg.Scene
	e.renderer.SetClearColor(cfg.Renderer.ClearColor)
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()

	e.lastTime = e.clock.Elapsed()

	// start goroutine to process all the events around the engine
	go core.ProcessEvents()

	var targetFrameSeconds float64 = 1.0 / 60.0

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
		}

		if !e.isSuspended {
			// Update clock and get delta time.
			e.clock.Update()

			var currentTime float64 = e.clock.Elapsed()
			var delta float64 = (currentTime - e.lastTime)
			var frameStartTime float64 = platform.GetAbsoluteTime()

			if err := e.gameInstance.FnUpdate(e, delta); err != nil {
				core.LogFatal("Game update failed, shutting down.")
				e.isRunning = false
				break
			}

			// Snapshot state, claim a frame slot and refresh constants.
			if err := e.renderer.Update(delta); err != nil {
				core.LogFatal("Frame update failed, shutting down: %s", err.Error())
				e.isRunning = false
				break
			}

			// Record and submit.
			if err := e.renderer.Render(); err != nil {
				core.LogFatal("Frame render failed, shutting down: %s", err.Error())
				e.isRunning = false
				break
			}

			var frameEndTime float64 = platform.GetAbsoluteTime()
			var frameElapsedTime float64 = frameEndTime - frameStartTime
			core.MetricsUpdate(frameElapsedTime)

			var remainingSeconds float64 = targetFrameSeconds - frameElapsedTime
			if remainingSeconds > 0 {
				remainingMS := (remainingSeconds * 1000)
				// If there is time left, give it back to the OS.
				limitFrames := false
				if remainingMS > 0 && limitFrames {
					e.platform.Sleep(remainingMS - 1)
				}
			}

			// NOTE: Input update/state copying should always be handled
			// after any input should be recorded; I.E. before this line.
			// As a safety, input is the last thing to be updated before
			// this frame ends.
			core.InputUpdate(delta)

			// Update last time
			e.lastTime = currentTime
		}
	}

	return e.Shutdown()
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
		e.renderer = nil
	}
	// Pipelines outlive the renderer but not the device.
	if vr, ok := e.device.(*vulkan.VulkanRenderer); ok {
		if p, ok := e.solid.(*vulkan.Pipeline); ok {
			vr.DestroyPipeline(p)
		}
		if p, ok := e.wire.(*vulkan.Pipeline); ok {
			vr.DestroyPipeline(p)
		}
	}
	e.solid, e.wire = nil, nil
	if e.device != nil {
		if err := e.device.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
		e.device = nil
	}
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := core.InputShutdown(); err != nil {
		return err
	}
	if err := e.platform.Shutdown(); err != nil {
		return err
	}
	return nil
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Device() renderer.Device {
	return e.device
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

// GameState exposes the game's opaque state blob.
func (e *Engine) GameState() interface{} {
	return e.gameInstance.State
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		{
			core.LogInfo("EVENT_CODE_APPLICATION_QUIT recieved, shutting down.\n")
			e.isRunning = false
		}
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}

	keyCode := ke.KeyCode

	if context.Type == core.EVENT_CODE_KEY_PRESSED {
		switch keyCode {
		case core.KEY_ESCAPE:
			// NOTE: Technically firing an event to itself, but there may be other listeners.
			data := core.EventContext{
				Type: core.EVENT_CODE_APPLICATION_QUIT,
			}
			core.EventFire(data)
		case core.KEY_1:
			// Takes effect on the next frame snapshot, never mid-frame.
			e.renderer.ToggleWireframe()
			core.LogInfo("wireframe: %t", e.renderer.Wireframe())
		}
	}
}

func (e *Engine) onResized(context core.EventContext) {
	if context.Type == core.EVENT_CODE_RESIZED {
		se, ok := context.Data.(*core.SystemEvent)
		if !ok {
			core.LogError("wrong event associated with the event type `%d`", context.Type)
			return
		}

		width := se.WindowWidth
		height := se.WindowHeight

		// Check if different. If so, trigger a resize event.
		if width != e.width || height != e.height {
			e.width = width
			e.height = height

			core.LogDebug("Window resize: %d, %d", width, height)

			// Handle minimization
			if width == 0 || height == 0 {
				core.LogInfo("Window minimized, suspending application.")
				e.isSuspended = true
				return
			}
			if e.isSuspended {
				core.LogInfo("Window restored, resuming application.")
				e.isSuspended = false
			}
			e.gameInstance.FnOnResize(width, height)
		}
	}
}
