package renderer

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
)

// Settings configures the frame pipeline at startup.
type Settings struct {
	FramesInFlight uint32
	MaxObjects     uint32
	ClearColor     [4]float32
	Wireframe      bool
}

// FrameSnapshot is the immutable per-frame view of all mutable state the
// render pass depends on. It is built once at the start of Update and passed
// through Render unchanged, so toggles flipped mid-frame (wireframe, clear
// color, camera moves) only take effect on the next frame.
type FrameSnapshot struct {
	View       math.Mat4
	Proj       math.Mat4
	ViewProj   math.Mat4
	Eye        math.Vec3
	Width      uint32
	Height     uint32
	ClearColor [4]float32
	Wireframe  bool
	TotalTime  float32
	DeltaTime  float32
}

// Renderer drives the frame-in-flight pipeline: advance the ring, wait on
// the fence if the slot is still consumed, refresh dirty constants, record
// and submit the frame, signal a new timeline value. Update and Render are
// called once per logical frame, in that order, from a single thread.
type Renderer struct {
	device    Device
	ring      *FrameRing
	scheduler *Scheduler
	layout    TableLayout
	heap      DescriptorHeap
	catalog   *Catalog
	camera    *Camera
	viewport  ViewportProvider

	solidPipeline PipelineState
	wirePipeline  PipelineState

	// Pending toggles, folded into the snapshot at the next Update. Guarded
	// by toggleMu: the key handler and the config watcher flip them from
	// their own goroutines while the frame thread reads them.
	toggleMu   sync.Mutex
	wireframe  bool
	clearColor [4]float32

	totalTime float64
	snapshot  FrameSnapshot
	current   *FrameResource
}

func New(device Device, viewport ViewportProvider, settings Settings, solid, wire PipelineState) (*Renderer, error) {
	layout, err := NewTableLayout(settings.FramesInFlight, settings.MaxObjects)
	if err != nil {
		return nil, err
	}
	ring, err := NewFrameRing(device, settings.FramesInFlight, settings.MaxObjects, ObjectConstantsBytes, PassConstantsBytes)
	if err != nil {
		return nil, err
	}
	heap, err := layout.Build(device, ring)
	if err != nil {
		ring.Release()
		return nil, err
	}

	core.LogInfo("renderer initialized: %d frames in flight, %d object slots, %d-byte constant stride",
		settings.FramesInFlight, settings.MaxObjects, ring.At(0).ObjectConstants().RecordSize())

	return &Renderer{
		device:        device,
		ring:          ring,
		scheduler:     NewScheduler(device, ring),
		layout:        layout,
		heap:          heap,
		catalog:       NewCatalog(layout),
		camera:        NewCamera(),
		viewport:      viewport,
		solidPipeline: solid,
		wirePipeline:  wire,
		wireframe:     settings.Wireframe,
		clearColor:    settings.ClearColor,
	}, nil
}

func (r *Renderer) Catalog() *Catalog {
	return r.catalog
}

func (r *Renderer) Camera() *Camera {
	return r.camera
}

func (r *Renderer) Layout() TableLayout {
	return r.layout
}

// SetWireframe flips the global pipeline selector. Takes effect on the next
// frame snapshot; frames already recorded or submitted are unaffected.
func (r *Renderer) SetWireframe(enabled bool) {
	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()
	r.wireframe = enabled
}

func (r *Renderer) ToggleWireframe() {
	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()
	r.wireframe = !r.wireframe
}

func (r *Renderer) Wireframe() bool {
	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()
	return r.wireframe
}

func (r *Renderer) SetClearColor(color [4]float32) {
	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()
	r.clearColor = color
}

// Snapshot returns the snapshot of the frame currently being prepared.
func (r *Renderer) Snapshot() FrameSnapshot {
	return r.snapshot
}

// Update starts a new logical frame: it snapshots all mutable render state,
// claims the next ring slot (blocking only if the GPU still consumes it) and
// refreshes the slot's constant data. Must be followed by exactly one Render.
func (r *Renderer) Update(deltaTime float64) error {
	if r.current != nil {
		return fmt.Errorf("%w: Update called twice without Render", core.ErrPrecondition)
	}

	r.totalTime += deltaTime
	width, height := r.viewport.FramebufferSize()
	r.camera.SetAspect(width, height)

	r.toggleMu.Lock()
	wireframe := r.wireframe
	clearColor := r.clearColor
	r.toggleMu.Unlock()

	view := r.camera.View()
	proj := r.camera.Proj()
	r.snapshot = FrameSnapshot{
		View:       view,
		Proj:       proj,
		ViewProj:   proj.Mul(view),
		Eye:        r.camera.Eye(),
		Width:      width,
		Height:     height,
		ClearColor: clearColor,
		Wireframe:  wireframe,
		TotalTime:  float32(r.totalTime),
		DeltaTime:  float32(deltaTime),
	}

	fr, err := r.scheduler.BeginFrame()
	if err != nil {
		return err
	}

	if err := r.catalog.RefreshObjects(fr); err != nil {
		return err
	}

	pass := PassConstants{
		View:             r.snapshot.View.Transpose(),
		Proj:             r.snapshot.Proj.Transpose(),
		ViewProj:         r.snapshot.ViewProj.Transpose(),
		EyePos:           r.snapshot.Eye,
		RenderTargetSize: math.NewVec2(float32(width), float32(height)),
		NearZ:            r.camera.NearZ(),
		FarZ:             r.camera.FarZ(),
		TotalTime:        r.snapshot.TotalTime,
		DeltaTime:        r.snapshot.DeltaTime,
	}
	if err := r.catalog.RefreshPass(fr, &pass); err != nil {
		return err
	}

	// The slot is claimed only once the frame's constants have landed, so a
	// failed Update leaves the renderer ready to report the next real error
	// instead of a bogus double-Update.
	r.current = fr
	return nil
}

// Render records and submits the frame prepared by the last Update. The
// frame is submitted atomically: any recording error abandons it without
// consuming a timeline value.
func (r *Renderer) Render() error {
	fr := r.current
	if fr == nil {
		return fmt.Errorf("%w: Render called without a preceding Update", core.ErrPrecondition)
	}
	r.current = nil

	// Safe: BeginFrame already proved the GPU is done with this allocator.
	if err := fr.Allocator().Reset(); err != nil {
		return err
	}

	pipeline := r.solidPipeline
	if r.snapshot.Wireframe {
		pipeline = r.wirePipeline
	}

	cb, err := r.device.RecordCommands(fr.Allocator(), pipeline)
	if err != nil {
		return err
	}
	cb.SetViewport(r.snapshot.Width, r.snapshot.Height)
	cb.ClearTarget(r.snapshot.ClearColor)
	cb.BindDescriptorHeap(r.heap)
	cb.BindPassConstants(r.layout.PassOffset(r.ring.CurrentIndex()))
	r.catalog.Dispatch(cb, r.ring.CurrentIndex())
	if err := cb.Close(); err != nil {
		return err
	}

	return r.scheduler.EndFrame(fr, cb)
}

// Shutdown blocks until the GPU has consumed every in-flight frame, then
// releases all pipeline resources. Nothing is freed while a submission might
// still reference it.
func (r *Renderer) Shutdown() error {
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	if r.heap != nil {
		r.heap.Release()
		r.heap = nil
	}
	if r.ring != nil {
		r.ring.Release()
		r.ring = nil
	}
	return nil
}
