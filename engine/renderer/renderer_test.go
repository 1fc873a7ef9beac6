package renderer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

type stubViewport struct {
	width, height uint32
}

func (v stubViewport) FramebufferSize() (uint32, uint32) {
	return v.width, v.height
}

func newTestRenderer(t *testing.T, device renderer.Device, framesInFlight uint32) *renderer.Renderer {
	t.Helper()
	r, err := renderer.New(device, stubViewport{1280, 720}, renderer.Settings{
		FramesInFlight: framesInFlight,
		MaxObjects:     8,
		ClearColor:     [4]float32{0, 0, 0.2, 1},
	}, "solid", "wireframe")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Shutdown())
	})
	return r
}

func TestRendererUpdateRenderAlternate(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	require.NoError(t, r.Update(0.016))
	err := r.Update(0.016)
	require.ErrorIs(t, err, core.ErrPrecondition)

	require.NoError(t, r.Render())
	err = r.Render()
	require.ErrorIs(t, err, core.ErrPrecondition)
}

func TestRendererLeadsGPUByAtMostRingSize(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 3)

	// Three frames fit in the ring with the consumer completely stalled.
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Update(0.016))
		require.NoError(t, r.Render())
	}

	// The fourth frame needs slot 0 back and must wait for its fence.
	began := make(chan error, 1)
	go func() {
		began <- r.Update(0.016)
	}()
	select {
	case <-began:
		t.Fatal("Update returned while its ring slot was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	// Execute frame 1's command buffer and timeline signal.
	require.True(t, device.Step())
	require.True(t, device.Step())

	select {
	case err := <-began:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Update did not return after the GPU retired the slot")
	}
	require.NoError(t, r.Render())
}

func TestRendererWireframeTakesEffectNextFrame(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	_, err := r.Catalog().Add(makeSubrange(t, device, 6, 0, 0), math.NewMat4Identity())
	require.NoError(t, err)

	require.NoError(t, r.Update(0.016))
	// Flipped mid-frame: the snapshot is already taken, so this frame still
	// draws solid.
	r.SetWireframe(true)
	require.False(t, r.Snapshot().Wireframe)
	require.NoError(t, r.Render())
	device.StepAll()

	require.NoError(t, r.Update(0.016))
	require.True(t, r.Snapshot().Wireframe)
	require.NoError(t, r.Render())
	device.StepAll()

	draws := device.Draws()
	require.Len(t, draws, 2)
	require.Equal(t, "solid", draws[0].Pipeline)
	require.Equal(t, "wireframe", draws[1].Pipeline)
}

func TestRendererClearColorSnapshot(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	require.NoError(t, r.Update(0.016))
	r.SetClearColor([4]float32{1, 0, 0, 1})
	require.Equal(t, [4]float32{0, 0, 0.2, 1}, r.Snapshot().ClearColor)
	require.NoError(t, r.Render())
	device.StepAll()

	require.NoError(t, r.Update(0.016))
	require.Equal(t, [4]float32{1, 0, 0, 1}, r.Snapshot().ClearColor)
	require.NoError(t, r.Render())
	device.StepAll()
}

func TestRendererDrawsEverySubmittedFrame(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	item, err := r.Catalog().Add(makeSubrange(t, device, 36, 0, 0), math.NewMat4Identity())
	require.NoError(t, err)

	layout := r.Layout()
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Update(0.016))
		require.NoError(t, r.Render())
		device.StepAll()
	}

	draws := device.Draws()
	require.Len(t, draws, 4)
	require.Empty(t, device.ExecErrors())
	for i, d := range draws {
		frameIndex := uint32(i % 2)
		require.Equal(t, layout.ObjectOffset(frameIndex, item.Slot()), d.ObjectEntry)
		require.Equal(t, layout.PassOffset(frameIndex), d.PassEntry)
		require.Equal(t, uint32(36), d.IndexCount)
		require.NotEmpty(t, d.PassBytes)
	}
}

// The key handler and the config watcher flip the pending toggles from
// their own goroutines; the frame thread must be able to snapshot them
// concurrently. Run with the race detector enabled.
func TestRendererTogglesFromOtherGoroutines(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				r.ToggleWireframe()
				_ = r.Wireframe()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				if i%2 == 0 {
					r.SetClearColor([4]float32{0, 0, 1, 1})
				} else {
					r.SetClearColor([4]float32{1, 0, 1, 1})
				}
			}
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, r.Update(0.016))
		require.NoError(t, r.Render())
		device.StepAll()
	}
	close(stop)
	wg.Wait()

	// The snapshot always holds one of the colors actually written, never a
	// torn mix.
	c := r.Snapshot().ClearColor
	require.Contains(t, [][4]float32{{0, 0, 1, 1}, {1, 0, 1, 1}, {0, 0, 0.2, 1}}, c)
}

func TestRendererBlockedFrameObservesLatestTransform(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 3)

	spinner, err := r.Catalog().Add(makeSubrange(t, device, 36, 0, 0), math.NewMat4Identity())
	require.NoError(t, err)
	pillarBase := math.NewMat4Translation(math.NewVec3(5, 0, 0))
	pillar, err := r.Catalog().Add(makeSubrange(t, device, 60, 36, 24), pillarBase)
	require.NoError(t, err)

	// Fill the ring: frames 1-3 submitted with the consumer stalled.
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Update(0.016))
		require.NoError(t, r.Render())
	}

	// Mutate before frame 4. Frame 4 reuses slot 0 once fence 1 is reached
	// and must rewrite the slot's copy of the transform.
	moved := math.NewMat4Translation(math.NewVec3(0, 2, 0))
	spinner.SetWorld(moved)

	began := make(chan error, 1)
	go func() {
		began <- r.Update(0.016)
	}()
	select {
	case <-began:
		t.Fatal("Update returned while slot 0 was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	// Retire frame 1: execute its command buffer and its timeline signal.
	require.True(t, device.Step())
	require.True(t, device.Step())

	select {
	case err := <-began:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Update did not return after fence 1 was reached")
	}
	require.NoError(t, r.Render())
	device.StepAll()

	draws := device.Draws()
	require.Len(t, draws, 8)
	require.Empty(t, device.ExecErrors())

	layout := r.Layout()

	// Frame 1 executed before slot 0 was reused, so its draw kept the old
	// transform.
	identityRec := objectRecordPrefix(math.NewMat4Identity())
	require.Equal(t, 1, draws[0].Submission)
	require.Equal(t, identityRec, draws[0].ObjectBytes[:len(identityRec)])

	// Frame 4 landed back in slot 0 and drew the mutated transform.
	movedRec := objectRecordPrefix(moved)
	require.Equal(t, 4, draws[6].Submission)
	require.Equal(t, layout.ObjectOffset(0, spinner.Slot()), draws[6].ObjectEntry)
	require.Equal(t, movedRec, draws[6].ObjectBytes[:len(movedRec)])

	// The untouched item kept its transform in the reused slot.
	pillarRec := objectRecordPrefix(pillarBase)
	require.Equal(t, layout.ObjectOffset(0, pillar.Slot()), draws[7].ObjectEntry)
	require.Equal(t, pillarRec, draws[7].ObjectBytes[:len(pillarRec)])
}

func TestRendererFailedUpdateCanBeRetried(t *testing.T) {
	device := soft.New(soft.WithManualStep(), soft.WithWaitTimeout(20*time.Millisecond))
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	for i := 0; i < 2; i++ {
		require.NoError(t, r.Update(0.016))
		require.NoError(t, r.Render())
	}

	// The stalled consumer fails the fence wait. The failed frame never
	// claims its slot, so the retry reports the real failure instead of a
	// bogus double-Update.
	err := r.Update(0.016)
	require.ErrorIs(t, err, core.ErrDeviceLost)
	err = r.Update(0.016)
	require.ErrorIs(t, err, core.ErrDeviceLost)
	require.NotErrorIs(t, err, core.ErrPrecondition)

	err = r.Render()
	require.ErrorIs(t, err, core.ErrPrecondition)

	// Once the GPU catches up the pipeline resumes.
	device.StepAll()
	require.NoError(t, r.Update(0.016))
	require.NoError(t, r.Render())
}

func TestRendererSnapshotTimers(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()
	r := newTestRenderer(t, device, 2)

	require.NoError(t, r.Update(0.25))
	require.InDelta(t, 0.25, r.Snapshot().TotalTime, 1e-6)
	require.InDelta(t, 0.25, r.Snapshot().DeltaTime, 1e-6)
	require.NoError(t, r.Render())
	device.StepAll()

	require.NoError(t, r.Update(0.5))
	require.InDelta(t, 0.75, r.Snapshot().TotalTime, 1e-6)
	require.InDelta(t, 0.5, r.Snapshot().DeltaTime, 1e-6)
	require.NoError(t, r.Render())
	device.StepAll()
}
