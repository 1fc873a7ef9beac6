package soft_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

func TestTimelineSignalsAreMonotonic(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	require.NoError(t, device.SignalTimeline(1))
	require.NoError(t, device.SignalTimeline(2))

	err := device.SignalTimeline(2)
	require.ErrorIs(t, err, core.ErrPrecondition)
	err = device.SignalTimeline(0)
	require.ErrorIs(t, err, core.ErrPrecondition)
}

func TestManualStepAdvancesTimeline(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	require.NoError(t, device.SignalTimeline(1))
	require.NoError(t, device.SignalTimeline(2))
	require.Zero(t, device.CompletedTimelineValue())

	require.True(t, device.Step())
	require.Equal(t, uint64(1), device.CompletedTimelineValue())
	require.True(t, device.Step())
	require.Equal(t, uint64(2), device.CompletedTimelineValue())
	require.False(t, device.Step())
}

func TestWaitTimesOutAsDeviceLost(t *testing.T) {
	device := soft.New(soft.WithManualStep(), soft.WithWaitTimeout(20*time.Millisecond))
	defer device.Shutdown()

	err := device.WaitForTimelineValue(5)
	require.ErrorIs(t, err, core.ErrDeviceLost)
}

func TestAutoConsumerCompletesWaits(t *testing.T) {
	device := soft.New()
	defer device.Shutdown()

	require.NoError(t, device.SignalTimeline(1))
	require.NoError(t, device.WaitForTimelineValue(1))
	require.Equal(t, uint64(1), device.CompletedTimelineValue())
}

func submitClosedBuffer(t *testing.T, device *soft.Device, allocator renderer.CommandAllocator) renderer.CommandBuffer {
	t.Helper()
	cb, err := device.RecordCommands(allocator, "solid")
	require.NoError(t, err)
	require.NoError(t, cb.Close())
	require.NoError(t, device.Submit(cb))
	return cb
}

func TestCommandBufferLifecycleErrors(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	allocator, err := device.CreateCommandAllocator()
	require.NoError(t, err)
	defer allocator.Release()

	t.Run("submit of an open buffer", func(t *testing.T) {
		cb, err := device.RecordCommands(allocator, "solid")
		require.NoError(t, err)
		err = device.Submit(cb)
		require.ErrorIs(t, err, core.ErrPrecondition)
	})

	t.Run("double close", func(t *testing.T) {
		cb, err := device.RecordCommands(allocator, "solid")
		require.NoError(t, err)
		require.NoError(t, cb.Close())
		err = cb.Close()
		require.ErrorIs(t, err, core.ErrPrecondition)
	})

	t.Run("double submit", func(t *testing.T) {
		cb := submitClosedBuffer(t, device, allocator)
		err := device.Submit(cb)
		require.ErrorIs(t, err, core.ErrPrecondition)
		device.StepAll()
	})
}

func TestAllocatorResetWhileInFlight(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	allocator, err := device.CreateCommandAllocator()
	require.NoError(t, err)
	defer allocator.Release()

	require.NoError(t, allocator.Reset())

	submitClosedBuffer(t, device, allocator)
	err = allocator.Reset()
	require.ErrorIs(t, err, core.ErrPrecondition)

	require.True(t, device.Step())
	require.NoError(t, allocator.Reset())
}

// drawThroughHeap records one draw bound to heap entry 0 and submits it.
func drawThroughHeap(t *testing.T, device *soft.Device, allocator renderer.CommandAllocator, heap renderer.DescriptorHeap) {
	t.Helper()
	vertices, err := device.CreateVertexBuffer(make([]byte, 96), 48)
	require.NoError(t, err)
	indices, err := device.CreateIndexBuffer([]uint32{0, 1, 2})
	require.NoError(t, err)

	cb, err := device.RecordCommands(allocator, "solid")
	require.NoError(t, err)
	cb.BindDescriptorHeap(heap)
	cb.BindObjectConstants(0)
	cb.BindGeometry(vertices, indices)
	cb.DrawIndexed(3, 0, 0)
	require.NoError(t, cb.Close())
	require.NoError(t, device.Submit(cb))
}

func TestDrawReadsConstantsAtExecutionTime(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	buffer, err := device.CreateUploadBuffer(256)
	require.NoError(t, err)
	defer buffer.Release()

	heap, err := device.CreateDescriptorHeap(1)
	require.NoError(t, err)
	defer heap.Release()
	require.NoError(t, heap.WriteConstantView(0, buffer.Address(), 16))

	allocator, err := device.CreateCommandAllocator()
	require.NoError(t, err)
	defer allocator.Release()

	copy(buffer.Bytes(), []byte("frame-1 contents"))
	drawThroughHeap(t, device, allocator, heap)

	// Overwrite the mapped memory after submission but before execution.
	// The consumer reads at execution time, so the draw observes the later
	// bytes; this is exactly the hazard the frame ring exists to prevent.
	copy(buffer.Bytes(), []byte("frame-2 contents"))
	device.StepAll()

	draws := device.Draws()
	require.Len(t, draws, 1)
	require.Empty(t, device.ExecErrors())
	require.Equal(t, []byte("frame-2 contents"), draws[0].ObjectBytes)
	require.Equal(t, 1, draws[0].Submission)
	require.Equal(t, uint32(3), draws[0].IndexCount)
}

func TestDrawThroughUnwrittenDescriptorFailsExecution(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	heap, err := device.CreateDescriptorHeap(1)
	require.NoError(t, err)
	defer heap.Release()

	allocator, err := device.CreateCommandAllocator()
	require.NoError(t, err)
	defer allocator.Release()

	drawThroughHeap(t, device, allocator, heap)
	device.StepAll()

	require.Empty(t, device.Draws())
	errs := device.ExecErrors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], core.ErrDeviceLost)
}

func TestDrawThroughReleasedBufferFailsExecution(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	buffer, err := device.CreateUploadBuffer(64)
	require.NoError(t, err)

	heap, err := device.CreateDescriptorHeap(1)
	require.NoError(t, err)
	defer heap.Release()
	require.NoError(t, heap.WriteConstantView(0, buffer.Address(), 16))

	allocator, err := device.CreateCommandAllocator()
	require.NoError(t, err)
	defer allocator.Release()

	drawThroughHeap(t, device, allocator, heap)
	buffer.Release()
	device.StepAll()

	require.Empty(t, device.Draws())
	errs := device.ExecErrors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], core.ErrDeviceLost)
}

func TestDescriptorHeapBounds(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	heap, err := device.CreateDescriptorHeap(4)
	require.NoError(t, err)
	defer heap.Release()

	require.Equal(t, uint32(4), heap.Capacity())
	err = heap.WriteConstantView(4, 0x10000, 64)
	require.ErrorIs(t, err, core.ErrPrecondition)

	_, err = device.CreateDescriptorHeap(0)
	require.ErrorIs(t, err, core.ErrPrecondition)
}

func TestUploadBufferAddressesDoNotOverlap(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	a, err := device.CreateUploadBuffer(300)
	require.NoError(t, err)
	defer a.Release()
	b, err := device.CreateUploadBuffer(300)
	require.NoError(t, err)
	defer b.Release()

	require.Len(t, a.Bytes(), 300)
	require.GreaterOrEqual(t, uint64(b.Address()), uint64(a.Address())+300)
}

func TestWaitIdleDrainsManualConsumer(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	require.NoError(t, device.SignalTimeline(1))
	require.NoError(t, device.SignalTimeline(2))
	require.NoError(t, device.WaitIdle())
	require.Equal(t, uint64(2), device.CompletedTimelineValue())
}
