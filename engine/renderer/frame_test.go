package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

func newTestRing(t *testing.T, device renderer.Device, frameCount uint32) *renderer.FrameRing {
	t.Helper()
	ring, err := renderer.NewFrameRing(device, frameCount, 4, renderer.ObjectConstantsBytes, renderer.PassConstantsBytes)
	require.NoError(t, err)
	t.Cleanup(ring.Release)
	return ring
}

func TestFrameRingRejectsSingleSlot(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	_, err := renderer.NewFrameRing(device, 1, 4, renderer.ObjectConstantsBytes, renderer.PassConstantsBytes)
	require.ErrorIs(t, err, core.ErrPrecondition)
}

func TestFrameRingAdvanceWraps(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	ring := newTestRing(t, device, 3)
	require.Equal(t, uint32(3), ring.Count())

	// The first Advance lands on slot 0, then the index cycles.
	wantOrder := []uint32{0, 1, 2, 0, 1, 2, 0}
	for i, want := range wantOrder {
		fr := ring.Advance()
		require.Equal(t, want, ring.CurrentIndex(), "advance %d", i)
		require.Same(t, ring.At(want), fr)
		require.Same(t, fr, ring.Current())
	}
}

func TestFrameRingFenceValues(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	ring := newTestRing(t, device, 2)

	for i := uint32(0); i < ring.Count(); i++ {
		require.Zero(t, ring.At(i).FenceValue(), "frame %d should start unsubmitted", i)
	}

	ring.Advance()
	ring.SetCurrentFenceValue(7)
	require.Equal(t, uint64(7), ring.CurrentFenceValue())
	require.Equal(t, uint64(7), ring.At(0).FenceValue())
	require.Zero(t, ring.At(1).FenceValue())
}

func TestFrameResourceOwnsItsRegions(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	ring := newTestRing(t, device, 2)

	a := ring.At(0)
	b := ring.At(1)
	require.NotSame(t, a.Allocator(), b.Allocator())
	require.NotEqual(t, a.ObjectConstants().BaseAddress(), b.ObjectConstants().BaseAddress())
	require.NotEqual(t, a.PassConstants().BaseAddress(), b.PassConstants().BaseAddress())
	require.Equal(t, uint32(1), a.PassConstants().SlotCount())
}
