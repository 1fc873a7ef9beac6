package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

func TestTableLayoutOffsets(t *testing.T) {
	layout, err := renderer.NewTableLayout(3, 27)
	require.NoError(t, err)

	t.Run("object offsets are a bijection onto the object block", func(t *testing.T) {
		seen := make(map[uint32]bool)
		for frame := uint32(0); frame < 3; frame++ {
			for slot := uint32(0); slot < 27; slot++ {
				offset := layout.ObjectOffset(frame, slot)
				require.Less(t, offset, uint32(3*27))
				require.False(t, seen[offset], "offset %d assigned twice", offset)
				seen[offset] = true
			}
		}
		require.Len(t, seen, 3*27)
	})

	t.Run("pass offsets occupy the trailing region", func(t *testing.T) {
		for frame := uint32(0); frame < 3; frame++ {
			require.Equal(t, uint32(3*27)+frame, layout.PassOffset(frame))
		}
	})

	t.Run("heap size covers every entry", func(t *testing.T) {
		require.Equal(t, uint32((27+1)*3), layout.HeapSize())
	})

	t.Run("spot check", func(t *testing.T) {
		require.Equal(t, uint32(2*27+5), layout.ObjectOffset(2, 5))
	})
}

func TestTableLayoutValidation(t *testing.T) {
	_, err := renderer.NewTableLayout(0, 16)
	require.ErrorIs(t, err, core.ErrPrecondition)
	_, err = renderer.NewTableLayout(3, 0)
	require.ErrorIs(t, err, core.ErrPrecondition)
}

func TestTableLayoutBuild(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	layout, err := renderer.NewTableLayout(2, 4)
	require.NoError(t, err)

	ring, err := renderer.NewFrameRing(device, 2, 4, renderer.ObjectConstantsBytes, renderer.PassConstantsBytes)
	require.NoError(t, err)
	defer ring.Release()

	heap, err := layout.Build(device, ring)
	require.NoError(t, err)
	defer heap.Release()

	require.Equal(t, layout.HeapSize(), heap.Capacity())
}

func TestTableLayoutBuildRejectsMismatchedRing(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	layout, err := renderer.NewTableLayout(3, 4)
	require.NoError(t, err)

	ring, err := renderer.NewFrameRing(device, 2, 4, renderer.ObjectConstantsBytes, renderer.PassConstantsBytes)
	require.NoError(t, err)
	defer ring.Release()

	_, err = layout.Build(device, ring)
	require.ErrorIs(t, err, core.ErrPrecondition)
}
