package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

func TestAlignUp(t *testing.T) {
	cases := []struct {
		value, alignment, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{255, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{80, 64, 128},
		{64, 64, 64},
		{100, 4, 100},
	}
	for _, c := range cases {
		require.Equal(t, c.want, renderer.AlignUp(c.value, c.alignment), "AlignUp(%d, %d)", c.value, c.alignment)
	}
}

func TestUploadRegionStride(t *testing.T) {
	t.Run("rounds the record size up to the device alignment", func(t *testing.T) {
		device := soft.New(soft.WithManualStep())
		defer device.Shutdown()

		region, err := renderer.NewUploadRegion(device, 4, 80)
		require.NoError(t, err)
		defer region.Release()

		require.Equal(t, uint64(256), region.RecordSize())
		require.Equal(t, uint32(4), region.SlotCount())
	})

	t.Run("honours a smaller device alignment", func(t *testing.T) {
		device := soft.New(soft.WithManualStep(), soft.WithAlignment(64))
		defer device.Shutdown()

		region, err := renderer.NewUploadRegion(device, 4, 80)
		require.NoError(t, err)
		defer region.Release()

		require.Equal(t, uint64(128), region.RecordSize())
	})

	t.Run("rejects empty regions", func(t *testing.T) {
		device := soft.New(soft.WithManualStep())
		defer device.Shutdown()

		_, err := renderer.NewUploadRegion(device, 0, 80)
		require.ErrorIs(t, err, core.ErrPrecondition)
		_, err = renderer.NewUploadRegion(device, 4, 0)
		require.ErrorIs(t, err, core.ErrPrecondition)
	})
}

func TestUploadRegionSlotAddresses(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	region, err := renderer.NewUploadRegion(device, 8, 64)
	require.NoError(t, err)
	defer region.Release()

	base := region.BaseAddress()
	stride := region.RecordSize()
	for slot := uint32(0); slot < region.SlotCount(); slot++ {
		want := base + renderer.GPUAddress(uint64(slot)*stride)
		require.Equal(t, want, region.SlotAddress(slot), "slot %d", slot)
	}
}

func TestUploadRegionWriteBounds(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	region, err := renderer.NewUploadRegion(device, 2, 64)
	require.NoError(t, err)
	defer region.Release()

	require.NoError(t, region.Write(0, make([]byte, 64)))
	require.NoError(t, region.Write(1, make([]byte, 32)))

	err = region.Write(2, make([]byte, 64))
	require.ErrorIs(t, err, core.ErrPrecondition)

	err = region.Write(0, make([]byte, int(region.RecordSize())+1))
	require.ErrorIs(t, err, core.ErrPrecondition)
}
