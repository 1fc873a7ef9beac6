package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/soft"
)

func makeSubrange(t *testing.T, device renderer.Device, indexCount, startIndex uint32, baseVertex int32) renderer.GeometrySubrange {
	t.Helper()
	vertices, err := device.CreateVertexBuffer(make([]byte, 48*4), 48)
	require.NoError(t, err)
	indices, err := device.CreateIndexBuffer(make([]uint32, indexCount))
	require.NoError(t, err)
	return renderer.GeometrySubrange{
		Vertices:   vertices,
		Indices:    indices,
		IndexCount: indexCount,
		StartIndex: startIndex,
		BaseVertex: baseVertex,
	}
}

func TestCatalogAssignsSequentialSlots(t *testing.T) {
	device := soft.New(soft.WithManualStep())
	defer device.Shutdown()

	layout, err := renderer.NewTableLayout(2, 3)
	require.NoError(t, err)
	catalog := renderer.NewCatalog(layout)

	geo := makeSubrange(t, device, 6, 0, 0)
	for want := uint32(0); want < 3; want++ {
		item, err := catalog.Add(geo, math.NewMat4Identity())
		require.NoError(t, err)
		require.Equal(t, want, item.Slot())
	}
	require.Equal(t, 3, catalog.Len())

	_, err = catalog.Add(geo, math.NewMat4Identity())
	require.ErrorIs(t, err, core.ErrPrecondition)

	ids := make(map[string]bool)
	for i, item := range catalog.Items() {
		require.Equal(t, uint32(i), item.Slot())
		ids[item.ID().String()] = true
	}
	require.Len(t, ids, 3)
}

// framePipeline bundles everything one manually stepped frame loop needs.
type framePipeline struct {
	device  *soft.Device
	ring    *renderer.FrameRing
	sched   *renderer.Scheduler
	layout  renderer.TableLayout
	heap    renderer.DescriptorHeap
	catalog *renderer.Catalog
}

func newFramePipeline(t *testing.T, frameCount, objectCount uint32) *framePipeline {
	t.Helper()
	device := soft.New(soft.WithManualStep())
	t.Cleanup(func() { device.Shutdown() })

	layout, err := renderer.NewTableLayout(frameCount, objectCount)
	require.NoError(t, err)
	ring, err := renderer.NewFrameRing(device, frameCount, objectCount, renderer.ObjectConstantsBytes, renderer.PassConstantsBytes)
	require.NoError(t, err)
	t.Cleanup(ring.Release)
	heap, err := layout.Build(device, ring)
	require.NoError(t, err)
	t.Cleanup(heap.Release)

	return &framePipeline{
		device:  device,
		ring:    ring,
		sched:   renderer.NewScheduler(device, ring),
		layout:  layout,
		heap:    heap,
		catalog: renderer.NewCatalog(layout),
	}
}

// runFrame executes one full frame: claim the slot, refresh constants,
// record, submit and drain the consumer.
func (p *framePipeline) runFrame(t *testing.T, pipeline renderer.PipelineState) {
	t.Helper()
	fr, err := p.sched.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, p.catalog.RefreshObjects(fr))
	pass := renderer.PassConstants{}
	require.NoError(t, p.catalog.RefreshPass(fr, &pass))
	require.NoError(t, fr.Allocator().Reset())

	cb, err := p.device.RecordCommands(fr.Allocator(), pipeline)
	require.NoError(t, err)
	cb.SetViewport(640, 480)
	cb.ClearTarget([4]float32{0, 0, 0, 1})
	cb.BindDescriptorHeap(p.heap)
	cb.BindPassConstants(p.layout.PassOffset(p.ring.CurrentIndex()))
	p.catalog.Dispatch(cb, p.ring.CurrentIndex())
	require.NoError(t, cb.Close())
	require.NoError(t, p.sched.EndFrame(fr, cb))
	p.device.StepAll()
}

func objectRecordPrefix(world math.Mat4) []byte {
	record := renderer.ObjectConstants{World: world.Transpose()}
	out := make([]byte, renderer.ObjectConstantsBytes)
	copy(out, record.Bytes())
	return out
}

func TestCatalogDispatchOrderAndBindings(t *testing.T) {
	p := newFramePipeline(t, 2, 4)

	first, err := p.catalog.Add(makeSubrange(t, p.device, 36, 0, 0), math.NewMat4Identity())
	require.NoError(t, err)
	second, err := p.catalog.Add(makeSubrange(t, p.device, 60, 36, 24), math.NewMat4Translation(math.NewVec3(0, 1, 0)))
	require.NoError(t, err)

	p.runFrame(t, "solid")

	draws := p.device.Draws()
	require.Len(t, draws, 2)
	require.Empty(t, p.device.ExecErrors())

	// Submission order follows insertion order, frame index 0.
	require.Equal(t, p.layout.ObjectOffset(0, first.Slot()), draws[0].ObjectEntry)
	require.Equal(t, uint32(36), draws[0].IndexCount)
	require.Equal(t, uint32(0), draws[0].StartIndex)
	require.Equal(t, int32(0), draws[0].BaseVertex)

	require.Equal(t, p.layout.ObjectOffset(0, second.Slot()), draws[1].ObjectEntry)
	require.Equal(t, uint32(60), draws[1].IndexCount)
	require.Equal(t, uint32(36), draws[1].StartIndex)
	require.Equal(t, int32(24), draws[1].BaseVertex)

	for _, d := range draws {
		require.Equal(t, p.layout.PassOffset(0), d.PassEntry)
	}
}

func TestCatalogTransformConvergesAcrossRingSlots(t *testing.T) {
	p := newFramePipeline(t, 2, 1)

	item, err := p.catalog.Add(makeSubrange(t, p.device, 6, 0, 0), math.NewMat4Identity())
	require.NoError(t, err)

	// Two frames propagate the initial transform into both ring slots.
	p.runFrame(t, "solid")
	p.runFrame(t, "solid")

	moved := math.NewMat4Translation(math.NewVec3(3, 0, -2))
	item.SetWorld(moved)

	// The next two frames each rewrite their own slot once; from then on
	// every draw sees the new transform regardless of frame index.
	for i := 0; i < 4; i++ {
		p.runFrame(t, "solid")
	}

	draws := p.device.Draws()
	require.Len(t, draws, 6)
	require.Empty(t, p.device.ExecErrors())

	want := objectRecordPrefix(moved)
	identity := objectRecordPrefix(math.NewMat4Identity())
	require.Equal(t, identity, draws[0].ObjectBytes[:len(identity)])
	require.Equal(t, identity, draws[1].ObjectBytes[:len(identity)])
	for _, d := range draws[2:] {
		require.Equal(t, want, d.ObjectBytes[:len(want)], "submission %d", d.Submission)
	}
}

func TestCatalogPassEntryFollowsFrameIndex(t *testing.T) {
	p := newFramePipeline(t, 3, 1)

	_, err := p.catalog.Add(makeSubrange(t, p.device, 6, 0, 0), math.NewMat4Identity())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		p.runFrame(t, "solid")
	}

	draws := p.device.Draws()
	require.Len(t, draws, 6)
	for i, d := range draws {
		frameIndex := uint32(i % 3)
		require.Equal(t, p.layout.PassOffset(frameIndex), d.PassEntry, "frame %d", i)
		require.Equal(t, p.layout.ObjectOffset(frameIndex, 0), d.ObjectEntry, "frame %d", i)
	}
}
