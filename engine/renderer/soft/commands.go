package soft

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

type opKind uint8

const (
	opSetViewport opKind = iota
	opClearTarget
	opBindHeap
	opBindPass
	opBindObject
	opBindGeometry
	opDrawIndexed
)

type recordedOp struct {
	kind opKind

	width, height uint32
	color         [4]float32
	heap          *descriptorHeap
	entry         uint32
	vertices      renderer.BufferView
	indices       renderer.BufferView
	indexCount    uint32
	startIndex    uint32
	baseVertex    int32
}

type commandBuffer struct {
	allocator *commandAllocator
	pipeline  renderer.PipelineState
	ops       []recordedOp
	closed    bool
	submitted bool
}

func (d *Device) RecordCommands(allocator renderer.CommandAllocator, pipeline renderer.PipelineState) (renderer.CommandBuffer, error) {
	alloc, ok := allocator.(*commandAllocator)
	if !ok || alloc.device != d {
		return nil, fmt.Errorf("%w: command allocator does not belong to this device", core.ErrPrecondition)
	}
	return &commandBuffer{
		allocator: alloc,
		pipeline:  pipeline,
	}, nil
}

func (cb *commandBuffer) SetViewport(width, height uint32) {
	cb.ops = append(cb.ops, recordedOp{kind: opSetViewport, width: width, height: height})
}

func (cb *commandBuffer) ClearTarget(color [4]float32) {
	cb.ops = append(cb.ops, recordedOp{kind: opClearTarget, color: color})
}

func (cb *commandBuffer) BindDescriptorHeap(heap renderer.DescriptorHeap) {
	h, _ := heap.(*descriptorHeap)
	cb.ops = append(cb.ops, recordedOp{kind: opBindHeap, heap: h})
}

func (cb *commandBuffer) BindPassConstants(entry uint32) {
	cb.ops = append(cb.ops, recordedOp{kind: opBindPass, entry: entry})
}

func (cb *commandBuffer) BindObjectConstants(entry uint32) {
	cb.ops = append(cb.ops, recordedOp{kind: opBindObject, entry: entry})
}

func (cb *commandBuffer) BindGeometry(vertices, indices renderer.BufferView) {
	cb.ops = append(cb.ops, recordedOp{kind: opBindGeometry, vertices: vertices, indices: indices})
}

func (cb *commandBuffer) DrawIndexed(indexCount, startIndex uint32, baseVertex int32) {
	cb.ops = append(cb.ops, recordedOp{kind: opDrawIndexed, indexCount: indexCount, startIndex: startIndex, baseVertex: baseVertex})
}

func (cb *commandBuffer) Close() error {
	if cb.closed {
		return fmt.Errorf("%w: command buffer closed twice", core.ErrPrecondition)
	}
	cb.closed = true
	return nil
}

// Submit enqueues a closed command buffer. Recorded commands are frozen from
// here on: execution walks the recorded ops, unaffected by anything the CPU
// does afterwards.
func (d *Device) Submit(rcb renderer.CommandBuffer) error {
	cb, ok := rcb.(*commandBuffer)
	if !ok {
		return fmt.Errorf("%w: command buffer does not belong to this device", core.ErrPrecondition)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !cb.closed {
		return fmt.Errorf("%w: submit of an open command buffer", core.ErrPrecondition)
	}
	if cb.submitted {
		return fmt.Errorf("%w: command buffer submitted twice", core.ErrPrecondition)
	}
	cb.submitted = true
	cb.allocator.inFlight++
	d.pending = append(d.pending, pendingOp{cb: cb})
	d.notifyLocked()
	return nil
}

// executeLocked plays back one submission the way the hardware would: it
// reads constant bytes out of the upload buffers at execution time, not at
// record time. A well-scheduled pipeline therefore shows each draw the data
// its frame wrote; a mis-scheduled one is caught red-handed by the trace.
func (d *Device) executeLocked(cb *commandBuffer) {
	d.submissions++

	var heap *descriptorHeap
	var passEntry, objectEntry uint32
	passBound, objectBound := false, false

	for _, op := range cb.ops {
		switch op.kind {
		case opBindHeap:
			heap = op.heap
		case opBindPass:
			passEntry = op.entry
			passBound = true
		case opBindObject:
			objectEntry = op.entry
			objectBound = true
		case opDrawIndexed:
			record := DrawRecord{
				Submission: d.submissions,
				Pipeline:   cb.pipeline,
				IndexCount: op.indexCount,
				StartIndex: op.startIndex,
				BaseVertex: op.baseVertex,
			}
			if heap == nil || !objectBound {
				d.execErrors = append(d.execErrors, fmt.Errorf("%w: draw without descriptor heap or object binding", core.ErrDeviceLost))
				continue
			}
			record.ObjectEntry = objectEntry
			objectBytes, err := d.readViewLocked(heap, objectEntry)
			if err != nil {
				d.execErrors = append(d.execErrors, err)
				continue
			}
			record.ObjectBytes = objectBytes
			if passBound {
				record.PassEntry = passEntry
				passBytes, err := d.readViewLocked(heap, passEntry)
				if err != nil {
					d.execErrors = append(d.execErrors, err)
					continue
				}
				record.PassBytes = passBytes
			}
			d.draws = append(d.draws, record)
		}
	}

	cb.allocator.inFlight--
}

func (d *Device) readViewLocked(heap *descriptorHeap, entry uint32) ([]byte, error) {
	if entry >= uint32(len(heap.entries)) {
		return nil, fmt.Errorf("%w: descriptor entry %d out of heap range [0,%d)", core.ErrDeviceLost, entry, len(heap.entries))
	}
	view := heap.entries[entry]
	if !view.written {
		return nil, fmt.Errorf("%w: draw through unwritten descriptor entry %d", core.ErrDeviceLost, entry)
	}
	buf, offset, err := d.resolveLocked(view.address, view.size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, view.size)
	copy(out, buf.data[offset:offset+view.size])
	return out, nil
}
