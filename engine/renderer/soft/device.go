// Package soft provides a headless reference implementation of the renderer
// device contract. The "GPU" is a FIFO consumer over submitted command
// buffers that advances a monotonic timeline; it can run on its own
// goroutine or be stepped manually for deterministic tests.
package soft

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
)

const defaultAlignment = 256

// DrawRecord captures one executed draw call, including the constant bytes
// the consumer read at execution time. Tests use it to prove the
// synchronization contract: the bytes a draw observed are the bytes the CPU
// wrote for that frame, never a torn or later value.
type DrawRecord struct {
	// Submission is the 1-based index of the executed command buffer.
	Submission  int
	Pipeline    renderer.PipelineState
	PassEntry   uint32
	ObjectEntry uint32
	IndexCount  uint32
	StartIndex  uint32
	BaseVertex  int32
	// ObjectBytes and PassBytes are copies of the constant records as read
	// from the upload buffers during execution.
	ObjectBytes []byte
	PassBytes   []byte
}

type pendingOp struct {
	// Exactly one of cb / signal is meaningful.
	cb     *commandBuffer
	signal uint64
}

// Device is the software device. All state is guarded by mu; changed is
// closed and replaced on every state transition, giving waiters a one-shot
// wake-up.
type Device struct {
	mu      sync.Mutex
	changed chan struct{}

	completed  uint64
	lastSignal uint64
	pending    []pendingOp
	closed     bool

	auto        bool
	waitTimeout time.Duration
	alignment   uint64

	buffers     []*uploadBuffer
	nextAddress renderer.GPUAddress

	submissions int
	draws       []DrawRecord
	execErrors  []error
}

type Option func(*Device)

// WithManualStep disables the consumer goroutine; the test drives execution
// through Step.
func WithManualStep() Option {
	return func(d *Device) {
		d.auto = false
	}
}

// WithWaitTimeout overrides the fence wait timeout, after which waits fail
// with core.ErrDeviceLost.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		d.waitTimeout = timeout
	}
}

// WithAlignment overrides the reported minimum constant-buffer alignment.
func WithAlignment(alignment uint64) Option {
	return func(d *Device) {
		d.alignment = alignment
	}
}

func New(opts ...Option) *Device {
	d := &Device{
		changed:     make(chan struct{}),
		auto:        true,
		waitTimeout: 5 * time.Second,
		alignment:   defaultAlignment,
		nextAddress: 0x10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.auto {
		go d.run()
	}
	return d
}

func (d *Device) MinConstantAlignment() uint64 {
	return d.alignment
}

// notifyLocked wakes every waiter exactly once.
func (d *Device) notifyLocked() {
	close(d.changed)
	d.changed = make(chan struct{})
}

func (d *Device) run() {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		if len(d.pending) == 0 {
			ch := d.changed
			d.mu.Unlock()
			<-ch
			continue
		}
		d.stepLocked()
		d.mu.Unlock()
	}
}

// Step executes the next pending submission or signal in FIFO order.
// Returns false if nothing was pending. Only meaningful in manual mode.
func (d *Device) Step() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return false
	}
	d.stepLocked()
	return true
}

// StepAll drains every pending operation.
func (d *Device) StepAll() {
	for d.Step() {
	}
}

func (d *Device) stepLocked() {
	op := d.pending[0]
	d.pending = d.pending[1:]
	if op.cb != nil {
		d.executeLocked(op.cb)
	} else {
		d.completed = op.signal
	}
	d.notifyLocked()
}

func (d *Device) SignalTimeline(value uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if value <= d.lastSignal {
		return fmt.Errorf("%w: timeline signal %d is not after %d", core.ErrPrecondition, value, d.lastSignal)
	}
	d.lastSignal = value
	d.pending = append(d.pending, pendingOp{signal: value})
	d.notifyLocked()
	return nil
}

func (d *Device) CompletedTimelineValue() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

func (d *Device) WaitForTimelineValue(value uint64) error {
	deadline := time.Now().Add(d.waitTimeout)
	d.mu.Lock()
	for d.completed < value {
		ch := d.changed
		d.mu.Unlock()
		select {
		case <-ch:
		case <-time.After(time.Until(deadline)):
			return fmt.Errorf("timeline wait for value %d timed out after %s: %w", value, d.waitTimeout, core.ErrDeviceLost)
		}
		d.mu.Lock()
	}
	d.mu.Unlock()
	return nil
}

func (d *Device) WaitIdle() error {
	deadline := time.Now().Add(d.waitTimeout)
	d.mu.Lock()
	for len(d.pending) > 0 {
		if !d.auto {
			d.stepLocked()
			continue
		}
		ch := d.changed
		d.mu.Unlock()
		select {
		case <-ch:
		case <-time.After(time.Until(deadline)):
			return fmt.Errorf("wait idle timed out after %s: %w", d.waitTimeout, core.ErrDeviceLost)
		}
		d.mu.Lock()
	}
	d.mu.Unlock()
	return nil
}

func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.notifyLocked()
	return nil
}

// Draws returns a copy of every executed draw record, in execution order.
func (d *Device) Draws() []DrawRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DrawRecord, len(d.draws))
	copy(out, d.draws)
	return out
}

// ExecErrors returns errors the consumer hit while executing submissions,
// such as draws through unwritten descriptor entries.
func (d *Device) ExecErrors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]error, len(d.execErrors))
	copy(out, d.execErrors)
	return out
}
