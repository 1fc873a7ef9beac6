package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
)

// FrameState describes where a ring slot sits on the CPU/GPU timeline.
type FrameState uint8

const (
	// FrameStateFree means the slot has never been submitted.
	FrameStateFree FrameState = iota
	// FrameStateInFlight means the slot was submitted and the GPU may still
	// be consuming it.
	FrameStateInFlight
	// FrameStateRetired means the GPU has reached the slot's fence value and
	// the slot is safe to reuse.
	FrameStateRetired
)

// Scheduler owns the frame pipeline's synchronization policy: it decides
// when the CPU may start writing into a ring slot, and it assigns the
// strictly increasing timeline value for each submitted frame. The fence
// wait in BeginFrame is the only blocking point in the whole pipeline; it
// bounds CPU lead time to at most N-1 frames ahead of the GPU.
type Scheduler struct {
	device Device
	ring   *FrameRing

	// nextTimeline is the single global monotonically increasing submission
	// counter. Incremented exactly once per submitted frame, never reused,
	// never decremented.
	nextTimeline uint64
}

func NewScheduler(device Device, ring *FrameRing) *Scheduler {
	return &Scheduler{
		device: device,
		ring:   ring,
	}
}

// State classifies a frame resource against the current completed timeline.
func (s *Scheduler) State(fr *FrameResource) FrameState {
	fence := fr.FenceValue()
	if fence == 0 {
		return FrameStateFree
	}
	if s.device.CompletedTimelineValue() >= fence {
		return FrameStateRetired
	}
	return FrameStateInFlight
}

// BeginFrame advances the ring and, if the new current slot is still in
// flight on the GPU, blocks until its fence value has been reached. On
// return the slot's upload regions and command allocator are safe to reuse.
// The wait is always on a past submission, never the current one, so forward
// progress only depends on the GPU making progress.
func (s *Scheduler) BeginFrame() (*FrameResource, error) {
	fr := s.ring.Advance()

	fence := fr.FenceValue()
	if fence == 0 {
		// Never submitted; nothing to wait on.
		return fr, nil
	}
	if s.device.CompletedTimelineValue() >= fence {
		// Already retired.
		return fr, nil
	}
	if err := s.device.WaitForTimelineValue(fence); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			core.LogError("frame scheduler: fence wait for value %d failed: %s", fence, err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("frame scheduler: fence wait for value %d: %w", fence, err)
	}
	return fr, nil
}

// EndFrame submits the recorded commands for the current frame, stamps the
// frame with a fresh timeline value and asks the GPU to signal it once prior
// work completes. A frame is submitted atomically or not at all: on submit
// failure no timeline value is consumed.
func (s *Scheduler) EndFrame(fr *FrameResource, cb CommandBuffer) error {
	if err := s.device.Submit(cb); err != nil {
		return err
	}
	s.nextTimeline++
	fr.SetFenceValue(s.nextTimeline)
	return s.device.SignalTimeline(s.nextTimeline)
}

// LastSubmittedValue returns the most recently assigned timeline value.
func (s *Scheduler) LastSubmittedValue() uint64 {
	return s.nextTimeline
}
