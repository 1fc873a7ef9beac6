package core

import (
	"errors"
)

var (
	// ErrPrecondition indicates a programming error in the caller, such as an
	// out-of-range slot index or a record that does not fit its upload slot.
	// It is never recoverable; construction should abort rather than risk
	// corrupting memory the GPU may read.
	ErrPrecondition = errors.New("precondition violation")

	// ErrDeviceLost indicates the GPU failed or a fence wait exceeded its
	// timeout. The frame pipeline cannot continue; a full device
	// reinitialization is required.
	ErrDeviceLost = errors.New("device lost")

	ErrUnknown = errors.New("unknown")
)
