package renderer

import (
	"unsafe"

	"github.com/spaghettifunk/prisma/engine/math"
)

// ObjectConstants is the fixed-size per-object record. Matrices are stored
// transposed, ready for shader consumption.
type ObjectConstants struct {
	World math.Mat4
}

// PassConstants is the fixed-size per-pass record holding camera state,
// viewport dimensions and timers. Rebuilt from scratch every frame. All
// fields are float32 so the in-memory layout is packed and stable.
type PassConstants struct {
	View             math.Mat4
	Proj             math.Mat4
	ViewProj         math.Mat4
	EyePos           math.Vec3
	Pad0             float32
	RenderTargetSize math.Vec2
	NearZ            float32
	FarZ             float32
	TotalTime        float32
	DeltaTime        float32
	Pad1             math.Vec2
}

const (
	ObjectConstantsBytes = uint64(unsafe.Sizeof(ObjectConstants{}))
	PassConstantsBytes   = uint64(unsafe.Sizeof(PassConstants{}))
)

// Bytes reinterprets the record as its raw byte representation for copying
// into an upload region slot.
func (oc *ObjectConstants) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(oc)), int(unsafe.Sizeof(*oc)))
}

func (pc *PassConstants) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(pc)), int(unsafe.Sizeof(*pc)))
}
