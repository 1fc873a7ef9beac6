package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_ENTER     KeyCode = 0x0D
	KEY_TAB       KeyCode = 0x09
	KEY_SHIFT     KeyCode = 0x10
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_1         KeyCode = 0x31
	KEY_2         KeyCode = 0x32
	KEY_3         KeyCode = 0x33
	KEY_4         KeyCode = 0x34
	KEY_5         KeyCode = 0x35
	KEY_6         KeyCode = 0x36
	KEY_7         KeyCode = 0x37
	KEY_8         KeyCode = 0x38
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_B         KeyCode = 0x42
	KEY_C         KeyCode = 0x43
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_F         KeyCode = 0x46
	KEY_Q         KeyCode = 0x51
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_W         KeyCode = 0x57
	KEY_X         KeyCode = 0x58
	KEY_Z         KeyCode = 0x5A

	MAX_KEYS = 256
)

type keyboardState struct {
	keys [MAX_KEYS]bool
}

type mouseState struct {
	posX, posY float64
	buttons    [BUTTON_MAX_BUTTONS]bool
}

// Input state holds current and previous frame states for keyboard and mouse.
// The previous state is copied once per frame, after all input for the frame
// has been recorded.
type inputState struct {
	keyboardCurrent  keyboardState
	keyboardPrevious keyboardState
	mouseCurrent     mouseState
	mousePrevious    mouseState
}

var onceInput sync.Once
var inState *inputState

func InputInitialize() error {
	onceInput.Do(func() {
		inState = &inputState{}
	})
	return nil
}

func InputShutdown() error {
	inState = nil
	return nil
}

// InputUpdate copies current states to previous states. Call at the end of
// the frame, after any input has been recorded.
func InputUpdate(deltaTime float64) error {
	if inState == nil {
		return nil
	}
	inState.keyboardPrevious = inState.keyboardCurrent
	inState.mousePrevious = inState.mouseCurrent
	return nil
}

func InputIsKeyDown(key KeyCode) bool {
	if inState == nil {
		return false
	}
	return inState.keyboardCurrent.keys[key]
}

func InputWasKeyDown(key KeyCode) bool {
	if inState == nil {
		return false
	}
	return inState.keyboardPrevious.keys[key]
}

// InputIsKeyPressed reports a down edge: down this frame, up the previous one.
func InputIsKeyPressed(key KeyCode) bool {
	return InputIsKeyDown(key) && !InputWasKeyDown(key)
}

func InputProcessKey(key KeyCode, pressed bool) {
	if inState == nil || key >= MAX_KEYS {
		return
	}
	if inState.keyboardCurrent.keys[key] == pressed {
		return
	}
	inState.keyboardCurrent.keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	EventFire(EventContext{
		Type: code,
		Data: &KeyEvent{KeyCode: key},
	})
}

func InputProcessButton(button Button, pressed bool) {
	if inState == nil {
		return
	}
	if inState.mouseCurrent.buttons[button] == pressed {
		return
	}
	inState.mouseCurrent.buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	EventFire(EventContext{
		Type: code,
		Data: &MouseEvent{Button: button, PosX: inState.mouseCurrent.posX, PosY: inState.mouseCurrent.posY},
	})
}

func InputProcessMouseMove(x, y float64) {
	if inState == nil {
		return
	}
	if inState.mouseCurrent.posX == x && inState.mouseCurrent.posY == y {
		return
	}
	inState.mouseCurrent.posX = x
	inState.mouseCurrent.posY = y
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_MOVED,
		Data: &MouseEvent{PosX: x, PosY: y},
	})
}

func InputProcessMouseWheel(delta float64) {
	if inState == nil {
		return
	}
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &MouseEvent{WheelDelta: delta},
	})
}

func InputIsButtonDown(button Button) bool {
	if inState == nil {
		return false
	}
	return inState.mouseCurrent.buttons[button]
}

func InputMousePosition() (float64, float64) {
	if inState == nil {
		return 0, 0
	}
	return inState.mouseCurrent.posX, inState.mouseCurrent.posY
}

func InputPreviousMousePosition() (float64, float64) {
	if inState == nil {
		return 0, 0
	}
	return inState.mousePrevious.posX, inState.mousePrevious.posY
}
