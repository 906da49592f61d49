package keyboard

import "fridayos/kernel"

// KeyState reports whether a key was pressed or released.
type KeyState uint8

// The possible key states.
const (
	KeyDown KeyState = iota
	KeyUp
)

// KeyEvent describes a single press or release of a physical key.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

const (
	extendedPrefix = 0xe0
	pausePrefix    = 0xe1
	releaseBit     = 0x80

	// The pause key sends E1 1D 45 when pressed and E1 9D C5 when released.
	pauseFirst  = 0x1d
	pauseSecond = 0x45

	// Keyboards emulate shift presses around some extended keys for the
	// benefit of old software. Those bytes carry no information.
	fakeLShift = 0x2a
	fakeRShift = 0x36
)

type decodeState uint8

const (
	stateStart decodeState = iota
	stateExtended
	statePauseFirst
	statePauseSecond
)

var (
	errUnknownScancode      = &kernel.Error{Module: "keyboard", Message: "unknown scancode"}
	errInvalidPauseSequence = &kernel.Error{Module: "keyboard", Message: "invalid pause sequence"}
)

// ScancodeSet1 assembles IBM PC scancode set 1 bytes into key events. It
// keeps track of multi-byte sequences between calls.
type ScancodeSet1 struct {
	state     decodeState
	pauseByte uint8
}

// AddByte feeds the next byte read from the keyboard controller. It returns
// true once the byte completes a key event and false while a sequence is
// still incomplete. An error is returned for bytes that do not map to a key;
// the decoder is reset and can continue with the next byte.
func (s *ScancodeSet1) AddByte(b uint8) (KeyEvent, bool, *kernel.Error) {
	switch s.state {
	case stateExtended:
		s.state = stateStart

		code := b &^ releaseBit
		if code == fakeLShift || code == fakeRShift {
			return KeyEvent{}, false, nil
		}
		return newKeyEvent(extendedKeys[code], b)
	case statePauseFirst:
		s.pauseByte = b
		s.state = statePauseSecond
		return KeyEvent{}, false, nil
	case statePauseSecond:
		s.state = stateStart

		if s.pauseByte&^releaseBit != pauseFirst || b&^releaseBit != pauseSecond {
			return KeyEvent{}, false, errInvalidPauseSequence
		}
		return newKeyEvent(KeyPauseBreak, b)
	}

	switch b {
	case extendedPrefix:
		s.state = stateExtended
		return KeyEvent{}, false, nil
	case pausePrefix:
		s.state = statePauseFirst
		return KeyEvent{}, false, nil
	}

	return newKeyEvent(baseKeys[b&^releaseBit], b)
}

func newKeyEvent(code KeyCode, b uint8) (KeyEvent, bool, *kernel.Error) {
	if code == KeyUnknown {
		return KeyEvent{}, false, errUnknownScancode
	}

	state := KeyDown
	if b&releaseBit != 0 {
		state = KeyUp
	}

	return KeyEvent{Code: code, State: state}, true, nil
}

// baseKeys maps single-byte make codes to keys.
var baseKeys = [releaseBit]KeyCode{
	0x01: KeyEscape,
	0x02: Key1,
	0x03: Key2,
	0x04: Key3,
	0x05: Key4,
	0x06: Key5,
	0x07: Key6,
	0x08: Key7,
	0x09: Key8,
	0x0a: Key9,
	0x0b: Key0,
	0x0c: KeyMinus,
	0x0d: KeyEquals,
	0x0e: KeyBackspace,
	0x0f: KeyTab,
	0x10: KeyQ,
	0x11: KeyW,
	0x12: KeyE,
	0x13: KeyR,
	0x14: KeyT,
	0x15: KeyY,
	0x16: KeyU,
	0x17: KeyI,
	0x18: KeyO,
	0x19: KeyP,
	0x1a: KeyLBracket,
	0x1b: KeyRBracket,
	0x1c: KeyEnter,
	0x1d: KeyLControl,
	0x1e: KeyA,
	0x1f: KeyS,
	0x20: KeyD,
	0x21: KeyF,
	0x22: KeyG,
	0x23: KeyH,
	0x24: KeyJ,
	0x25: KeyK,
	0x26: KeyL,
	0x27: KeySemicolon,
	0x28: KeyQuote,
	0x29: KeyBacktick,
	0x2a: KeyLShift,
	0x2b: KeyBackslash,
	0x2c: KeyZ,
	0x2d: KeyX,
	0x2e: KeyC,
	0x2f: KeyV,
	0x30: KeyB,
	0x31: KeyN,
	0x32: KeyM,
	0x33: KeyComma,
	0x34: KeyPeriod,
	0x35: KeySlash,
	0x36: KeyRShift,
	0x37: KeyNumpadStar,
	0x38: KeyLAlt,
	0x39: KeySpace,
	0x3a: KeyCapsLock,
	0x3b: KeyF1,
	0x3c: KeyF2,
	0x3d: KeyF3,
	0x3e: KeyF4,
	0x3f: KeyF5,
	0x40: KeyF6,
	0x41: KeyF7,
	0x42: KeyF8,
	0x43: KeyF9,
	0x44: KeyF10,
	0x45: KeyNumLock,
	0x46: KeyScrollLock,
	0x47: KeyNumpad7,
	0x48: KeyNumpad8,
	0x49: KeyNumpad9,
	0x4a: KeyNumpadMinus,
	0x4b: KeyNumpad4,
	0x4c: KeyNumpad5,
	0x4d: KeyNumpad6,
	0x4e: KeyNumpadPlus,
	0x4f: KeyNumpad1,
	0x50: KeyNumpad2,
	0x51: KeyNumpad3,
	0x52: KeyNumpad0,
	0x53: KeyNumpadPeriod,
	0x57: KeyF11,
	0x58: KeyF12,
}

// extendedKeys maps the byte following an 0xE0 prefix to keys.
var extendedKeys = [releaseBit]KeyCode{
	0x1c: KeyNumpadEnter,
	0x1d: KeyRControl,
	0x35: KeyNumpadSlash,
	0x37: KeyPrintScreen,
	0x38: KeyRAltGr,
	0x47: KeyHome,
	0x48: KeyArrowUp,
	0x49: KeyPageUp,
	0x4b: KeyArrowLeft,
	0x4d: KeyArrowRight,
	0x4f: KeyEnd,
	0x50: KeyArrowDown,
	0x51: KeyPageDown,
	0x52: KeyInsert,
	0x53: KeyDelete,
	0x5b: KeyLWin,
	0x5c: KeyRWin,
	0x5d: KeyApps,
}
