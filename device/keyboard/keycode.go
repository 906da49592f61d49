package keyboard

// KeyCode identifies a physical key independently of the active layout.
type KeyCode uint8

// The key codes of a 104-key PC keyboard.
const (
	KeyUnknown KeyCode = iota
	KeyEscape
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyBacktick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEquals
	KeyBackspace
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyLBracket
	KeyRBracket
	KeyBackslash
	KeyCapsLock
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyQuote
	KeyEnter
	KeyLShift
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyPeriod
	KeySlash
	KeyRShift
	KeyLControl
	KeyLWin
	KeyLAlt
	KeySpace
	KeyRAltGr
	KeyRWin
	KeyApps
	KeyRControl
	KeyPrintScreen
	KeyScrollLock
	KeyPauseBreak
	KeyInsert
	KeyHome
	KeyPageUp
	KeyDelete
	KeyEnd
	KeyPageDown
	KeyArrowUp
	KeyArrowLeft
	KeyArrowDown
	KeyArrowRight
	KeyNumLock
	KeyNumpadSlash
	KeyNumpadStar
	KeyNumpadMinus
	KeyNumpad7
	KeyNumpad8
	KeyNumpad9
	KeyNumpadPlus
	KeyNumpad4
	KeyNumpad5
	KeyNumpad6
	KeyNumpad1
	KeyNumpad2
	KeyNumpad3
	KeyNumpadEnter
	KeyNumpad0
	KeyNumpadPeriod

	// keyCount is the number of defined key codes.
	keyCount
)

var keyNames = [keyCount]string{
	KeyUnknown:      "Unknown",
	KeyEscape:       "Escape",
	KeyF1:           "F1",
	KeyF2:           "F2",
	KeyF3:           "F3",
	KeyF4:           "F4",
	KeyF5:           "F5",
	KeyF6:           "F6",
	KeyF7:           "F7",
	KeyF8:           "F8",
	KeyF9:           "F9",
	KeyF10:          "F10",
	KeyF11:          "F11",
	KeyF12:          "F12",
	KeyBacktick:     "Backtick",
	Key1:            "Key1",
	Key2:            "Key2",
	Key3:            "Key3",
	Key4:            "Key4",
	Key5:            "Key5",
	Key6:            "Key6",
	Key7:            "Key7",
	Key8:            "Key8",
	Key9:            "Key9",
	Key0:            "Key0",
	KeyMinus:        "Minus",
	KeyEquals:       "Equals",
	KeyBackspace:    "Backspace",
	KeyTab:          "Tab",
	KeyQ:            "Q",
	KeyW:            "W",
	KeyE:            "E",
	KeyR:            "R",
	KeyT:            "T",
	KeyY:            "Y",
	KeyU:            "U",
	KeyI:            "I",
	KeyO:            "O",
	KeyP:            "P",
	KeyLBracket:     "LBracket",
	KeyRBracket:     "RBracket",
	KeyBackslash:    "Backslash",
	KeyCapsLock:     "CapsLock",
	KeyA:            "A",
	KeyS:            "S",
	KeyD:            "D",
	KeyF:            "F",
	KeyG:            "G",
	KeyH:            "H",
	KeyJ:            "J",
	KeyK:            "K",
	KeyL:            "L",
	KeySemicolon:    "Semicolon",
	KeyQuote:        "Quote",
	KeyEnter:        "Enter",
	KeyLShift:       "LShift",
	KeyZ:            "Z",
	KeyX:            "X",
	KeyC:            "C",
	KeyV:            "V",
	KeyB:            "B",
	KeyN:            "N",
	KeyM:            "M",
	KeyComma:        "Comma",
	KeyPeriod:       "Period",
	KeySlash:        "Slash",
	KeyRShift:       "RShift",
	KeyLControl:     "LControl",
	KeyLWin:         "LWin",
	KeyLAlt:         "LAlt",
	KeySpace:        "Space",
	KeyRAltGr:       "RAltGr",
	KeyRWin:         "RWin",
	KeyApps:         "Apps",
	KeyRControl:     "RControl",
	KeyPrintScreen:  "PrintScreen",
	KeyScrollLock:   "ScrollLock",
	KeyPauseBreak:   "PauseBreak",
	KeyInsert:       "Insert",
	KeyHome:         "Home",
	KeyPageUp:       "PageUp",
	KeyDelete:       "Delete",
	KeyEnd:          "End",
	KeyPageDown:     "PageDown",
	KeyArrowUp:      "ArrowUp",
	KeyArrowLeft:    "ArrowLeft",
	KeyArrowDown:    "ArrowDown",
	KeyArrowRight:   "ArrowRight",
	KeyNumLock:      "NumLock",
	KeyNumpadSlash:  "NumpadSlash",
	KeyNumpadStar:   "NumpadStar",
	KeyNumpadMinus:  "NumpadMinus",
	KeyNumpad7:      "Numpad7",
	KeyNumpad8:      "Numpad8",
	KeyNumpad9:      "Numpad9",
	KeyNumpadPlus:   "NumpadPlus",
	KeyNumpad4:      "Numpad4",
	KeyNumpad5:      "Numpad5",
	KeyNumpad6:      "Numpad6",
	KeyNumpad1:      "Numpad1",
	KeyNumpad2:      "Numpad2",
	KeyNumpad3:      "Numpad3",
	KeyNumpadEnter:  "NumpadEnter",
	KeyNumpad0:      "Numpad0",
	KeyNumpadPeriod: "NumpadPeriod",
}

// String returns the name of the key.
func (k KeyCode) String() string {
	if k >= keyCount {
		return keyNames[KeyUnknown]
	}
	return keyNames[k]
}
