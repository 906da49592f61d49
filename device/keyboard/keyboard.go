// Package keyboard decodes the byte stream of a PS/2 keyboard using scancode
// set 1 into characters of the US 104-key layout.
package keyboard

import "fridayos/kernel"

// DecodedKey is the result of processing a key press. Keys that produce a
// character set IsRune; all other keys are reported through Raw.
type DecodedKey struct {
	Rune   rune
	Raw    KeyCode
	IsRune bool
}

// modifiers tracks the state of the modifier and lock keys. The zero value
// corresponds to the power-on state with num lock on.
type modifiers struct {
	lShift     bool
	rShift     bool
	lCtrl      bool
	rCtrl      bool
	alt        bool
	altGr      bool
	capsLock   bool
	numLockOff bool
}

func (m *modifiers) shifted() bool {
	return m.lShift || m.rShift
}

// Decoder turns keyboard bytes into decoded keys. Control and alt are
// tracked but do not alter the produced characters. The zero value is ready
// to use.
type Decoder struct {
	scancodes ScancodeSet1
	mods      modifiers
}

// Feed processes the next byte read from the keyboard controller. It returns
// true when the byte completes a key press that produced a key. Releases,
// modifier keys and incomplete sequences yield false.
func (d *Decoder) Feed(b uint8) (DecodedKey, bool, *kernel.Error) {
	ev, complete, err := d.scancodes.AddByte(b)
	if err != nil || !complete {
		return DecodedKey{}, false, err
	}

	key, ok := d.ProcessKeyEvent(ev)
	return key, ok, nil
}

// ProcessKeyEvent updates the modifier state and maps key presses to a
// decoded key.
func (d *Decoder) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == KeyDown

	switch ev.Code {
	case KeyLShift:
		d.mods.lShift = down
	case KeyRShift:
		d.mods.rShift = down
	case KeyLControl:
		d.mods.lCtrl = down
	case KeyRControl:
		d.mods.rCtrl = down
	case KeyLAlt:
		d.mods.alt = down
	case KeyRAltGr:
		d.mods.altGr = down
	case KeyCapsLock:
		if down {
			d.mods.capsLock = !d.mods.capsLock
		}
	case KeyNumLock:
		if down {
			d.mods.numLockOff = !d.mods.numLockOff
		}
	default:
		if !down {
			return DecodedKey{}, false
		}
		return mapUS104(ev.Code, &d.mods), true
	}

	return DecodedKey{}, false
}

// CtrlPressed returns true while either control key is held down.
func (d *Decoder) CtrlPressed() bool {
	return d.mods.lCtrl || d.mods.rCtrl
}
