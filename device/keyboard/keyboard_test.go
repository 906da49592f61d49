package keyboard

import (
	"fmt"
	"testing"
)

// feedAll sends the supplied bytes to d and collects the decoded keys.
func feedAll(t *testing.T, d *Decoder, input []byte) []DecodedKey {
	var keys []DecodedKey
	for _, b := range input {
		key, ok, err := d.Feed(b)
		if err != nil {
			t.Fatalf("unexpected error for byte 0x%x: %v", b, err)
		}
		if ok {
			keys = append(keys, key)
		}
	}
	return keys
}

func runeKey(r rune) DecodedKey  { return DecodedKey{Rune: r, IsRune: true} }
func rawKey(k KeyCode) DecodedKey { return DecodedKey{Raw: k} }

func TestDecoder(t *testing.T) {
	specs := []struct {
		input []byte
		exp   []DecodedKey
	}{
		// "hi" with releases
		{[]byte{0x23, 0xa3, 0x17, 0x97}, []DecodedKey{runeKey('h'), runeKey('i')}},
		// shift + a, then a
		{[]byte{0x2a, 0x1e, 0x9e, 0xaa, 0x1e}, []DecodedKey{runeKey('A'), runeKey('a')}},
		// right shift + 1
		{[]byte{0x36, 0x02, 0xb6}, []DecodedKey{runeKey('!')}},
		// caps lock toggles letters only
		{[]byte{0x3a, 0xba, 0x1e, 0x02, 0x3a, 0xba, 0x1e}, []DecodedKey{runeKey('A'), runeKey('1'), runeKey('a')}},
		// caps lock + shift yields lower case
		{[]byte{0x3a, 0xba, 0x2a, 0x1e}, []DecodedKey{runeKey('a')}},
		// backspace, enter, space, tab
		{[]byte{0x0e, 0x1c, 0x39, 0x0f}, []DecodedKey{runeKey('\b'), runeKey('\n'), runeKey(' '), runeKey('\t')}},
		// extended keys
		{[]byte{0xe0, 0x48, 0xe0, 0xc8}, []DecodedKey{rawKey(KeyArrowUp)}},
		{[]byte{0xe0, 0x53}, []DecodedKey{runeKey(0x7f)}},
		{[]byte{0xe0, 0x35, 0xe0, 0x1c}, []DecodedKey{runeKey('/'), runeKey('\n')}},
		// print screen with fake shifts
		{[]byte{0xe0, 0x2a, 0xe0, 0x37, 0xe0, 0xb7, 0xe0, 0xaa}, []DecodedKey{rawKey(KeyPrintScreen)}},
		// pause press and release
		{[]byte{0xe1, 0x1d, 0x45, 0xe1, 0x9d, 0xc5}, []DecodedKey{rawKey(KeyPauseBreak)}},
		// function and modifier keys
		{[]byte{0x3b, 0x1d, 0x9d, 0x38, 0xb8}, []DecodedKey{rawKey(KeyF1)}},
		// numpad with num lock on
		{[]byte{0x47, 0x53, 0x37}, []DecodedKey{runeKey('7'), runeKey('.'), runeKey('*')}},
		// numpad with num lock off
		{[]byte{0x45, 0xc5, 0x47, 0x4c, 0x53, 0x4a}, []DecodedKey{rawKey(KeyHome), rawKey(KeyNumpad5), runeKey(0x7f), runeKey('-')}},
	}

	for specIndex, spec := range specs {
		t.Run(fmt.Sprint(specIndex), func(t *testing.T) {
			var d Decoder
			got := feedAll(t, &d, spec.input)

			if len(got) != len(spec.exp) {
				t.Fatalf("expected keys %v; got %v", spec.exp, got)
			}
			for i := range spec.exp {
				if got[i] != spec.exp[i] {
					t.Fatalf("expected key %d to be %v; got %v", i, spec.exp[i], got[i])
				}
			}
		})
	}
}

func TestDecoderErrors(t *testing.T) {
	specs := []struct {
		input  []byte
		expErr error
	}{
		{[]byte{0x00}, errUnknownScancode},
		{[]byte{0x59}, errUnknownScancode},
		{[]byte{0xe0, 0x01}, errUnknownScancode},
		{[]byte{0xe1, 0x1e, 0x45}, errInvalidPauseSequence},
	}

	for specIndex, spec := range specs {
		t.Run(fmt.Sprint(specIndex), func(t *testing.T) {
			var (
				d   Decoder
				err error
			)
			for _, b := range spec.input {
				if _, _, kerr := d.Feed(b); kerr != nil {
					err = kerr
				}
			}

			if err != spec.expErr {
				t.Fatalf("expected error %v; got %v", spec.expErr, err)
			}

			// The decoder must recover after an error
			key, ok, kerr := d.Feed(0x1e)
			if kerr != nil || !ok || key != runeKey('a') {
				t.Fatalf("expected decoder to recover; got %v, %t, %v", key, ok, kerr)
			}
		})
	}
}

func TestScancodeSet1Release(t *testing.T) {
	var s ScancodeSet1

	ev, ok, err := s.AddByte(0x9e)
	if err != nil || !ok {
		t.Fatalf("expected a complete event; got %t, %v", ok, err)
	}

	if exp := (KeyEvent{Code: KeyA, State: KeyUp}); ev != exp {
		t.Fatalf("expected event %v; got %v", exp, ev)
	}
}

func TestCtrlPressed(t *testing.T) {
	var d Decoder

	feedAll(t, &d, []byte{0xe0, 0x1d})
	if !d.CtrlPressed() {
		t.Fatal("expected right control to be reported as pressed")
	}

	// control does not alter characters
	if keys := feedAll(t, &d, []byte{0x2e}); len(keys) != 1 || keys[0] != runeKey('c') {
		t.Fatalf("expected 'c'; got %v", keys)
	}

	feedAll(t, &d, []byte{0xe0, 0x9d})
	if d.CtrlPressed() {
		t.Fatal("expected control to be released")
	}
}

func TestKeyCodeString(t *testing.T) {
	specs := []struct {
		code KeyCode
		exp  string
	}{
		{KeyArrowUp, "ArrowUp"},
		{KeyF12, "F12"},
		{KeyPauseBreak, "PauseBreak"},
		{KeyUnknown, "Unknown"},
		{keyCount + 5, "Unknown"},
	}

	for _, spec := range specs {
		if got := spec.code.String(); got != spec.exp {
			t.Errorf("expected %d to be named %q; got %q", uint8(spec.code), spec.exp, got)
		}
	}
}
