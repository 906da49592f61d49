package irq

import (
	"bytes"
	"fmt"
	"fridayos/device/keyboard"
	"fridayos/kernel"
	"fridayos/kernel/cpu"
	"fridayos/kernel/gate"
	"fridayos/kernel/gdt"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/pic"
	"strings"
	"testing"
)

type mockConsole struct {
	bytes.Buffer
	backspaces int
}

func (c *mockConsole) Backspace() {
	c.backspaces++
}

// mockPIC records the vectors passed to the acknowledge functions.
type mockPIC struct {
	acked         []uint8
	spuriousAcked []uint8
	spurious      map[uint8]bool
}

func (m *mockPIC) install(t *testing.T) {
	acknowledgeFn = func(vector uint8) { m.acked = append(m.acked, vector) }
	isSpuriousFn = func(vector uint8) bool { return m.spurious[vector] }
	acknowledgeSpuriousFn = func(vector uint8) { m.spuriousAcked = append(m.spuriousAcked, vector) }

	t.Cleanup(func() {
		acknowledgeFn = pic.Controllers.Acknowledge
		isSpuriousFn = pic.Controllers.IsSpurious
		acknowledgeSpuriousFn = pic.Controllers.AcknowledgeSpurious
	})
}

func captureErrors(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	kfmt.SetErrorSink(&buf)
	t.Cleanup(func() { kfmt.SetErrorSink(nil) })
	return &buf
}

func TestInstall(t *testing.T) {
	defer func() {
		handleInterruptFn = gate.HandleInterrupt
	}()

	t.Run("success", func(t *testing.T) {
		installed := make(map[gate.InterruptNumber]uint8)
		handleInterruptFn = func(intNumber gate.InterruptNumber, istOffset uint8, handler func(*gate.Registers)) *kernel.Error {
			if handler == nil {
				t.Errorf("expected a non-nil handler for vector %d", intNumber)
			}
			installed[intNumber] = istOffset
			return nil
		}

		if err := Install(); err != nil {
			t.Fatal(err)
		}

		if exp := 2 + 16; len(installed) != exp {
			t.Fatalf("expected %d handlers to be installed; got %d", exp, len(installed))
		}

		if ist, ok := installed[gate.DoubleFault]; !ok || ist != gdt.DoubleFaultIST {
			t.Errorf("expected double fault handler to use IST %d; got %d", gdt.DoubleFaultIST, ist)
		}

		for vector := gate.IRQBase; vector <= gate.LastIRQ; vector++ {
			if _, ok := installed[vector]; !ok {
				t.Errorf("expected a handler for vector %d", vector)
			}
		}

		if _, ok := installed[gate.Breakpoint]; !ok {
			t.Error("expected a breakpoint handler")
		}
	})

	t.Run("failure", func(t *testing.T) {
		expErr := &kernel.Error{Module: "test", Message: "sealed"}
		calls := 0
		handleInterruptFn = func(_ gate.InterruptNumber, _ uint8, _ func(*gate.Registers)) *kernel.Error {
			calls++
			if calls == 3 {
				return expErr
			}
			return nil
		}

		if err := Install(); err != expErr {
			t.Fatalf("expected error %v; got %v", expErr, err)
		}
	})
}

func TestBreakpointHandler(t *testing.T) {
	buf := captureErrors(t)

	regs := gate.Registers{RIP: 0xbadc0de}
	breakpointHandler(&regs)

	for _, exp := range []string{"[EXCEPTION] BREAKPOINT", "RIP = 000000000badc0de"} {
		if !strings.Contains(buf.String(), exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, buf.String())
		}
	}
}

func TestDoubleFaultHandler(t *testing.T) {
	defer func() { panicFn = kfmt.Panic }()
	buf := captureErrors(t)

	var panicArg interface{}
	panicFn = func(e interface{}) { panicArg = e }

	doubleFaultHandler(&gate.Registers{})

	if panicArg != errDoubleFault {
		t.Fatalf("expected a panic with errDoubleFault; got %v", panicArg)
	}

	if exp := "[EXCEPTION] DOUBLE FAULT"; !strings.Contains(buf.String(), exp) {
		t.Fatalf("expected output to contain %q; got:\n%s", exp, buf.String())
	}
}

func TestTimerHandler(t *testing.T) {
	var m mockPIC
	m.install(t)

	before := Ticks()
	for i := 0; i < 3; i++ {
		timerHandler(&gate.Registers{Vector: uint64(gate.Timer)})
	}

	if exp, got := before+3, Ticks(); got != exp {
		t.Fatalf("expected tick count %d; got %d", exp, got)
	}

	if len(m.acked) != 3 || m.acked[0] != 32 {
		t.Fatalf("expected each tick to be acknowledged once on vector 32; got %v", m.acked)
	}
}

func TestKeyboardHandler(t *testing.T) {
	defer func() {
		portReadByteFn = cpu.PortReadByte
		SetConsole(nil)
	}()

	specs := []struct {
		input         []byte
		expOutput     string
		expBackspaces int
		expErr        string
	}{
		// "Hi"
		{[]byte{0x2a, 0x23, 0xa3, 0xaa, 0x17, 0x97}, "Hi", 0, ""},
		// backspace and delete
		{[]byte{0x0e, 0x8e, 0xe0, 0x53}, "", 2, ""},
		// raw key printed by name
		{[]byte{0xe0, 0x48}, "ArrowUp", 0, ""},
		// incomplete sequence
		{[]byte{0xe0}, "", 0, ""},
		// decoder errors are logged and dropped
		{[]byte{0x00, 0x1e}, "a", 0, "[irq] keyboard: unknown scancode (scancode 0x0)"},
	}

	for specIndex, spec := range specs {
		t.Run(fmt.Sprint(specIndex), func(t *testing.T) {
			var (
				m    mockPIC
				cons mockConsole
			)
			m.install(t)
			errBuf := captureErrors(t)
			SetConsole(&cons)
			kbdDecoder = keyboard.Decoder{}

			for _, b := range spec.input {
				scancode := b
				portReadByteFn = func(port uint16) uint8 {
					if port != keyboardDataPort {
						t.Errorf("expected read from port 0x%x; got 0x%x", keyboardDataPort, port)
					}
					return scancode
				}
				keyboardHandler(&gate.Registers{Vector: uint64(gate.Keyboard)})
			}

			if got := cons.String(); got != spec.expOutput {
				t.Errorf("expected console output %q; got %q", spec.expOutput, got)
			}

			if cons.backspaces != spec.expBackspaces {
				t.Errorf("expected %d backspaces; got %d", spec.expBackspaces, cons.backspaces)
			}

			if spec.expErr != "" && !strings.Contains(errBuf.String(), spec.expErr) {
				t.Errorf("expected error output to contain %q; got %q", spec.expErr, errBuf.String())
			}

			if len(m.acked) != len(spec.input) {
				t.Fatalf("expected one acknowledgement per interrupt; got %v", m.acked)
			}
			for _, vector := range m.acked {
				if vector != 33 {
					t.Fatalf("expected acknowledgements for vector 33; got %v", m.acked)
				}
			}
		})
	}
}

func TestUnexpectedIRQHandler(t *testing.T) {
	defer func() { reportedLines = 0 }()

	m := mockPIC{spurious: map[uint8]bool{39: true}}
	m.install(t)
	buf := captureErrors(t)
	reportedLines = 0

	for _, vector := range []uint64{36, 36, 39, 44} {
		unexpectedIRQHandler(&gate.Registers{Vector: vector})
	}

	if exp := []uint8{36, 36, 44}; fmt.Sprint(m.acked) != fmt.Sprint(exp) {
		t.Errorf("expected acknowledged vectors %v; got %v", exp, m.acked)
	}

	if exp := []uint8{39}; fmt.Sprint(m.spuriousAcked) != fmt.Sprint(exp) {
		t.Errorf("expected spurious vectors %v; got %v", exp, m.spuriousAcked)
	}

	if got := strings.Count(buf.String(), "unexpected interrupt on line 4 "); got != 1 {
		t.Errorf("expected line 4 to be logged once; got %d times in:\n%s", got, buf.String())
	}

	if exp := "[irq] unexpected interrupt on line 12 (vector 44)"; !strings.Contains(buf.String(), exp) {
		t.Errorf("expected output to contain %q; got:\n%s", exp, buf.String())
	}

	if strings.Contains(buf.String(), "line 7") {
		t.Errorf("expected spurious interrupts not to be logged; got:\n%s", buf.String())
	}
}
