// Package irq contains the handlers for the CPU exceptions that are not
// related to paging and for the hardware interrupt lines routed through the
// chained PICs.
package irq

import (
	"fridayos/device/keyboard"
	"fridayos/kernel"
	"fridayos/kernel/cpu"
	"fridayos/kernel/gate"
	"fridayos/kernel/gdt"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/pic"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

// Console receives the characters typed on the keyboard.
type Console interface {
	io.Writer

	// Backspace moves the cursor back by one position and erases the
	// character under it.
	Backspace()
}

const (
	keyboardDataPort = 0x60
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	handleInterruptFn     = gate.HandleInterrupt
	portReadByteFn        = cpu.PortReadByte
	acknowledgeFn         = pic.Controllers.Acknowledge
	isSpuriousFn          = pic.Controllers.IsSpurious
	acknowledgeSpuriousFn = pic.Controllers.AcknowledgeSpurious
	panicFn               = kfmt.Panic

	errDoubleFault = &kernel.Error{Module: "irq", Message: "double fault"}

	// ticks counts timer interrupts since they were enabled.
	ticks uint64

	console    Console
	kbdDecoder keyboard.Decoder
	runeBuf    [utf8.UTFMax]byte

	// reportedLines has a bit set for each IRQ line that was already
	// logged as unexpected.
	reportedLines uint16
)

// SetConsole sets the console that receives keyboard input.
func SetConsole(c Console) {
	console = c
}

// Ticks returns the number of timer interrupts serviced so far.
func Ticks() uint64 {
	return atomic.LoadUint64(&ticks)
}

// Install registers the handlers for the breakpoint and double fault
// exceptions and for all hardware interrupt lines. It must be called before
// the interrupt table is loaded.
func Install() *kernel.Error {
	if err := handleInterruptFn(gate.Breakpoint, 0, breakpointHandler); err != nil {
		return err
	}

	if err := handleInterruptFn(gate.DoubleFault, gdt.DoubleFaultIST, doubleFaultHandler); err != nil {
		return err
	}

	if err := handleInterruptFn(gate.Timer, 0, timerHandler); err != nil {
		return err
	}

	if err := handleInterruptFn(gate.Keyboard, 0, keyboardHandler); err != nil {
		return err
	}

	for vector := gate.Keyboard + 1; vector <= gate.LastIRQ; vector++ {
		if err := handleInterruptFn(vector, 0, unexpectedIRQHandler); err != nil {
			return err
		}
	}

	return nil
}

func breakpointHandler(regs *gate.Registers) {
	w := kfmt.GetErrorSink()
	kfmt.Fprintf(w, "\n[EXCEPTION] BREAKPOINT\n")
	regs.DumpTo(w)
}

// doubleFaultHandler runs on the emergency stack referenced by
// gdt.DoubleFaultIST.
func doubleFaultHandler(regs *gate.Registers) {
	w := kfmt.GetErrorSink()
	kfmt.Fprintf(w, "\n[EXCEPTION] DOUBLE FAULT\n")
	kfmt.Fprintf(w, "Error code: 0x%x\n\nRegisters:\n", regs.Info)
	regs.DumpTo(w)

	panicFn(errDoubleFault)
}

func timerHandler(_ *gate.Registers) {
	atomic.AddUint64(&ticks, 1)
	acknowledgeFn(uint8(gate.Timer))
}

func keyboardHandler(_ *gate.Registers) {
	scancode := portReadByteFn(keyboardDataPort)

	key, ok, err := kbdDecoder.Feed(scancode)
	switch {
	case err != nil:
		kfmt.Eprintf("[irq] keyboard: %s (scancode 0x%x)\n", err.Message, scancode)
	case !ok || console == nil:
	case key.IsRune && (key.Rune == '\b' || key.Rune == 0x7f):
		console.Backspace()
	case key.IsRune:
		n := utf8.EncodeRune(runeBuf[:], key.Rune)
		console.Write(runeBuf[:n])
	default:
		kfmt.Fprintf(console, "%s", key.Raw.String())
	}

	acknowledgeFn(uint8(gate.Keyboard))
}

// unexpectedIRQHandler services the lines without a driver. Each line is
// logged the first time it fires.
func unexpectedIRQHandler(regs *gate.Registers) {
	vector := uint8(regs.Vector)
	if isSpuriousFn(vector) {
		acknowledgeSpuriousFn(vector)
		return
	}

	line := vector - uint8(gate.IRQBase)
	if reportedLines&(1<<line) == 0 {
		reportedLines |= 1 << line
		kfmt.Eprintf("[irq] unexpected interrupt on line %d (vector %d)\n", line, vector)
	}

	acknowledgeFn(vector)
}
