package vmm

import (
	"fridayos/kernel"
	"fridayos/kernel/gate"
	"fridayos/kernel/kfmt"
	"io"
)

var (
	// handleInterruptFn is used by tests.
	handleInterruptFn = gate.HandleInterrupt
)

// The bits of the error code that the CPU pushes for page faults.
const (
	pfPresent     = 1 << 0
	pfWrite       = 1 << 1
	pfUser        = 1 << 2
	pfReservedBit = 1 << 3
	pfInstrFetch  = 1 << 4
)

// InstallFaultHandlers registers the page fault and general protection fault
// handlers. It must be called before the interrupt table is sealed.
func InstallFaultHandlers() *kernel.Error {
	if err := handleInterruptFn(gate.PageFaultException, 0, pageFaultHandler); err != nil {
		return err
	}

	return handleInterruptFn(gate.GPFException, 0, generalProtectionFaultHandler)
}

// pageFaultHandler is invoked when a PDT or PDT-entry is not present or when a
// RW protection check fails. Page faults are not recoverable; the handler
// logs the fault and halts the CPU.
func pageFaultHandler(regs *gate.Registers) {
	faultAddress := uintptr(readCR2Fn())
	w := kfmt.GetErrorSink()

	kfmt.Fprintf(w, "\n[EXCEPTION] PAGE FAULT\n")
	kfmt.Fprintf(w, "Accessed address: 0x%16x\nError code: 0x%x\nReason: ", faultAddress, regs.Info)
	printPageFaultReason(w, regs.Info)
	kfmt.Fprintf(w, "\n\nRegisters:\n")
	regs.DumpTo(w)

	panicFn(errUnrecoverableFault)
}

// printPageFaultReason decodes a page fault error code.
func printPageFaultReason(w io.Writer, errorCode uint64) {
	switch {
	case errorCode&pfReservedBit != 0:
		kfmt.Fprintf(w, "page table has reserved bit set")
	case errorCode&pfInstrFetch != 0 && errorCode&pfPresent != 0:
		kfmt.Fprintf(w, "instruction fetch from non-executable page")
	case errorCode&pfInstrFetch != 0:
		kfmt.Fprintf(w, "instruction fetch from non-present page")
	case errorCode&(pfPresent|pfWrite) == 0:
		kfmt.Fprintf(w, "read from non-present page")
	case errorCode&(pfPresent|pfWrite) == pfPresent:
		kfmt.Fprintf(w, "page protection violation (read)")
	case errorCode&(pfPresent|pfWrite) == pfWrite:
		kfmt.Fprintf(w, "write to non-present page")
	default:
		kfmt.Fprintf(w, "page protection violation (write)")
	}

	if errorCode&pfUser != 0 {
		kfmt.Fprintf(w, " in user-mode")
	}
}

// generalProtectionFaultHandler is invoked for various reasons:
// - segment errors (privilege, type or limit violations)
// - executing privileged instructions outside ring-0
// - attempts to access reserved or unimplemented CPU registers
func generalProtectionFaultHandler(regs *gate.Registers) {
	w := kfmt.GetErrorSink()

	kfmt.Fprintf(w, "\n[EXCEPTION] GENERAL PROTECTION FAULT\n")
	kfmt.Fprintf(w, "Error code: 0x%x\n", regs.Info)
	kfmt.Fprintf(w, "Registers:\n")
	regs.DumpTo(w)

	panicFn(errUnrecoverableFault)
}
