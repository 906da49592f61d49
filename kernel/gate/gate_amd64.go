// Package gate manages the interrupt descriptor table and routes exceptions
// and hardware interrupts to Go handlers.
package gate

import (
	"fridayos/kernel"
	"fridayos/kernel/cpu"
	"fridayos/kernel/gdt"
	"fridayos/kernel/kfmt"
	"io"
	"unsafe"
)

// Registers contains a snapshot of all register values when an exception or
// interrupt occurs. Its layout matches the frame built by the assembly entry
// stubs and must not be reordered.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Vector is the interrupt number that triggered the entry.
	Vector uint64

	// Info contains the error code for exceptions that push one and 0 for
	// everything else.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an exception is raised while the CPU tries to
	// invoke the handler for a prior exception.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when the CPU attempts to invoke a present
	// gate with an invalid stack segment selector.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when attempting to push/pop from a
	// non-canonical stack address.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// IRQBase is the vector that the first hardware interrupt line is
	// remapped to. Lines 0-15 occupy vectors IRQBase to IRQBase+15.
	IRQBase = InterruptNumber(32)

	// Timer is raised by the programmable interval timer (IRQ 0).
	Timer = IRQBase

	// Keyboard is raised by the PS/2 keyboard controller (IRQ 1).
	Keyboard = IRQBase + 1

	// LastIRQ is the vector of the last hardware interrupt line (IRQ 15).
	LastIRQ = IRQBase + 15
)

const (
	// entryStubCount is the number of vectors with an assembly entry stub.
	entryStubCount = int(LastIRQ) + 1

	// maxIST is the highest interrupt stack table index.
	maxIST = 7

	gateTypeInterrupt = 0xe
	gateFlagPresent   = 1 << 15
)

// gateDescriptor is a 16-byte IDT entry. It is stored as two quad words to
// keep the table 8-byte aligned.
type gateDescriptor [2]uint64

// newGateDescriptor encodes a present ring 0 interrupt gate for the entry
// point at pc. Interrupt gates clear IF on entry.
func newGateDescriptor(pc uintptr, sel uint16, ist uint8) gateDescriptor {
	w0 := uint32(sel)<<16 | uint32(pc&0xffff)
	w1 := uint32(pc&0xffff0000) | gateFlagPresent | gateTypeInterrupt<<8 | uint32(ist&maxIST)
	w2 := uint32(uint64(pc) >> 32)

	return gateDescriptor{uint64(w1)<<32 | uint64(w0), uint64(w2)}
}

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadIDTFn     = cpu.LoadIDT
	gateEntryPCFn = gateEntryPC
	panicFn       = kfmt.Panic

	idt        [256]gateDescriptor
	idtPointer gdt.PseudoDescriptor
	handlers   [entryStubCount]func(*Registers)

	// sealed is set by Init; the table is never modified afterwards.
	sealed bool

	errIDTSealed          = &kernel.Error{Module: "gate", Message: "interrupt table is sealed"}
	errNoEntryStub        = &kernel.Error{Module: "gate", Message: "no entry stub for interrupt number"}
	errInvalidIST         = &kernel.Error{Module: "gate", Message: "interrupt stack table index out of range"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
)

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. The value of the istOffset argument
// specifies the offset in the interrupt stack table (if 0 then IST is not
// used). Handlers can only be registered before Init is called.
func HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler func(*Registers)) *kernel.Error {
	switch {
	case sealed:
		return errIDTSealed
	case int(intNumber) >= entryStubCount:
		return errNoEntryStub
	case istOffset > maxIST:
		return errInvalidIST
	}

	handlers[intNumber] = handler
	idt[intNumber] = newGateDescriptor(gateEntryPCFn(int(intNumber)), gdt.KernelCodeSelector, istOffset)
	return nil
}

// Init loads the interrupt descriptor table into the CPU. All gate entries
// that were not populated by HandleInterrupt remain non-present. Init seals
// the table so it must be called after all handlers have been registered.
func Init() {
	sealed = true
	idtPointer = gdt.NewPseudoDescriptor(uintptr(unsafe.Pointer(&idt)), unsafe.Sizeof(idt))
	loadIDTFn(uintptr(unsafe.Pointer(&idtPointer)))
}

// dispatchInterrupt is invoked by the interrupt gate entrypoints to route
// an incoming interrupt to the registered handler.
//
//go:nosplit
func dispatchInterrupt(regs *Registers) {
	if regs.Vector < uint64(entryStubCount) {
		if handler := handlers[regs.Vector]; handler != nil {
			handler(regs)
			return
		}
	}

	unhandledInterrupt(regs)
}

// unhandledInterrupt reports an interrupt without a registered handler and
// halts the CPU.
func unhandledInterrupt(regs *Registers) {
	w := kfmt.GetErrorSink()
	kfmt.Fprintf(w, "\n[EXCEPTION] UNHANDLED INTERRUPT %d\n", regs.Vector)
	kfmt.Fprintf(w, "Error code: 0x%x\n\nRegisters:\n", regs.Info)
	regs.DumpTo(w)

	panicFn(errUnhandledInterrupt)
}

// gateEntryPC returns the address of the assembly entry stub for the
// supplied interrupt number.
func gateEntryPC(index int) uintptr
