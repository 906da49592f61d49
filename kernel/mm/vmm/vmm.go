// Package vmm manages the virtual address space: it edits the active page
// table hierarchy and handles the paging-related CPU exceptions.
package vmm

import (
	"fridayos/kernel"
	"fridayos/kernel/cpu"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/mm"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	activePDTFn     = cpu.ActivePDT
	flushTLBEntryFn = cpu.FlushTLBEntry
	readCR2Fn       = cpu.ReadCR2
	panicFn         = kfmt.Panic

	// kernelMapper edits the page tables that the kernel runs on.
	kernelMapper Mapper

	errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "page/gpf fault"}
)

// Init sets up a Mapper for the currently active page table hierarchy. The
// physOffset argument is the virtual address at which the boot loader
// mirrored the physical memory.
func Init(physOffset uintptr) {
	kernelMapper.init(mm.FrameFromAddress(activePDTFn()), physOffset, flushTLBEntryFn)
	kfmt.Printf("[vmm] page tables at 0x%x, physical memory mirrored at 0x%16x\n", kernelMapper.RootFrame().Address(), physOffset)
}

// KernelMapper returns the Mapper for the page tables that the kernel runs
// on. It must not be used before Init is called.
func KernelMapper() *Mapper {
	return &kernelMapper
}
