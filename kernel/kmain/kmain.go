package kmain

import (
	"fridayos/kernel"
	"fridayos/kernel/bootinfo"
	"fridayos/kernel/cpu"
	"fridayos/kernel/gate"
	"fridayos/kernel/gdt"
	"fridayos/kernel/hal"
	"fridayos/kernel/irq"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/mm"
	"fridayos/kernel/mm/heap"
	"fridayos/kernel/mm/pmm"
	"fridayos/kernel/mm/vmm"
	"fridayos/kernel/pic"
	"unsafe"

	// drivers register themselves with the hal from their init funcs.
	_ "fridayos/device/serial"
	_ "fridayos/device/video/console"
)

var (
	// the following functions are mocked by tests.
	detectHardwareFn       = hal.DetectHardware
	activeConsoleFn        = hal.ActiveConsole
	gdtInitFn              = gdt.Init
	installIRQFn           = irq.Install
	installFaultHandlersFn = vmm.InstallFaultHandlers
	gateInitFn             = gate.Init
	picInitFn              = pic.Controllers.Init
	enableInterruptsFn     = cpu.EnableInterrupts
	breakpointFn           = cpu.Breakpoint
	vmmInitFn              = vmm.Init
	pmmInitFn              = pmm.Init
	heapInitFn             = heap.Init
	heapAllocFn            = heap.Alloc
	heapFreeFn             = heap.Free
	memoryMapFn            = bootinfo.MemoryMap
	physMemOffsetFn        = bootinfo.PhysicalMemoryOffset
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. The rt0 code enters long mode, sets up a minimal g0
// and then jumps here passing the address of the boot information block
// that the boot loader populated.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(bootInfoPtr uintptr) {
	bootinfo.SetInfoPtr(bootInfoPtr)

	if err := boot(); err != nil {
		kfmt.Panic(err)
	}

	kfmt.Printf("[FRIDAY] :: Good Morning!\n")
	for {
		cpu.WaitForInterrupt()
	}
}

// boot brings up the CPU tables, the interrupt controllers and the memory
// sub-systems in the order that each one depends on the previous.
func boot() *kernel.Error {
	detectHardwareFn()
	if cons := activeConsoleFn(); cons != nil {
		irq.SetConsole(cons)
	}

	gdtInitFn()

	// Handlers can only be registered before the IDT is loaded.
	var err *kernel.Error
	if err = installIRQFn(); err != nil {
		return err
	} else if err = installFaultHandlersFn(); err != nil {
		return err
	}
	gateInitFn()

	picInitFn()
	enableInterruptsFn()

	// Execution resumes here if the breakpoint handler is wired correctly.
	breakpointFn()

	vmmInitFn(physMemOffsetFn())
	if err = pmmInitFn(memoryMapFn()); err != nil {
		return err
	}

	if err = heapInitFn(vmm.KernelMapper(), mm.AllocFrame); err != nil {
		return err
	}

	return checkHeap()
}

// checkHeap stores a value in a block taken from the new heap, prints it back
// and releases the block.
func checkHeap() *kernel.Error {
	addr, err := heapAllocFn(8, 8)
	if err != nil {
		return err
	}

	value := (*uint64)(unsafe.Pointer(addr))
	*value = 41
	kfmt.Printf("[kmain] heap value %d at 0x%16x\n", *value, addr)

	return heapFreeFn(addr, 8)
}
