// Package pmm contains the physical frame allocator that the kernel uses
// while it boots.
package pmm

import (
	"fridayos/kernel"
	"fridayos/kernel/bootinfo"
	"fridayos/kernel/mm"
	"fridayos/kernel/sync"
)

var (
	// bootMemAllocator is the page allocator used when the kernel boots.
	bootMemAllocator BootMemAllocator

	// allocLock serializes access to bootMemAllocator. Page fault handlers
	// may allocate frames, so interrupts are disabled while it is held.
	allocLock sync.IRQSpinlock

	errNoUsableMemory = &kernel.Error{Module: "pmm", Message: "memory map contains no usable regions"}
)

// Init sets up the kernel physical memory allocation sub-system using the
// memory map reported by the boot loader and registers AllocFrame as the
// active frame allocator.
func Init(memMap []bootinfo.MemoryRegion) *kernel.Error {
	state := allocLock.Acquire()
	bootMemAllocator.init(memMap)
	allocLock.Release(state)

	bootMemAllocator.printMemoryMap()
	if bootMemAllocator.TotalFrames() == 0 {
		return errNoUsableMemory
	}

	mm.SetFrameAllocator(AllocFrame)
	return nil
}

// AllocFrame reserves a frame from the global boot memory allocator.
func AllocFrame() (mm.Frame, *kernel.Error) {
	state := allocLock.Acquire()
	defer allocLock.Release(state)

	return bootMemAllocator.AllocFrame()
}
