package pmm

import (
	"fridayos/kernel"
	"fridayos/kernel/bootinfo"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/mm"
)

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// BootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the kernel.
//
// The allocator treats the usable regions of the memory map, in the order
// reported by the boot loader, as a single sequence of frames obtained by
// stepping through each region from its start address in PageSize increments
// while the address stays below the region end. The N-th call to AllocFrame
// returns the N-th frame of that sequence.
//
// Region starts are used as reported. If a usable region does not start on a
// page boundary, its frames are the ones containing each stepped address, so
// the first one begins below the region start and the last one may extend
// past the region end. Boot loaders report frame-aligned usable regions.
//
// Allocated frames are never returned to the allocator; once the sequence is
// exhausted every subsequent allocation fails.
type BootMemAllocator struct {
	memMap []bootinfo.MemoryRegion

	// next is the sequence index of the frame that the next call to
	// AllocFrame will try to return. It is incremented by every call.
	next uint64

	// allocCount tracks the number of successfully allocated frames.
	allocCount uint64

	// The following fields cache the position of next inside memMap so
	// that allocations do not need to rescan the map from the beginning.
	// curRegionFirst is the sequence index of the first frame in
	// memMap[curRegion].
	curRegion      int
	curRegionFirst uint64
}

// NewBootMemAllocator returns a BootMemAllocator that hands out the usable
// frames of memMap.
func NewBootMemAllocator(memMap []bootinfo.MemoryRegion) *BootMemAllocator {
	alloc := new(BootMemAllocator)
	alloc.init(memMap)
	return alloc
}

// init sets up the boot memory allocator internal state.
func (alloc *BootMemAllocator) init(memMap []bootinfo.MemoryRegion) {
	*alloc = BootMemAllocator{memMap: memMap}
}

// regionFrames returns the number of frames in the sequence contributed by
// region. A trailing partial frame still counts.
func regionFrames(region *bootinfo.MemoryRegion) uint64 {
	if region.Kind != bootinfo.Usable {
		return 0
	}

	return (region.Size() + uint64(mm.PageSize-1)) >> mm.PageShift
}

// AllocFrame reserves the next available free frame.
//
// AllocFrame returns an error if no more memory can be allocated.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	index := alloc.next
	alloc.next++

	for ; alloc.curRegion < len(alloc.memMap); alloc.curRegion++ {
		region := &alloc.memMap[alloc.curRegion]
		count := regionFrames(region)
		if index < alloc.curRegionFirst+count {
			addr := region.StartAddr + ((index - alloc.curRegionFirst) << mm.PageShift)
			alloc.allocCount++
			return mm.FrameFromAddress(uintptr(addr)), nil
		}

		alloc.curRegionFirst += count
	}

	return mm.InvalidFrame, errBootAllocOutOfMemory
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// TotalFrames returns the total number of frames the allocator can hand out.
func (alloc *BootMemAllocator) TotalFrames() uint64 {
	var total uint64
	for i := range alloc.memMap {
		total += regionFrames(&alloc.memMap[i])
	}
	return total
}

// printMemoryMap prints out the memory map that the allocator operates on.
func (alloc *BootMemAllocator) printMemoryMap() {
	kfmt.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree mm.Size
	for i := range alloc.memMap {
		region := &alloc.memMap[i]
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.StartAddr, region.EndAddr, region.Size(), region.Kind.String())

		if region.Kind == bootinfo.Usable {
			totalFree += mm.Size(region.Size())
		}
	}
	kfmt.Printf("[boot_mem_alloc] available memory: %dKb (%d frames)\n", uint64(totalFree/mm.Kb), alloc.TotalFrames())
}
