// Package heap maps the kernel heap region and manages the memory inside it.
package heap

import (
	"fridayos/kernel"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/mm"
	"fridayos/kernel/mm/vmm"
	"fridayos/kernel/sync"
)

const (
	// Start is the virtual address of the kernel heap.
	Start = uintptr(0x0000_4444_4444_0000)

	// Size is the size of the kernel heap in bytes.
	Size = 100 * mm.Kb

	// regionFlags are applied to every heap page.
	regionFlags = vmm.FlagPresent | vmm.FlagRW | vmm.FlagNoExecute
)

// PageMapper installs and removes virtual to physical page translations.
type PageMapper interface {
	Map(page mm.Page, frame mm.Frame, flags vmm.PageTableEntryFlag, allocFn mm.FrameAllocatorFn) *kernel.Error
	Unmap(page mm.Page) *kernel.Error
}

var (
	kernelHeap Allocator
	heapLock   sync.IRQSpinlock
)

// MapRegion maps every page that overlaps [start, start+size) to a newly
// allocated frame. The same allocator supplies the frames for any page
// tables that need to be created. If a page cannot be mapped, the pages
// mapped so far are unmapped before the error is returned. Their frames are
// not reclaimed.
func MapRegion(mapper PageMapper, allocFn mm.FrameAllocatorFn, start uintptr, size mm.Size) *kernel.Error {
	if size == 0 {
		return nil
	}

	firstPage := mm.PageFromAddress(start)
	lastPage := mm.PageFromAddress(start + uintptr(size) - 1)

	for page := firstPage; page <= lastPage; page++ {
		frame, err := allocFn()
		if err == nil {
			err = mapper.Map(page, frame, regionFlags, allocFn)
		}

		if err != nil {
			for mapped := firstPage; mapped < page; mapped++ {
				_ = mapper.Unmap(mapped)
			}
			return err
		}
	}

	return nil
}

// Init maps the kernel heap region and hands it to the kernel allocator.
func Init(mapper PageMapper, allocFn mm.FrameAllocatorFn) *kernel.Error {
	return initRegion(mapper, allocFn, Start, Size)
}

func initRegion(mapper PageMapper, allocFn mm.FrameAllocatorFn, start uintptr, size mm.Size) *kernel.Error {
	if err := MapRegion(mapper, allocFn, start, size); err != nil {
		return err
	}

	state := heapLock.Acquire()
	kernelHeap.Init(start, uintptr(size))
	heapLock.Release(state)

	kfmt.Printf("[heap] mapped %dKb at 0x%16x (%d pages)\n", uint64(size/mm.Kb), start, size.Pages())
	return nil
}

// Alloc reserves size bytes aligned to align from the kernel heap.
func Alloc(size, align uintptr) (uintptr, *kernel.Error) {
	state := heapLock.Acquire()
	defer heapLock.Release(state)

	return kernelHeap.Alloc(size, align)
}

// Free returns a block obtained from Alloc to the kernel heap.
func Free(addr, size uintptr) *kernel.Error {
	state := heapLock.Acquire()
	defer heapLock.Release(state)

	return kernelHeap.Free(addr, size)
}

// FreeBytes returns the number of unallocated bytes in the kernel heap.
func FreeBytes() uintptr {
	state := heapLock.Acquire()
	defer heapLock.Release(state)

	return kernelHeap.FreeBytes()
}

var _ PageMapper = (*vmm.Mapper)(nil)
