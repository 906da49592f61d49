package heap

import (
	"fridayos/kernel"
	"unsafe"
)

// hole is the header stored at the start of every free block.
type hole struct {
	size uintptr
	next uintptr
}

const (
	// minBlockSize is the smallest block handed out by the allocator. Every
	// block must be able to hold a hole header once it is freed.
	minBlockSize = unsafe.Sizeof(hole{})
)

var (
	errOutOfMemory      = &kernel.Error{Module: "heap", Message: "out of memory"}
	errInvalidAlignment = &kernel.Error{Module: "heap", Message: "alignment is not a power of two"}
	errInvalidFree      = &kernel.Error{Module: "heap", Message: "freed block is outside the heap or already free"}
)

// Allocator is a first-fit allocator that keeps the free blocks of a memory
// region in an address-ordered list. The list is stored inside the free
// blocks themselves so the allocator needs no memory of its own. Adjacent
// free blocks are merged when a block is released.
//
// Callers must supply the size of a block when freeing it.
type Allocator struct {
	start uintptr
	end   uintptr
	free  uintptr

	// head is the address of the first hole or 0 if the heap is full.
	head uintptr
}

// Init hands the region [start, start+size) to the allocator. The region is
// shrunk to a multiple of minBlockSize on both ends.
func (a *Allocator) Init(start, size uintptr) {
	alignedStart := alignUp(start, minBlockSize)
	a.start = alignedStart
	a.end = (start + size) &^ (minBlockSize - 1)
	a.head = 0
	a.free = 0

	if a.end <= a.start {
		a.end = a.start
		return
	}

	a.free = a.end - a.start
	h := holeAt(a.start)
	h.size = a.free
	h.next = 0
	a.head = a.start
}

// FreeBytes returns the number of bytes that are currently not allocated.
func (a *Allocator) FreeBytes() uintptr {
	return a.free
}

// Alloc reserves a block of at least size bytes whose address is a multiple
// of align and returns its address.
func (a *Allocator) Alloc(size, align uintptr) (uintptr, *kernel.Error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, errInvalidAlignment
	}

	// also keeps the rounding in blockSize from wrapping around
	if size > a.end-a.start {
		return 0, errOutOfMemory
	}

	if align < minBlockSize {
		align = minBlockSize
	}
	size = blockSize(size)

	for link := &a.head; *link != 0; link = &holeAt(*link).next {
		holeStart := *link
		h := holeAt(holeStart)
		holeEnd := holeStart + h.size

		// Since hole addresses and sizes are multiples of minBlockSize, the
		// space before and after the block is either empty or large enough
		// to become a hole.
		blockStart := alignUp(holeStart, align)
		blockEnd := blockStart + size
		if blockEnd > holeEnd || blockEnd < blockStart {
			continue
		}

		next := h.next
		if backPad := holeEnd - blockEnd; backPad != 0 {
			back := holeAt(blockEnd)
			back.size = backPad
			back.next = next
			next = blockEnd
		}

		if frontPad := blockStart - holeStart; frontPad != 0 {
			h.size = frontPad
			h.next = next
		} else {
			*link = next
		}

		a.free -= size
		return blockStart, nil
	}

	return 0, errOutOfMemory
}

// Free releases a block previously returned by Alloc. The size argument
// must match the size passed to Alloc.
func (a *Allocator) Free(addr, size uintptr) *kernel.Error {
	if addr < a.start || addr >= a.end || size > a.end-addr || addr&(minBlockSize-1) != 0 {
		return errInvalidFree
	}

	// a.end and addr are multiples of minBlockSize so the rounded size
	// still fits.
	size = blockSize(size)

	var prevStart uintptr
	link := &a.head
	for *link != 0 && *link < addr {
		prevStart = *link
		link = &holeAt(prevStart).next
	}
	next := *link

	// reject blocks that overlap one of their neighbors
	if (prevStart != 0 && prevStart+holeAt(prevStart).size > addr) || (next != 0 && addr+size > next) {
		return errInvalidFree
	}

	h := holeAt(addr)
	h.size = size
	h.next = next
	*link = addr

	if next != 0 && addr+size == next {
		nh := holeAt(next)
		h.size += nh.size
		h.next = nh.next
	}

	if prevStart != 0 {
		if ph := holeAt(prevStart); prevStart+ph.size == addr {
			ph.size += h.size
			ph.next = h.next
		}
	}

	a.free += size
	return nil
}

func holeAt(addr uintptr) *hole {
	return (*hole)(unsafe.Pointer(addr))
}

func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// blockSize rounds a requested size up to the allocation granularity.
func blockSize(size uintptr) uintptr {
	if size < minBlockSize {
		return minBlockSize
	}
	return alignUp(size, minBlockSize)
}
