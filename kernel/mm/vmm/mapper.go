package vmm

import (
	"fridayos/kernel"
	"fridayos/kernel/mm"
	"fridayos/kernel/sync"
	"unsafe"
)

var (
	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// Mapper edits a 4-level page table hierarchy whose tables are reachable
// through a fixed virtual offset at which the boot loader mirrors the entire
// physical memory. All physical to virtual address arithmetic performed by
// the kernel goes through a Mapper.
type Mapper struct {
	pml4       mm.Frame
	physOffset uintptr

	// flushFn invalidates the cached translation for a virtual address.
	flushFn func(uintptr)

	lock sync.IRQSpinlock
}

// NewMapper returns a Mapper for the page table hierarchy rooted at pml4.
// The flushFn argument is invoked with the address of each page whose
// translation changes.
func NewMapper(pml4 mm.Frame, physOffset uintptr, flushFn func(uintptr)) *Mapper {
	m := new(Mapper)
	m.init(pml4, physOffset, flushFn)
	return m
}

func (m *Mapper) init(pml4 mm.Frame, physOffset uintptr, flushFn func(uintptr)) {
	m.pml4 = pml4
	m.physOffset = physOffset
	m.flushFn = flushFn
}

// RootFrame returns the physical frame of the top-level page table.
func (m *Mapper) RootFrame() mm.Frame {
	return m.pml4
}

// PhysToVirt returns the virtual address through which the physical address
// can be accessed. The result is only meaningful for addresses within the
// mirrored physical memory range.
func (m *Mapper) PhysToVirt(physAddr uintptr) uintptr {
	return physAddr + m.physOffset
}

// VirtToPhys is the inverse of PhysToVirt. It must only be called with
// addresses inside the mirrored physical memory range; use Translate for
// arbitrary virtual addresses.
func (m *Mapper) VirtToPhys(virtAddr uintptr) uintptr {
	return virtAddr - m.physOffset
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments.  If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address. It calls the
// suppplied walkFn with the page table entry that corresponds to each page
// table level. The table for the next level is located by following the
// entry after walkFn returns, so walkFn may install missing tables.
func (m *Mapper) walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level                            uint8
		tableAddr, entryAddr, entryIndex uintptr
		pte                              *pageTableEntry
	)

	for level, tableAddr = uint8(0), m.PhysToVirt(m.pml4.Address()); level < pageLevels; level++ {
		// Extract the bits from virtual address that correspond to the
		// index in this level's page table
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr = tableAddr + (entryIndex << mm.PointerShift)
		pte = (*pageTableEntry)(unsafe.Pointer(entryAddr))

		if !walkFn(level, pte) {
			return
		}

		tableAddr = m.PhysToVirt(pte.Frame().Address())
	}
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address. Translate understands the huge
// pages that the boot loader may have used to set up the physical memory
// mirror.
func (m *Mapper) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		physAddr uintptr
		err      = ErrInvalidMapping
	)

	state := m.lock.Acquire()
	defer m.lock.Release(state)

	m.walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		if pteLevel == pageLevels-1 || pte.HasFlags(FlagHugePage) {
			// Calculate the physical address by taking the physical frame
			// address and appending the offset from the virtual address
			pageOffsetMask := uintptr(1)<<pageLevelShifts[pteLevel] - 1
			physAddr = (uintptr(*pte) & ptePhysPageMask &^ pageOffsetMask) + (virtAddr & pageOffsetMask)
			err = nil
			return false
		}

		return true
	})

	if err != nil {
		return 0, err
	}

	return physAddr, nil
}

// Map establishes a mapping between a virtual page and a physical memory
// frame. Missing page tables are allocated with allocFn (or the active frame
// allocator if allocFn is nil), cleared and linked as present and writable.
// The leaf entry receives the supplied flags and is always marked as
// present.
//
// Map fails with ErrPageAlreadyMapped if page already has a translation; the
// existing mapping is left untouched.
func (m *Mapper) Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag, allocFn mm.FrameAllocatorFn) *kernel.Error {
	if allocFn == nil {
		allocFn = mm.AllocFrame
	}

	var err *kernel.Error

	state := m.lock.Acquire()
	defer m.lock.Release(state)

	m.walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) {
				err = ErrPageAlreadyMapped
				return false
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags | FlagPresent)
			m.flushFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagPresent | FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and clear its contents before linking it.
		if !pte.HasFlags(FlagPresent) {
			var newTableFrame mm.Frame
			newTableFrame, err = allocFn()
			if err != nil {
				return false
			}

			kernel.Memset(m.PhysToVirt(newTableFrame.Address()), 0, mm.PageSize)

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		return true
	})

	return err
}

// Unmap removes a mapping previously installed via a call to Map and flushes
// the page's TLB entry. The page tables that held the mapping are not
// released. Unmap returns ErrInvalidMapping if the page is not mapped.
func (m *Mapper) Unmap(page mm.Page) *kernel.Error {
	var err *kernel.Error

	state := m.lock.Acquire()
	defer m.lock.Release(state)

	m.walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		// Next table is not present; this is an invalid mapping
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		// If we reached the last level all we need to do is to clear the
		// entry and flush its TLB entry
		if pteLevel == pageLevels-1 {
			*pte = 0
			m.flushFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return err
}
