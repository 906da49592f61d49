// Package bootinfo provides access to the boot information block that the
// boot loader hands over to the kernel entrypoint.
package bootinfo

import "unsafe"

// MaxRegions is the number of memory map entries the boot loader can report.
const MaxRegions = 64

// RegionKind defines the type of a MemoryRegion.
type RegionKind uint32

const (
	// Usable indicates that the memory region is free for use by the kernel.
	Usable RegionKind = iota

	// InUse indicates memory that the boot loader marked as used without
	// giving a more specific reason.
	InUse

	// Reserved indicates that the memory region is not available for use.
	Reserved

	// AcpiReclaimable indicates a memory region that holds ACPI tables that
	// can be reused by the OS once they have been parsed.
	AcpiReclaimable

	// AcpiNvs indicates memory that must be preserved when hibernating.
	AcpiNvs

	// BadMemory marks physical memory that reported errors.
	BadMemory

	// Kernel holds the loaded kernel image.
	Kernel

	// KernelStack holds the stack that the kernel entrypoint runs on.
	KernelStack

	// PageTable holds the page tables created by the boot loader.
	PageTable

	// Bootloader holds the boot loader code and data.
	Bootloader

	// FrameZero is the first physical frame, reserved so that a null
	// physical address never refers to valid memory.
	FrameZero

	// Empty marks a region with no memory behind it.
	Empty

	// BootInfo holds this boot information block.
	BootInfo

	// Package holds a package loaded alongside the kernel.
	Package

	// Any value >= kindUnknown is reported as unknown and never treated as
	// usable.
	kindUnknown
)

var kindNames = [...]string{
	Usable:          "usable",
	InUse:           "in use",
	Reserved:        "reserved",
	AcpiReclaimable: "ACPI (reclaimable)",
	AcpiNvs:         "ACPI NVS",
	BadMemory:       "bad memory",
	Kernel:          "kernel",
	KernelStack:     "kernel stack",
	PageTable:       "page table",
	Bootloader:      "boot loader",
	FrameZero:       "frame zero",
	Empty:           "empty",
	BootInfo:        "boot info",
	Package:         "package",
}

// String implements fmt.Stringer for RegionKind.
func (k RegionKind) String() string {
	if k >= kindUnknown {
		return "unknown"
	}
	return kindNames[k]
}

// MemoryRegion describes a physical memory region as the half-open range
// [StartAddr, EndAddr) together with its type.
type MemoryRegion struct {
	StartAddr uint64
	EndAddr   uint64
	Kind      RegionKind
	_         uint32
}

// Size returns the region length in bytes.
func (r *MemoryRegion) Size() uint64 {
	if r.EndAddr < r.StartAddr {
		return 0
	}
	return r.EndAddr - r.StartAddr
}

// Info describes the layout of the boot information block.
type Info struct {
	// The memory map reported by the firmware; only the first
	// RegionCount entries are valid.
	Regions [MaxRegions]MemoryRegion

	// The number of valid entries in Regions.
	RegionCount uint64

	// The virtual address at which the boot loader mapped the entire
	// physical memory.
	PhysicalMemoryOffset uint64
}

var (
	infoData uintptr
)

// SetInfoPtr updates the internal boot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

func info() *Info {
	return (*Info)(unsafe.Pointer(infoData))
}

// MemoryMap returns the memory regions reported by the boot loader in the
// order that they were reported. The returned slice aliases the boot
// information block and must not be modified.
func MemoryMap() []MemoryRegion {
	if infoData == 0 {
		return nil
	}

	inf := info()
	count := inf.RegionCount
	if count > MaxRegions {
		count = MaxRegions
	}

	return inf.Regions[:count]
}

// PhysicalMemoryOffset returns the virtual address where the boot loader
// mirrored the physical memory.
func PhysicalMemoryOffset() uintptr {
	if infoData == 0 {
		return 0
	}

	return uintptr(info().PhysicalMemoryOffset)
}
