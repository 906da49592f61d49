// Package gdt sets up the global descriptor table and the task state segment
// that holds the emergency stack used by the double fault handler.
//
// Segmentation is largely disabled in 64-bit mode but the CPU still requires
// a code segment descriptor for the kernel and a TSS descriptor so that the
// interrupt stack table can be used.
package gdt

import (
	"encoding/binary"
	"fridayos/kernel/cpu"
	"unsafe"
)

// Descriptor table slots. The 64-bit TSS descriptor spans two slots with the
// upper 32 bits of the TSS address stored in the second one.
const (
	// Mandatory null selector.
	_ = iota
	// Ring 0 code (64-bit).
	segmentCode0
	// TSS.
	segmentTSS
	// TSS high address.
	segmentTSSHigh
	// End sentinel for determining the table limit.
	segmentEnd
)

const (
	// KernelCodeSelector is the selector for the ring 0 code segment.
	KernelCodeSelector = uint16(segmentCode0<<3 | ring0)

	// TSSSelector is the selector for the task state segment.
	TSSSelector = uint16(segmentTSS<<3 | ring0)

	// DoubleFaultIST is the interrupt stack table slot (1-based) that points
	// to the emergency stack. The double fault handler must be registered
	// with this IST index and no other handler may use it.
	DoubleFaultIST = 1

	// doubleFaultStackSize is the size of the emergency stack.
	doubleFaultStackSize = 5 * 4096
)

type segmentFlags uint32
type privLevel uint32

const (
	ring0 privLevel = 0
)

const (
	segFlagAccess  segmentFlags = 1 << 8
	segFlagCode                 = 1 << 11
	segFlagSystem               = 1 << 12
	segFlagPresent              = 1 << 15
	segFlagLong                 = 1 << 21
)

// segmentDescriptor represents a 64-bit segment descriptor.
type segmentDescriptor uint64

// TaskStateSegment models the 104-byte amd64 task state segment. Hardware
// task switching is not available in 64-bit mode but the TSS still specifies
// the privilege level and interrupt stack pointers. The 64-bit fields are
// not naturally aligned so the structure is modelled as a dword array.
type TaskStateSegment [26]uint32

// tssSize is the size of the task state segment in bytes.
const tssSize = uint32(unsafe.Sizeof(TaskStateSegment{}))

// SetIST sets the address for the interrupt stack number idx (1-based).
func (t *TaskStateSegment) SetIST(idx int, rsp uint64) {
	t[7+idx*2] = uint32(rsp)
	t[7+idx*2+1] = uint32(rsp >> 32)
}

// IST returns the address for the interrupt stack number idx (1-based).
func (t *TaskStateSegment) IST(idx int) uint64 {
	return uint64(t[7+idx*2]) | uint64(t[7+idx*2+1])<<32
}

// setIOMapBase sets the offset of the I/O permission bitmap. An offset equal
// to the TSS size means that no bitmap is present.
func (t *TaskStateSegment) setIOMapBase(offset uint16) {
	t[25] = uint32(offset) << 16
}

// PseudoDescriptor is the 10-byte operand of the LGDT and LIDT instructions:
// a 16-bit table limit followed by the 64-bit table address.
type PseudoDescriptor [10]byte

// NewPseudoDescriptor returns a PseudoDescriptor for a table that starts at
// base and spans size bytes.
func NewPseudoDescriptor(base, size uintptr) PseudoDescriptor {
	var desc PseudoDescriptor
	binary.LittleEndian.PutUint16(desc[:2], uint16(size-1))
	binary.LittleEndian.PutUint64(desc[2:], uint64(base))
	return desc
}

// Base returns the table address encoded in the descriptor.
func (d *PseudoDescriptor) Base() uintptr {
	return uintptr(binary.LittleEndian.Uint64(d[2:]))
}

// Limit returns the table limit encoded in the descriptor.
func (d *PseudoDescriptor) Limit() uint16 {
	return binary.LittleEndian.Uint16(d[:2])
}

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadGDTFn          = cpu.LoadGDT
	reloadCSFn         = cpu.ReloadCS
	loadSSFn           = cpu.LoadSS
	loadTaskRegisterFn = cpu.LoadTaskRegister

	// The global descriptor table, never touched after initialization.
	globalGDT [segmentEnd]segmentDescriptor

	// The global task state segment, never touched after initialization.
	globalTSS TaskStateSegment

	// gdtPointer is loaded into the GDTR register.
	gdtPointer PseudoDescriptor

	// doubleFaultStack is the emergency stack that the CPU switches to when
	// a double fault occurs.
	doubleFaultStack [doubleFaultStackSize]byte
)

// DoubleFaultStackTop returns the address of the top of the emergency stack.
// Stacks grow downwards so this is the first address past the stack end,
// rounded down to a 16-byte boundary.
func DoubleFaultStackTop() uintptr {
	return (uintptr(unsafe.Pointer(&doubleFaultStack[0])) + doubleFaultStackSize) &^ 15
}

// TSS returns the global task state segment.
func TSS() *TaskStateSegment {
	return &globalTSS
}

// Init builds the global descriptor table, loads it and reloads the segment
// and task registers. Init must be called before the IDT is installed as the
// double fault gate refers to the emergency stack through DoubleFaultIST.
func Init() {
	build()

	loadGDTFn(uintptr(unsafe.Pointer(&gdtPointer)))
	reloadCSFn(KernelCodeSelector)

	// A null SS is valid for ring 0 code in 64-bit mode. The value left
	// behind by the boot loader refers to its own table and would fault
	// when restored by IRETQ.
	loadSSFn(0)
	loadTaskRegisterFn(TSSSelector)
}

// build populates the task state segment, the descriptor table and the
// pointer that is loaded into GDTR.
func build() {
	globalTSS = TaskStateSegment{}
	globalTSS.SetIST(DoubleFaultIST, uint64(DoubleFaultStackTop()))
	globalTSS.setIOMapBase(uint16(tssSize))

	tssAddr := uintptr(unsafe.Pointer(&globalTSS))
	globalGDT[0] = 0
	globalGDT[segmentCode0] = newSegmentDescriptor(0, 0, segFlagSystem|segFlagCode|segFlagLong, ring0)
	globalGDT[segmentTSS] = newSegmentDescriptor(uint32(tssAddr), tssSize-1, segFlagAccess|segFlagCode, ring0)
	globalGDT[segmentTSSHigh] = segmentDescriptor(uint64(tssAddr) >> 32)

	gdtPointer = NewPseudoDescriptor(uintptr(unsafe.Pointer(&globalGDT)), unsafe.Sizeof(globalGDT))
}

func newSegmentDescriptor(base uint32, limit uint32, flags segmentFlags, level privLevel) segmentDescriptor {
	flags |= segFlagPresent
	w0 := base<<16 | limit&0xffff
	w1 := base&0xff000000 | limit&0xf0000 | uint32(flags) | uint32(level)<<13 | (base>>16)&0xff
	return segmentDescriptor(uint64(w1)<<32 | uint64(w0))
}
