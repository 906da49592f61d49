// Package cpu exposes the privileged x86-64 instructions used by the kernel.
// All functions without a body are implemented in cpu_amd64.s.
package cpu

var (
	cpuidFn = ID
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the IF bit of RFLAGS is set.
func InterruptsEnabled() bool

// PrivilegeLevel returns the current privilege level (the RPL bits of CS).
// It is 0 when running as the kernel and 3 when the code runs as a regular
// user-space process, e.g. inside tests or the boot simulator.
func PrivilegeLevel() uint8

// Halt disables interrupts and stops instruction execution. It never
// returns.
func Halt()

// WaitForInterrupt idles the CPU until the next interrupt arrives.
func WaitForInterrupt()

// Breakpoint raises a breakpoint exception (INT3).
func Breakpoint()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64

// LoadGDT loads the GDTR register with the 10-byte pseudo-descriptor
// (16-bit limit followed by the 64-bit base) at descAddr.
func LoadGDT(descAddr uintptr)

// LoadIDT loads the IDTR register with the 10-byte pseudo-descriptor at
// descAddr.
func LoadIDT(descAddr uintptr)

// LoadTaskRegister loads the task register with the supplied TSS selector.
func LoadTaskRegister(sel uint16)

// ReloadCS performs a far return so that CS is reloaded with the supplied
// code segment selector.
func ReloadCS(sel uint16)

// csReloaded is the far-return target used by ReloadCS.
func csReloaded()

// LoadSS loads the stack segment register with the supplied selector.
func LoadSS(sel uint16)

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// HasNX returns true if the CPU supports the no-execute page flag.
func HasNX() bool {
	maxExtLeaf, _, _, _ := cpuidFn(0x80000000)
	if maxExtLeaf < 0x80000001 {
		return false
	}

	_, _, _, edx := cpuidFn(0x80000001)
	return edx&(1<<20) != 0
}

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortWriteWord writes a uint16 value to the requested port.
func PortWriteWord(port uint16, val uint16)

// PortWriteDword writes a uint32 value to the requested port.
func PortWriteDword(port uint16, val uint32)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// PortReadWord reads a uint16 value from the requested port.
func PortReadWord(port uint16) uint16

// PortReadDword reads a uint32 value from the requested port.
func PortReadDword(port uint16) uint32

// IOWait waits for a pending port I/O operation to complete by writing to an
// unused port.
func IOWait() {
	PortWriteByte(0x80, 0)
}
