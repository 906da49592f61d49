package pmm

import (
	"bytes"
	"fmt"
	"fridayos/kernel/bootinfo"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/mm"
	"strings"
	"testing"
)

// qemuMemoryMap is the memory map reported by the boot loader when running
// under qemu with 128M of RAM.
var qemuMemoryMap = []bootinfo.MemoryRegion{
	{StartAddr: 0x0, EndAddr: 0x1000, Kind: bootinfo.FrameZero},
	{StartAddr: 0x1000, EndAddr: 0x5000, Kind: bootinfo.PageTable},
	{StartAddr: 0x5000, EndAddr: 0x16000, Kind: bootinfo.Bootloader},
	{StartAddr: 0x16000, EndAddr: 0x17000, Kind: bootinfo.BootInfo},
	{StartAddr: 0x17000, EndAddr: 0x9fc00, Kind: bootinfo.Usable},
	{StartAddr: 0x9fc00, EndAddr: 0xa0000, Kind: bootinfo.Reserved},
	{StartAddr: 0xf0000, EndAddr: 0x100000, Kind: bootinfo.Reserved},
	{StartAddr: 0x100000, EndAddr: 0x400000, Kind: bootinfo.Kernel},
	{StartAddr: 0x400000, EndAddr: 0x7fe0000, Kind: bootinfo.Usable},
	{StartAddr: 0x7fe0000, EndAddr: 0x8000000, Kind: bootinfo.Reserved},
	{StartAddr: 0xfffc0000, EndAddr: 0x100000000, Kind: bootinfo.Reserved},
}

func TestBootMemAllocatorSingleRegion(t *testing.T) {
	alloc := NewBootMemAllocator([]bootinfo.MemoryRegion{
		{StartAddr: 0x100000, EndAddr: 0x200000, Kind: bootinfo.Usable},
	})

	for i := uintptr(0); i < 256; i++ {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("[frame %d] unexpected error: %v", i, err)
		}

		if exp, got := 0x100000+i*uintptr(mm.PageSize), frame.Address(); got != exp {
			t.Fatalf("[frame %d] expected address 0x%x; got 0x%x", i, exp, got)
		}
	}

	// Exhaustion is permanent
	for i := 0; i < 4; i++ {
		frame, err := alloc.AllocFrame()
		if err != errBootAllocOutOfMemory {
			t.Fatalf("[attempt %d] expected errBootAllocOutOfMemory; got %v", i, err)
		}

		if frame.Valid() {
			t.Fatalf("[attempt %d] expected an invalid frame", i)
		}
	}

	if exp, got := uint64(256), alloc.AllocCount(); got != exp {
		t.Fatalf("expected alloc count to be %d; got %d", exp, got)
	}

	if exp, got := uint64(260), alloc.next; got != exp {
		t.Fatalf("expected next to be incremented by every call (%d); got %d", exp, got)
	}
}

func TestBootMemAllocatorUnalignedRegion(t *testing.T) {
	alloc := NewBootMemAllocator([]bootinfo.MemoryRegion{
		{StartAddr: 0x10800, EndAddr: 0x12800, Kind: bootinfo.Usable},
	})

	// 0x10800 and 0x11800 are stepped; each yields its containing frame.
	for i, exp := range []uintptr{0x10000, 0x11000} {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("[frame %d] unexpected error: %v", i, err)
		}

		if got := frame.Address(); got != exp {
			t.Fatalf("[frame %d] expected address 0x%x; got 0x%x", i, exp, got)
		}
	}

	if _, err := alloc.AllocFrame(); err != errBootAllocOutOfMemory {
		t.Fatalf("expected errBootAllocOutOfMemory; got %v", err)
	}
}

func TestBootMemAllocatorSequence(t *testing.T) {
	alloc := NewBootMemAllocator(qemuMemoryMap)

	// Build the expected sequence by stepping through the usable regions
	var expFrames []uintptr
	for _, region := range qemuMemoryMap {
		if region.Kind != bootinfo.Usable {
			continue
		}
		for addr := region.StartAddr; addr < region.EndAddr; addr += uint64(mm.PageSize) {
			expFrames = append(expFrames, uintptr(addr))
		}
	}

	if exp, got := uint64(len(expFrames)), alloc.TotalFrames(); got != exp {
		t.Fatalf("expected TotalFrames to return %d; got %d", exp, got)
	}

	var lastAddr uintptr
	for i, exp := range expFrames {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("[frame %d] unexpected error: %v", i, err)
		}

		got := frame.Address()
		if got != exp {
			t.Fatalf("[frame %d] expected address 0x%x; got 0x%x", i, exp, got)
		}

		if got&(mm.PageSize-1) != 0 {
			t.Fatalf("[frame %d] address 0x%x is not page-aligned", i, got)
		}

		if i > 0 && got <= lastAddr {
			t.Fatalf("[frame %d] expected addresses to increase; 0x%x follows 0x%x", i, got, lastAddr)
		}
		lastAddr = got

		if !inUsableRegion(got) {
			t.Fatalf("[frame %d] address 0x%x is not inside a usable region", i, got)
		}
	}

	if _, err := alloc.AllocFrame(); err != errBootAllocOutOfMemory {
		t.Fatalf("expected errBootAllocOutOfMemory after %d frames; got %v", len(expFrames), err)
	}
}

func TestBootMemAllocatorPartialFrame(t *testing.T) {
	alloc := NewBootMemAllocator([]bootinfo.MemoryRegion{
		{StartAddr: 0x1000, EndAddr: 0x2800, Kind: bootinfo.Usable},
		{StartAddr: 0x2800, EndAddr: 0x10000, Kind: bootinfo.Reserved},
		{StartAddr: 0x10000, EndAddr: 0x10000, Kind: bootinfo.Usable},
		{StartAddr: 0x20000, EndAddr: 0x21000, Kind: bootinfo.RegionKind(0xff)},
	})

	expAddrs := []uintptr{0x1000, 0x2000}
	for i, exp := range expAddrs {
		frame, err := alloc.AllocFrame()
		if err != nil {
			t.Fatalf("[frame %d] unexpected error: %v", i, err)
		}

		if got := frame.Address(); got != exp {
			t.Fatalf("[frame %d] expected address 0x%x; got 0x%x", i, exp, got)
		}
	}

	if _, err := alloc.AllocFrame(); err != errBootAllocOutOfMemory {
		t.Fatalf("expected errBootAllocOutOfMemory; got %v", err)
	}
}

func TestBootMemAllocatorEmptyMap(t *testing.T) {
	var alloc BootMemAllocator
	if _, err := alloc.AllocFrame(); err != errBootAllocOutOfMemory {
		t.Fatalf("expected errBootAllocOutOfMemory; got %v", err)
	}
}

func TestPrintMemoryMap(t *testing.T) {
	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)

	alloc := NewBootMemAllocator([]bootinfo.MemoryRegion{
		{StartAddr: 0x0, EndAddr: 0x1000, Kind: bootinfo.FrameZero},
		{StartAddr: 0x100000, EndAddr: 0x200000, Kind: bootinfo.Usable},
	})
	buf.Reset()
	alloc.printMemoryMap()

	exp := strings.Join([]string{
		"[boot_mem_alloc] system memory map:",
		"\t[0x0000000000 - 0x0000001000], size:       4096, type: frame zero",
		"\t[0x0000100000 - 0x0000200000], size:    1048576, type: usable",
		"[boot_mem_alloc] available memory: 1024Kb (256 frames)",
		"",
	}, "\n")

	if got := buf.String(); got != exp {
		t.Fatalf("expected printMemoryMap to generate the following output:\n%q\ngot:\n%q", exp, got)
	}
}

func inUsableRegion(addr uintptr) bool {
	for _, region := range qemuMemoryMap {
		if region.Kind == bootinfo.Usable && uint64(addr) >= region.StartAddr && uint64(addr) < region.EndAddr {
			return true
		}
	}
	return false
}

func ExampleBootMemAllocator() {
	alloc := NewBootMemAllocator([]bootinfo.MemoryRegion{
		{StartAddr: 0x100000, EndAddr: 0x102000, Kind: bootinfo.Usable},
	})

	for {
		frame, err := alloc.AllocFrame()
		if err != nil {
			fmt.Println(err.Error())
			break
		}
		fmt.Printf("0x%x\n", frame.Address())
	}

	// Output:
	// 0x100000
	// 0x101000
	// out of memory
}
