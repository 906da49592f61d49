package gdt

import (
	"fridayos/kernel/cpu"
	"testing"
	"unsafe"
)

// decodedDescriptor holds the fields of a segment descriptor.
type decodedDescriptor struct {
	base    uint32
	limit   uint32
	typ     uint8
	system  bool
	dpl     uint8
	present bool
	long    bool
}

func decode(d segmentDescriptor) decodedDescriptor {
	lo, hi := uint32(d), uint32(d>>32)
	return decodedDescriptor{
		base:    lo>>16 | (hi&0xff)<<16 | hi&0xff000000,
		limit:   lo&0xffff | hi&0xf0000,
		typ:     uint8(hi>>8) & 0xf,
		system:  hi&(1<<12) != 0,
		dpl:     uint8(hi>>13) & 3,
		present: hi&(1<<15) != 0,
		long:    hi&(1<<21) != 0,
	}
}

func TestBuild(t *testing.T) {
	build()

	t.Run("null descriptor", func(t *testing.T) {
		if globalGDT[0] != 0 {
			t.Fatalf("expected null descriptor; got 0x%x", uint64(globalGDT[0]))
		}
	})

	t.Run("kernel code segment", func(t *testing.T) {
		desc := decode(globalGDT[KernelCodeSelector>>3])
		if !desc.present || !desc.long || !desc.system || desc.dpl != 0 {
			t.Fatalf("expected a present ring 0 64-bit code segment; got %+v", desc)
		}

		// executable, non-conforming
		if desc.typ&0x8 == 0 {
			t.Fatalf("expected code segment type; got 0x%x", desc.typ)
		}
	})

	t.Run("tss descriptor", func(t *testing.T) {
		if TSSSelector != 0x10 {
			t.Fatalf("expected TSS selector to be 0x10; got 0x%x", TSSSelector)
		}

		desc := decode(globalGDT[TSSSelector>>3])
		if !desc.present || desc.system || desc.dpl != 0 {
			t.Fatalf("expected a present ring 0 system descriptor; got %+v", desc)
		}

		if exp := uint8(0x9); desc.typ != exp {
			t.Fatalf("expected available 64-bit TSS type 0x%x; got 0x%x", exp, desc.typ)
		}

		if exp := uint32(103); desc.limit != exp {
			t.Fatalf("expected TSS limit %d; got %d", exp, desc.limit)
		}

		tssAddr := uint64(uintptr(unsafe.Pointer(&globalTSS)))
		gotAddr := uint64(desc.base) | uint64(globalGDT[TSSSelector>>3+1])<<32
		if gotAddr != tssAddr {
			t.Fatalf("expected TSS base 0x%x; got 0x%x", tssAddr, gotAddr)
		}
	})

	t.Run("gdt pointer", func(t *testing.T) {
		if exp, got := uintptr(unsafe.Pointer(&globalGDT)), gdtPointer.Base(); got != exp {
			t.Fatalf("expected GDT base 0x%x; got 0x%x", exp, got)
		}

		if exp, got := uint16(len(globalGDT)*8-1), gdtPointer.Limit(); got != exp {
			t.Fatalf("expected GDT limit %d; got %d", exp, got)
		}
	})

	t.Run("double fault stack", func(t *testing.T) {
		top := TSS().IST(DoubleFaultIST)
		if top != uint64(DoubleFaultStackTop()) {
			t.Fatalf("expected IST%d to point to the emergency stack top 0x%x; got 0x%x", DoubleFaultIST, DoubleFaultStackTop(), top)
		}

		if top&15 != 0 {
			t.Fatalf("expected emergency stack top to be 16-byte aligned; got 0x%x", top)
		}

		stackStart := uint64(uintptr(unsafe.Pointer(&doubleFaultStack[0])))
		if top <= stackStart || top > stackStart+doubleFaultStackSize {
			t.Fatalf("expected emergency stack top 0x%x to lie within [0x%x, 0x%x]", top, stackStart, stackStart+doubleFaultStackSize)
		}

		if top-stackStart < 4096 {
			t.Fatalf("expected at least 4K of emergency stack; got %d bytes", top-stackStart)
		}

		for idx := 1; idx <= 7; idx++ {
			if idx != DoubleFaultIST && TSS().IST(idx) != 0 {
				t.Errorf("expected IST%d to be unused; got 0x%x", idx, TSS().IST(idx))
			}
		}
	})

	t.Run("io map base", func(t *testing.T) {
		if exp, got := uint32(104), globalTSS[25]>>16; got != exp {
			t.Fatalf("expected I/O map base to be %d; got %d", exp, got)
		}
	})
}

func TestTaskStateSegmentLayout(t *testing.T) {
	if exp, got := uintptr(104), unsafe.Sizeof(TaskStateSegment{}); got != exp {
		t.Fatalf("expected TSS to be %d bytes; got %d", exp, got)
	}

	var tss TaskStateSegment
	tss.SetIST(1, 0x1122334455667788)

	// IST1 lives at byte offset 36
	raw := (*[104]byte)(unsafe.Pointer(&tss))
	if raw[36] != 0x88 || raw[43] != 0x11 {
		t.Fatalf("expected IST1 to be stored at offset 36; got % x", raw[32:48])
	}
}

func TestInit(t *testing.T) {
	defer func() {
		loadGDTFn = cpu.LoadGDT
		reloadCSFn = cpu.ReloadCS
		loadSSFn = cpu.LoadSS
		loadTaskRegisterFn = cpu.LoadTaskRegister
	}()

	var calls []string
	loadGDTFn = func(descAddr uintptr) {
		if descAddr != uintptr(unsafe.Pointer(&gdtPointer)) {
			t.Errorf("expected LGDT operand to be the gdt pointer")
		}
		calls = append(calls, "lgdt")
	}
	reloadCSFn = func(sel uint16) {
		if sel != KernelCodeSelector {
			t.Errorf("expected CS to be reloaded with 0x%x; got 0x%x", KernelCodeSelector, sel)
		}
		calls = append(calls, "cs")
	}
	loadSSFn = func(sel uint16) {
		if sel != 0 {
			t.Errorf("expected SS to be loaded with the null selector; got 0x%x", sel)
		}
		calls = append(calls, "ss")
	}
	loadTaskRegisterFn = func(sel uint16) {
		if sel != TSSSelector {
			t.Errorf("expected task register to be loaded with 0x%x; got 0x%x", TSSSelector, sel)
		}
		calls = append(calls, "ltr")
	}

	Init()

	exp := []string{"lgdt", "cs", "ss", "ltr"}
	if len(calls) != len(exp) {
		t.Fatalf("expected calls %v; got %v", exp, calls)
	}
	for i := range exp {
		if calls[i] != exp[i] {
			t.Fatalf("expected calls %v; got %v", exp, calls)
		}
	}
}
