package vmm

import (
	"fridayos/kernel/mm"
	"testing"
)

func TestPageTableEntryFlags(t *testing.T) {
	var (
		pte   pageTableEntry
		flag1 = PageTableEntryFlag(1 << 10)
		flag2 = PageTableEntryFlag(1 << 21)
	)

	if pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return false")
	}

	pte.SetFlags(flag1 | flag2)

	if !pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return true")
	}

	if !pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return true")
	}

	pte.ClearFlags(flag1)

	if !pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return true")
	}

	if pte.HasFlags(flag1 | flag2) {
		t.Fatalf("expected HasFlags to return false")
	}

	pte.ClearFlags(flag1 | flag2)

	if pte.HasAnyFlag(flag1 | flag2) {
		t.Fatalf("expected HasAnyFlags to return false")
	}
}

func TestPageTableEntryFrameEncoding(t *testing.T) {
	var (
		pte       pageTableEntry
		physFrame = mm.Frame(123)
	)

	pte.SetFlags(FlagPresent | FlagRW | FlagNoExecute)
	pte.SetFrame(physFrame)
	if got := pte.Frame(); got != physFrame {
		t.Fatalf("expected pte.Frame() to return %v; got %v", physFrame, got)
	}

	if !pte.HasFlags(FlagPresent | FlagRW | FlagNoExecute) {
		t.Fatal("expected SetFrame to preserve the entry flags")
	}
}

func TestPageOffset(t *testing.T) {
	specs := []struct {
		virtAddr  uintptr
		expOffset uintptr
	}{
		{0x0, 0x0},
		{0x1fff, 0xfff},
		{0x444444440123, 0x123},
	}

	for specIndex, spec := range specs {
		if got := PageOffset(spec.virtAddr); got != spec.expOffset {
			t.Errorf("[spec %d] expected offset 0x%x; got 0x%x", specIndex, spec.expOffset, got)
		}
	}
}
