package main

import (
	"io"
	"runtime"
	"unsafe"

	"fridayos/kernel"
	"fridayos/kernel/bootinfo"
	"fridayos/kernel/kfmt"
	"fridayos/kernel/mm"
	"fridayos/kernel/mm/heap"
	"fridayos/kernel/mm/pmm"
	"fridayos/kernel/mm/vmm"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// pageMapping records where a heap page ended up.
type pageMapping struct {
	Page  mm.Page
	Frame mm.Frame
}

// report summarizes a simulated boot.
type report struct {
	RootFrame   mm.Frame
	HeapPages   []pageMapping
	FramesUsed  uint64
	TableFrames uint64
}

// progressMapper advances a progress bar for every page it maps.
type progressMapper struct {
	heap.PageMapper
	bar *progressbar.ProgressBar
}

func (m *progressMapper) Map(page mm.Page, frame mm.Frame, flags vmm.PageTableEntryFlag, allocFn mm.FrameAllocatorFn) *kernel.Error {
	err := m.PageMapper.Map(page, frame, flags, allocFn)
	if err == nil {
		_ = m.bar.Add(1)
	}
	return err
}

// simulator runs the kernel memory bootstrap against a byte slice that
// stands in for physical memory. The slice is mirrored at its own host
// address, the same way the boot loader mirrors physical memory at a fixed
// virtual offset.
type simulator struct {
	cfg    *Config
	memMap []bootinfo.MemoryRegion

	arena      []byte
	physOffset uintptr

	progress io.Writer
}

func newSimulator(cfg *Config, progress io.Writer) *simulator {
	s := &simulator{
		cfg:      cfg,
		memMap:   cfg.memoryMap(),
		arena:    make([]byte, cfg.PhysicalMemory+uint64(mm.PageSize)),
		progress: progress,
	}

	base := uintptr(unsafe.Pointer(&s.arena[0]))
	s.physOffset = (base + mm.PageSize - 1) &^ (mm.PageSize - 1)
	return s
}

// run brings up the frame allocator, builds a fresh page table hierarchy
// and maps the heap region through it.
func (s *simulator) run() (*report, error) {
	defer runtime.KeepAlive(s.arena)

	if err := pmm.Init(s.memMap); err != nil {
		return nil, errors.Wrap(err, "frame allocator")
	}

	var rep report
	allocFn := func() (mm.Frame, *kernel.Error) {
		frame, err := mm.AllocFrame()
		if err == nil {
			rep.FramesUsed++
		}
		return frame, err
	}

	root, kErr := allocFn()
	if kErr != nil {
		return nil, errors.Wrap(kErr, "allocate root page table")
	}
	rep.RootFrame = root

	mapper := vmm.NewMapper(root, s.physOffset, func(uintptr) {})
	kfmt.Printf("[bootsim] physical memory mirrored at 0x%16x, root table at 0x%x\n", s.physOffset, root.Address())

	start := uintptr(s.cfg.Heap.Start)
	size := mm.Size(s.cfg.Heap.Size)
	pages := size.Pages()

	bar := progressbar.NewOptions64(
		int64(pages),
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription("mapping heap"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	if kErr = heap.MapRegion(&progressMapper{PageMapper: mapper, bar: bar}, allocFn, start, size); kErr != nil {
		return nil, errors.Wrapf(kErr, "map heap at 0x%x", start)
	}

	firstPage := mm.PageFromAddress(start)
	for i := uintptr(0); i < pages; i++ {
		page := firstPage + mm.Page(i)
		phys, err := mapper.Translate(page.Address())
		if err != nil {
			return nil, errors.Wrapf(err, "translate heap page 0x%x", page.Address())
		}

		if err := s.checkFrame(phys); err != nil {
			return nil, errors.Wrapf(err, "heap page 0x%x", page.Address())
		}

		rep.HeapPages = append(rep.HeapPages, pageMapping{Page: page, Frame: mm.FrameFromAddress(phys)})
	}

	// root table included
	rep.TableFrames = rep.FramesUsed - uint64(pages)

	kfmt.Printf("[bootsim] mapped %d heap pages using %d frames (%d for page tables)\n", uint64(pages), rep.FramesUsed, rep.TableFrames)
	return &rep, nil
}

// checkFrame verifies that phys lies in usable memory and that the page is
// backed by the arena by writing a pattern through the physical mirror.
func (s *simulator) checkFrame(phys uintptr) error {
	usable := false
	for i := range s.memMap {
		r := &s.memMap[i]
		if r.Kind == bootinfo.Usable && uint64(phys) >= r.StartAddr && uint64(phys) < alignUp(r.EndAddr) {
			usable = true
			break
		}
	}
	if !usable {
		return errors.Errorf("frame 0x%x is outside usable memory", phys)
	}

	word := (*uint64)(unsafe.Pointer(s.physOffset + phys))
	*word = 0xfeedfacecafebeef
	if *word != 0xfeedfacecafebeef {
		return errors.Errorf("frame 0x%x did not retain written data", phys)
	}
	*word = 0

	return nil
}
