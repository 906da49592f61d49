package main

import (
	"os"
	"strings"

	"fridayos/kernel/bootinfo"
	"fridayos/kernel/mm"
	"fridayos/kernel/mm/heap"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes the machine that the simulator boots.
type Config struct {
	// PhysicalMemory is the size of the simulated physical address space.
	// Usable regions must lie below it.
	PhysicalMemory uint64 `yaml:"physical_memory"`

	// Regions is the memory map reported by the simulated firmware, in
	// the order that the boot loader would report it.
	Regions []RegionConfig `yaml:"regions"`

	Heap HeapConfig `yaml:"heap"`
}

// RegionConfig describes one memory map entry. Kind uses the names printed
// by the kernel memory map dump; underscores may stand in for spaces.
type RegionConfig struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
	Kind  string `yaml:"kind"`
}

// HeapConfig overrides the kernel heap layout. Zero values select the
// kernel defaults.
type HeapConfig struct {
	Start uint64 `yaml:"start"`
	Size  uint64 `yaml:"size"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}

	if cfg.Heap.Start == 0 {
		cfg.Heap.Start = uint64(heap.Start)
	}
	if cfg.Heap.Size == 0 {
		cfg.Heap.Size = uint64(heap.Size)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PhysicalMemory == 0 || c.PhysicalMemory%uint64(mm.PageSize) != 0 {
		return errors.Errorf("physical_memory must be a non-zero multiple of %d; got %d", mm.PageSize, c.PhysicalMemory)
	}

	if len(c.Regions) == 0 {
		return errors.New("memory map is empty")
	}
	if len(c.Regions) > bootinfo.MaxRegions {
		return errors.Errorf("memory map has %d regions; the boot loader reports at most %d", len(c.Regions), bootinfo.MaxRegions)
	}

	for i, r := range c.Regions {
		kind, err := parseKind(r.Kind)
		if err != nil {
			return errors.Wrapf(err, "region %d", i)
		}

		if r.End <= r.Start {
			return errors.Errorf("region %d: end 0x%x is not above start 0x%x", i, r.End, r.Start)
		}

		// the allocator hands out a trailing partial frame so the whole
		// frame must be backed by the arena.
		if kind == bootinfo.Usable && alignUp(r.End) > c.PhysicalMemory {
			return errors.Errorf("region %d: usable memory ends at 0x%x, beyond physical memory size 0x%x", i, r.End, c.PhysicalMemory)
		}
	}

	if c.Heap.Start%uint64(mm.PageSize) != 0 {
		return errors.Errorf("heap start 0x%x is not page aligned", c.Heap.Start)
	}

	return nil
}

// memoryMap converts the configured regions to the layout that the boot
// loader hands over to the kernel.
func (c *Config) memoryMap() []bootinfo.MemoryRegion {
	memMap := make([]bootinfo.MemoryRegion, 0, len(c.Regions))
	for _, r := range c.Regions {
		// validate already rejected unknown kinds.
		kind, _ := parseKind(r.Kind)
		memMap = append(memMap, bootinfo.MemoryRegion{
			StartAddr: r.Start,
			EndAddr:   r.End,
			Kind:      kind,
		})
	}
	return memMap
}

func parseKind(name string) (bootinfo.RegionKind, error) {
	want := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
	for kind := bootinfo.Usable; kind.String() != "unknown"; kind++ {
		if strings.ToLower(kind.String()) == want {
			return kind, nil
		}
	}

	return 0, errors.Errorf("unknown region kind %q", name)
}

func alignUp(addr uint64) uint64 {
	return (addr + uint64(mm.PageSize-1)) &^ uint64(mm.PageSize-1)
}
