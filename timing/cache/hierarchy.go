package cache

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rvpipe/emu"
)

// DefaultTextBase is the word address instruction fetches are mapped to, so
// that instruction and data lines never alias in shared lower levels. Data
// words at or above the text base are reserved.
const DefaultTextBase uint32 = 0x4000_0000

// ErrTextOverlap is returned for data placed in the instruction address range.
var ErrTextOverlap = errors.New("data overlaps the instruction address range")

// memoryIndex marks the backing memory as a level's next level.
const memoryIndex = -1

// HierarchyConfig describes the levels between the pipeline and memory.
// L2 and L3 are optional; a nil entry removes the level.
type HierarchyConfig struct {
	L1I Config  `json:"l1i"`
	L1D Config  `json:"l1d"`
	L2  *Config `json:"l2,omitempty"`
	L3  *Config `json:"l3,omitempty"`

	// MemoryLatency is the fixed cost of every main memory request.
	MemoryLatency uint64 `json:"memory_latency"`

	// TextBase is added to the program counter to form the fetch address.
	TextBase uint32 `json:"text_base"`
}

// DefaultHierarchyConfig returns split L1 caches directly in front of memory.
func DefaultHierarchyConfig() HierarchyConfig {
	return HierarchyConfig{
		L1I:      DefaultL1Config(),
		L1D:      DefaultL1Config(),
		TextBase: DefaultTextBase,
	}
}

// Validate checks every configured level and the text base.
func (hc HierarchyConfig) Validate() error {
	var errs []error

	check := func(name string, c Config) {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if hc.TextBase == 0 {
		errs = append(errs, fmt.Errorf("text base must be above 0: %w", ErrInvalidGeometry))
	}

	check("L1I", hc.L1I)
	check("L1D", hc.L1D)
	if hc.L2 != nil {
		check("L2", *hc.L2)
	}
	if hc.L3 != nil {
		check("L3", *hc.L3)
	}

	return errors.Join(errs...)
}

// CheckData reports ErrTextOverlap if any of the n words starting at base
// lies at or above the text base.
func (hc HierarchyConfig) CheckData(base uint32, n int) error {
	if n == 0 {
		return nil
	}

	last := uint64(base) + uint64(n) - 1
	if last >= uint64(hc.TextBase) {
		return fmt.Errorf("words %d..%d: %w", base, last, ErrTextOverlap)
	}

	return nil
}

// LevelStats is a snapshot of one level for reporting.
type LevelStats struct {
	Name   string
	Next   string
	Config Config
	Stats  Statistics
}

// level is an arena entry. next is the arena index of the level below, or
// memoryIndex.
type level struct {
	name  string
	cache *Cache
	next  int
}

// Hierarchy owns every cache level and the backing memory. Levels refer to
// the level below by arena index; the port type resolves the index on each
// request.
type Hierarchy struct {
	levels   []level
	memory   *MemoryBacking
	l1i, l1d int
	textBase uint32
}

// port is the BackingStore handed to a cache. It forwards to the level at
// index next in the owning hierarchy.
type port struct {
	h    *Hierarchy
	next int
}

func (p port) target() BackingStore {
	if p.next == memoryIndex {
		return p.h.memory
	}
	return p.h.levels[p.next].cache
}

func (p port) ReadLine(base uint32, words int) ([]int32, uint64) {
	return p.target().ReadLine(base, words)
}

func (p port) WriteLine(base uint32, data []int32) uint64 {
	return p.target().WriteLine(base, data)
}

func (p port) WriteWord(addr uint32, value int32) uint64 {
	return p.target().WriteWord(addr, value)
}

// NewHierarchy builds L1I -> [L2] -> [L3] -> memory and
// L1D -> [L2] -> [L3] -> memory over the given memory.
func NewHierarchy(hc HierarchyConfig, memory *emu.Memory) (*Hierarchy, error) {
	if err := hc.Validate(); err != nil {
		return nil, err
	}

	h := &Hierarchy{
		memory:   NewMemoryBacking(memory, hc.MemoryLatency),
		textBase: hc.TextBase,
	}

	type entry struct {
		name   string
		config Config
	}

	// Arena order: L1I, L1D, then the shared levels top to bottom.
	entries := []entry{{"L1I", hc.L1I}, {"L1D", hc.L1D}}
	if hc.L2 != nil {
		entries = append(entries, entry{"L2", *hc.L2})
	}
	if hc.L3 != nil {
		entries = append(entries, entry{"L3", *hc.L3})
	}

	for i, e := range entries {
		next := memoryIndex
		switch {
		case i < 2 && len(entries) > 2:
			next = 2
		case i >= 2 && i+1 < len(entries):
			next = i + 1
		}

		c, err := New(e.config, port{h: h, next: next})
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", e.name, err)
		}

		h.levels = append(h.levels, level{name: e.name, cache: c, next: next})
	}

	h.l1i, h.l1d = 0, 1

	return h, nil
}

// FetchInstruction accesses the instruction chain for the word at pc.
func (h *Hierarchy) FetchInstruction(pc int) AccessResult {
	return h.levels[h.l1i].cache.Read(h.textBase + uint32(pc))
}

// LoadData reads a data word through the data chain.
func (h *Hierarchy) LoadData(addr uint32) AccessResult {
	return h.levels[h.l1d].cache.Read(addr)
}

// StoreData writes a data word through the data chain.
func (h *Hierarchy) StoreData(addr uint32, value int32) AccessResult {
	return h.levels[h.l1d].cache.Write(addr, value)
}

// Peek returns the current value of a data word. The data chain is searched
// top down and the first resident copy wins, so nothing is filled, evicted or
// counted.
func (h *Hierarchy) Peek(addr uint32) int32 {
	for i := h.l1d; i != memoryIndex; i = h.levels[i].next {
		if v, ok := h.levels[i].cache.Peek(addr); ok {
			return v
		}
	}
	return h.memory.memory.Read(addr)
}

// Level returns the cache with the given name ("L1I", "L1D", "L2", "L3"), or
// nil if the level is not configured.
func (h *Hierarchy) Level(name string) *Cache {
	for _, l := range h.levels {
		if l.name == name {
			return l.cache
		}
	}
	return nil
}

// Levels returns a statistics snapshot of every level, top to bottom.
func (h *Hierarchy) Levels() []LevelStats {
	out := make([]LevelStats, 0, len(h.levels))
	for _, l := range h.levels {
		next := "memory"
		if l.next != memoryIndex {
			next = h.levels[l.next].name
		}
		out = append(out, LevelStats{
			Name:   l.name,
			Next:   next,
			Config: l.cache.Config(),
			Stats:  l.cache.Stats(),
		})
	}
	return out
}

// Memory returns the terminal backing store.
func (h *Hierarchy) Memory() *MemoryBacking {
	return h.memory
}

// Flush writes every dirty line down to memory, upper levels first.
func (h *Hierarchy) Flush() {
	for _, l := range h.levels {
		l.cache.Flush()
	}
}

// Reset invalidates every level and clears statistics.
func (h *Hierarchy) Reset() {
	for _, l := range h.levels {
		l.cache.Reset()
	}
	h.memory.stats = MemoryStatistics{}
}
