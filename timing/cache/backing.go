package cache

import (
	"github.com/sarchlab/rvpipe/emu"
)

// BackingStore is the next level below a cache. Every method returns the
// number of cycles the level needed to serve the request.
type BackingStore interface {
	// ReadLine fetches words consecutive words starting at base.
	ReadLine(base uint32, words int) ([]int32, uint64)
	// WriteLine stores consecutive words starting at base.
	WriteLine(base uint32, data []int32) uint64
	// WriteWord stores a single word.
	WriteWord(addr uint32, value int32) uint64
}

// MemoryStatistics counts the requests that reached main memory.
type MemoryStatistics struct {
	LineReads  uint64
	LineWrites uint64
	WordWrites uint64
}

// MemoryBacking wraps emu.Memory as the terminal BackingStore. It always hits
// and answers every request in a fixed number of cycles.
type MemoryBacking struct {
	memory  *emu.Memory
	latency uint64
	stats   MemoryStatistics
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory *emu.Memory, latency uint64) *MemoryBacking {
	return &MemoryBacking{memory: memory, latency: latency}
}

// Memory returns the wrapped memory.
func (m *MemoryBacking) Memory() *emu.Memory {
	return m.memory
}

// Latency returns the fixed access latency.
func (m *MemoryBacking) Latency() uint64 {
	return m.latency
}

// Stats returns the request counters.
func (m *MemoryBacking) Stats() MemoryStatistics {
	return m.stats
}

// ReadLine fetches data from the backing memory.
func (m *MemoryBacking) ReadLine(base uint32, words int) ([]int32, uint64) {
	m.stats.LineReads++

	data := make([]int32, words)
	for i := range data {
		data[i] = m.memory.Read(base + uint32(i))
	}
	return data, m.latency
}

// WriteLine stores data to the backing memory.
func (m *MemoryBacking) WriteLine(base uint32, data []int32) uint64 {
	m.stats.LineWrites++
	m.memory.LoadWords(base, data)
	return m.latency
}

// WriteWord stores a single word to the backing memory.
func (m *MemoryBacking) WriteWord(addr uint32, value int32) uint64 {
	m.stats.WordWrites++
	m.memory.Write(addr, value)
	return m.latency
}
