package emu

// Memory is a word-addressed, unbounded data store. Each address holds one
// 32-bit word; addresses never written read as zero.
type Memory struct {
	words map[uint32]int32
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{words: make(map[uint32]int32)}
}

// Read returns the word at addr.
func (m *Memory) Read(addr uint32) int32 {
	return m.words[addr]
}

// Write stores a word at addr.
func (m *Memory) Write(addr uint32, value int32) {
	if value == 0 {
		delete(m.words, addr)
		return
	}
	m.words[addr] = value
}

// LoadWords copies data into consecutive words starting at base.
func (m *Memory) LoadWords(base uint32, data []int32) {
	for i, v := range data {
		m.Write(base+uint32(i), v)
	}
}

// Footprint returns the number of non-zero words held.
func (m *Memory) Footprint() int {
	return len(m.words)
}

// Clone returns an independent copy of the memory contents.
func (m *Memory) Clone() *Memory {
	c := NewMemory()
	for addr, v := range m.words {
		c.words[addr] = v
	}
	return c
}
