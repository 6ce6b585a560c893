// Package cache models a word-addressed set-associative cache hierarchy on top
// of the Akita cache directory.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes, including the time
	// lower levels spent filling the line.
	Latency uint64
	// Value is the word read (for reads).
	Value int32
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Accesses returns the number of reads and writes served.
func (s Statistics) Accesses() uint64 {
	return s.Reads + s.Writes
}

// HitRate returns hits per access. An untouched cache reports 1.
func (s Statistics) HitRate() float64 {
	if s.Accesses() == 0 {
		return 1
	}
	return float64(s.Hits) / float64(s.Accesses())
}

// MissRate returns misses per access.
func (s Statistics) MissRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Accesses())
}

// AMAT returns the average memory access time hit + missRate * penalty.
func (s Statistics) AMAT(hitLatency, missPenalty uint64) float64 {
	return float64(hitLatency) + s.MissRate()*float64(missPenalty)
}

// MPKI returns misses per thousand instructions.
func (s Statistics) MPKI(instructions uint64) float64 {
	if instructions == 0 {
		return 0
	}
	return float64(s.Misses) * 1000 / float64(instructions)
}

// Cache represents one cache level. Tags, set selection and LRU ordering are
// kept by an Akita directory; line contents live in a parallel data store.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management. Block tags hold the
	// line-aligned word address.
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]int32

	stats Statistics

	backing BackingStore
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if backing == nil {
		return nil, errors.New("cache requires a backing store")
	}

	numSets := config.NumSets()
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]int32, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]int32, config.LineWords)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.LineWords,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// AMAT returns the average access time of this level from its own counters.
func (c *Cache) AMAT() float64 {
	return c.stats.AMAT(c.config.HitLatency, c.config.MissPenalty)
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) lineBase(addr uint32) uint32 {
	return addr &^ uint32(c.config.LineWords-1)
}

func (c *Cache) lineOffset(addr uint32) int {
	return int(addr & uint32(c.config.LineWords-1))
}

func (c *Cache) lookup(addr uint32) *akitacache.Block {
	block := c.directory.Lookup(0, uint64(c.lineBase(addr)))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Probe reports whether addr is resident without touching LRU state or
// statistics.
func (c *Cache) Probe(addr uint32) bool {
	return c.lookup(addr) != nil
}

// Peek returns the cached copy of addr without touching LRU state or
// statistics. ok is false if no resident line holds addr.
func (c *Cache) Peek(addr uint32) (value int32, ok bool) {
	block := c.lookup(addr)
	if block == nil {
		return 0, false
	}
	return c.dataStore[c.blockIndex(block)][c.lineOffset(addr)], true
}

// Read performs a cache read operation.
func (c *Cache) Read(addr uint32) AccessResult {
	data, hit, latency := c.readWords(addr, 1)
	return AccessResult{Hit: hit, Latency: latency, Value: data[0]}
}

// Write performs a cache write operation.
func (c *Cache) Write(addr uint32, value int32) AccessResult {
	hit, latency := c.writeWords(addr, []int32{value})
	return AccessResult{Hit: hit, Latency: latency}
}

// ReadLine lets an upper level fill its line from this cache. Each line of
// this cache touched by the range counts as one access; the reported latency
// is the slowest of them.
func (c *Cache) ReadLine(base uint32, words int) ([]int32, uint64) {
	out := make([]int32, 0, words)
	var latency uint64

	for addr, end := base, base+uint32(words); addr != end; {
		n := c.chunk(addr, end)
		data, _, l := c.readWords(addr, n)
		out = append(out, data...)
		latency = max(latency, l)
		addr += uint32(n)
	}

	return out, latency
}

// WriteLine accepts a written-back line from an upper level.
func (c *Cache) WriteLine(base uint32, data []int32) uint64 {
	var latency uint64

	for off := 0; off < len(data); {
		addr := base + uint32(off)
		n := c.chunk(addr, base+uint32(len(data)))
		_, l := c.writeWords(addr, data[off:off+n])
		latency = max(latency, l)
		off += n
	}

	return latency
}

// WriteWord accepts a write-through or non-allocated store from an upper
// level.
func (c *Cache) WriteWord(addr uint32, value int32) uint64 {
	return c.Write(addr, value).Latency
}

// chunk returns how many words starting at addr, up to end, fall into the
// same line.
func (c *Cache) chunk(addr, end uint32) int {
	n := c.config.LineWords - c.lineOffset(addr)
	if remaining := int(end - addr); remaining < n {
		n = remaining
	}
	return n
}

// readWords reads n words that lie within a single line.
func (c *Cache) readWords(addr uint32, n int) ([]int32, bool, uint64) {
	c.stats.Reads++

	block := c.lookup(addr)
	hit := block != nil
	latency := c.config.HitLatency

	if hit {
		c.stats.Hits++
		c.directory.Visit(block)
	} else {
		c.stats.Misses++
		var fillLatency uint64
		block, fillLatency = c.fill(addr)
		latency += c.config.MissPenalty + fillLatency
	}

	off := c.lineOffset(addr)
	data := make([]int32, n)
	copy(data, c.dataStore[c.blockIndex(block)][off:off+n])

	return data, hit, latency
}

// writeWords writes data that lies within a single line.
func (c *Cache) writeWords(addr uint32, data []int32) (bool, uint64) {
	c.stats.Writes++

	block := c.lookup(addr)
	if block != nil {
		c.stats.Hits++
		c.directory.Visit(block)
		c.storeWords(block, addr, data)
		return true, c.config.HitLatency
	}

	c.stats.Misses++
	latency := c.config.HitLatency + c.config.MissPenalty

	if !c.config.allocatesOnWrite() {
		return false, latency + c.propagate(addr, data)
	}

	block, fillLatency := c.fill(addr)
	c.storeWords(block, addr, data)

	return false, latency + fillLatency
}

// storeWords updates a resident line according to the write policy. The
// write-through propagation is buffered, so its latency is not charged.
func (c *Cache) storeWords(block *akitacache.Block, addr uint32, data []int32) {
	copy(c.dataStore[c.blockIndex(block)][c.lineOffset(addr):], data)

	if c.config.writeThrough() {
		c.propagate(addr, data)
		return
	}

	block.IsDirty = true
}

func (c *Cache) propagate(addr uint32, data []int32) uint64 {
	if len(data) == 1 {
		return c.backing.WriteWord(addr, data[0])
	}
	return c.backing.WriteLine(addr, data)
}

// fill installs the line holding addr, evicting the LRU way if needed, and
// returns the latency the next level reported for the line.
func (c *Cache) fill(addr uint32) (*akitacache.Block, uint64) {
	base := c.lineBase(addr)

	victim := c.directory.FindVictim(uint64(base))
	if victim == nil {
		panic(fmt.Sprintf("cache: no victim for line %#x", base))
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++

		if victim.IsDirty {
			c.stats.Writebacks++
			c.backing.WriteLine(uint32(victim.Tag), victimData)
		}
	}

	data, latency := c.backing.ReadLine(base, c.config.LineWords)
	copy(victimData, data)

	victim.Tag = uint64(base)
	victim.IsValid = true
	victim.IsDirty = false

	c.directory.Visit(victim)

	return victim, latency
}

// Flush writes back all dirty lines and invalidates every line.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.backing.WriteLine(uint32(block.Tag), c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all lines without writeback and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
