// Package cache provides an optional L1 cache timing model for the PQR5
// memory interfaces. Tag and replacement state are tracked per set and
// way; cached line data lives in an Akita storage addressed by the block
// position in the cache.
package cache

import (
	"github.com/sarchlab/akita/v4/mem/mem"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes (cache line size).
	BlockSize int
	// HitLatency in cycles.
	HitLatency uint64
	// MissLatency in cycles (includes the backing memory access time).
	MissLatency uint64
}

// DefaultIConfig returns the default instruction cache configuration:
// a small direct-mapped cache sized for FPGA block RAM.
func DefaultIConfig() Config {
	return Config{
		Size:          8 * 1024,
		Associativity: 1,
		BlockSize:     32,
		HitLatency:    1,
		MissLatency:   8,
	}
}

// DefaultDConfig returns the default data cache configuration.
func DefaultDConfig() Config {
	return Config{
		Size:          8 * 1024,
		Associativity: 2,
		BlockSize:     32,
		HitLatency:    1,
		MissLatency:   8,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for read accesses).
	Data uint32
	// Evicted is true if a valid block was evicted.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted).
	EvictedAddr uint32
}

// BackingStore is the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint32, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint32, data []byte)
}

// Statistics holds cache performance counters.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// A block records the tag state of one cache line. The line data is
// stored at cacheAddress in the cache's line storage.
type block struct {
	tag          uint32
	valid        bool
	dirty        bool
	setID        int
	wayID        int
	cacheAddress uint64
}

// A set is a group of ways an address can map to. lruQueue orders way
// indices from least to most recently used.
type set struct {
	blocks   []*block
	lruQueue []int
}

// Cache models one level of cache. It is write-allocate, write-back,
// with LRU replacement.
type Cache struct {
	config  Config
	numSets int
	sets    []set
	lines   *mem.Storage
	backing BackingStore
	stats   Statistics
}

// New creates a cache with the given configuration and backing store.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	c := &Cache{
		config:  config,
		numSets: numSets,
		lines:   mem.NewStorage(uint64(config.Size)),
		backing: backing,
	}
	c.resetTags()

	return c
}

func (c *Cache) resetTags() {
	c.sets = make([]set, c.numSets)
	for i := range c.sets {
		s := &c.sets[i]
		for j := 0; j < c.config.Associativity; j++ {
			s.blocks = append(s.blocks, &block{
				setID: i,
				wayID: j,
				cacheAddress: uint64(i*c.config.Associativity+j) *
					uint64(c.config.BlockSize),
			})
			s.lruQueue = append(s.lruQueue, j)
		}
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	return addr / uint32(c.config.BlockSize) * uint32(c.config.BlockSize)
}

func (c *Cache) getSet(blockAddr uint32) *set {
	setID := int(blockAddr) / c.config.BlockSize % c.numSets
	return &c.sets[setID]
}

func (c *Cache) lookup(blockAddr uint32) *block {
	s := c.getSet(blockAddr)
	for _, b := range s.blocks {
		if b.valid && b.tag == blockAddr {
			return b
		}
	}
	return nil
}

// visit moves the block to the most recently used end of its set's LRU
// queue.
func (c *Cache) visit(b *block) {
	s := &c.sets[b.setID]
	queue := make([]int, 0, len(s.lruQueue))
	for _, wayID := range s.lruQueue {
		if wayID != b.wayID {
			queue = append(queue, wayID)
		}
	}
	s.lruQueue = append(queue, b.wayID)
}

// findVictim prefers an invalid way, then falls back to the least
// recently used way.
func (c *Cache) findVictim(blockAddr uint32) *block {
	s := c.getSet(blockAddr)
	for _, wayID := range s.lruQueue {
		if !s.blocks[wayID].valid {
			return s.blocks[wayID]
		}
	}
	return s.blocks[s.lruQueue[0]]
}

// Read performs a cache read of size bytes (1, 2, or 4) at addr.
func (c *Cache) Read(addr uint32, size int) AccessResult {
	c.stats.Reads++

	blockAddr := c.blockAddr(addr)
	if b := c.lookup(blockAddr); b != nil {
		c.stats.Hits++
		c.visit(b)

		data := c.lineData(b)
		value := extractData(data, int(addr-blockAddr), size)
		return AccessResult{Hit: true, Latency: c.config.HitLatency, Data: value}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, false, 0)
}

// Write performs a cache write of size bytes (1, 2, or 4) at addr.
// The cache is write-allocate, write-back.
func (c *Cache) Write(addr uint32, size int, data uint32) AccessResult {
	c.stats.Writes++

	blockAddr := c.blockAddr(addr)
	if b := c.lookup(blockAddr); b != nil {
		c.stats.Hits++
		c.visit(b)

		lineData := c.lineData(b)
		storeData(lineData, int(addr-blockAddr), size, data)
		c.setLineData(b, lineData)
		b.dirty = true
		return AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, true, data)
}

func (c *Cache) handleMiss(addr uint32, size int, isWrite bool, writeData uint32) AccessResult {
	result := AccessResult{Latency: c.config.MissLatency}
	blockAddr := c.blockAddr(addr)

	victim := c.findVictim(blockAddr)

	if victim.valid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.tag

		if victim.dirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(victim.tag, c.lineData(victim))
		}
	}

	lineData := make([]byte, c.config.BlockSize)
	if c.backing != nil {
		copy(lineData, c.backing.Read(blockAddr, c.config.BlockSize))
	}

	victim.tag = blockAddr
	victim.valid = true
	victim.dirty = false

	offset := int(addr - blockAddr)
	if isWrite {
		storeData(lineData, offset, size, writeData)
		victim.dirty = true
	} else {
		result.Data = extractData(lineData, offset, size)
	}
	c.setLineData(victim, lineData)

	c.visit(victim)
	return result
}

// Flush writes back all dirty blocks and invalidates every line.
func (c *Cache) Flush() {
	for i := range c.sets {
		for _, b := range c.sets[i].blocks {
			if b.valid && b.dirty && c.backing != nil {
				c.stats.Writebacks++
				c.backing.Write(b.tag, c.lineData(b))
			}
			b.valid = false
			b.dirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback and clears counters.
func (c *Cache) Reset() {
	c.resetTags()
	c.stats = Statistics{}
}

func (c *Cache) lineData(b *block) []byte {
	data, err := c.lines.Read(b.cacheAddress, uint64(c.config.BlockSize))
	if err != nil {
		panic(err)
	}
	return data
}

func (c *Cache) setLineData(b *block, data []byte) {
	err := c.lines.Write(b.cacheAddress, data)
	if err != nil {
		panic(err)
	}
}

func extractData(blockData []byte, offset, size int) uint32 {
	var value uint32
	for i := 0; i < size && offset+i < len(blockData); i++ {
		value |= uint32(blockData[offset+i]) << (8 * i)
	}
	return value
}

func storeData(blockData []byte, offset, size int, value uint32) {
	for i := 0; i < size && offset+i < len(blockData); i++ {
		blockData[offset+i] = byte(value >> (8 * i))
	}
}
