package mem

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds the parameters of the cache in front of memory.
type CacheConfig struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency in cycles before the first beat of a hitting burst
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency in cycles before the first beat of a missing burst
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
}

// DefaultCacheConfig returns a 64KB, 4-way cache with 64B lines, the size of
// a vector processor's shared L2 slice.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          64 * 1024, // 64KB
		Associativity: 4,         // 4-way
		BlockSize:     64,        // 64B cache line
		HitLatency:    2,
		MissLatency:   20,
	}
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Accesses  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the fraction of block lookups that hit.
func (s CacheStats) HitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Accesses)
}

// latencyCache tracks which blocks are resident to time read bursts. It holds
// no data; bytes always come from the backing storage.
type latencyCache struct {
	config    CacheConfig
	directory *akitacache.DirectoryImpl
	stats     CacheStats
}

func newLatencyCache(config CacheConfig) *latencyCache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &latencyCache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// access looks up every block of [addr, addr+size) and returns the latency
// of the whole range: the miss latency if any block misses.
func (c *latencyCache) access(addr uint64, size int) uint64 {
	blockSize := uint64(c.config.BlockSize)
	first := addr / blockSize * blockSize
	last := (addr + uint64(size) - 1) / blockSize * blockSize

	latency := c.config.HitLatency
	for blockAddr := first; blockAddr <= last; blockAddr += blockSize {
		if !c.lookup(blockAddr) {
			latency = c.config.MissLatency
		}
	}
	return latency
}

// lookup returns true on a hit. On a miss the block is allocated.
func (c *latencyCache) lookup(blockAddr uint64) bool {
	c.stats.Accesses++

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return true
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return false
	}
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return false
}

func (c *latencyCache) reset() {
	c.directory.Reset()
	c.stats = CacheStats{}
}
