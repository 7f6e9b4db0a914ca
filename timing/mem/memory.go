// Package mem models the memory side of the load unit: an AXI read slave
// that times bursts through a cache directory and streams read data out of an
// Akita storage one beat per cycle.
package mem

import (
	"fmt"

	"github.com/go-logr/logr"
	akitamem "github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vldusim/timing/axi"
)

// Config holds the memory model parameters.
type Config struct {
	// Capacity of the backing storage in bytes. Default: 1MB.
	Capacity uint64 `json:"capacity" yaml:"capacity"`

	// BusBytes is the read-data bus width.
	BusBytes int `json:"bus_bytes" yaml:"bus_bytes"`

	// MaxInflight is the number of accepted bursts that can wait for data.
	// Default: 4.
	MaxInflight int `json:"max_inflight" yaml:"max_inflight"`

	// RBufferDepth is the depth of the read-data channel FIFO. Default: 2.
	RBufferDepth int `json:"r_buffer_depth" yaml:"r_buffer_depth"`

	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// DefaultConfig returns the default memory configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:     1 << 20,
		BusBytes:     32,
		MaxInflight:  4,
		RBufferDepth: 2,
		Cache:        DefaultCacheConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Capacity == 0 {
		return fmt.Errorf("capacity must be > 0")
	}
	if c.BusBytes <= 0 || c.BusBytes&(c.BusBytes-1) != 0 {
		return fmt.Errorf("bus_bytes must be a power of two")
	}
	if c.MaxInflight <= 0 {
		return fmt.Errorf("max_inflight must be > 0")
	}
	if c.RBufferDepth <= 0 {
		return fmt.Errorf("r_buffer_depth must be > 0")
	}
	if c.Cache.Associativity <= 0 || c.Cache.BlockSize <= 0 ||
		c.Cache.Size < c.Cache.Associativity*c.Cache.BlockSize {
		return fmt.Errorf("cache geometry %d/%d/%d is invalid",
			c.Cache.Size, c.Cache.Associativity, c.Cache.BlockSize)
	}
	return nil
}

// Stats holds memory activity counters.
type Stats struct {
	Bursts uint64
	Beats  uint64

	// ChannelStalls counts cycles a beat was ready but the read-data
	// channel was full.
	ChannelStalls uint64

	Cache CacheStats
}

// Outputs are the signals the memory drives.
type Outputs struct {
	ARReady bool

	RValid bool
	R      axi.Beat
}

// Inputs are the handshakes observed by the memory at the clock edge.
type Inputs struct {
	ARValid bool
	AR      axi.AddrReq

	RReady bool
}

type txn struct {
	req  axi.AddrReq
	wait uint64
	beat int
}

// Memory is a read-only AXI slave.
type Memory struct {
	config  Config
	log     logr.Logger
	storage *akitamem.Storage
	cache   *latencyCache

	inflight []*txn
	rChannel sim.Buffer

	stats Stats
}

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(m *Memory) {
		m.log = logger
	}
}

// New creates a memory model. It panics on an invalid configuration.
func New(config Config, opts ...Option) *Memory {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("mem: invalid config: %v", err))
	}

	m := &Memory{
		config:   config,
		log:      logr.Discard(),
		storage:  akitamem.NewStorage(config.Capacity),
		cache:    newLatencyCache(config.Cache),
		rChannel: sim.NewBuffer("Memory.RChannel", config.RBufferDepth),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Write preloads bytes into the backing storage.
func (m *Memory) Write(addr uint64, data []byte) error {
	if err := m.storage.Write(addr, data); err != nil {
		return fmt.Errorf("failed to preload memory at 0x%x: %w", addr, err)
	}
	return nil
}

// Read returns bytes from the backing storage.
func (m *Memory) Read(addr uint64, size int) ([]byte, error) {
	data, err := m.storage.Read(addr, uint64(size))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory at 0x%x: %w", addr, err)
	}
	return data, nil
}

// Stats returns memory statistics.
func (m *Memory) Stats() Stats {
	s := m.stats
	s.Cache = m.cache.stats
	return s
}

// Idle reports whether no burst is in flight.
func (m *Memory) Idle() bool {
	return len(m.inflight) == 0 && m.rChannel.Size() == 0
}

// Outputs returns the signals for the current cycle.
func (m *Memory) Outputs() Outputs {
	out := Outputs{ARReady: len(m.inflight) < m.config.MaxInflight}

	if m.rChannel.Size() > 0 {
		out.RValid = true
		out.R = m.rChannel.Peek().(axi.Beat)
	}
	return out
}

// Tick advances the memory by one cycle.
func (m *Memory) Tick(in Inputs) error {
	if in.RReady {
		if m.rChannel.Size() == 0 {
			panic("mem: read-data beat consumed while none is valid")
		}
		m.rChannel.Pop()
	}

	if in.ARValid && len(m.inflight) < m.config.MaxInflight {
		m.acceptBurst(in.AR)
	}

	return m.streamBeat()
}

func (m *Memory) acceptBurst(req axi.AddrReq) {
	bus := uint64(m.config.BusBytes)
	base := req.Addr / bus * bus
	wait := m.cache.access(base, req.Beats()*m.config.BusBytes)

	m.inflight = append(m.inflight, &txn{req: req, wait: wait})
	m.stats.Bursts++
	m.log.V(2).Info("burst accepted", "req", req.String(), "latency", wait)
}

// streamBeat moves the next beat of the oldest burst into the read-data
// channel. Bursts complete in order.
func (m *Memory) streamBeat() error {
	if len(m.inflight) == 0 {
		return nil
	}

	t := m.inflight[0]
	if t.wait > 0 {
		t.wait--
		return nil
	}
	if !m.rChannel.CanPush() {
		m.stats.ChannelStalls++
		return nil
	}

	bus := uint64(m.config.BusBytes)
	addr := t.req.BeatAddr(t.beat) / bus * bus
	data, err := m.storage.Read(addr, bus)
	if err != nil {
		return fmt.Errorf("failed to serve %s beat %d: %w", t.req.String(), t.beat, err)
	}

	t.beat++
	last := t.beat == t.req.Beats()
	m.rChannel.Push(axi.Beat{ReqID: t.req.ID, Data: data, Last: last})
	m.stats.Beats++

	if last {
		m.inflight = m.inflight[1:]
	}
	return nil
}

// Reset drops in-flight bursts and forgets cache contents. Storage contents
// are kept.
func (m *Memory) Reset() {
	m.inflight = nil
	m.rChannel.Clear()
	m.cache.reset()
	m.stats = Stats{}
}
