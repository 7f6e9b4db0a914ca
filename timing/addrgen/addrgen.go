// Package addrgen splits unit-stride vector loads into AXI read bursts.
//
// Every burst is sent twice: once on the AR channel to memory and once as a
// descriptor to the load unit, which uses it to locate the valid bytes of
// each beat. Bursts use full bus-width beats, stop at 4 KiB boundaries and
// are emitted strictly in instruction order, at most one per cycle.
package addrgen

import (
	"fmt"
	"math/bits"

	"github.com/go-logr/logr"
	"github.com/rs/xid"

	"github.com/sarchlab/vldusim/timing/axi"
	"github.com/sarchlab/vldusim/timing/vldu"
)

// Config holds the address generator parameters.
type Config struct {
	// BusBytes is the read-data bus width.
	BusBytes int `json:"bus_bytes" yaml:"bus_bytes"`

	// MaxBurstBeats caps the length of a burst. Default: 16.
	MaxBurstBeats int `json:"max_burst_beats" yaml:"max_burst_beats"`

	// MaxOutstanding is the number of bursts that can wait on each queue.
	// Default: 4.
	MaxOutstanding int `json:"max_outstanding" yaml:"max_outstanding"`
}

// DefaultConfig returns the default address generator configuration.
func DefaultConfig() Config {
	return Config{
		BusBytes:       32,
		MaxBurstBeats:  16,
		MaxOutstanding: 4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BusBytes <= 0 || c.BusBytes&(c.BusBytes-1) != 0 {
		return fmt.Errorf("bus_bytes must be a power of two")
	}
	if c.MaxBurstBeats <= 0 || c.MaxBurstBeats > axi.MaxBurstBeats {
		return fmt.Errorf("max_burst_beats must be in [1, %d]", axi.MaxBurstBeats)
	}
	if c.MaxOutstanding <= 0 {
		return fmt.Errorf("max_outstanding must be > 0")
	}
	return nil
}

// Outputs are the signals the generator drives.
type Outputs struct {
	// Desc is the burst descriptor offered to the load unit.
	Desc vldu.AddrGenPort

	// AR is the request offered to memory.
	ARValid bool
	AR      axi.AddrReq

	// Exception is raised for ExceptionID once none of its bursts remain
	// queued.
	Exception   bool
	ExceptionID int
}

// Inputs are the handshakes observed by the generator at the clock edge.
type Inputs struct {
	DescReady bool
	ARReady   bool

	// Done is the load unit's completion bitmap.
	Done uint64
}

type job struct {
	insn      vldu.Instruction
	addr      uint64
	remaining int
	bursts    int
}

// Generator is the address generator model.
type Generator struct {
	config Config
	log    logr.Logger

	jobs  []job
	desc  []axi.AddrReq
	ar    []axi.AddrReq
	fault map[int]int

	faulted   bool
	faultedID int

	bursts uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(g *Generator) {
		g.log = logger
	}
}

// New creates an address generator. It panics on an invalid configuration.
func New(config Config, opts ...Option) *Generator {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("addrgen: invalid config: %v", err))
	}

	g := &Generator{
		config: config,
		log:    logr.Discard(),
		fault:  make(map[int]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Push queues an accepted load for address generation.
func (g *Generator) Push(insn vldu.Instruction) {
	g.jobs = append(g.jobs, job{
		insn:      insn,
		addr:      insn.BaseAddr,
		remaining: insn.Bytes(),
	})
}

// InjectFault makes the load with the given id fault after it has issued
// afterBursts bursts.
func (g *Generator) InjectFault(id, afterBursts int) {
	g.fault[id] = afterBursts
}

// Bursts returns the number of bursts generated so far.
func (g *Generator) Bursts() uint64 {
	return g.bursts
}

// Idle reports whether no load is waiting for or undergoing generation.
func (g *Generator) Idle() bool {
	return len(g.jobs) == 0 && len(g.desc) == 0 && len(g.ar) == 0
}

// Outputs returns the signals for the current cycle.
func (g *Generator) Outputs() Outputs {
	var out Outputs

	if len(g.desc) > 0 {
		out.Desc = vldu.AddrGenPort{Valid: true, Req: g.desc[0]}
	}
	if len(g.ar) > 0 {
		out.ARValid = true
		out.AR = g.ar[0]
	}
	if g.faulted && !g.hasDescFor(g.faultedID) {
		out.Exception = true
		out.ExceptionID = g.faultedID
	}

	return out
}

// Tick advances the generator by one cycle.
func (g *Generator) Tick(in Inputs) {
	if in.DescReady {
		if len(g.desc) == 0 {
			panic("addrgen: descriptor popped from empty queue")
		}
		g.desc = g.desc[1:]
	}
	if in.ARReady && len(g.ar) > 0 {
		g.ar = g.ar[1:]
	}

	if g.faulted && in.Done&(1<<uint(g.faultedID)) != 0 {
		g.log.V(1).Info("fault taken", "id", g.faultedID)
		g.faulted = false
		g.jobs = g.jobs[1:]
	}

	g.generate()
}

func (g *Generator) hasDescFor(id int) bool {
	for _, d := range g.desc {
		if d.InsnID == id {
			return true
		}
	}
	return false
}

func (g *Generator) generate() {
	if g.faulted || len(g.jobs) == 0 {
		return
	}
	if len(g.desc) >= g.config.MaxOutstanding || len(g.ar) >= g.config.MaxOutstanding {
		return
	}

	j := &g.jobs[0]
	if after, ok := g.fault[j.insn.ID]; ok && j.bursts >= after {
		delete(g.fault, j.insn.ID)
		g.faulted = true
		g.faultedID = j.insn.ID
		g.log.V(1).Info("fault", "id", j.insn.ID, "bursts", j.bursts)
		return
	}

	req := g.nextBurst(j)
	g.desc = append(g.desc, req)
	g.ar = append(g.ar, req)
	g.bursts++
	g.log.V(2).Info("burst", "req", req.String())

	if j.remaining == 0 {
		g.jobs = g.jobs[1:]
	}
}

// nextBurst cuts the next burst off the job.
func (g *Generator) nextBurst(j *job) axi.AddrReq {
	bus := uint64(g.config.BusBytes)
	offset := j.addr % bus

	beats := (int(offset) + j.remaining + g.config.BusBytes - 1) / g.config.BusBytes
	beats = min(beats, g.config.MaxBurstBeats)

	toBoundary := axi.BoundaryBytes - j.addr%axi.BoundaryBytes
	beats = min(beats, int((toBoundary+offset+bus-1)/bus))

	req := axi.AddrReq{
		ID:     xid.New().String(),
		InsnID: j.insn.ID,
		Addr:   j.addr,
		Size:   uint8(bits.TrailingZeros(uint(g.config.BusBytes))),
		Len:    uint8(beats - 1),
		Burst:  axi.BurstIncr,
		IsLoad: true,
	}

	carried := min(axi.BurstBytes(req, g.config.BusBytes), j.remaining)
	j.addr += uint64(carried)
	j.remaining -= carried
	j.bursts++

	return req
}
