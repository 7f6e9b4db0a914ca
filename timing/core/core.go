// Package core provides the cycle-accurate vector load system model.
// It wires the load unit to an address generator, a memory, a register file
// and a mask unit, and steps all of them on one clock.
package core

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/vldusim/timing/addrgen"
	"github.com/sarchlab/vldusim/timing/mem"
	"github.com/sarchlab/vldusim/timing/vldu"
	"github.com/sarchlab/vldusim/timing/vrf"
)

// ErrTimeout is returned by Run when the loads do not drain in time.
var ErrTimeout = errors.New("simulation did not finish")

// Load is a vector load to dispatch, with its element mask when masked.
type Load struct {
	Insn vldu.Instruction
	Mask []bool
}

// Completion records when a load finished.
type Completion struct {
	ID      int
	Cycle   uint64
	Aborted bool
}

// Stats holds performance statistics for the system.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Bursts is the number of AXI bursts generated.
	Bursts uint64

	Unit   vldu.Statistics
	Memory mem.Stats
	VRF    vrf.Stats
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger shared by every component.
func WithLogger(logger logr.Logger) Option {
	return func(s *System) {
		s.log = logger
	}
}

// System is a vector load unit together with the blocks around it.
type System struct {
	config Config
	log    logr.Logger

	unit   *vldu.Unit
	gen    *addrgen.Generator
	memory *mem.Memory
	vrf    *vrf.File
	mask   *vrf.MaskUnit

	pending     []Load
	completions []Completion
	cycle       uint64
}

// New creates a System. The configuration must be valid.
func New(config *Config, opts ...Option) (*System, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid system config: %w", err)
	}

	s := &System{
		config: *config,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unit = vldu.New(&config.VLDU, vldu.WithLogger(s.log.WithName("vldu")))
	s.gen = addrgen.New(config.AddrGen, addrgen.WithLogger(s.log.WithName("addrgen")))
	s.memory = mem.New(config.Memory, mem.WithLogger(s.log.WithName("mem")))
	s.vrf = vrf.New(config.VRF)
	s.mask = vrf.NewMaskUnit(config.VLDU.Lanes)

	return s, nil
}

// Unit returns the load unit.
func (s *System) Unit() *vldu.Unit {
	return s.unit
}

// Memory returns the memory model.
func (s *System) Memory() *mem.Memory {
	return s.memory
}

// VRF returns the register file model.
func (s *System) VRF() *vrf.File {
	return s.vrf
}

// Submit queues loads for dispatch, in order.
func (s *System) Submit(loads ...Load) {
	s.pending = append(s.pending, loads...)
}

// InjectFault makes load id raise an address-generation exception after
// afterBursts bursts.
func (s *System) InjectFault(id, afterBursts int) {
	s.gen.InjectFault(id, afterBursts)
}

// Completions returns the loads completed so far, in completion order.
func (s *System) Completions() []Completion {
	return s.completions
}

// Cycle returns the number of cycles simulated.
func (s *System) Cycle() uint64 {
	return s.cycle
}

// Done reports whether every submitted load has completed and all blocks
// are quiet.
func (s *System) Done() bool {
	return len(s.pending) == 0 && s.unit.Idle() && s.gen.Idle() &&
		s.memory.Idle() && s.vrf.Idle()
}

// Tick executes one clock cycle.
func (s *System) Tick() error {
	out := s.unit.Outputs()
	grants := s.vrf.Tick(out.Requests)

	genOut := s.gen.Outputs()
	memOut := s.memory.Outputs()

	in := vldu.Inputs{
		AddrGen: genOut.Desc,
		Beat:    vldu.BeatPort{Valid: memOut.RValid, Beat: memOut.R},
		Mask:    s.mask.Outputs(),
		Grants:  grants,
	}
	if genOut.Exception {
		id, ok := s.unit.Committing()
		in.AddrGen.Exception = ok && id == genOut.ExceptionID
	}
	if len(s.pending) > 0 {
		in.Dispatch = vldu.DispatchPort{Valid: true, Insn: s.pending[0].Insn}
	}

	resp := s.unit.Tick(in)

	err := s.memory.Tick(mem.Inputs{
		ARValid: genOut.ARValid,
		AR:      genOut.AR,
		RReady:  resp.BeatReady,
	})
	if err != nil {
		return fmt.Errorf("cycle %d: %w", s.cycle, err)
	}

	s.gen.Tick(addrgen.Inputs{
		DescReady: resp.AddrGenReady,
		ARReady:   genOut.ARValid && memOut.ARReady,
		Done:      resp.Done,
	})
	s.mask.Tick(resp.MaskReady, resp.Done)

	if resp.DispatchAccepted {
		load := s.pending[0]
		s.pending = s.pending[1:]
		s.gen.Push(load.Insn)
		if load.Insn.Masked {
			s.mask.Push(load.Insn, load.Mask)
		}
	}

	s.recordCompletions(resp)
	s.cycle++

	return nil
}

func (s *System) recordCompletions(resp vldu.Response) {
	for id := 0; resp.Done != 0; id++ {
		bit := uint64(1) << uint(id)
		if resp.Done&bit == 0 {
			continue
		}
		resp.Done &^= bit

		s.completions = append(s.completions, Completion{
			ID:      id,
			Cycle:   s.cycle,
			Aborted: resp.Aborted&bit != 0,
		})
		s.log.V(1).Info("load complete", "id", id, "cycle", s.cycle)
	}
}

// Run executes until every load has drained, or fails after maxCycles.
func (s *System) Run(maxCycles uint64) error {
	for !s.Done() {
		if s.cycle >= maxCycles {
			return fmt.Errorf("%w after %d cycles", ErrTimeout, s.cycle)
		}
		if err := s.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles executes the system for the specified number of cycles.
// Returns true if loads are still in flight.
func (s *System) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !s.Done(); i++ {
		if err := s.Tick(); err != nil {
			return false, err
		}
	}
	return !s.Done(), nil
}

// Stats returns performance statistics for the system.
func (s *System) Stats() Stats {
	return Stats{
		Cycles: s.cycle,
		Bursts: s.gen.Bursts(),
		Unit:   s.unit.Stats(),
		Memory: s.memory.Stats(),
		VRF:    s.vrf.Stats(),
	}
}
