package core

import (
	"fmt"

	"github.com/sarchlab/vldusim/timing/vldu"
)

// Scenario describes a simulation run: the system, the memory image, the
// loads to dispatch and the faults to inject.
type Scenario struct {
	Config    *Config    `json:"config" yaml:"config"`
	Memory    []MemFill  `json:"memory" yaml:"memory"`
	Loads     []LoadSpec `json:"loads" yaml:"loads"`
	Faults    []Fault    `json:"faults" yaml:"faults"`
	MaxCycles uint64     `json:"max_cycles" yaml:"max_cycles"`
}

// MemFill initializes a memory region. Without Bytes, byte i of the region
// is Seed+i (mod 256).
type MemFill struct {
	Addr  uint64 `json:"addr" yaml:"addr"`
	Size  int    `json:"size" yaml:"size"`
	Seed  uint8  `json:"seed" yaml:"seed"`
	Bytes []byte `json:"bytes" yaml:"bytes"`
}

// LoadSpec describes one vector load.
type LoadSpec struct {
	ID   int    `json:"id" yaml:"id"`
	VD   uint64 `json:"vd" yaml:"vd"`
	Base uint64 `json:"base" yaml:"base"`
	VL   int    `json:"vl" yaml:"vl"`

	// EEW is the element width in bits: 8, 16, 32 or 64.
	EEW int `json:"eew" yaml:"eew"`

	// Mask, when present, makes the load masked.
	Mask []bool `json:"mask" yaml:"mask"`
}

// Fault injects an address-generation exception into a load.
type Fault struct {
	ID          int `json:"id" yaml:"id"`
	AfterBursts int `json:"after_bursts" yaml:"after_bursts"`
}

const defaultMaxCycles = 1_000_000

// LoadScenario reads a Scenario from a JSON or YAML file.
func LoadScenario(path string) (*Scenario, error) {
	sc := &Scenario{Config: DefaultConfig()}
	if err := decodeFile(path, sc); err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	if sc.Config == nil {
		sc.Config = DefaultConfig()
	}
	sc.Config.Harmonize()
	if sc.MaxCycles == 0 {
		sc.MaxCycles = defaultMaxCycles
	}
	return sc, nil
}

// Instruction converts the description into a load unit instruction.
func (l LoadSpec) Instruction() (vldu.Instruction, error) {
	var ew vldu.ElementWidth
	switch l.EEW {
	case 8:
		ew = vldu.EW8
	case 16:
		ew = vldu.EW16
	case 32:
		ew = vldu.EW32
	case 64:
		ew = vldu.EW64
	default:
		return vldu.Instruction{}, fmt.Errorf("load %d: unsupported eew %d", l.ID, l.EEW)
	}
	if l.ID < 0 {
		return vldu.Instruction{}, fmt.Errorf("load %d: id must be >= 0", l.ID)
	}
	if l.VL <= 0 {
		return vldu.Instruction{}, fmt.Errorf("load %d: vl must be > 0", l.ID)
	}
	if l.Mask != nil && len(l.Mask) < l.VL {
		return vldu.Instruction{}, fmt.Errorf("load %d: mask has %d of %d elements", l.ID, len(l.Mask), l.VL)
	}

	return vldu.Instruction{
		ID:       l.ID,
		VD:       l.VD,
		BaseAddr: l.Base,
		VL:       l.VL,
		EW:       ew,
		Masked:   l.Mask != nil,
	}, nil
}

// Build creates the System described by the scenario, with memory filled,
// loads submitted and faults armed.
func (sc *Scenario) Build(opts ...Option) (*System, error) {
	sys, err := New(sc.Config, opts...)
	if err != nil {
		return nil, err
	}

	for _, fill := range sc.Memory {
		data := fill.Bytes
		if data == nil {
			data = make([]byte, fill.Size)
			for i := range data {
				data[i] = fill.Seed + uint8(i)
			}
		}
		if err := sys.Memory().Write(fill.Addr, data); err != nil {
			return nil, err
		}
	}

	for _, spec := range sc.Loads {
		insn, err := spec.Instruction()
		if err != nil {
			return nil, err
		}
		if err := sc.fits(insn); err != nil {
			return nil, err
		}
		sys.Submit(Load{Insn: insn, Mask: spec.Mask})
	}

	for _, f := range sc.Faults {
		sys.InjectFault(f.ID, f.AfterBursts)
	}

	return sys, nil
}

// fits checks the load against the id space and the register file size.
func (sc *Scenario) fits(insn vldu.Instruction) error {
	ids := sc.Config.VLDU.NumInsnIDs
	if insn.ID >= ids {
		return fmt.Errorf("load %d: id outside [0, %d)", insn.ID, ids)
	}

	wordBytes := sc.Config.VLDU.WordBytes()
	words := uint64((insn.Bytes() + wordBytes - 1) / wordBytes)
	if limit := uint64(sc.Config.VRF.WordsPerLane); insn.VD >= limit || words > limit-insn.VD {
		return fmt.Errorf("load %d: words [%d, %d) beyond the %d register file words",
			insn.ID, insn.VD, insn.VD+words, limit)
	}
	return nil
}
