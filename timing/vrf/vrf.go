// Package vrf models the banked vector register file the load unit writes
// into, and the mask unit that feeds masked loads.
//
// Each lane bank accepts at most one write request per cycle. A granted write
// lands immediately in the bank's byte array and its final grant is returned
// WriteLatency cycles later, one final grant per lane per cycle.
package vrf

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/vldusim/timing/shuffle"
	"github.com/sarchlab/vldusim/timing/vldu"
)

// Config holds the register file parameters.
type Config struct {
	Lanes int `json:"lanes" yaml:"lanes"`

	// WordsPerLane is the number of 64-bit words in each lane bank.
	// Default: 256.
	WordsPerLane int `json:"words_per_lane" yaml:"words_per_lane"`

	// WriteLatency is the number of cycles from grant to final grant.
	// Zero returns the final grant with the grant. Default: 1.
	WriteLatency int `json:"write_latency" yaml:"write_latency"`

	// GrantInterval lets a bank accept a write only every GrantInterval
	// cycles, modeling contention from other functional units. Default: 1.
	GrantInterval int `json:"grant_interval" yaml:"grant_interval"`

	// MaxPendingFinal bounds the writes awaiting final grant per lane.
	// Default: 4.
	MaxPendingFinal int `json:"max_pending_final" yaml:"max_pending_final"`
}

// DefaultConfig returns the default register file configuration.
func DefaultConfig() Config {
	return Config{
		Lanes:           4,
		WordsPerLane:    256,
		WriteLatency:    1,
		GrantInterval:   1,
		MaxPendingFinal: 4,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Lanes <= 0 {
		return fmt.Errorf("lanes must be > 0")
	}
	if c.WordsPerLane <= 0 {
		return fmt.Errorf("words_per_lane must be > 0")
	}
	if c.WriteLatency < 0 {
		return fmt.Errorf("write_latency must be >= 0")
	}
	if c.GrantInterval <= 0 {
		return fmt.Errorf("grant_interval must be > 0")
	}
	if c.MaxPendingFinal <= 0 {
		return fmt.Errorf("max_pending_final must be > 0")
	}
	return nil
}

// Stats holds register file activity counters.
type Stats struct {
	Writes       uint64
	BytesWritten uint64

	// Conflicts counts requests that were not granted in the cycle they
	// were presented.
	Conflicts uint64
}

type bank struct {
	data   []byte
	counts []int

	// finals holds the cycle each granted write becomes final.
	finals sim.Buffer
}

// File is the register file model.
type File struct {
	config Config
	banks  []bank
	cycle  uint64
	stats  Stats
}

// New creates a register file. It panics on an invalid configuration.
func New(config Config) *File {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("vrf: invalid config: %v", err))
	}

	f := &File{config: config, banks: make([]bank, config.Lanes)}
	for lane := range f.banks {
		size := config.WordsPerLane * shuffle.BytesPerLane
		f.banks[lane] = bank{
			data:   make([]byte, size),
			counts: make([]int, size),
			finals: sim.NewBuffer(fmt.Sprintf("VRF.Lane[%d].Finals", lane), config.MaxPendingFinal),
		}
	}
	return f
}

// Tick presents the lane requests of the current cycle and returns the
// grants.
func (f *File) Tick(reqs []vldu.LaneRequest) []vldu.LaneGrant {
	if len(reqs) != len(f.banks) {
		panic(fmt.Sprintf("vrf: %d requests for %d lanes", len(reqs), len(f.banks)))
	}

	grants := make([]vldu.LaneGrant, len(f.banks))
	for lane, req := range reqs {
		b := &f.banks[lane]

		if req.Valid {
			if f.canGrant(b) {
				f.write(b, req.LanePayload)
				b.finals.Push(f.cycle + uint64(f.config.WriteLatency))
				grants[lane].Grant = true
			} else {
				f.stats.Conflicts++
			}
		}

		if b.finals.Size() > 0 && b.finals.Peek().(uint64) <= f.cycle {
			b.finals.Pop()
			grants[lane].FinalGrant = true
		}
	}

	f.cycle++
	return grants
}

func (f *File) canGrant(b *bank) bool {
	return f.cycle%uint64(f.config.GrantInterval) == 0 && b.finals.CanPush()
}

func (f *File) write(b *bank, p vldu.LanePayload) {
	if p.Addr >= uint64(f.config.WordsPerLane) {
		panic(fmt.Sprintf("vrf: write to word %d beyond %d words", p.Addr, f.config.WordsPerLane))
	}

	base := int(p.Addr) * shuffle.BytesPerLane
	for off := 0; off < shuffle.BytesPerLane; off++ {
		if p.BE&(1<<uint(off)) == 0 {
			continue
		}
		b.data[base+off] = p.Data[off]
		b.counts[base+off]++
		f.stats.BytesWritten++
	}
	f.stats.Writes++
}

// Read returns the bytes of one lane word.
func (f *File) Read(lane int, addr uint64) [shuffle.BytesPerLane]byte {
	var word [shuffle.BytesPerLane]byte
	base := int(addr) * shuffle.BytesPerLane
	copy(word[:], f.banks[lane].data[base:base+shuffle.BytesPerLane])
	return word
}

// WriteCount returns how many times a byte has been written.
func (f *File) WriteCount(lane int, addr uint64, off int) int {
	return f.banks[lane].counts[int(addr)*shuffle.BytesPerLane+off]
}

// Idle reports whether every granted write is final.
func (f *File) Idle() bool {
	for i := range f.banks {
		if f.banks[i].finals.Size() > 0 {
			return false
		}
	}
	return true
}

// Stats returns register file statistics.
func (f *File) Stats() Stats {
	return f.stats
}

// Gather reads a vector of vl elements of width ew stored from word vd on,
// undoing the lane shuffle.
func (f *File) Gather(vd uint64, vl int, ew vldu.ElementWidth) []byte {
	lanes := len(f.banks)
	wordBytes := lanes * shuffle.BytesPerLane
	out := make([]byte, vl<<ew)

	for base := 0; base < len(out); base += wordBytes {
		word := int(vd) + base/wordBytes
		for phys := 0; phys < wordBytes; phys++ {
			seq := base + shuffle.Inverse(phys, lanes, uint8(ew))
			if seq >= len(out) {
				continue
			}
			lane, off := shuffle.Lane(phys), shuffle.Offset(phys)
			out[seq] = f.banks[lane].data[word*shuffle.BytesPerLane+off]
		}
	}
	return out
}
