package vrf

import (
	"fmt"

	"github.com/sarchlab/vldusim/timing/shuffle"
	"github.com/sarchlab/vldusim/timing/vldu"
)

type maskJob struct {
	insn vldu.Instruction
	mask []bool
	word int
}

// MaskUnit hands out the byte enables of masked loads one register-file word
// at a time. Element masks are expanded to every byte of the element and laid
// out by physical byte position.
type MaskUnit struct {
	lanes int
	jobs  []maskJob
}

// NewMaskUnit creates a mask unit for the given lane count.
func NewMaskUnit(lanes int) *MaskUnit {
	return &MaskUnit{lanes: lanes}
}

// Push queues the element mask of a masked load. mask must hold at least vl
// entries.
func (m *MaskUnit) Push(insn vldu.Instruction, mask []bool) {
	if len(mask) < insn.VL {
		panic(fmt.Sprintf("vrf: mask of %d elements for vl=%d", len(mask), insn.VL))
	}
	m.jobs = append(m.jobs, maskJob{insn: insn, mask: mask})
}

// Outputs returns the mask word offered this cycle.
func (m *MaskUnit) Outputs() vldu.MaskPort {
	if len(m.jobs) == 0 {
		return vldu.MaskPort{}
	}

	j := &m.jobs[0]
	wordBytes := m.lanes * shuffle.BytesPerLane
	bits := make([]bool, wordBytes)

	for seq := 0; seq < wordBytes; seq++ {
		elem := (j.word*wordBytes + seq) >> j.insn.EW
		if elem >= j.insn.VL {
			break
		}
		bits[shuffle.Index(seq, m.lanes, uint8(j.insn.EW))] = j.mask[elem]
	}

	return vldu.MaskPort{Valid: true, Bits: bits}
}

// Tick consumes the current word when ready and drops the jobs of loads that
// completed.
func (m *MaskUnit) Tick(ready bool, done uint64) {
	if ready {
		if len(m.jobs) == 0 {
			panic("vrf: mask consumed while none is valid")
		}
		j := &m.jobs[0]
		j.word++
		if j.word*m.lanes*shuffle.BytesPerLane >= j.insn.Bytes() {
			m.jobs = m.jobs[1:]
		}
	}

	for len(m.jobs) > 0 && done&(1<<uint(m.jobs[0].insn.ID)) != 0 {
		m.jobs = m.jobs[1:]
	}
}

// Pending returns the number of loads with mask words left.
func (m *MaskUnit) Pending() int {
	return len(m.jobs)
}
