package vldu

import "fmt"

// ElementWidth is the log2 of an element's size in bytes.
type ElementWidth uint8

// Element widths.
const (
	EW8 ElementWidth = iota
	EW16
	EW32
	EW64
)

// Bytes returns the element size in bytes.
func (ew ElementWidth) Bytes() int {
	return 1 << ew
}

func (ew ElementWidth) String() string {
	return fmt.Sprintf("e%d", 8<<ew)
}

// Instruction is a unit-stride vector load as seen by the load unit.
type Instruction struct {
	// ID tags the instruction while it is in flight.
	ID int

	// VD is the register-file word address of the destination register
	// group. Word k of the result is written at VD+k in every lane.
	VD uint64

	// BaseAddr is the memory address of element 0. It is consumed by the
	// address generator, not by the load unit itself.
	BaseAddr uint64

	// VL is the number of elements to load.
	VL int

	EW ElementWidth

	// Masked loads take their byte enables from the mask unit.
	Masked bool
}

// Bytes returns the number of bytes the instruction writes.
func (i Instruction) Bytes() int {
	return i.VL << i.EW
}

func (i Instruction) String() string {
	m := ""
	if i.Masked {
		m = " masked"
	}
	return fmt.Sprintf("vle%d id=%d vd=%d base=0x%x vl=%d%s",
		8<<i.EW, i.ID, i.VD, i.BaseAddr, i.VL, m)
}
