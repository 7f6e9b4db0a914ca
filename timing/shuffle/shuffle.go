// Package shuffle implements the byte interleaving used to lay a vector out
// across the lanes of a banked vector register file.
//
// A register-file word spans all lanes, 8 bytes per lane. Consecutive vector
// elements are dealt round-robin to the lanes: element e of a word is stored in
// lane e mod lanes, and the elements a lane receives are packed contiguously in
// ascending order inside that lane's 8 bytes.
//
// For 4 lanes and 1-byte elements the first 8 sequential bytes map to:
//
//	seq:  0  1  2  3  4  5  6  7
//	phys: 0  8 16 24  1  9 17 25
package shuffle

import "fmt"

// BytesPerLane is the width of one lane's slice of a register-file word.
const BytesPerLane = 8

// MaxElementWidth is the widest supported element width code (8-byte elements).
const MaxElementWidth = 3

// Index maps a sequential byte index inside a register-file word to its
// physical byte index. ew is the element width code: elements are 1<<ew bytes.
//
// Index panics if lanes is not a positive power of two, if ew is out of range,
// or if seq does not address a byte of the word.
func Index(seq, lanes int, ew uint8) int {
	checkGeometry(lanes, ew)
	if seq < 0 || seq >= lanes*BytesPerLane {
		panic(fmt.Sprintf("shuffle: byte index %d out of range for %d lanes", seq, lanes))
	}

	elemBytes := 1 << ew
	elem := seq >> ew
	byteInElem := seq & (elemBytes - 1)

	lane := elem % lanes
	slot := elem / lanes

	return lane*BytesPerLane + slot*elemBytes + byteInElem
}

// Inverse maps a physical byte index back to its sequential index.
func Inverse(phys, lanes int, ew uint8) int {
	checkGeometry(lanes, ew)
	if phys < 0 || phys >= lanes*BytesPerLane {
		panic(fmt.Sprintf("shuffle: byte index %d out of range for %d lanes", phys, lanes))
	}

	elemBytes := 1 << ew
	lane := phys / BytesPerLane
	offset := phys % BytesPerLane
	slot := offset >> ew
	byteInElem := offset & (elemBytes - 1)

	return (slot*lanes+lane)<<ew + byteInElem
}

// Lane returns the lane that holds the given physical byte.
func Lane(phys int) int {
	return phys / BytesPerLane
}

// Offset returns the byte offset of a physical byte inside its lane.
func Offset(phys int) int {
	return phys % BytesPerLane
}

// Table precomputes Index for every byte of a word.
func Table(lanes int, ew uint8) []int {
	checkGeometry(lanes, ew)

	table := make([]int, lanes*BytesPerLane)
	for seq := range table {
		table[seq] = Index(seq, lanes, ew)
	}
	return table
}

func checkGeometry(lanes int, ew uint8) {
	if lanes <= 0 || lanes&(lanes-1) != 0 {
		panic(fmt.Sprintf("shuffle: lane count %d is not a power of two", lanes))
	}
	if ew > MaxElementWidth {
		panic(fmt.Sprintf("shuffle: element width code %d unsupported", ew))
	}
}
