package vldu

import (
	"fmt"

	"github.com/sarchlab/vldusim/timing/shuffle"
)

// LanePayload is the write request one lane sends to the register file.
type LanePayload struct {
	ID   int
	Addr uint64
	Data [shuffle.BytesPerLane]byte

	// BE holds one write-enable bit per byte of Data.
	BE uint8
}

// ResultSlot holds one register-file word, split per lane.
type ResultSlot struct {
	// ID is the instruction the word belongs to.
	ID int

	Lanes []LanePayload

	// Valid marks lanes whose request has not been granted yet.
	Valid []bool
}

// Pending reports whether any lane still has to be granted.
func (s *ResultSlot) Pending() bool {
	for _, v := range s.Valid {
		if v {
			return true
		}
	}
	return false
}

// clearLane drops a lane's payload.
func (s *ResultSlot) clearLane(lane int) {
	s.Valid[lane] = false
	s.Lanes[lane] = LanePayload{}
}

func (s *ResultSlot) clear() {
	s.ID = 0
	for lane := range s.Lanes {
		s.clearLane(lane)
	}
}

// ResultQueue is a small FIFO of register-file words waiting to be written.
// The router fills the slot at the write pointer in place and pushes it once
// the word is complete; the commit logic pops the slot at the read pointer
// once every lane has been written.
type ResultQueue struct {
	slots []ResultSlot

	readPnt  int
	writePnt int
	count    int
}

// NewResultQueue creates a queue of depth words for the given lane count.
func NewResultQueue(depth, lanes int) *ResultQueue {
	if depth <= 0 || lanes <= 0 {
		panic(fmt.Sprintf("vldu: result queue depth=%d lanes=%d", depth, lanes))
	}

	q := &ResultQueue{slots: make([]ResultSlot, depth)}
	for i := range q.slots {
		q.slots[i] = ResultSlot{
			Lanes: make([]LanePayload, lanes),
			Valid: make([]bool, lanes),
		}
	}
	return q
}

// Depth returns the number of slots.
func (q *ResultQueue) Depth() int {
	return len(q.slots)
}

// Count returns the number of completed words waiting for the register file.
func (q *ResultQueue) Count() int {
	return q.count
}

// Full reports whether the router must stall.
func (q *ResultQueue) Full() bool {
	return q.count == len(q.slots)
}

// Empty reports whether no word is waiting.
func (q *ResultQueue) Empty() bool {
	return q.count == 0
}

// WriteSlot returns the slot the router is filling.
func (q *ResultQueue) WriteSlot() *ResultSlot {
	return &q.slots[q.writePnt]
}

// ReadSlot returns the oldest slot.
func (q *ResultQueue) ReadSlot() *ResultSlot {
	return &q.slots[q.readPnt]
}

// Push marks every lane of the write slot valid and advances the write
// pointer.
func (q *ResultQueue) Push() {
	if q.Full() {
		panic("vldu: push to full result queue")
	}

	slot := q.WriteSlot()
	for lane := range slot.Valid {
		slot.Valid[lane] = true
	}

	q.writePnt = (q.writePnt + 1) % len(q.slots)
	q.count++
}

// Pop retires the read slot.
func (q *ResultQueue) Pop() {
	if q.Empty() {
		panic("vldu: pop from empty result queue")
	}
	if q.ReadSlot().Pending() {
		panic("vldu: pop of a slot with ungranted lanes")
	}

	q.readPnt = (q.readPnt + 1) % len(q.slots)
	q.count--
}

func (q *ResultQueue) clone() ResultQueue {
	c := *q
	c.slots = make([]ResultSlot, len(q.slots))
	for i, s := range q.slots {
		c.slots[i] = ResultSlot{
			ID:    s.ID,
			Lanes: append([]LanePayload(nil), s.Lanes...),
			Valid: append([]bool(nil), s.Valid...),
		}
	}
	return c
}
