package vldu

import "fmt"

// LaneState is the write handshake state of one lane.
type LaneState uint8

// Lane states. A lane requests while its result slot entry is valid, then
// waits for the final grants of the writes it has had accepted.
const (
	LaneIdle LaneState = iota
	LaneRequesting
	LaneAwaitingFinal
)

func (s LaneState) String() string {
	switch s {
	case LaneIdle:
		return "idle"
	case LaneRequesting:
		return "requesting"
	case LaneAwaitingFinal:
		return "awaiting-final"
	default:
		return fmt.Sprintf("LaneState(%d)", uint8(s))
	}
}

type laneTracker struct {
	state LaneState

	// outstanding counts granted writes without a final grant. It can
	// exceed one when words are retired before their final grants.
	outstanding int
}

// commit drains the result queue against the lane grants and retires
// instructions whose bytes have all been written.
func (c *cycle) commit() {
	c.collectGrants()

	if c.abortID >= 0 {
		c.abortCommitting()
	} else {
		c.retireWord()
	}

	c.updateLaneStates()
}

func (c *cycle) collectGrants() {
	grants := c.in.Grants
	if grants == nil {
		return
	}
	if len(grants) != c.unit.config.Lanes {
		panic(fmt.Sprintf("vldu: %d lane grants for %d lanes", len(grants), c.unit.config.Lanes))
	}

	readSlot := c.cur.results.ReadSlot()
	nextSlot := c.next.results.ReadSlot()

	for lane, g := range grants {
		tracker := &c.next.lanes[lane]

		if g.Grant {
			if c.cur.results.Empty() || !readSlot.Valid[lane] {
				panic(fmt.Sprintf("vldu: grant on lane %d without a request", lane))
			}
			nextSlot.clearLane(lane)
			tracker.outstanding++
		}

		if g.FinalGrant {
			if tracker.outstanding == 0 {
				panic(fmt.Sprintf("vldu: final grant on lane %d with no write outstanding", lane))
			}
			tracker.outstanding--
		}
	}
}

func (c *cycle) allFinal() bool {
	for _, l := range c.next.lanes {
		if l.outstanding != 0 {
			return false
		}
	}
	return true
}

// retireWord pops the read slot once every lane has been granted. A word is
// normally held until its writes are final; while more than a word of the
// instruction remains to be committed, it is retired as soon as it is granted
// so the next word can be requested in the following cycle.
func (c *cycle) retireWord() {
	if c.cur.results.Empty() || c.next.results.ReadSlot().Pending() {
		return
	}

	wordBytes := c.wordBytes()
	left := c.cur.commitBytesLeft
	if !c.allFinal() && left <= wordBytes {
		return
	}

	c.next.results.Pop()
	c.next.commitBytesLeft = left - min(left, wordBytes)
	c.unit.stats.WordsCommitted++

	insn, ok := c.cur.queue.CurrentCommitting()
	if ok && c.next.commitBytesLeft == 0 {
		c.complete(insn)
	}
}

// abortCommitting ends the committing instruction early. Words it still has
// queued are dropped; bytes already written stay written.
func (c *cycle) abortCommitting() {
	insn, _ := c.cur.queue.CurrentCommitting()

	results := &c.next.results
	for !results.Empty() && results.ReadSlot().ID == insn.ID {
		results.ReadSlot().clear()
		results.Pop()
	}

	c.resp.Aborted |= 1 << uint(insn.ID)
	c.unit.stats.Aborted++
	c.unit.log.V(1).Info("aborted", "id", insn.ID)
	c.complete(insn)
}

func (c *cycle) complete(insn Instruction) {
	c.resp.Done |= 1 << uint(insn.ID)
	c.resp.LoadComplete = true
	c.next.running &^= 1 << uint(insn.ID)

	q := &c.next.queue
	q.AdvanceCommit()

	c.next.commitBytesLeft = 0
	if nextInsn, ok := q.CurrentCommitting(); ok {
		c.next.commitBytesLeft = nextInsn.Bytes()
	}

	c.unit.stats.Completed++
	c.unit.log.V(1).Info("committed", "id", insn.ID)
}

func (c *cycle) updateLaneStates() {
	slot := c.next.results.ReadSlot()
	empty := c.next.results.Empty()

	for lane := range c.next.lanes {
		tracker := &c.next.lanes[lane]
		switch {
		case !empty && slot.Valid[lane]:
			tracker.state = LaneRequesting
		case tracker.outstanding > 0:
			tracker.state = LaneAwaitingFinal
		default:
			tracker.state = LaneIdle
		}
	}
}
