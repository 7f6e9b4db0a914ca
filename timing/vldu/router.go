package vldu

import (
	"fmt"

	"github.com/sarchlab/vldusim/timing/axi"
	"github.com/sarchlab/vldusim/timing/shuffle"
)

// route moves bytes of the beat on the bus into the result slot being filled.
// A beat may take several cycles when it spans word boundaries; it is only
// acknowledged once all of its valid bytes have been routed.
func (c *cycle) route() {
	insn, ok := c.cur.queue.CurrentIssuing()
	if ok && insn.ID == c.abortID {
		c.dropIssuing()
		return
	}

	if !c.canRoute(insn, ok) {
		return
	}

	req := c.in.AddrGen.Req
	if req.InsnID != insn.ID {
		panic(fmt.Sprintf("vldu: burst for instruction %d while issuing %d", req.InsnID, insn.ID))
	}

	cur := c.cur.burst
	b := c.in.Beat.Beat
	if b.ReqID != req.ID {
		panic(fmt.Sprintf("vldu: beat of request %q while routing request %q", b.ReqID, req.ID))
	}
	if last := cur.BeatsConsumed+1 == req.Beats(); b.Last != last {
		panic(fmt.Sprintf("vldu: beat %d of %d in request %q has last=%v",
			cur.BeatsConsumed, req.Beats(), req.ID, b.Last))
	}

	wordBytes := c.wordBytes()
	left := c.cur.issueBytesLeft
	lower, upper := axi.BeatRange(req, cur.BeatsConsumed, c.unit.config.BusBytes)

	axiValid := upper - lower - cur.ByteInBeat + 1
	vrfValid := wordBytes - cur.ByteInWord
	vinsnValid := left - cur.ByteInWord

	step := axiValid
	if left < wordBytes {
		step = min(step, vinsnValid)
	} else {
		step = min(step, vrfValid)
	}
	if step <= 0 || step > wordBytes {
		panic(fmt.Sprintf("vldu: byte step %d (beat=%d word=%d insn=%d)",
			step, axiValid, vrfValid, vinsnValid))
	}

	c.shuffleBytes(insn, lower+cur.ByteInBeat, upper, cur.ByteInWord, left)

	next := &c.next.burst
	next.ByteInBeat += step
	next.ByteInWord += step
	c.unit.stats.BytesRouted += uint64(step)

	leftAfter := left
	if next.ByteInWord == wordBytes || next.ByteInWord == left {
		leftAfter = c.completeWord(insn, left)
	}

	if next.ByteInBeat == upper-lower+1 || leftAfter == 0 {
		next.EndBeat()
		c.resp.BeatReady = true
		c.unit.stats.Beats++
	}

	// Bursts never span instructions.
	if next.BeatsConsumed == req.Beats() || leftAfter == 0 {
		next.EndBurst()
		c.resp.AddrGenReady = true
	}

	c.unit.log.V(2).Info("routed",
		"insn", insn.ID, "lower", lower, "upper", upper, "step", step,
		"byteInWord", next.ByteInWord, "issueBytesLeft", leftAfter)

	if leftAfter == 0 {
		c.finishIssue(insn)
	}
}

// canRoute decides whether the router can make progress this cycle and
// accounts the stall cause when a beat is waiting.
func (c *cycle) canRoute(insn Instruction, ok bool) bool {
	stats := &c.unit.stats
	beatValid := c.in.Beat.Valid

	switch {
	case !beatValid:
		return false
	case !ok:
		stats.StallNoInsn++
		return false
	case !c.in.AddrGen.Valid:
		stats.StallNoAddr++
		return false
	case c.cur.results.Full():
		stats.StallResultFull++
		return false
	case insn.Masked && !c.in.Mask.Valid:
		stats.StallMaskPending++
		return false
	}
	return true
}

// shuffleBytes copies beat bytes [from, upper] into their lane positions.
func (c *cycle) shuffleBytes(insn Instruction, from, upper, byteInWord, left int) {
	wordBytes := c.wordBytes()
	table := c.unit.shuffles[insn.EW]
	data := c.in.Beat.Beat.Data
	slot := c.next.results.WriteSlot()

	if insn.Masked && len(c.in.Mask.Bits) < wordBytes {
		panic(fmt.Sprintf("vldu: mask word of %d bits for %d byte word", len(c.in.Mask.Bits), wordBytes))
	}

	for b := from; b <= upper; b++ {
		seq := b - from + byteInWord
		if seq >= left || seq >= wordBytes {
			break
		}

		phys := table[seq]
		lane, off := shuffle.Lane(phys), shuffle.Offset(phys)

		payload := &slot.Lanes[lane]
		payload.Data[off] = data[b]
		if !insn.Masked || c.in.Mask.Bits[phys] {
			payload.BE |= 1 << uint(off)
		}
	}
}

// completeWord pushes the filled slot and returns the issue bytes left.
func (c *cycle) completeWord(insn Instruction, left int) int {
	wordBytes := c.wordBytes()
	word := (insn.Bytes() - left) / wordBytes

	slot := c.next.results.WriteSlot()
	slot.ID = insn.ID
	for lane := range slot.Lanes {
		slot.Lanes[lane].ID = insn.ID
		slot.Lanes[lane].Addr = insn.VD + uint64(word)
	}
	c.next.results.Push()
	c.next.burst.EndWord()

	if insn.Masked {
		c.resp.MaskReady = true
	}
	c.unit.stats.WordsProduced++

	c.next.issueBytesLeft = left - min(left, wordBytes)
	return c.next.issueBytesLeft
}

// finishIssue moves the issue cursor to the next instruction.
func (c *cycle) finishIssue(insn Instruction) {
	q := &c.next.queue
	q.AdvanceIssue()
	c.next.burst.Reset()

	c.next.issueBytesLeft = 0
	if nextInsn, ok := q.CurrentIssuing(); ok {
		c.next.issueBytesLeft = nextInsn.Bytes()
	}

	c.unit.log.V(1).Info("issued", "id", insn.ID)
}

// dropIssuing abandons the issuing instruction after an exception. Bytes of a
// partially filled word are discarded.
func (c *cycle) dropIssuing() {
	insn, _ := c.cur.queue.CurrentIssuing()

	if c.cur.burst.ByteInWord > 0 {
		c.next.results.WriteSlot().clear()
	}
	c.finishIssue(insn)
}
