package vldu

// BurstCursor tracks how far the router has progressed through the current
// burst, the current beat, and the register-file word being assembled.
type BurstCursor struct {
	// BeatsConsumed is the number of beats of the current burst that have
	// been fully routed.
	BeatsConsumed int

	// ByteInBeat is the number of valid bytes of the current beat already
	// routed.
	ByteInBeat int

	// ByteInWord is the number of bytes of the current register-file word
	// already filled.
	ByteInWord int
}

// EndWord starts a new register-file word.
func (c *BurstCursor) EndWord() {
	c.ByteInWord = 0
}

// EndBeat moves on to the next beat of the burst.
func (c *BurstCursor) EndBeat() {
	c.ByteInBeat = 0
	c.BeatsConsumed++
}

// EndBurst starts a new burst.
func (c *BurstCursor) EndBurst() {
	c.BeatsConsumed = 0
	c.ByteInBeat = 0
}

// Reset clears all progress.
func (c *BurstCursor) Reset() {
	*c = BurstCursor{}
}
