// Package vldu models a vector load unit cycle by cycle.
//
// The unit accepts unit-stride vector loads from a dispatcher, consumes
// read-data beats from memory, shuffles their bytes into register-file words
// and writes those words to a banked register file through per-lane
// request/grant handshakes. Instructions move through three phases in strict
// FIFO order: accept, issue (bytes routed into words) and commit (words
// written back).
//
// Each clock cycle is two calls. Outputs returns the signals driven from
// registered state. Tick samples the inputs of the cycle, evaluates the whole
// next-state function against the current state and commits it at once.
package vldu

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/vldusim/timing/axi"
	"github.com/sarchlab/vldusim/timing/shuffle"
)

// DispatchPort carries one instruction from the dispatcher.
type DispatchPort struct {
	Valid bool
	Insn  Instruction
}

// AddrGenPort carries the address generator's current burst descriptor and
// its exception line.
type AddrGenPort struct {
	Valid bool
	Req   axi.AddrReq

	// Exception aborts the instruction currently committing.
	Exception bool
}

// BeatPort carries one read-data beat.
type BeatPort struct {
	Valid bool
	Beat  axi.Beat
}

// MaskPort carries the byte enables of one register-file word, indexed by
// physical byte position.
type MaskPort struct {
	Valid bool
	Bits  []bool
}

// LaneGrant is the register file's answer to one lane's write request.
type LaneGrant struct {
	// Grant accepts the request presented this cycle.
	Grant bool

	// FinalGrant reports that an earlier granted write has landed.
	FinalGrant bool
}

// Inputs are the signals sampled by the unit on a clock edge.
type Inputs struct {
	Dispatch DispatchPort
	AddrGen  AddrGenPort
	Beat     BeatPort
	Mask     MaskPort

	// Grants has one entry per lane. A nil slice means no grants.
	Grants []LaneGrant
}

// LaneRequest is a register-file write request presented by one lane.
type LaneRequest struct {
	Valid bool
	LanePayload
}

// Outputs are the signals the unit drives from registered state.
type Outputs struct {
	DispatchReady bool
	Requests      []LaneRequest
}

// Response reports the handshakes that completed during a Tick.
type Response struct {
	DispatchAccepted bool

	// AddrGenReady pops the address generator's descriptor.
	AddrGenReady bool

	// BeatReady consumes the beat on the read-data channel.
	BeatReady bool

	// MaskReady consumes the mask word.
	MaskReady bool

	// Done has one bit set per instruction id completed this cycle.
	Done uint64

	// Aborted has the bit of an instruction ended by an exception. The
	// same bit is also set in Done.
	Aborted uint64

	LoadComplete bool
}

// Statistics holds load unit activity counters.
type Statistics struct {
	Cycles uint64

	Accepted  uint64
	Completed uint64
	Aborted   uint64

	Beats          uint64
	WordsProduced  uint64
	WordsCommitted uint64
	BytesRouted    uint64

	// DispatchStalls counts cycles a dispatch was offered while full.
	DispatchStalls uint64

	// Router stall cycles with a beat on the bus, by cause.
	StallNoInsn      uint64
	StallNoAddr      uint64
	StallResultFull  uint64
	StallMaskPending uint64
}

// BeatsPerCycle returns the average beat throughput.
func (s Statistics) BeatsPerCycle() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Beats) / float64(s.Cycles)
}

// Option configures a Unit.
type Option func(*Unit)

// WithLogger sets the logger. V(1) logs instruction lifecycle events, V(2)
// logs every routed beat.
func WithLogger(logger logr.Logger) Option {
	return func(u *Unit) {
		u.log = logger
	}
}

type state struct {
	queue   InstructionQueue
	results ResultQueue
	burst   BurstCursor

	issueBytesLeft  int
	commitBytesLeft int

	lanes []laneTracker

	// running has a bit set per accepted, not yet completed id.
	running uint64
}

func (s *state) clone() state {
	c := *s
	c.queue = s.queue.clone()
	c.results = s.results.clone()
	c.lanes = append([]laneTracker(nil), s.lanes...)
	return c
}

// Unit is the vector load unit.
type Unit struct {
	config Config
	log    logr.Logger

	// shuffles holds the sequential to physical byte map per element width.
	shuffles [shuffle.MaxElementWidth + 1][]int

	state state
	stats Statistics
}

// New creates a load unit. It panics if the configuration is invalid.
func New(config *Config, opts ...Option) *Unit {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("vldu: invalid config: %v", err))
	}

	u := &Unit{
		config: *config,
		log:    logr.Discard(),
	}
	for ew := range u.shuffles {
		u.shuffles[ew] = shuffle.Table(config.Lanes, uint8(ew))
	}
	for _, opt := range opts {
		opt(u)
	}
	u.Reset()

	return u
}

// Config returns the unit configuration.
func (u *Unit) Config() Config {
	return u.config
}

// Reset returns the unit to its power-on state.
func (u *Unit) Reset() {
	u.state = state{
		queue:   *NewInstructionQueue(u.config.InsnQueueDepth),
		results: *NewResultQueue(u.config.ResultQueueDepth, u.config.Lanes),
		lanes:   make([]laneTracker, u.config.Lanes),
	}
	u.stats = Statistics{}
}

// Stats returns the activity counters.
func (u *Unit) Stats() Statistics {
	return u.stats
}

// Outputs returns the signals driven during the current cycle.
func (u *Unit) Outputs() Outputs {
	s := &u.state
	out := Outputs{
		DispatchReady: !s.queue.Full(),
		Requests:      make([]LaneRequest, u.config.Lanes),
	}

	if s.results.Empty() {
		return out
	}

	slot := s.results.ReadSlot()
	for lane := range out.Requests {
		out.Requests[lane] = LaneRequest{
			Valid:       slot.Valid[lane],
			LanePayload: slot.Lanes[lane],
		}
	}
	return out
}

// Tick advances the unit by one clock cycle.
func (u *Unit) Tick(in Inputs) Response {
	c := &cycle{
		unit:    u,
		cur:     &u.state,
		in:      &in,
		abortID: -1,
	}
	next := u.state.clone()
	c.next = &next

	c.sampleException()
	c.route()
	c.commit()
	c.accept()

	u.state = next
	u.stats.Cycles++

	return c.resp
}

// cycle holds the evaluation of one clock edge. Decisions read cur, updates
// go to next.
type cycle struct {
	unit *Unit
	cur  *state
	next *state
	in   *Inputs
	resp Response

	abortID int
}

func (c *cycle) wordBytes() int {
	return c.unit.config.WordBytes()
}

func (c *cycle) sampleException() {
	if !c.in.AddrGen.Exception {
		return
	}

	insn, ok := c.cur.queue.CurrentCommitting()
	if !ok {
		return
	}
	c.abortID = insn.ID
}

func (c *cycle) accept() {
	d := c.in.Dispatch
	if !d.Valid {
		return
	}
	if c.cur.queue.Full() {
		c.unit.stats.DispatchStalls++
		return
	}

	insn := d.Insn
	if insn.ID < 0 || insn.ID >= c.unit.config.NumInsnIDs {
		panic(fmt.Sprintf("vldu: instruction id %d outside [0, %d)", insn.ID, c.unit.config.NumInsnIDs))
	}
	if c.next.running&(1<<uint(insn.ID)) != 0 {
		panic(fmt.Sprintf("vldu: instruction id %d is already running", insn.ID))
	}
	if insn.VL <= 0 {
		panic(fmt.Sprintf("vldu: instruction %d has vl=%d", insn.ID, insn.VL))
	}
	if insn.EW > shuffle.MaxElementWidth {
		panic(fmt.Sprintf("vldu: instruction %d has element width code %d", insn.ID, insn.EW))
	}

	q := &c.next.queue
	if q.IssueCount() == 0 {
		c.next.issueBytesLeft = insn.Bytes()
	}
	if q.CommitCount() == 0 {
		c.next.commitBytesLeft = insn.Bytes()
	}
	q.TryAccept(insn)
	c.next.running |= 1 << uint(insn.ID)

	c.resp.DispatchAccepted = true
	c.unit.stats.Accepted++
	c.unit.log.V(1).Info("accepted", "insn", insn.String())
}

// IssueBytesLeft returns the bytes the issuing instruction has not yet
// placed in a completed word.
func (u *Unit) IssueBytesLeft() int {
	return u.state.issueBytesLeft
}

// CommitBytesLeft returns the bytes the committing instruction has not yet
// retired.
func (u *Unit) CommitBytesLeft() int {
	return u.state.commitBytesLeft
}

// IssueCount returns the number of instructions still issuing.
func (u *Unit) IssueCount() int {
	return u.state.queue.IssueCount()
}

// CommitCount returns the number of instructions still committing.
func (u *Unit) CommitCount() int {
	return u.state.queue.CommitCount()
}

// ResultCount returns the number of words waiting for the register file.
func (u *Unit) ResultCount() int {
	return u.state.results.Count()
}

// Cursor returns the router's burst cursor.
func (u *Unit) Cursor() BurstCursor {
	return u.state.burst
}

// Running returns the bitmap of in-flight instruction ids.
func (u *Unit) Running() uint64 {
	return u.state.running
}

// LaneState returns the write handshake state of a lane.
func (u *Unit) LaneState(lane int) LaneState {
	return u.state.lanes[lane].state
}

// Committing returns the id of the instruction at the commit cursor.
func (u *Unit) Committing() (int, bool) {
	insn, ok := u.state.queue.CurrentCommitting()
	return insn.ID, ok
}

// Idle reports whether no instruction is in flight.
func (u *Unit) Idle() bool {
	return u.state.queue.CommitCount() == 0
}
