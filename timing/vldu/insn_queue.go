package vldu

import "fmt"

// InstructionQueue is a fixed-capacity ring of in-flight loads walked by
// three cursors. An entry is accepted at the accept cursor, decomposed into
// register-file words at the issue cursor, and retired at the commit cursor.
// Entries stay occupied until commit, so the ring is full when commitCnt
// reaches capacity even if every entry has finished issuing.
type InstructionQueue struct {
	insns []Instruction

	acceptPnt int
	issuePnt  int
	commitPnt int

	issueCnt  int
	commitCnt int
}

// NewInstructionQueue creates an empty queue with the given capacity.
func NewInstructionQueue(depth int) *InstructionQueue {
	if depth <= 0 {
		panic(fmt.Sprintf("vldu: instruction queue depth %d", depth))
	}
	return &InstructionQueue{insns: make([]Instruction, depth)}
}

// Depth returns the queue capacity.
func (q *InstructionQueue) Depth() int {
	return len(q.insns)
}

// IssueCount returns the number of instructions that have not finished
// issuing.
func (q *InstructionQueue) IssueCount() int {
	return q.issueCnt
}

// CommitCount returns the number of instructions that have not finished
// committing.
func (q *InstructionQueue) CommitCount() int {
	return q.commitCnt
}

// Full reports whether no further instruction can be accepted.
func (q *InstructionQueue) Full() bool {
	return q.commitCnt == len(q.insns)
}

// TryAccept appends insn. It returns false when the queue is full.
func (q *InstructionQueue) TryAccept(insn Instruction) bool {
	if q.Full() {
		return false
	}

	q.insns[q.acceptPnt] = insn
	q.acceptPnt = q.next(q.acceptPnt)
	q.issueCnt++
	q.commitCnt++
	q.check()

	return true
}

// CurrentIssuing returns the instruction at the issue cursor.
func (q *InstructionQueue) CurrentIssuing() (Instruction, bool) {
	if q.issueCnt == 0 {
		return Instruction{}, false
	}
	return q.insns[q.issuePnt], true
}

// AdvanceIssue moves the issue cursor past the current instruction.
func (q *InstructionQueue) AdvanceIssue() {
	if q.issueCnt == 0 {
		panic("vldu: issue advance with no issuing instruction")
	}
	q.issuePnt = q.next(q.issuePnt)
	q.issueCnt--
	q.check()
}

// CurrentCommitting returns the instruction at the commit cursor.
func (q *InstructionQueue) CurrentCommitting() (Instruction, bool) {
	if q.commitCnt == 0 {
		return Instruction{}, false
	}
	return q.insns[q.commitPnt], true
}

// AdvanceCommit retires the instruction at the commit cursor.
func (q *InstructionQueue) AdvanceCommit() {
	if q.commitCnt == 0 {
		panic("vldu: commit advance with no committing instruction")
	}
	q.insns[q.commitPnt] = Instruction{}
	q.commitPnt = q.next(q.commitPnt)
	q.commitCnt--
	q.check()
}

func (q *InstructionQueue) next(pnt int) int {
	pnt++
	if pnt == len(q.insns) {
		pnt = 0
	}
	return pnt
}

// check asserts the cursor invariants.
func (q *InstructionQueue) check() {
	if q.issueCnt < 0 || q.commitCnt > len(q.insns) || q.issueCnt > q.commitCnt {
		panic(fmt.Sprintf("vldu: instruction queue counters issue=%d commit=%d depth=%d",
			q.issueCnt, q.commitCnt, len(q.insns)))
	}
}

func (q *InstructionQueue) clone() InstructionQueue {
	c := *q
	c.insns = append([]Instruction(nil), q.insns...)
	return c
}
