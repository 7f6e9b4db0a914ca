// Package axi holds the AXI read-channel vocabulary shared by the load unit,
// the address generator and the memory model.
package axi

import "fmt"

// BurstType selects how the address changes between beats of a burst.
type BurstType uint8

// Supported burst types.
const (
	BurstFixed BurstType = iota
	BurstIncr
)

func (b BurstType) String() string {
	switch b {
	case BurstFixed:
		return "FIXED"
	case BurstIncr:
		return "INCR"
	default:
		return fmt.Sprintf("BurstType(%d)", uint8(b))
	}
}

const (
	// MaxBurstBeats is the longest INCR burst.
	MaxBurstBeats = 256

	// BoundaryBytes is the address boundary a burst must not cross.
	BoundaryBytes = 4096
)

// AddrReq is one read-address (AR) transaction.
type AddrReq struct {
	// ID identifies the transaction.
	ID string

	// InsnID is the vector instruction this burst belongs to.
	InsnID int

	// Addr is the start address of the burst.
	Addr uint64

	// Size is log2 of the number of bytes transferred per beat.
	Size uint8

	// Len is the number of beats minus one.
	Len uint8

	Burst BurstType

	// IsLoad is set for read transactions.
	IsLoad bool
}

// Beats returns the number of beats in the burst.
func (r AddrReq) Beats() int {
	return int(r.Len) + 1
}

// BytesPerBeat returns the transfer size of one beat.
func (r AddrReq) BytesPerBeat() int {
	return 1 << r.Size
}

// BeatAddr returns the address transferred by the given beat.
func (r AddrReq) BeatAddr(beat int) uint64 {
	if beat == 0 || r.Burst == BurstFixed {
		return r.Addr
	}
	numBytes := uint64(r.BytesPerBeat())
	aligned := r.Addr / numBytes * numBytes
	return aligned + uint64(beat)*numBytes
}

func (r AddrReq) String() string {
	return fmt.Sprintf("AR{insn=%d addr=0x%x size=%d len=%d %s}",
		r.InsnID, r.Addr, r.Size, r.Len, r.Burst)
}

// Beat is one read-data (R) transfer. Data is the full bus width; only the
// byte lanes reported by BeatRange carry valid data.
type Beat struct {
	ReqID string
	Data  []byte
	Last  bool
}

// BeatRange returns the inclusive range [lower, upper] of byte lanes of a
// busBytes wide data bus that carry valid data in the given beat.
func BeatRange(req AddrReq, beat, busBytes int) (lower, upper int) {
	numBytes := req.BytesPerBeat()
	if numBytes > busBytes {
		panic(fmt.Sprintf("axi: beat size %d exceeds bus width %d", numBytes, busBytes))
	}
	if beat < 0 || beat >= req.Beats() {
		panic(fmt.Sprintf("axi: beat %d outside burst of %d beats", beat, req.Beats()))
	}

	bus := uint64(busBytes)
	addr := req.BeatAddr(beat)
	busBase := addr / bus * bus

	lower = int(addr - busBase)
	if beat == 0 || req.Burst == BurstFixed {
		aligned := req.Addr / uint64(numBytes) * uint64(numBytes)
		upper = int(aligned + uint64(numBytes) - 1 - busBase)
		return lower, upper
	}

	upper = lower + numBytes - 1
	return lower, upper
}

// BurstBytes returns the number of valid bytes the whole burst carries.
func BurstBytes(req AddrReq, busBytes int) int {
	total := 0
	for beat := 0; beat < req.Beats(); beat++ {
		lower, upper := BeatRange(req, beat, busBytes)
		total += upper - lower + 1
	}
	return total
}
