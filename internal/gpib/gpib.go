// Package gpib implements the byte-level IEEE-488 transaction engine:
// the three-wire handshake, EOI/CR/LF message framing and the bounded
// busy-waits that keep a dead bus from hanging the controller.
package gpib

// Line names one of the eight GPIB control signals. All lines are
// active-low open-collector on the wire; Bus implementations hide the
// inversion, so "asserted" always means the IEEE-488 true state.
type Line uint8

const (
	DAV Line = iota // data valid
	NRFD            // not ready for data
	NDAC            // no data accepted
	EOI             // end or identify
	ATN             // attention
	SRQ             // service request
	IFC             // interface clear
	REN             // remote enable
)

func (l Line) String() string {
	switch l {
	case DAV:
		return "DAV"
	case NRFD:
		return "NRFD"
	case NDAC:
		return "NDAC"
	case EOI:
		return "EOI"
	case ATN:
		return "ATN"
	case SRQ:
		return "SRQ"
	case IFC:
		return "IFC"
	case REN:
		return "REN"
	}
	return "???"
}

// Bus is the injected line-level capability set. The engine is the only
// caller; implementations map the operations onto real hardware (see
// modbusio) or onto a scripted peer in tests.
//
// Millis is a free-running millisecond tick that wraps at 2^16. All
// timing in this package uses modular differences against it, never
// absolute comparisons. TakeSRQEdge reports and clears the "SRQ line
// changed" latch; together with Millis these are the only two
// operations an interrupt context may touch.
type Bus interface {
	Assert(l Line)
	Release(l Line)
	Sense(l Line) bool

	DataOut(b byte)
	DataIn() byte
	DataDir(output bool)

	Settle(us uint16)
	Millis() uint16
	TakeSRQEdge() bool
}

// End is the terminator/stop-reason bitset shared by transmit and
// receive. EndBuf is synthetic: only ever returned by Receive.
type End uint8

const (
	EndCR  End = 1 << 0
	EndLF  End = 1 << 1
	EndEOI End = 1 << 2
	EndBuf End = 1 << 3
)

// elapsed is the wrap-safe tick difference now-since.
func elapsed(now, since uint16) uint16 {
	return now - since
}
