package gpib

// Per-step handshake timeouts in milliseconds. Every wait on a peer
// transition is bounded by these so a disconnected or powered-off
// instrument degrades to a reported failure instead of a hang.
const (
	TransmitTimeoutMillis = 200
	ReceiveTimeoutMillis  = 200
)

// Engine clocks bytes over the bus one handshake at a time. It keeps no
// retry policy of its own: a timeout is reported upward via a short
// count (transmit) or a zero stop reason (receive) and the session
// layer decides what to do about it.
//
// Engine is not reentrant. The firmware is single threaded by design;
// exactly one bus operation may be in flight.
type Engine struct {
	bus Bus
}

func NewEngine(bus Bus) *Engine {
	return &Engine{bus: bus}
}

// Bus exposes the underlying line set for SRQ sensing and tick access.
func (e *Engine) Bus() Bus { return e.bus }

// Talk configures the interface as a talker: data lines driven, the
// listener handshake lines released.
func (e *Engine) Talk() {
	e.bus.DataDir(true)
	e.bus.Release(NRFD)
	e.bus.Release(NDAC)
}

// Listen configures the interface as a listener: data lines floating,
// NRFD/NDAC held until we accept each byte.
func (e *Engine) Listen() {
	e.bus.DataDir(false)
	e.bus.Assert(NRFD)
	e.bus.Assert(NDAC)
}

// SetATN drives or releases ATN. Asserting waits out T7 settle time so
// addressed devices see ATN before the first command byte.
func (e *Engine) SetATN(on bool) {
	if on {
		e.bus.Assert(ATN)
		e.bus.Settle(1)
	} else {
		e.bus.Release(ATN)
	}
}

func (e *Engine) SetREN(on bool) {
	if on {
		e.bus.Assert(REN)
	} else {
		e.bus.Release(REN)
	}
}

// PulseIFC clears the bus: every device unaddresses and serial poll
// state is cancelled.
func (e *Engine) PulseIFC() {
	e.bus.Assert(IFC)
	e.bus.Settle(1000)
	e.bus.Release(IFC)
}

func (e *Engine) SRQ() bool { return e.bus.Sense(SRQ) }

func (e *Engine) Settle(us uint16) { e.bus.Settle(us) }

// terminatedLen is the on-wire length of data once CR/LF terminators
// are synthesized.
func terminatedLen(n int, end End) int {
	if end&EndCR != 0 {
		n++
	}
	if end&EndLF != 0 {
		n++
	}
	return n
}

// Transmit clocks data plus any synthesized CR/LF terminator over the
// bus, asserting EOI on the final byte when requested. The terminator
// bytes are appended here, not by the caller, so hand-rolled hex
// commands cannot desynchronize terminator logic. Returns the count of
// bytes actually accepted by the listener; full success is exactly
// terminatedLen(len(data), end).
func (e *Engine) Transmit(data []byte, end End) int {
	// Both handshake lines released means no listener is attached.
	if !e.bus.Sense(NRFD) && !e.bus.Sense(NDAC) {
		return 0
	}

	n := terminatedLen(len(data), end)

	for i := 0; i < n; i++ {
		var d byte
		switch {
		case end&(EndCR|EndLF) == EndCR|EndLF && i == n-2:
			d = '\r'
		case end&(EndCR|EndLF) == EndCR && i == n-1:
			d = '\r'
		case end&EndLF != 0 && i == n-1:
			d = '\n'
		default:
			d = data[i]
		}

		e.bus.DataOut(d)
		if i == n-1 && end&EndEOI != 0 {
			e.bus.Assert(EOI)
		}
		e.bus.Settle(2) // T1 settle

		ts := e.bus.Millis()
		for e.bus.Sense(NRFD) {
			if elapsed(e.bus.Millis(), ts) > TransmitTimeoutMillis {
				e.bus.Release(EOI)
				return i
			}
		}

		e.bus.Assert(DAV)

		for e.bus.Sense(NDAC) {
			if elapsed(e.bus.Millis(), ts) > TransmitTimeoutMillis {
				e.bus.Release(EOI)
				e.bus.Release(DAV)
				return i
			}
		}

		e.bus.Release(DAV)
	}
	e.bus.Release(EOI)

	return n
}

// TransmitAll reports whether every byte, terminators included, was
// accepted.
func (e *Engine) TransmitAll(data []byte, end End) bool {
	return e.Transmit(data, end) == terminatedLen(len(data), end)
}

// Receive accepts bytes via the reverse handshake until one of the
// stop conditions in stop is met or buf fills up. The returned reason
// is the stop condition seen (EndBuf for a full buffer); a zero reason
// means a handshake step timed out and n bytes of partial data were
// captured. Partial data is returned rather than discarded so callers
// can decide whether it is usable.
func (e *Engine) Receive(buf []byte, stop End) (n int, reason End) {
	var done End

	for {
		e.bus.Release(NRFD) // ready for data

		ts := e.bus.Millis()
		for !e.bus.Sense(DAV) {
			if elapsed(e.bus.Millis(), ts) > ReceiveTimeoutMillis {
				e.bus.Assert(NRFD)
				return n, 0
			}
		}

		e.bus.Assert(NRFD)
		if e.bus.Sense(EOI) && stop&EndEOI != 0 {
			done = EndEOI
		}

		c := e.bus.DataIn()
		e.bus.Release(NDAC) // data accepted

		buf[n] = c
		n++
		if c == '\n' && stop&EndLF != 0 {
			done |= EndLF
		}
		if c == '\r' && stop&EndCR != 0 {
			done |= EndCR
		}

		for e.bus.Sense(DAV) {
			if elapsed(e.bus.Millis(), ts) > ReceiveTimeoutMillis {
				e.bus.Assert(NDAC)
				return n, 0
			}
		}

		e.bus.Assert(NDAC)

		if n >= len(buf) || done != 0 {
			break
		}
	}
	if done != 0 {
		return n, done
	}
	return n, EndBuf
}
