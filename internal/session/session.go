// Package session drives addressed command/read transactions against
// the HP 3478A on top of the gpib transaction engine: talk/listen
// turnarounds, serial polling and display writes. It owns the bus role
// state; the whole firmware is single threaded, so no locking.
package session

import (
	"errors"
	"fmt"

	"github.com/KIrill-ka/hp3478ext/internal/gpib"
	"github.com/KIrill-ka/hp3478ext/internal/reading"
)

// Universal GPIB command bytes and address offsets.
const (
	listenAddrOffset = 32
	talkAddrOffset   = 64
	cmdUntalk        = '_' // universal untalk (UNT)
	cmdUnlisten      = '?' // universal unlisten (UNL)
	cmdSPE           = 24  // serial poll enable
	cmdSPD           = 25  // serial poll disable
)

// Flags select role and framing behavior of a single transaction.
type Flags uint8

const (
	// Listen leaves the session in the listening role after a read so a
	// follow-up read skips re-addressing.
	Listen Flags = 1 << 0
	// Talk leaves the session in the talking role after a command.
	Talk Flags = 1 << 1
	// Remote keeps REN asserted when the transaction completes.
	Remote Flags = 1 << 2
	// HideAnnunciators selects the D3 display write that blanks the
	// instrument's annunciator row.
	HideAnnunciators Flags = 1 << 3
	// NoLF suppresses the trailing LF, used to chain fragments of one
	// logical command.
	NoLF Flags = 1 << 4

	// Cont holds the bus in its current roles across consecutive calls.
	Cont = Listen | Talk | Remote
)

// Role is the bus session state, mutated only by explicit transitions.
type Role uint8

const (
	RoleIdle Role = iota
	RoleListening
	RoleTalking
)

// Error is a session-layer failure carrying a diagnostic code for the
// layered error accumulator.
type Error struct {
	Op   string
	code uint8
	txn  bool
}

func (e *Error) Error() string { return "session: " + e.Op + " failed" }
func (e *Error) Code() uint8   { return e.code }

// Transaction reports whether the failure happened inside a data byte
// handshake rather than in session bookkeeping (addressing, polling).
func (e *Error) Transaction() bool { return e.txn }

var (
	errAddress    = &Error{Op: "address", code: 0x01}
	errTransmit   = &Error{Op: "transmit", code: 0x02, txn: true}
	errUntalk     = &Error{Op: "untalk", code: 0x03}
	errReceive    = &Error{Op: "receive", code: 0x04, txn: true}
	errSerialPoll = &Error{Op: "serial poll", code: 0x06}
)

// ErrShortStatus reports a "B" reply of the wrong length.
var ErrShortStatus = errors.New("session: short status reply")

// Session is the addressed-transaction layer for one instrument on the
// bus. MyAddr is the controller's own primary address, InstAddr the
// instrument's.
type Session struct {
	eng      *gpib.Engine
	myAddr   uint8
	instAddr uint8
	role     Role
	txEnd    gpib.End
	rxEnd    gpib.End
}

func New(eng *gpib.Engine, myAddr, instAddr uint8) *Session {
	return &Session{
		eng:      eng,
		myAddr:   myAddr,
		instAddr: instAddr,
		txEnd:    gpib.EndLF,
		rxEnd:    gpib.EndEOI,
	}
}

// SetEnds overrides the terminator policy for instrument data
// transfers. Bus command sequences sent under ATN are unaffected.
func (s *Session) SetEnds(tx, rx gpib.End) {
	s.txEnd = tx
	s.rxEnd = rx
}

// Role reports the current bus session state.
func (s *Session) Role() Role { return s.role }

// SRQ senses the service request line.
func (s *Session) SRQ() bool { return s.eng.SRQ() }

// Settle busy-waits the given number of microseconds.
func (s *Session) Settle(us uint16) { s.eng.Settle(us) }

// reset is the single failure exit: deassert ATN/REN, force the talk
// direction and drop back to the idle role so the next transaction
// starts from a known state.
func (s *Session) reset() {
	s.eng.Talk()
	s.eng.SetATN(false)
	s.eng.SetREN(false)
	s.role = RoleIdle
}

// atnSend transmits bytes with ATN asserted (a bus command sequence).
func (s *Session) atnSend(cmd []byte) bool {
	s.eng.SetATN(true)
	ok := s.eng.TransmitAll(cmd, 0)
	if ok {
		s.eng.SetATN(false)
	}
	return ok
}

// Command addresses the instrument as a listener (unless the session
// is already talking) and transmits cmd with a trailing LF. Unless
// Talk is set, the transaction ends with an untalk so the bus returns
// to neutral; unless Remote is set, REN is dropped after the transmit.
func (s *Session) Command(cmd []byte, flags Flags) error {
	s.eng.SetREN(true)
	if s.role != RoleTalking {
		if s.role == RoleListening {
			s.eng.Talk()
		}
		addr := []byte{s.instAddr + listenAddrOffset, s.myAddr + talkAddrOffset}
		if !s.atnSend(addr) {
			s.reset()
			return errAddress
		}
	}
	end := s.txEnd
	if flags&NoLF != 0 {
		end = 0
	}
	if !s.eng.TransmitAll(cmd, end) {
		s.reset()
		return errTransmit
	}
	if flags&Remote == 0 {
		s.eng.SetREN(false)
	}
	if flags&Talk == 0 {
		if !s.atnSend([]byte{cmdUntalk}) {
			s.reset()
			return errUntalk
		}
		s.role = RoleIdle
	} else {
		s.role = RoleTalking
	}
	return nil
}

// Read addresses the instrument as a talker (unless already listening)
// and receives until the configured terminator. A read that stops for
// any other reason (timeout, full buffer) is a failure. Unless Listen
// is set, an untalk returns the bus to neutral.
func (s *Session) Read(buf []byte, flags Flags) (int, error) {
	if s.role != RoleListening {
		addr := []byte{s.myAddr + listenAddrOffset, s.instAddr + talkAddrOffset}
		if !s.atnSend(addr) {
			s.reset()
			return 0, errAddress
		}
		s.eng.Listen()
	}
	n, end := s.eng.Receive(buf, s.rxEnd)
	if end&s.rxEnd == 0 {
		s.reset()
		return n, errReceive
	}
	if flags&Listen == 0 {
		s.eng.Talk()
		if !s.atnSend([]byte{cmdUntalk}) {
			s.reset()
			return n, errUntalk
		}
		s.role = RoleIdle
	} else {
		s.role = RoleListening
	}
	return n, nil
}

// SerialPoll samples the instrument's status byte via the IEEE-488
// serial poll sequence, the only way to read the SRQ source without
// perturbing display or command state. It bypasses the REN/command
// path entirely.
func (s *Session) SerialPoll() (byte, error) {
	if s.role == RoleListening {
		s.eng.Talk()
	}
	s.role = RoleIdle

	cmd := []byte{cmdSPE, s.instAddr + talkAddrOffset, s.myAddr + listenAddrOffset}
	if !s.atnSend(cmd) {
		s.pollFail()
		return 0, errSerialPoll
	}
	s.eng.Listen()
	var sb [1]byte
	n, _ := s.eng.Receive(sb[:], 0)
	if n != 1 {
		s.pollFail()
		return 0, errSerialPoll
	}
	s.eng.Talk()
	if !s.atnSend([]byte{cmdSPD, cmdUntalk}) {
		s.pollFail()
		return 0, errSerialPoll
	}
	return sb[0], nil
}

func (s *Session) pollFail() {
	s.eng.Talk()
	s.eng.SetATN(false)
}

// Status runs the instrument's "B" query and returns its fixed
// 5-byte status reply.
func (s *Session) Status() ([5]byte, error) {
	var st [5]byte
	if err := s.Command([]byte{'B'}, Talk); err != nil {
		return st, err
	}
	n, err := s.Read(st[:], 0)
	if err != nil {
		return st, err
	}
	if n != 5 {
		return st, fmt.Errorf("%w: got %d bytes", ErrShortStatus, n)
	}
	return st, nil
}

// Display writes text to the instrument's dot matrix display using the
// D2/D3 command, chaining the prefix and the text as fragments of one
// logical command via NoLF.
func (s *Session) Display(text []byte, flags Flags) error {
	prefix := []byte{'D', '2'}
	if flags&HideAnnunciators != 0 {
		prefix[1] = '3'
	}
	if err := s.Command(prefix, Cont|NoLF); err != nil {
		return err
	}
	if err := s.Command(text, Cont); err != nil {
		return err
	}
	// Trailing LF releases the roles requested by flags.
	return s.Command(nil, flags&Cont)
}

// DisplayString is Display for literal text.
func (s *Session) DisplayString(text string, flags Flags) error {
	return s.Display([]byte(text), flags)
}

// GetReading reads and decodes one measurement.
func (s *Session) GetReading(flags Flags) (reading.Reading, error) {
	var buf [13]byte
	n, err := s.Read(buf[:], flags)
	if err != nil {
		return reading.Reading{}, err
	}
	return reading.Decode(buf[:n])
}

// DisplayReading renders a reading in the instrument's display grammar
// and writes it to the display.
func (s *Session) DisplayReading(r reading.Reading, st1 byte, modeInd byte, flags Flags) error {
	disp := reading.Format(r, st1, modeInd)
	return s.Display(disp[:], flags)
}
