package session

import (
	"bytes"
	"testing"

	"github.com/KIrill-ka/hp3478ext/internal/gpib"
)

const (
	testMyAddr   = 21
	testInstAddr = 23
)

// instrBus fakes an addressed instrument at the line level: it accepts
// every byte the engine clocks out, decodes addressing while ATN is
// asserted, and sources canned response bytes once addressed to talk.
type instrBus struct {
	ticks  uint16
	driven [8]bool

	// handshake peer state
	peerNRFD bool
	peerNDAC bool
	peerDAV  bool

	atnBytes []byte // everything received under ATN
	data     []byte // everything received without ATN
	asserted struct {
		renEver bool
	}

	talking  bool // instrument addressed to talk
	polled   bool // serial poll enabled
	response []byte
	respPos  int
	pollByte byte

	dataBus byte
	dead    bool // stop responding entirely
}

func newInstrBus() *instrBus {
	return &instrBus{peerNDAC: true}
}

func (f *instrBus) Assert(l gpib.Line) {
	f.driven[l] = true
	if l == gpib.REN {
		f.asserted.renEver = true
	}
	if l == gpib.DAV && !f.dead {
		b := f.dataBus
		if f.driven[gpib.ATN] {
			f.atnBytes = append(f.atnBytes, b)
			f.handleBusCommand(b)
		} else {
			f.data = append(f.data, b)
		}
		f.peerNDAC = false
	}
}

func (f *instrBus) handleBusCommand(b byte) {
	switch b {
	case testInstAddr + listenAddrOffset:
		f.talking = false
	case testInstAddr + talkAddrOffset:
		f.talking = true
		f.respPos = 0
	case cmdUntalk:
		f.talking = false
	case cmdSPE:
		f.polled = true
	case cmdSPD:
		f.polled = false
	}
}

func (f *instrBus) Release(l gpib.Line) {
	f.driven[l] = false
	if f.dead {
		return
	}
	switch l {
	case gpib.DAV:
		f.peerNDAC = true
	case gpib.NRFD:
		// engine ready to receive; source the next byte
		if f.peerDAV || !f.talking {
			return
		}
		if f.polled {
			f.dataBus = f.pollByte
			f.peerDAV = true
			return
		}
		if f.respPos < len(f.response) {
			f.dataBus = f.response[f.respPos]
			f.respPos++
			f.peerDAV = true
		}
	case gpib.NDAC:
		f.peerDAV = false
	}
}

func (f *instrBus) Sense(l gpib.Line) bool {
	switch l {
	case gpib.NRFD:
		return f.peerNRFD
	case gpib.NDAC:
		return f.peerNDAC
	case gpib.DAV:
		return f.peerDAV
	case gpib.EOI:
		// EOI accompanies the last response byte
		return f.peerDAV && !f.polled && f.talking && f.respPos == len(f.response)
	}
	return f.driven[l]
}

func (f *instrBus) DataOut(b byte)      { f.dataBus = b }
func (f *instrBus) DataIn() byte        { return f.dataBus }
func (f *instrBus) DataDir(output bool) {}
func (f *instrBus) Settle(us uint16)    {}
func (f *instrBus) TakeSRQEdge() bool   { return false }

func (f *instrBus) Millis() uint16 {
	f.ticks++
	return f.ticks
}

func newTestSession(bus *instrBus) *Session {
	return New(gpib.NewEngine(bus), testMyAddr, testInstAddr)
}

func TestCommandAddressesAndUntalks(t *testing.T) {
	bus := newInstrBus()
	s := newTestSession(bus)

	if err := s.Command([]byte("M21"), 0); err != nil {
		t.Fatalf("Command err=%v", err)
	}

	wantATN := []byte{
		testInstAddr + listenAddrOffset,
		testMyAddr + talkAddrOffset,
		cmdUntalk,
	}
	if !bytes.Equal(bus.atnBytes, wantATN) {
		t.Errorf("ATN sequence %v want %v", bus.atnBytes, wantATN)
	}
	if string(bus.data) != "M21\n" {
		t.Errorf("data bytes %q want %q", bus.data, "M21\n")
	}
	if !bus.asserted.renEver {
		t.Error("REN never asserted")
	}
	if bus.driven[gpib.REN] {
		t.Error("REN left asserted without Remote flag")
	}
	if s.Role() != RoleIdle {
		t.Errorf("role=%v want idle", s.Role())
	}
}

func TestCommandStaysTalking(t *testing.T) {
	bus := newInstrBus()
	s := newTestSession(bus)

	if err := s.Command([]byte("B"), Talk|Remote); err != nil {
		t.Fatalf("Command err=%v", err)
	}
	if s.Role() != RoleTalking {
		t.Errorf("role=%v want talking", s.Role())
	}
	if !bus.driven[gpib.REN] {
		t.Error("REN dropped despite Remote flag")
	}

	// Second command on an open talk session must not re-address.
	n := len(bus.atnBytes)
	if err := s.Command([]byte("N5"), Talk|Remote); err != nil {
		t.Fatalf("second Command err=%v", err)
	}
	if len(bus.atnBytes) != n {
		t.Errorf("unexpected re-addressing: ATN bytes %v", bus.atnBytes[n:])
	}
}

func TestCommandNoLFChainsFragments(t *testing.T) {
	bus := newInstrBus()
	s := newTestSession(bus)

	if err := s.Command([]byte("D2"), Cont|NoLF); err != nil {
		t.Fatalf("Command err=%v", err)
	}
	if err := s.Command([]byte("HELLO"), Cont); err != nil {
		t.Fatalf("Command err=%v", err)
	}
	if string(bus.data) != "D2HELLO\n" {
		t.Errorf("chained command %q want %q", bus.data, "D2HELLO\n")
	}
}

func TestReadUntilEOI(t *testing.T) {
	bus := newInstrBus()
	bus.response = []byte("+1.23456E+0\r\n")
	s := newTestSession(bus)

	var buf [16]byte
	n, err := s.Read(buf[:], 0)
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if string(buf[:n]) != "+1.23456E+0\r\n" {
		t.Errorf("Read got %q", buf[:n])
	}

	wantATN := []byte{
		testMyAddr + listenAddrOffset,
		testInstAddr + talkAddrOffset,
		cmdUntalk,
	}
	if !bytes.Equal(bus.atnBytes, wantATN) {
		t.Errorf("ATN sequence %v want %v", bus.atnBytes, wantATN)
	}
	if s.Role() != RoleIdle {
		t.Errorf("role=%v want idle", s.Role())
	}
}

func TestGetReadingDecodes(t *testing.T) {
	bus := newInstrBus()
	bus.response = []byte("-0.27216E-3\r\n")
	s := newTestSession(bus)

	r, err := s.GetReading(0)
	if err != nil {
		t.Fatalf("GetReading err=%v", err)
	}
	if r.Value != -27216 || r.Dot != 1 || r.Exp != -3 {
		t.Errorf("GetReading=%+v", r)
	}
}

func TestSerialPoll(t *testing.T) {
	bus := newInstrBus()
	bus.pollByte = 0x41
	s := newTestSession(bus)

	sb, err := s.SerialPoll()
	if err != nil {
		t.Fatalf("SerialPoll err=%v", err)
	}
	if sb != 0x41 {
		t.Errorf("status byte %#x want 0x41", sb)
	}

	wantATN := []byte{
		cmdSPE,
		testInstAddr + talkAddrOffset,
		testMyAddr + listenAddrOffset,
		cmdSPD,
		cmdUntalk,
	}
	if !bytes.Equal(bus.atnBytes, wantATN) {
		t.Errorf("ATN sequence %v want %v", bus.atnBytes, wantATN)
	}
	if bus.polled {
		t.Error("serial poll left enabled")
	}
	if bus.asserted.renEver {
		t.Error("serial poll must not touch REN")
	}
}

func TestStatusQuery(t *testing.T) {
	bus := newInstrBus()
	bus.response = []byte{0x26, 0x06, 0x40, 0x00, 0x20}
	s := newTestSession(bus)

	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status err=%v", err)
	}
	if st != [5]byte{0x26, 0x06, 0x40, 0x00, 0x20} {
		t.Errorf("Status=%v", st)
	}
	if string(bus.data) != "B\n" {
		t.Errorf("command bytes %q want %q", bus.data, "B\n")
	}
}

func TestFailureResetsSessionState(t *testing.T) {
	bus := newInstrBus()
	s := newTestSession(bus)

	// Open a talk session, then kill the peer mid-stream.
	if err := s.Command([]byte("B"), Talk|Remote); err != nil {
		t.Fatalf("Command err=%v", err)
	}
	bus.dead = true

	if err := s.Command([]byte("N5"), Talk|Remote); err == nil {
		t.Fatal("expected failure against dead peer")
	}
	if s.Role() != RoleIdle {
		t.Errorf("role=%v want idle after failure", s.Role())
	}
	if bus.driven[gpib.ATN] || bus.driven[gpib.REN] {
		t.Error("ATN/REN left asserted after failure")
	}
}

func TestSessionErrorCarriesCode(t *testing.T) {
	bus := newInstrBus()
	bus.dead = true
	bus.peerNDAC = true // listener visible, handshake dead
	s := newTestSession(bus)

	err := s.Command([]byte("K"), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	var se *Error
	if !asSessionError(err, &se) {
		t.Fatalf("error %T does not expose a code", err)
	}
	if se.Code() == 0 {
		t.Error("zero error code")
	}
}

func asSessionError(err error, target **Error) bool {
	se, ok := err.(*Error)
	if ok {
		*target = se
	}
	return ok
}
