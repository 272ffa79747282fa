// Package modbusio drives the GPIB signal lines through a Modbus TCP
// digital I/O module: open-collector drivers on coils, line senses on
// discrete inputs. This adapter is geometry-only; all bus sequencing
// stays in the gpib engine.
package modbusio

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/KIrill-ka/hp3478ext/internal/gpib"
	"github.com/KIrill-ka/hp3478ext/internal/indicator"
)

// I/O module map. A coil turned on pulls the wire low, which is the
// IEEE-488 true state, so no inversion appears above this file.
const (
	coilData    = 0  // 8 coils, data bus drivers DIO1..DIO8
	coilLine    = 8  // 8 coils, control line drivers indexed by gpib.Line
	coilDataDir = 16 // talk enable for the data transceivers
	coilLED     = 17 // activity LED
	regBuzzer   = 0  // 2 holding registers: PWM period, duty

	inputData = 0 // 8 discrete inputs, data bus senses
	inputLine = 8 // 8 discrete inputs, control line senses
)

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	// Logf receives I/O failures; the gpib.Bus surface has no error
	// returns, failed senses read as released lines. May be nil.
	Logf func(format string, args ...any)
}

// Bus is a gpib.Bus over one Modbus TCP connection. Requests are
// serialized: the event loop and the console share the module.
type Bus struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
	logf    func(format string, args ...any)

	start   time.Time
	lastSRQ bool
	srqEdge bool
}

func New(cfg Config) (*Bus, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbusio: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Bus{
		handler: h,
		client:  modbus.NewClient(h),
		logf:    logf,
		start:   time.Now(),
	}, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler.Close()
}

func (b *Bus) writeCoil(addr uint16, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var v uint16
	if on {
		v = 0xff00
	}
	if _, err := b.client.WriteSingleCoil(addr, v); err != nil {
		b.logf("modbusio: coil %d write: %v", addr, err)
	}
}

func (b *Bus) readInputs(addr, qty uint16) byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.client.ReadDiscreteInputs(addr, qty)
	if err != nil || len(res) == 0 {
		b.logf("modbusio: input %d read: %v", addr, err)
		return 0
	}
	return res[0]
}

// ---- gpib.Bus ----

func (b *Bus) Assert(l gpib.Line)  { b.writeCoil(coilLine+uint16(l), true) }
func (b *Bus) Release(l gpib.Line) { b.writeCoil(coilLine+uint16(l), false) }

func (b *Bus) Sense(l gpib.Line) bool {
	return b.readInputs(inputLine+uint16(l), 1)&1 != 0
}

func (b *Bus) DataOut(v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.client.WriteMultipleCoils(coilData, 8, []byte{v}); err != nil {
		b.logf("modbusio: data write: %v", err)
	}
}

func (b *Bus) DataIn() byte {
	return b.readInputs(inputData, 8)
}

func (b *Bus) DataDir(output bool) { b.writeCoil(coilDataDir, output) }

func (b *Bus) Settle(us uint16) { time.Sleep(time.Duration(us) * time.Microsecond) }

func (b *Bus) Millis() uint16 {
	return uint16(time.Since(b.start) / time.Millisecond)
}

// TakeSRQEdge polls the SRQ sense and reports an assertion edge once.
// The hardware latches this in an interrupt; over Modbus it degrades
// to sampling, which is fine because the event loop also wakes on
// timeouts.
func (b *Bus) TakeSRQEdge() bool {
	srq := b.Sense(gpib.SRQ)
	if srq && !b.lastSRQ {
		b.srqEdge = true
	}
	b.lastSRQ = srq

	edge := b.srqEdge
	b.srqEdge = false
	return edge
}

// ---- indicator.Panel ----

// SetLED maps the blink modes onto the single activity coil: the
// module has no blinker, so slow and fast collapse to on.
func (b *Bus) SetLED(m indicator.LEDMode) {
	b.writeCoil(coilLED, m != indicator.LEDOff)
}

// SetBuzzer programs the module's PWM output.
func (b *Bus) SetBuzzer(period uint16, duty uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()

	payload := []byte{byte(period >> 8), byte(period), 0, duty}
	if _, err := b.client.WriteMultipleRegisters(regBuzzer, 2, payload); err != nil {
		b.logf("modbusio: buzzer write: %v", err)
	}
}
