// Package serialio backs the console transport with a serial port.
// A reader goroutine feeds a channel so TryRecv never blocks; it is
// the only concurrency in the program besides the Modbus timeouts.
package serialio

import (
	"time"

	"github.com/goburrow/serial"
)

type Config struct {
	Port string
	Baud int
}

type Transport struct {
	port serial.Port
	rx   chan byte
}

func Open(cfg Config) (*Transport, error) {
	p, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.Baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, err
	}
	t := &Transport{port: p, rx: make(chan byte, 64)}
	go t.readLoop()
	return t, nil
}

func (t *Transport) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := t.port.Read(buf)
		if n == 1 {
			select {
			case t.rx <- buf[0]:
			default:
				// Input faster than the event loop drains: drop.
			}
		}
		if err != nil && n == 0 {
			// Read timeouts keep the loop alive; anything else means
			// the port is gone.
			if err != serial.ErrTimeout {
				return
			}
		}
	}
}

func (t *Transport) TryRecv() (byte, bool) {
	select {
	case b := <-t.rx:
		return b, true
	default:
		return 0, false
	}
}

func (t *Transport) Send(p []byte) error {
	_, err := t.port.Write(p)
	return err
}

func (t *Transport) Close() error { return t.port.Close() }
