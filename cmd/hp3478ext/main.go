// cmd/hp3478ext/main.go
package main

import (
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KIrill-ka/hp3478ext/internal/config"
	"github.com/KIrill-ka/hp3478ext/internal/console"
	"github.com/KIrill-ka/hp3478ext/internal/console/serialio"
	"github.com/KIrill-ka/hp3478ext/internal/ext"
	"github.com/KIrill-ka/hp3478ext/internal/gpib"
	"github.com/KIrill-ka/hp3478ext/internal/gpib/modbusio"
	"github.com/KIrill-ka/hp3478ext/internal/indicator"
	"github.com/KIrill-ka/hp3478ext/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: hp3478ext <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	config.Normalize(cfg)
	store := config.NewStore(cfg, cfgPath)

	// --------------------
	// Build the backends
	// --------------------

	bus, err := modbusio.New(modbusio.Config{
		Endpoint: cfg.IO.Endpoint,
		UnitID:   cfg.IO.UnitID,
		Timeout:  time.Duration(cfg.IO.TimeoutMs) * time.Millisecond,
		Logf:     log.Printf,
	})
	if err != nil {
		log.Fatalf("io module connect failed (endpoint=%s): %v", cfg.IO.Endpoint, err)
	}
	defer bus.Close()

	var tty console.Transport = console.Discard{}
	if cfg.Console.Port != "" {
		sp, err := serialio.Open(serialio.Config{Port: cfg.Console.Port, Baud: cfg.Console.Baud})
		if err != nil {
			log.Fatalf("console open failed (port=%s): %v", cfg.Console.Port, err)
		}
		defer sp.Close()
		tty = sp
		log.SetOutput(io.MultiWriter(os.Stderr, console.Writer{T: sp}))
	}

	eng := gpib.NewEngine(bus)
	sess := session.New(eng,
		uint8(store.Option(config.OptControllerAddress)),
		uint8(store.Option(config.OptInstrumentAddress)))
	sess.SetEnds(gpib.End(store.Option(config.OptTxEnd)), gpib.End(store.Option(config.OptRxEnd)))

	ctrl := ext.New(sess, store, bus, log.Printf)

	// Known bus state before the controller touches the instrument.
	eng.PulseIFC()
	bus.SetLED(indicator.LEDSlow)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	run(ctrl, bus, tty, sigs)
}

// run is the cooperative event loop: gather event bits, hand them to
// the controller, arm the timeout it asks for, sleep. Timeout
// bookkeeping uses the same wrapping uint16 tick as the bus engine.
func run(ctrl *ext.Controller, bus *modbusio.Bus, tty console.Transport, sigs <-chan os.Signal) {
	var (
		armed = ext.TimeoutInf
		since uint16
	)

	ev := ext.EvTimeout
	for {
		switch t := ctrl.Handle(ev); t {
		case ext.TimeoutCont:
			// Previous deadline stays armed.
		case ext.TimeoutInf:
			armed = ext.TimeoutInf
		default:
			armed = t
			since = bus.Millis()
		}

		ev = 0
		for ev == 0 {
			select {
			case sig := <-sigs:
				switch sig {
				case syscall.SIGUSR1:
					if ctrl.State() == ext.StateDisabled {
						log.Print("extension enabled")
						ev |= ext.EvEnable | ext.EvTimeout
					} else {
						log.Print("extension disabled")
						ev |= ext.EvDisable
					}
				default:
					// Give the instrument back before exiting.
					ctrl.Handle(ext.EvDisable)
					bus.SetLED(indicator.LEDOff)
					log.Print("shutting down")
					return
				}
			default:
			}

			if bus.TakeSRQEdge() {
				ev |= ext.EvSRQ
			}
			if b, ok := tty.TryRecv(); ok {
				switch b {
				case 'e', 'E':
					ev |= ext.EvEnable | ext.EvTimeout | ext.EvConsole
				case 'd', 'D':
					ev |= ext.EvDisable | ext.EvConsole
				default:
					ev |= ext.EvConsole
				}
			}
			if armed != ext.TimeoutInf && bus.Millis()-since >= armed {
				ev |= ext.EvTimeout
				// One shot: the controller re-arms if it wants more.
				armed = ext.TimeoutInf
			}
			if ev == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}
}
