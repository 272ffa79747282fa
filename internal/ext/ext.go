// Package ext is the autonomous extension controller: a state machine
// that rides on the instrument's SRQ line and software timeouts to add
// measurement modes the HP 3478A does not have natively (REL,
// continuity beeper, extended ohms, min/max, autohold, diode test,
// RTD temperature, preset save/recall). It owns the instrument between
// front-panel interactions and backs off completely when disabled.
package ext

import (
	"errors"
	"fmt"

	"github.com/KIrill-ka/hp3478ext/internal/config"
	"github.com/KIrill-ka/hp3478ext/internal/indicator"
	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// Instrument is the session surface the controller needs. Satisfied by
// *session.Session.
type Instrument interface {
	Command(cmd []byte, flags session.Flags) error
	SerialPoll() (byte, error)
	Status() ([5]byte, error)
	Display(text []byte, flags session.Flags) error
	DisplayString(text string, flags session.Flags) error
	GetReading(flags session.Flags) (reading.Reading, error)
	DisplayReading(r reading.Reading, st1 byte, modeInd byte, flags session.Flags) error
	SRQ() bool
	Settle(us uint16)
}

// Event bits delivered to Handle by the main loop.
type Event uint8

const (
	EvTimeout Event = 1 << 0
	EvSRQ     Event = 1 << 1
	EvConsole Event = 1 << 2
	EvDisable Event = 1 << 3
	EvEnable  Event = 1 << 4
)

// Timeouts returned by Handle, in milliseconds of the wrapping tick.
const (
	// TimeoutInf means wait for the next SRQ edge or external event.
	TimeoutInf uint16 = 0xffff
	// TimeoutCont keeps the previously requested deadline running.
	TimeoutCont uint16 = 0xfffe
)

const (
	retryInitMillis   = 2000
	retryReinitMillis = 250
	relSettleMillis   = 1800
	lockBeepMillis    = 300
	menuPollMillis    = 100
	// Menu abandons itself after 30s of unanswered labels.
	menuTimeoutPolls = 300
)

// State is the controller mode. Transitions happen only inside Handle.
type State uint8

const (
	StateDisabled State = iota
	StateInit
	StateIdle
	StateRelSettle
	StateRelActive
	StateMenu
	StateExtOhms
	StateContinuity
	StateMinMax
	StateAutoHold
	StateAutoHoldLocked
	StateDiode
	StateTemperature
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateInit:
		return "init"
	case StateIdle:
		return "idle"
	case StateRelSettle:
		return "rel-settle"
	case StateRelActive:
		return "rel"
	case StateMenu:
		return "menu"
	case StateExtOhms:
		return "xohm"
	case StateContinuity:
		return "cont"
	case StateMinMax:
		return "minmax"
	case StateAutoHold:
		return "autohold"
	case StateAutoHoldLocked:
		return "autohold-locked"
	case StateDiode:
		return "diode"
	case StateTemperature:
		return "temp"
	}
	return "?"
}

// Controller is the extension state machine. Single threaded: the main
// loop calls Handle with the current event bits and arms the returned
// timeout before sleeping.
type Controller struct {
	inst  Instrument
	store *config.Store
	panel indicator.Panel
	logf  func(format string, args ...any)

	state State
	// Layered diagnostic codes accumulated across reinit cycles:
	// handshake, session, decode, state at failure. Shown on the
	// instrument display when initialization finally succeeds.
	errs [4]byte

	// Status bytes captured when a mode takes over, restored on exit.
	saved [2]byte

	relMode byte
	relRef  reading.Reading

	menuPos   menuItem
	btnStage  uint8
	menuPolls uint16

	mmState uint8
	mmMin   reading.Reading
	mmMax   reading.Reading
	nStable uint8
	ahldErr error

	xohmRef int64

	// Diode/temperature live-value indication: false after an open
	// circuit message until a valid reading comes back.
	liveShown bool

	buzzing bool
}

// New returns a controller in the Init state. logf may be nil.
func New(inst Instrument, store *config.Store, panel indicator.Panel, logf func(string, ...any)) *Controller {
	if panel == nil {
		panel = indicator.Nop{}
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	c := &Controller{inst: inst, store: store, panel: panel, logf: logf, state: StateInit}
	if !store.Config().Extension.Enabled {
		c.state = StateDisabled
	}
	return c
}

// State reports the current mode, for the console status command.
func (c *Controller) State() State { return c.state }

func (c *Controller) mask() uint8 {
	return uint8(c.store.Option(config.OptSRQMask))
}

func (c *Controller) cmdf(flags session.Flags, format string, args ...any) error {
	return c.inst.Command([]byte(fmt.Sprintf(format, args...)), flags)
}

// fault files err into the layered diagnostic accumulator.
func (c *Controller) fault(err error) {
	var se *session.Error
	switch {
	case errors.As(err, &se):
		if se.Transaction() {
			c.errs[0] = se.Code()
		} else {
			c.errs[1] = se.Code()
		}
	case err != nil:
		c.errs[2] = 0x01
	}
}

// reinit is the common failure exit: record the error and retry
// initialization shortly.
func (c *Controller) reinit(err error) uint16 {
	if err != nil {
		c.logf("%s: error: %v", c.state, err)
	}
	c.fault(err)
	c.errs[3] = byte(c.state)
	c.state = StateInit
	return retryReinitMillis
}

// Handle advances the state machine for one event delivery and returns
// the next timeout to arm. It never blocks beyond individual bus
// transactions.
func (c *Controller) Handle(ev Event) uint16 {
	if c.state == StateDisabled {
		if ev&EvEnable == 0 {
			return TimeoutInf
		}
		c.state = StateInit
	}
	if ev&EvDisable != 0 {
		return c.disable()
	}

	var sb byte
	// Init has no instrument to poll yet; Menu and MinMax run their
	// own poll because a decoy SRQ mask is armed there.
	if c.state != StateInit && c.state != StateMenu && c.state != StateMinMax {
		var err error
		sb, err = c.inst.SerialPoll()
		if err != nil {
			return c.reinit(err)
		}
		if sb&status.SPPowerOn != 0 {
			// Instrument power cycled: the mode word is gone.
			return c.reinit(nil)
		}
		if sb&status.SPFrontPanel != 0 {
			return c.frontPanel(sb)
		}
	}

	switch c.state {
	case StateInit:
		return c.handleInit()
	case StateIdle:
		if err := c.inst.Command([]byte{'K'}, 0); err != nil {
			return c.reinit(err)
		}
		c.logf("idle: unexpected event %#x status %#x", ev, sb)
		return TimeoutInf
	case StateMenu:
		return c.handleMenu(ev)
	case StateRelSettle:
		return c.handleRelSettle(ev, sb)
	case StateRelActive:
		return c.handleRelActive(sb)
	case StateAutoHold, StateAutoHoldLocked:
		return c.handleAutoHold(ev, sb)
	case StateExtOhms:
		return c.handleExtOhms(sb)
	case StateContinuity:
		return c.handleContinuity(sb)
	case StateDiode:
		return c.handleDiode(sb)
	case StateTemperature:
		return c.handleTemperature(sb)
	case StateMinMax:
		return c.handleMinMax()
	}
	return TimeoutInf
}

func (c *Controller) handleInit() uint16 {
	if err := c.cmdf(0, "KM%02X", c.mask()); err != nil {
		c.fault(err)
		return retryInitMillis
	}
	c.logf("init: ok")
	if c.errs != ([4]byte{}) {
		s := fmt.Sprintf("%02X%02X%02X%02X", c.errs[0], c.errs[1], c.errs[2], c.errs[3])
		c.logf("init: accumulated errors %s", s)
		if c.inst.DisplayString(s, session.HideAnnunciators) == nil {
			c.errs = [4]byte{}
		}
	}
	c.state = StateIdle
	return TimeoutInf
}

// frontPanel handles the SRQ button press in every state that shares
// the common serial poll. Modes that hold instrument setup restore it
// on the way out.
func (c *Controller) frontPanel(sb byte) uint16 {
	switch c.state {
	case StateAutoHold, StateAutoHoldLocked:
		c.panel.SetBuzzer(0, 0)
		c.cmdf(0, "KM%02XD1T1", c.mask())
	case StateIdle:
		return c.idleFrontPanel(sb)
	case StateContinuity, StateDiode:
		c.contRestore()
		c.cmdf(0, "KM%02XD1", c.mask())
	default:
		c.cmdf(0, "KM%02XD1", c.mask())
	}
	c.state = StateIdle
	return TimeoutInf
}

// idleFrontPanel decides what the press means: REL on an external
// trigger setup, the mode menu on internal trigger.
func (c *Controller) idleFrontPanel(sb byte) uint16 {
	var r reading.Reading
	if sb&status.SPDataReady != 0 {
		var err error
		r, err = c.inst.GetReading(session.Listen)
		if err != nil {
			c.logf("idle: get reading failed: %v", err)
			return c.reinit(err)
		}
	}
	// K is required because a serial poll does not clear status bits
	// immediately; the next SRQ could still read as a front panel
	// press.
	if err := c.inst.Command([]byte{'K'}, session.Cont); err != nil {
		return c.reinit(err)
	}
	st, err := c.inst.Status()
	if err != nil {
		return c.reinit(err)
	}
	if st[1]&status.IntTrigger == 0 {
		if sb&status.SPDataReady == 0 {
			// No reading yet to take the reference from: wait for the
			// triggered conversion to land.
			if err := c.cmdf(0, "M%02X", c.mask()|status.SPDataReady); err != nil {
				return c.reinit(err)
			}
			c.state = StateRelSettle
			return relSettleMillis
		}
		if r.Overload() {
			if err := c.autoholdInit(); err != nil {
				return c.reinit(err)
			}
			c.state = StateAutoHold
			return TimeoutInf
		}
		if err := c.relStart(st[0], r); err != nil {
			return c.reinit(err)
		}
		c.state = StateRelActive
		return TimeoutInf
	}
	if err := c.menuInit(st[0], r); err != nil {
		c.logf("idle: menu init failed: %v", err)
		return c.reinit(err)
	}
	c.state = StateMenu
	return menuPollMillis
}

func (c *Controller) handleRelSettle(ev Event, sb byte) uint16 {
	if ev&EvTimeout != 0 {
		// Nothing came in single-trigger mode: fall back to autohold.
		if err := c.autoholdInit(); err != nil {
			return c.reinit(err)
		}
		c.state = StateAutoHold
		return TimeoutInf
	}
	if sb&status.SPDataReady == 0 {
		return TimeoutCont
	}
	r, err := c.inst.GetReading(session.Listen)
	if err != nil {
		return c.reinit(err)
	}
	if r.Overload() {
		if err := c.autoholdInit(); err != nil {
			return c.reinit(err)
		}
		c.state = StateAutoHold
		return TimeoutInf
	}
	st, err := c.inst.Status()
	if err != nil {
		return c.reinit(err)
	}
	if err := c.relStart(st[0], r); err != nil {
		return c.reinit(err)
	}
	c.state = StateRelActive
	return TimeoutInf
}

func (c *Controller) handleRelActive(sb byte) uint16 {
	if sb&status.SPDataReady == 0 {
		return TimeoutInf
	}
	r, err := c.inst.GetReading(session.Listen)
	if err != nil {
		return c.reinit(err)
	}
	if err := c.relHandleData(r); err != nil {
		// Display write failed mid-mode: give the instrument back.
		if err := c.cmdf(0, "M%02XD1", c.mask()); err != nil {
			return c.reinit(err)
		}
		c.state = StateIdle
	}
	return TimeoutInf
}

func (c *Controller) handleAutoHold(ev Event, sb byte) uint16 {
	switch c.autoholdProcess(c.state == StateAutoHoldLocked, sb) {
	case ahldError:
		c.panel.SetBuzzer(0, 0)
		return c.reinit(c.ahldErr)
	case ahldLock:
		b := c.store.Config().Beeper
		c.panel.SetBuzzer(b.Period, b.Duty)
		c.state = StateAutoHoldLocked
		return lockBeepMillis
	case ahldUnlock:
		c.state = StateAutoHold
		c.panel.SetBuzzer(0, 0)
		return TimeoutInf
	default:
		if c.state == StateAutoHoldLocked {
			if ev&EvTimeout != 0 {
				c.panel.SetBuzzer(0, 0)
				return TimeoutInf
			}
			return TimeoutCont
		}
		return TimeoutInf
	}
}

func (c *Controller) handleContinuity(sb byte) uint16 {
	if sb&status.SPDataReady == 0 {
		return TimeoutInf
	}
	r, err := c.inst.GetReading(session.Listen)
	if err != nil {
		return c.reinit(err)
	}
	cc := c.store.Config().Continuity
	if r.Value < cc.Threshold && !r.Overload() {
		if !c.buzzing {
			// Bring back the native display so the operator sees the
			// resistance while the beeper sounds.
			if err := c.inst.Command([]byte("D1"), 0); err != nil {
				return c.reinit(err)
			}
			c.buzzing = true
		}
		c.panel.SetBuzzer(beepLevel(cc, r.Value))
	} else if c.buzzing && !cc.Latch {
		if err := c.showContThreshold(); err != nil {
			return c.reinit(err)
		}
		c.panel.SetBuzzer(0, 0)
		c.buzzing = false
	}
	return TimeoutInf
}

func (c *Controller) handleExtOhms(sb byte) uint16 {
	if sb&status.SPDataReady == 0 {
		return TimeoutInf
	}
	r, err := c.inst.GetReading(session.Listen)
	if err != nil {
		return c.reinit(err)
	}
	if err := c.inst.Command([]byte{'K'}, session.Cont); err != nil {
		return c.reinit(err)
	}
	if err := c.xohmHandleData(r); err != nil {
		return c.reinit(err)
	}
	return TimeoutInf
}

func (c *Controller) handleDiode(sb byte) uint16 {
	if sb&status.SPDataReady == 0 {
		return TimeoutInf
	}
	r, err := c.inst.GetReading(session.Listen)
	if err != nil {
		return c.reinit(err)
	}
	if err := c.diodeHandleData(r); err != nil {
		return c.reinit(err)
	}
	return TimeoutInf
}

func (c *Controller) handleTemperature(sb byte) uint16 {
	if sb&status.SPDataReady == 0 {
		return TimeoutInf
	}
	r, err := c.inst.GetReading(session.Listen)
	if err != nil {
		return c.reinit(err)
	}
	if err := c.inst.Command([]byte{'K'}, session.Cont); err != nil {
		return c.reinit(err)
	}
	if err := c.tempHandleData(r); err != nil {
		return c.reinit(err)
	}
	return TimeoutInf
}

// disable restores whatever mode state the instrument holds and parks
// the machine.
func (c *Controller) disable() uint16 {
	switch c.state {
	case StateAutoHold, StateAutoHoldLocked:
		c.panel.SetBuzzer(0, 0)
		c.cmdf(0, "M00D1T1")
	case StateContinuity, StateDiode:
		c.contRestore()
		c.cmdf(0, "M00D1")
	default:
		c.cmdf(0, "M00D1")
	}
	c.state = StateDisabled
	return TimeoutInf
}
