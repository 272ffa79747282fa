package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// The menu is "virtual": labels are written to the instrument display
// and the SRQ button cycles through them. Selection is the Local
// button, detected indirectly because Local does not raise SRQ: a
// decoy mask with the syntax error bit is armed together with an
// invalid command, so SRQ stays pending until Local clears the remote
// state and with it the pending message.
type menuItem uint8

const (
	menuError menuItem = iota + 1
	menuDone
	menuNop
	menuWait
	menuXOhm
	menuBeep     // continuity test
	menuXOhmBeep // continuity test reached from an overloaded ohms setup
	menuMinMax
	menuAutoHold
	menuOhmMinMax
	menuOhmAutoHold
	menuTemp
	menuDiode
	menuPresetSave
	menuPresetLoad
)

// menuNext returns the label following pos. The first label depends on
// the active function so the most likely mode comes up in one press.
func menuNext(st1 byte, r reading.Reading, pos menuItem) menuItem {
	switch pos {
	case 0:
		if st1&status.FuncMask == status.Func2W {
			if r.Overload() {
				return menuXOhmBeep
			}
			return menuBeep
		}
		if st1&status.FuncMask == status.FuncXOhm {
			return menuXOhm
		}
		return menuAutoHold
	case menuXOhmBeep:
		return menuXOhm
	case menuXOhm, menuBeep:
		return menuDiode
	case menuDiode:
		return menuOhmAutoHold
	case menuOhmAutoHold:
		return menuOhmMinMax
	case menuOhmMinMax:
		return menuTemp
	case menuAutoHold:
		return menuMinMax
	case menuTemp, menuMinMax:
		return menuPresetSave
	case menuPresetSave:
		return menuPresetLoad
	}
	return menuDone
}

func (c *Controller) menuShow(pos menuItem) error {
	var s string
	switch pos {
	case menuMinMax, menuOhmMinMax:
		s = "M: MINMAX"
	case menuBeep, menuXOhmBeep:
		s = "M: CONT"
	case menuXOhm:
		s = "M: XOHM"
	case menuAutoHold, menuOhmAutoHold:
		s = "M: AUTOHOLD"
	case menuDiode:
		s = "M: DIODE"
	case menuTemp:
		s = "M: TEMP"
	case menuPresetSave:
		s = "M: SAVE"
	case menuPresetLoad:
		s = "M: RECALL"
	}
	return c.inst.DisplayString(s, session.HideAnnunciators|session.Cont)
}

// menuRestartBtnDetect arms the Local detector: an invalid command so
// the syntax error bit is pending behind the decoy mask.
func (c *Controller) menuRestartBtnDetect() error {
	if err := c.inst.Command([]byte{'A'}, session.Remote|session.Talk); err != nil {
		return err
	}
	c.btnStage = 0
	return nil
}

func (c *Controller) menuInit(st1 byte, r reading.Reading) error {
	c.menuPos = menuNext(st1, r, 0)
	c.menuPolls = 0
	if err := c.menuShow(c.menuPos); err != nil {
		return err
	}
	return c.menuRestartBtnDetect()
}

// menuProcess runs one detector cycle. It alternates the decoy mask on
// and off every poll tick; seeing SRQ in the phase where it should be
// clear (or missing it where it should be pending) means a button was
// handled by the instrument itself.
func (c *Controller) menuProcess(ev Event) menuItem {
	switch c.btnStage {
	case 0:
		if ev&(EvTimeout|EvSRQ) != 0 && c.inst.SRQ() {
			break
		}
		if ev&EvTimeout != 0 {
			c.btnStage = 1
			if c.cmdf(session.Remote|session.Talk, "M%02X", c.mask()|status.SPSyntaxErr) != nil {
				return menuError
			}
			return menuWait
		}
		return menuNop
	case 1:
		if ev&(EvTimeout|EvSRQ) != 0 && !c.inst.SRQ() {
			break
		}
		if ev&EvTimeout != 0 {
			c.btnStage = 0
			if c.cmdf(session.Remote|session.Talk, "M%02X", c.mask()) != nil {
				return menuError
			}
			return menuWait
		}
		return menuNop
	}
	sb, err := c.inst.SerialPoll()
	if err != nil {
		return menuError
	}
	if c.cmdf(0, "KM%02X", c.mask()) != nil {
		return menuError
	}
	if sb&status.SPFrontPanel == 0 {
		// No SRQ press recorded: the Local button took us here.
		return c.menuPos
	}
	c.menuPos = menuNext(0, reading.Reading{}, c.menuPos)
	if c.menuPos == menuDone {
		return menuDone
	}
	if err := c.menuShow(c.menuPos); err != nil {
		return menuError
	}
	c.menuRestartBtnDetect()
	return menuWait
}

func (c *Controller) handleMenu(ev Event) uint16 {
	switch r := c.menuProcess(ev); r {
	case menuError:
		c.logf("menu: error")
		return c.reinit(nil)
	case menuBeep, menuXOhmBeep:
		c.state = StateContinuity
		if err := c.contInit(); err != nil {
			return c.reinit(err)
		}
		return TimeoutInf
	case menuXOhm:
		c.logf("menu: xohm")
		c.state = StateExtOhms
		if err := c.xohmInit(); err != nil {
			return c.reinit(err)
		}
		return TimeoutInf
	case menuMinMax, menuOhmMinMax:
		c.logf("menu: minmax")
		c.state = StateMinMax
		if err := c.minmaxInit(); err != nil {
			return c.reinit(err)
		}
		return TimeoutInf
	case menuAutoHold, menuOhmAutoHold:
		c.logf("menu: autohold")
		c.state = StateAutoHold
		if err := c.autoholdInit(); err != nil {
			return c.reinit(err)
		}
		return TimeoutInf
	case menuDiode:
		c.logf("menu: diode")
		c.state = StateDiode
		if err := c.diodeInit(); err != nil {
			return c.reinit(err)
		}
		return TimeoutInf
	case menuTemp:
		c.logf("menu: temp")
		c.state = StateTemperature
		if err := c.tempInit(); err != nil {
			return c.reinit(err)
		}
		return TimeoutInf
	case menuPresetSave:
		c.logf("menu: preset save")
		if err := c.presetSave(); err != nil {
			return c.reinit(err)
		}
		c.state = StateIdle
		return TimeoutInf
	case menuPresetLoad:
		c.logf("menu: preset recall")
		if err := c.presetLoad(); err != nil {
			return c.reinit(err)
		}
		c.state = StateIdle
		return TimeoutInf
	case menuDone:
		c.logf("menu: idle")
		c.state = StateIdle
		return TimeoutInf
	case menuNop:
		return TimeoutCont
	case menuWait:
		c.menuPolls++
		if c.menuPolls > menuTimeoutPolls {
			c.cmdf(0, "KM%02XD1", c.mask())
			c.state = StateIdle
			return TimeoutInf
		}
		return menuPollMillis
	default:
		c.logf("menu: unknown selection %d", r)
		return c.reinit(nil)
	}
}
