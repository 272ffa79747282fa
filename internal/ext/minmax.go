package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// mmState bits: which extrema are valid, and which one is on display.
const (
	mmHaveMin  = 1
	mmHaveMax  = 2
	mmDispMask = 12
	mmDispMin  = 4
	mmDispMax  = 8
)

func (c *Controller) minmaxInit() error {
	st, err := c.inst.Status()
	if err != nil {
		return err
	}
	c.saved[0] = st[0]
	if err := c.cmdf(0, "M%02X", c.mask()|status.SPDataReady); err != nil {
		return err
	}
	c.mmState = 0
	return nil
}

// minmaxDetectKey: SRQ with the data-ready mask temporarily cleared
// still pending means the front-panel button, not a reading.
func (c *Controller) minmaxDetectKey() bool {
	if !c.inst.SRQ() {
		return false
	}
	if err := c.cmdf(session.Cont, "M%02X", c.mask()); err != nil {
		c.logf("minmax: mask clear failed: %v", err)
		return true
	}
	// ~250us for the instrument to drop SRQ after a mask update.
	c.inst.Settle(400)
	return c.inst.SRQ()
}

// minmaxHandleData folds a reading into the extrema and reports which
// of them moved.
func (c *Controller) minmaxHandleData(r reading.Reading) uint8 {
	s := c.mmState
	var moved uint8
	if !r.Overload() {
		if s&mmHaveMin == 0 || reading.Compare(r, c.mmMin) < 0 {
			c.mmMin = r
			moved |= mmHaveMin
		}
		if s&mmHaveMax == 0 || reading.Compare(r, c.mmMax) > 0 {
			c.mmMax = r
			moved |= mmHaveMax
		}
	}
	c.mmState = s | moved
	return moved
}

// minmaxDisplayData cycles live/min/max on key presses and refreshes
// the shown extremum when it moves.
func (c *Controller) minmaxDisplayData(moved uint8, keyPress bool) error {
	s := c.mmState
	flags := session.Cont | session.HideAnnunciators

	switch s & mmDispMask {
	case 0:
		if !keyPress {
			break
		}
		c.mmState = (s &^ mmDispMask) | mmDispMin
		if s&mmHaveMin == 0 {
			return c.inst.DisplayString("NO MIN", flags)
		}
		return c.inst.DisplayReading(c.mmMin, c.saved[0], '-', flags)
	case mmDispMin:
		if !keyPress {
			if moved&mmHaveMin == 0 {
				break
			}
			return c.inst.DisplayReading(c.mmMin, c.saved[0], '-', flags)
		}
		c.mmState = (s &^ mmDispMask) | mmDispMax
		if s&mmHaveMax == 0 {
			return c.inst.DisplayString("NO MAX", flags)
		}
		return c.inst.DisplayReading(c.mmMax, c.saved[0], '+', flags)
	case mmDispMax:
		if !keyPress {
			if moved&mmHaveMax == 0 {
				break
			}
			return c.inst.DisplayReading(c.mmMax, c.saved[0], '+', flags)
		}
		c.mmState = s &^ mmDispMask
		return c.inst.Command([]byte("D1"), session.Cont)
	}
	return nil
}

func (c *Controller) handleMinMax() uint16 {
	key := c.minmaxDetectKey()
	sb, err := c.inst.SerialPoll()
	if err != nil {
		return c.reinit(err)
	}
	if key && sb&status.SPFrontPanel == 0 {
		// Local button: leave the mode.
		if err := c.cmdf(0, "KM%02XD1", c.mask()); err != nil {
			return c.reinit(err)
		}
		c.state = StateIdle
		return TimeoutInf
	}
	var moved uint8
	if sb&status.SPDataReady != 0 {
		r, err := c.inst.GetReading(session.Cont)
		if err != nil {
			return c.reinit(err)
		}
		moved = c.minmaxHandleData(r)
	}
	if err := c.minmaxDisplayData(moved, sb&status.SPFrontPanel != 0); err != nil {
		return c.reinit(err)
	}
	// Restore the data-ready mask after the detector cleared it.
	if err := c.cmdf(session.Cont, "M%02X", c.mask()|status.SPDataReady); err != nil {
		return c.reinit(err)
	}
	return TimeoutInf
}
