package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// Stability window: the value must repeat within stableDelta counts
// for stableN consecutive samples before it is held, and a held value
// must leave that window before a new hold can be announced. The
// hysteresis keeps the beeper quiet on noise around a threshold.
const (
	stableN     = 5
	stableDelta = 3
)

type ahldResult uint8

const (
	ahldNop ahldResult = iota
	ahldLock
	ahldUnlock
	ahldError
)

func (c *Controller) autoholdInit() error {
	c.nStable = 0
	st, err := c.inst.Status()
	if err != nil {
		return err
	}
	c.saved[0], c.saved[1] = st[0], st[1]
	return c.cmdf(0, "M%02XT1", c.mask()|status.SPDataReady)
}

// autoholdMinValue is the smallest magnitude worth holding for the
// given setup; below it the input is considered floating. Low DC
// ranges are exempt so small voltages can still be held.
func autoholdMinValue(st byte) int32 {
	if st&status.FuncMask == status.FuncDCV && st&status.RangeMask <= status.Range3 {
		return 0
	}
	switch st & (status.FuncMask | status.DigitsMask) {
	case status.FuncDCV | status.Digits5,
		status.FuncACV | status.Digits5,
		status.FuncDCA | status.Digits5,
		status.FuncACA | status.Digits5:
		return 10
	case status.FuncDCV | status.Digits4,
		status.FuncACV | status.Digits4,
		status.FuncDCA | status.Digits4,
		status.FuncACA | status.Digits4:
		return 100
	case status.FuncDCV | status.Digits3,
		status.FuncACV | status.Digits3,
		status.FuncDCA | status.Digits3,
		status.FuncACA | status.Digits3:
		return 1000
	default:
		return 0
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// autoholdProcess tracks the incoming readings in mmMin and the held
// value in mmMax. A scale or setup change restarts tracking; a stable
// run of stableN samples locks.
func (c *Controller) autoholdProcess(locked bool, sb byte) ahldResult {
	if sb&status.SPDataReady == 0 {
		return ahldNop
	}
	r, err := c.inst.GetReading(session.Cont)
	if err != nil {
		c.ahldErr = err
		return ahldError
	}

	nstab := c.nStable
	ret := ahldNop
	st := c.saved[0]

	if r.Exp != c.mmMin.Exp || r.Dot != c.mmMin.Dot || r.Overload() {
		st1 := c.saved[1]
		s, err := c.inst.Status()
		if err != nil {
			c.ahldErr = err
			return ahldError
		}
		m := byte(status.FuncMask | status.DigitsMask)
		if st1&status.Autorange == 0 {
			m |= status.RangeMask
		}
		if (s[0]^st)&m != 0 || (s[1]^st1)&status.Autorange != 0 {
			if locked {
				ret = ahldUnlock
				locked = false
			}
			c.saved[1] = s[1]
		}
		c.saved[0] = s[0]
		st = s[0]
	} else if nstab != 0 &&
		abs32(r.Value-c.mmMin.Value) < stableDelta &&
		abs32(r.Value) >= autoholdMinValue(st) {
		nstab++
		if nstab == stableN {
			if locked &&
				abs32(r.Value-c.mmMax.Value) < stableDelta &&
				r.Exp == c.mmMax.Exp && r.Dot == c.mmMax.Dot {
				// Same value held again, don't re-announce it.
				c.nStable = 0
				return ahldNop
			}
			c.mmMax = c.mmMin
			c.nStable = 0
			if err := c.inst.DisplayReading(c.mmMin, st, '=', 0); err != nil {
				c.ahldErr = err
				return ahldError
			}
			return ahldLock
		}
		c.nStable = nstab
		return ahldNop
	}

	c.mmMin = r
	c.nStable = 1

	if locked {
		return ret
	}
	if err := c.inst.DisplayReading(r, st, '?', 0); err != nil {
		c.ahldErr = err
		return ahldError
	}
	return ret
}
