package ext

import (
	"math"

	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// Pt1000 RTD coefficients (Callendar-Van Dusen, above 0 C).
const (
	rtdA  = 3.908e-3
	rtdB  = -5.8019e-7
	rtdR0 = 1000.0
)

// Temperature mode leaves the ohms setup alone and converts whatever
// resistance comes in through the RTD equation.
func (c *Controller) tempInit() error {
	st, err := c.inst.Status()
	if err != nil {
		return err
	}
	c.saved[0] = st[0]
	if err := c.cmdf(0, "M%02X", c.mask()|status.SPDataReady); err != nil {
		return err
	}
	c.liveShown = true
	return nil
}

func (c *Controller) tempHandleData(r reading.Reading) error {
	if r.Overload() {
		if c.liveShown {
			c.liveShown = false
			return c.inst.DisplayString("  OPEN", session.HideAnnunciators)
		}
		return nil
	}
	c.liveShown = true

	ohms := float64(r.Value)
	for i := 6 - int(r.Dot) - int(r.Exp); i > 0; i-- {
		ohms /= 10
	}
	t := (-(rtdR0 * rtdA) +
		math.Sqrt(rtdR0*rtdR0*rtdA*rtdA-(4*rtdR0*rtdB)*(rtdR0-ohms))) /
		(2 * rtdR0 * rtdB)

	out := reading.Reading{Value: int32(t * 1000), Dot: 3}
	return c.inst.DisplayReading(out, c.saved[0], 'c', 0)
}
