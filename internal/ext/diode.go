package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// Diode test: the 3K ohms range pushes about 1mA through the device,
// and the voltage burden across it is what the ohms converter reads
// back. Relabel the reading as volts.
func (c *Controller) diodeInit() error {
	st, err := c.inst.Status()
	if err != nil {
		return err
	}
	c.saved[0], c.saved[1] = st[0], st[1]
	if err := c.cmdf(0, "R3M%02X", c.mask()|status.SPDataReady); err != nil {
		return err
	}
	c.liveShown = true
	return nil
}

func (c *Controller) diodeHandleData(r reading.Reading) error {
	if r.Overload() {
		if c.liveShown {
			c.liveShown = false
			return c.inst.DisplayString("     >3 V", session.HideAnnunciators)
		}
		return nil
	}
	c.liveShown = true
	r.Exp = 0
	return c.inst.DisplayReading(r, c.saved[0], 'd', 0)
}
