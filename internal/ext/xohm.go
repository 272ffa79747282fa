package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// Extended ohms: the instrument's extended-ohms function measures the
// unknown in parallel with its own 10M input divider. The first
// reading with open terminals calibrates the divider; afterwards the
// parallel resistance formula recovers the unknown.
func (c *Controller) xohmInit() error {
	c.xohmRef = 0
	return c.cmdf(0, "F7M%02X", c.mask()|status.SPDataReady)
}

func (c *Controller) xohmHandleData(r reading.Reading) error {
	if c.xohmRef == 0 {
		c.xohmRef = int64(r.Value)
	}
	v := int64(r.Value)
	if c.xohmRef <= v+100 {
		return c.inst.DisplayString("  OVLD  GOHM", 0)
	}
	if v < 0 {
		v = 0
	}
	res := c.xohmRef * v / (c.xohmRef - v)

	out := reading.Reading{Exp: 6, Dot: 2}
	for res > 1000000 {
		out.Dot++
		if out.Dot == 4 {
			out.Exp += 3
			out.Dot = 1
		}
		res /= 10
	}
	out.Value = int32(res)
	return c.inst.DisplayReading(out, status.Func2W|status.Digits5, 0, 0)
}
