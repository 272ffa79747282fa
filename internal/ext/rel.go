package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/reading"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// relStart arms REL mode: the current reading becomes the reference
// and the instrument is switched to data-ready SRQs with continuous
// triggering.
func (c *Controller) relStart(st1 byte, r reading.Reading) error {
	if err := c.cmdf(0, "M%02XT1", c.mask()|status.SPDataReady); err != nil {
		return err
	}
	c.relMode = st1
	c.relRef = r
	return nil
}

// relHandleData shows the difference against the reference, aligning
// the two readings to the coarser scale first.
func (c *Controller) relHandleData(r reading.Reading) error {
	ref := c.relRef
	in := r
	var out reading.Reading

	eRef := ref.Exp + int8(ref.Dot)
	eIn := in.Exp + int8(in.Dot)
	if eIn >= eRef {
		for i := eRef; i < eIn; i++ {
			ref.Value /= 10
		}
		out.Dot = in.Dot
		out.Exp = in.Exp
	} else {
		for i := eIn; i < eRef; i++ {
			in.Value /= 10
		}
		out.Dot = ref.Dot
		out.Exp = ref.Exp
	}
	out.Value = in.Value - ref.Value

	return c.inst.DisplayReading(out, c.relMode, '*', 0)
}
