package ext

import (
	"fmt"

	"github.com/KIrill-ka/hp3478ext/internal/config"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// contInit takes over the instrument for continuity testing: fixed
// ohms range, 3 digits, autozero off for sample rate, data-ready SRQ.
func (c *Controller) contInit() error {
	st, err := c.inst.Status()
	if err != nil {
		return err
	}
	c.saved[0], c.saved[1] = st[0], st[1]
	c.buzzing = false
	cc := c.store.Config().Continuity
	if err := c.cmdf(0, "R%dN3M%02XZ0", cc.Range, c.mask()|status.SPDataReady); err != nil {
		return err
	}
	return c.showContThreshold()
}

func (c *Controller) showContThreshold() error {
	cc := c.store.Config().Continuity
	ohms := cc.Threshold / countsPerOhm(cc.Range)
	return c.inst.DisplayString(fmt.Sprintf(" >%d OHM", ohms), session.HideAnnunciators)
}

// countsPerOhm converts reading counts to whole ohms on the given
// fixed range (range 1 = 30 ohm, one decade per step).
func countsPerOhm(rng uint8) int32 {
	n := int32(10000)
	for ; rng > 1; rng-- {
		n /= 10
	}
	if n < 1 {
		return 1
	}
	return n
}

// contRestore undoes the continuity (or diode) setup: range, digit
// count and autozero come back from the saved status bytes. Also
// silences the beeper.
func (c *Controller) contRestore() error {
	s1, s2 := c.saved[0], c.saved[1]
	c.panel.SetBuzzer(0, 0)
	c.buzzing = false

	cmd := make([]byte, 0, 6)
	if s2&status.Autorange != 0 {
		cmd = append(cmd, 'R', 'A')
	} else {
		cmd = append(cmd, 'R', status.RangeDigit(s1))
	}
	cmd = append(cmd, 'N', '0'+status.DigitsOf(s1))
	if s2&status.Autozero != 0 {
		cmd = append(cmd, 'Z', '1')
	} else {
		cmd = append(cmd, 'Z', '0')
	}
	return c.inst.Command(cmd, 0)
}

// beepLevel interpolates the buzzer period and duty linearly between
// the two configured ramp points, so pitch and volume track the
// measured resistance.
func beepLevel(cc config.ContinuityConfig, v int32) (uint16, uint8) {
	if v <= cc.BeepT1 {
		return cc.BeepP1, cc.BeepD1
	}
	if v >= cc.BeepT2 {
		return cc.BeepP2, cc.BeepD2
	}
	span := cc.BeepT2 - cc.BeepT1
	p := int32(cc.BeepP1) + (int32(cc.BeepP2)-int32(cc.BeepP1))*(v-cc.BeepT1)/span
	d := int32(cc.BeepD1) + (int32(cc.BeepD2)-int32(cc.BeepD1))*(v-cc.BeepT1)/span
	return uint16(p), uint8(d)
}
