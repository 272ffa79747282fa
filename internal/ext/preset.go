package ext

import (
	"github.com/KIrill-ka/hp3478ext/internal/config"
	"github.com/KIrill-ka/hp3478ext/internal/session"
	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// The menu reaches one preset slot; the console can address the rest.
const menuPresetSlot = 0

// presetValid rejects slots that were never written or were corrupted
// in storage: the function, range and digit fields of status byte 1
// are never zero on a live instrument, and the high bit of byte 2 is
// always clear.
func presetValid(p config.Preset) bool {
	return p.Status1&status.FuncMask != 0 &&
		p.Status1&status.RangeMask != 0 &&
		p.Status1&status.DigitsMask != 0 &&
		p.Status2&0x80 == 0
}

// presetSetupCmd builds the command string reproducing the saved
// setup: function, range (or autorange), digits, autozero.
func presetSetupCmd(p config.Preset) []byte {
	cmd := make([]byte, 0, 8)
	cmd = append(cmd, 'F', '0'+(p.Status1&status.FuncMask)>>5)
	if p.Status2&status.Autorange != 0 {
		cmd = append(cmd, 'R', 'A')
	} else {
		cmd = append(cmd, 'R', status.RangeDigit(p.Status1))
	}
	cmd = append(cmd, 'N', '0'+status.DigitsOf(p.Status1))
	if p.Status2&status.Autozero != 0 {
		cmd = append(cmd, 'Z', '1')
	} else {
		cmd = append(cmd, 'Z', '0')
	}
	return cmd
}

func (c *Controller) presetSave() error {
	st, err := c.inst.Status()
	if err != nil {
		return err
	}
	cc := c.store.Config().Continuity
	p := config.Preset{
		Status1:       st[0],
		Status2:       st[1],
		ContRange:     cc.Range,
		ContThreshold: cc.Threshold,
	}
	if err := c.store.SetPreset(menuPresetSlot, p); err != nil {
		c.logf("preset: save failed: %v", err)
		return c.inst.DisplayString("SAVE FAILED", session.HideAnnunciators)
	}
	return c.inst.DisplayString("SAVED", session.HideAnnunciators)
}

func (c *Controller) presetLoad() error {
	p, ok := c.store.Preset(menuPresetSlot)
	if !ok || !presetValid(p) {
		return c.inst.DisplayString("BAD PRESET", session.HideAnnunciators)
	}
	if p.ContRange != 0 {
		c.store.SetOption(config.OptContRange, int(p.ContRange), false)
	}
	if p.ContThreshold != 0 {
		c.store.SetOption(config.OptContThreshold, int(p.ContThreshold), false)
	}
	return c.inst.Command(presetSetupCmd(p), 0)
}
