// Package indicator is the LED/buzzer collaborator surface. Simple
// setters, no feedback into the core.
package indicator

// LEDMode selects the activity LED blink pattern.
type LEDMode uint8

const (
	LEDOff LEDMode = iota
	LEDSlow
	LEDFast
)

// Panel drives the operator-facing indicators. SetBuzzer takes the PWM
// period and duty; period 0 silences the buzzer.
type Panel interface {
	SetLED(m LEDMode)
	SetBuzzer(period uint16, duty uint8)
}

// Nop is a Panel for headless setups and tests.
type Nop struct{}

func (Nop) SetLED(LEDMode)          {}
func (Nop) SetBuzzer(uint16, uint8) {}
