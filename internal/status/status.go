// Package status decodes the HP 3478A status words.
// The bit layout is fixed by the instrument firmware and MUST NOT be
// configurable.
package status

// ---- SERIAL POLL BYTE / SRQ MASK / STATUS BYTE 3 ----

const (
	SPDataReady  = 1 << 0 // reading available
	SPSyntaxErr  = 1 << 2
	SPInternErr  = 1 << 3
	SPFrontPanel = 1 << 4 // front-panel SRQ button
	SPInvalidCal = 1 << 5
	SPSRQMsg     = 1 << 6
	SPPowerOn    = 1 << 7 // power-on SRQ
)

// ---- STATUS BYTE 1: function / range / display digits ----

const (
	DigitsMask = 3 << 0
	Digits5    = 1 << 0
	Digits4    = 2 << 0
	Digits3    = 3 << 0

	RangeMask = 7 << 2
	Range1    = 1 << 2 // 30mV DC, 300mV AC, 30 ohm, 300mA, extended ohms
	Range2    = 2 << 2 // 300mV DC, 3V AC, 300 ohm, 3A
	Range3    = 3 << 2 // 3V DC, 30V AC, 3K ohm
	Range4    = 4 << 2 // 30V DC, 300V AC, 30K ohm
	Range5    = 5 << 2 // 300V DC, 300K ohm
	Range6    = 6 << 2 // 3M ohm
	Range7    = 7 << 2 // 30M ohm

	FuncMask = 7 << 5
	FuncDCV  = 1 << 5
	FuncACV  = 2 << 5
	Func2W   = 3 << 5 // 2-wire ohms
	Func4W   = 4 << 5 // 4-wire ohms
	FuncDCA  = 5 << 5
	FuncACA  = 6 << 5
	FuncXOhm = 7 << 5 // extended ohms
)

// ---- STATUS BYTE 2 ----

const (
	IntTrigger = 1 << 0
	Autorange  = 1 << 1
	Autozero   = 1 << 2
)

// Function is the decoded measurement function.
type Function uint8

const (
	FunctionUnknown Function = iota
	FunctionDCV
	FunctionACV
	FunctionOhm2W
	FunctionOhm4W
	FunctionDCA
	FunctionACA
	FunctionXOhm
)

func (f Function) String() string {
	switch f {
	case FunctionDCV:
		return "DCV"
	case FunctionACV:
		return "ACV"
	case FunctionOhm2W:
		return "2WOHM"
	case FunctionOhm4W:
		return "4WOHM"
	case FunctionDCA:
		return "DCA"
	case FunctionACA:
		return "ACA"
	case FunctionXOhm:
		return "XOHM"
	}
	return "?"
}

// FuncOf extracts the measurement function from status byte 1.
func FuncOf(st1 byte) Function {
	switch st1 & FuncMask {
	case FuncDCV:
		return FunctionDCV
	case FuncACV:
		return FunctionACV
	case Func2W:
		return FunctionOhm2W
	case Func4W:
		return FunctionOhm4W
	case FuncDCA:
		return FunctionDCA
	case FuncACA:
		return FunctionACA
	case FuncXOhm:
		return FunctionXOhm
	}
	return FunctionUnknown
}

// RangeOf extracts the range index (1..7) from status byte 1.
// The meaning depends on the function: range 1 is 30mV DC, 300mV AC,
// 30 ohm, 300mA or extended ohms; each step is one decade up.
func RangeOf(st1 byte) uint8 {
	return (st1 & RangeMask) >> 2
}

// DigitsOf extracts the configured display digit count (3, 4 or 5).
func DigitsOf(st1 byte) uint8 {
	switch st1 & DigitsMask {
	case Digits5:
		return 5
	case Digits4:
		return 4
	case Digits3:
		return 3
	}
	return 0
}

// RangeDigit is the argument for the instrument's R command selecting
// the same range st1 reports.
func RangeDigit(st1 byte) byte {
	return '0' + RangeOf(st1)
}
