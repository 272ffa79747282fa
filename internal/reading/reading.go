// Package reading converts between the HP 3478A's ASCII measurement
// strings and a normalized integer model, and renders values back in
// the instrument's 12/13-character display grammar. Several extension
// modes write straight to the instrument display in place of its
// native reading, so digit and decimal point placement here must be
// bit-exact with the instrument's own conventions.
package reading

import (
	"errors"

	"github.com/KIrill-ka/hp3478ext/internal/status"
)

// OverloadExp is the exponent the instrument reports for an
// overrange/overload reading.
const OverloadExp = 9

// Reading is a decoded measurement: a signed mantissa, the 0-based
// decimal point position within the digit string, and a power-of-ten
// exponent (multiples of 3 as reported by the instrument; OverloadExp
// marks overload). Readings are value types, copied freely.
type Reading struct {
	Value int32
	Dot   uint8
	Exp   int8
}

// Overload reports whether the instrument flagged this reading as
// overrange.
func (r Reading) Overload() bool {
	return r.Exp == OverloadExp
}

var (
	ErrEmpty       = errors.New("reading: empty input")
	ErrBadDigit    = errors.New("reading: unexpected character in mantissa")
	ErrBadExponent = errors.New("reading: truncated exponent field")
)

// Decode parses an instrument reading of the form
//
//	[+-]D.DDDDDE[+-]D
//
// possibly followed by CR/LF, into a Reading. The exponent magnitude
// is the single literal decimal digit; callers combine Dot and Exp to
// get the effective power of ten.
func Decode(b []byte) (Reading, error) {
	if len(b) == 0 {
		return Reading{}, ErrEmpty
	}

	neg := b[0] == '-'
	var v int32
	var dot uint8

	i := 1
	for ; i < len(b); i++ {
		c := b[i]
		if c == 'E' {
			break
		}
		if c == '.' {
			dot = uint8(i - 1)
			continue
		}
		if c < '0' || c > '9' {
			return Reading{}, ErrBadDigit
		}
		v = v*10 + int32(c-'0')
	}
	i++
	if len(b)-i < 2 {
		return Reading{}, ErrBadExponent
	}

	var r Reading
	r.Dot = dot
	if neg {
		r.Value = -v
	} else {
		r.Value = v
	}
	esign := b[i] == '-'
	i++
	if b[i] < '0' || b[i] > '9' {
		return Reading{}, ErrBadExponent
	}
	if esign {
		r.Exp = int8('0' - b[i])
	} else {
		r.Exp = int8(b[i] - '0')
	}
	return r, nil
}

// ovldDot picks which display cell the decimal point lands in for the
// instrument's own overload rendering, per range/function.
func ovldDot(st1 byte) int {
	switch st1 & (status.RangeMask | status.FuncMask) {
	case status.Range2 | status.FuncDCA,
		status.Range2 | status.FuncACA,
		status.Range3 | status.FuncDCV,
		status.Range3 | status.Func2W,
		status.Range3 | status.Func4W,
		status.Range6 | status.Func2W,
		status.Range6 | status.Func4W:
		return 1
	case status.Range1 | status.FuncDCV,
		status.Range1 | status.Func2W,
		status.Range1 | status.Func4W,
		status.Range3 | status.FuncACV,
		status.Range4 | status.FuncDCV,
		status.Range4 | status.Func2W,
		status.Range4 | status.Func4W,
		status.Range7 | status.Func2W,
		status.Range7 | status.Func4W:
		return 2
	default:
		return 3
	}
}

// ovldMult picks the K/M multiplier letter shown next to OVLD,
// per range/function.
func ovldMult(st1 byte) byte {
	switch st1 & (status.RangeMask | status.FuncMask) {
	case status.Range1 | status.FuncDCV,
		status.Range1 | status.FuncACV,
		status.Range1 | status.FuncDCA,
		status.Range1 | status.FuncACA,
		status.Range2 | status.FuncDCV,
		status.Range6 | status.Func2W,
		status.Range6 | status.Func4W,
		status.Range7 | status.Func2W,
		status.Range7 | status.Func4W:
		return 'M'
	case status.Range3 | status.Func2W,
		status.Range3 | status.Func4W,
		status.Range4 | status.Func2W,
		status.Range4 | status.Func4W,
		status.Range5 | status.Func2W,
		status.Range5 | status.Func4W:
		return 'K'
	default:
		return ' '
	}
}

// Format renders a reading as the 13-character display string: sign,
// up to 7 significant digit cells with the decimal point inserted at
// 7-Dot, leading digits blanked beyond the configured digit count, an
// SI multiplier letter, and a unit suffix chosen from the function
// bits of st1. modeInd is the mode indicator placed in the final cell
// ('*', '-', '+', '=', '?'); the lowercase indicators 'd' and 'c'
// request fixed diode/temperature units instead and render blank.
// A reading carrying the instrument's overload encoding renders the
// literal "OVLD" pattern with the range-dependent multiplier.
func Format(r Reading, st1 byte, modeInd byte) [13]byte {
	var disp [13]byte
	var expChar byte

	f := st1 & status.FuncMask
	v := r.Value

	if r.Exp == OverloadExp && v >= 999900 {
		dot := ovldDot(st1)
		disp[0] = ' '
		disp[1] = ' '
		i := 2
		if dot == 1 {
			disp[i] = '.'
			i++
		}
		disp[i] = 'O'
		i++
		if dot == 2 {
			disp[i] = '.'
			i++
		}
		disp[i] = 'V'
		i++
		if dot == 3 {
			disp[i] = '.'
			i++
		}
		disp[i] = 'L'
		i++
		disp[i] = 'D'
		i++
		for i != 8 {
			disp[i] = ' '
			i++
		}
		expChar = ovldMult(st1)
		return units(disp, expChar, f, modeInd)
	}

	if v >= 0 {
		if f == status.FuncDCA || f == status.FuncDCV {
			disp[0] = '+'
		} else {
			disp[0] = ' '
		}
	} else {
		disp[0] = '-'
		v = -v
	}

	nd := st1 & status.DigitsMask
	for i := 7; i > 0; i-- {
		if (nd != status.Digits5 && i == 7) || (nd == status.Digits3 && i == 6) {
			disp[i] = ' '
		} else {
			disp[i] = byte(v%10) + '0'
		}
		v /= 10
		if i == int(r.Dot)+2 {
			i--
			disp[i] = '.'
		}
	}

	switch r.Exp {
	case -3:
		expChar = 'M'
	case 0:
		expChar = ' '
	case 3:
		expChar = 'K'
	case 6:
		expChar = 'M'
	case 9:
		expChar = 'G'
	default:
		expChar = '?'
	}
	return units(disp, expChar, f, modeInd)
}

func units(disp [13]byte, expChar byte, f byte, modeInd byte) [13]byte {
	i := 8
	if modeInd == 0 {
		disp[i] = ' '
		i++
	}
	disp[i] = expChar
	i++

	var m string
	switch {
	case modeInd == 'd':
		m = "V  "
	case modeInd == 'c':
		m = "C  "
	default:
		switch f {
		case status.FuncDCV:
			m = "VDC"
		case status.FuncACV:
			m = "VAC"
		case status.Func2W, status.Func4W:
			m = "OHM"
		case status.FuncDCA:
			m = "ADC"
		case status.FuncACA:
			m = "ACA"
		default:
			m = "???"
		}
	}
	copy(disp[i:i+3], m)
	if modeInd != 0 {
		if modeInd < 'a' {
			disp[12] = modeInd
		} else {
			disp[12] = ' '
		}
	}
	return disp
}

// Compare orders two readings by magnitude-with-sign, aligning them to
// a common effective power of ten before integer comparison. No
// floating point is involved, so 32-bit mantissas compare without
// precision loss. Returns -1, 0 or 1.
func Compare(a, b Reading) int {
	v1 := int64(a.Value)
	v2 := int64(b.Value)
	e1 := int(a.Exp) + int(a.Dot)
	e2 := int(b.Exp) + int(b.Dot)

	if v1 < 0 && v2 >= 0 {
		return -1
	}
	if v1 >= 0 && v2 < 0 {
		return 1
	}
	if e1 >= e2 {
		for {
			if v1 > v2 {
				return 1
			}
			if e1 == e2 {
				if v1 == v2 {
					return 0
				}
				return -1
			}
			v1 *= 10
			e1--
		}
	}
	for {
		if v2 > v1 {
			return -1
		}
		if e1 == e2 {
			if v1 == v2 {
				return 0
			}
			return 1
		}
		v2 *= 10
		e2--
	}
}
