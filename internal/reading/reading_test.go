package reading

import (
	"testing"

	"github.com/KIrill-ka/hp3478ext/internal/status"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		in   string
		want Reading
	}{
		{"+1.23456E+0\r\n", Reading{Value: 123456, Dot: 1, Exp: 0}},
		{"-0.27216E-3\r\n", Reading{Value: -27216, Dot: 1, Exp: -3}},
		{"+2.99999E+3\r\n", Reading{Value: 299999, Dot: 1, Exp: 3}},
		{"+9.99999E+9\r\n", Reading{Value: 999999, Dot: 1, Exp: 9}},
		{"+0.00000E+0\r\n", Reading{Value: 0, Dot: 1, Exp: 0}},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.in))
		if err != nil {
			t.Errorf("Decode(%q) err=%v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Decode(%q)=%+v want %+v", tc.in, got, tc.want)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	bad := []string{
		"",
		"+1.23456",      // no exponent field
		"+1.23456E",     // truncated after marker
		"+1.23456E+",    // truncated after sign
		"+1.23456E+X\r", // non-digit exponent
		"+1.2X456E+0\r", // garbage mantissa
	}
	for _, s := range bad {
		if _, err := Decode([]byte(s)); err == nil {
			t.Errorf("Decode(%q): expected error", s)
		}
	}
}

// Formatting a decoded reading with the status byte that produced it
// reproduces the original digit pattern and decimal point position,
// up to digit-count truncation.
func TestFormatRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		st1  byte
		want string // full 13-char display
	}{
		{"+1.23456E+0\r\n", status.FuncDCV | status.Range3 | status.Digits5, "+1.23456  VDC"},
		{"-0.27216E-3\r\n", status.FuncDCV | status.Range1 | status.Digits5, "-0.27216 MVDC"},
		{"+2.99999E+3\r\n", status.Func2W | status.Range3 | status.Digits5, " 2.99999 KOHM"},
		{"+0.29999E+0\r\n", status.FuncACV | status.Range1 | status.Digits5, " 0.29999  VAC"},
		{"+1.23450E+0\r\n", status.FuncDCV | status.Range3 | status.Digits4, "+1.2345   VDC"},
		{"+1.23400E+0\r\n", status.FuncDCV | status.Range3 | status.Digits3, "+1.234    VDC"},
		{"+0.12345E+0\r\n", status.FuncDCA | status.Range2 | status.Digits5, "+0.12345  ADC"},
		{"+0.12345E+0\r\n", status.FuncACA | status.Range2 | status.Digits5, " 0.12345  ACA"},
	}
	for _, tc := range cases {
		r, err := Decode([]byte(tc.in))
		if err != nil {
			t.Fatalf("Decode(%q) err=%v", tc.in, err)
		}
		got := Format(r, tc.st1, 0)
		if string(got[:]) != tc.want {
			t.Errorf("Format(%q)=%q want %q", tc.in, got[:], tc.want)
		}
	}
}

func TestFormatModeIndicator(t *testing.T) {
	r := Reading{Value: 123456, Dot: 1, Exp: 0}
	st1 := byte(status.FuncDCV | status.Range3 | status.Digits5)

	got := Format(r, st1, '*')
	if string(got[:]) != "+1.23456 VDC*" {
		t.Errorf("rel indicator: %q", got[:])
	}

	// Lowercase indicators request fixed units and render blank.
	got = Format(r, st1, 'd')
	if string(got[:]) != "+1.23456 V   " {
		t.Errorf("diode indicator: %q", got[:])
	}
	got = Format(Reading{Value: 234560, Dot: 3, Exp: 0}, st1, 'c')
	if string(got[:]) != "+234.560 C   " {
		t.Errorf("temperature indicator: %q", got[:])
	}
}

func TestFormatOverload(t *testing.T) {
	ovld := Reading{Value: 999999, Dot: 1, Exp: OverloadExp}

	cases := []struct {
		st1  byte
		want string
	}{
		{status.Func2W | status.Range3 | status.Digits5, "  .OVLD  KOHM"},
		{status.Func2W | status.Range7 | status.Digits5, "  O.VLD  MOHM"},
		{status.FuncDCV | status.Range5 | status.Digits5, "  OV.LD   VDC"},
	}
	for _, tc := range cases {
		got := Format(ovld, tc.st1, 0)
		if string(got[:]) != tc.want {
			t.Errorf("Format(ovld, %#x)=%q want %q", tc.st1, got[:], tc.want)
		}
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	vals := []Reading{
		{Value: 123456, Dot: 1, Exp: 0},
		{Value: -123456, Dot: 1, Exp: 0},
		{Value: 123456, Dot: 1, Exp: 3},
		{Value: 12345, Dot: 1, Exp: 0},
		{Value: 0, Dot: 1, Exp: 0},
		{Value: 999999, Dot: 3, Exp: -3},
		{Value: -5, Dot: 0, Exp: 6},
	}
	for _, a := range vals {
		for _, b := range vals {
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("Compare(%+v,%+v)=%d, Compare reversed=%d",
					a, b, Compare(a, b), Compare(b, a))
			}
		}
	}
}

func TestCompareAlignsExponents(t *testing.T) {
	cases := []struct {
		a, b Reading
		want int
	}{
		// same aligned magnitude, different representation
		{Reading{12345, 2, 0}, Reading{123450, 1, 0}, 0},
		// 1.0 V vs 999.99 mV
		{Reading{100000, 1, 0}, Reading{99999, 3, -3}, 1},
		// 2.9 K ohm vs 30 K ohm
		{Reading{290000, 1, 3}, Reading{300000, 2, 3}, -1},
		// negative always below non-negative
		{Reading{-1, 1, 9}, Reading{0, 1, 0}, -1},
	}
	for _, tc := range cases {
		if got := Compare(tc.a, tc.b); got != tc.want {
			t.Errorf("Compare(%+v,%+v)=%d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareTransitive(t *testing.T) {
	a := Reading{Value: 99999, Dot: 3, Exp: -3} // 0.99999
	b := Reading{Value: 100000, Dot: 1, Exp: 0} // 1.00000
	c := Reading{Value: 110000, Dot: 2, Exp: 0} // 11.0000
	if !(Compare(a, b) < 0 && Compare(b, c) < 0 && Compare(a, c) < 0) {
		t.Errorf("transitivity violated: ab=%d bc=%d ac=%d",
			Compare(a, b), Compare(b, c), Compare(a, c))
	}
}
