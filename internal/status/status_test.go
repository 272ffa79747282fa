package status

import "testing"

func TestFuncOf(t *testing.T) {
	cases := []struct {
		st1  byte
		want Function
	}{
		{FuncDCV | Digits5, FunctionDCV},
		{FuncACV | 3<<2, FunctionACV},
		{Func2W | Digits3, FunctionOhm2W},
		{Func4W, FunctionOhm4W},
		{FuncDCA, FunctionDCA},
		{FuncACA, FunctionACA},
		{FuncXOhm | 1<<2, FunctionXOhm},
		{0x00, FunctionUnknown},
	}
	for _, tc := range cases {
		if got := FuncOf(tc.st1); got != tc.want {
			t.Errorf("FuncOf(%#x)=%v want %v", tc.st1, got, tc.want)
		}
	}
}

func TestDigitsOf(t *testing.T) {
	if got := DigitsOf(FuncDCV | Digits5); got != 5 {
		t.Errorf("Digits5 decoded as %d", got)
	}
	if got := DigitsOf(FuncDCV | Digits4); got != 4 {
		t.Errorf("Digits4 decoded as %d", got)
	}
	if got := DigitsOf(Func2W | Digits3); got != 3 {
		t.Errorf("Digits3 decoded as %d", got)
	}
	if got := DigitsOf(0); got != 0 {
		t.Errorf("zero word decoded as %d digits", got)
	}
}

func TestRangeOf(t *testing.T) {
	for r := uint8(1); r <= 7; r++ {
		st1 := byte(r<<2) | FuncDCV
		if got := RangeOf(st1); got != r {
			t.Errorf("RangeOf(%#x)=%d want %d", st1, got, r)
		}
		if got := RangeDigit(st1); got != '0'+r {
			t.Errorf("RangeDigit(%#x)=%c want %c", st1, got, '0'+r)
		}
	}
}
