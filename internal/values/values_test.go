package values

import "testing"

func TestSeverityMonotonicity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Number
		expected Number
	}{
		{"div_zero worse than generic", ErrGeneric, ErrDivZero, ErrDivZero},
		{"unknown worst of all", ErrParams, ErrUnknownError, ErrUnknownError},
		{"cyclic worse than generic", ErrGeneric, ErrCyclic, ErrCyclic},
		{"symmetric", ErrBadCalc, ErrBadCalc, ErrBadCalc},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Severest(tc.a, tc.b); got != tc.expected {
				t.Errorf("Severest(%v,%v) = %v, want %v", tc.a, tc.b, got, tc.expected)
			}
			if got := Severest(tc.b, tc.a); got != tc.expected {
				t.Errorf("Severest(%v,%v) = %v, want %v (not commutative)", tc.b, tc.a, got, tc.expected)
			}
		})
	}
}

func TestCombineErrorTrumpsUndefined(t *testing.T) {
	add := func(x, y float64) float64 { return x + y }
	if got := Combine(ErrDivZero, Undefined, add); got != ErrDivZero {
		t.Errorf("Combine(error, undefined) = %v, want %v", got, ErrDivZero)
	}
	if got := Combine(Undefined, ErrDivZero, add); got != ErrDivZero {
		t.Errorf("Combine(undefined, error) = %v, want %v", got, ErrDivZero)
	}
}

func TestCombineUndefinedPropagates(t *testing.T) {
	add := func(x, y float64) float64 { return x + y }
	if got := Combine(Undefined, 5, add); got != Undefined {
		t.Errorf("Combine(undefined, 5) = %v, want Undefined", got)
	}
	if got := Combine(5, Undefined, add); got != Undefined {
		t.Errorf("Combine(5, undefined) = %v, want Undefined", got)
	}
}

func TestCombineNormalArithmetic(t *testing.T) {
	add := func(x, y float64) float64 { return x + y }
	if got := Combine(2, 3, add); got != 5 {
		t.Errorf("Combine(2,3,add) = %v, want 5", got)
	}
}

func TestCombineClampsToInfinity(t *testing.T) {
	mul := func(x, y float64) float64 { return x * y }
	got := Combine(1e20, 1e20, mul)
	if got != PlusInfinity {
		t.Errorf("Combine(1e20,1e20,mul) = %v, want PlusInfinity", got)
	}
}

func TestIsZeroNearZeroGuard(t *testing.T) {
	if !IsZero(1e-11) {
		t.Error("1e-11 should be within the near-zero guard")
	}
	if IsZero(1e-9) {
		t.Error("1e-9 should not be within the near-zero guard")
	}
}

func TestFormatSentinels(t *testing.T) {
	tests := []struct {
		v    Number
		want string
	}{
		{ErrDivZero, "#DIV/0!"},
		{ErrBadRef, "#REF?"},
		{PlusInfinity, "∞"},
		{Undefined, "??"},
	}
	for _, tc := range tests {
		if got := Format(tc.v); got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestFormatSignedZero(t *testing.T) {
	if got := Format(Number(0)); got != "+0" {
		t.Errorf("Format(+0) = %q, want +0", got)
	}
	neg := Number(-0.0)
	if got := Format(neg); got != "+0" && got != "-0" {
		t.Errorf("Format(-0) = %q, want +0 or -0", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(Number(1e30)); got != PlusInfinity {
		t.Errorf("Clamp(1e30) = %v, want PlusInfinity", got)
	}
	if got := Clamp(Number(-1e30)); got != MinusInfinity {
		t.Errorf("Clamp(-1e30) = %v, want MinusInfinity", got)
	}
	if got := Clamp(ErrDivZero); got != ErrDivZero {
		t.Errorf("Clamp should pass sentinels through unchanged, got %v", got)
	}
}
