package exprvm

import (
	"testing"

	"framexpr/internal/values"
)

func TestDivOpGuardsNearZero(t *testing.T) {
	if got := divOp(1, values.Number(values.NearZero/2)); got != values.ErrDivZero {
		t.Errorf("divOp near-zero divisor = %v, want ErrDivZero", got)
	}
	if got := divOp(10, 2); got != 5 {
		t.Errorf("divOp(10,2) = %v, want 5", got)
	}
}

func TestReplaceUndefinedDemotesArrayIndex(t *testing.T) {
	if got := replaceUndefined(values.ErrArrayIndex, 9); got != 9 {
		t.Errorf("replaceUndefined(ArrayIndex, 9) = %v, want 9", got)
	}
	if got := replaceUndefined(values.ErrDivZero, 9); got != values.ErrDivZero {
		t.Errorf("replaceUndefined(DivZero, 9) = %v, want DivZero unchanged", got)
	}
	if got := replaceUndefined(5, 9); got != 5 {
		t.Errorf("replaceUndefined(5, 9) = %v, want 5", got)
	}
}

func TestConcatFlattensTuples(t *testing.T) {
	a := concatValues(scalarVal(1), scalarVal(2))
	if !a.isTuple() || len(a.tuple) != 2 {
		t.Fatalf("concat of two scalars should yield a 2-tuple, got %+v", a)
	}
	b := concatValues(a, scalarVal(3))
	if !b.isTuple() || len(b.tuple) != 3 {
		t.Fatalf("concat of tuple+scalar should flatten to a 3-tuple, got %+v", b)
	}
}

func TestReduceMinMax(t *testing.T) {
	vals := []values.Number{3, 7, 2}
	if got := reduceMinMax(vals, true); got != 7 {
		t.Errorf("max = %v, want 7", got)
	}
	if got := reduceMinMax(vals, false); got != 2 {
		t.Errorf("min = %v, want 2", got)
	}
}

func TestTailNumber(t *testing.T) {
	n, ok := tailNumber("Function42")
	if !ok || n != 42 {
		t.Errorf("tailNumber(Function42) = (%d, %v), want (42, true)", n, ok)
	}
	if _, ok := tailNumber("NoDigits"); ok {
		t.Error("expected no trailing digits to report !ok")
	}
}

func TestLogOpDefinition(t *testing.T) {
	// X log Y = ln Y / ln X
	got := logOp(2, 8) // 2 log 8 = ln(8)/ln(2) = 3
	if float64(got) < 2.999 || float64(got) > 3.001 {
		t.Errorf("logOp(2,8) = %v, want ~3", got)
	}
}

func TestSqrtAndLnGuardNegative(t *testing.T) {
	if got := sqrtOp(-1); got != values.ErrBadCalc {
		t.Errorf("sqrtOp(-1) = %v, want ErrBadCalc", got)
	}
	if got := lnOp(0); got != values.ErrBadCalc {
		t.Errorf("lnOp(0) = %v, want ErrBadCalc", got)
	}
}

func TestTruthyRules(t *testing.T) {
	if !truthy(scalarVal(1)) {
		t.Error("1 should be truthy")
	}
	if truthy(scalarVal(0)) {
		t.Error("0 should be falsy")
	}
	if truthy(scalarVal(values.Undefined)) {
		t.Error("UNDEFINED should be falsy")
	}
	if truthy(scalarVal(values.ErrDivZero)) {
		t.Error("an error value should be falsy")
	}
}
