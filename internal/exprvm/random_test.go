package exprvm

import (
	"math/rand"
	"testing"

	"framexpr/internal/values"
)

func TestExponentialDistParamCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := exponentialDist(rng, []values.Number{1, 2}); got != values.ErrParams {
		t.Errorf("exponentialDist with 2 params = %v, want ErrParams", got)
	}
	if got := exponentialDist(rng, []values.Number{1}); values.IsSentinel(got) {
		t.Errorf("exponentialDist(1) = %v, want a normal draw", got)
	}
}

func TestPoissonZeroLambdaIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := poissonDist(rng, []values.Number{0}); got != 0 {
		t.Errorf("poissonDist(0) = %v, want 0", got)
	}
}

func TestPoissonSwitchesAlgorithmAtThirty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		if got := poissonDist(rng, []values.Number{10}); float64(got) < 0 {
			t.Fatalf("poissonDist(10) produced a negative draw: %v", got)
		}
	}
	for i := 0; i < 50; i++ {
		if got := poissonDist(rng, []values.Number{50}); float64(got) < 0 {
			t.Fatalf("poissonDist(50) produced a negative draw: %v", got)
		}
	}
}

func TestBinomialBoundaryProbabilities(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := binomialDist(rng, []values.Number{10, 0}); got != 0 {
		t.Errorf("binomialDist(10,0) = %v, want 0", got)
	}
	if got := binomialDist(rng, []values.Number{10, 1}); got != 10 {
		t.Errorf("binomialDist(10,1) = %v, want 10", got)
	}
}

func TestTriangularRequiresOrderedBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := triangularDist(rng, []values.Number{5, 1}); got != values.ErrParams {
		t.Errorf("triangularDist with b<a = %v, want ErrParams", got)
	}
	if got := triangularDist(rng, []values.Number{1, 5}); values.IsSentinel(got) {
		t.Errorf("triangularDist(1,5) = %v, want a normal draw", got)
	}
}

func TestNormalDistDeterministicWithSeed(t *testing.T) {
	rng1 := rand.New(rand.NewSource(99))
	rng2 := rand.New(rand.NewSource(99))
	a := normalDist(rng1, []values.Number{0, 1})
	b := normalDist(rng2, []values.Number{0, 1})
	if a != b {
		t.Errorf("same-seed normalDist draws diverged: %v vs %v", a, b)
	}
}
