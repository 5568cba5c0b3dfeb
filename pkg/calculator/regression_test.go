package calculator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestLinearRegression_PerfectLine(t *testing.T) {
	cases := []struct{ a, b float64 }{{2, 3}, {-1.5, 100}, {0, 42}, {1e3, -7}}
	for _, c := range cases {
		x := []float64{0, 1, 2, 3, 4, 5, 6}
		y := make([]float64, len(x))
		for i := range x {
			y[i] = c.a*x[i] + c.b
		}
		got := LinearRegression(x, y)
		if !almostEqual(got.Slope, c.a) || !almostEqual(got.Intercept, c.b) {
			t.Errorf("y=%gx+%g: got slope=%g intercept=%g", c.a, c.b, got.Slope, got.Intercept)
		}
	}
}

func TestLinearRegression_Fallbacks(t *testing.T) {
	if got := LinearRegression(nil, nil); got != (Regression{}) {
		t.Fatalf("empty input: got %+v", got)
	}
	if got := LinearRegression([]float64{1}, []float64{9}); got.Slope != 0 || got.Intercept != 9 {
		t.Fatalf("single point: got %+v", got)
	}
	// zero variance in x
	if got := LinearRegression([]float64{2, 2, 2}, []float64{5, 6, 7}); got.Slope != 0 || got.Intercept != 5 {
		t.Fatalf("degenerate x: got %+v", got)
	}
}

func TestLinearRegression_UsesShortestLength(t *testing.T) {
	got := LinearRegression([]float64{0, 1, 2, 3}, []float64{1, 3})
	if !almostEqual(got.Slope, 2) || !almostEqual(got.Intercept, 1) {
		t.Fatalf("got %+v", got)
	}
}
