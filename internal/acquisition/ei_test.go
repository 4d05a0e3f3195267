package acquisition

import (
	"math"
	"testing"
)

type stubModel struct {
	mean, variance []float64
}

func (s stubModel) Predict([][]float64) (mean, variance []float64) { return s.mean, s.variance }

func TestScoreIsZeroForZeroVariance(t *testing.T) {
	ei := NewEI()
	ei.Update(stubModel{mean: []float64{0}, variance: []float64{0}}, 1, 1)
	scores := ei.Score([][]float64{{0}})
	if scores[0] != 0 {
		t.Fatalf("expected 0 EI for zero variance, got %v", scores[0])
	}
}

func TestScorePrefersLowerMeanAtEqualVariance(t *testing.T) {
	ei := NewEI()
	ei.Update(stubModel{mean: []float64{0, 5}, variance: []float64{1, 1}}, 2, 10)
	scores := ei.Score([][]float64{{0}, {0}})
	if scores[0] <= scores[1] {
		t.Fatalf("expected the lower-mean candidate to score higher EI: %v vs %v", scores[0], scores[1])
	}
}

func TestScoreNeverNegative(t *testing.T) {
	ei := NewEI()
	ei.Update(stubModel{mean: []float64{100}, variance: []float64{1}}, -100, 5)
	scores := ei.Score([][]float64{{0}})
	if scores[0] < 0 {
		t.Fatalf("EI must be clipped at 0, got %v", scores[0])
	}
}

func TestScoreMatchesClosedFormAtZ0(t *testing.T) {
	// When best == mean, z=0: EI = sigma * phi(0) = sigma / sqrt(2*pi).
	ei := NewEI()
	sigma := 2.0
	ei.Update(stubModel{mean: []float64{3}, variance: []float64{sigma * sigma}}, 3, 1)
	scores := ei.Score([][]float64{{0}})
	want := sigma / math.Sqrt(2*math.Pi)
	if math.Abs(scores[0]-want) > 1e-9 {
		t.Fatalf("EI at z=0 = %v, want %v", scores[0], want)
	}
}
