package weightlearn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/yezoli/mfes-go/internal/coreerr"
	"github.com/yezoli/mfes-go/internal/ensemble"
	"github.com/yezoli/mfes-go/internal/regressor"
)

func TestPreservingOrderCountAllPairs(t *testing.T) {
	pred := []float64{1, 2, 3}
	truth := []float64{10, 20, 30}
	num, total := PreservingOrderCount(pred, truth)
	if total != 3 {
		t.Fatalf("expected 3 pairs for n=3, got %d", total)
	}
	if num != 3 {
		t.Fatalf("expected all pairs order-preserving for identically-ranked inputs, got %d", num)
	}
}

// TestPreservingOrderCountConstantPredictorAgainstDistinctTruthIsZero is
// spec.md's Testable Property S4: a constant (zero-variance) predictor
// against strictly distinct targets must score 0, not 1 — a tie on the
// predicted side only preserves order against a tie on the true side,
// never against a strict inequality.
func TestPreservingOrderCountConstantPredictorAgainstDistinctTruthIsZero(t *testing.T) {
	pred := []float64{0, 0, 0, 0, 0}
	truth := []float64{1, 2, 3, 4, 5}
	num, total := PreservingOrderCount(pred, truth)
	if total != 10 {
		t.Fatalf("expected 10 pairs for n=5, got %d", total)
	}
	if num != 0 {
		t.Fatalf("expected a constant predictor to preserve no pairs against strictly distinct truth, got %d", num)
	}
}

func TestPreservingOrderCountTiesMatchTies(t *testing.T) {
	pred := []float64{1, 1}
	truth := []float64{5, 5}
	num, total := PreservingOrderCount(pred, truth)
	if total != 1 {
		t.Fatalf("expected 1 pair for n=2, got %d", total)
	}
	if num != 1 {
		t.Fatalf("expected a tied pair on both sides to preserve order, got %d", num)
	}
}

func TestPreservingOrderCountReversed(t *testing.T) {
	pred := []float64{3, 2, 1}
	truth := []float64{10, 20, 30}
	num, total := PreservingOrderCount(pred, truth)
	if num != 0 {
		t.Fatalf("expected 0 preserving pairs for fully reversed ranks, got %d of %d", num, total)
	}
}

func TestUpdateRejectsInsufficientData(t *testing.T) {
	l := New(DefaultConfig(), rand.New(rand.NewPCG(1, 2)), func() regressor.Regressor {
		return regressor.New(regressor.DefaultConfig())
	})
	prev := []float64{0.5, 0.5}
	_, err := l.Update([]float64{1, 3}, nil, [][]float64{{0}, {1}}, []float64{1, 2}, prev)
	if err != coreerr.ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData for len(yTop)<3, got %v", err)
	}
}

func TestRankLossPNormWeightsAreProportionalToOrderPreservation(t *testing.T) {
	ladder := []float64{1, 3, 9}
	// Twelve top-fidelity points; construct X so that row value tracks the
	// index, making the CV regressor's fit trivially rank-preserving.
	var X [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, float64(i))
	}

	// A low-fidelity model with perfect rank agreement, and one with
	// systematically scrambled predictions.
	perfect := constRankModel{values: y}
	scrambled := constRankModel{values: reversed(y)}

	models := []regressor.Regressor{perfect, scrambled}
	idx := 0
	ens, err := ensemble.New(ladder, []float64{0.34, 0.33, 0.33}, ensemble.IDP, func() regressor.Regressor {
		if idx < len(models) {
			m := models[idx]
			idx++
			return m
		}
		return regressor.New(regressor.DefaultConfig())
	})
	if err != nil {
		t.Fatal(err)
	}

	l := New(Config{Method: RankLossPNorm, PowerNum: 3}, rand.New(rand.NewPCG(3, 4)), func() regressor.Regressor {
		return regressor.New(regressor.DefaultConfig())
	})

	result, err := l.Update(ladder, ens, X, y, []float64{0.34, 0.33, 0.33})
	if err != nil && err != coreerr.ErrDegenerateWeights {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PreservingOrderP[0] <= result.PreservingOrderP[1] {
		t.Fatalf("expected the perfectly rank-preserving low-fidelity model to score higher than the scrambled one: %v vs %v",
			result.PreservingOrderP[0], result.PreservingOrderP[1])
	}
	if result.Weights[0] <= result.Weights[1] {
		t.Fatalf("expected the higher-order-preservation budget to receive more weight: %v vs %v",
			result.Weights[0], result.Weights[1])
	}
	sum := 0.0
	for _, w := range result.Weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("expected weights to sum to 1, got %v", sum)
	}
}

func TestRankLossPNormDegenerateFallsBackToPreviousWeights(t *testing.T) {
	// Fewer than 2*foldNum top-fidelity points means the top budget's
	// score is left at 0 without running cross-validation (spec.md §9
	// note 3). Pairing that with a low-fidelity model whose predictions
	// are the fully reversed rank of strictly distinct targets makes
	// every budget's order-preservation score exactly 0, so the power
	// sum is 0 and the update is degenerate.
	ladder := []float64{1, 3}
	n := 6
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{float64(i)}
		y[i] = float64(i)
	}
	reversedModel := constRankModel{values: reversed(y)}
	models := []regressor.Regressor{reversedModel}
	idx := 0
	ens, err := ensemble.New(ladder, []float64{0.5, 0.5}, ensemble.IDP, func() regressor.Regressor {
		if idx < len(models) {
			m := models[idx]
			idx++
			return m
		}
		return flatZero{}
	})
	if err != nil {
		t.Fatal(err)
	}

	l := New(Config{Method: RankLossPNorm, PowerNum: 3}, rand.New(rand.NewPCG(1, 1)), func() regressor.Regressor {
		return flatZero{}
	})
	prev := []float64{0.5, 0.5}
	result, err := l.Update(ladder, ens, X, y, prev)
	if err != coreerr.ErrDegenerateWeights {
		t.Fatalf("expected ErrDegenerateWeights, got %v (preservingOrderP=%v)", err, result.PreservingOrderP)
	}
	if result.Weights[0] != prev[0] || result.Weights[1] != prev[1] {
		t.Fatalf("expected previous weights to be retained on degeneracy, got %v", result.Weights)
	}
}

func TestKFoldIndicesCoverAllRowsExactlyOnce(t *testing.T) {
	folds := kFoldIndices(13, 5)
	seen := make(map[int]bool)
	count := 0
	for _, f := range folds {
		for _, idx := range f {
			if seen[idx] {
				t.Fatalf("index %d appears in more than one fold", idx)
			}
			seen[idx] = true
			count++
		}
	}
	if count != 13 {
		t.Fatalf("expected 13 total indices across folds, got %d", count)
	}
}

func TestRankLossProbWeightsSumToOne(t *testing.T) {
	ladder := []float64{1, 3, 9}
	var X [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, float64(i))
	}
	ens, err := ensemble.New(ladder, []float64{0.34, 0.33, 0.33}, ensemble.IDP, func() regressor.Regressor {
		return constRankModel{values: y}
	})
	if err != nil {
		t.Fatal(err)
	}
	l := New(Config{Method: RankLossProb, PowerNum: 3}, rand.New(rand.NewPCG(9, 9)), func() regressor.Regressor {
		return regressor.New(regressor.DefaultConfig())
	})
	result, err := l.Update(ladder, ens, X, y, []float64{0.34, 0.33, 0.33})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := 0
	for _, c := range result.Tally {
		sum += c
	}
	if sum != mcSamples {
		t.Fatalf("expected tally to sum to mcSamples=%d, got %d", mcSamples, sum)
	}
}

// constRankModel always predicts the supplied values in row order
// (assuming Predict is called with the same X each time, as it is for
// the low-fidelity branch here), with zero variance.
type constRankModel struct{ values []float64 }

func (constRankModel) Fit([][]float64, []float64) error { return nil }
func (m constRankModel) Predict(X [][]float64) (mean, variance []float64) {
	mean = append([]float64(nil), m.values[:len(X)]...)
	variance = make([]float64, len(X))
	return mean, variance
}

// flatZero predicts a constant 0 with 0 variance for every row,
// regardless of training data — used to force every budget's rank
// agreement to tie at p=0, the degenerate-weights scenario.
type flatZero struct{}

func (flatZero) Fit([][]float64, []float64) error { return nil }
func (flatZero) Predict(X [][]float64) (mean, variance []float64) {
	return make([]float64, len(X)), make([]float64, len(X))
}

func reversed(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}
