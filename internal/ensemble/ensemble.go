// Package ensemble implements the Weighted Surrogate Ensemble (spec.md
// §4.3, C3): one Base Regressor per fidelity level plus a weight vector
// and a fusion rule producing a single predictive distribution.
package ensemble

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yezoli/mfes-go/internal/regressor"
)

// Fusion selects how per-fidelity predictions are combined.
type Fusion int

const (
	// IDP is independent-prediction fusion: μ*=Σw_r μ_r, σ²*=Σw_r² σ²_r.
	IDP Fusion = iota
	// GPOE is generalized product of experts: 1/σ²*=Σw_r/σ²_r.
	GPOE
)

// epsilon guards GPOE divisions against zero-variance models.
const epsilon = 1e-10

// NewRegressor constructs a fresh Base Regressor for one rung's model.
// Supplied at construction so the ensemble never hard-codes a concrete
// Regressor type.
type NewRegressor func() regressor.Regressor

// Ensemble holds one model per budget level in the ladder plus the
// weight vector fusing their predictions.
type Ensemble struct {
	ladder  []float64 // budget levels, ascending
	models  map[float64]regressor.Regressor
	weights map[float64]float64
	fusion  Fusion
	newReg  NewRegressor
}

// New builds an Ensemble over the given budget ladder with the supplied
// initial weights (same length and order as ladder; must already sum to
// 1, the caller's responsibility per spec.md I3).
func New(ladder []float64, initWeights []float64, fusion Fusion, newReg NewRegressor) (*Ensemble, error) {
	if len(ladder) != len(initWeights) {
		return nil, fmt.Errorf("ensemble: ladder has %d levels but %d weights given", len(ladder), len(initWeights))
	}
	e := &Ensemble{
		ladder:  append([]float64(nil), ladder...),
		models:  make(map[float64]regressor.Regressor, len(ladder)),
		weights: make(map[float64]float64, len(ladder)),
		fusion:  fusion,
		newReg:  newReg,
	}
	for i, r := range ladder {
		e.models[r] = newReg()
		e.weights[r] = initWeights[i]
	}
	return e, nil
}

// Ladder returns the budget levels in ascending order, the canonical
// iteration order for everything in this package and the weight
// learner.
func (e *Ensemble) Ladder() []float64 { return append([]float64(nil), e.ladder...) }

// ModelAt exposes the per-budget regressor for callers (the weight
// learner) that need direct predictions from a single fidelity level.
func (e *Ensemble) ModelAt(r float64) regressor.Regressor { return e.models[r] }

// Weights returns a copy of the current weight vector, one entry per
// ladder level in order.
func (e *Ensemble) Weights() []float64 {
	w := make([]float64, len(e.ladder))
	for i, r := range e.ladder {
		w[i] = e.weights[r]
	}
	return w
}

// Train refits the model for budget r on (X, y). y is standardized
// (zero mean, unit variance; pass-through if σ=0) before fitting, per
// spec.md §4.3.
func (e *Ensemble) Train(r float64, X [][]float64, y []float64) error {
	model, ok := e.models[r]
	if !ok {
		return fmt.Errorf("ensemble: budget %v is not on the ladder", r)
	}
	return model.Fit(X, StdNormalize(y))
}

// StdNormalize standardizes y to zero mean, unit variance. If the
// sample standard deviation is 0 (e.g. a single observation, or all
// equal losses) it passes y through unchanged rather than dividing by
// zero.
func StdNormalize(y []float64) []float64 {
	if len(y) == 0 {
		return nil
	}
	mean, std := stat.MeanStdDev(y, nil)
	out := make([]float64, len(y))
	if std == 0 {
		copy(out, y)
		return out
	}
	for i, v := range y {
		out[i] = (v - mean) / std
	}
	return out
}

// SetWeights replaces the weight vector, one entry per ladder level in
// order. The caller is responsible for the weights summing to 1 (I3);
// SetWeights renormalizes defensively so a small floating-point drift
// in the learner never breaks the invariant.
func (e *Ensemble) SetWeights(newWeights []float64) error {
	if len(newWeights) != len(e.ladder) {
		return fmt.Errorf("ensemble: expected %d weights, got %d", len(e.ladder), len(newWeights))
	}
	sum := floats.Sum(newWeights)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("ensemble: weight sum %v is not a positive finite number", sum)
	}
	for i, r := range e.ladder {
		e.weights[r] = newWeights[i] / sum
	}
	return nil
}

// Predict fuses per-model predictions for each row of X under the
// current fusion rule. Models for budgets with no data yet return
// (mean=0, var=1) by the Regressor's own convention, so they contribute
// neutrally to the fusion sum.
func (e *Ensemble) Predict(X [][]float64) (mean, variance []float64) {
	n := len(X)
	mean = make([]float64, n)
	variance = make([]float64, n)

	type perModel struct {
		w         float64
		m, v      []float64
	}
	perModels := make([]perModel, 0, len(e.ladder))
	for _, r := range e.ladder {
		m, v := e.models[r].Predict(X)
		perModels = append(perModels, perModel{w: e.weights[r], m: m, v: v})
	}

	switch e.fusion {
	case GPOE:
		for i := 0; i < n; i++ {
			var invVarSum, weightedMeanSum float64
			for _, pm := range perModels {
				v := pm.v[i]
				if v < epsilon {
					v = epsilon
				}
				invVarSum += pm.w / v
				weightedMeanSum += pm.w * pm.m[i] / v
			}
			if invVarSum < epsilon {
				invVarSum = epsilon
			}
			variance[i] = 1 / invVarSum
			mean[i] = variance[i] * weightedMeanSum
		}
	default: // IDP
		for i := 0; i < n; i++ {
			var m, v float64
			for _, pm := range perModels {
				m += pm.w * pm.m[i]
				v += pm.w * pm.w * pm.v[i]
			}
			mean[i] = m
			variance[i] = v
		}
	}
	return mean, variance
}
