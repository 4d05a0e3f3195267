// Package acquisition implements Expected Improvement (spec.md §4.4, C4)
// over the fused surrogate and the interleaved local+random search that
// maximizes it.
package acquisition

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yezoli/mfes-go/internal/configspace"
)

// FusedModel is the ephemeral, non-owning view of the ensemble the
// acquisition function reads from at each Update call (spec.md §9: no
// cyclic reference — the Coordinator owns the ensemble, acquisition only
// borrows a predict call).
type FusedModel interface {
	Predict(X [][]float64) (mean, variance []float64)
}

// EI is the Expected Improvement acquisition function.
type EI struct {
	model   FusedModel
	best    float64 // η̂, current best standardized loss
	numData int
}

// NewEI constructs an EI with no model attached; callers must Update it
// before Score, matching the original's update(model, eta, num_data)
// refresh pattern.
func NewEI() *EI { return &EI{} }

// Update refreshes the acquisition with the latest fused surrogate, the
// current best standardized loss, and the data-set size (unused by the
// scoring arithmetic itself, carried for parity with the distilled
// system's signature and for callers that gate on it, e.g. skipping
// acquisition before any observation exists).
func (e *EI) Update(model FusedModel, best float64, numData int) {
	e.model = model
	e.best = best
	e.numData = numData
}

// NumData returns the data-set size recorded at the last Update.
func (e *EI) NumData() int { return e.numData }

var unitNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Score computes EI for each row of X: z=(η̂-μ)/σ, EI=(η̂-μ)Φ(z)+σφ(z),
// clipped at 0 when σ=0.
func (e *EI) Score(X [][]float64) []float64 {
	mean, variance := e.model.Predict(X)
	out := make([]float64, len(X))
	for i := range X {
		mu, sigma2 := mean[i], variance[i]
		if sigma2 <= 0 {
			out[i] = 0
			continue
		}
		sigma := math.Sqrt(sigma2)
		z := (e.best - mu) / sigma
		ei := (e.best-mu)*unitNormal.CDF(z) + sigma*unitNormal.Prob(z)
		if ei < 0 {
			ei = 0
		}
		out[i] = ei
	}
	return out
}

// Candidate pairs a configuration with its score for ranking.
type Candidate struct {
	Config configspace.Config
	Score  float64
}
