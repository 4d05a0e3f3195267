// Package weightlearn implements the Weight Learner (spec.md §4.6, C6):
// re-estimating ensemble weights from rank-preservation statistics at
// the boundary between successive outer iterations.
package weightlearn

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yezoli/mfes-go/internal/coreerr"
	"github.com/yezoli/mfes-go/internal/ensemble"
	"github.com/yezoli/mfes-go/internal/regressor"
)

// Method selects the weight-learning procedure.
type Method int

const (
	RankLossPNorm Method = iota
	RankLossProb
)

const (
	foldNum   = 5   // 5-fold cross-validation, spec.md §4.6
	mcSamples = 100 // Monte-Carlo sample count for rank_loss_prob
)

// Config tunes the learner.
type Config struct {
	Method   Method
	PowerNum float64 // P in w_r = p_r^P / Σp_k^P, default 3
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config { return Config{Method: RankLossPNorm, PowerNum: 3} }

// NewRegressor builds a fresh Base Regressor for cross-validation folds.
type NewRegressor func() regressor.Regressor

// Learner recomputes ensemble weights from rank-preservation evidence.
type Learner struct {
	cfg    Config
	rng    *rand.Rand
	newReg NewRegressor
}

// New builds a Learner. rng drives the rank_loss_prob Monte-Carlo
// sampling and must be owned by the caller (the Coordinator) for
// determinism across the whole run.
func New(cfg Config, rng *rand.Rand, newReg NewRegressor) *Learner {
	return &Learner{cfg: cfg, rng: rng, newReg: newReg}
}

// Result carries the new weights plus the diagnostics that informed
// them. PreservingOrderP is the only array callers should index by
// ladder position; PreservingOrderNums is a parallel diagnostic that is
// only appended to in some branches (spec.md §9 note 1) and must never
// be relied on for indexing.
type Result struct {
	Weights             []float64
	PreservingOrderP    []float64 // rank_loss_p_norm only
	PreservingOrderNums []int     // rank_loss_p_norm only, NOT index-aligned with Weights
	Tally               []int     // rank_loss_prob only
}

// Update recomputes weights from the top-fidelity data (X_top, Y_top)
// against the ensemble's per-budget models. ladder must be the
// ensemble's budget ladder, ascending, with the last entry R_top.
// previousWeights is returned unchanged (with ErrInsufficientData or
// ErrDegenerateWeights, as appropriate) when the update cannot proceed.
func (l *Learner) Update(ladder []float64, ens *ensemble.Ensemble, xTop [][]float64, yTop []float64, previousWeights []float64) (Result, error) {
	if len(yTop) < 3 {
		return Result{Weights: previousWeights}, coreerr.ErrInsufficientData
	}

	switch l.cfg.Method {
	case RankLossProb:
		return l.rankLossProb(ladder, ens, xTop, yTop)
	default:
		return l.rankLossPNorm(ladder, ens, xTop, yTop, previousWeights)
	}
}

// rankLossPNorm implements spec.md §4.6's default method. For r<R_top it
// uses the mean of the existing model's prediction; for r=R_top it runs
// fresh 5-fold cross-validation. Weights are w_r = p_r^P / Σp_k^P; if the
// sum is zero or non-finite, previousWeights are retained and
// ErrDegenerateWeights is returned (spec.md §9 note 3 is honored
// explicitly: the CV branch leaves its score at 0 and continues rather
// than returning early when |Y_top| < 2*foldNum).
func (l *Learner) rankLossPNorm(ladder []float64, ens *ensemble.Ensemble, xTop [][]float64, yTop []float64, previousWeights []float64) (Result, error) {
	k := len(ladder)
	preservingOrderP := make([]float64, k)
	var preservingOrderNums []int

	for i, r := range ladder {
		if i != k-1 {
			mean, _ := ens.ModelAt(r).Predict(xTop)
			num, pairs := PreservingOrderCount(mean, yTop)
			preservingOrderP[i] = float64(num) / float64(pairs)
			preservingOrderNums = append(preservingOrderNums, num)
			continue
		}
		if len(yTop) < 2*foldNum {
			preservingOrderP[i] = 0
			continue
		}
		cvPred := l.crossValidatedMean(xTop, yTop)
		num, pairs := PreservingOrderCount(cvPred, yTop)
		preservingOrderP[i] = float64(num) / float64(pairs)
		preservingOrderNums = append(preservingOrderNums, num)
	}

	powerSum := 0.0
	powered := make([]float64, k)
	for i, p := range preservingOrderP {
		powered[i] = math.Pow(p, l.cfg.PowerNum)
		powerSum += powered[i]
	}

	if powerSum == 0 || math.IsNaN(powerSum) || math.IsInf(powerSum, 0) {
		return Result{
			Weights:             previousWeights,
			PreservingOrderP:    preservingOrderP,
			PreservingOrderNums: preservingOrderNums,
		}, coreerr.ErrDegenerateWeights
	}

	weights := make([]float64, k)
	for i, p := range powered {
		weights[i] = p / powerSum
	}
	return Result{
		Weights:             weights,
		PreservingOrderP:    preservingOrderP,
		PreservingOrderNums: preservingOrderNums,
	}, nil
}

// rankLossProb implements spec.md §4.6's rank_loss_prob method: draw
// mcSamples Monte-Carlo samples, for each sample find which budget's
// (sampled) prediction best preserves rank order, and tally the winner.
func (l *Learner) rankLossProb(ladder []float64, ens *ensemble.Ensemble, xTop [][]float64, yTop []float64) (Result, error) {
	k := len(ladder)
	means := make([][]float64, k-1)
	vars := make([][]float64, k-1)
	for i := 0; i < k-1; i++ {
		means[i], vars[i] = ens.ModelAt(ladder[i]).Predict(xTop)
	}

	var cvMean, cvVar []float64
	haveCV := len(yTop) >= 2*foldNum
	if haveCV {
		cvMean, cvVar = l.crossValidatedMeanVar(xTop, yTop)
	}

	tally := make([]int, k)
	for s := 0; s < mcSamples; s++ {
		best := -1
		bestNum := -1
		for i := 0; i < k-1; i++ {
			sampled := l.sampleNormal(means[i], vars[i])
			num, _ := PreservingOrderCount(sampled, yTop)
			if num > bestNum {
				bestNum = num
				best = i
			}
		}
		lastNum := 0
		if haveCV {
			sampled := l.sampleNormal(cvMean, cvVar)
			lastNum, _ = PreservingOrderCount(sampled, yTop)
		}
		if lastNum > bestNum {
			best = k - 1
		}
		tally[best]++
	}

	weights := make([]float64, k)
	for i, t := range tally {
		weights[i] = float64(t) / float64(mcSamples)
	}
	return Result{Weights: weights, Tally: tally}, nil
}

func (l *Learner) sampleNormal(mean, variance []float64) []float64 {
	out := make([]float64, len(mean))
	for i := range mean {
		sigma := math.Sqrt(math.Max(variance[i], 0))
		n := distuv.Normal{Mu: mean[i], Sigma: sigma, Src: l.rng}
		out[i] = n.Rand()
	}
	return out
}

// crossValidatedMean runs 5-fold CV with a fresh regressor per fold and
// concatenates out-of-fold mean predictions in the original row order.
func (l *Learner) crossValidatedMean(X [][]float64, y []float64) []float64 {
	mean, _ := l.crossValidatedMeanVar(X, y)
	return mean
}

func (l *Learner) crossValidatedMeanVar(X [][]float64, y []float64) (mean, variance []float64) {
	n := len(y)
	mean = make([]float64, n)
	variance = make([]float64, n)
	for _, fold := range kFoldIndices(n, foldNum) {
		trainX, trainY := subsetExcluding(X, y, fold)
		validX := subsetRows(X, fold)
		model := l.newReg()
		_ = model.Fit(trainX, trainY)
		m, v := model.Predict(validX)
		for i, idx := range fold {
			mean[idx] = m[i]
			variance[idx] = v[i]
		}
	}
	return mean, variance
}

// kFoldIndices splits [0,n) into foldNum contiguous folds following the
// sklearn KFold(shuffle=False) convention: the first n%k folds get one
// extra element.
func kFoldIndices(n, k int) [][]int {
	folds := make([][]int, k)
	base := n / k
	extra := n % k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		fold := make([]int, size)
		for j := 0; j < size; j++ {
			fold[j] = start + j
		}
		folds[i] = fold
		start += size
	}
	return folds
}

func subsetRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func subsetExcluding(X [][]float64, y []float64, exclude []int) ([][]float64, []float64) {
	skip := make(map[int]struct{}, len(exclude))
	for _, i := range exclude {
		skip[i] = struct{}{}
	}
	var outX [][]float64
	var outY []float64
	for i := range X {
		if _, ok := skip[i]; ok {
			continue
		}
		outX = append(outX, X[i])
		outY = append(outY, y[i])
	}
	return outX, outY
}

// sign returns -1, 0, or 1 for negative, zero, and positive x.
func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// PreservingOrderCount returns (order-preserving pair count, total pair
// count) over all i<j pairs: a pair is order-preserving when
// sign(yPred_i-yPred_j) == sign(yTrue_i-yTrue_j), spec.md's definition.
// A three-way sign comparison, not a boolean '>' equality: a tie on one
// side (sign 0) only preserves order against a tie on the other side,
// not against a strict '>' or '<' — a constant predictor against
// strictly-ordered targets must score 0, not 1.
func PreservingOrderCount(yPred, yTrue []float64) (preserving, total int) {
	n := len(yPred)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sign(yPred[i]-yPred[j]) == sign(yTrue[i]-yTrue[j]) {
				preserving++
			}
			total++
		}
	}
	return preserving, total
}

// PairwiseRankingLoss is the pairwise logistic ranking loss
// (calculate_ranking_loss in the distilled system): present in the
// original alongside the order-preservation count but unused by either
// weight method there. Kept as a diagnostic for callers that want a
// continuous rank-loss signal alongside the discrete preservation
// fraction.
func PairwiseRankingLoss(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n == 0 {
		return 0
	}
	var loss float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if yTrue[i]-yTrue[j] <= 0 {
				continue
			}
			diff := yPred[i] - yPred[j]
			loss += math.Log1p(math.Exp(-diff))
		}
	}
	return loss / float64(n)
}

// ErrInvalidMethod is returned by config validation for an unknown
// weight method value.
var ErrInvalidMethod = errors.New("weightlearn: invalid weight method")
