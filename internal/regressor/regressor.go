// Package regressor implements the Base Regressor capability (spec.md
// §4.2, C2): a polymorphic {Fit, Predict} contract the ensemble and the
// weight learner treat as a black box. The only implementation provided
// is a random-forest-like ensemble of regression trees, standing in for
// the distilled system's RandomForestWithInstances; predictions are
// deterministic given training data and variance is always
// non-negative, but no calibrated-uncertainty guarantee is made.
package regressor

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Regressor is the capability interface every surrogate model in the
// ensemble satisfies.
type Regressor interface {
	// Fit trains the regressor on X (n samples × d features) and y
	// (n targets). Implementations may assume X and y have matching
	// lengths.
	Fit(X [][]float64, y []float64) error
	// Predict returns per-sample (mean, variance) for each row of X.
	// Variance is always ≥ 0.
	Predict(X [][]float64) (mean, variance []float64)
}

// Config tunes the forest's shape.
type Config struct {
	NumTrees    int
	MaxDepth    int
	MinLeafSize int
	// Seed drives the bootstrap/feature-subsample RNG so Fit is
	// deterministic given the same training data and seed.
	Seed uint64
}

// DefaultConfig returns the forest shape used when none is supplied.
func DefaultConfig() Config {
	return Config{NumTrees: 10, MaxDepth: 8, MinLeafSize: 3, Seed: 1}
}

// Forest is a bootstrap-aggregated ensemble of regression trees. The
// fused prediction's mean is the average tree prediction; its variance
// is the between-tree variance of the individual tree predictions, so
// a forest with no disagreement among trees (e.g. a single training
// point) reports a variance of 0.
type Forest struct {
	cfg   Config
	trees []*treeNode
	dim   int
}

// New builds an untrained Forest with the given shape.
func New(cfg Config) *Forest {
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = DefaultConfig().NumTrees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.MinLeafSize <= 0 {
		cfg.MinLeafSize = DefaultConfig().MinLeafSize
	}
	return &Forest{cfg: cfg}
}

// Fit retrains the forest from scratch on (X, y).
func (f *Forest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		f.trees = nil
		return nil
	}
	f.dim = len(X[0])
	rng := rand.New(rand.NewPCG(f.cfg.Seed, f.cfg.Seed^0x9e3779b97f4a7c15))
	trees := make([]*treeNode, f.cfg.NumTrees)
	for t := 0; t < f.cfg.NumTrees; t++ {
		bootX, bootY := bootstrapSample(X, y, rng)
		trees[t] = buildTree(bootX, bootY, 0, f.cfg.MaxDepth, f.cfg.MinLeafSize, rng)
	}
	f.trees = trees
	return nil
}

// Predict returns (mean, variance) across the forest for each row.
// Before Fit has been called with data, the model returns the neutral
// convention (mean=0, var=1) from spec.md §4.3 for every row.
func (f *Forest) Predict(X [][]float64) (mean, variance []float64) {
	mean = make([]float64, len(X))
	variance = make([]float64, len(X))
	if len(f.trees) == 0 {
		for i := range X {
			mean[i] = 0
			variance[i] = 1
		}
		return mean, variance
	}
	preds := make([]float64, len(f.trees))
	for i, row := range X {
		for t, tree := range f.trees {
			preds[t] = tree.predict(row)
		}
		m := stat.Mean(preds, nil)
		var v float64
		if len(preds) > 1 {
			v = stat.Variance(preds, nil)
		}
		if v < 0 {
			v = 0
		}
		mean[i] = m
		variance[i] = v
	}
	return mean, variance
}

func bootstrapSample(X [][]float64, y []float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(X)
	bx := make([][]float64, n)
	by := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := rng.IntN(n)
		bx[i] = X[idx]
		by[i] = y[idx]
	}
	return bx, by
}

// treeNode is a node of a CART-style regression tree split on squared-
// error reduction.
type treeNode struct {
	isLeaf     bool
	prediction float64

	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.isLeaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.prediction
}

func buildTree(X [][]float64, y []float64, depth, maxDepth, minLeaf int, rng *rand.Rand) *treeNode {
	if depth >= maxDepth || len(y) <= minLeaf*2 || constant(y) {
		return &treeNode{isLeaf: true, prediction: stat.Mean(y, nil)}
	}

	dim := len(X[0])
	feature, threshold, gain := bestSplit(X, y, dim, minLeaf, rng)
	if gain <= 0 {
		return &treeNode{isLeaf: true, prediction: stat.Mean(y, nil)}
	}

	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for i, row := range X {
		if row[feature] <= threshold {
			leftX = append(leftX, row)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, y[i])
		}
	}
	if len(leftY) < minLeaf || len(rightY) < minLeaf {
		return &treeNode{isLeaf: true, prediction: stat.Mean(y, nil)}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildTree(leftX, leftY, depth+1, maxDepth, minLeaf, rng),
		right:     buildTree(rightX, rightY, depth+1, maxDepth, minLeaf, rng),
	}
}

// bestSplit scans a random subset of features (sqrt(dim), the standard
// random-forest de-correlation trick) and every candidate threshold
// among the observed values, picking the split that most reduces
// within-child variance weighted by child size.
func bestSplit(X [][]float64, y []float64, dim, minLeaf int, rng *rand.Rand) (feature int, threshold, gain float64) {
	parentVar := weightedVar(y)
	numCandidates := maxInt(1, isqrt(dim))
	features := rng.Perm(dim)[:numCandidates]

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	for _, f := range features {
		values := make([]float64, len(X))
		for i, row := range X {
			values[i] = row[f]
		}
		thresholds := uniqueSorted(values)
		for i := 0; i+1 < len(thresholds); i++ {
			t := (thresholds[i] + thresholds[i+1]) / 2
			var leftY, rightY []float64
			for i, row := range X {
				if row[f] <= t {
					leftY = append(leftY, y[i])
				} else {
					rightY = append(rightY, y[i])
				}
			}
			if len(leftY) < minLeaf || len(rightY) < minLeaf {
				continue
			}
			childVar := weightedVar(leftY) + weightedVar(rightY)
			g := parentVar - childVar
			if g > bestGain {
				bestGain = g
				bestFeature = f
				bestThreshold = t
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func weightedVar(y []float64) float64 {
	if len(y) < 2 {
		return 0
	}
	return stat.Variance(y, nil) * float64(len(y))
}

func constant(y []float64) bool {
	if len(y) == 0 {
		return true
	}
	first := y[0]
	for _, v := range y[1:] {
		if v != first {
			return false
		}
	}
	return true
}

func uniqueSorted(v []float64) []float64 {
	cp := append([]float64(nil), v...)
	sort.Float64s(cp)
	out := cp[:0:0]
	for i, x := range cp {
		if i == 0 || x != cp[i-1] {
			out = append(out, x)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 1
	for r*r < n {
		r++
	}
	return r
}
