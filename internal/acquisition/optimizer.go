package acquisition

import (
	"math/rand/v2"
	"sort"

	"github.com/yezoli/mfes-go/internal/configspace"
)

// HistoryContainer is the minimal read surface the optimizer needs from
// the Coordinator's top-fidelity observation history (spec.md §4.7); it
// is passed into Maximize, which does not read it — candidate generation
// comes from the configuration space alone.
type HistoryContainer interface {
	Len() int
}

// OptimizerConfig tunes the interleaved local+random search.
type OptimizerConfig struct {
	NumRandom        int // candidates drawn uniformly at random each round
	TopK             int // number of top-EI random candidates seeded into local search
	NumLocalSearches int // independent hill-climbing walks
	MaxSteps         int // hard cap on steps per local search (0 = unbounded)
	NumPlateauWalk   int // equal-score lateral moves tolerated per walk
	RandProb         float64
}

// DefaultOptimizerConfig mirrors the distilled system's
// InterleavedLocalAndRandomSearch defaults (n_sls_iterations=5,
// n_steps_plateau_walk=10).
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		NumRandom:        5000,
		TopK:             5,
		NumLocalSearches: 5,
		MaxSteps:         0,
		NumPlateauWalk:   10,
		RandProb:         0.0,
	}
}

// Optimizer interleaves random sampling with coordinate-wise hill
// climbing over the EI surface.
type Optimizer struct {
	space *configspace.Space
	ei    *EI
	cfg   OptimizerConfig
}

// NewOptimizer builds an Optimizer over the given space and EI
// acquisition function.
func NewOptimizer(space *configspace.Space, ei *EI, cfg OptimizerConfig) *Optimizer {
	return &Optimizer{space: space, ei: ei, cfg: cfg}
}

// Maximize returns ranked_list_of_configs: numPoints distinct random
// candidates (fewer if the space runs out of distinct points) plus
// local-search refinements of the top-K of them, scored by EI and
// sorted descending. Determinism: given the same rng and surrogate
// state, the output is reproducible.
func (o *Optimizer) Maximize(rng *rand.Rand, history HistoryContainer, numPoints int) []Candidate {
	if numPoints <= 0 {
		numPoints = o.cfg.NumRandom
	}

	pool := make([]configspace.Config, 0, numPoints)
	seen := make(map[string]struct{}, numPoints)
	for len(pool) < numPoints {
		cfg, err := o.space.Sample(rng, seen)
		if err != nil {
			break
		}
		key := cfg.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pool = append(pool, cfg)
	}

	candidates := o.score(pool)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	seeds := candidates
	if len(seeds) > o.cfg.TopK {
		seeds = seeds[:o.cfg.TopK]
	}

	var refined []Candidate
	for i := 0; i < o.cfg.NumLocalSearches && i < len(seeds); i++ {
		refined = append(refined, o.localSearch(rng, seeds[i]))
	}

	all := append(candidates, refined...)
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return dedupe(all)
}

func (o *Optimizer) score(cfgs []configspace.Config) []Candidate {
	X := make([][]float64, len(cfgs))
	for i, c := range cfgs {
		X[i] = o.space.Encode(c)
	}
	scores := o.ei.Score(X)
	out := make([]Candidate, len(cfgs))
	for i, c := range cfgs {
		out[i] = Candidate{Config: c, Score: scores[i]}
	}
	return out
}

// localSearch performs hill-climbing over one-coordinate neighborhoods
// starting from seed, with up to NumPlateauWalk equal-score lateral
// moves, capped at MaxSteps total steps (0 = unbounded, still bounded in
// practice by the neighbor-improvement stopping condition).
func (o *Optimizer) localSearch(rng *rand.Rand, seed Candidate) Candidate {
	current := seed
	plateauMoves := 0
	steps := 0
	for {
		if o.cfg.MaxSteps > 0 && steps >= o.cfg.MaxSteps {
			return current
		}
		neighbors := o.neighbors(rng, current.Config)
		if len(neighbors) == 0 {
			return current
		}
		scored := o.score(neighbors)
		best := current
		bestIsPlateau := false
		for _, cand := range scored {
			if cand.Score > best.Score {
				best = cand
				bestIsPlateau = false
			} else if cand.Score == best.Score && cand.Score == current.Score {
				bestIsPlateau = true
				best = cand
			}
		}
		steps++
		if best.Score > current.Score {
			current = best
			plateauMoves = 0
			continue
		}
		if bestIsPlateau && plateauMoves < o.cfg.NumPlateauWalk {
			current = best
			plateauMoves++
			continue
		}
		return current
	}
}

// neighbors perturbs one coordinate at a time by re-sampling that
// dimension, the one-coordinate-neighborhood move the interleaved local
// search uses.
func (o *Optimizer) neighbors(rng *rand.Rand, c configspace.Config) []configspace.Config {
	dims := o.space.Dims()
	out := make([]configspace.Config, 0, len(dims))
	for _, d := range dims {
		fresh, err := o.space.Sample(rng, nil)
		if err != nil {
			continue
		}
		values := map[string]any{}
		for _, dd := range dims {
			if dd.Name == d.Name {
				values[dd.Name] = fresh.Get(dd.Name)
			} else {
				values[dd.Name] = c.Get(dd.Name)
			}
		}
		out = append(out, configspace.NewConfig(values))
	}
	return out
}

func dedupe(cands []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		k := c.Config.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
