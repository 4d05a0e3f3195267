// Package coordinator implements the Coordinator (spec.md §4.7, C7):
// glues the Bracket Scheduler, the Weighted Surrogate Ensemble, the
// acquisition optimizer and the Weight Learner, deciding the next
// (config, budget) and routing observation events back. Only one
// invocation of Next may be in progress at a time (spec.md §5); callers
// are responsible for serializing access (e.g. a mutex around both
// Observe and Next), matching "the Coordinator serializes all mutations
// ... behind one logical lock."
package coordinator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/yezoli/mfes-go/internal/acquisition"
	"github.com/yezoli/mfes-go/internal/bracket"
	"github.com/yezoli/mfes-go/internal/configspace"
	"github.com/yezoli/mfes-go/internal/coreerr"
	"github.com/yezoli/mfes-go/internal/corelog"
	"github.com/yezoli/mfes-go/internal/ensemble"
	"github.com/yezoli/mfes-go/internal/metrics"
	"github.com/yezoli/mfes-go/internal/weightlearn"
)

// WeightSink is the persistence collaborator weight snapshots are
// appended to (spec.md §6); an opaque WeightSink.Write(histWeights)
// call. The core has no on-disk format opinion beyond what Write's
// implementation chooses.
type WeightSink interface {
	Write(histWeights [][]float64) error
}

// noopSink discards weight snapshots.
type noopSink struct{}

func (noopSink) Write([][]float64) error { return nil }

// Options are the configuration knobs fixed at construction (spec.md
// §6). Options is Coordinator's own shape so internal/config can adapt
// a user-facing configuration file into it without an import cycle.
type Options struct {
	R                  float64
	Eta                float64
	SkipOuterLoop      int
	RandProb           float64
	InitWeight         []float64 // length s_max+1, sums to 1
	UpdateEnable       bool
	WeightMethod       weightlearn.Method
	FusionMethod       ensemble.Fusion
	PowerNum           float64
	RandomState        uint64
	OptimizerNumPoints int // candidates per Maximize call, 0 = optimizer default
}

// DefaultOptions returns spec.md §6's default knobs for the given R.
func DefaultOptions(r float64) Options {
	return Options{
		R:            r,
		Eta:          3,
		RandProb:     0.3,
		UpdateEnable: true,
		WeightMethod: weightlearn.RankLossPNorm,
		FusionMethod: ensemble.IDP,
		PowerNum:     3,
		RandomState:  1,
	}
}

// Coordinator is the top-level driver described in spec.md §4.7.
type Coordinator struct {
	opts Options

	space     *configspace.Space
	bracket   *bracket.Bracket
	ensemble  *ensemble.Ensemble
	ei        *acquisition.EI
	optimizer *acquisition.Optimizer
	learner   *weightlearn.Learner

	data      *dataStore
	history   *HistoryContainer
	incumbent *HistoryContainer

	rng *rand.Rand

	lastBudgetServed float64
	haveServedAny    bool
	weightUpdateID   int
	weightChangedCnt int
	histWeights      [][]float64

	log  corelog.Logger
	sink WeightSink
	met  *metrics.Metrics
}

// SetMetrics wires an optional observability collaborator; a nil
// Metrics (including the zero value never set by this method) records
// nothing, matching metrics.Metrics' own nil-receiver contract.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) {
	c.met = m
}

// New builds a Coordinator over the given configuration space, wiring
// together a fresh Bracket, Ensemble, acquisition optimizer and Weight
// Learner from opts. newRegressor constructs a fresh Base Regressor
// (spec.md C2); the same constructor is used for every rung's ensemble
// model and for the weight learner's cross-validation folds.
func New(
	space *configspace.Space,
	opts Options,
	newRegressor ensemble.NewRegressor,
	log corelog.Logger,
	sink WeightSink,
) (*Coordinator, error) {
	br, err := bracket.NewSkippingOuter(opts.R, opts.Eta, opts.SkipOuterLoop)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	sMax := br.SMax()

	initWeight := opts.InitWeight
	if initWeight == nil {
		initWeight = make([]float64, sMax+1)
		if sMax > 0 {
			for i := 1; i <= sMax; i++ {
				initWeight[i] = 1.0 / float64(sMax)
			}
		} else {
			initWeight[0] = 1
		}
	}
	if len(initWeight) != sMax+1 {
		return nil, fmt.Errorf("coordinator: init_weight has %d entries, want %d", len(initWeight), sMax+1)
	}

	ens, err := ensemble.New(br.Ladder, initWeight, opts.FusionMethod, newRegressor)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	if log == nil {
		log = corelog.Noop()
	}
	if sink == nil {
		sink = noopSink{}
	}

	rng := rand.New(rand.NewPCG(opts.RandomState, opts.RandomState^0xD1B54A32D192ED03))

	ei := acquisition.NewEI()
	optCfg := acquisition.DefaultOptimizerConfig()
	optCfg.RandProb = 0
	optimizer := acquisition.NewOptimizer(space, ei, optCfg)

	learnerCfg := weightlearn.Config{Method: opts.WeightMethod, PowerNum: opts.PowerNum}
	learner := weightlearn.New(learnerCfg, rng, weightlearn.NewRegressor(newRegressor))

	return &Coordinator{
		opts:      opts,
		space:     space,
		bracket:   br,
		ensemble:  ens,
		ei:        ei,
		optimizer: optimizer,
		learner:   learner,
		data:      newDataStore(),
		history:   &HistoryContainer{},
		incumbent: &HistoryContainer{},
		rng:       rng,
		log:       log,
		sink:      sink,
	}, nil
}

// Observe records a completed evaluation: locates the RUNNING job
// matching (config, budget), marks it COMPLETED, appends to D[budget],
// updates the incumbent store at top fidelity, and retrains that
// budget's surrogate model on standardized targets (spec.md §4.7). A
// failure sentinel loss (bracket.FailureLoss, or any NaN/non-finite loss
// a caller passes directly) is recorded in the bracket for promotion
// ranking only — it never reaches D[budget], the incumbent/history
// stores, or surrogate training, since a single such value would poison
// every later standardized target computed over that budget's data
// (StdNormalize's mean/stddev over a slice containing it).
func (c *Coordinator) Observe(cfg configspace.Config, loss, budget float64) error {
	job, err := c.bracket.Complete(cfg, budget, loss)
	if err != nil {
		return fmt.Errorf("observe(budget=%v): %w", budget, err)
	}
	c.met.JobCompleted(strconv.FormatFloat(budget, 'g', -1, 64))

	if job.IsFailure() {
		return nil
	}

	c.data.add(budget, cfg, loss)

	if budget == c.bracket.TopBudget() {
		c.incumbent.Add(cfg, loss)
		c.history.Add(cfg, loss)
	}

	configs, losses := c.data.get(budget)
	standardized := ensemble.StdNormalize(losses)
	X := make([][]float64, len(configs))
	for i, cc := range configs {
		X[i] = c.space.Encode(cc)
	}
	if err := c.ensemble.Train(budget, X, standardized); err != nil {
		return fmt.Errorf("observe(budget=%v): train: %w", budget, err)
	}
	return nil
}

// ObserveFailure records a worker timeout/error as COMPLETED with
// bracket.FailureLoss, preserving the invariant that a RUNNING job
// eventually leaves RUNNING (spec.md §5, §7 WorkerFailure). Failed jobs
// never enter the incumbent set even at top fidelity: Observe excludes
// any job for which IsFailure is true from the incumbent/history stores
// entirely, so FailureLoss (the largest finite float64) can never become
// the argmin.
func (c *Coordinator) ObserveFailure(cfg configspace.Config, budget float64) error {
	if err := c.Observe(cfg, bracket.FailureLoss, budget); err != nil {
		return fmt.Errorf("%w: %v", coreerr.ErrWorkerFailure, err)
	}
	return nil
}

// Incumbent returns the best (config, loss) pair observed so far at top
// fidelity, and whether any top-fidelity observation exists yet.
func (c *Coordinator) Incumbent() (configspace.Config, float64, bool) {
	configs, losses := c.incumbent.Data()
	if len(losses) == 0 {
		return configspace.Config{}, 0, false
	}
	bestIdx := 0
	for i, l := range losses {
		if l < losses[bestIdx] {
			bestIdx = i
		}
	}
	return configs[bestIdx], losses[bestIdx], true
}

// Next selects the next (config, budget) to hand to a worker (spec.md
// §4.7). Exactly one invocation may be in progress at a time; callers
// serialize externally.
func (c *Coordinator) Next() (configspace.Config, float64, map[string]any, error) {
	promoted, ok := c.bracket.NextPromotion()

	var budget float64
	if ok {
		budget = promoted.Budget
	} else {
		budget = c.bracket.BaseBudget()
	}

	budgetChanged := c.haveServedAny && budget != c.lastBudgetServed
	if budgetChanged && c.opts.UpdateEnable && c.weightUpdateID > c.bracket.SMax() {
		if err := c.updateWeights(); err != nil {
			c.log.Warn("weight update did not change weights", "error", err.Error())
		}
	}
	c.weightUpdateID++
	c.met.WeightUpdateID(c.weightUpdateID)
	c.lastBudgetServed = budget
	c.haveServedAny = true

	if ok {
		return promoted.Config, promoted.Budget, c.dispatchExtra(), nil
	}

	cfg, err := c.sampleFresh()
	return cfg, c.bracket.BaseBudget(), c.dispatchExtra(), err
}

// dispatchExtra builds the per-call metadata handed back alongside a
// (config, budget) pair: a fresh correlation id a caller can thread
// through its own job queue and logs, since the Coordinator itself has
// no notion of a worker-facing job identity (spec.md §3 identifies jobs
// by (config, budget), not by an opaque id).
func (c *Coordinator) dispatchExtra() map[string]any {
	return map[string]any{"dispatch_id": uuid.New().String()}
}

// sampleFresh draws a configuration for rung BaseRung, excluded against
// that rung's existing configs (I5): random if no top-fidelity data
// exists yet, otherwise a rand_prob-weighted choice between random
// sampling and walking the acquisition optimizer's ranked candidates.
func (c *Coordinator) sampleFresh() (configspace.Config, error) {
	excluded := c.bracket.Rungs[c.bracket.BaseRung].Configs()

	if c.data.len(c.bracket.TopBudget()) == 0 {
		cfg, err := c.space.Sample(c.rng, excluded)
		c.finishFresh(cfg, err)
		return cfg, err
	}

	if c.rng.Float64() < c.opts.RandProb {
		cfg, err := c.space.Sample(c.rng, excluded)
		c.finishFresh(cfg, err)
		return cfg, err
	}

	cfg, found := c.acquisitionCandidate(excluded)
	if !found {
		c.log.Warn("no non-duplicate configuration among bo candidates, sampling randomly")
		var err error
		cfg, err = c.space.Sample(c.rng, excluded)
		c.finishFresh(cfg, err)
		return cfg, err
	}
	c.finishFresh(cfg, nil)
	return cfg, nil
}

func (c *Coordinator) finishFresh(cfg configspace.Config, err error) {
	if err != nil {
		c.log.Warn("sampling degraded to a duplicate configuration", "error", err.Error())
	}
	if _, addErr := c.bracket.AddFresh(cfg); addErr != nil {
		c.log.Error("could not add fresh job", "error", addErr.Error())
	}
}

func (c *Coordinator) acquisitionCandidate(excluded map[string]struct{}) (configspace.Config, bool) {
	_, losses := c.history.Data()
	best := ensemble.StdNormalize(losses)
	bestLoss := math.Inf(1)
	for _, v := range best {
		if v < bestLoss {
			bestLoss = v
		}
	}
	c.ei.Update(c.ensemble, bestLoss, c.history.Len())

	candidates := c.optimizer.Maximize(c.rng, c.history, c.opts.OptimizerNumPoints)
	for _, cand := range candidates {
		if _, dup := excluded[cand.Config.Key()]; !dup {
			return cand.Config, true
		}
	}
	return configspace.Config{}, false
}

// updateWeights invokes the Weight Learner against D[R_top], assigns the
// resulting weights, appends the snapshot to the history, and persists
// it via the WeightSink (spec.md §4.6).
func (c *Coordinator) updateWeights() error {
	configs, losses := c.data.get(c.bracket.TopBudget())
	X := make([][]float64, len(configs))
	for i, cc := range configs {
		X[i] = c.space.Encode(cc)
	}

	result, err := c.learner.Update(c.bracket.Ladder, c.ensemble, X, losses, c.ensemble.Weights())
	c.log.Info("weight update", "method", c.opts.WeightMethod, "n", c.weightChangedCnt, "weights", result.Weights)

	if setErr := c.ensemble.SetWeights(result.Weights); setErr != nil {
		c.log.Error("could not apply learned weights", "error", setErr.Error())
		return setErr
	}

	c.weightChangedCnt++
	c.met.WeightChanged()
	c.histWeights = append(c.histWeights, append([]float64(nil), result.Weights...))
	if sinkErr := c.sink.Write(c.histWeights); sinkErr != nil {
		c.log.Error("could not persist weight snapshot", "error", sinkErr.Error())
	}
	return err
}

// WeightHistory returns a copy of every weight vector learned so far, in
// order.
func (c *Coordinator) WeightHistory() [][]float64 {
	out := make([][]float64, len(c.histWeights))
	for i, w := range c.histWeights {
		out[i] = append([]float64(nil), w...)
	}
	return out
}

// Bracket exposes the underlying scheduler for inspection (tests,
// CLI status reporting).
func (c *Coordinator) Bracket() *bracket.Bracket { return c.bracket }
