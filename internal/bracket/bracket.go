package bracket

import (
	"fmt"
	"math"

	"github.com/yezoli/mfes-go/internal/configspace"
)

// Bracket is the ordered list of rungs [rung_0, …, rung_{s_max}] (spec.md
// §3). Only one bracket is active in this asynchronous variant; only one
// call (NextPromotion, AddFresh or Complete) may be in flight at a time —
// callers serialize access, this type does no locking.
//
// BaseRung is the rung fresh configurations enter at: 0 unless
// skip_outer_loop (spec.md §6) raised it, in which case rungs below
// BaseRung are built (so Ladder and budget arithmetic elsewhere are
// unaffected) but never populated, mirroring how skip_outer_loop drops
// the outermost, most aggressively-downsampled brackets of a classic
// Hyperband sweep in favor of starting closer to full fidelity.
type Bracket struct {
	Eta      float64
	Ladder   []float64 // r_i = eta^i, ascending
	Rungs    []*Rung
	BaseRung int
}

// New builds a Bracket for budget R with downsampling factor eta: the
// ladder r_i=eta^i for i=0..s_max where s_max=floor(log_eta(R)), and
// r_{s_max} is the full-fidelity budget (spec.md §3). Fresh configurations
// enter at rung 0.
func New(maxBudget, eta float64) (*Bracket, error) {
	return NewSkippingOuter(maxBudget, eta, 0)
}

// NewSkippingOuter builds a Bracket like New, but fresh configurations
// enter at rung skipOuterLoop instead of rung 0 (spec.md §6
// skip_outer_loop: "# outermost brackets to skip"). skipOuterLoop is
// clamped to [0, s_max] so a value at or past the top rung degrades to
// entering fresh configurations directly at the top rung, where no
// promotion ever happens, rather than erroring.
func NewSkippingOuter(maxBudget, eta float64, skipOuterLoop int) (*Bracket, error) {
	if eta <= 1 {
		return nil, fmt.Errorf("bracket: eta must be > 1, got %v", eta)
	}
	if maxBudget <= 0 {
		return nil, fmt.Errorf("bracket: R must be > 0, got %v", maxBudget)
	}
	if skipOuterLoop < 0 {
		return nil, fmt.Errorf("bracket: skip_outer_loop must be >= 0, got %d", skipOuterLoop)
	}
	sMax := int(math.Floor(math.Log(maxBudget) / math.Log(eta)))
	ladder := make([]float64, sMax+1)
	rungs := make([]*Rung, sMax+1)
	for i := 0; i <= sMax; i++ {
		r := math.Pow(eta, float64(i))
		ladder[i] = r
		rungs[i] = newRung(r, eta)
	}
	baseRung := skipOuterLoop
	if baseRung > sMax {
		baseRung = sMax
	}
	return &Bracket{Eta: eta, Ladder: ladder, Rungs: rungs, BaseRung: baseRung}, nil
}

// SMax is the index of the top rung.
func (b *Bracket) SMax() int { return len(b.Ladder) - 1 }

// TopBudget is r_{s_max}, the full-fidelity budget.
func (b *Bracket) TopBudget() float64 { return b.Ladder[b.SMax()] }

// BaseBudget is the budget fresh configurations enter at, r_{BaseRung}.
func (b *Bracket) BaseBudget() float64 { return b.Ladder[b.BaseRung] }

// RungIndex maps a budget value to its rung index, or -1 if the budget
// is not on the ladder.
func (b *Bracket) RungIndex(budget float64) int {
	for i, r := range b.Ladder {
		if r == budget {
			return i
		}
	}
	return -1
}

// AddFresh enters a brand-new configuration into rung BaseRung as
// RUNNING.
func (b *Bracket) AddFresh(cfg configspace.Config) (*Job, error) {
	job := &Job{Config: cfg, Budget: b.Ladder[b.BaseRung]}
	if err := b.Rungs[b.BaseRung].addRunning(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Complete marks the RUNNING job matching cfg at budget as COMPLETED
// with loss, recomputing promotion eligibility for its rung.
func (b *Bracket) Complete(cfg configspace.Config, budget, loss float64) (*Job, error) {
	idx := b.RungIndex(budget)
	if idx < 0 {
		return nil, fmt.Errorf("bracket: budget %v is not on the ladder", budget)
	}
	return b.Rungs[idx].complete(cfg.Key(), loss)
}

// NextPromotion walks rungs from highest to lowest, down to BaseRung
// (excluding the top rung, which has nowhere to promote to, and
// excluding any rung below BaseRung, which skip_outer_loop left
// unpopulated) looking for a promotion-eligible job. If found, it is
// transitioned COMPLETED→PROMOTED and a new RUNNING job for the same
// config enters the next rung up; its pointer is returned. If no
// promotion is available anywhere, returns (nil, false) so the caller
// knows to draw a fresh configuration at rung BaseRung instead (spec.md
// §4.5).
func (b *Bracket) NextPromotion() (*Job, bool) {
	for i := b.SMax() - 1; i >= b.BaseRung; i-- {
		job := b.Rungs[i].firstEligible()
		if job == nil {
			continue
		}
		job.markPromoted()
		next := &Job{Config: job.Config, Budget: b.Ladder[i+1]}
		// I2/I5 are structural here: a promoted config can only reach
		// rung i+1 via this path, and a config completes at rung i at
		// most once, so it cannot already be present at i+1.
		if err := b.Rungs[i+1].addRunning(next); err != nil {
			// Defensive: invariant violated upstream. Revert the
			// promotion so the job can still be retried by a later
			// NextPromotion call rather than being silently lost.
			job.Status = Completed
			continue
		}
		return next, true
	}
	return nil, false
}
