// Package bracket implements the asynchronous successive-halving (ASHA)
// scheduler (spec.md §4.5, C5): rung/job lifecycle, promotion, and
// next-work selection under concurrent worker arrivals. The promotion
// bookkeeping (insert a new completion into a sorted-by-loss slice,
// recompute floor(n/eta), detect a newly-eligible boundary job) is
// adapted from pkg/searcher/asha.go's rung.promotionsAsync, generalized
// from determined's opaque RequestID-keyed trials to the spec's
// config/budget job model with explicit RUNNING/COMPLETED/PROMOTED
// states.
package bracket

import (
	"math"

	"github.com/yezoli/mfes-go/internal/configspace"
)

// Status is a job's place in the RUNNING → COMPLETED → (PROMOTED |
// terminal) state machine (spec.md §3, §4.5).
type Status int

const (
	Running Status = iota
	Completed
	Promoted
)

func (s Status) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Promoted:
		return "PROMOTED"
	default:
		return "UNKNOWN"
	}
}

// FailureLoss is the sentinel loss recorded for a WorkerFailure
// (spec.md §7): deliberately large but finite, the same convention as
// pkg/searcher/asha.go's ashaExitedMetricValue (math.MaxFloat64) — a
// non-finite sentinel (NaN/Inf) would poison any downstream statistic
// (mean, standard deviation) computed over a slice that includes it,
// since Inf-Inf and sums past the float range both yield NaN. A worst-
// case finite value sorts last for promotion ranking without that risk.
const FailureLoss = math.MaxFloat64

// Job is one (config, budget) evaluation slot.
type Job struct {
	Config configspace.Config
	Budget float64
	Status Status
	Loss   float64 // meaningful once Status != Running
	Extra  map[string]any

	// eligible marks a COMPLETED job as currently within the top
	// floor(n_completed/eta) of its rung and not yet promoted — an
	// internal scheduling hint distinct from Status, since eligibility
	// can be computed before a worker actually asks for the promoted
	// slot (the pull-based next-work model spec.md §4.5 describes).
	eligible bool

	// seq is the completion order within the rung. The promotion logic
	// does not read it: ties are already broken by insertion order by
	// the sorted insert itself (spec.md: "ties broken by insertion
	// order").
	seq int
}

// IsFailure reports whether Loss is a failure sentinel, per spec.md §3:
// "Losses are real numbers; lower is better; NaN/non-finite means
// failure." A caller-supplied NaN/Inf is still honored (the general
// contract), but WorkerFailure itself is recorded as FailureLoss, not
// Inf — see FailureLoss's comment.
func (j *Job) IsFailure() bool {
	return math.IsNaN(j.Loss) || math.IsInf(j.Loss, 0) || j.Loss == FailureLoss
}
