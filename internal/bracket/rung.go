package bracket

import (
	"fmt"
	"sort"

	"github.com/yezoli/mfes-go/internal/coreerr"
)

// Rung is the ordered set of jobs sharing one budget level within the
// bracket (spec.md §3).
type Rung struct {
	Budget  float64
	jobs    []*Job
	configs map[string]struct{} // invariant I1: == {j.Config.Key() for j in jobs}

	eta float64

	// completed holds only Status==Completed jobs, sorted ascending by
	// Loss with ties broken by completion order — the promotion
	// ranking's authoritative view.
	completed []*Job
	nextSeq   int
}

func newRung(budget, eta float64) *Rung {
	return &Rung{
		Budget:  budget,
		configs: make(map[string]struct{}),
		eta:     eta,
	}
}

// Jobs returns the rung's jobs in arrival order.
func (r *Rung) Jobs() []*Job { return r.jobs }

// Configs returns the set of configuration keys present in this rung
// (invariant I1).
func (r *Rung) Configs() map[string]struct{} {
	cp := make(map[string]struct{}, len(r.configs))
	for k := range r.configs {
		cp[k] = struct{}{}
	}
	return cp
}

// Has reports whether a config is already present in this rung,
// enforcing I5 ("each new configuration drawn by the scheduler is not
// already present in the target rung's configs") at the call site.
func (r *Rung) Has(key string) bool {
	_, ok := r.configs[key]
	return ok
}

// addRunning enters a new job into the rung with Status=Running,
// maintaining the jobs/configs lockstep invariant (I1).
func (r *Rung) addRunning(job *Job) error {
	key := job.Config.Key()
	if r.Has(key) {
		return fmt.Errorf("rung %v: config already present: %w", r.Budget, errDuplicateConfig)
	}
	job.Status = Running
	r.jobs = append(r.jobs, job)
	r.configs[key] = struct{}{}
	return nil
}

var errDuplicateConfig = fmt.Errorf("duplicate configuration in rung")

// complete transitions the RUNNING job matching config to COMPLETED with
// the given loss, inserts it into the sorted completed view, and
// recomputes promotion eligibility. Returns coreerr.ErrUnknownJob if no
// RUNNING job matches.
func (r *Rung) complete(key string, loss float64) (*Job, error) {
	var job *Job
	for _, j := range r.jobs {
		if j.Config.Key() == key && j.Status == Running {
			job = j
			break
		}
	}
	if job == nil {
		return nil, coreerr.ErrUnknownJob
	}
	job.Status = Completed
	job.Loss = loss
	job.seq = r.nextSeq
	r.nextSeq++
	r.recordCompletion(job)
	return job, nil
}

// recordCompletion inserts job into the sorted-by-loss completed slice
// and updates eligibility, mirroring pkg/searcher/asha.go's
// rung.promotionsAsync: the number of best trials that should have been
// promoted so far can only stay the same or grow by one per completion.
func (r *Rung) recordCompletion(job *Job) {
	oldNumPromote := int(float64(len(r.completed)) / r.eta)
	numPromote := int(float64(len(r.completed)+1) / r.eta)

	insertIndex := sort.Search(len(r.completed), func(i int) bool {
		return r.completed[i].Loss > job.Loss
	})
	r.completed = append(r.completed, nil)
	copy(r.completed[insertIndex+1:], r.completed[insertIndex:])
	r.completed[insertIndex] = job

	switch {
	case insertIndex < numPromote:
		job.eligible = true
	case numPromote != oldNumPromote && !r.completed[oldNumPromote].eligible && r.completed[oldNumPromote].Status == Completed:
		r.completed[oldNumPromote].eligible = true
	}
}

// firstEligible returns the best-loss COMPLETED, eligible, not-yet-
// promoted job in this rung, or nil. Scanning the sorted completed slice
// means ties and multiple simultaneously-eligible jobs resolve toward
// the best performer first.
func (r *Rung) firstEligible() *Job {
	for _, j := range r.completed {
		if j.Status == Completed && j.eligible {
			return j
		}
	}
	return nil
}

// markPromoted flips a COMPLETED+eligible job to PROMOTED, the
// COMPLETED → PROMOTED transition of spec.md §3.
func (j *Job) markPromoted() { j.Status = Promoted }
