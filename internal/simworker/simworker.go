// Package simworker implements an in-process evaluation harness matching
// the distributed worker's compute(config_id, config, budget,
// working_directory) contract (original_source's litebo worker.py): a
// config_id triplet (iteration, budget index, running index), a working
// directory unique to the configuration so lower-budget intermediate
// results can be reused at a larger budget, and a result of a minimized
// loss plus an opaque info map.
package simworker

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yezoli/mfes-go/internal/configspace"
	"github.com/yezoli/mfes-go/internal/coordinator"
	"github.com/yezoli/mfes-go/internal/corelog"
	"github.com/yezoli/mfes-go/internal/coreerr"
)

// JobID mirrors the (iteration, budget index, running index) triplet
// from the distributed worker contract. mfes-go's own Coordinator does
// not need this identity internally (a completion is keyed by
// (config, budget) directly), but external worker implementations and
// logs can use it to correlate work the way the original protocol does.
type JobID struct {
	Iteration    int
	BudgetIndex  int
	RunningIndex int
}

func (id JobID) String() string {
	return fmt.Sprintf("(%d,%d,%d)", id.Iteration, id.BudgetIndex, id.RunningIndex)
}

// Result is the two-field compute() return value: a loss to minimize and
// an arbitrary info payload.
type Result struct {
	Loss float64
	Info map[string]any
}

// Objective evaluates one configuration at one budget. Implementations
// may use WorkingDir to persist intermediate state across budgets for
// the same configuration (the working_directory contract).
type Objective func(cfg configspace.Config, budget float64, workingDir string) (Result, error)

// Worker runs an Objective against jobs handed out by a Coordinator,
// creating a working directory per configuration under Root. TimeLimit,
// when non-zero, bounds a single Compute call the way the distributed
// worker's own timeout parameter bounds one compute() invocation before
// the scheduler gives up on it and reports a failure instead.
type Worker struct {
	Objective Objective
	Root      string
	TimeLimit time.Duration

	// RuntimeLimit, when non-zero, bounds the wall-clock duration of an
	// entire RunPool call rather than one job, mirroring the distilled
	// system's overall runtime_limit knob: once exceeded, no further jobs
	// are dispatched, but jobs already in flight are allowed to finish.
	RuntimeLimit time.Duration

	log corelog.Logger
}

// New returns a Worker that stores per-configuration working directories
// under root (created lazily, one subdirectory per configspace.Config.Key()).
func New(objective Objective, root string, log corelog.Logger) *Worker {
	if log == nil {
		log = corelog.Noop()
	}
	return &Worker{Objective: objective, Root: root, log: log}
}

// Compute evaluates cfg at budget, creating its working directory first.
// If TimeLimit is set and the Objective has not returned within it,
// Compute gives up and returns coreerr.ErrWorkerFailure; the Objective
// goroutine is abandoned rather than forcibly killed, matching Go's lack
// of a portable way to cancel an already-running call that does not
// itself observe a context.
func (w *Worker) Compute(id JobID, cfg configspace.Config, budget float64) (Result, error) {
	dir := filepath.Join(w.Root, cfg.Key())
	if w.Root != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("simworker: working dir %s: %w", dir, err)
		}
	}
	w.log.Debug("computing job", "id", id.String(), "budget", budget)

	if w.TimeLimit <= 0 {
		return w.compute(id, cfg, budget, dir)
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := w.compute(id, cfg, budget, dir)
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-time.After(w.TimeLimit):
		w.log.Warn("job exceeded time_limit_per_trial", "id", id.String(), "limit", w.TimeLimit.String())
		return Result{}, fmt.Errorf("simworker: job %s exceeded %s: %w", id.String(), w.TimeLimit, coreerr.ErrWorkerFailure)
	}
}

func (w *Worker) compute(id JobID, cfg configspace.Config, budget float64, dir string) (Result, error) {
	res, err := w.Objective(cfg, budget, dir)
	if err != nil {
		w.log.Warn("job failed", "id", id.String(), "error", err.Error())
		return Result{}, err
	}
	return res, nil
}

// RunPool drives n goroutines pulling (config, budget) pairs from coord
// via Next/Observe until totalJobs evaluations have been dispatched,
// mirroring the worker-pool dispatch pattern of pulling work off a shared
// counter under sync/atomic rather than a per-job channel (grounded on
// the concurrent round-robin evaluator in the pack's parameter-fitting
// CLI). coord.Next/Observe are not safe for concurrent use (spec.md
// requires external serialization); RunPool provides that serialization
// via mu.
func (w *Worker) RunPool(coord *coordinator.Coordinator, n int, totalJobs int) error {
	if n < 1 {
		n = 1
	}
	var (
		mu         sync.Mutex
		dispatched int64
		wg         sync.WaitGroup
		firstErr   error
		errOnce    sync.Once
	)
	start := time.Now()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if atomic.AddInt64(&dispatched, 1) > int64(totalJobs) {
					atomic.AddInt64(&dispatched, -1)
					return
				}
				if w.RuntimeLimit > 0 && time.Since(start) > w.RuntimeLimit {
					atomic.AddInt64(&dispatched, -1)
					return
				}

				mu.Lock()
				cfg, budget, _, err := coord.Next()
				mu.Unlock()
				if err != nil {
					errOnce.Do(func() { firstErr = fmt.Errorf("simworker: next: %w", err) })
					return
				}

				res, compErr := w.Compute(JobID{RunningIndex: workerID}, cfg, budget)

				mu.Lock()
				if compErr != nil {
					err = coord.ObserveFailure(cfg, budget)
				} else {
					err = coord.Observe(cfg, res.Loss, budget)
				}
				mu.Unlock()
				if err != nil {
					errOnce.Do(func() { firstErr = fmt.Errorf("simworker: observe: %w", err) })
					return
				}
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}

// DefaultWorkerCount returns a worker-pool size tied to the host's CPU
// count, the same heuristic the pack's parameter-fitting CLI uses for
// its evaluation pool.
func DefaultWorkerCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
