package simworker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yezoli/mfes-go/internal/configspace"
	"github.com/yezoli/mfes-go/internal/coordinator"
	"github.com/yezoli/mfes-go/internal/coreerr"
	"github.com/yezoli/mfes-go/internal/regressor"
)

func demoSpace() *configspace.Space {
	return configspace.New(
		configspace.Dimension{Name: "x0", Kind: configspace.Float, Low: -5, High: 5},
		configspace.Dimension{Name: "x1", Kind: configspace.Float, Low: -5, High: 5},
	)
}

func sphereObjective(cfg configspace.Config, budget float64, _ string) (Result, error) {
	x0 := cfg.Get("x0").(float64)
	x1 := cfg.Get("x1").(float64)
	return Result{Loss: x0*x0 + x1*x1}, nil
}

func TestComputeCreatesWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	w := New(sphereObjective, root, nil)
	cfg := configspace.NewConfig(map[string]any{"x0": 1.0, "x1": 2.0})

	res, err := w.Compute(JobID{Iteration: 0, BudgetIndex: 0, RunningIndex: 0}, cfg, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Loss != 5 {
		t.Fatalf("expected loss 1^2+2^2=5, got %v", res.Loss)
	}

	dir := filepath.Join(root, cfg.Key())
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected working directory %s to exist, got err=%v", dir, err)
	}
}

func TestComputePropagatesObjectiveError(t *testing.T) {
	w := New(func(configspace.Config, float64, string) (Result, error) {
		return Result{}, errors.New("boom")
	}, t.TempDir(), nil)
	_, err := w.Compute(JobID{}, configspace.NewConfig(nil), 1)
	if err == nil {
		t.Fatal("expected the objective's error to propagate")
	}
}

func TestRunPoolDrivesExactlyTotalJobs(t *testing.T) {
	var calls int
	counting := func(cfg configspace.Config, budget float64, dir string) (Result, error) {
		calls++
		return sphereObjective(cfg, budget, dir)
	}
	newReg := func() regressor.Regressor { return regressor.New(regressor.DefaultConfig()) }
	opts := coordinator.DefaultOptions(9)
	opts.Eta = 3
	coord, err := coordinator.New(demoSpace(), opts, newReg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := New(counting, t.TempDir(), nil)
	if err := w.RunPool(coord, 4, 30); err != nil {
		t.Fatalf("runpool: %v", err)
	}
	if calls != 30 {
		t.Fatalf("expected exactly 30 evaluations, got %d", calls)
	}
	if _, _, found := coord.Incumbent(); !found {
		t.Fatal("expected an incumbent after running the pool")
	}
}

func TestDefaultWorkerCountIsPositive(t *testing.T) {
	if DefaultWorkerCount() < 1 {
		t.Fatal("expected a positive default worker count")
	}
}

func TestComputeEnforcesTimeLimit(t *testing.T) {
	w := New(func(configspace.Config, float64, string) (Result, error) {
		time.Sleep(50 * time.Millisecond)
		return Result{}, nil
	}, t.TempDir(), nil)
	w.TimeLimit = 5 * time.Millisecond

	_, err := w.Compute(JobID{}, configspace.NewConfig(nil), 1)
	if !errors.Is(err, coreerr.ErrWorkerFailure) {
		t.Fatalf("expected ErrWorkerFailure for a job exceeding TimeLimit, got %v", err)
	}
}

func TestComputeWithinTimeLimitSucceeds(t *testing.T) {
	w := New(sphereObjective, t.TempDir(), nil)
	w.TimeLimit = time.Second

	cfg := configspace.NewConfig(map[string]any{"x0": 1.0, "x1": 1.0})
	res, err := w.Compute(JobID{}, cfg, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Loss != 2 {
		t.Fatalf("expected loss 2, got %v", res.Loss)
	}
}

func TestRunPoolStopsDispatchingPastRuntimeLimit(t *testing.T) {
	newReg := func() regressor.Regressor { return regressor.New(regressor.DefaultConfig()) }
	opts := coordinator.DefaultOptions(9)
	opts.Eta = 3
	coord, err := coordinator.New(demoSpace(), opts, newReg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	w := New(func(cfg configspace.Config, budget float64, dir string) (Result, error) {
		time.Sleep(2 * time.Millisecond)
		return sphereObjective(cfg, budget, dir)
	}, t.TempDir(), nil)
	w.RuntimeLimit = 10 * time.Millisecond

	// totalJobs is set far higher than what 10ms of dispatching could
	// possibly complete; RunPool must still return promptly instead of
	// running them all.
	if err := w.RunPool(coord, 2, 100000); err != nil {
		t.Fatalf("runpool: %v", err)
	}
}
