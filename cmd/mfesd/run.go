package main

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/yezoli/mfes-go/internal/config"
	"github.com/yezoli/mfes-go/internal/configspace"
	"github.com/yezoli/mfes-go/internal/coordinator"
	"github.com/yezoli/mfes-go/internal/corelog"
	"github.com/yezoli/mfes-go/internal/ensemble"
	"github.com/yezoli/mfes-go/internal/metrics"
	"github.com/yezoli/mfes-go/internal/persist"
	"github.com/yezoli/mfes-go/internal/regressor"
	"github.com/yezoli/mfes-go/internal/simworker"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		jobs       int
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a search against the built-in demo objective",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(configPath, jobs, workers)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults apply when omitted)")
	cmd.Flags().IntVar(&jobs, "jobs", 50, "total number of demo-objective evaluations to run")
	cmd.Flags().IntVar(&workers, "workers", simworker.DefaultWorkerCount(), "number of concurrent demo workers")
	return cmd
}

// demoSpace is a small two-dimensional continuous domain used by the
// "run" subcommand's smoke-test objective; mfesd ships no production
// objective of its own, since what to evaluate is always caller-specific.
func demoSpace() *configspace.Space {
	return configspace.New(
		configspace.Dimension{Name: "x0", Kind: configspace.Float, Low: -5, High: 5},
		configspace.Dimension{Name: "x1", Kind: configspace.Float, Low: -5, High: 5},
	)
}

// demoObjective is a sum-of-squares bowl plus a deterministic 0.1/budget
// offset that shrinks as the budget grows, standing in for a real
// multi-fidelity evaluation (lower budgets are coarser approximations of
// the top-fidelity loss).
func demoObjective(cfg configspace.Config, budget float64, _ string) (simworker.Result, error) {
	x0 := cfg.Get("x0").(float64)
	x1 := cfg.Get("x1").(float64)
	loss := x0*x0 + x1*x1
	if budget > 0 {
		loss += (1.0 / budget) * 0.1
	}
	return simworker.Result{Loss: loss}, nil
}

func runSearch(configPath string, jobs, workers int) error {
	cfg := config.Default(81)
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	log := corelog.NewZerolog(os.Stderr)
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	sink := persist.FileSink{Dir: cfg.WeightSnapshotsDir, MethodName: cfg.WeightMethod}

	newRegressor := ensemble.NewRegressor(func() regressor.Regressor {
		return regressor.New(regressor.DefaultConfig())
	})

	coord, err := coordinator.New(demoSpace(), cfg.Build(), newRegressor, log, sink)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	coord.SetMetrics(met)

	worker := simworker.New(demoObjective, "", log)
	if cfg.TimeLimitPerTrial > 0 {
		worker.TimeLimit = time.Duration(cfg.TimeLimitPerTrial * float64(time.Second))
	}
	if cfg.RuntimeLimit > 0 {
		worker.RuntimeLimit = time.Duration(cfg.RuntimeLimit * float64(time.Second))
	}
	if err := worker.RunPool(coord, workers, jobs); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	bestCfg, bestLoss, found := coord.Incumbent()
	if !found {
		fmt.Println("no top-fidelity observation recorded")
		return nil
	}
	met.IncumbentLoss(bestLoss)
	fmt.Printf("incumbent loss=%v config=%s\n", bestLoss, bestCfg.Key())
	return nil
}
