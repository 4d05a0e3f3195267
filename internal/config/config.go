// Package config loads and validates the knobs fixed at Coordinator
// construction (spec.md §6) from a YAML file, the config serialization
// format the pack converges on (niceyeti-tabular's viper/yaml stack,
// sawpanic-cryptorun's yaml-based config).
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yezoli/mfes-go/internal/coordinator"
	"github.com/yezoli/mfes-go/internal/ensemble"
	"github.com/yezoli/mfes-go/internal/weightlearn"
)

// Config is the on-disk/CLI-facing representation of spec.md §6's
// knobs. String fields for enums (WeightMethod, FusionMethod) keep the
// file human-writable; Build translates them into coordinator.Options.
type Config struct {
	R                   float64   `yaml:"r"`
	Eta                 float64   `yaml:"eta"`
	SkipOuterLoop       int       `yaml:"skip_outer_loop"`
	RandProb            float64   `yaml:"rand_prob"`
	InitWeight          []float64 `yaml:"init_weight"`
	UpdateEnable        bool      `yaml:"update_enable"`
	WeightMethod        string    `yaml:"weight_method"` // rank_loss_p_norm | rank_loss_prob
	FusionMethod        string    `yaml:"fusion_method"` // idp | gpoe
	PowerNum            float64   `yaml:"power_num"`
	RandomState         uint64    `yaml:"random_state"`
	TimeLimitPerTrial   float64   `yaml:"time_limit_per_trial"`
	RuntimeLimit        float64   `yaml:"runtime_limit"`
	WeightSnapshotsDir  string    `yaml:"weight_snapshots_dir"`
}

// Default returns spec.md §6's defaults for the given max budget R.
func Default(r float64) Config {
	return Config{
		R:                  r,
		Eta:                3,
		RandProb:           0.3,
		UpdateEnable:       true,
		WeightMethod:       "rank_loss_p_norm",
		FusionMethod:       "idp",
		PowerNum:           3,
		RandomState:        1,
		TimeLimitPerTrial:  600,
		WeightSnapshotsDir: "saved_weights",
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default(1)
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the construction-time invariants spec.md assumes:
// weights sum to 1 (I3), R > eta > 1, and known enum values.
func (c Config) Validate() error {
	if c.Eta <= 1 {
		return fmt.Errorf("config: eta must be > 1, got %v", c.Eta)
	}
	if c.R <= c.Eta {
		return fmt.Errorf("config: R must be > eta, got R=%v eta=%v", c.R, c.Eta)
	}
	if c.SkipOuterLoop < 0 {
		return fmt.Errorf("config: skip_outer_loop must be >= 0, got %d", c.SkipOuterLoop)
	}
	if c.RandProb < 0 || c.RandProb > 1 {
		return fmt.Errorf("config: rand_prob must be in [0,1], got %v", c.RandProb)
	}
	if c.InitWeight != nil {
		sum := 0.0
		for _, w := range c.InitWeight {
			if w < 0 {
				return fmt.Errorf("config: init_weight entries must be non-negative")
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			return fmt.Errorf("config: init_weight must sum to 1, got %v", sum)
		}
	}
	switch c.WeightMethod {
	case "rank_loss_p_norm", "rank_loss_prob":
	default:
		return fmt.Errorf("config: unknown weight_method %q: %w", c.WeightMethod, weightlearn.ErrInvalidMethod)
	}
	switch c.FusionMethod {
	case "idp", "gpoe":
	default:
		return fmt.Errorf("config: unknown fusion_method %q", c.FusionMethod)
	}
	return nil
}

// Build translates the user-facing Config into coordinator.Options.
func (c Config) Build() coordinator.Options {
	opts := coordinator.DefaultOptions(c.R)
	opts.Eta = c.Eta
	opts.SkipOuterLoop = c.SkipOuterLoop
	opts.RandProb = c.RandProb
	opts.InitWeight = c.InitWeight
	opts.UpdateEnable = c.UpdateEnable
	opts.PowerNum = c.PowerNum
	opts.RandomState = c.RandomState

	if c.WeightMethod == "rank_loss_prob" {
		opts.WeightMethod = weightlearn.RankLossProb
	} else {
		opts.WeightMethod = weightlearn.RankLossPNorm
	}
	if c.FusionMethod == "gpoe" {
		opts.FusionMethod = ensemble.GPOE
	} else {
		opts.FusionMethod = ensemble.IDP
	}
	return opts
}
