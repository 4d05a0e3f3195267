// Package configspace describes the search domain the core samples
// configurations from (spec.md §4.1, C1). A Space is a fixed ordered list
// of Dimensions; a Config is a structural, comparable value drawn from it
// with a canonical dense numeric encoding.
package configspace

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/yezoli/mfes-go/internal/coreerr"
)

// Kind tags the type of a Dimension, mirroring the type_tags convention
// regressors that need bounds expect (spec.md §4.1 types_and_bounds).
type Kind int

const (
	// Float is a continuous dimension sampled uniformly in [Low, High].
	Float Kind = iota
	// Int is an integer dimension sampled uniformly in [Low, High].
	Int
	// Categorical is an unordered dimension over Categories.
	Categorical
)

// Dimension describes one axis of the search domain.
type Dimension struct {
	Name       string
	Kind       Kind
	Low, High  float64  // meaningful for Float/Int
	Categories []string // meaningful for Categorical
}

// Space is the ordered, immutable domain description.
type Space struct {
	dims []Dimension
}

// New builds a Space over the given dimensions, in the order they will
// be encoded.
func New(dims ...Dimension) *Space {
	cp := make([]Dimension, len(dims))
	copy(cp, dims)
	return &Space{dims: cp}
}

// Dims returns the ordered dimensions.
func (s *Space) Dims() []Dimension { return s.dims }

// Config is an opaque structured value drawn from a Space. Equality is
// structural: two Configs with the same values for every dimension are
// equal, regardless of how they were produced.
type Config struct {
	values map[string]any
}

// Get returns the raw value assigned to a dimension.
func (c Config) Get(name string) any { return c.values[name] }

// Key returns a canonical string representation suitable for use as a
// map key (set membership, deduplication) — structural equality reduced
// to string identity.
func (c Config) Key() string {
	names := make([]string, 0, len(c.values))
	for n := range c.values {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(n)
		sb.WriteByte('=')
		fmt.Fprintf(&sb, "%v", c.values[n])
		sb.WriteByte(';')
	}
	return sb.String()
}

// Equal reports structural equality.
func (c Config) Equal(other Config) bool { return c.Key() == other.Key() }

// maxSampleRetries bounds rejection sampling against an excluded set
// before Sample degrades to returning a duplicate (spec.md §4.1).
const maxSampleRetries = 100

// Sample draws a uniform random Config, rejecting any value whose Key is
// present in excluded. After maxSampleRetries failed draws it degrades:
// it returns the last drawn (possibly duplicate) Config together with
// coreerr.ErrExhaustedSampling so the caller can log a warning and
// proceed, per spec.md's "degrades to returning the best available
// duplicate with a warning."
func (s *Space) Sample(rng *rand.Rand, excluded map[string]struct{}) (Config, error) {
	var cfg Config
	for attempt := 0; attempt < maxSampleRetries; attempt++ {
		cfg = s.sampleOne(rng)
		if _, dup := excluded[cfg.Key()]; !dup {
			return cfg, nil
		}
	}
	return cfg, fmt.Errorf("sample after %d attempts: %w", maxSampleRetries, coreerr.ErrExhaustedSampling)
}

func (s *Space) sampleOne(rng *rand.Rand) Config {
	values := make(map[string]any, len(s.dims))
	for _, d := range s.dims {
		switch d.Kind {
		case Float:
			values[d.Name] = d.Low + rng.Float64()*(d.High-d.Low)
		case Int:
			lo, hi := int64(d.Low), int64(d.High)
			values[d.Name] = lo + int64(rng.IntN(int(hi-lo+1)))
		case Categorical:
			values[d.Name] = d.Categories[rng.IntN(len(d.Categories))]
		}
	}
	return Config{values: values}
}

// Encode produces the canonical dense numeric encoding vec(x) ∈ ℝ^d:
// Float/Int dimensions pass through as their numeric value; Categorical
// dimensions are ordinal-encoded as the index into Categories. Encode is
// deterministic and pure.
func (s *Space) Encode(c Config) []float64 {
	vec := make([]float64, len(s.dims))
	for i, d := range s.dims {
		v := c.values[d.Name]
		switch d.Kind {
		case Float:
			vec[i] = v.(float64)
		case Int:
			vec[i] = float64(v.(int64))
		case Categorical:
			cat, _ := v.(string)
			idx := 0
			for j, name := range d.Categories {
				if name == cat {
					idx = j
					break
				}
			}
			vec[i] = float64(idx)
		}
	}
	return vec
}

// TypesAndBounds returns per-dimension metadata for regressors that need
// it (spec.md §4.1): typeTags[i] is 0 for a continuous/integer dimension
// and N>0 (the cardinality) for a categorical one, following the
// get_types convention the distilled system's regressor relies on.
// bounds[i] is [low, high] for numeric dimensions and [0, N-1] for
// categorical ones encoded ordinally.
func (s *Space) TypesAndBounds() (typeTags []int, bounds [][2]float64) {
	typeTags = make([]int, len(s.dims))
	bounds = make([][2]float64, len(s.dims))
	for i, d := range s.dims {
		switch d.Kind {
		case Float, Int:
			typeTags[i] = 0
			bounds[i] = [2]float64{d.Low, d.High}
		case Categorical:
			typeTags[i] = len(d.Categories)
			bounds[i] = [2]float64{0, float64(len(d.Categories) - 1)}
		}
	}
	return typeTags, bounds
}

// NewConfig builds a Config directly from a value map, for use by
// deserializers and tests that need a specific point rather than a
// random sample.
func NewConfig(values map[string]any) Config {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Config{values: cp}
}

