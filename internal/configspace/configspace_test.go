package configspace

import (
	"math/rand/v2"
	"testing"
)

func testSpace() *Space {
	return New(
		Dimension{Name: "lr", Kind: Float, Low: 0, High: 1},
		Dimension{Name: "depth", Kind: Int, Low: 1, High: 5},
		Dimension{Name: "kernel", Kind: Categorical, Categories: []string{"rbf", "linear"}},
	)
}

func TestSampleWithinBounds(t *testing.T) {
	s := testSpace()
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		cfg, err := s.Sample(rng, nil)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		lr := cfg.Get("lr").(float64)
		if lr < 0 || lr > 1 {
			t.Fatalf("lr out of bounds: %v", lr)
		}
		depth := cfg.Get("depth").(int64)
		if depth < 1 || depth > 5 {
			t.Fatalf("depth out of bounds: %v", depth)
		}
		kernel := cfg.Get("kernel").(string)
		if kernel != "rbf" && kernel != "linear" {
			t.Fatalf("unexpected kernel: %v", kernel)
		}
	}
}

func TestSampleExcludesKnownKeys(t *testing.T) {
	s := New(Dimension{Name: "x", Kind: Categorical, Categories: []string{"a", "b"}})
	rng := rand.New(rand.NewPCG(1, 2))
	excluded := map[string]struct{}{"x=a;": {}}
	for i := 0; i < 20; i++ {
		cfg, err := s.Sample(rng, excluded)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if cfg.Get("x").(string) != "b" {
			t.Fatalf("expected only the non-excluded category, got %v", cfg.Get("x"))
		}
	}
}

func TestSampleDegradesWhenExhausted(t *testing.T) {
	s := New(Dimension{Name: "x", Kind: Categorical, Categories: []string{"only"}})
	rng := rand.New(rand.NewPCG(1, 2))
	excluded := map[string]struct{}{"x=only;": {}}
	_, err := s.Sample(rng, excluded)
	if err == nil {
		t.Fatal("expected ErrExhaustedSampling when every draw is excluded")
	}
}

func TestKeyEqualityIsStructural(t *testing.T) {
	a := NewConfig(map[string]any{"x": 1.0, "y": "a"})
	b := NewConfig(map[string]any{"y": "a", "x": 1.0})
	if !a.Equal(b) {
		t.Fatalf("expected structurally identical configs to be equal: %q vs %q", a.Key(), b.Key())
	}
	c := NewConfig(map[string]any{"x": 2.0, "y": "a"})
	if a.Equal(c) {
		t.Fatal("expected differing configs to compare unequal")
	}
}

func TestEncodeOrdersByDimension(t *testing.T) {
	s := testSpace()
	cfg := NewConfig(map[string]any{"lr": 0.5, "depth": int64(3), "kernel": "linear"})
	vec := s.Encode(cfg)
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim encoding, got %d", len(vec))
	}
	if vec[0] != 0.5 || vec[1] != 3 || vec[2] != 1 {
		t.Fatalf("unexpected encoding: %v", vec)
	}
}

func TestTypesAndBounds(t *testing.T) {
	s := testSpace()
	types, bounds := s.TypesAndBounds()
	if types[0] != 0 || types[1] != 0 || types[2] != 2 {
		t.Fatalf("unexpected type tags: %v", types)
	}
	if bounds[2] != [2]float64{0, 1} {
		t.Fatalf("unexpected categorical bounds: %v", bounds[2])
	}
}
