package coreerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelsAreWrappable(t *testing.T) {
	sentinels := []error{
		ErrUnknownJob,
		ErrExhaustedSampling,
		ErrWorkerFailure,
		ErrDegenerateWeights,
		ErrInsufficientData,
	}
	for _, s := range sentinels {
		wrapped := fmt.Errorf("context: %w", s)
		if !errors.Is(wrapped, s) {
			t.Fatalf("expected errors.Is to find %v through a wrap", s)
		}
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrUnknownJob,
		ErrExhaustedSampling,
		ErrWorkerFailure,
		ErrDegenerateWeights,
		ErrInsufficientData,
	}
	for i := range sentinels {
		for j := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(sentinels[i], sentinels[j]) {
				t.Fatalf("sentinels %d and %d should not match each other", i, j)
			}
		}
	}
}
