// Package coreerr defines the sentinel error kinds the core surfaces to its
// callers. Errors are pure — no infrastructure dependency — and are always
// wrapped with fmt.Errorf("...: %w", ...) at the call site rather than typed
// as distinct error structs, so no error type escapes the core boundary.
package coreerr

import "errors"

var (
	// ErrUnknownJob means observe could not locate a matching RUNNING job.
	ErrUnknownJob = errors.New("no running job matches this config at this budget")

	// ErrExhaustedSampling means the configuration space could not produce
	// a non-excluded sample within its retry budget.
	ErrExhaustedSampling = errors.New("configuration space exhausted: no non-excluded sample found")

	// ErrWorkerFailure means a worker returned an error or timed out.
	ErrWorkerFailure = errors.New("worker reported a failure")

	// ErrDegenerateWeights means the weight-learning denominator was zero
	// or non-finite; previous weights were retained.
	ErrDegenerateWeights = errors.New("weight update denominator is zero or non-finite")

	// ErrInsufficientData means a weight update was requested with too few
	// top-fidelity observations; weights were left unchanged.
	ErrInsufficientData = errors.New("insufficient top-fidelity observations for a weight update")
)
