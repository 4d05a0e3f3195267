// Package persist implements the weight-snapshot artifact named in
// spec.md §6: "an array of shape (n_updates, s_max+1); format is a
// self-describing numeric dump; endianness/precision are not part of
// the contract, only that it round-trips via the same writer/reader."
// gonum's mat.Dense binary marshaling is exactly that contract, so it is
// used directly rather than hand-rolling a numeric file format.
package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// FileSink writes weight-history snapshots to
// <dir>/mfes_weights_<method>.bin each time Write is called, overwriting
// the previous snapshot with the full accumulated history (mirroring
// the distilled system's np.save of the whole hist_weights array on
// every update).
type FileSink struct {
	Dir        string
	MethodName string
}

// Write persists the full weight history as a (n_updates, cols)
// mat.Dense binary blob.
func (s FileSink) Write(histWeights [][]float64) error {
	if len(histWeights) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("persist: mkdir %s: %w", s.Dir, err)
	}

	cols := len(histWeights[0])
	flat := make([]float64, 0, len(histWeights)*cols)
	for i, row := range histWeights {
		if len(row) != cols {
			return fmt.Errorf("persist: row %d has %d entries, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	dense := mat.NewDense(len(histWeights), cols, flat)

	blob, err := dense.MarshalBinary()
	if err != nil {
		return fmt.Errorf("persist: marshal: %w", err)
	}

	path := s.path()
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("persist: write %s: %w", path, err)
	}
	return nil
}

func (s FileSink) path() string {
	return filepath.Join(s.Dir, fmt.Sprintf("mfes_weights_%s.bin", s.MethodName))
}

// Read loads a weight history previously written by FileSink.Write
// (or any writer using the same mat.Dense binary format), returning one
// row per update.
func Read(path string) ([][]float64, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persist: read %s: %w", path, err)
	}
	var dense mat.Dense
	if err := dense.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("persist: unmarshal %s: %w", path, err)
	}
	rows, cols := dense.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = dense.At(i, j)
		}
		out[i] = row
	}
	return out, nil
}
