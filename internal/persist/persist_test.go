package persist

import (
	"path/filepath"
	"testing"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	sink := FileSink{Dir: dir, MethodName: "rank_loss_p_norm"}

	history := [][]float64{
		{0.34, 0.33, 0.33},
		{0.5, 0.3, 0.2},
		{0.6, 0.25, 0.15},
	}
	if err := sink.Write(history); err != nil {
		t.Fatalf("write: %v", err)
	}

	path := filepath.Join(dir, "mfes_weights_rank_loss_p_norm.bin")
	rows, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != len(history) {
		t.Fatalf("expected %d rows, got %d", len(history), len(rows))
	}
	for i, row := range rows {
		for j, v := range row {
			if v != history[i][j] {
				t.Fatalf("row %d col %d = %v, want %v", i, j, v, history[i][j])
			}
		}
	}
}

func TestWriteOverwritesWithFullHistory(t *testing.T) {
	dir := t.TempDir()
	sink := FileSink{Dir: dir, MethodName: "rank_loss_prob"}

	if err := sink.Write([][]float64{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write([][]float64{{1, 0}, {0.5, 0.5}}); err != nil {
		t.Fatal(err)
	}

	rows, err := Read(filepath.Join(dir, "mfes_weights_rank_loss_prob.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected the second write to contain the full 2-row history, got %d rows", len(rows))
	}
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	dir := t.TempDir()
	sink := FileSink{Dir: dir, MethodName: "ragged"}
	err := sink.Write([][]float64{{1, 2}, {1}})
	if err == nil {
		t.Fatal("expected an error for ragged weight rows")
	}
}

func TestWriteOfEmptyHistoryIsANoop(t *testing.T) {
	dir := t.TempDir()
	sink := FileSink{Dir: dir, MethodName: "empty"}
	if err := sink.Write(nil); err != nil {
		t.Fatalf("expected no error writing an empty history, got %v", err)
	}
}
