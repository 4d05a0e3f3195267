package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.JobCompleted("3")
	m.WeightUpdateID(5)
	m.IncumbentLoss(1.25)
	m.WeightChanged()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 4 {
		t.Fatalf("expected 4 registered metric families, got %d", len(families))
	}

	var found bool
	for _, fam := range families {
		if fam.GetName() == "mfes_incumbent_loss" {
			found = true
			if got := fam.GetMetric()[0].GetGauge().GetValue(); got != 1.25 {
				t.Fatalf("expected incumbent loss gauge 1.25, got %v", got)
			}
		}
	}
	if !found {
		t.Fatal("mfes_incumbent_loss metric family not found")
	}
}

func TestNoopMethodsDoNotPanic(t *testing.T) {
	m := Noop()
	m.JobCompleted("1")
	m.WeightUpdateID(1)
	m.IncumbentLoss(1)
	m.WeightChanged()

	var nilMetrics *Metrics
	nilMetrics.JobCompleted("1")
	nilMetrics.WeightUpdateID(1)
	nilMetrics.IncumbentLoss(1)
	nilMetrics.WeightChanged()
}
