// Package metrics exports optional Coordinator counters/gauges through
// prometheus/client_golang. A nil *Metrics records nothing, and one from
// Noop has collectors that are never registered, so neither exports
// anything; the core has no hard dependency on a metrics backend being
// present.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps the Coordinator's observability surface.
type Metrics struct {
	jobsCompleted   *prometheus.CounterVec
	weightUpdateID  prometheus.Gauge
	incumbentLoss   prometheus.Gauge
	weightChangedCt prometheus.Counter
}

// New registers the collectors against reg and returns a Metrics that
// updates them. Pass a fresh prometheus.NewRegistry() in production, or
// use Noop() in tests and library callers that don't want metrics.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mfes_jobs_completed_total",
			Help: "Number of jobs that reached COMPLETED, by budget.",
		}, []string{"budget"}),
		weightUpdateID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfes_weight_update_id",
			Help: "Monotonically increasing weight-update counter.",
		}),
		incumbentLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfes_incumbent_loss",
			Help: "Best top-fidelity loss observed so far.",
		}),
		weightChangedCt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mfes_weight_changed_total",
			Help: "Number of times ensemble weights were recomputed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.jobsCompleted, m.weightUpdateID, m.incumbentLoss, m.weightChangedCt)
	}
	return m
}

// Noop returns a Metrics whose methods are safe to call but record
// nothing.
func Noop() *Metrics { return New(nil) }

// JobCompleted records one COMPLETED job at the given budget.
func (m *Metrics) JobCompleted(budget string) {
	if m == nil {
		return
	}
	m.jobsCompleted.WithLabelValues(budget).Inc()
}

// WeightUpdateID sets the current weight-update counter.
func (m *Metrics) WeightUpdateID(id int) {
	if m == nil {
		return
	}
	m.weightUpdateID.Set(float64(id))
}

// IncumbentLoss sets the best top-fidelity loss observed so far.
func (m *Metrics) IncumbentLoss(loss float64) {
	if m == nil {
		return
	}
	m.incumbentLoss.Set(loss)
}

// WeightChanged increments the weight-change counter.
func (m *Metrics) WeightChanged() {
	if m == nil {
		return
	}
	m.weightChangedCt.Inc()
}
