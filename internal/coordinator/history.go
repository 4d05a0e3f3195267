package coordinator

import "github.com/yezoli/mfes-go/internal/configspace"

// HistoryContainer accumulates top-fidelity (config, loss) observations
// for the acquisition optimizer, mirroring the distilled system's
// HistoryContainer (task_id=method_name in the original; here it is
// scoped to a single Coordinator instance, so no task id is needed).
type HistoryContainer struct {
	configs []configspace.Config
	losses  []float64
}

// Add records an observation.
func (h *HistoryContainer) Add(cfg configspace.Config, loss float64) {
	h.configs = append(h.configs, cfg)
	h.losses = append(h.losses, loss)
}

// Len reports the number of observations recorded, satisfying
// acquisition.HistoryContainer.
func (h *HistoryContainer) Len() int { return len(h.losses) }

// Data returns a copy of the recorded (config, loss) pairs.
func (h *HistoryContainer) Data() ([]configspace.Config, []float64) {
	return append([]configspace.Config(nil), h.configs...), append([]float64(nil), h.losses...)
}

// dataStore is the per-budget observation store D[r]=(X[r],Y[r])
// (spec.md §3): accumulated across all jobs that completed at budget r.
type dataStore struct {
	byBudget map[float64]*budgetData
}

type budgetData struct {
	configs []configspace.Config
	losses  []float64
}

func newDataStore() *dataStore {
	return &dataStore{byBudget: make(map[float64]*budgetData)}
}

func (d *dataStore) add(budget float64, cfg configspace.Config, loss float64) {
	bd, ok := d.byBudget[budget]
	if !ok {
		bd = &budgetData{}
		d.byBudget[budget] = bd
	}
	bd.configs = append(bd.configs, cfg)
	bd.losses = append(bd.losses, loss)
}

func (d *dataStore) get(budget float64) (configs []configspace.Config, losses []float64) {
	bd, ok := d.byBudget[budget]
	if !ok {
		return nil, nil
	}
	return bd.configs, bd.losses
}

func (d *dataStore) len(budget float64) int {
	bd, ok := d.byBudget[budget]
	if !ok {
		return 0
	}
	return len(bd.losses)
}
