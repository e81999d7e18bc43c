package opt

import "sync"

// RunMetrics summarizes one solver run on an instance.
type RunMetrics struct {
	Runs       int     `json:"runs"`
	Feasible   int     `json:"feasible"`
	BestCost   int     `json:"bestCost"`
	LastCost   int     `json:"lastCost"`
	LastMillis float64 `json:"lastMillis"`
}

type key struct {
	Instance string
	Algo     string
}

var (
	mu    sync.Mutex
	store = map[key]RunMetrics{}
)

// RecordRun folds a solution into the per-instance, per-algorithm metrics.
func RecordRun(instanceID string, sol Solution) RunMetrics {
	mu.Lock()
	defer mu.Unlock()
	k := key{Instance: instanceID, Algo: sol.Algorithm}
	m := store[k]
	m.Runs++
	m.LastMillis = float64(sol.Elapsed.Microseconds()) / 1000
	if sol.Report.Feasible {
		m.LastCost = sol.Report.Cost
		if m.Feasible == 0 || sol.Report.Cost < m.BestCost {
			m.BestCost = sol.Report.Cost
		}
		m.Feasible++
	}
	store[k] = m
	return m
}

// GetMetrics returns the metrics of every algorithm run on instanceID.
func GetMetrics(instanceID string) map[string]RunMetrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]RunMetrics{}
	for k, v := range store {
		if k.Instance == instanceID {
			out[k.Algo] = v
		}
	}
	return out
}

// ForgetMetrics drops all metrics recorded for instanceID.
func ForgetMetrics(instanceID string) {
	mu.Lock()
	defer mu.Unlock()
	for k := range store {
		if k.Instance == instanceID {
			delete(store, k)
		}
	}
}
