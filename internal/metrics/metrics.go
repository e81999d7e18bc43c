package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// SolverRuns counts solver runs by algorithm and outcome (feasible, infeasible, error)
	SolverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "slotting_solver_runs_total", Help: "Solver runs by algorithm and outcome."},
		[]string{"algorithm", "outcome"},
	)
	// SolverDuration tracks solver latency in milliseconds
	SolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "slotting_solver_duration_ms", Help: "Solver run latency in ms.", Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000}},
		[]string{"algorithm"},
	)
	// SolutionCost records the cost of feasible solutions
	SolutionCost = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "slotting_solution_cost", Help: "Picking cost of feasible solutions.", Buckets: prometheus.ExponentialBuckets(10, 4, 10)},
		[]string{"algorithm"},
	)
	// Checks counts checker invocations by result
	Checks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "slotting_checks_total", Help: "Solution checks by result."},
		[]string{"result"},
	)
	// Instances is the number of instances currently stored
	Instances = prometheus.NewGauge(prometheus.GaugeOpts{Name: "slotting_instances", Help: "Stored warehouse instances."})
	// RateLimited counts requests rejected by the rate limiter
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter."})
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(SolverRuns, SolverDuration, SolutionCost, Checks)
		Registry.MustRegister(Instances, RateLimited)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveSolve records one solver run. err != nil counts as an error outcome.
func ObserveSolve(algorithm string, millis float64, feasible bool, cost int, err error) {
	outcome := "infeasible"
	switch {
	case err != nil:
		outcome = "error"
	case feasible:
		outcome = "feasible"
		SolutionCost.WithLabelValues(algorithm).Observe(float64(cost))
	}
	SolverRuns.WithLabelValues(algorithm, outcome).Inc()
	SolverDuration.WithLabelValues(algorithm).Observe(millis)
}

// ObserveCheck records one checker call.
func ObserveCheck(feasible bool) {
	if feasible {
		Checks.WithLabelValues("feasible").Inc()
		return
	}
	Checks.WithLabelValues("infeasible").Inc()
}
