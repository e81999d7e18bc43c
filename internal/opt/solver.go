// Package opt computes, checks and scores product-to-rack slottings.
package opt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"slotting/internal/model"
)

// Solver produces a new rack index per product for an instance. Solvers
// never modify the instance they are given.
type Solver interface {
	Name() string
	Solve(ctx context.Context, inst *model.Instance) ([]int, error)
}

// Solution is a solver result scored by the checker.
type Solution struct {
	Algorithm string
	Positions []int
	Report    Report
	Elapsed   time.Duration
}

var solvers = map[string]func() Solver{
	NaiveName: func() Solver { return Naive{} },
}

// NewSolver returns the solver registered under name. An empty name selects the naive solver.
func NewSolver(name string) (Solver, error) {
	if name == "" {
		name = NaiveName
	}
	mk, ok := solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q (available: %v)", name, Algorithms())
	}
	return mk(), nil
}

// Algorithms lists the registered solver names.
func Algorithms() []string {
	out := make([]string, 0, len(solvers))
	for k := range solvers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Run solves inst with s and checks the result. An infeasible result is not
// an error: it is returned with Report.Feasible false. A result the instance
// cannot price is.
func Run(ctx context.Context, s Solver, inst *model.Instance) (Solution, error) {
	start := time.Now()
	positions, err := s.Solve(ctx, inst)
	elapsed := time.Since(start)
	if err != nil {
		return Solution{}, fmt.Errorf("run %s: %w", s.Name(), err)
	}
	rep, err := Check(inst, positions)
	if err != nil && !errors.Is(err, ErrInfeasible) {
		return Solution{Algorithm: s.Name(), Elapsed: elapsed}, fmt.Errorf("run %s: %w", s.Name(), err)
	}
	return Solution{Algorithm: s.Name(), Positions: positions, Report: rep, Elapsed: elapsed}, nil
}
