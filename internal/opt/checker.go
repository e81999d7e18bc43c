package opt

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"slotting/internal/model"
)

// ErrInfeasible wraps every constraint violation reported by the checker.
var ErrInfeasible = errors.New("infeasible solution")

// Metadata keys read by the checker and solvers.
const (
	MetaNumProducts  = "num_products"
	MetaAerationRate = "aeration_rate"
)

// Report is the outcome of Check.
type Report struct {
	Feasible   bool
	Cost       int
	Violations []string
}

// Check validates positions (rack index per product) against inst and
// computes its cost. Assignment validity is checked first since the other
// checks index racks by it; capacity, aeration and contiguity violations are
// then all collected. The returned error wraps ErrInfeasible.
func Check(inst *model.Instance, positions []int) (Report, error) {
	if err := CheckAllAssigned(inst, positions); err != nil {
		return Report{Violations: []string{err.Error()}}, err
	}
	var errs []error
	if err := CheckRackCapacity(inst, positions); err != nil {
		errs = append(errs, err)
	}
	if err := CheckAeration(inst, positions); err != nil {
		errs = append(errs, err)
	}
	if err := CheckContiguity(inst, positions); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		rep := Report{}
		for _, e := range errs {
			rep.Violations = append(rep.Violations, unjoin(e)...)
		}
		return rep, errors.Join(errs...)
	}
	cost, err := Cost(inst, positions)
	if err != nil {
		return Report{Violations: []string{err.Error()}}, err
	}
	return Report{Feasible: true, Cost: cost}, nil
}

// CheckAllAssigned verifies one valid rack per product. The expected product
// count is the num_products metadata when present.
func CheckAllAssigned(inst *model.Instance, positions []int) error {
	expected := int(inst.MetadataOr(MetaNumProducts, float64(inst.NumProducts())))
	if len(positions) != expected {
		return fmt.Errorf("%w: %d products provided, %d expected", ErrInfeasible, len(positions), expected)
	}
	racks := inst.NumRacks()
	for p, r := range positions {
		if r < 0 || r >= racks {
			return fmt.Errorf("%w: product %d: invalid rack %d (0 to %d)", ErrInfeasible, p, r, racks-1)
		}
	}
	return nil
}

// CheckRackCapacity verifies that no rack holds more products than its capacity.
func CheckRackCapacity(inst *model.Instance, positions []int) error {
	load, err := inst.RackLoad(positions)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInfeasible, err)
	}
	var errs []error
	for r, n := range load {
		if c := inst.Capacity(r); n > c {
			errs = append(errs, fmt.Errorf("%w: rack %d holds %d products for capacity %d", ErrInfeasible, r, n, c))
		}
	}
	return errors.Join(errs...)
}

// CheckAeration verifies that every aisle keeps at least
// ceil(capacity * aeration_rate / 100) free slots.
func CheckAeration(inst *model.Instance, positions []int) error {
	rate := inst.MetadataOr(MetaAerationRate, 0) / 100.0
	load, err := inst.RackLoad(positions)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInfeasible, err)
	}
	var errs []error
	for a := 0; a < inst.NumAisles(); a++ {
		total, free := 0, 0
		for _, r := range inst.Aisle(a) {
			total += inst.Capacity(r)
			free += inst.Capacity(r) - load[r]
		}
		minFree := int(math.Ceil(float64(total) * rate))
		if free < minFree {
			errs = append(errs, fmt.Errorf("%w: aisle %d: aeration %d, minimum %d", ErrInfeasible, a, free, minFree))
		}
	}
	return errors.Join(errs...)
}

type interval struct {
	group    int
	min, max int
}

// CheckContiguity verifies that products sharing a current product-circuit
// value occupy a rack interval that overlaps no other group's interval.
// Intervals may touch at a boundary rack.
func CheckContiguity(inst *model.Instance, positions []int) error {
	byGroup := map[int]*interval{}
	for p, r := range positions {
		if p >= inst.NumProducts() {
			break
		}
		g := inst.CircuitOf(p)
		iv, ok := byGroup[g]
		if !ok {
			byGroup[g] = &interval{group: g, min: r, max: r}
			continue
		}
		iv.min = min(iv.min, r)
		iv.max = max(iv.max, r)
	}
	ivs := make([]interval, 0, len(byGroup))
	for _, iv := range byGroup {
		ivs = append(ivs, *iv)
	}
	slices.SortFunc(ivs, func(a, b interval) int {
		if a.min != b.min {
			return a.min - b.min
		}
		if a.max != b.max {
			return a.max - b.max
		}
		return a.group - b.group
	})
	var errs []error
	for i := 1; i < len(ivs); i++ {
		prev, cur := ivs[i-1], ivs[i]
		if prev.max > cur.min {
			errs = append(errs, fmt.Errorf("%w: contiguity violated: circuit %d [%d %d] and circuit %d [%d %d]",
				ErrInfeasible, prev.group, prev.min, prev.max, cur.group, cur.min, cur.max))
		}
	}
	return errors.Join(errs...)
}

// unjoin flattens errors.Join trees into their leaf messages. Leaves carry a single %w.
func unjoin(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, unjoin(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
