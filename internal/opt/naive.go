package opt

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"slotting/internal/model"
)

// NaiveName is the registry name of the naive solver.
const NaiveName = "naive"

// ErrInsufficientCapacity is returned when the aisles cannot hold every
// product once the aeration reserve is set aside.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// Naive places products group by group, where a group is the set of products
// sharing a current product-circuit value (ascending, product order kept).
// Aisles are filled in order, racks in aisle order, so a group stays
// contiguous and only boundary racks mix two groups. Each aisle accepts at
// most floor((1 - aeration_rate/100) * aisle capacity) products. The aisles
// must partition the racks.
type Naive struct{}

func (Naive) Name() string { return NaiveName }

func (Naive) Solve(ctx context.Context, inst *model.Instance) ([]int, error) {
	if err := inst.CheckAislePartition(); err != nil {
		return nil, fmt.Errorf("naive: %w", err)
	}
	rate := inst.MetadataOr(MetaAerationRate, 0)
	numProducts := int(inst.MetadataOr(MetaNumProducts, float64(inst.NumProducts())))
	if numProducts != inst.NumProducts() {
		return nil, fmt.Errorf("naive: %w: metadata declares %d products, instance has %d",
			model.ErrInvalidInstance, numProducts, inst.NumProducts())
	}

	byGroup := map[int][]int{}
	for p := 0; p < numProducts; p++ {
		g := inst.CircuitOf(p)
		byGroup[g] = append(byGroup[g], p)
	}
	groups := make([]int, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	ordered := make([]int, 0, numProducts)
	for _, g := range groups {
		ordered = append(ordered, byGroup[g]...)
	}

	allowed := make([]int, inst.NumAisles())
	totalAllowed := 0
	for a := range allowed {
		capacity := 0
		for _, r := range inst.Aisle(a) {
			capacity += inst.Capacity(r)
		}
		allowed[a] = int((1.0 - rate/100.0) * float64(capacity))
		totalAllowed += allowed[a]
	}
	if numProducts > totalAllowed {
		return nil, fmt.Errorf("naive: %w: %d products, %d slots allowed with aeration rate %s",
			ErrInsufficientCapacity, numProducts, totalAllowed, model.FormatFloat(rate))
	}

	positions := make([]int, numProducts)
	for i := range positions {
		positions[i] = -1
	}
	next := 0
	for a := 0; a < inst.NumAisles() && next < numProducts; a++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("naive: %w", err)
		}
		remaining := allowed[a]
		for _, r := range inst.Aisle(a) {
			if remaining <= 0 || next >= numProducts {
				break
			}
			slots := min(inst.Capacity(r), remaining)
			for ; slots > 0 && next < numProducts; slots-- {
				positions[ordered[next]] = r
				next++
				remaining--
			}
		}
	}
	if next < numProducts {
		return nil, fmt.Errorf("naive: %w: placed %d of %d products", ErrInsufficientCapacity, next, numProducts)
	}
	return positions, nil
}
