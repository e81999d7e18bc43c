package opt

import (
	"fmt"
	"slices"

	"slotting/internal/model"
)

// Cost is the total picking distance of positions: each order is walked from
// node 0 through its distinct racks in ascending index order to the last node.
// A rack with no graph node wraps model.ErrInvalidInstance: the instance
// cannot price that slotting.
func Cost(inst *model.Instance, positions []int) (int, error) {
	total := 0
	for o := 0; o < inst.NumOrders(); o++ {
		c, err := OrderCost(inst, positions, o)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// OrderCost is the picking distance of a single order.
func OrderCost(inst *model.Instance, positions []int, order int) (int, error) {
	n := inst.NumNodes()
	if n == 0 {
		return 0, fmt.Errorf("order cost: %w: empty adjacency", model.ErrInvalidInstance)
	}
	path, err := orderPath(inst, positions, order)
	if err != nil {
		return 0, err
	}
	total, prev := 0, 0
	for _, r := range path {
		total += inst.Distance(prev, r)
		prev = r
	}
	return total + inst.Distance(prev, n-1), nil
}

func orderPath(inst *model.Instance, positions []int, o int) ([]int, error) {
	n := inst.NumNodes()
	seen := map[int]struct{}{}
	var racks []int
	for _, p := range inst.Order(o) {
		if p >= len(positions) {
			return nil, fmt.Errorf("cost: %w: order %d: product %d has no position", model.ErrInvalidInstance, o, p)
		}
		r := positions[p]
		if r < 0 || r >= n {
			return nil, fmt.Errorf("cost: %w: order %d: rack %d is not a graph node (have %d)", model.ErrInvalidInstance, o, r, n)
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		racks = append(racks, r)
	}
	slices.Sort(racks)
	return racks, nil
}
