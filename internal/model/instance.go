// Package model holds the warehouse slotting instance and its wire types.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidInstance is returned when instance data breaks a structural invariant.
var ErrInvalidInstance = errors.New("invalid instance")

// ErrOverCapacity is returned when an assignment puts more products on a rack than it holds.
var ErrOverCapacity = errors.New("rack over capacity")

// Instance is one warehouse slotting problem. It owns private copies of all
// of its inputs and exposes no mutating methods, so a constructed Instance
// can be shared between goroutines without locking.
//
// Racks are nodes of the adjacency graph: rack r travels to rack s at cost
// Distance(r, s). The graph may carry more nodes than there are racks
// (entry and exit waypoints).
//
// Construction validates shape and index ranges. Rack capacity against the
// current product circuit and the aisle partition are NOT checked here; see
// CheckCapacity and CheckAislePartition.
type Instance struct {
	adjacency      [][]int
	rackCapacity   []int
	productCircuit []int
	aislesRacks    [][]int
	orders         [][]int
	metadata       map[string]float64
	totalCapacity  int
}

// NewInstance copies its arguments into a new Instance and validates them.
// On failure the returned error wraps ErrInvalidInstance and no instance is
// returned.
func NewInstance(
	adjacency [][]int,
	rackCapacity []int,
	productCircuit []int,
	aislesRacks [][]int,
	orders [][]int,
	metadata map[string]float64,
) (*Instance, error) {
	inst := &Instance{
		adjacency:      cloneMatrix(adjacency),
		rackCapacity:   slices.Clone(rackCapacity),
		productCircuit: slices.Clone(productCircuit),
		aislesRacks:    cloneMatrix(aislesRacks),
		orders:         cloneMatrix(orders),
		metadata:       maps.Clone(metadata),
	}
	if inst.metadata == nil {
		inst.metadata = map[string]float64{}
	}
	if err := inst.validate(); err != nil {
		return nil, err
	}
	for _, c := range inst.rackCapacity {
		inst.totalCapacity += c
	}
	return inst, nil
}

func (inst *Instance) validate() error {
	n := len(inst.adjacency)
	for i, row := range inst.adjacency {
		if len(row) != n {
			return fmt.Errorf("%w: adjacency is not square: row %d has %d columns, want %d", ErrInvalidInstance, i, len(row), n)
		}
		for j, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: adjacency[%d][%d] = %d is negative", ErrInvalidInstance, i, j, v)
			}
		}
	}
	racks := len(inst.rackCapacity)
	for r, c := range inst.rackCapacity {
		if c < 0 {
			return fmt.Errorf("%w: rack %d has negative capacity %d", ErrInvalidInstance, r, c)
		}
	}
	for p, r := range inst.productCircuit {
		if r < 0 || r >= racks {
			return fmt.Errorf("%w: product %d references rack %d (have %d racks)", ErrInvalidInstance, p, r, racks)
		}
	}
	for a, aisle := range inst.aislesRacks {
		for _, r := range aisle {
			if r < 0 || r >= racks {
				return fmt.Errorf("%w: aisle %d references rack %d (have %d racks)", ErrInvalidInstance, a, r, racks)
			}
		}
	}
	products := len(inst.productCircuit)
	for o, order := range inst.orders {
		for _, p := range order {
			if p < 0 || p >= products {
				return fmt.Errorf("%w: order %d references product %d (have %d products)", ErrInvalidInstance, o, p, products)
			}
		}
	}
	return nil
}

// WithProductCircuit returns a new Instance that shares every attribute with
// inst except the product circuit. inst itself is left untouched.
func (inst *Instance) WithProductCircuit(productCircuit []int) (*Instance, error) {
	return NewInstance(inst.adjacency, inst.rackCapacity, productCircuit, inst.aislesRacks, inst.orders, inst.metadata)
}

// Adjacency returns a copy of the travel cost matrix.
func (inst *Instance) Adjacency() [][]int { return cloneMatrix(inst.adjacency) }

// RackCapacity returns a copy of the per-rack capacities.
func (inst *Instance) RackCapacity() []int { return slices.Clone(inst.rackCapacity) }

// ProductCircuit returns a copy of the rack index assigned to each product.
func (inst *Instance) ProductCircuit() []int { return slices.Clone(inst.productCircuit) }

// AislesRacks returns a copy of the racks grouped by aisle.
func (inst *Instance) AislesRacks() [][]int { return cloneMatrix(inst.aislesRacks) }

// Orders returns a copy of the orders.
func (inst *Instance) Orders() [][]int { return cloneMatrix(inst.orders) }

// Metadata returns a copy of the metadata map.
func (inst *Instance) Metadata() map[string]float64 { return maps.Clone(inst.metadata) }

// NumNodes is the side of the adjacency matrix. It is independent of NumRacks.
func (inst *Instance) NumNodes() int { return len(inst.adjacency) }

// NumRacks is the number of racks, one per capacity entry.
func (inst *Instance) NumRacks() int { return len(inst.rackCapacity) }

// NumProducts is the number of products, one per product-circuit entry.
func (inst *Instance) NumProducts() int { return len(inst.productCircuit) }

// NumOrders is the number of customer orders.
func (inst *Instance) NumOrders() int { return len(inst.orders) }

// NumAisles is the number of aisles.
func (inst *Instance) NumAisles() int { return len(inst.aislesRacks) }

// TotalCapacity is the sum of all rack capacities.
func (inst *Instance) TotalCapacity() int { return inst.totalCapacity }

// Distance is the travel cost from node i to node j. Callers must stay in [0, NumNodes()).
func (inst *Instance) Distance(i, j int) int { return inst.adjacency[i][j] }

// Capacity is the slot count of rack r.
func (inst *Instance) Capacity(r int) int { return inst.rackCapacity[r] }

// CircuitOf is the current rack of product p.
func (inst *Instance) CircuitOf(p int) int { return inst.productCircuit[p] }

// Aisle returns a copy of the racks in aisle a.
func (inst *Instance) Aisle(a int) []int { return slices.Clone(inst.aislesRacks[a]) }

// Order returns a copy of the products in order o.
func (inst *Instance) Order(o int) []int { return slices.Clone(inst.orders[o]) }

// MetadataValue looks up a metadata key.
func (inst *Instance) MetadataValue(key string) (float64, bool) {
	v, ok := inst.metadata[key]
	return v, ok
}

// MetadataOr returns the metadata value for key, or fallback when absent.
func (inst *Instance) MetadataOr(key string, fallback float64) float64 {
	if v, ok := inst.metadata[key]; ok {
		return v
	}
	return fallback
}

// RackLoad counts products per rack for an assignment (rack index per product).
// Out-of-range rack indices are reported as an error rather than skipped.
func (inst *Instance) RackLoad(assignment []int) ([]int, error) {
	load := make([]int, len(inst.rackCapacity))
	for p, r := range assignment {
		if r < 0 || r >= len(load) {
			return nil, fmt.Errorf("%w: product %d references rack %d (have %d racks)", ErrInvalidInstance, p, r, len(load))
		}
		load[r]++
	}
	return load, nil
}

// CheckCapacity verifies that assignment puts no more products on a rack
// than its capacity. Pass ProductCircuit() to check the instance's own
// slotting. Every overloaded rack is reported.
func (inst *Instance) CheckCapacity(assignment []int) error {
	load, err := inst.RackLoad(assignment)
	if err != nil {
		return err
	}
	var errs []error
	for r, n := range load {
		if n > inst.rackCapacity[r] {
			errs = append(errs, fmt.Errorf("%w: rack %d holds %d products for capacity %d", ErrOverCapacity, r, n, inst.rackCapacity[r]))
		}
	}
	return errors.Join(errs...)
}

// CheckAislePartition verifies that every rack belongs to exactly one aisle.
func (inst *Instance) CheckAislePartition() error {
	owner := make([]int, len(inst.rackCapacity))
	for r := range owner {
		owner[r] = -1
	}
	for a, aisle := range inst.aislesRacks {
		for _, r := range aisle {
			if owner[r] >= 0 {
				return fmt.Errorf("%w: rack %d appears in aisles %d and %d", ErrInvalidInstance, r, owner[r], a)
			}
			owner[r] = a
		}
	}
	for r, a := range owner {
		if a < 0 {
			return fmt.Errorf("%w: rack %d belongs to no aisle", ErrInvalidInstance, r)
		}
	}
	return nil
}

func cloneMatrix(m [][]int) [][]int {
	if m == nil {
		return nil
	}
	out := make([][]int, len(m))
	for i, row := range m {
		out[i] = slices.Clone(row)
	}
	return out
}
