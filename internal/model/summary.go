package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MetadataEntry is one key/value pair of instance metadata.
type MetadataEntry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Summary is the diagnostic report of an Instance.
type Summary struct {
	NumRacks      int             `json:"numRacks"`
	TotalCapacity int             `json:"capacity"`
	NumProducts   int             `json:"numProducts"`
	NumOrders     int             `json:"numOrders"`
	Metadata      []MetadataEntry `json:"metadata,omitempty"`
}

// Summarize reports rack, capacity, product and order counts followed by the
// metadata in ascending key order. It never modifies the instance.
func (inst *Instance) Summarize() Summary {
	s := Summary{
		NumRacks:      len(inst.rackCapacity),
		TotalCapacity: inst.totalCapacity,
		NumProducts:   len(inst.productCircuit),
		NumOrders:     len(inst.orders),
	}
	keys := make([]string, 0, len(inst.metadata))
	for k := range inst.metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.Metadata = append(s.Metadata, MetadataEntry{Key: k, Value: inst.metadata[k]})
	}
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "WarehouseInstance(num_racks=%d, capacity=%d, num_products=%d, num_orders=%d)\n",
		s.NumRacks, s.TotalCapacity, s.NumProducts, s.NumOrders)
	if len(s.Metadata) > 0 {
		b.WriteString("Metadata:\n")
		for _, e := range s.Metadata {
			fmt.Fprintf(&b, "  - %s: %s\n", e.Key, FormatFloat(e.Value))
		}
	}
	return b.String()
}

// FormatFloat renders v in its shortest form, keeping one decimal for whole numbers (4 -> "4.0").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
