package model

import "time"

// InstanceDoc is the interchange form of an Instance (JSON and YAML).
type InstanceDoc struct {
	Adjacency      [][]int            `json:"adjacency" yaml:"adjacency"`
	RackCapacity   []int              `json:"rackCapacity" yaml:"rack_capacity"`
	ProductCircuit []int              `json:"productCircuit" yaml:"product_circuit"`
	AislesRacks    [][]int            `json:"aislesRacks" yaml:"aisles_racks"`
	Orders         [][]int            `json:"orders" yaml:"orders"`
	Metadata       map[string]float64 `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// FromDoc builds and validates an Instance from its interchange form.
func FromDoc(doc InstanceDoc) (*Instance, error) {
	return NewInstance(doc.Adjacency, doc.RackCapacity, doc.ProductCircuit, doc.AislesRacks, doc.Orders, doc.Metadata)
}

// Doc returns the interchange form of inst. The result shares no memory with inst.
func (inst *Instance) Doc() InstanceDoc {
	return InstanceDoc{
		Adjacency:      inst.Adjacency(),
		RackCapacity:   inst.RackCapacity(),
		ProductCircuit: inst.ProductCircuit(),
		AislesRacks:    inst.AislesRacks(),
		Orders:         inst.Orders(),
		Metadata:       inst.Metadata(),
	}
}

// InstanceRecord is a stored instance.
type InstanceRecord struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Instance  *Instance
}

// SolutionRecord is a stored candidate slotting for an instance.
type SolutionRecord struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instanceId"`
	Algorithm  string    `json:"algorithm"`
	Positions  []int     `json:"positions"`
	Cost       int       `json:"cost"`
	Feasible   bool      `json:"feasible"`
	Violations []string  `json:"violations,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Read models for API requests and responses

type CreateInstanceRequest struct {
	Name     string      `json:"name"`
	Instance InstanceDoc `json:"instance"`
}

type InstanceOut struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	CreatedAt string       `json:"createdAt"`
	Summary   Summary      `json:"summary"`
	Instance  *InstanceDoc `json:"instance,omitempty"`
}

type SummaryOut struct {
	Summary
	Report string `json:"report"`
}

type SolveRequest struct {
	Algorithm string `json:"algorithm,omitempty"`
	Persist   *bool  `json:"persist,omitempty"`
}

type CheckRequest struct {
	Positions []int `json:"positions"`
}

type CheckOut struct {
	Feasible   bool     `json:"feasible"`
	Cost       int      `json:"cost,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// InstanceEvent is published when something happens to a stored instance.
type InstanceEvent struct {
	Type       string         `json:"type"`
	InstanceID string         `json:"instanceId"`
	TS         string         `json:"ts"`
	Data       map[string]any `json:"data,omitempty"`
}
