package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotting/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	instances map[string]model.InstanceRecord   // id -> instance
	order     []string                          // instance ids, insertion order
	solutions map[string][]model.SolutionRecord // instance id -> solutions, insertion order
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		instances: map[string]model.InstanceRecord{},
		solutions: map[string][]model.SolutionRecord{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) CreateInstance(ctx context.Context, name string, inst *model.Instance) (model.InstanceRecord, error) {
	if inst == nil {
		return model.InstanceRecord{}, fmt.Errorf("create instance: %w: nil instance", model.ErrInvalidInstance)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := model.InstanceRecord{ID: uuid.New().String(), Name: name, CreatedAt: m.now(), Instance: inst}
	m.instances[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return rec, nil
}

func (m *Memory) GetInstance(ctx context.Context, id string) (model.InstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.instances[id]
	if !ok {
		return model.InstanceRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListInstances(ctx context.Context, cursor string, limit int) ([]model.InstanceRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := page(m.order, cursor, func(id string) string { return id })
	limit = clampLimit(limit)
	out := []model.InstanceRecord{}
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, m.instances[id])
	}
	var next string
	if len(out) == limit && len(ids) > limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) DeleteInstance(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[id]; !ok {
		return ErrNotFound
	}
	delete(m.instances, id)
	delete(m.solutions, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

func (m *Memory) SaveSolution(ctx context.Context, sol model.SolutionRecord) (model.SolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[sol.InstanceID]; !ok {
		return model.SolutionRecord{}, ErrNotFound
	}
	sol.ID = uuid.New().String()
	sol.CreatedAt = m.now()
	sol.Positions = slices.Clone(sol.Positions)
	sol.Violations = slices.Clone(sol.Violations)
	m.solutions[sol.InstanceID] = append(m.solutions[sol.InstanceID], sol)
	return sol, nil
}

func (m *Memory) GetSolution(ctx context.Context, instanceID, id string) (model.SolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.solutions[instanceID] {
		if s.ID == id {
			s.Positions = slices.Clone(s.Positions)
			s.Violations = slices.Clone(s.Violations)
			return s, nil
		}
	}
	return model.SolutionRecord{}, ErrNotFound
}

func (m *Memory) ListSolutions(ctx context.Context, instanceID, cursor string, limit int) ([]model.SolutionRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[instanceID]; !ok {
		return nil, "", ErrNotFound
	}
	list := page(m.solutions[instanceID], cursor, func(s model.SolutionRecord) string { return s.ID })
	limit = clampLimit(limit)
	out := []model.SolutionRecord{}
	for _, s := range list {
		if len(out) == limit {
			break
		}
		s.Positions = slices.Clone(s.Positions)
		s.Violations = slices.Clone(s.Violations)
		out = append(out, s)
	}
	var next string
	if len(out) == limit && len(list) > limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) CountInstances(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// page returns the items after the one whose id is cursor. An unknown cursor
// yields an empty page.
func page[T any](items []T, cursor string, id func(T) string) []T {
	if cursor == "" {
		return items
	}
	for i, it := range items {
		if id(it) == cursor {
			return items[i+1:]
		}
	}
	return nil
}
