package store

import (
	"context"
	"errors"

	"slotting/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Instances
	CreateInstance(ctx context.Context, name string, inst *model.Instance) (model.InstanceRecord, error)
	GetInstance(ctx context.Context, id string) (model.InstanceRecord, error)
	ListInstances(ctx context.Context, cursor string, limit int) (items []model.InstanceRecord, nextCursor string, err error)
	// DeleteInstance removes an instance together with its solutions.
	DeleteInstance(ctx context.Context, id string) error
	CountInstances(ctx context.Context) (int, error)

	// Solutions
	SaveSolution(ctx context.Context, sol model.SolutionRecord) (model.SolutionRecord, error)
	GetSolution(ctx context.Context, instanceID, id string) (model.SolutionRecord, error)
	ListSolutions(ctx context.Context, instanceID, cursor string, limit int) ([]model.SolutionRecord, string, error)

	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
