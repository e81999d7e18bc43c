package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"slotting/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("new postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("new postgres: ping: %w", err)
	}
	return &Postgres{db: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS instances (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		doc         JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS solutions (
		id          UUID PRIMARY KEY,
		instance_id UUID NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
		algorithm   TEXT NOT NULL,
		positions   JSONB NOT NULL,
		cost        INTEGER NOT NULL,
		feasible    BOOLEAN NOT NULL,
		violations  JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_created ON instances(created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_solutions_instance_created ON solutions(instance_id, created_at, id)`,
}

// InitSchema creates the tables in a single transaction. It is idempotent.
func (p *Postgres) InitSchema(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}

func (p *Postgres) CreateInstance(ctx context.Context, name string, inst *model.Instance) (model.InstanceRecord, error) {
	if inst == nil {
		return model.InstanceRecord{}, fmt.Errorf("create instance: %w: nil instance", model.ErrInvalidInstance)
	}
	doc, err := json.Marshal(inst.Doc())
	if err != nil {
		return model.InstanceRecord{}, fmt.Errorf("create instance: encode: %w", err)
	}
	rec := model.InstanceRecord{ID: uuid.New().String(), Name: name, Instance: inst}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO instances (id, name, doc) VALUES ($1, $2, $3::jsonb) RETURNING created_at`,
		rec.ID, name, string(doc)).Scan(&rec.CreatedAt)
	if err != nil {
		return model.InstanceRecord{}, fmt.Errorf("create instance: insert: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (p *Postgres) GetInstance(ctx context.Context, id string) (model.InstanceRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.InstanceRecord{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT id::text, name, doc, created_at FROM instances WHERE id = $1`, id)
	rec, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InstanceRecord{}, ErrNotFound
	}
	if err != nil {
		return model.InstanceRecord{}, fmt.Errorf("get instance %s: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) ListInstances(ctx context.Context, cursor string, limit int) ([]model.InstanceRecord, string, error) {
	limit = clampLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		if _, perr := uuid.Parse(cursor); perr != nil {
			return []model.InstanceRecord{}, "", nil
		}
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, doc, created_at FROM instances
			WHERE (created_at, id) > (SELECT created_at, id FROM instances WHERE id = $1)
			ORDER BY created_at, id LIMIT $2`, cursor, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, doc, created_at FROM instances
			ORDER BY created_at, id LIMIT $1`, limit+1)
	}
	if err != nil {
		return nil, "", fmt.Errorf("list instances: query: %w", err)
	}
	defer rows.Close()
	out := []model.InstanceRecord{}
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, "", fmt.Errorf("list instances: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list instances: %w", err)
	}
	var next string
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) DeleteInstance(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instance %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveSolution(ctx context.Context, sol model.SolutionRecord) (model.SolutionRecord, error) {
	if _, err := uuid.Parse(sol.InstanceID); err != nil {
		return model.SolutionRecord{}, ErrNotFound
	}
	positions, err := json.Marshal(sol.Positions)
	if err != nil {
		return model.SolutionRecord{}, fmt.Errorf("save solution: encode positions: %w", err)
	}
	var violations any
	if len(sol.Violations) > 0 {
		b, err := json.Marshal(sol.Violations)
		if err != nil {
			return model.SolutionRecord{}, fmt.Errorf("save solution: encode violations: %w", err)
		}
		violations = string(b)
	}
	sol.ID = uuid.New().String()
	err = p.db.QueryRowContext(ctx, `INSERT INTO solutions (id, instance_id, algorithm, positions, cost, feasible, violations)
		SELECT $1, id, $3, $4::jsonb, $5, $6, $7::jsonb FROM instances WHERE id = $2
		RETURNING created_at`,
		sol.ID, sol.InstanceID, sol.Algorithm, string(positions), sol.Cost, sol.Feasible, violations).Scan(&sol.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SolutionRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SolutionRecord{}, fmt.Errorf("save solution: insert: %w", err)
	}
	sol.CreatedAt = sol.CreatedAt.UTC()
	return sol, nil
}

const solutionColumns = `id::text, instance_id::text, algorithm, positions, cost, feasible, violations, created_at`

func (p *Postgres) GetSolution(ctx context.Context, instanceID, id string) (model.SolutionRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.SolutionRecord{}, ErrNotFound
	}
	if _, err := uuid.Parse(instanceID); err != nil {
		return model.SolutionRecord{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+solutionColumns+` FROM solutions WHERE instance_id = $1 AND id = $2`, instanceID, id)
	sol, err := scanSolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SolutionRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SolutionRecord{}, fmt.Errorf("get solution %s: %w", id, err)
	}
	return sol, nil
}

func (p *Postgres) ListSolutions(ctx context.Context, instanceID, cursor string, limit int) ([]model.SolutionRecord, string, error) {
	if _, err := p.GetInstance(ctx, instanceID); err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		if _, perr := uuid.Parse(cursor); perr != nil {
			return []model.SolutionRecord{}, "", nil
		}
		rows, err = p.db.QueryContext(ctx, `SELECT `+solutionColumns+` FROM solutions
			WHERE instance_id = $1 AND (created_at, id) > (SELECT created_at, id FROM solutions WHERE id = $2)
			ORDER BY created_at, id LIMIT $3`, instanceID, cursor, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+solutionColumns+` FROM solutions
			WHERE instance_id = $1 ORDER BY created_at, id LIMIT $2`, instanceID, limit+1)
	}
	if err != nil {
		return nil, "", fmt.Errorf("list solutions: query: %w", err)
	}
	defer rows.Close()
	out := []model.SolutionRecord{}
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, "", fmt.Errorf("list solutions: scan: %w", err)
		}
		out = append(out, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list solutions: %w", err)
	}
	var next string
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) CountInstances(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM instances`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return n, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(s scanner) (model.InstanceRecord, error) {
	var (
		rec model.InstanceRecord
		raw []byte
	)
	if err := s.Scan(&rec.ID, &rec.Name, &raw, &rec.CreatedAt); err != nil {
		return rec, err
	}
	var doc model.InstanceDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rec, fmt.Errorf("decode instance %s: %w", rec.ID, err)
	}
	inst, err := model.FromDoc(doc)
	if err != nil {
		return rec, fmt.Errorf("decode instance %s: %w", rec.ID, err)
	}
	rec.Instance = inst
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func scanSolution(s scanner) (model.SolutionRecord, error) {
	var (
		sol                 model.SolutionRecord
		positions, violated []byte
		created             time.Time
	)
	if err := s.Scan(&sol.ID, &sol.InstanceID, &sol.Algorithm, &positions, &sol.Cost, &sol.Feasible, &violated, &created); err != nil {
		return sol, err
	}
	if err := json.Unmarshal(positions, &sol.Positions); err != nil {
		return sol, fmt.Errorf("decode positions of %s: %w", sol.ID, err)
	}
	if len(violated) > 0 {
		if err := json.Unmarshal(violated, &sol.Violations); err != nil {
			return sol, fmt.Errorf("decode violations of %s: %w", sol.ID, err)
		}
	}
	sol.CreatedAt = created.UTC()
	return sol, nil
}
