package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"slotting/internal/metrics"
	"slotting/internal/model"
	"slotting/internal/opt"
)

// InstancesHandler handles POST/GET /v1/instances
func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/instances" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.CreateInstanceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateCreateInstanceRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid instance request", err.Error(), r.URL.Path)
			return
		}
		inst, err := model.FromDoc(req.Instance)
		if err != nil {
			s.writeError(w, r, "Invalid instance", err)
			return
		}
		rec, err := s.Store.CreateInstance(r.Context(), req.Name, inst)
		if err != nil {
			s.writeError(w, r, "Create instance failed", err)
			return
		}
		s.syncInstanceGauge(r.Context())
		s.Log.Info("instance created", zap.String("instanceId", rec.ID), zap.Int("racks", inst.NumRacks()), zap.Int("products", inst.NumProducts()))
		w.Header().Set("Location", "/v1/instances/"+rec.ID)
		writeJSON(w, http.StatusCreated, instanceOut(rec, true))
	case http.MethodGet:
		limit, err := parseLimit(r)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
			return
		}
		items, next, err := s.Store.ListInstances(r.Context(), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			s.writeError(w, r, "List instances failed", err)
			return
		}
		out := make([]model.InstanceOut, 0, len(items))
		for _, rec := range items {
			out = append(out, instanceOut(rec, false))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func instanceOut(rec model.InstanceRecord, withDoc bool) model.InstanceOut {
	out := model.InstanceOut{
		ID:        rec.ID,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		Summary:   rec.Instance.Summarize(),
	}
	if withDoc {
		doc := rec.Instance.Doc()
		out.Instance = &doc
	}
	return out
}

// InstanceByIDHandler handles /v1/instances/{id} and its sub-resources.
func (s *Server) InstanceByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/instances/"), "/")
	if rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.instance(w, r, id)
	case len(parts) == 2 && parts[1] == "summary":
		s.summary(w, r, id)
	case len(parts) == 2 && parts[1] == "solve":
		s.solve(w, r, id)
	case len(parts) == 2 && parts[1] == "check":
		s.check(w, r, id)
	case len(parts) == 2 && parts[1] == "solutions":
		s.solutions(w, r, id)
	case len(parts) == 3 && parts[1] == "solutions":
		s.solution(w, r, id, parts[2])
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
		s.eventStream(w, r, id)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "ws":
		s.eventWS(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) instance(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		rec, err := s.Store.GetInstance(r.Context(), id)
		if err != nil {
			s.writeError(w, r, "Instance not found", err)
			return
		}
		writeJSON(w, http.StatusOK, instanceOut(rec, true))
	case http.MethodDelete:
		if err := s.Store.DeleteInstance(r.Context(), id); err != nil {
			s.writeError(w, r, "Delete instance failed", err)
			return
		}
		s.syncInstanceGauge(r.Context())
		opt.ForgetMetrics(id)
		s.publish(id, "instance.deleted", nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.Store.GetInstance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "Instance not found", err)
		return
	}
	sum := rec.Instance.Summarize()
	writeJSON(w, http.StatusOK, model.SummaryOut{Summary: sum, Report: sum.String()})
}

func (s *Server) solve(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SolveRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	rec, err := s.Store.GetInstance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "Instance not found", err)
		return
	}
	solver, err := opt.NewSolver(req.Algorithm)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}

	ctx := r.Context()
	if s.Config.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.SolveTimeout)
		defer cancel()
	}
	sol, err := opt.Run(ctx, solver, rec.Instance)
	millis := float64(sol.Elapsed.Microseconds()) / 1000
	metrics.ObserveSolve(solver.Name(), millis, sol.Report.Feasible, sol.Report.Cost, err)
	if err != nil {
		s.writeError(w, r, "Solve failed", err)
		return
	}
	runMetrics := opt.RecordRun(id, sol)
	s.Log.Info("instance solved",
		zap.String("instanceId", id),
		zap.String("algorithm", sol.Algorithm),
		zap.Bool("feasible", sol.Report.Feasible),
		zap.Int("cost", sol.Report.Cost),
		zap.Float64("ms", millis),
	)

	out := model.SolutionRecord{
		InstanceID: id,
		Algorithm:  sol.Algorithm,
		Positions:  sol.Positions,
		Cost:       sol.Report.Cost,
		Feasible:   sol.Report.Feasible,
		Violations: sol.Report.Violations,
	}
	if req.Persist == nil || *req.Persist {
		out, err = s.Store.SaveSolution(r.Context(), out)
		if err != nil {
			s.writeError(w, r, "Save solution failed", err)
			return
		}
		s.publish(id, "solution.created", map[string]any{
			"solutionId": out.ID, "algorithm": out.Algorithm, "cost": out.Cost, "feasible": out.Feasible,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"solution": out, "elapsedMs": millis, "metrics": runMetrics})
}

func (s *Server) check(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.CheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateCheckRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid check request", err.Error(), r.URL.Path)
		return
	}
	rec, err := s.Store.GetInstance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "Instance not found", err)
		return
	}
	rep, err := opt.Check(rec.Instance, req.Positions)
	if err != nil && !errors.Is(err, opt.ErrInfeasible) {
		s.writeError(w, r, "Check failed", err)
		return
	}
	metrics.ObserveCheck(rep.Feasible)
	s.publish(id, "solution.checked", map[string]any{"feasible": rep.Feasible, "cost": rep.Cost})
	writeJSON(w, http.StatusOK, model.CheckOut{Feasible: rep.Feasible, Cost: rep.Cost, Violations: rep.Violations})
}

func (s *Server) solutions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
		return
	}
	items, next, err := s.Store.ListSolutions(r.Context(), id, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.writeError(w, r, "List solutions failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) solution(w http.ResponseWriter, r *http.Request, id, solutionID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sol, err := s.Store.GetSolution(r.Context(), id, solutionID)
	if err != nil {
		s.writeError(w, r, "Solution not found", err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

func (s *Server) publish(id, typ string, data map[string]any) {
	s.Broker.Publish(id, model.InstanceEvent{
		Type:       typ,
		InstanceID: id,
		TS:         time.Now().UTC().Format(time.RFC3339),
		Data:       data,
	})
}

// SolverMetricsHandler returns per-algorithm run metrics for ?instanceId=
func (s *Server) SolverMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("instanceId")
	if id == "" {
		writeProblem(w, http.StatusBadRequest, "Missing instanceId", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instanceId": id, "algorithms": opt.GetMetrics(id)})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
