// Package api implements the HTTP surface of the slotting service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"slotting/internal/config"
	"slotting/internal/metrics"
	"slotting/internal/store"
)

type Server struct {
	Store  store.Store
	Broker EventBroker
	Log    *zap.Logger
	Config config.Config
}

// NewServer wires a Server from already built dependencies.
func NewServer(cfg config.Config, log *zap.Logger, st store.Store, broker EventBroker) *Server {
	if broker == nil {
		broker = NewBroker()
	}
	return &Server{Store: st, Broker: broker, Log: log, Config: cfg}
}

// Open builds the store and broker named by cfg. Without DATABASE_URL the
// in-memory store is used; without REDIS_URL (or when Redis is unreachable)
// the in-process broker is used.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	var st store.Store
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory store")
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open server: %w", err)
		}
		if cfg.DBMigrate {
			if err := pg.InitSchema(ctx); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("open server: %w", err)
			}
		}
		log.Info("using postgres store", zap.Bool("migrated", cfg.DBMigrate))
		st = pg
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		} else {
			broker = rb
		}
	}
	s := NewServer(cfg, log, st, broker)
	s.syncInstanceGauge(ctx)
	return s, nil
}

// syncInstanceGauge sets the instances gauge from the store, so it reflects
// rows written by earlier runs or other replicas.
func (s *Server) syncInstanceGauge(ctx context.Context) {
	n, err := s.Store.CountInstances(ctx)
	if err != nil {
		s.Log.Warn("count instances failed", zap.Error(err))
		return
	}
	metrics.Instances.Set(float64(n))
}

// Close releases the broker and the store.
func (s *Server) Close() error {
	return errors.Join(s.Broker.Close(), s.Store.Close())
}

// Routes returns the service handler with middleware applied.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	// Instances
	mux.HandleFunc("/v1/instances", s.InstancesHandler)
	mux.HandleFunc("/v1/instances/", s.InstanceByIDHandler) // includes /summary, /solve, /check, /solutions, /events/*

	// Admin
	mux.HandleFunc("/v1/admin/solver-metrics", s.SolverMetricsHandler)

	// Health & debug
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/info", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	var h http.Handler = mux
	h = s.rateLimitMiddleware(h)
	h = metricsMiddleware(h)
	h = s.loggingMiddleware(h)
	return h
}
