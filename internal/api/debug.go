package api

import (
	"net/http"
	"time"

	"slotting/internal/buildinfo"
	"slotting/internal/opt"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build":      buildinfo.Info(),
		"time":       time.Now().UTC().Format(time.RFC3339),
		"algorithms": opt.Algorithms(),
		"config": map[string]any{
			"PORT":             s.Config.Port,
			"RATE_RPS":         s.Config.RateRPS,
			"RATE_BURST":       s.Config.RateBurst,
			"SOLVE_TIMEOUT":    s.Config.SolveTimeout.String(),
			"LOG_LEVEL":        s.Config.LogLevel,
			"HAS_DATABASE_URL": s.Config.DatabaseURL != "",
			"HAS_REDIS_URL":    s.Config.RedisURL != "",
		},
	})
}
