package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"slotting/internal/model"
	"slotting/internal/opt"
)

const maxBodyBytes = 32 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func validateCreateInstanceRequest(req *model.CreateInstanceRequest) error {
	if len(req.Name) > 200 {
		return fmt.Errorf("name must be at most 200 characters")
	}
	if len(req.Instance.Adjacency) == 0 {
		return fmt.Errorf("instance.adjacency is required")
	}
	if len(req.Instance.RackCapacity) == 0 {
		return fmt.Errorf("instance.rackCapacity is required")
	}
	return nil
}

func validateSolveRequest(req *model.SolveRequest) error {
	if req.Algorithm != "" && !slices.Contains(opt.Algorithms(), req.Algorithm) {
		return fmt.Errorf("invalid algorithm: %s (available: %v)", req.Algorithm, opt.Algorithms())
	}
	return nil
}

func validateCheckRequest(req *model.CheckRequest) error {
	if req.Positions == nil {
		return fmt.Errorf("positions is required")
	}
	return nil
}

// parseLimit reads the limit query parameter; 0 means the store default.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return n, nil
}
