package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	respondJSON(w, http.StatusOK, response)
}

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

// ReadyResponse lists each dependency that failed its check
type ReadyResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Ready returns the readiness probe handler. Checks run concurrently with a shared timeout.
func Ready(checks map[string]Check, timeout time.Duration) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make([]error, len(names))
		var g errgroup.Group
		for i, name := range names {
			check := checks[name]
			g.Go(func() error {
				results[i] = check(ctx)
				return nil
			})
		}
		g.Wait()

		failed := map[string]string{}
		for i, err := range results {
			if err != nil {
				failed[names[i]] = err.Error()
			}
		}

		if len(failed) > 0 {
			respondJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Failed: failed})
			return
		}
		respondJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
	}
}
