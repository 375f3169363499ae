package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. If any probe exceeds this deadline, the health check returns
// 503 Service Unavailable.
const healthCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a dependency (database, queue) that must be
// operational for the service to function correctly.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "database").
	Name() string

	// Check performs the health check against the subsystem.
	// It should respect the context deadline and return an error if the
	// subsystem is unhealthy or unreachable.
	Check(ctx context.Context) error
}

// ModelStatusReporter reports whether the prediction model artifacts are
// loaded and serving. Implemented by the prediction service.
type ModelStatusReporter interface {
	Loaded() bool
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
// ModelLoaded reflects the prediction service state: a server whose model
// failed to load still reports healthy overall (marketplace endpoints keep
// working), but model_loaded lets operators and load balancers see the
// degraded prediction capability.
type healthResponse struct {
	Status      string                     `json:"status"`
	ModelLoaded bool                       `json:"model_loaded"`
	Components  map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered health probes concurrently with a
// short timeout. Returns 200 OK if all probes report healthy, 503 Service
// Unavailable if any subsystem fails or if the global timeout is exceeded.
//
// This endpoint is public (no authentication required) and is mounted at
// GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	modelLoaded := s.Model != nil && s.Model.Loaded()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{
			Status:      "healthy",
			ModelLoaded: modelLoaded,
		})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(probes))
		wg      sync.WaitGroup
	)

	for _, probe := range probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("probe panicked: %v", r)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}

	// Wait for all probes to complete or the context to expire.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Timeout expired before all probes completed. Build a partial
		// response; missing probes are marked as timed out.
	}

	mu.Lock()
	collected := make([]probeResult, len(results))
	copy(collected, results)
	mu.Unlock()

	completed := make(map[string]probeResult, len(collected))
	for _, res := range collected {
		completed[res.name] = res
	}

	components := make(map[string]componentStatus, len(probes))
	allHealthy := true
	for _, probe := range probes {
		name := probe.Name()
		res, ok := completed[name]
		switch {
		case !ok:
			components[name] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
			allHealthy = false
		case res.err != nil:
			components[name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
			allHealthy = false
		default:
			components[name] = componentStatus{Status: "healthy"}
		}
	}

	resp := healthResponse{
		Status:      "healthy",
		ModelLoaded: modelLoaded,
		Components:  components,
	}
	statusCode := http.StatusOK
	if !allHealthy {
		resp.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, r, statusCode, resp)
}
