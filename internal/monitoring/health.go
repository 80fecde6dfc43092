// Package monitoring reports application health over HTTP.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/ni/internal/logging"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/types"
)

var startTime = time.Now()

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check result
type HealthCheck struct {
	Name     string                 `json:"name"`
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Critical bool                   `json:"critical"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
	Name() string
	IsCritical() bool
}

// HealthCheckFunc is a function that implements HealthChecker
type HealthCheckFunc struct {
	name     string
	checkFn  func(ctx context.Context) HealthCheck
	critical bool
}

// NewHealthCheckFunc creates a new health check function
func NewHealthCheckFunc(
	name string,
	critical bool,
	checkFn func(ctx context.Context) HealthCheck,
) *HealthCheckFunc {
	return &HealthCheckFunc{
		name:     name,
		checkFn:  checkFn,
		critical: critical,
	}
}

// Check executes the health check function
func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	result := h.checkFn(ctx)
	result.Name = h.name
	result.Critical = h.critical
	return result
}

// Name returns the health check name
func (h *HealthCheckFunc) Name() string {
	return h.name
}

// IsCritical returns whether this check is critical
func (h *HealthCheckFunc) IsCritical() bool {
	return h.critical
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Summary   HealthSummary          `json:"summary"`
}

// HealthSummary provides a summary of health check results
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Critical  int `json:"critical"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	checks  map[string]HealthChecker
	mutex   sync.RWMutex
	logger  logging.Logger
	timeout time.Duration
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger logging.Logger) *HealthMonitor {
	return &HealthMonitor{
		checks:  make(map[string]HealthChecker),
		logger:  logger.WithComponent("health_monitor"),
		timeout: 5 * time.Second,
	}
}

// RegisterCheck registers a health check
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.checks[checker.Name()] = checker
}

// Names returns the registered check names in sorted order.
func (hm *HealthMonitor) Names() []string {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetHealth runs every check concurrently and aggregates the results.
func (hm *HealthMonitor) GetHealth(ctx context.Context) HealthResponse {
	hm.mutex.RLock()
	checkers := make([]HealthChecker, 0, len(hm.checks))
	for _, checker := range hm.checks {
		checkers = append(checkers, checker)
	}
	hm.mutex.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	results := make([]HealthCheck, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker HealthChecker) {
			defer wg.Done()
			start := time.Now()
			results[i] = checker.Check(ctx)
			results[i].Duration = time.Since(start)
		}(i, checker)
	}
	wg.Wait()

	checks := make(map[string]HealthCheck, len(results))
	for _, result := range results {
		checks[result.Name] = result
		if result.Status != HealthStatusHealthy {
			hm.logger.Warn(ctx, nil, "Health check failed",
				"name", result.Name,
				"status", string(result.Status),
				"message", result.Message)
		}
	}

	return HealthResponse{
		Status:    calculateOverallStatus(checks),
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime),
		Checks:    checks,
		Summary:   calculateSummary(checks),
	}
}

func calculateSummary(checks map[string]HealthCheck) HealthSummary {
	summary := HealthSummary{Total: len(checks)}

	for _, check := range checks {
		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
		case HealthStatusDegraded:
			summary.Degraded++
		}

		if check.Critical {
			summary.Critical++
		}
	}

	return summary
}

// calculateOverallStatus: a failing critical check makes the whole
// application unhealthy, any other failure only degrades it.
func calculateOverallStatus(checks map[string]HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch {
		case check.Critical && check.Status == HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case check.Status != HealthStatusHealthy:
			status = HealthStatusDegraded
		}
	}
	return status
}

// HTTPHandler returns an HTTP handler for health checks
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(health); err != nil {
			hm.logger.Error(r.Context(), err, "Failed to encode health response")
		}
	}
}

// Predefined health checks

// StoreHealthChecker reports unhealthy until the artifact store is
// published, and lists the artifact counts afterwards.
func StoreHealthChecker(store func() *registry.Store) HealthChecker {
	return NewHealthCheckFunc("store", true, func(ctx context.Context) HealthCheck {
		s := store()
		if s == nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "application has not booted"}
		}

		counts := make(map[string]interface{}, len(types.Kinds))
		for _, kind := range types.Kinds {
			counts[string(kind)] = s.Count(kind)
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "artifacts loaded", Metadata: counts}
	})
}

// DirectoryHealthChecker checks that a directory is still readable.
func DirectoryHealthChecker(name, path string) HealthChecker {
	return NewHealthCheckFunc(name, false, func(ctx context.Context) HealthCheck {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			return HealthCheck{Status: HealthStatusDegraded, Message: fmt.Sprintf("cannot stat %s: %v", path, err)}
		case !info.IsDir():
			return HealthCheck{Status: HealthStatusDegraded, Message: path + " is not a directory"}
		default:
			return HealthCheck{Status: HealthStatusHealthy, Message: path + " is readable"}
		}
	})
}
