package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/ssrgate/internal/logging"
)

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
	return h.checkFn(ctx)
}

// Name returns the health check name
func (h *HealthCheckFunc) Name() string {
	return h.name
}

// IsCritical returns whether this check is critical
func (h *HealthCheckFunc) IsCritical() bool {
	return h.critical
}

// HealthResponse is the body served on the health endpoint.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Commit    string                 `json:"commit,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Platform  string                 `json:"platform"`
	GoVersion string                 `json:"go_version"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	checks  map[string]HealthChecker
	mutex   sync.RWMutex
	logger  logging.Logger
	timeout time.Duration
	version string
	commit  string
	started time.Time
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger logging.Logger, version, commit string) *HealthMonitor {
	return &HealthMonitor{
		checks:  make(map[string]HealthChecker),
		logger:  logger.WithComponent("health_monitor"),
		timeout: 5 * time.Second,
		version: version,
		commit:  commit,
		started: time.Now(),
	}
}

// RegisterCheck registers a health check
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.checks[checker.Name()] = checker
}

// Check runs every registered check concurrently and aggregates the results.
func (hm *HealthMonitor) Check(ctx context.Context) HealthResponse {
	hm.mutex.RLock()
	checkers := make([]HealthChecker, 0, len(hm.checks))
	for _, c := range hm.checks {
		checkers = append(checkers, c)
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
			result := checker.Check(ctx)
			result.Name = checker.Name()
			result.Critical = checker.IsCritical()
			result.Duration = time.Since(start)
			results[i] = result
		}(i, checker)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	checks := make(map[string]HealthCheck, len(results))
	for _, r := range results {
		checks[r.Name] = r
		if r.Status != HealthStatusHealthy {
			hm.logger.Warn(ctx, nil, "Health check failed",
				"name", r.Name,
				"status", string(r.Status),
				"message", r.Message)
		}
	}

	return HealthResponse{
		Status:    overallStatus(results),
		Timestamp: time.Now().UTC(),
		Version:   hm.version,
		Commit:    hm.commit,
		Uptime:    time.Since(hm.started).Round(time.Second).String(),
		Checks:    checks,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
}

// overallStatus is unhealthy when a critical check is unhealthy, degraded
// when anything else is not healthy.
func overallStatus(results []HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, r := range results {
		switch {
		case r.Critical && r.Status == HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case r.Status != HealthStatusHealthy:
			status = HealthStatusDegraded
		}
	}
	return status
}

// HTTPHandler returns an HTTP handler for health checks
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
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

// FileHealthChecker reports whether path can be stat'ed.
func FileHealthChecker(name, path string, critical bool) HealthChecker {
	return NewHealthCheckFunc(name, critical, func(ctx context.Context) HealthCheck {
		info, err := os.Stat(path)
		if err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("cannot stat %s: %v", path, err),
			}
		}
		return HealthCheck{
			Status:   HealthStatusHealthy,
			Metadata: map[string]interface{}{"path": path, "modified": info.ModTime().UTC()},
		}
	})
}

// GoroutineHealthChecker checks for goroutine leaks
func GoroutineHealthChecker() HealthChecker {
	return NewHealthCheckFunc("goroutines", false, func(ctx context.Context) HealthCheck {
		goroutines := runtime.NumGoroutine()

		status := HealthStatusHealthy
		message := ""
		if goroutines > 10000 {
			status = HealthStatusDegraded
			message = fmt.Sprintf("High goroutine count: %d", goroutines)
		}

		return HealthCheck{
			Status:   status,
			Message:  message,
			Metadata: map[string]interface{}{"count": goroutines},
		}
	})
}
