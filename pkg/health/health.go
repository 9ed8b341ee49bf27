// Package health provides health monitoring and check functionality for clawprobe
package health

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kart-io/clawprobe/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"   // Component is functioning normally
	StatusDegraded  Status = "degraded"  // Component has issues but still functional
	StatusUnhealthy Status = "unhealthy" // Component is not functioning
	StatusUnknown   Status = "unknown"   // Component status is unknown
)

// Check represents a health check function
type Check func(ctx context.Context) CheckResult

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"-"`
	Error     error                  `json:"-"`
}

// ComponentHealth represents the health status of a component
type ComponentHealth struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	LastCheck    time.Time     `json:"last_check"`
	CheckResults []CheckResult `json:"check_results"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    HealthSummary              `json:"summary"`
}

// HealthSummary provides aggregated health information
type HealthSummary struct {
	TotalComponents int `json:"total_components"`
	HealthyCount    int `json:"healthy_count"`
	DegradedCount   int `json:"degraded_count"`
	UnhealthyCount  int `json:"unhealthy_count"`
	UnknownCount    int `json:"unknown_count"`
}

// ResultListener is notified after every completed check
type ResultListener func(result CheckResult)

// HealthChecker manages health checks for system components
type HealthChecker struct {
	checks    map[string]Check
	results   map[string]CheckResult
	listeners []ResultListener
	timeout   time.Duration
	interval  time.Duration
	version   string
	logger    logger.Logger
	mutex     sync.RWMutex
	stopCh    chan struct{}
	running   bool
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(log logger.Logger) *HealthChecker {
	return &HealthChecker{
		checks:   make(map[string]Check),
		results:  make(map[string]CheckResult),
		timeout:  10 * time.Second,
		interval: 30 * time.Second,
		logger:   logger.OrDiscard(log),
		stopCh:   make(chan struct{}),
	}
}

// RegisterCheck registers a health check for a component
func (hc *HealthChecker) RegisterCheck(name string, check Check) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	hc.checks[name] = check
	hc.logger.Debug("Health check registered", "component", name)
}

// UnregisterCheck removes a health check
func (hc *HealthChecker) UnregisterCheck(name string) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	delete(hc.checks, name)
	delete(hc.results, name)
	hc.logger.Debug("Health check unregistered", "component", name)
}

// OnResult adds a listener called after each check completes
func (hc *HealthChecker) OnResult(listener ResultListener) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.listeners = append(hc.listeners, listener)
}

// RunCheck executes a specific health check
func (hc *HealthChecker) RunCheck(ctx context.Context, name string) CheckResult {
	hc.mutex.RLock()
	check, exists := hc.checks[name]
	timeout := hc.timeout
	hc.mutex.RUnlock()

	if !exists {
		return CheckResult{
			Name:      name,
			Status:    StatusUnknown,
			Message:   "Health check not found",
			Timestamp: time.Now(),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	result := check(checkCtx)

	result.Name = name
	result.Timestamp = startTime
	result.Duration = time.Since(startTime)
	if result.Status == "" {
		result.Status = StatusUnknown
	}

	hc.mutex.Lock()
	hc.results[name] = result
	listeners := append([]ResultListener(nil), hc.listeners...)
	hc.mutex.Unlock()

	for _, listener := range listeners {
		listener(result)
	}

	hc.logger.Debug("Health check completed",
		"component", name,
		"status", result.Status,
		"duration", result.Duration,
		"message", result.Message)

	return result
}

// RunAllChecks executes all registered health checks concurrently
func (hc *HealthChecker) RunAllChecks(ctx context.Context) map[string]CheckResult {
	hc.mutex.RLock()
	checkNames := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		checkNames = append(checkNames, name)
	}
	hc.mutex.RUnlock()

	results := make(map[string]CheckResult, len(checkNames))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, name := range checkNames {
		wg.Add(1)
		go func(checkName string) {
			defer wg.Done()
			result := hc.RunCheck(ctx, checkName)
			mu.Lock()
			results[checkName] = result
			mu.Unlock()
		}(name)
	}

	wg.Wait()
	return results
}

// GetSystemHealth runs every check and aggregates the results
func (hc *HealthChecker) GetSystemHealth(ctx context.Context) SystemHealth {
	return hc.summarize(hc.RunAllChecks(ctx))
}

// LastSystemHealth aggregates the most recent results without running checks
func (hc *HealthChecker) LastSystemHealth() SystemHealth {
	return hc.summarize(hc.GetLastResults())
}

func (hc *HealthChecker) summarize(results map[string]CheckResult) SystemHealth {
	components := make(map[string]ComponentHealth, len(results))
	summary := HealthSummary{
		TotalComponents: len(results),
	}

	overallStatus := StatusHealthy

	for name, result := range results {
		components[name] = ComponentHealth{
			Name:         name,
			Status:       result.Status,
			LastCheck:    result.Timestamp,
			CheckResults: []CheckResult{result},
		}

		switch result.Status {
		case StatusHealthy:
			summary.HealthyCount++
		case StatusDegraded:
			summary.DegradedCount++
			if overallStatus == StatusHealthy {
				overallStatus = StatusDegraded
			}
		case StatusUnhealthy:
			summary.UnhealthyCount++
			overallStatus = StatusUnhealthy
		default:
			summary.UnknownCount++
			if overallStatus == StatusHealthy {
				overallStatus = StatusDegraded
			}
		}
	}

	hc.mutex.RLock()
	version := hc.version
	hc.mutex.RUnlock()

	return SystemHealth{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Version:    version,
		Components: components,
		Summary:    summary,
	}
}

// StartPeriodicChecks runs all checks once immediately and then on every interval
func (hc *HealthChecker) StartPeriodicChecks(ctx context.Context) {
	hc.mutex.Lock()
	if hc.running {
		hc.mutex.Unlock()
		return
	}
	hc.running = true
	interval := hc.interval
	stopCh := hc.stopCh
	hc.mutex.Unlock()

	hc.logger.Info("Starting periodic health checks", "interval", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		hc.runPeriodic(ctx)

		for {
			select {
			case <-ctx.Done():
				hc.logger.Info("Stopping periodic health checks due to context cancellation")
				hc.setStopped()
				return
			case <-stopCh:
				hc.logger.Info("Stopping periodic health checks")
				return
			case <-ticker.C:
				hc.runPeriodic(ctx)
			}
		}
	}()
}

func (hc *HealthChecker) runPeriodic(ctx context.Context) {
	results := hc.RunAllChecks(ctx)

	for name, result := range results {
		if result.Status == StatusUnhealthy {
			hc.logger.Warn("Component unhealthy", "component", name, "message", result.Message)
		}
	}
}

func (hc *HealthChecker) setStopped() {
	hc.mutex.Lock()
	hc.running = false
	hc.mutex.Unlock()
}

// StopPeriodicChecks stops periodic health checks
func (hc *HealthChecker) StopPeriodicChecks() {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	if !hc.running {
		return
	}

	close(hc.stopCh)
	hc.stopCh = make(chan struct{})
	hc.running = false
}

// SetTimeout sets the timeout for health checks
func (hc *HealthChecker) SetTimeout(timeout time.Duration) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.timeout = timeout
}

// SetInterval sets the interval for periodic health checks
func (hc *HealthChecker) SetInterval(interval time.Duration) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.interval = interval
}

// SetVersion sets the version reported in SystemHealth
func (hc *HealthChecker) SetVersion(version string) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.version = version
}

// GetLastResults returns the last check results for all components
func (hc *HealthChecker) GetLastResults() map[string]CheckResult {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()

	results := make(map[string]CheckResult, len(hc.results))
	for name, result := range hc.results {
		results[name] = result
	}

	return results
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// MarshalJSON renders Duration as a Go duration string
func (cr CheckResult) MarshalJSON() ([]byte, error) {
	type Alias CheckResult
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    (Alias)(cr),
		Duration: cr.Duration.String(),
	})
}
