package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthReport is the outcome of one round of checks.
type HealthReport struct {
	Healthy   bool              `json:"-"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker runs registered dependency checks concurrently.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthChecker creates a checker. Each check gets at most timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{checks: make(map[string]CheckFunc), timeout: timeout}
}

// Register adds or replaces a named check.
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Names lists registered checks in order.
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every check and reports "ok" or "error: <msg>" per dependency.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]string, len(checks))
	)
	wg.Add(len(checks))
	for name, fn := range checks {
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			status := "ok"
			if err := fn(cctx); err != nil {
				status = "error: " + err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	report := HealthReport{Healthy: true, Status: "healthy", Timestamp: time.Now().UTC(), Checks: results}
	for _, status := range results {
		if status != "ok" {
			report.Healthy = false
			report.Status = "unhealthy"
			break
		}
	}
	return report
}
