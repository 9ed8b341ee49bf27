package handlers

import (
	"net/http"

	"github.com/kart-io/clawprobe/pkg/health"
)

// HealthHandler serves the aggregated component health
type HealthHandler struct {
	checker *health.HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Handle replies with the last periodic results, or runs every check when
// there are none yet or the request asks for ?fresh=true. Unhealthy systems
// get a 503 so that load balancers and orchestrators can act on it.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	var sh health.SystemHealth
	if r.URL.Query().Get("fresh") == "true" || len(h.checker.GetLastResults()) == 0 {
		sh = h.checker.GetSystemHealth(r.Context())
	} else {
		sh = h.checker.LastSystemHealth()
	}

	status := http.StatusOK
	if sh.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, sh)
}
