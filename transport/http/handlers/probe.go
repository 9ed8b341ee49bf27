package handlers

import (
	"net/http"

	"github.com/kart-io/clawprobe/pkg/health"
	"github.com/kart-io/clawprobe/pkg/platforms/feishu"
)

// ProbeHandler probes the configured Feishu app on demand
type ProbeHandler struct {
	prober health.Prober
	creds  *feishu.Credentials
}

// NewProbeHandler creates a probe handler for creds
func NewProbeHandler(prober health.Prober, creds *feishu.Credentials) *ProbeHandler {
	return &ProbeHandler{prober: prober, creds: creds}
}

// Handle replies with the ProbeResult; failed probes use status 503
func (h *ProbeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	result := h.prober.Probe(r.Context(), h.creds)

	status := http.StatusOK
	if !result.OK {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, result)
}
