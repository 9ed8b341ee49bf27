package handlers

import (
	"net/http"

	"github.com/kart-io/clawprobe/pkg/dockerhost"
)

// DockerHostResponse is the body of GET /docker-host
type DockerHostResponse struct {
	dockerhost.Resolution
	Platform dockerhost.Platform `json:"platform"`
}

// DockerHostHandler reports the resolved sandbox host address
type DockerHostHandler struct {
	resolver    *dockerhost.Resolver
	configValue string
}

// NewDockerHostHandler creates a handler resolving against configValue
func NewDockerHostHandler(resolver *dockerhost.Resolver, configValue string) *DockerHostHandler {
	return &DockerHostHandler{resolver: resolver, configValue: configValue}
}

// Handle resolves the address; ?value= stands in for the configured value
func (h *DockerHostHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	configValue := h.configValue
	if r.URL.Query().Has("value") {
		configValue = r.URL.Query().Get("value")
	}

	writeJSON(w, http.StatusOK, DockerHostResponse{
		Resolution: h.resolver.ResolveWithSource(configValue),
		Platform:   h.resolver.Platform(),
	})
}
