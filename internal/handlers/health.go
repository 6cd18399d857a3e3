package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-fetcher/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status            string `json:"status"`
	Ready             bool   `json:"ready"`
	Version           string `json:"version"`
	Uptime            string `json:"uptime"`
	Indexing          bool   `json:"indexing"`
	LastIndexed       string `json:"lastIndexed,omitempty"`
	InitialIndexError string `json:"initialIndexError,omitempty"`

	AssetsIndexed int64 `json:"assetsIndexed"`
	TotalAssets   int   `json:"totalAssets"`
	InFlight      int   `json:"inFlightRequests"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Status:        statusStarting,
		Ready:         healthStatus.Ready,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Indexing:      healthStatus.Indexing,
		AssetsIndexed: healthStatus.AssetsIndexed,
		TotalAssets:   h.db.GetStats().TotalAssets,
		InFlight:      h.images.InFlight(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	}
	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndexed = healthStatus.LastIndexed.Format(time.RFC3339)
	}
	if healthStatus.InitialIndexError != "" {
		response.InitialIndexError = healthStatus.InitialIndexError
		response.Status = statusDegraded
	}

	// 503 only while not ready at all
	code := http.StatusOK
	if !healthStatus.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, response)
}

// LivenessCheck always returns 200 while the server is running
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsReady() {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
