package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register adds every API, probe and version route to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/image", h.GetImage).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/data", h.GetImageData).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/request-id", h.GetRequestID).Methods(http.MethodGet)
	api.HandleFunc("/requests/{requestId}", h.CancelRequest).Methods(http.MethodDelete)
	api.HandleFunc("/requests/{requestId}", h.GetRequestStatus).Methods(http.MethodGet)

	api.HandleFunc("/cache/start", h.StartCaching).Methods(http.MethodPost)
	api.HandleFunc("/cache/stop", h.StopCaching).Methods(http.MethodPost)
	api.HandleFunc("/cache", h.ClearCache).Methods(http.MethodDelete)

	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/reindex", h.TriggerReindex).Methods(http.MethodPost)
}
