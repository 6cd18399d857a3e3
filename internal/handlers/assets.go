package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"media-fetcher/internal/database"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/mediatypes"

	"github.com/gorilla/mux"
)

// ListAssets returns a page of indexed assets.
//
// Query parameters: page, pageSize, sort (name|date|size), order (asc|desc)
// and format.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := database.ListOptions{
		SortField: mediatypes.SortByName,
		SortOrder: mediatypes.SortAsc,
		Format:    mediatypes.Format(q.Get("format")),
	}

	var err error
	if opts.Page, err = intParam(q.Get("page"), 1); err != nil {
		writeJSONError(w, "invalid page", http.StatusBadRequest)
		return
	}
	if opts.PageSize, err = intParam(q.Get("pageSize"), 100); err != nil {
		writeJSONError(w, "invalid pageSize", http.StatusBadRequest)
		return
	}

	switch s := mediatypes.SortField(q.Get("sort")); s {
	case "":
	case mediatypes.SortByName, mediatypes.SortByDate, mediatypes.SortBySize:
		opts.SortField = s
	default:
		writeJSONError(w, "invalid sort field", http.StatusBadRequest)
		return
	}

	switch o := mediatypes.SortOrder(q.Get("order")); o {
	case "":
	case mediatypes.SortAsc, mediatypes.SortDesc:
		opts.SortOrder = o
	default:
		writeJSONError(w, "invalid sort order", http.StatusBadRequest)
		return
	}

	listing, err := h.db.ListAssets(r.Context(), opts)
	if err != nil {
		logging.Error("list assets: %v", err)
		writeJSONError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, listing)
}

// GetAsset returns the metadata of one asset.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

// lookupAsset resolves the {id} route variable. On failure the response is
// already written.
func (h *Handlers) lookupAsset(w http.ResponseWriter, r *http.Request) (*database.Record, bool) {
	id := mux.Vars(r)["id"]

	rec, err := h.db.GetAsset(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrAssetNotFound):
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		logging.Error("get asset %s: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

// StatsResponse summarises the library and the request ledger.
type StatsResponse struct {
	TotalAssets      int            `json:"totalAssets"`
	TotalBytes       int64          `json:"totalBytes"`
	ByFormat         map[string]int `json:"byFormat"`
	LastIndexed      string         `json:"lastIndexed,omitempty"`
	Indexing         bool           `json:"indexing"`
	InFlightRequests int            `json:"inFlightRequests"`
}

// GetStats returns library statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()

	response := StatsResponse{
		TotalAssets:      stats.TotalAssets,
		TotalBytes:       stats.TotalBytes,
		ByFormat:         stats.ByFormat,
		Indexing:         h.indexer.IsIndexing(),
		InFlightRequests: h.images.InFlight(),
	}
	if last := h.indexer.LastIndexTime(); !last.IsZero() {
		response.LastIndexed = last.Format(time.RFC3339)
	}
	if response.ByFormat == nil {
		response.ByFormat = map[string]int{}
	}

	writeJSONStatus(w, http.StatusOK, response)
}

// TriggerReindex starts an index run in the background.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsIndexing() {
		writeJSONStatus(w, http.StatusConflict, map[string]string{"status": "already_indexing"})
		return
	}
	h.indexer.TriggerIndex()
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
