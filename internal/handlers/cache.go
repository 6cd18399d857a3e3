package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/database"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/logging"
)

const maxCacheRequestBytes = 1 << 20

// CacheRequest selects assets and the rendition to pre-warm or evict.
// Assets are named by id, by original URL, or both. Unknown URLs are
// cached as placeholders; unknown ids are reported and skipped.
type CacheRequest struct {
	IDs                  []string `json:"ids"`
	URLs                 []string `json:"urls"`
	Width                int      `json:"width"`
	Height               int      `json:"height"`
	Mode                 string   `json:"mode"`
	Delivery             string   `json:"delivery"`
	Resize               string   `json:"resize"`
	NetworkAccessAllowed *bool    `json:"networkAccessAllowed"`
}

// CacheResponse reports what a cache request acted on.
type CacheResponse struct {
	Assets  int      `json:"assets"`
	Missing []string `json:"missing,omitempty"`
}

type cacheOp struct {
	list []assets.Asset
	size assets.Size
	mode assets.ContentMode
	opts imagemanager.FetchOptions
}

// StartCaching pre-warms the provider cache for the selected assets.
func (h *Handlers) StartCaching(w http.ResponseWriter, r *http.Request) {
	op, missing, ok := h.decodeCacheRequest(w, r)
	if !ok {
		return
	}
	h.images.StartCachingImages(op.list, op.size, op.mode, op.opts)
	logging.Debug("pre-warming %d assets at %s (%s)", len(op.list), op.size, op.mode)

	writeJSONStatus(w, http.StatusAccepted, CacheResponse{Assets: len(op.list), Missing: missing})
}

// StopCaching evicts the selected assets' rendition from the provider cache.
func (h *Handlers) StopCaching(w http.ResponseWriter, r *http.Request) {
	op, missing, ok := h.decodeCacheRequest(w, r)
	if !ok {
		return
	}
	h.images.StopCachingImages(op.list, op.size, op.mode, op.opts)

	writeJSONStatus(w, http.StatusOK, CacheResponse{Assets: len(op.list), Missing: missing})
}

// ClearCache evicts everything from the provider cache.
func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	h.images.StopCachingImagesForAllAssets()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) decodeCacheRequest(w http.ResponseWriter, r *http.Request) (cacheOp, []string, bool) {
	var req CacheRequest
	var op cacheOp

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCacheRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return op, nil, false
	}
	if len(req.IDs) == 0 && len(req.URLs) == 0 {
		writeJSONError(w, "ids or urls required", http.StatusBadRequest)
		return op, nil, false
	}

	op.size = assets.MaximumSize
	if req.Width != 0 || req.Height != 0 {
		op.size = assets.Size{Width: req.Width, Height: req.Height}
		if err := op.size.Validate(); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return op, nil, false
		}
	}

	var err error
	if op.mode, err = assets.ParseContentMode(req.Mode); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return op, nil, false
	}
	op.opts = imagemanager.DefaultFetchOptions()
	if op.opts.DeliveryMode, err = imagemanager.ParseDeliveryMode(req.Delivery); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return op, nil, false
	}
	if op.opts.ResizeMode, err = imagemanager.ParseResizeMode(req.Resize); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return op, nil, false
	}
	if req.NetworkAccessAllowed != nil {
		op.opts.NetworkAccessAllowed = *req.NetworkAccessAllowed
	}

	var missing []string
	for _, id := range req.IDs {
		rec, err := h.db.GetAsset(r.Context(), id)
		switch {
		case errors.Is(err, database.ErrAssetNotFound):
			missing = append(missing, id)
		case err != nil:
			logging.Error("cache request: get asset %s: %v", id, err)
			writeJSONError(w, "failed to load assets", http.StatusInternalServerError)
			return op, nil, false
		default:
			op.list = append(op.list, rec)
		}
	}
	if len(req.URLs) > 0 {
		op.list = append(op.list, h.db.FetchAssets(r.Context(), req.URLs)...)
	}

	return op, missing, true
}
