package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"

	"media-fetcher/internal/assets"
	"media-fetcher/internal/fingerprint"
	"media-fetcher/internal/imagemanager"
	"media-fetcher/internal/logging"
	"media-fetcher/internal/mediatypes"
	"media-fetcher/internal/middleware"
	"media-fetcher/internal/streaming"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
)

// imageParams are the query parameters shared by the image and request-id
// routes.
type imageParams struct {
	size assets.Size
	mode assets.ContentMode
	opts imagemanager.FetchOptions
}

// parseImageParams reads width, height, mode, delivery, resize and network.
// Omitting both width and height asks for the original size.
func parseImageParams(q url.Values) (imageParams, error) {
	p := imageParams{size: assets.MaximumSize, opts: imagemanager.DefaultFetchOptions()}

	width, height := q.Get("width"), q.Get("height")
	switch {
	case width == "" && height == "":
	case width == "" || height == "":
		return p, errors.New("width and height must be given together")
	default:
		w, err := strconv.Atoi(width)
		if err != nil {
			return p, fmt.Errorf("invalid width %q", width)
		}
		h, err := strconv.Atoi(height)
		if err != nil {
			return p, fmt.Errorf("invalid height %q", height)
		}
		p.size = assets.Size{Width: w, Height: h}
	}

	var err error
	if p.mode, err = assets.ParseContentMode(q.Get("mode")); err != nil {
		return p, err
	}
	if p.opts.DeliveryMode, err = imagemanager.ParseDeliveryMode(q.Get("delivery")); err != nil {
		return p, err
	}
	if p.opts.ResizeMode, err = imagemanager.ParseResizeMode(q.Get("resize")); err != nil {
		return p, err
	}
	if v := q.Get("network"); v != "" {
		if p.opts.NetworkAccessAllowed, err = strconv.ParseBool(v); err != nil {
			return p, fmt.Errorf("invalid network flag %q", v)
		}
	}
	return p, nil
}

// GetImage fetches the asset scaled to the requested size and encodes it as
// JPEG or PNG (query parameter format; by default PNG for sources that may
// carry transparency). Identical concurrent requests share one fetch.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	params, err := parseImageParams(q)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	outFormat, err := parseOutputFormat(q.Get("format"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := h.images.ImageTask(rec, params.size, params.mode, params.opts, nil)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	w.Header().Set(middleware.RequestIDHeader, task.ID().String())

	resp, err := task.Wait(r.Context())
	if err != nil {
		if clientGone(r.Context(), err) {
			logging.Debug("client left while waiting for request %s", task.ID())
			return
		}
		writeFetchError(w, err)
		return
	}

	if outFormat == outputAuto {
		outFormat = defaultOutputFormat(mediatypes.Format(resp.Format))
	}

	var buf bytes.Buffer
	contentType, err := h.encode(&buf, resp.Image, outFormat)
	if err != nil {
		logging.Error("encode image for request %s: %v", task.ID(), err)
		writeJSONError(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	writeResponseHeaders(w, resp, contentType, buf.Len())
	w.WriteHeader(http.StatusOK)
	h.send(r.Context(), w, buf.Bytes(), task.ID())
}

// GetImageData returns the original bytes of the asset.
func (h *Handlers) GetImageData(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}

	params, err := parseImageParams(r.URL.Query())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := h.images.ImageDataTask(rec, params.opts, nil)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	w.Header().Set(middleware.RequestIDHeader, task.ID().String())

	resp, err := task.Wait(r.Context())
	if err != nil {
		if clientGone(r.Context(), err) {
			logging.Debug("client left while waiting for request %s", task.ID())
			return
		}
		writeFetchError(w, err)
		return
	}

	writeResponseHeaders(w, resp, mediatypes.Format(resp.Format).MimeType(), len(resp.Data))
	w.WriteHeader(http.StatusOK)
	h.send(r.Context(), w, resp.Data, task.ID())
}

// RequestIDResponse is returned by GetRequestID and GetRequestStatus.
type RequestIDResponse struct {
	RequestID  string `json:"requestId"`
	Requesting bool   `json:"requesting"`
}

// GetRequestID predicts the request id for the given parameters without
// starting a fetch. kind=data selects the data request.
func (h *Handlers) GetRequestID(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var id imagemanager.RequestID
	var err error
	switch q.Get("kind") {
	case "", "image":
		var params imageParams
		if params, err = parseImageParams(q); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		id, err = h.images.RequestID(rec, params.size, params.mode)
	case "data":
		id, err = h.images.DataRequestID(rec)
	default:
		writeJSONError(w, "invalid kind", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeFetchError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, RequestIDResponse{
		RequestID:  id.String(),
		Requesting: h.images.IsRequesting(id),
	})
}

// GetRequestStatus reports whether a request id is in flight.
func (h *Handlers) GetRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, RequestIDResponse{
		RequestID:  id.String(),
		Requesting: h.images.IsRequesting(id),
	})
}

// CancelResponse is returned by CancelRequest.
type CancelResponse struct {
	RequestID string `json:"requestId"`
	Cancelled bool   `json:"cancelled"`
}

// CancelRequest cancels an in-flight request. Every waiter receives a
// cancellation; cancelling an unknown or finished id is not an error.
func (h *Handlers) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	wasRequesting := h.images.IsRequesting(id)
	h.images.CancelImageRequest(id)
	if wasRequesting {
		logging.Debug("request %s cancelled over HTTP", id)
	}

	writeJSONStatus(w, http.StatusOK, CancelResponse{RequestID: id.String(), Cancelled: wasRequesting})
}

func parseRequestID(w http.ResponseWriter, r *http.Request) (imagemanager.RequestID, bool) {
	id, err := fingerprint.Parse(mux.Vars(r)["requestId"])
	if err != nil || id == imagemanager.InvalidRequestID {
		writeJSONError(w, "invalid request id", http.StatusBadRequest)
		return imagemanager.InvalidRequestID, false
	}
	return id, true
}

// outputFormat is the encoding of an image response. The zero value picks
// one from the source format.
type outputFormat string

const (
	outputAuto outputFormat = ""
	outputJPEG outputFormat = "jpeg"
	outputPNG  outputFormat = "png"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch s {
	case "":
		return outputAuto, nil
	case "jpeg", "jpg":
		return outputJPEG, nil
	case "png":
		return outputPNG, nil
	}
	return outputAuto, fmt.Errorf("unsupported output format %q", s)
}

// defaultOutputFormat keeps formats that may carry transparency lossless.
func defaultOutputFormat(source mediatypes.Format) outputFormat {
	switch source {
	case mediatypes.FormatPNG, mediatypes.FormatGIF, mediatypes.FormatWebP:
		return outputPNG
	}
	return outputJPEG
}

// encode writes img in format f.
func (h *Handlers) encode(buf *bytes.Buffer, img image.Image, f outputFormat) (contentType string, err error) {
	if f == outputPNG {
		return mediatypes.FormatPNG.MimeType(), imaging.Encode(buf, img, imaging.PNG)
	}
	return mediatypes.FormatJPEG.MimeType(), imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(h.jpegQuality))
}

// send writes a response body once headers are out. Errors are only
// logged since the status has already been sent.
func (h *Handlers) send(ctx context.Context, w http.ResponseWriter, body []byte, id imagemanager.RequestID) {
	_, err := streaming.Send(ctx, w, body, h.stream)
	switch {
	case err == nil:
	case errors.Is(err, streaming.ErrClientGone):
		logging.Debug("client left during body of request %s", id)
	default:
		logging.Warn("send body for request %s: %v", id, err)
	}
}

func writeResponseHeaders(w http.ResponseWriter, resp *imagemanager.Response, contentType string, n int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(n))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Image-Source", resp.Source.String())
	if resp.IsDegraded {
		w.Header().Set("X-Image-Degraded", "true")
	}
}

// clientGone reports whether err only means this waiter's request ended.
func clientGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// writeFetchError maps coordinator and provider errors to HTTP statuses.
func writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, imagemanager.ErrInvalidParameters):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, imagemanager.ErrNotFound):
		writeJSONError(w, "original not found", http.StatusNotFound)
	case errors.Is(err, imagemanager.ErrCancelled):
		writeJSONError(w, "request cancelled", http.StatusConflict)
	case errors.Is(err, imagemanager.ErrClosed):
		writeJSONError(w, "shutting down", http.StatusServiceUnavailable)
	default:
		logging.Warn("image fetch failed: %v", err)
		writeJSONError(w, "fetch failed", http.StatusBadGateway)
	}
}
