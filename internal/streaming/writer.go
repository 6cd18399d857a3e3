package streaming

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"media-fetcher/internal/logging"
)

var (
	// ErrWriteTimeout indicates a chunk was not accepted by the client
	// within Config.WriteTimeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the request context ended before the body
	// was fully written.
	ErrClientGone = errors.New("client disconnected")
)

// Config configures a Writer.
type Config struct {
	// WriteTimeout bounds each chunk. 0 disables deadlines.
	WriteTimeout time.Duration
	// ChunkSize splits large writes; each chunk is flushed. 0 writes as
	// received.
	ChunkSize int
}

// DefaultConfig returns the settings used for image responses.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer writes a response body in chunks, arming a fresh write deadline
// on the connection before each one. Writers that cannot take deadlines
// (httptest recorders, some wrappers) are written without them.
type Writer struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	ctx     context.Context
	config  Config
	start   time.Time
	written int64

	deadlines bool
}

// NewWriter wraps w. ctx is normally the request context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	return &Writer{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       ctx,
		config:    config,
		start:     time.Now(),
		deadlines: config.WriteTimeout > 0,
	}
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if sw.ctx.Err() != nil {
			return total, ErrClientGone
		}

		n := len(p)
		if sw.config.ChunkSize > 0 && n > sw.config.ChunkSize {
			n = sw.config.ChunkSize
		}

		written, err := sw.writeChunk(p[:n])
		total += written
		sw.written += int64(written)
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

func (sw *Writer) writeChunk(chunk []byte) (int, error) {
	if sw.deadlines {
		if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.config.WriteTimeout)); err != nil {
			if !errors.Is(err, http.ErrNotSupported) {
				return 0, err
			}
			sw.deadlines = false
		}
	}

	n, err := sw.w.Write(chunk)
	if err != nil {
		return n, sw.translate(err)
	}

	if sw.config.ChunkSize > 0 {
		if err := sw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return n, sw.translate(err)
		}
	}
	return n, nil
}

func (sw *Writer) translate(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrWriteTimeout
	case sw.ctx.Err() != nil:
		return ErrClientGone
	default:
		return err
	}
}

// Close clears the write deadline so the connection can be reused.
func (sw *Writer) Close() error {
	if !sw.deadlines {
		return nil
	}
	if err := sw.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Stats returns the bytes written and the time since the writer was
// created.
func (sw *Writer) Stats() (bytesWritten int64, duration time.Duration) {
	return sw.written, time.Since(sw.start)
}

// Send writes body to w through a Writer. Headers, including the status,
// must already be set.
func Send(ctx context.Context, w http.ResponseWriter, body []byte, config Config) (int64, error) {
	sw := NewWriter(ctx, w, config)
	defer func() {
		if err := sw.Close(); err != nil {
			logging.Debug("Failed to clear write deadline: %v", err)
		}
	}()

	_, err := sw.Write(body)
	written, duration := sw.Stats()
	if err != nil {
		return written, err
	}

	logging.Debug("Sent %d bytes in %v", written, duration)
	return written, nil
}
