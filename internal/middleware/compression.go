package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes lists media types worth compressing. Encoded images
	// are already compressed and never belong here.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses JSON bodies of 1KB or more.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:           1024,
		Level:             gzip.DefaultCompression,
		CompressibleTypes: []string{"application/json", "text/plain"},
	}
}

var gzipWriterPools sync.Map // level -> *sync.Pool

func gzipPool(level int) *sync.Pool {
	if p, ok := gzipWriterPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := gzipWriterPools.LoadOrStore(level, &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		},
	})
	return p.(*sync.Pool)
}

// gzipResponseWriter buffers up to MinSize bytes to decide whether to compress.
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	config     CompressionConfig
	buffer     []byte
	statusCode int
	decided    bool
	compress   bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if !g.decided {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.decided {
		if g.compress {
			return g.gzipWriter.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	// Non-compressible bodies are streamed as soon as the type is known.
	if g.Header().Get("Content-Type") != "" && !g.compressibleType() {
		if err := g.decide(); err != nil {
			return 0, err
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressibleType() bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(g.Header().Get("Content-Type"), ";")[0]))
	for _, compressible := range g.config.CompressibleTypes {
		if mediaType == compressible {
			return true
		}
	}
	return false
}

// decide writes the header and any buffered bytes.
func (g *gzipResponseWriter) decide() error {
	if g.decided {
		return nil
	}
	g.decided = true
	g.compress = len(g.buffer) >= g.config.MinSize && g.compressibleType() && bodyAllowed(g.statusCode)

	buffered := g.buffer
	g.buffer = nil

	if !g.compress {
		g.ResponseWriter.WriteHeader(g.statusCode)
		if len(buffered) == 0 {
			return nil
		}
		_, err := g.ResponseWriter.Write(buffered)
		return err
	}

	g.Header().Del("Content-Length")
	g.Header().Set("Content-Encoding", "gzip")
	g.Header().Add("Vary", "Accept-Encoding")

	g.gzipWriter = gzipPool(g.config.Level).Get().(*gzip.Writer)
	g.gzipWriter.Reset(g.ResponseWriter)

	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gzipWriter.Write(buffered)
	return err
}

// Close flushes pending output and returns the gzip writer to its pool.
func (g *gzipResponseWriter) Close() error {
	if err := g.decide(); err != nil {
		return err
	}
	if g.gzipWriter == nil {
		return nil
	}
	err := g.gzipWriter.Close()
	gzipPool(g.config.Level).Put(g.gzipWriter)
	g.gzipWriter = nil
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	_ = g.decide()
	if g.gzipWriter != nil {
		_ = g.gzipWriter.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

// Compression returns a middleware that gzips compressible responses
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}
