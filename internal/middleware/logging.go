package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RequestIDHeader carries the fetch request id of image and data responses.
const RequestIDHeader = "X-Request-Id"

// statusRecorder remembers the status and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.wroteHeader {
		return
	}
	rec.status = code
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths       []string
	LogHealthChecks bool
	// Output receives the formatted lines; nil means the standard logger.
	Output func(line string)
}

// DefaultLoggingConfig returns the default configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// accessEntry is one finished request.
type accessEntry struct {
	r    *http.Request
	rec  *statusRecorder
	took time.Duration
	at   time.Time
}

// w3cField is one column of the access log. quoted columns may contain
// spaces and are escaped with escapeW3CField.
type w3cField struct {
	name   string
	quoted bool
	value  func(e *accessEntry) string
}

var w3cFields = []w3cField{
	{name: "date", value: func(e *accessEntry) string { return e.at.Format(time.DateOnly) }},
	{name: "time", value: func(e *accessEntry) string { return e.at.Format(time.TimeOnly) }},
	{name: "c-ip", value: func(e *accessEntry) string { return getClientIP(e.r) }},
	{name: "cs-method", value: func(e *accessEntry) string { return e.r.Method }},
	{name: "cs-uri-stem", value: func(e *accessEntry) string { return e.r.URL.Path }},
	{name: "cs-uri-query", value: func(e *accessEntry) string { return e.r.URL.RawQuery }},
	{name: "sc-status", value: func(e *accessEntry) string { return strconv.Itoa(e.rec.status) }},
	{name: "sc-bytes", value: func(e *accessEntry) string { return strconv.FormatInt(e.rec.bytes, 10) }},
	{name: "time-taken", value: func(e *accessEntry) string { return strconv.FormatInt(e.took.Milliseconds(), 10) }},
	{name: "sc(X-Request-Id)", value: func(e *accessEntry) string { return e.rec.Header().Get(RequestIDHeader) }},
	{name: "cs(User-Agent)", quoted: true, value: func(e *accessEntry) string { return e.r.Header.Get("User-Agent") }},
}

// FieldsDirective is the W3C "#Fields:" header line describing the columns.
func FieldsDirective() string {
	names := make([]string, len(w3cFields))
	for i, f := range w3cFields {
		names[i] = f.name
	}
	return "#Fields: " + strings.Join(names, " ")
}

// Logger returns HTTP logging middleware using W3C Extended Log Format.
// The fields directive is written once when the middleware is built.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	output := config.Output
	if output == nil {
		output = func(line string) { log.Println(line) }
	}
	output(FieldsDirective())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			output(formatW3C(r, rec, time.Since(start), time.Now().UTC()))
		})
	}
}

// formatW3C renders one access log line in w3cFields order. Empty values
// become "-".
func formatW3C(r *http.Request, rec *statusRecorder, took time.Duration, at time.Time) string {
	e := &accessEntry{r: r, rec: rec, took: took, at: at}

	cols := make([]string, len(w3cFields))
	for i, f := range w3cFields {
		v := sanitizeLogField(f.value(e))
		switch {
		case v == "":
			v = "-"
		case f.quoted:
			v = escapeW3CField(v)
		}
		cols[i] = v
	}
	return strings.Join(cols, " ")
}

// sanitizeLogField turns line breaks into spaces and drops other control
// characters except tab, so a client cannot forge log lines.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection address without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
