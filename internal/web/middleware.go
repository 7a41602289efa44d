package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/utils"
)

// HTTPProtocolMiddleware stops browsers from upgrading to HTTP/3, which breaks
// long-lived event streams behind some proxies, and marks pages as non-embeddable
func HTTPProtocolMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", "clear")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if strings.HasPrefix(r.URL.Path, "/events") {
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Force-HTTP1", "true")
		} else {
			w.Header().Set("X-Frame-Options", "DENY")
		}

		next.ServeHTTP(w, r)
	})
}

type loggingWriter struct {
	http.ResponseWriter
	status int
}

func (lw *loggingWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the access log
func (lw *loggingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lw *loggingWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// AccessLogMiddleware logs one line per request. Long-lived streams are logged when they close.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lw, r)

		event := logging.Debug()
		if lw.status >= http.StatusInternalServerError {
			event = logging.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", utils.SanitizeLogString(r.URL.Path)).
			Int("status", lw.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// WrapMuxWithMiddleware wraps an HTTP handler with the protocol and access log middleware
func WrapMuxWithMiddleware(handler http.Handler) http.Handler {
	return AccessLogMiddleware(HTTPProtocolMiddleware(handler))
}
