package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProtocolMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrappedHandler := HTTPProtocolMiddleware(testHandler)

	t.Run("DisablesHTTP3Globally", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "clear", recorder.Header().Get("Alt-Svc"))
		assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
	})

	t.Run("AddsSSESpecificHeadersForEventsEndpoint", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/events", nil))

		assert.Equal(t, "keep-alive", recorder.Header().Get("Connection"))
		assert.Equal(t, "true", recorder.Header().Get("X-Force-HTTP1"))
		assert.Empty(t, recorder.Header().Get("X-Frame-Options"))
	})
}

func TestWrapMuxWithMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	recorder := httptest.NewRecorder()
	WrapMuxWithMiddleware(mux).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	assert.Equal(t, "clear", recorder.Header().Get("Alt-Svc"))
	assert.Equal(t, http.StatusTeapot, recorder.Code)
}

func TestLoggingWriterRecordsStatus(t *testing.T) {
	lw := &loggingWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	lw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, lw.status)

	_, _, err := lw.Hijack()
	assert.Error(t, err)
}
