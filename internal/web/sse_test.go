package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/navikt/benchroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEServeHTTP_CORSPreflight(t *testing.T) {
	sseManager := NewSSEManager()
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/events", nil)

	sseManager.ServeHTTP(recorder, request)

	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", recorder.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, OPTIONS", recorder.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestSSEMethodNotAllowed(t *testing.T) {
	sseManager := NewSSEManager()
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	sseManager.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/events", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestSSEPublishesUpdates(t *testing.T) {
	sseManager := NewSSEManager()
	server := httptest.NewServer(sseManager)
	defer server.Close()
	defer sseManager.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return sseManager.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	sseManager.Notify(models.Change{Kind: models.ChangeKindCheckIn, ID: "abc"})

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "event: update")
	assert.Contains(t, joined, "data: checkin")

	cancel()
	assert.Eventually(t, func() bool {
		return sseManager.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
