package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/navikt/benchroom/internal/api"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/repository/memory"
	"github.com/navikt/benchroom/internal/service"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 9, 15, 0, 0, time.UTC)

// stubGuard either lets every admin request through or rejects it with 401
type stubGuard struct {
	allow bool
	calls []string
}

func (g *stubGuard) Require(object, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.calls = append(g.calls, object+":"+action)
		if !g.allow {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type testEnv struct {
	mux       *http.ServeMux
	occupancy *service.OccupancyService
	support   *service.SupportService
	guard     *stubGuard
}

func newTestEnv(t *testing.T, allowAdmin bool) *testEnv {
	t.Helper()

	repo := memory.NewRepository()
	occupancy := service.NewOccupancyService(repo, models.DefaultRoomID, models.DefaultBenches)
	occupancy.SetClock(func() time.Time { return fixedNow })
	_, err := occupancy.EnsureRoom(context.Background())
	require.NoError(t, err)

	support := service.NewSupportService()
	support.SetClock(func() time.Time { return fixedNow })

	guard := &stubGuard{allow: allowAdmin}
	mux := api.SetupRoutes(api.Dependencies{
		Occupancy:     occupancy,
		Support:       support,
		Store:         repo,
		Guard:         guard,
		WebhookSecret: "test_secret_token",
	})

	return &testEnv{mux: mux, occupancy: occupancy, support: support, guard: guard}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func checkInRequest(benches ...models.Bench) service.CheckInRequest {
	return service.CheckInRequest{Benches: benches, TimeIn: "09:00", TimeOut: "12:00"}
}
