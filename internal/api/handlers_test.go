package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/timr/internal/config"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/store"
	"github.com/mescon/timr/internal/testutil"
	"github.com/mescon/timr/internal/timeexpr"
	"github.com/mescon/timr/internal/timer"
)

type testServer struct {
	*RESTServer
	clock *testutil.MockClock
	store *store.Store
	bus   *eventbus.EventBus
}

// setupTestServer builds a server on a mock clock. Every modifier is applied to the
// test config before the server reads it.
func setupTestServer(t *testing.T, modify ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.NewTestConfig()
	for _, m := range modify {
		m(cfg)
	}
	config.SetForTesting(cfg)

	clk := testutil.NewMockClock()
	eb := eventbus.NewEventBus(64)
	st := store.New(store.WithPublisher(eb))
	s := NewRESTServer(ServerDeps{
		Store:        st,
		EventBus:     eb,
		TimerOptions: []timer.Option{timer.WithClock(clk)},
	})

	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		st.DestroyAll()
		eb.Shutdown()
		config.SetForTesting(nil)
	})
	return &testServer{RESTServer: s, clock: clk, store: st, bus: eb}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if buf.Len() > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

// create posts a timer and returns its view, failing the test unless it is created.
func (ts *testServer) create(t *testing.T, body map[string]any) timerResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/timers", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[timerResponse](t, w)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type listResponse struct {
	Data       []timerResponse    `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
	Error      string             `json:"error"`
}

func mmss() map[string]any {
	return map[string]any{"formatOutput": "{mm:ss}"}
}

func TestCreateTimer(t *testing.T) {
	ts := setupTestServer(t)

	got := ts.create(t, map[string]any{"name": "tea", "start": "3m", "options": mmss()})

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "tea", got.Name)
	assert.Equal(t, timer.StatusInitialized, got.Status)
	assert.Equal(t, 180, got.StartTime)
	assert.Equal(t, 180, got.CurrentTime)
	assert.Equal(t, "03:00", got.FormattedTime)
	assert.Equal(t, 3, got.Raw.TotalMinutes)
	assert.True(t, got.Countdown)
	assert.Equal(t, "{mm:ss}", got.FormatOutput)
	assert.Equal(t, 1, ts.store.Len())
}

func TestCreateTimer_DefaultFormatFromConfig(t *testing.T) {
	ts := setupTestServer(t, func(c *config.Config) { c.DefaultFormat = "{ss}" })

	got := ts.create(t, map[string]any{"start": 90})
	assert.Equal(t, "{ss}", got.FormatOutput)
	assert.Equal(t, got.ID, got.Name)
}

func TestCreateTimer_Autostart(t *testing.T) {
	ts := setupTestServer(t)

	got := ts.create(t, map[string]any{"start": 5, "autostart": true, "delay_ms": 2000, "options": mmss()})
	assert.Equal(t, timer.StatusStarted, got.Status)

	ts.clock.Tick(3)
	w := ts.do(t, http.MethodGet, "/api/timers/"+got.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decodeBody[timerResponse](t, w).CurrentTime)
}

func TestCreateTimer_Errors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"invalid json", "{not json", http.StatusBadRequest},
		{"missing start", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"unparseable start", map[string]any{"start": "soon"}, http.StatusBadRequest},
		{"negative start", map[string]any{"start": -5}, http.StatusBadRequest},
		{"wrong start type", map[string]any{"start": true}, http.StatusBadRequest},
		{"bad option type", map[string]any{"start": 5, "options": map[string]any{"formatOutput": 5}}, http.StatusBadRequest},
		{"unknown option", map[string]any{"start": 5, "options": map[string]any{"colour": "red"}}, http.StatusBadRequest},
		{"negative delay", map[string]any{"start": 5, "delay_ms": -1}, http.StatusBadRequest},
		{"autostart at zero", map[string]any{"start": 0, "autostart": true}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/timers", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
	assert.Equal(t, 0, ts.store.Len())
}

func TestTimerLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.create(t, map[string]any{"start": 5, "options": mmss()}).ID
	path := "/api/timers/" + id

	w := ts.do(t, http.MethodPost, path+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, timer.StatusStarted, decodeBody[timerResponse](t, w).Status)

	ts.clock.Tick(2)
	got := decodeBody[timerResponse](t, ts.do(t, http.MethodGet, path, nil))
	assert.Equal(t, 3, got.CurrentTime)
	assert.Equal(t, "00:03", got.FormattedTime)
	require.NotNil(t, got.PercentDone)
	assert.Equal(t, 40, *got.PercentDone)

	w = ts.do(t, http.MethodPost, path+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, timer.StatusPaused, decodeBody[timerResponse](t, w).Status)

	ts.clock.Tick(10)
	assert.Equal(t, 3, decodeBody[timerResponse](t, ts.do(t, http.MethodGet, path, nil)).CurrentTime)

	w = ts.do(t, http.MethodPost, path+"/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, path+"/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = decodeBody[timerResponse](t, w)
	assert.Equal(t, timer.StatusStopped, got.Status)
	assert.Equal(t, 5, got.CurrentTime)

	w = ts.do(t, http.MethodPost, path+"/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// started again it runs to the end
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, path+"/start", nil).Code)
	ts.clock.Tick(5)
	got = decodeBody[timerResponse](t, ts.do(t, http.MethodGet, path, nil))
	assert.Equal(t, timer.StatusFinished, got.Status)
	assert.Equal(t, 5, got.CurrentTime)
}

func TestStartTimer_WithDelay(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.create(t, map[string]any{"start": 5}).ID
	path := "/api/timers/" + id

	w := ts.do(t, http.MethodPost, path+"/start", map[string]any{"delay_ms": 2000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ts.clock.Tick(2)
	assert.Equal(t, 5, decodeBody[timerResponse](t, ts.do(t, http.MethodGet, path, nil)).CurrentTime)
	ts.clock.Tick(1)
	assert.Equal(t, 4, decodeBody[timerResponse](t, ts.do(t, http.MethodGet, path, nil)).CurrentTime)

	w = ts.do(t, http.MethodPost, path+"/start", map[string]any{"delay_ms": -10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartTimer_ZeroCountdownConflicts(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.create(t, map[string]any{"start": 0}).ID

	w := ts.do(t, http.MethodPost, "/api/timers/"+id+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownTimer(t *testing.T) {
	ts := setupTestServer(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/timers/nope"},
		{http.MethodDelete, "/api/timers/nope"},
		{http.MethodPost, "/api/timers/nope/start"},
		{http.MethodPost, "/api/timers/nope/pause"},
		{http.MethodPost, "/api/timers/nope/stop"},
		{http.MethodPut, "/api/timers/nope/start-time"},
		{http.MethodPatch, "/api/timers/nope/options"},
	} {
		w := ts.do(t, req.method, req.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", req.method, req.path)
		assert.Contains(t, w.Body.String(), ErrMsgTimerNotFound)
	}
}

func TestSetTimerStartTime(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.create(t, map[string]any{"start": 5, "autostart": true}).ID
	path := "/api/timers/" + id + "/start-time"

	w := ts.do(t, http.MethodPut, path, map[string]any{"start": "2m"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[timerResponse](t, w)
	assert.Equal(t, 120, got.StartTime)
	assert.Equal(t, 120, got.CurrentTime)
	assert.Equal(t, timer.StatusStopped, got.Status)

	// a past date falls back to the backup
	w = ts.do(t, http.MethodPut, path, map[string]any{"start": "2001-01-01", "backup": "30s"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 30, decodeBody[timerResponse](t, w).StartTime)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, path, map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, path, map[string]any{"start": "later"}).Code)
}

func TestChangeTimerOptions(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.create(t, map[string]any{"start": 90, "options": mmss()}).ID
	path := "/api/timers/" + id + "/options"

	w := ts.do(t, http.MethodPatch, path, map[string]any{"countdown": false, "formatOutput": "{hh:mm:ss}"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[timerResponse](t, w)
	assert.False(t, got.Countdown)
	assert.Equal(t, "{hh:mm:ss}", got.FormatOutput)
	assert.Nil(t, got.PercentDone)

	w = ts.do(t, http.MethodPatch, path, map[string]any{"countdown": "yes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a rejected change leaves the options alone
	got = decodeBody[timerResponse](t, ts.do(t, http.MethodGet, "/api/timers/"+id, nil))
	assert.False(t, got.Countdown)
}

func TestDestroyTimer(t *testing.T) {
	ts := setupTestServer(t)
	id := ts.create(t, map[string]any{"start": 5}).ID

	w := ts.do(t, http.MethodDelete, "/api/timers/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, ts.store.Len())
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/timers/"+id, nil).Code)
}

func TestListTimers_Pagination(t *testing.T) {
	ts := setupTestServer(t)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		ts.create(t, map[string]any{"name": name, "start": 5})
	}

	list := decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers?limit=2", nil))
	require.Len(t, list.Data, 2)
	assert.Equal(t, "charlie", list.Data[0].Name)
	assert.Equal(t, 3, list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.TotalPages)

	list = decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers?limit=2&page=2", nil))
	require.Len(t, list.Data, 1)

	list = decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers?sort_by=name", nil))
	require.Len(t, list.Data, 3)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"},
		[]string{list.Data[0].Name, list.Data[1].Name, list.Data[2].Name})

	list = decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers?sort_by=name&sort_order=desc", nil))
	assert.Equal(t, "charlie", list.Data[0].Name)

	list = decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers?page=9", nil))
	assert.Empty(t, list.Data)
}

func TestListTimersByStatus(t *testing.T) {
	ts := setupTestServer(t)
	ts.create(t, map[string]any{"name": "running", "start": 5, "autostart": true})
	ts.create(t, map[string]any{"name": "idle", "start": 5})

	list := decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers/status/started", nil))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "running", list.Data[0].Name)

	list = decodeBody[listResponse](t, ts.do(t, http.MethodGet, "/api/timers/status/finished", nil))
	assert.Empty(t, list.Data)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/timers/status/sleeping", nil).Code)
}

func TestBatchOperations(t *testing.T) {
	ts := setupTestServer(t)
	ts.create(t, map[string]any{"start": 5})
	ts.create(t, map[string]any{"start": 10})

	statuses := func(list listResponse) []timer.Status {
		out := make([]timer.Status, len(list.Data))
		for i, tr := range list.Data {
			out[i] = tr.Status
		}
		return out
	}

	w := ts.do(t, http.MethodPost, "/api/timers/start-all", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []timer.Status{timer.StatusStarted, timer.StatusStarted}, statuses(decodeBody[listResponse](t, w)))

	w = ts.do(t, http.MethodPost, "/api/timers/pause-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []timer.Status{timer.StatusPaused, timer.StatusPaused}, statuses(decodeBody[listResponse](t, w)))

	w = ts.do(t, http.MethodPost, "/api/timers/stop-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []timer.Status{timer.StatusStopped, timer.StatusStopped}, statuses(decodeBody[listResponse](t, w)))

	// a countdown at zero cannot start; the others still do
	ts.create(t, map[string]any{"start": 0})
	w = ts.do(t, http.MethodPost, "/api/timers/start-all", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	list := decodeBody[listResponse](t, w)
	assert.NotEmpty(t, list.Error)
	assert.Equal(t, []timer.Status{timer.StatusStarted, timer.StatusStarted, timer.StatusInitialized}, statuses(list))
}

func TestDestroyAllTimers(t *testing.T) {
	ts := setupTestServer(t)
	ts.create(t, map[string]any{"start": 5, "autostart": true})
	ts.create(t, map[string]any{"start": 5})

	w := ts.do(t, http.MethodDelete, "/api/timers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"destroyed": 2}`, w.Body.String())
	assert.Equal(t, 0, ts.store.Len())
}

func TestCreateTimer_RateLimited(t *testing.T) {
	ts := setupTestServer(t, func(c *config.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		ts.create(t, map[string]any{"start": 5})
	}
	w := ts.do(t, http.MethodPost, "/api/timers", map[string]any{"start": 5})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// other endpoints are not limited
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/timers", nil).Code)
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)
	ts.create(t, map[string]any{"start": 5, "autostart": true})
	ts.create(t, map[string]any{"start": 5})

	w := ts.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string         `json:"status"`
		Version  string         `json:"version"`
		Timers   int            `json:"timers"`
		ByStatus map[string]int `json:"timers_by_status"`
		Clients  int            `json:"websocket_clients"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, config.Version, body.Version)
	assert.Equal(t, 2, body.Timers)
	assert.Equal(t, map[string]int{"started": 1, "initialized": 1}, body.ByStatus)
	assert.Equal(t, 0, body.Clients)
}

func TestTimerErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, timerErrorStatus(timer.ErrDestroyed))
	assert.Equal(t, http.StatusBadRequest, timerErrorStatus(timer.ErrType))
	assert.Equal(t, http.StatusBadRequest, timerErrorStatus(fmt.Errorf("start: %w", timeexpr.ErrRange)))
	assert.Equal(t, http.StatusInternalServerError, timerErrorStatus(assert.AnError))
}
