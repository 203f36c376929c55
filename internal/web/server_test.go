package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitos/crypto_intel/internal/domain"
	"github.com/vitos/crypto_intel/internal/infrastructure/marketdata"
	"github.com/vitos/crypto_intel/internal/infrastructure/storage"
	"github.com/vitos/crypto_intel/internal/usecase"
)

type fixture struct {
	srv       *Server
	handler   http.Handler
	dashboard *usecase.DashboardService
	health    *usecase.HealthMonitor
	scheduler *usecase.RefreshScheduler
	hub       *Hub
	cancel    context.CancelFunc
}

func newFixture(t *testing.T, initialize bool) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	source := marketdata.NewMockSource(marketdata.Options{Seed: 42, MaxHistory: 10}, logger)
	prober := marketdata.NewSimulatedProber([]marketdata.API{
		{Name: "coinmarketcap", Availability: 1},
		{Name: "twitter", Availability: 1},
	}, 7)
	journal, err := storage.NewJournalStore(":memory:", 100)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	scorer := usecase.NewScoringEngine(usecase.HeuristicModel{}, usecase.ScoringOptions{Workers: 4}, logger)
	health := usecase.NewHealthMonitor(source, scorer, prober, journal, 3, logger)
	dashboard := usecase.NewDashboardService(source, scorer, health, usecase.DisplayOptions{
		TopN: 5, BreakoutThreshold: 0.7, InflowThreshold: 0.7,
	}, logger)
	scheduler := usecase.NewRefreshScheduler(60, dashboard.RunPass, logger)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(dashboard.Snapshot, logger)
	go hub.Run(ctx)
	dashboard.Subscribe(hub.Publish)

	if initialize {
		require.NoError(t, dashboard.Initialize(ctx))
	}

	srv := NewServer(Options{Port: 0, RecentLimit: 10}, dashboard, health, scheduler, source, hub, logger)
	f := &fixture{
		srv:       srv,
		handler:   srv.Handler(),
		dashboard: dashboard,
		health:    health,
		scheduler: scheduler,
		hub:       hub,
		cancel:    cancel,
	}
	t.Cleanup(func() {
		scheduler.Wait()
		cancel()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIndexRendersDashboard(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "System operational. Monitoring markets...")
	assert.Contains(t, body, "Next update in: 60s")
	for _, row := range f.dashboard.Views().Predictions {
		assert.Contains(t, body, row.Symbol)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewsAndCoins(t *testing.T) {
	f := newFixture(t, true)

	views := decode[usecase.Views](t, f.do(t, http.MethodGet, "/api/views", ""))
	assert.Len(t, views.Predictions, 5)
	assert.Equal(t, usecase.DefaultViewState(), views.State)
	assert.Equal(t, len(marketdata.DefaultUniverse), views.Counters.Total)

	coins := decode[[]domain.Coin](t, f.do(t, http.MethodGet, "/api/coins", ""))
	require.Len(t, coins, len(marketdata.DefaultUniverse))
	for _, c := range coins {
		assert.NotNil(t, c.Scores, c.Symbol)
	}

	history := decode[[]domain.HistoricalSnapshot](t, f.do(t, http.MethodGet, "/api/history", ""))
	assert.Len(t, history, 1)
}

func TestCoinsEmptyBeforeFirstPass(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/coins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSortToggleAndValidation(t *testing.T) {
	f := newFixture(t, true)

	views := decode[usecase.Views](t, f.do(t, http.MethodPost, "/api/sort", `{"field":"breakoutScore"}`))
	assert.Equal(t, usecase.SortAsc, views.State.SortDir)

	views = decode[usecase.Views](t, f.do(t, http.MethodPost, "/api/sort", `{"field":"price"}`))
	assert.Equal(t, "price", views.State.SortField)
	assert.Equal(t, usecase.SortDesc, views.State.SortDir)

	rec := f.do(t, http.MethodPost, "/api/sort", `{"field":"name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sort", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilter(t *testing.T) {
	f := newFixture(t, true)

	views := decode[usecase.Views](t, f.do(t, http.MethodPost, "/api/filter", `{"mode":"gainers"}`))
	assert.Equal(t, usecase.FilterGainers, views.State.Filter)
	gainers := usecase.FilterCoins(f.dashboard.Coins(), usecase.FilterGainers)
	symbols := make(map[string]bool, len(gainers))
	for _, c := range gainers {
		symbols[c.Symbol] = true
	}
	for _, row := range views.Predictions {
		assert.True(t, symbols[row.Symbol], row.Symbol)
	}
	assert.Equal(t, len(gainers), views.Counters.Total)

	rec := f.do(t, http.MethodPost, "/api/filter", `{"mode":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrain(t *testing.T) {
	t.Run("before initialization", func(t *testing.T) {
		f := newFixture(t, false)
		rec := f.do(t, http.MethodPost, "/api/retrain", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, f.dashboard.Status().Message, "Model retraining failed")
	})

	t.Run("bumps breakout version", func(t *testing.T) {
		f := newFixture(t, true)
		rec := f.do(t, http.MethodPost, "/api/retrain", "")
		require.Equal(t, http.StatusOK, rec.Code)

		info := decode[usecase.SystemInfo](t, rec)
		assert.Equal(t, "1.3", info.ModelVersion)
		assert.Equal(t, 0, info.HoursSinceRetrain)
		assert.Equal(t, "Models retrained successfully", f.dashboard.Status().Message)
	})
}

func TestRefreshRunsPass(t *testing.T) {
	f := newFixture(t, true)
	before := f.dashboard.LastUpdated()

	rec := f.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, string(usecase.TriggerStarted), resp["result"])

	f.scheduler.Wait()
	assert.Equal(t, 1, f.scheduler.Passes())
	assert.False(t, f.dashboard.LastUpdated().Before(before))
	assert.Len(t, f.dashboard.History(), 2)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)

	resp := decode[statusResponse](t, f.do(t, http.MethodGet, "/api/status", ""))
	assert.Equal(t, "System operational. Monitoring markets...", resp.Status.Message)
	assert.Equal(t, domain.StatusSuccess, resp.Status.Level)
	assert.Equal(t, 60, resp.NextRefresh)
	assert.False(t, resp.Running)
	assert.False(t, resp.LastUpdated.IsZero())
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, true)

	// no check has run yet
	resp := decode[healthResponse](t, f.do(t, http.MethodGet, "/api/health", ""))
	assert.Nil(t, resp.Report)
	assert.Empty(t, resp.DownAPIs)

	resp = decode[healthResponse](t, f.do(t, http.MethodPost, "/api/health/diagnostics", ""))
	require.NotNil(t, resp.Report)
	assert.Equal(t, domain.OverallHealthy, resp.Report.Overall)
	assert.False(t, resp.FuseTripped)
	assert.Equal(t, "System diagnostics passed", f.dashboard.Status().Message)

	resp = decode[healthResponse](t, f.do(t, http.MethodGet, "/api/health", ""))
	require.NotNil(t, resp.Report)
	assert.Equal(t, domain.OverallHealthy, resp.Report.Overall)

	resp = decode[healthResponse](t, f.do(t, http.MethodPost, "/api/health/reset", ""))
	assert.Equal(t, 0, resp.RecoveryAttempts)
}

func TestErrorsEndpoint(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		require.NoError(t, f.health.LogError(ctx, domain.EntryScoring, domain.SeverityError, "Failed to process coin BTC", nil))
	}

	entries := decode[[]domain.ErrorLogEntry](t, f.do(t, http.MethodGet, "/api/errors", ""))
	assert.Len(t, entries, 10)

	entries = decode[[]domain.ErrorLogEntry](t, f.do(t, http.MethodGet, "/api/errors?limit=3", ""))
	require.Len(t, entries, 3)
	assert.Less(t, entries[0].ID, entries[2].ID)

	rec := f.do(t, http.MethodGet, "/api/errors?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/errors?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInfluencers(t *testing.T) {
	f := newFixture(t, false)
	list := decode[[]domain.Influencer](t, f.do(t, http.MethodGet, "/api/influencers", ""))
	assert.NotEmpty(t, list)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrRecoveryExhausted, http.StatusConflict},
		{domain.ErrModelNotInitialized, http.StatusConflict},
		{domain.ErrDataUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: ml_models", domain.ErrSubsystemCritical), http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestCORS(t *testing.T) {
	logger := zaptest.NewLogger(t)
	f := newFixture(t, false)
	srv := NewServer(Options{CORSOrigins: []string{"http://example.com"}},
		f.dashboard, f.health, f.scheduler, nil, f.hub, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketFeed(t *testing.T) {
	f := newFixture(t, true)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(ts.URL, "http://", "ws://", 1)+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() usecase.Update {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var u usecase.Update
		require.NoError(t, json.Unmarshal(data, &u))
		return u
	}

	// snapshot first
	u := read()
	require.Equal(t, usecase.UpdateViews, u.Type)
	require.NotNil(t, u.Views)
	u = read()
	require.Equal(t, usecase.UpdateStatus, u.Type)
	assert.Equal(t, "System operational. Monitoring markets...", u.Status.Message)

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err = f.dashboard.SetFilter(usecase.FilterLosers)
	require.NoError(t, err)

	// broadcasts already queued at registration may follow the snapshot
	for {
		u = read()
		if u.Type == usecase.UpdateViews && u.Views.State.Filter == usecase.FilterLosers {
			break
		}
	}
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	f := newFixture(t, false)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(ts.URL, "http://", "ws://", 1)+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	f.cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Equal(t, 0, f.hub.ClientCount())
}

func TestHubDeliversSnapshotThenLaterUpdates(t *testing.T) {
	var hub *Hub
	later := usecase.Update{Type: usecase.UpdateStatus, Status: &domain.StatusLine{Message: "Refreshing data..."}}
	hub = NewHub(func() []usecase.Update {
		// a change landing while the snapshot is taken
		hub.Publish(later)
		return []usecase.Update{
			{Type: usecase.UpdateViews, Views: &usecase.Views{}},
			{Type: usecase.UpdateStatus, Status: &domain.StatusLine{Message: "System operational. Monitoring markets..."}},
		}
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := &client{id: "c1", hub: hub, send: make(chan []byte, sendBuffer)}
	hub.register <- c

	next := func() usecase.Update {
		t.Helper()
		select {
		case data := <-c.send:
			var u usecase.Update
			require.NoError(t, json.Unmarshal(data, &u))
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("no message delivered")
			return usecase.Update{}
		}
	}

	assert.Equal(t, usecase.UpdateViews, next().Type)
	assert.Equal(t, "System operational. Monitoring markets...", next().Status.Message)
	u := next()
	require.Equal(t, usecase.UpdateStatus, u.Type)
	assert.Equal(t, "Refreshing data...", u.Status.Message)
}
