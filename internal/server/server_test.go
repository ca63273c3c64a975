package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/modules/market_hours"
	"github.com/aristath/pricesentry/internal/modules/pricing"
	"github.com/aristath/pricesentry/internal/scheduler"
	"github.com/aristath/pricesentry/internal/services"
)

type fakeAlerts struct {
	session domain.Session
	alerts  []domain.Alert
	err     error
}

func (f *fakeAlerts) Active(_ context.Context, session domain.Session) ([]domain.Alert, error) {
	f.session = session
	return f.alerts, f.err
}

type fakePrices struct {
	entries []pricing.CacheEntry
	fresh   map[string]bool
}

func (f *fakePrices) Entries() []pricing.CacheEntry { return f.entries }

func (f *fakePrices) Fresh(symbol string, _ domain.Category) (pricing.CacheEntry, bool) {
	return pricing.CacheEntry{}, f.fresh[symbol]
}

func (f *fakePrices) Len() int { return len(f.entries) }

type fakeRunner struct {
	opts chan services.RunOptions
}

func (f *fakeRunner) Run(_ context.Context, opts services.RunOptions) (*services.RunReport, error) {
	f.opts <- opts
	return &services.RunReport{Session: opts.Session}, nil
}

type fakeJobs struct{}

func (fakeJobs) Jobs() []scheduler.JobStatus {
	return []scheduler.JobStatus{{Name: "session_AM", Schedule: "0 35 9 * * MON-FRI"}}
}

func newTestServer(alerts *fakeAlerts, runner *fakeRunner) *Server {
	prices := &fakePrices{
		entries: []pricing.CacheEntry{
			{Symbol: "AAPL", Category: domain.CategoryDaily, Provider: domain.ProviderYahoo, Price: 168.5},
			{Symbol: "SPY", Category: domain.CategoryETFs, Provider: domain.ProviderFinnhub, Price: 520},
		},
		fresh: map[string]bool{"AAPL": true},
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pricesentry_up 1\n"))
	})
	s := New(Config{
		Log:      zerolog.Nop(),
		Calendar: market_hours.NewCalendar(),
		Location: time.UTC,
		Alerts:   alerts,
		Prices:   prices,
		Runner:   runner,
		Jobs:     fakeJobs{},
		Metrics:  metrics,
		DevMode:  true,
	})
	s.systemHandlers.stats = func() (float64, float64) { return 12.5, 40 }
	return s
}

func do(t *testing.T, s *Server, method, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeAlerts{}, nil)

	w := do(t, s, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestGetAlerts(t *testing.T) {
	alerts := &fakeAlerts{alerts: []domain.Alert{{Symbol: "AAPL", Action: domain.ActionBuy, Session: domain.SessionAM}}}
	s := newTestServer(alerts, nil)

	w := do(t, s, http.MethodGet, "/api/alerts?session=am")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.SessionAM, alerts.session)
	body := decode(t, w)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "AAPL", data[0].(map[string]interface{})["symbol"])
}

func TestGetAlerts_Errors(t *testing.T) {
	s := newTestServer(&fakeAlerts{err: errors.New("locked")}, nil)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/alerts?session=noon").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/api/alerts").Code)
}

func TestGetPrices(t *testing.T) {
	s := newTestServer(&fakeAlerts{}, nil)

	w := do(t, s, http.MethodGet, "/api/prices?category=daily")

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]interface{})
	require.Len(t, data, 1)
	row := data[0].(map[string]interface{})
	assert.Equal(t, "AAPL", row["symbol"])
	assert.Equal(t, true, row["fresh"])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/prices?category=bonds").Code)
}

func TestRunSession(t *testing.T) {
	runner := &fakeRunner{opts: make(chan services.RunOptions, 1)}
	s := newTestServer(&fakeAlerts{}, runner)

	w := do(t, s, http.MethodPost, "/api/sessions/pm/run?force=true&skip_alerts=1")

	require.Equal(t, http.StatusAccepted, w.Code)
	select {
	case opts := <-runner.opts:
		assert.Equal(t, services.RunOptions{Session: domain.SessionPM, Force: true, SkipAlerts: true}, opts)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not triggered")
	}
}

func TestRunSession_Rejected(t *testing.T) {
	runner := &fakeRunner{opts: make(chan services.RunOptions, 1)}
	s := newTestServer(&fakeAlerts{}, runner)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/sessions/evening/run").Code)

	s.triggered.Store(domain.SessionAM, struct{}{})
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/sessions/AM/run").Code)
	assert.Empty(t, runner.opts)

	// an active AM run does not block PM
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/sessions/PM/run").Code)
	select {
	case opts := <-runner.opts:
		assert.Equal(t, domain.SessionPM, opts.Session)
	case <-time.After(2 * time.Second):
		t.Fatal("PM run was not triggered")
	}
}

func TestSystemStatus(t *testing.T) {
	s := newTestServer(&fakeAlerts{}, nil)

	w := do(t, s, http.MethodGet, "/api/system/status")

	require.Equal(t, http.StatusOK, w.Code)
	var status SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 12.5, status.CPUPercent)
	assert.Equal(t, 40.0, status.MemPercent)
	assert.Equal(t, 2, status.CacheEntries)
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, "session_AM", status.Jobs[0].Name)
}

func TestMountedRoutes(t *testing.T) {
	s := newTestServer(&fakeAlerts{}, nil)

	metrics := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "pricesentry_up 1")

	status := do(t, s, http.MethodGet, "/api/market-hours/status?date=2025-07-04")
	require.Equal(t, http.StatusOK, status.Code)
	data := decode(t, status)["data"].(map[string]interface{})
	assert.Equal(t, false, data["open"])
}
