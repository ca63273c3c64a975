package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pricesentry/internal/modules/market_hours"
)

func newTestRouter() chi.Router {
	handler := NewHandler(market_hours.NewCalendar(), time.UTC, zerolog.Nop())
	handler.now = func() time.Time { return time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func TestHandleGetStatus(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name           string
		url            string
		expectedStatus int
		open           bool
		date           string
	}{
		{"defaults to today", "/api/market-hours/status", http.StatusOK, false, "2025-07-04"},
		{"explicit trading day", "/api/market-hours/status?date=2025-07-07", http.StatusOK, true, "2025-07-07"},
		{"bad date", "/api/market-hours/status?date=07/07/2025", http.StatusBadRequest, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var response struct {
				Data market_hours.DayStatus `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.open, response.Data.Open)
			assert.Equal(t, tt.date, response.Data.Date)
		})
	}
}

func TestHandleGetHolidays(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/market-hours/holidays?year=2026", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			Year     int                 `json:"year"`
			Holidays []map[string]string `json:"holidays"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2026, response.Data.Year)
	assert.Contains(t, response.Data.Holidays, map[string]string{
		"date": "2026-07-03",
		"name": "Independence Day (observed)",
	})

	req = httptest.NewRequest(http.MethodGet, "/api/market-hours/holidays?year=abc", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
