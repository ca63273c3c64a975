// Package handlers provides HTTP handlers for market hours operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/modules/market_hours"
)

// Handler handles market hours HTTP requests
type Handler struct {
	calendar *market_hours.Calendar
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewHandler creates a new market hours handler. Dates without an explicit
// ?date= are resolved in loc.
func NewHandler(calendar *market_hours.Calendar, loc *time.Location, log zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		calendar: calendar,
		loc:      loc,
		now:      time.Now,
		log:      log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetStatus handles GET /api/market-hours/status?date=YYYY-MM-DD
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	date := h.now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": h.calendar.Status(date),
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
			"timezone":  h.loc.String(),
		},
	})
}

// HandleGetHolidays handles GET /api/market-hours/holidays?year=YYYY
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.now().In(h.loc).Year()
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsedYear, err := strconv.Atoi(yearStr)
		if err != nil || parsedYear < 1900 || parsedYear > 2200 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = parsedYear
	}

	holidays := h.calendar.Holidays(year)
	out := make([]map[string]string, 0, len(holidays))
	for _, hol := range holidays {
		out = append(out, map[string]string{
			"date": hol.Date.Format("2006-01-02"),
			"name": hol.Name,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"year":     year,
			"holidays": out,
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
