package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/services"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "pricesentry",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleGetAlerts handles GET /api/alerts?session=AM
func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	var session domain.Session
	if raw := r.URL.Query().Get("session"); raw != "" {
		parsed, err := domain.ParseSession(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session = parsed
	}

	active, err := s.cfg.Alerts.Active(r.Context(), session)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load alerts")
		s.writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	if active == nil {
		active = []domain.Alert{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": active,
		"metadata": map[string]interface{}{
			"count":     len(active),
			"session":   session,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

type priceView struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Symbol    string            `json:"symbol"`
	Category  domain.Category   `json:"category"`
	Provider  domain.ProviderID `json:"provider"`
	Price     float64           `json:"price"`
	Fresh     bool              `json:"fresh"`
}

// handleGetPrices handles GET /api/prices?category=daily
func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	var category domain.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		parsed, err := domain.ParseCategory(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		category = parsed
	}

	out := []priceView{}
	for _, e := range s.cfg.Prices.Entries() {
		if category != "" && e.Category != category {
			continue
		}
		_, fresh := s.cfg.Prices.Fresh(e.Symbol, e.Category)
		out = append(out, priceView{
			FetchedAt: e.FetchedAt,
			Symbol:    e.Symbol,
			Category:  e.Category,
			Provider:  e.Provider,
			Price:     e.Price,
			Fresh:     fresh,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": out,
		"metadata": map[string]interface{}{
			"count":     len(out),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// handleRunSession handles POST /api/sessions/{session}/run. The run continues
// in the background; the response only acknowledges it. One triggered run per
// session may be active at a time.
func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	session, err := domain.ParseSession(chi.URLParam(r, "session"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	opts := services.RunOptions{
		Session:    session,
		Force:      queryBool(q.Get("force")),
		SkipPrices: queryBool(q.Get("skip_prices")),
		SkipAlerts: queryBool(q.Get("skip_alerts")),
	}

	if _, busy := s.triggered.LoadOrStore(session, struct{}{}); busy {
		s.writeError(w, http.StatusConflict, services.ErrRunInProgress.Error())
		return
	}

	go func() {
		defer s.triggered.Delete(session)

		report, err := s.cfg.Runner.Run(s.ctx, opts)
		switch {
		case errors.Is(err, services.ErrRunInProgress):
			s.log.Warn().Str("session", string(session)).Msg("Triggered run skipped, scheduled run of this session in progress")
		case err != nil:
			s.log.Error().Err(err).Str("session", string(session)).Msg("Triggered session run failed")
		default:
			s.log.Info().
				Str("session", string(session)).
				Int("alerts", report.Alerts).
				Bool("skipped", report.Skipped).
				Msg("Triggered session run finished")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "accepted",
		"session": session,
	})
}

func queryBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
