package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/modules/alerts"
	"github.com/aristath/pricesentry/internal/modules/pricing"
	"github.com/aristath/pricesentry/internal/modules/signals"
)

// ErrRunInProgress is returned when a session is requested while a run of the
// same session is still active
var ErrRunInProgress = errors.New("a session run is already in progress")

// TickerSource provides the tracked universe
type TickerSource interface {
	List(ctx context.Context) ([]domain.Ticker, error)
}

// PriceResolver resolves prices for one category
type PriceResolver interface {
	Resolve(ctx context.Context, symbols []string, category domain.Category, session domain.Session) (*pricing.Resolution, error)
	Refresh(ctx context.Context, symbols []string, category domain.Category, session domain.Session) (*pricing.Resolution, error)
}

// AlertDispatcher delivers a session's alert set
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alerts []domain.Alert, session domain.Session) (*alerts.Report, error)
}

// MarketCalendar gates runs to trading days
type MarketCalendar interface {
	IsOpen(d time.Time) bool
	IsFirstTradingDayOfWeek(d time.Time) bool
}

// RunObserver receives run outcomes, typically for metrics
type RunObserver interface {
	SessionRun(session domain.Session, outcome string, elapsed time.Duration)
}

// RunOptions controls one session run
type RunOptions struct {
	Session    domain.Session
	SkipPrices bool
	SkipAlerts bool
	Force      bool // run even when the market is closed
}

// RunReport summarizes one session run
type RunReport struct {
	Session      domain.Session `json:"session"`
	FallbackPath string         `json:"fallback_path,omitempty"`
	DeliveryErr  string         `json:"delivery_error,omitempty"`
	BatchID      string         `json:"batch_id,omitempty"`
	Unpriced     []string       `json:"unpriced,omitempty"`
	Tickers      int            `json:"tickers"`
	Priced       int            `json:"priced"`
	Stale        int            `json:"stale"`
	Alerts       int            `json:"alerts"`
	Delivered    bool           `json:"delivered"`
	Skipped      bool           `json:"skipped"`
}

// SessionRunner executes the full pipeline for one session: prices, signals, alerts
type SessionRunner struct {
	tickers    TickerSource
	prices     PriceResolver
	engine     *signals.Engine
	dispatcher AlertDispatcher
	calendar   MarketCalendar
	observer   RunObserver
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger

	mu     sync.Mutex
	active map[domain.Session]bool
}

// NewSessionRunner creates a session runner. observer may be nil.
func NewSessionRunner(
	tickers TickerSource,
	prices PriceResolver,
	engine *signals.Engine,
	dispatcher AlertDispatcher,
	calendar MarketCalendar,
	observer RunObserver,
	loc *time.Location,
	log zerolog.Logger,
) *SessionRunner {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionRunner{
		tickers:    tickers,
		prices:     prices,
		engine:     engine,
		dispatcher: dispatcher,
		calendar:   calendar,
		observer:   observer,
		loc:        loc,
		now:        time.Now,
		log:        log.With().Str("service", "session_runner").Logger(),
		active:     make(map[domain.Session]bool),
	}
}

func (r *SessionRunner) begin(session domain.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[session] {
		return false
	}
	r.active[session] = true
	return true
}

func (r *SessionRunner) end(session domain.Session) {
	r.mu.Lock()
	delete(r.active, session)
	r.mu.Unlock()
}

// Run executes one session. Only an empty universe or a setup failure is an
// error; degraded pricing and failed delivery are reported in the RunReport.
func (r *SessionRunner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	start := r.now()
	today := start.In(r.loc)
	if opts.Session == "" {
		opts.Session = domain.SessionAt(start, r.loc)
	}

	// AM and PM write separate price slots and alert sets, so a slow AM run
	// may overlap PM. Only a second run of the same session is refused.
	if !r.begin(opts.Session) {
		return nil, ErrRunInProgress
	}
	defer r.end(opts.Session)

	report := &RunReport{Session: opts.Session}
	log := r.log.With().Str("session", string(opts.Session)).Logger()

	if !opts.Force && !r.calendar.IsOpen(today) {
		log.Info().Str("date", today.Format("2006-01-02")).Msg("Market closed, skipping session")
		report.Skipped = true
		r.observe(opts.Session, "skipped", start)
		return report, nil
	}

	universe, err := r.tickers.List(ctx)
	if err != nil {
		r.observe(opts.Session, "error", start)
		return nil, fmt.Errorf("failed to load tickers: %w", err)
	}
	if len(universe) == 0 {
		r.observe(opts.Session, "error", start)
		return nil, domain.ErrNoTickers
	}
	report.Tickers = len(universe)

	var prices map[string]float64
	if opts.SkipPrices {
		log.Info().Msg("Skipping price update, using stored prices")
		prices = storedPrices(universe, opts.Session, report)
	} else {
		prices, err = r.resolvePrices(ctx, universe, opts.Session, r.calendar.IsFirstTradingDayOfWeek(today), report)
		if err != nil {
			r.observe(opts.Session, "error", start)
			return nil, err
		}
	}

	fired := r.engine.Alerts(universe, prices, opts.Session)
	report.Alerts = len(fired)
	log.Info().Int("alerts", len(fired)).Int("priced", report.Priced).Msg("Signals evaluated")

	if opts.SkipAlerts {
		log.Info().Msg("Skipping alert dispatch")
	} else {
		dr, err := r.dispatcher.Dispatch(ctx, fired, opts.Session)
		if err != nil {
			r.observe(opts.Session, "error", start)
			return nil, fmt.Errorf("failed to dispatch alerts: %w", err)
		}
		report.Delivered = dr.Sent
		report.BatchID = dr.BatchID
		report.FallbackPath = dr.FallbackPath
		if dr.DeliveryErr != nil {
			report.DeliveryErr = dr.DeliveryErr.Error()
		}
	}

	log.Info().
		Int("tickers", report.Tickers).
		Int("priced", report.Priced).
		Int("stale", report.Stale).
		Int("unpriced", len(report.Unpriced)).
		Int("alerts", report.Alerts).
		Bool("delivered", report.Delivered).
		Dur("elapsed", r.now().Sub(start)).
		Msg("Session run complete")
	r.observe(opts.Session, "ok", start)
	return report, nil
}

// resolvePrices runs the fetcher per category in display order. Weekly
// categories bypass the cache only on the first trading day of the week.
func (r *SessionRunner) resolvePrices(ctx context.Context, universe []domain.Ticker, session domain.Session, firstDay bool, report *RunReport) (map[string]float64, error) {
	byCategory := make(map[domain.Category][]string)
	for _, t := range universe {
		byCategory[t.Category] = append(byCategory[t.Category], t.Symbol)
	}

	prices := make(map[string]float64, len(universe))
	for _, category := range domain.Categories {
		symbols := byCategory[category]
		if len(symbols) == 0 {
			continue
		}

		resolve := r.prices.Resolve
		if category.Weekly() && firstDay {
			resolve = r.prices.Refresh
		}
		res, err := resolve(ctx, symbols, category, session)
		if res == nil {
			return nil, fmt.Errorf("failed to resolve %s prices: %w", category, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// Prices were resolved but could not be stored; signals still run on them.
			r.log.Warn().Err(err).Str("category", string(category)).Msg("Resolved prices were not persisted")
		}

		for symbol, p := range res.Prices {
			prices[string(category)+":"+symbol] = p.Price
		}
		report.Priced += len(res.Prices)
		report.Stale += len(res.Stale)
		for _, s := range res.Unresolved {
			report.Unpriced = append(report.Unpriced, string(category)+":"+s)
		}
	}
	return prices, nil
}

// storedPrices reads the session slot, falling back to the last known price
func storedPrices(universe []domain.Ticker, session domain.Session, report *RunReport) map[string]float64 {
	prices := make(map[string]float64, len(universe))
	for _, t := range universe {
		if p := t.SessionPrice(session); p != nil && *p > 0 {
			prices[t.Key()] = *p
			report.Priced++
			continue
		}
		if p, ok := t.LastKnownPrice(); ok {
			prices[t.Key()] = p
			report.Priced++
			report.Stale++
			continue
		}
		report.Unpriced = append(report.Unpriced, t.Key())
	}
	return prices
}

func (r *SessionRunner) observe(session domain.Session, outcome string, start time.Time) {
	if r.observer != nil {
		r.observer.SessionRun(session, outcome, r.now().Sub(start))
	}
}
