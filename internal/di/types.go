// Package di wires every pricesentry component from configuration.
package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/aristath/pricesentry/internal/clientdata"
	"github.com/aristath/pricesentry/internal/clients/ratelimit"
	"github.com/aristath/pricesentry/internal/database"
	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/metrics"
	"github.com/aristath/pricesentry/internal/modules/alerts"
	"github.com/aristath/pricesentry/internal/modules/market_hours"
	"github.com/aristath/pricesentry/internal/modules/pricing"
	"github.com/aristath/pricesentry/internal/modules/signals"
	"github.com/aristath/pricesentry/internal/modules/tickers"
	"github.com/aristath/pricesentry/internal/reliability"
	"github.com/aristath/pricesentry/internal/services"
)

// Container holds all dependencies for the application.
// It is created by Wire and released with Close.
type Container struct {
	// Databases
	MainDB       *database.DB // tickers, alerts
	ClientDataDB *database.DB // cached provider prices

	// Repositories
	TickerRepo *tickers.Repository
	AlertRepo  *alerts.Repository
	PriceRepo  *clientdata.Repository

	// Clients
	Limiter   *ratelimit.Limiter
	Providers []domain.PriceProvider // priority order
	Transport domain.MailTransport   // nil when mail is not configured
	Redis     *redis.Client          // nil unless CACHE_BACKEND=redis

	// Services
	Metrics    *metrics.Registry
	Calendar   *market_hours.Calendar
	Cache      *pricing.Cache
	Chain      *pricing.Chain
	Fetcher    *pricing.Fetcher
	Engine     *signals.Engine
	Renderer   *alerts.Renderer
	Dispatcher *alerts.Dispatcher
	Archive    *reliability.ArchiveService // nil when R2 is not configured
	Runner     *services.SessionRunner
}
