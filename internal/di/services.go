package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/clients/email"
	"github.com/aristath/pricesentry/internal/clients/finnhub"
	"github.com/aristath/pricesentry/internal/clients/polygon"
	"github.com/aristath/pricesentry/internal/clients/ratelimit"
	"github.com/aristath/pricesentry/internal/clients/yahoo"
	"github.com/aristath/pricesentry/internal/config"
	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/metrics"
	"github.com/aristath/pricesentry/internal/modules/alerts"
	"github.com/aristath/pricesentry/internal/modules/market_hours"
	"github.com/aristath/pricesentry/internal/modules/pricing"
	"github.com/aristath/pricesentry/internal/modules/signals"
	"github.com/aristath/pricesentry/internal/reliability"
	"github.com/aristath/pricesentry/internal/services"
)

// InitializeServices builds clients and services on top of the repositories
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	clock := ratelimit.RealClock{}
	container.Metrics = metrics.NewRegistry()
	container.Calendar = market_hours.NewCalendar()
	container.Engine = signals.NewEngine(nil)

	// Providers, in priority order, behind one shared rate limiter
	container.Limiter = ratelimit.New(clock, map[domain.ProviderID]time.Duration{
		domain.ProviderYahoo:   cfg.Providers.Yahoo.MinInterval,
		domain.ProviderFinnhub: cfg.Providers.Finnhub.MinInterval,
		domain.ProviderPolygon: cfg.Providers.Polygon.MinInterval,
	}, log)
	container.Providers = buildProviders(container.Limiter, cfg, log)

	container.Chain = pricing.NewChain(
		container.Providers,
		pricing.RetryPolicy{
			Clock:       clock,
			BaseDelay:   cfg.Providers.RetryBaseDelay,
			MaxAttempts: cfg.Providers.RetryMaxAttempts,
		},
		pricing.BreakerSettings{
			OpenTimeout:         pricing.DefaultBreakerSettings.OpenTimeout,
			ConsecutiveFailures: pricing.DefaultBreakerSettings.ConsecutiveFailures,
			HalfOpenRequests:    uint32(cfg.Providers.Concurrency),
		},
		container.Metrics,
		log,
	)

	// Price cache
	store, err := buildCacheStore(ctx, container, cfg, log)
	if err != nil {
		return err
	}
	container.Cache = pricing.NewCache(store, pricing.TTLPolicy{
		Intraday: cfg.Cache.TTLIntraday,
		Weekly:   cfg.Cache.TTLWeekly,
	}, clock, log)
	if err := container.Cache.Load(ctx); err != nil {
		// A cold cache only costs provider calls
		log.Warn().Err(err).Msg("Starting with an empty price cache")
	}
	container.Metrics.WatchCacheSize(container.Cache.Len)

	container.Fetcher = pricing.NewFetcher(
		container.Cache,
		container.Chain,
		container.TickerRepo,
		container.TickerRepo,
		clock,
		container.Metrics,
		pricing.FetcherConfig{
			ChunkDelay:  cfg.Fetch.ChunkDelay,
			ChunkSize:   cfg.Fetch.ChunkSize,
			Concurrency: cfg.Providers.Concurrency,
		},
		log,
	)

	// Alerts
	renderer, err := alerts.NewRenderer(cfg.Location())
	if err != nil {
		return fmt.Errorf("failed to initialize alert renderer: %w", err)
	}
	container.Renderer = renderer
	container.Transport = buildTransport(cfg, log)

	opts := []alerts.DispatcherOption{alerts.WithObserver(container.Metrics)}
	if cfg.R2.Enabled() {
		r2, err := reliability.NewR2Client(ctx, cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey, cfg.R2.Bucket, log)
		if err != nil {
			// Archiving is best effort; the local fallback file still exists
			log.Warn().Err(err).Msg("R2 archive disabled")
		} else {
			container.Archive = reliability.NewArchiveService(r2, log)
			opts = append(opts, alerts.WithArchiver(container.Archive))
		}
	}

	container.Dispatcher = alerts.NewDispatcher(
		container.AlertRepo,
		container.Transport,
		container.Renderer,
		alerts.NewFallbackWriter(filepath.Join(cfg.DataDir, "failed_alerts")),
		alerts.Recipients{
			From: cfg.Mail.Sender,
			To:   recipients(cfg.Mail.Recipient),
			Bcc:  cfg.Mail.Bcc,
		},
		log,
		opts...,
	)

	container.Runner = services.NewSessionRunner(
		container.TickerRepo,
		container.Fetcher,
		container.Engine,
		container.Dispatcher,
		container.Calendar,
		container.Metrics,
		cfg.Location(),
		log,
	)

	log.Info().
		Int("providers", len(container.Providers)).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("mail", container.Transport != nil).
		Bool("archive", container.Archive != nil).
		Msg("Services initialized")
	return nil
}

// buildProviders returns yahoo and finnhub always, polygon only with an API key
func buildProviders(gate domain.RateGate, cfg *config.Config, log zerolog.Logger) []domain.PriceProvider {
	p := cfg.Providers
	providers := []domain.PriceProvider{
		yahoo.NewClient(gate, log, yahoo.WithBaseURL(p.Yahoo.BaseURL), yahoo.WithTimeout(p.Timeout)),
		finnhub.NewClient(p.Finnhub.APIKey, gate, log, finnhub.WithBaseURL(p.Finnhub.BaseURL), finnhub.WithTimeout(p.Timeout)),
	}
	if p.Finnhub.APIKey == "" {
		log.Warn().Msg("FINNHUB_API_KEY not set, secondary provider requests will be rejected")
	}
	if p.Polygon.APIKey != "" {
		providers = append(providers, polygon.NewClient(p.Polygon.APIKey, gate, p.Timeout, log))
	}
	return providers
}

// buildCacheStore selects the durable store behind the price cache
func buildCacheStore(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (pricing.Store, error) {
	if cfg.Cache.Backend != "redis" {
		return pricing.NewSQLiteStore(container.PriceRepo), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
	}
	container.Redis = client
	log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using redis price cache")
	return pricing.NewRedisStore(client, cfg.Cache.Retention), nil
}

// buildTransport returns nil when mail is not configured
func buildTransport(cfg *config.Config, log zerolog.Logger) domain.MailTransport {
	if !cfg.MailEnabled() {
		log.Warn().Msg("Mail not configured, alerts will only be written to fallback files")
		return nil
	}
	m := cfg.Mail
	if m.Transport == "api" {
		return email.NewAPITransport(m.APIURL, m.APIKey, 30*time.Second, log)
	}
	return email.NewSMTPTransport(email.SMTPConfig{
		Host:     m.SMTPHost,
		Port:     m.SMTPPort,
		Username: m.SMTPUsername,
		Password: m.SMTPPassword,
	}, log)
}

func recipients(to string) []string {
	if to == "" {
		return nil
	}
	return []string{to}
}
