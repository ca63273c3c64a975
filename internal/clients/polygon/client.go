// Package polygon is the tertiary, lower-trust price provider. It prices from
// the previous-close aggregate, so every value it returns is logged at warn.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
)

// aggsAPI is the slice of the polygon REST client this provider uses
type aggsAPI interface {
	GetPreviousCloseAgg(ctx context.Context, params *models.GetPreviousCloseAggParams, options ...models.RequestOption) (*models.GetPreviousCloseAggResponse, error)
}

// Client adapts the polygon.io REST client to domain.PriceProvider
type Client struct {
	api     aggsAPI
	gate    domain.RateGate
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient creates a provider backed by polygon.New(apiKey)
func NewClient(apiKey string, gate domain.RateGate, timeout time.Duration, log zerolog.Logger) *Client {
	return newClient(polygon.New(apiKey), gate, timeout, log)
}

func newClient(api aggsAPI, gate domain.RateGate, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		api:     api,
		gate:    gate,
		timeout: timeout,
		log:     log.With().Str("client", "polygon").Logger(),
	}
}

// ID identifies the provider
func (c *Client) ID() domain.ProviderID { return domain.ProviderPolygon }

// SupportsBatch is false
func (c *Client) SupportsBatch() bool { return false }

// Ticker converts a tracked symbol to polygon notation: X:BTCUSD for crypto,
// I:SPX for ^SPX indices.
func Ticker(symbol string, category domain.Category) string {
	if domain.IsCrypto(symbol, category) {
		return "X:" + domain.CryptoBase(symbol) + "USD"
	}
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasPrefix(s, "^") {
		return "I:" + strings.TrimPrefix(s, "^")
	}
	return s
}

// FetchBatch prices symbols one at a time
func (c *Client) FetchBatch(ctx context.Context, symbols []string, category domain.Category) (map[string]domain.PriceResult, error) {
	out := make(map[string]domain.PriceResult, len(symbols))
	var errs []error
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		p, err := c.FetchOne(ctx, s, category)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[s] = p
	}
	if len(out) == 0 && len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// FetchOne returns the previous session close for symbol
func (c *Client) FetchOne(ctx context.Context, symbol string, category domain.Category) (domain.PriceResult, error) {
	if err := c.gate.Acquire(ctx, domain.ProviderPolygon); err != nil {
		return domain.PriceResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := Ticker(symbol, category)
	params := models.GetPreviousCloseAggParams{Ticker: ticker}.WithAdjusted(true)

	res, err := c.api.GetPreviousCloseAgg(ctx, params)
	if err != nil {
		return domain.PriceResult{}, classify(symbol, err)
	}
	if res == nil || len(res.Results) == 0 || res.Results[0].Close <= 0 {
		return domain.PriceResult{}, domain.NewProviderError(domain.ProviderPolygon, symbol, domain.KindNotFound,
			fmt.Errorf("no previous close for %s", ticker))
	}

	agg := res.Results[0]
	ts := time.Time(agg.Timestamp)
	c.log.Warn().
		Str("provider", string(domain.ProviderPolygon)).
		Str("symbol", symbol).
		Float64("price", agg.Close).
		Time("as_of", ts).
		Msg("Using previous-close price from tertiary provider")

	return domain.PriceResult{Symbol: symbol, Price: agg.Close, Provider: domain.ProviderPolygon, Timestamp: ts}, nil
}

func classify(symbol string, err error) error {
	var apiErr *models.ErrorResponse
	if errors.As(err, &apiErr) {
		kind := domain.ErrorFromStatus(domain.ProviderPolygon, symbol, apiErr.StatusCode, "").Kind
		return &domain.ProviderError{
			Provider:   domain.ProviderPolygon,
			Symbol:     symbol,
			StatusCode: apiErr.StatusCode,
			Kind:       kind,
			Err:        err,
		}
	}
	return domain.NewProviderError(domain.ProviderPolygon, symbol, domain.KindTransient, err)
}
