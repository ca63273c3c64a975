// Package finnhub is the secondary single-quote price provider.
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
)

const (
	defaultBaseURL   = "https://finnhub.io/api/v1"
	cryptoExchange   = "BINANCE"
	cryptoQuote      = "USDT"
	candleLookback   = 7 * 24 * time.Hour
	rateLimitMessage = "api limit reached"
)

// Client is a Finnhub quote client
type Client struct {
	client  *http.Client
	gate    domain.RateGate
	apiKey  string
	baseURL string
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another host
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the hard per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, gate domain.RateGate, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{},
		gate:    gate,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		timeout: 15 * time.Second,
		now:     time.Now,
		log:     log.With().Str("client", "finnhub").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID identifies the provider
func (c *Client) ID() domain.ProviderID { return domain.ProviderFinnhub }

// SupportsBatch is false: every symbol costs one request
func (c *Client) SupportsBatch() bool { return false }

// NormalizeSymbol drops a leading ^ (indices) and everything after = (futures)
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimPrefix(s, "^")
	if i := strings.Index(s, "="); i >= 0 {
		s = s[:i]
	}
	return s
}

// CryptoSymbol converts BTC or BTC-USD into BINANCE:BTCUSDT
func CryptoSymbol(symbol string) string {
	return cryptoExchange + ":" + domain.CryptoBase(symbol) + cryptoQuote
}

// FetchBatch prices symbols one at a time, returning whatever resolved.
// It only fails when nothing resolved.
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

// FetchOne prices a single symbol, routing crypto to the candle endpoint
func (c *Client) FetchOne(ctx context.Context, symbol string, category domain.Category) (domain.PriceResult, error) {
	if c.apiKey == "" {
		return domain.PriceResult{}, domain.NewProviderError(domain.ProviderFinnhub, symbol, domain.KindPermanent,
			errors.New("missing API key"))
	}
	if domain.IsCrypto(symbol, category) {
		return c.fetchCrypto(ctx, symbol)
	}
	return c.fetchQuote(ctx, symbol)
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (domain.PriceResult, error) {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))

	var resp quoteResponse
	if err := c.get(ctx, symbol, "/quote", params, &resp); err != nil {
		return domain.PriceResult{}, err
	}
	if resp.Error != "" {
		return domain.PriceResult{}, c.bodyError(symbol, resp.Error)
	}
	if resp.C <= 0 {
		return domain.PriceResult{}, domain.NewProviderError(domain.ProviderFinnhub, symbol, domain.KindNotFound,
			errors.New("no current price"))
	}

	ts := c.now()
	if resp.T > 0 {
		ts = time.Unix(resp.T, 0)
	}
	return domain.PriceResult{Symbol: symbol, Price: resp.C, Provider: domain.ProviderFinnhub, Timestamp: ts}, nil
}

func (c *Client) fetchCrypto(ctx context.Context, symbol string) (domain.PriceResult, error) {
	now := c.now()
	params := url.Values{}
	params.Set("symbol", CryptoSymbol(symbol))
	params.Set("resolution", "D")
	params.Set("from", strconv.FormatInt(now.Add(-candleLookback).Unix(), 10))
	params.Set("to", strconv.FormatInt(now.Unix(), 10))

	var resp candleResponse
	if err := c.get(ctx, symbol, "/crypto/candle", params, &resp); err != nil {
		return domain.PriceResult{}, err
	}
	if resp.Error != "" {
		return domain.PriceResult{}, c.bodyError(symbol, resp.Error)
	}
	if resp.S != "ok" || len(resp.C) == 0 {
		return domain.PriceResult{}, domain.NewProviderError(domain.ProviderFinnhub, symbol, domain.KindNotFound,
			fmt.Errorf("no candle data (status %q)", resp.S))
	}

	last := len(resp.C) - 1
	ts := now
	if len(resp.T) == len(resp.C) {
		ts = time.Unix(resp.T[last], 0)
	}
	return domain.PriceResult{Symbol: symbol, Price: resp.C[last], Provider: domain.ProviderFinnhub, Timestamp: ts}, nil
}

func (c *Client) get(ctx context.Context, symbol, path string, params url.Values, out interface{}) error {
	if err := c.gate.Acquire(ctx, domain.ProviderFinnhub); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("token", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewProviderError(domain.ProviderFinnhub, symbol, domain.KindTransient,
			fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewProviderError(domain.ProviderFinnhub, symbol, domain.KindTransient,
			fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		pe := domain.ErrorFromStatus(domain.ProviderFinnhub, symbol, resp.StatusCode, string(body))
		if strings.Contains(strings.ToLower(string(body)), rateLimitMessage) {
			pe.Kind = domain.KindRateLimited
		}
		return pe
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewProviderError(domain.ProviderFinnhub, symbol, domain.KindTransient,
			fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c *Client) bodyError(symbol, msg string) error {
	kind := domain.KindPermanent
	if strings.Contains(strings.ToLower(msg), rateLimitMessage) {
		kind = domain.KindRateLimited
	}
	return domain.NewProviderError(domain.ProviderFinnhub, symbol, kind, errors.New(msg))
}
