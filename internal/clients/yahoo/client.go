// Package yahoo is the primary batch-quote price provider.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client is a Yahoo Finance quote client
type Client struct {
	client  *http.Client
	gate    domain.RateGate
	baseURL string
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies)
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

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a new Yahoo Finance client
func NewClient(gate domain.RateGate, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{},
		gate:    gate,
		baseURL: defaultBaseURL,
		timeout: 15 * time.Second,
		now:     time.Now,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID identifies the provider
func (c *Client) ID() domain.ProviderID { return domain.ProviderYahoo }

// SupportsBatch is true: one request prices many symbols
func (c *Client) SupportsBatch() bool { return true }

// Symbol converts a tracked symbol to Yahoo's notation. Crypto becomes BTC-USD.
func Symbol(symbol string, category domain.Category) string {
	if domain.IsCrypto(symbol, category) {
		return domain.CryptoBase(symbol) + "-USD"
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// FetchBatch prices symbols with one request. Symbols absent from the
// response are simply missing from the result.
func (c *Client) FetchBatch(ctx context.Context, symbols []string, category domain.Category) (map[string]domain.PriceResult, error) {
	out := make(map[string]domain.PriceResult, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	wanted := make(map[string][]string, len(symbols))
	requested := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ys := Symbol(s, category)
		if _, seen := wanted[ys]; !seen {
			requested = append(requested, ys)
		}
		wanted[ys] = append(wanted[ys], s)
	}

	quotes, err := c.fetchQuotes(ctx, requested)
	if err != nil {
		return nil, err
	}

	for _, q := range quotes {
		if q.RegularMarketPrice == nil || *q.RegularMarketPrice <= 0 {
			continue
		}
		ts := c.now()
		if q.RegularMarketTime > 0 {
			ts = time.Unix(q.RegularMarketTime, 0)
		}
		for _, original := range wanted[strings.ToUpper(q.Symbol)] {
			out[original] = domain.PriceResult{
				Symbol:    original,
				Price:     *q.RegularMarketPrice,
				Provider:  domain.ProviderYahoo,
				Timestamp: ts,
			}
		}
	}

	if missing := len(symbols) - len(out); missing > 0 {
		c.log.Debug().Int("requested", len(symbols)).Int("missing", missing).Msg("Partial batch quote")
	}
	return out, nil
}

// FetchOne prices a single symbol
func (c *Client) FetchOne(ctx context.Context, symbol string, category domain.Category) (domain.PriceResult, error) {
	prices, err := c.FetchBatch(ctx, []string{symbol}, category)
	if err != nil {
		return domain.PriceResult{}, err
	}
	p, ok := prices[symbol]
	if !ok {
		return domain.PriceResult{}, domain.NewProviderError(domain.ProviderYahoo, symbol, domain.KindNotFound,
			errors.New("no quote in response"))
	}
	return p, nil
}

func (c *Client) fetchQuotes(ctx context.Context, symbols []string) ([]quote, error) {
	if err := c.gate.Acquire(ctx, domain.ProviderYahoo); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("fields", "symbol,regularMarketPrice,regularMarketTime")
	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderYahoo, strings.Join(symbols, ","), domain.KindTransient,
			fmt.Errorf("failed to fetch quotes: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderYahoo, "", domain.KindTransient,
			fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrorFromStatus(domain.ProviderYahoo, strings.Join(symbols, ","), resp.StatusCode, truncate(string(body)))
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.NewProviderError(domain.ProviderYahoo, "", domain.KindTransient,
			fmt.Errorf("failed to parse response: %w", err))
	}
	if e := result.QuoteResponse.Error; e != nil {
		return nil, domain.NewProviderError(domain.ProviderYahoo, "", domain.KindTransient,
			fmt.Errorf("%s: %s", e.Code, e.Description))
	}

	return result.QuoteResponse.Result, nil
}

func truncate(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max]
	}
	return s
}
