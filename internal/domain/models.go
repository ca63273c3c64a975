// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category groups tickers by the newsletter section they come from
type Category string

const (
	CategoryDaily         Category = "daily"
	CategoryDigitalAssets Category = "digitalassets"
	CategoryETFs          Category = "etfs"
	CategoryIdeas         Category = "ideas"
)

// Categories lists every category in display order
var Categories = []Category{CategoryDaily, CategoryDigitalAssets, CategoryETFs, CategoryIdeas}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Weekly reports whether the category is refreshed once per week rather than every session
func (c Category) Weekly() bool {
	return c == CategoryETFs || c == CategoryIdeas
}

// Title returns the heading used in notifications
func (c Category) Title() string {
	switch c {
	case CategoryDaily:
		return "Daily"
	case CategoryDigitalAssets:
		return "Digital Assets"
	case CategoryETFs:
		return "ETFs"
	case CategoryIdeas:
		return "Ideas"
	}
	return string(c)
}

// Sentiment is the analyst directional view on a ticker
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// ParseSentiment is case-insensitive; empty input is neutral
func ParseSentiment(s string) (Sentiment, error) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentBullish:
		return SentimentBullish, nil
	case SentimentBearish:
		return SentimentBearish, nil
	case SentimentNeutral, "":
		return SentimentNeutral, nil
	}
	return "", fmt.Errorf("unknown sentiment %q", s)
}

// Session is the AM or PM half of a trading day
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// ParseSession validates a session name
func ParseSession(s string) (Session, error) {
	switch Session(strings.ToUpper(strings.TrimSpace(s))) {
	case SessionAM:
		return SessionAM, nil
	case SessionPM:
		return SessionPM, nil
	}
	return "", fmt.Errorf("unknown session %q (want AM or PM)", s)
}

// SessionAt returns AM before noon in loc and PM otherwise
func SessionAt(t time.Time, loc *time.Location) Session {
	if loc != nil {
		t = t.In(loc)
	}
	if t.Hour() < 12 {
		return SessionAM
	}
	return SessionPM
}

// Action is the alert direction produced by the signal engine
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionCover Action = "COVER"
)

// Entry reports whether the action is taken at the lower bound of the range
func (a Action) Entry() bool {
	return a == ActionBuy || a == ActionCover
}

// ProviderID identifies where a price came from
type ProviderID string

const (
	ProviderYahoo   ProviderID = "yahoo"
	ProviderFinnhub ProviderID = "finnhub"
	ProviderPolygon ProviderID = "polygon"
	ProviderCache   ProviderID = "cache"
	ProviderStored  ProviderID = "stored"
)

// Ticker is a tracked instrument with its analyst range and session prices
type Ticker struct {
	LastPriceUpdate *time.Time `json:"last_price_update,omitempty"`
	BuyTrade        *float64   `json:"buy_trade,omitempty"`
	SellTrade       *float64   `json:"sell_trade,omitempty"`
	AMPrice         *float64   `json:"am_price,omitempty"`
	PMPrice         *float64   `json:"pm_price,omitempty"`
	Symbol          string     `json:"symbol"`
	Name            string     `json:"name"`
	Category        Category   `json:"category"`
	Sentiment       Sentiment  `json:"sentiment"`
	ID              int64      `json:"id"`
}

// Key identifies a ticker within its category
func (t Ticker) Key() string {
	return string(t.Category) + ":" + t.Symbol
}

// Normalize swaps reversed thresholds so BuyTrade <= SellTrade
func (t *Ticker) Normalize() {
	if t.BuyTrade == nil || t.SellTrade == nil {
		return
	}
	buy, sell := NormalizeThresholds(*t.BuyTrade, *t.SellTrade)
	t.BuyTrade, t.SellTrade = &buy, &sell
}

// NormalizeThresholds orders a buy/sell pair. Applying it twice is a no-op.
func NormalizeThresholds(buy, sell float64) (float64, float64) {
	if buy > sell {
		return sell, buy
	}
	return buy, sell
}

// SessionPrice returns the price stored in the given session slot
func (t Ticker) SessionPrice(s Session) *float64 {
	if s == SessionAM {
		return t.AMPrice
	}
	return t.PMPrice
}

// LastKnownPrice prefers the PM slot, then AM.
func (t Ticker) LastKnownPrice() (float64, bool) {
	if t.PMPrice != nil && *t.PMPrice > 0 {
		return *t.PMPrice, true
	}
	if t.AMPrice != nil && *t.AMPrice > 0 {
		return *t.AMPrice, true
	}
	return 0, false
}

// PriceResult is the single internal price shape every provider adapter normalizes into
type PriceResult struct {
	Timestamp time.Time  `json:"timestamp"`
	Symbol    string     `json:"symbol"`
	Provider  ProviderID `json:"provider"`
	Price     float64    `json:"price"`
}

// Alert is a session-scoped signal ready for delivery
type Alert struct {
	GeneratedAt      time.Time `json:"generated_at"`
	BatchID          string    `json:"batch_id"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Category         Category  `json:"category"`
	Session          Session   `json:"session"`
	Action           Action    `json:"action"`
	Sentiment        Sentiment `json:"sentiment"`
	ID               int64     `json:"id"`
	CurrentPrice     float64   `json:"current_price"`
	BuyTrade         float64   `json:"buy_trade"`
	SellTrade        float64   `json:"sell_trade"`
	ThresholdCrossed float64   `json:"threshold_crossed"`
	ProfitPct        float64   `json:"profit_pct"`
	IsActive         bool      `json:"is_active"`
}
