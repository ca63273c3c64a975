package testing

import (
	"github.com/aristath/pricesentry/internal/domain"
)

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// NewTicker builds a ticker fixture with thresholds set
func NewTicker(symbol string, category domain.Category, sentiment domain.Sentiment, buy, sell float64) domain.Ticker {
	return domain.Ticker{
		Symbol:    symbol,
		Name:      symbol,
		Category:  category,
		Sentiment: sentiment,
		BuyTrade:  Float(buy),
		SellTrade: Float(sell),
	}
}

// AAPL is bullish 170-185
func AAPL() domain.Ticker {
	t := NewTicker("AAPL", domain.CategoryDaily, domain.SentimentBullish, 170.00, 185.00)
	t.Name = "Apple Inc."
	return t
}

// MPW is bearish 4.35-6.25
func MPW() domain.Ticker {
	t := NewTicker("MPW", domain.CategoryDaily, domain.SentimentBearish, 4.35, 6.25)
	t.Name = "Medical Properties Trust"
	return t
}
