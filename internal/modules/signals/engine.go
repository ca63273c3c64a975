// Package signals turns a ticker's sentiment, trade range and current price
// into an alert action.
package signals

import (
	"sort"
	"time"

	"github.com/aristath/pricesentry/internal/domain"
)

// Signal is a fired alert condition
type Signal struct {
	Action           domain.Action
	ThresholdCrossed float64
	ProfitPct        float64
}

// Evaluate applies the range rules. Comparisons are inclusive, so a price
// sitting exactly on a threshold fires. Neutral never fires.
//
//	bullish: price <= buy  -> BUY   (sell-price)/price
//	         price >= sell -> SELL  (price-buy)/buy
//	bearish: price <= buy  -> COVER (sell-price)/price
//	         price >= sell -> SHORT (price-buy)/price
func Evaluate(sentiment domain.Sentiment, buy, sell, price float64) (Signal, bool) {
	if price <= 0 {
		return Signal{}, false
	}
	buy, sell = domain.NormalizeThresholds(buy, sell)

	switch sentiment {
	case domain.SentimentBullish:
		if price <= buy {
			return Signal{Action: domain.ActionBuy, ThresholdCrossed: buy, ProfitPct: (sell - price) / price * 100}, true
		}
		if price >= sell {
			return Signal{Action: domain.ActionSell, ThresholdCrossed: sell, ProfitPct: (price - buy) / buy * 100}, true
		}
	case domain.SentimentBearish:
		if price <= buy {
			return Signal{Action: domain.ActionCover, ThresholdCrossed: buy, ProfitPct: (sell - price) / price * 100}, true
		}
		if price >= sell {
			return Signal{Action: domain.ActionShort, ThresholdCrossed: sell, ProfitPct: (price - buy) / price * 100}, true
		}
	}
	return Signal{}, false
}

// Engine evaluates a whole universe for one session
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine stamping alerts with now()
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Alerts evaluates each ticker against its price (keyed by Ticker.Key) and
// returns the fired alerts ordered by category then symbol. Tickers without
// thresholds or a price are skipped.
func (e *Engine) Alerts(tickers []domain.Ticker, prices map[string]float64, session domain.Session) []domain.Alert {
	generated := e.now()
	var out []domain.Alert
	for _, t := range tickers {
		if t.BuyTrade == nil || t.SellTrade == nil {
			continue
		}
		price, ok := prices[t.Key()]
		if !ok {
			continue
		}
		sig, fired := Evaluate(t.Sentiment, *t.BuyTrade, *t.SellTrade, price)
		if !fired {
			continue
		}
		buy, sell := domain.NormalizeThresholds(*t.BuyTrade, *t.SellTrade)
		out = append(out, domain.Alert{
			Symbol:           t.Symbol,
			Name:             t.Name,
			Category:         t.Category,
			Session:          session,
			Action:           sig.Action,
			Sentiment:        t.Sentiment,
			CurrentPrice:     price,
			BuyTrade:         buy,
			SellTrade:        sell,
			ThresholdCrossed: sig.ThresholdCrossed,
			ProfitPct:        sig.ProfitPct,
			GeneratedAt:      generated,
			IsActive:         true,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := categoryRank(out[i].Category), categoryRank(out[j].Category)
		if ci != cj {
			return ci < cj
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func categoryRank(c domain.Category) int {
	for i, known := range domain.Categories {
		if c == known {
			return i
		}
	}
	return len(domain.Categories)
}
