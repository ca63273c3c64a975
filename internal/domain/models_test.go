package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeThresholds_Idempotent(t *testing.T) {
	pairs := [][2]float64{{170, 185}, {185, 170}, {4.35, 6.25}, {6.25, 4.35}, {10, 10}}
	for _, p := range pairs {
		buy, sell := NormalizeThresholds(p[0], p[1])
		assert.LessOrEqual(t, buy, sell)

		for i := 0; i < 3; i++ {
			b2, s2 := NormalizeThresholds(buy, sell)
			assert.Equal(t, buy, b2)
			assert.Equal(t, sell, s2)
		}
	}
}

func TestTicker_Normalize(t *testing.T) {
	tk := Ticker{Symbol: "MPW", BuyTrade: floatPtr(6.25), SellTrade: floatPtr(4.35)}
	tk.Normalize()
	assert.Equal(t, 4.35, *tk.BuyTrade)
	assert.Equal(t, 6.25, *tk.SellTrade)

	neutral := Ticker{Symbol: "SPY", Sentiment: SentimentNeutral}
	neutral.Normalize()
	assert.Nil(t, neutral.BuyTrade)
	assert.Nil(t, neutral.SellTrade)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" ETFs ")
	require.NoError(t, err)
	assert.Equal(t, CategoryETFs, c)
	assert.True(t, c.Weekly())
	assert.False(t, CategoryDaily.Weekly())

	_, err = ParseCategory("bonds")
	assert.Error(t, err)
}

func TestParseSentiment(t *testing.T) {
	s, err := ParseSentiment("Bullish")
	require.NoError(t, err)
	assert.Equal(t, SentimentBullish, s)

	s, err = ParseSentiment("")
	require.NoError(t, err)
	assert.Equal(t, SentimentNeutral, s)

	_, err = ParseSentiment("sideways")
	assert.Error(t, err)
}

func TestSessionAt(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	morning := time.Date(2025, 3, 10, 9, 35, 0, 0, ny)
	afternoon := time.Date(2025, 3, 10, 15, 30, 0, 0, ny)
	noon := time.Date(2025, 3, 10, 12, 0, 0, 0, ny)

	assert.Equal(t, SessionAM, SessionAt(morning, ny))
	assert.Equal(t, SessionPM, SessionAt(afternoon, ny))
	assert.Equal(t, SessionPM, SessionAt(noon, ny))
	// 15:00 UTC is 11:00 in New York during DST
	assert.Equal(t, SessionAM, SessionAt(time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC), ny))
}

func TestParseSession(t *testing.T) {
	s, err := ParseSession("pm")
	require.NoError(t, err)
	assert.Equal(t, SessionPM, s)

	_, err = ParseSession("noon")
	assert.Error(t, err)
}

func TestTicker_LastKnownPrice(t *testing.T) {
	tk := Ticker{AMPrice: floatPtr(10)}
	p, ok := tk.LastKnownPrice()
	assert.True(t, ok)
	assert.Equal(t, 10.0, p)

	tk.PMPrice = floatPtr(11)
	p, _ = tk.LastKnownPrice()
	assert.Equal(t, 11.0, p)

	_, ok = Ticker{}.LastKnownPrice()
	assert.False(t, ok)
}

func TestAction_Entry(t *testing.T) {
	assert.True(t, ActionBuy.Entry())
	assert.True(t, ActionCover.Entry())
	assert.False(t, ActionSell.Entry())
	assert.False(t, ActionShort.Entry())
}
